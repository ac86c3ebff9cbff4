// Package cargo defines the cargo categories ports produce and accept.
package cargo

import (
	"strings"

	"github.com/talgya/cargo-current/internal/entropy"
)

// Category is the shape of a cargo unit. A port accepts and produces one category.
type Category uint8

const (
	CategoryCircle Category = iota
	CategorySquare
	CategoryTriangle
	CategoryDiamond
	CategoryPentagon
	CategoryHexagon
)

// NumCategories is the total number of cargo categories.
const NumCategories = 6

// Rarity gates when a category starts appearing on new ports.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
)

// Info is the display metadata of a category.
type Info struct {
	Name   string `json:"name"`
	Shape  string `json:"shape"`
	Color  string `json:"color"`
	Rarity Rarity `json:"rarity"`
}

var catalogue = [NumCategories]Info{
	CategoryCircle:   {Name: "Circle", Shape: "circle", Color: "#FF5252", Rarity: RarityCommon},
	CategorySquare:   {Name: "Square", Shape: "square", Color: "#448AFF", Rarity: RarityCommon},
	CategoryTriangle: {Name: "Triangle", Shape: "triangle", Color: "#4CAF50", Rarity: RarityCommon},
	CategoryDiamond:  {Name: "Diamond", Shape: "diamond", Color: "#FFC107", Rarity: RarityUncommon},
	CategoryPentagon: {Name: "Pentagon", Shape: "pentagon", Color: "#9C27B0", Rarity: RarityRare},
	CategoryHexagon:  {Name: "Hexagon", Shape: "hexagon", Color: "#00BCD4", Rarity: RarityRare},
}

// Info returns the display metadata for c.
func (c Category) Info() Info {
	if int(c) >= NumCategories {
		return Info{Name: "Unknown", Shape: "unknown"}
	}
	return catalogue[c]
}

func (c Category) String() string {
	return c.Info().Name
}

// ByRarity returns every category of rarity r in catalogue order.
func ByRarity(r Rarity) []Category {
	var out []Category
	for i, info := range catalogue {
		if info.Rarity == r {
			out = append(out, Category(i))
		}
	}
	return out
}

// FromString parses a category by name or shape, case-insensitively.
func FromString(s string) (Category, bool) {
	for i, info := range catalogue {
		if strings.EqualFold(info.Name, s) || strings.EqualFold(info.Shape, s) {
			return Category(i), true
		}
	}
	return 0, false
}

// Choose picks the category for a newly opened port. Progress runs from 0 at
// the start of a game to 1 once the late game is reached; rarer shapes only
// appear as it grows.
func Choose(src entropy.Source, progress float64) Category {
	var pool []Category
	switch {
	case progress > 0.7 && src.Float64() < 0.3:
		pool = ByRarity(RarityRare)
	case progress > 0.3 && src.Float64() < 0.5:
		pool = ByRarity(RarityUncommon)
	default:
		pool = ByRarity(RarityCommon)
	}
	return pool[src.Intn(len(pool))]
}
