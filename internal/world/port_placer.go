// Port placement: finds rim positions for new ports on landmasses that do not
// have one yet.
package world

import (
	"math"
	"strconv"

	"github.com/talgya/cargo-current/internal/entropy"
)

// PortSite is a proposed location for a port.
type PortSite struct {
	Landmass LandmassID
	Position Point
	Name     string
}

// FreeLandmasses returns the landmasses not present in occupied, in map order.
func FreeLandmasses(m *Map, occupied map[LandmassID]bool) []*Landmass {
	var free []*Landmass
	for _, l := range m.Landmasses {
		if !occupied[l.ID] {
			free = append(free, l)
		}
	}
	return free
}

// PlacePort picks a free landmass and a random rim angle on it.
// Returns false when every landmass already has a port.
func PlacePort(m *Map, occupied map[LandmassID]bool, src entropy.Source, names *NameGenerator) (PortSite, bool) {
	free := FreeLandmasses(m, occupied)
	if len(free) == 0 {
		return PortSite{}, false
	}
	l := free[src.Intn(len(free))]
	angle := src.Float64() * 2 * math.Pi
	return PortSite{
		Landmass: l.ID,
		Position: OnCircle(l.Center, l.Radius, angle),
		Name:     names.Next(),
	}, true
}

// PlaceInitialPorts returns up to n sites on n distinct landmasses.
func PlaceInitialPorts(m *Map, n int, src entropy.Source, names *NameGenerator) []PortSite {
	occupied := make(map[LandmassID]bool)
	sites := make([]PortSite, 0, n)
	for len(sites) < n {
		site, ok := PlacePort(m, occupied, src, names)
		if !ok {
			break
		}
		occupied[site.Landmass] = true
		sites = append(sites, site)
	}
	return sites
}

// NameGenerator produces unique procedural harbor names.
type NameGenerator struct {
	src  entropy.Source
	used map[string]bool
}

var (
	namePrefixes = []string{
		"Iron", "Green", "Ash", "Stone", "Salt", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Gull", "Elm", "Oak", "Pine", "Copper", "Coral",
	}
	nameSuffixes = []string{
		"haven", "ford", "harbor", "wick", "quay", "gate", "mouth",
		"sound", "wharf", "cove", "bay", "crest", "strand", "port",
		"town", "bury", "marsh", "well", "reef", "cliff", "point",
	}
)

// NewNameGenerator creates a generator drawing from src.
func NewNameGenerator(src entropy.Source) *NameGenerator {
	return &NameGenerator{src: src, used: make(map[string]bool)}
}

// Next returns a name not issued before. Once the combinations run out,
// names repeat with a numeric suffix.
func (g *NameGenerator) Next() string {
	limit := len(namePrefixes) * len(nameSuffixes)
	for tries := 0; tries < limit*2; tries++ {
		name := namePrefixes[g.src.Intn(len(namePrefixes))] + nameSuffixes[g.src.Intn(len(nameSuffixes))]
		if !g.used[name] {
			g.used[name] = true
			return name
		}
	}
	name := namePrefixes[0] + nameSuffixes[0]
	for i := 2; ; i++ {
		candidate := name + " " + strconv.Itoa(i)
		if !g.used[candidate] {
			g.used[candidate] = true
			return candidate
		}
	}
}
