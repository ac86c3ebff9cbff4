// Package engine runs the vessel simulation: ports, lanes, vessels and cargo
// advanced by a frame-driven loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/talgya/cargo-current/internal/tuning"
)

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the weekday shown for a day counter; day 0 is a Monday.
func DayName(day int) string {
	return dayNames[((day%7)+7)%7]
}

// Clock is the simulation time as shown to players.
type Clock struct {
	Elapsed     float64 `json:"elapsed"`      // Simulated seconds since the start
	Day         int     `json:"day"`          // Completed days
	DayOfWeek   string  `json:"day_of_week"`  // Weekday of the current day
	DayProgress float64 `json:"day_progress"` // Fraction of the current day elapsed
}

// Clock returns the current simulation clock.
func (s *Simulation) Clock() Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock()
}

func (s *Simulation) clock() Clock {
	return Clock{
		Elapsed:     s.Elapsed,
		Day:         s.Day,
		DayOfWeek:   DayName(s.Day),
		DayProgress: s.dayTime / s.Tuning.Time.SecondsPerDay,
	}
}

// SimTime renders simulated seconds as a weekday and time of day, mapping
// one in-game day onto 24 hours.
func SimTime(elapsed, secondsPerDay float64) string {
	if secondsPerDay <= 0 {
		return "?"
	}
	day := int(elapsed / secondsPerDay)
	frac := elapsed/secondsPerDay - float64(day)
	minutes := int(math.Floor(frac * 24 * 60))
	return fmt.Sprintf("%s Day %d, %d:%02d", DayName(day), day+1, minutes/60, minutes%60)
}

// Engine drives the simulation forward one frame at a time.
type Engine struct {
	Frame         uint64        // Frames stepped so far
	Interval      time.Duration // Wall-clock time between frames at speed 1
	MaxFrameDelta float64       // Upper bound on the dt of one frame, seconds

	// OnFrame is called with each frame's dt in simulated seconds.
	OnFrame func(dt float64)

	now       func() time.Time
	lastFrame time.Time // Zero before the first frame and after a pause

	mu      sync.Mutex
	speed   float64 // 1.0 = real time, 0 = paused
	running bool
	cancel  context.CancelFunc
}

// NewEngine creates an engine paced by the tuning frame rate.
func NewEngine(t tuning.Tuning) *Engine {
	return &Engine{
		Interval:      time.Second / time.Duration(t.Time.FrameRateHz),
		MaxFrameDelta: t.Time.MaxFrameDelta,
		now:           time.Now,
		speed:         1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses; negative values are treated as zero.
func (e *Engine) SetSpeed(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = math.Max(0, v)
	slog.Info("simulation speed changed", "speed", e.speed)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run steps frames until ctx is cancelled or Stop is called. Every frame
// advances the simulation by the measured frame time scaled by Speed, and
// Speed also shortens or lengthens the wall-clock wait between frames.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	if e.now == nil {
		e.now = time.Now
	}
	e.lastFrame = time.Time{}
	slog.Info("simulation engine started", "frame", e.Frame, "speed", e.Speed(), "interval", e.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "frame", e.Frame)
			return
		case <-timer.C:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			e.lastFrame = time.Time{}
			timer.Reset(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.step(speed)

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		wait := target - elapsed
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// step advances the simulation by the wall-clock time since the previous
// frame times speed, clamped to MaxFrameDelta so a stall never lands as one
// huge tick. The first frame after a start or pause assumes one Interval.
func (e *Engine) step(speed float64) {
	e.Frame++
	now := e.now()
	elapsed := e.Interval
	if !e.lastFrame.IsZero() {
		elapsed = now.Sub(e.lastFrame)
	}
	e.lastFrame = now

	dt := elapsed.Seconds() * speed
	if e.MaxFrameDelta > 0 && dt > e.MaxFrameDelta {
		dt = e.MaxFrameDelta
	}
	if e.OnFrame != nil {
		e.OnFrame(dt)
	}
}
