// Package motion implements the task-stream decoder and motion FSM:
// binary opcode decoding, machine-state tracking, envelope validation, and
// G1 segment splitting into time-bounded sub-moves.
package motion

import "math"

// Config carries the session-scoped limits the FSM enforces, passed in
// explicitly at session start rather than compiled in.
type Config struct {
	// MaxR2 bounds the radial envelope: x²+y² must not exceed it.
	MaxR2 float64
	MinZ  float64
	MaxZ  float64
	// MaxExecTime is the wall-clock budget, in seconds, a single emitted
	// sub-segment may cost at the move's effective feedrate.
	MaxExecTime float64
	// InitialFeedrate seeds State.Feedrate.
	InitialFeedrate int
	// InitialTool seeds the active extruder index.
	InitialTool int
}

// DefaultConfig returns the FSM's startup defaults.
func DefaultConfig() Config {
	return Config{
		MaxExecTime:     1.0,
		InitialFeedrate: 3000,
		InitialTool:     0,
	}
}

// State is the machine state C3 owns: current tool position, per-extruder
// filament positions, active extruder, feedrate, and positioning mode.
// Any of X, Y, Z may be math.NaN(), meaning "not yet homed".
type State struct {
	X, Y, Z  float64
	E        [3]float64
	Tool     int
	Feedrate int
	Relative bool
	Traveled float64
}

// NewState seeds position as unknown and feedrate/tool from cfg, matching
// DeviceController's zero-argument constructor.
func NewState(cfg Config) *State {
	return &State{
		X:        math.NaN(),
		Y:        math.NaN(),
		Z:        math.NaN(),
		Feedrate: cfg.InitialFeedrate,
		Tool:     cfg.InitialTool,
	}
}

func unknown(v float64) bool { return math.IsNaN(v) }
