package ggcalc

import "time"

// RebuildAction is the work a rebuild performed or attempted.
type RebuildAction int

const (
	// RebuildNone means the device was already up to date.
	RebuildNone RebuildAction = iota

	// RebuildRecompile means a new program was compiled and linked (and,
	// for the bytecode backend, its memory block uploaded).
	RebuildRecompile

	// RebuildReupload means the memory block and jump table of the bound
	// bytecode program were replaced without relinking.
	RebuildReupload
)

// String returns the action name.
func (a RebuildAction) String() string {
	switch a {
	case RebuildNone:
		return "None"
	case RebuildRecompile:
		return "Recompile"
	case RebuildReupload:
		return "Reupload"
	default:
		return "Unknown"
	}
}

// RebuildOutcome reports one ResolvePendingRebuild call.
type RebuildOutcome struct {
	Action  RebuildAction
	Backend Backend       // active backend when the rebuild ran
	Program ProgramHandle // bound program after the call
	Err     error         // non-nil when Action failed; Program is then unchanged
	Elapsed time.Duration
}

// OK reports whether the rebuild succeeded or nothing had to be done.
func (o RebuildOutcome) OK() bool {
	return o.Err == nil
}
