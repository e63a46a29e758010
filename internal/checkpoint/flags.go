package checkpoint

import "strings"

// Flag is a bitmask recording how far a dataset has progressed through the
// pipeline. The on-disk values are part of the checkpoint file format and
// must not be renumbered.
type Flag int

const (
	FlagNone   Flag = 0
	FlagExists Flag = 1
	FlagMoved  Flag = 2
	FlagLocked Flag = 4
)

// Has reports whether every bit of other is set in f.
func (f Flag) Has(other Flag) bool {
	return f&other == other && other != FlagNone
}

// String implements fmt.Stringer.
func (f Flag) String() string {
	if f == FlagNone {
		return "none"
	}
	parts := make([]string, 0, 3)
	if f.Has(FlagExists) {
		parts = append(parts, "exists")
	}
	if f.Has(FlagMoved) {
		parts = append(parts, "moved")
	}
	if f.Has(FlagLocked) {
		parts = append(parts, "locked")
	}
	return strings.Join(parts, "|")
}
