// Package checkpoint records per-dataset processing progress in a single
// JSON file so an interrupted run can resume without repeating completed
// work. Each dataset filename maps to a bitmask of flags; every mutation is
// persisted with a write-then-rename so a crash never leaves a torn file.
package checkpoint
