// Package logging builds the slog loggers used by the receiver daemon and CLI.
//
// It provides console and JSON handlers, helper attribute constructors, the
// canonical field names shared across components, and retention pruning for
// the log directory. Components obtain scoped loggers through
// NewComponentLogger so every line carries a component attribute.
package logging
