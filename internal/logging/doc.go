// Package logging wires log/slog for the daemon: format and level selection
// from config (console for terminals, JSON otherwise), multi-destination
// output, attribute helpers, and context-derived job/stage fields.
package logging
