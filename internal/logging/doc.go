// Package logging builds the daemon's slog loggers: a console handler for
// interactive use, a JSON handler for machine consumption, and shared field
// name constants so every component logs run ids and phases the same way.
package logging
