package engine

import "errors"

// Error kinds surfaced across the engine boundary. Everything else is
// repaired in place and logged.
var (
	// ErrConfigInvalid rejects construction or reset with a bad config.
	ErrConfigInvalid = errors.New("config invalid")
	// ErrUnknownParameter rejects a runtime update for a name outside the
	// recognized parameter space.
	ErrUnknownParameter = errors.New("unknown parameter")
)
