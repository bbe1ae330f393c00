package shader

import "errors"

var (
	// ErrEntryPointNotFound is returned when the requested entry point is not declared in the source.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")

	// ErrStageMismatch is returned when the entry point is declared for a different stage.
	ErrStageMismatch = errors.New("shader: entry point stage mismatch")
)
