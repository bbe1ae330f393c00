package pipeline

import "errors"

var (
	// ErrPipelineNotFound is returned when a pipeline name is not registered.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrMissingSection is returned when a description lacks a section its pipeline type requires.
	ErrMissingSection = errors.New("missing required section")

	// ErrPresetNotFound is returned when a UsePreset reference names nothing in the store.
	ErrPresetNotFound = errors.New("preset not found")

	// ErrInvalidValue is returned when a description field has the wrong type or an unknown value.
	ErrInvalidValue = errors.New("invalid value")
)
