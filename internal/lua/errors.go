package lua

import "errors"

var (
	// ErrNilRuntime is returned when a nil runtime is passed to a function that requires one.
	ErrNilRuntime = errors.New("runtime cannot be nil")

	// ErrResourceLimit is returned when a script exceeds its CPU or memory limit.
	ErrResourceLimit = errors.New("Lua resource limit exceeded")

	// ErrBadArgument is returned when a gbuf function receives a value that
	// cannot become a command argument.
	ErrBadArgument = errors.New("unsupported argument type")
)
