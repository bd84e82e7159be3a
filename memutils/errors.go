package memutils

import "github.com/pkg/errors"

var (
	// PowerOfTwoError is returned from CheckPow2 when the tested value is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")
	// InvalidRangeError is returned when a Range has a negative offset or a non-positive size
	InvalidRangeError error = errors.New("invalid byte range")
)
