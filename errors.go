package transient

import "github.com/cockroachdb/errors"

var (
	// ErrDriverFailure marks errors returned when the driver failed to create a heap or placed
	// resource. These errors are fatal: the allocator does not retry.
	ErrDriverFailure = errors.New("driver failed to create a native object")
	// ErrAllocatorFrozen is returned from create calls made after Allocator.Freeze
	ErrAllocatorFrozen = errors.New("transient allocator is frozen")
	// ErrAllocatorDestroyed is returned from calls made after Allocator.Destroy
	ErrAllocatorDestroyed = errors.New("transient allocator has been destroyed")
	// ErrDoubleFree is returned when a resource is deallocated twice
	ErrDoubleFree = errors.New("resource has already been deallocated")
	// ErrForeignResource is returned when a resource is deallocated through an allocator that did
	// not create it
	ErrForeignResource = errors.New("resource does not belong to this allocator")
	// ErrConflictingUsage is returned when a texture requests both render target and depth-stencil usage
	ErrConflictingUsage = errors.New("texture cannot be both a render target and a depth-stencil target")
)

func driverFailure(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrDriverFailure)
}
