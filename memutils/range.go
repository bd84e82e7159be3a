package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

// Range is a half-open span of bytes [Offset, Offset+Size) within a heap
type Range struct {
	Offset int
	Size   int
}

func (r Range) End() int {
	return r.Offset + r.Size
}

func (r Range) IsEmpty() bool {
	return r.Size <= 0
}

// Overlaps reports whether the two ranges share at least one byte
func (r Range) Overlaps(other Range) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}
	return r.Offset < other.End() && other.Offset < r.End()
}

// Contains reports whether every byte of other lies within r
func (r Range) Contains(other Range) bool {
	return other.Offset >= r.Offset && other.End() <= r.End()
}

// Subtract removes other from r. When other lies strictly inside r, both remaining
// pieces are returned; otherwise second is empty.
func (r Range) Subtract(other Range) (first Range, second Range) {
	if !r.Overlaps(other) {
		return r, Range{}
	}

	if other.Offset > r.Offset {
		first = Range{Offset: r.Offset, Size: other.Offset - r.Offset}
	}
	if other.End() < r.End() {
		tail := Range{Offset: other.End(), Size: r.End() - other.End()}
		if first.IsEmpty() {
			first = tail
		} else {
			second = tail
		}
	}

	return first, second
}

func (r Range) Validate() error {
	if r.Offset < 0 || r.Size <= 0 {
		return cerrors.Wrapf(InvalidRangeError, "offset %d, size %d", r.Offset, r.Size)
	}
	return nil
}
