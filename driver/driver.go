package driver

//go:generate mockgen -source driver.go -destination mocks/driver.go -package mocks

// Driver is the graphics API boundary of the transient allocator. Heaps and placed resources are
// never created any other way.
type Driver interface {
	// CreateHeap allocates a native heap of exactly desc.Size bytes. desc.NodeMask always has
	// exactly one bit set: multi-node heaps are built from one native heap per node.
	CreateHeap(desc HeapDesc) (NativeHeap, error)
	// CreatePlacedResource creates a resource object at offset bytes into heap. The resource does
	// not own its memory. clearValue is nil for buffers and for textures without an optimized
	// clear value.
	CreatePlacedResource(
		heap NativeHeap,
		offset int,
		desc ResourceDesc,
		initialState AccessState,
		clearValue *ClearValue,
		debugName string,
	) (NativeResource, error)
	// GetResourceAllocationInfo returns the size and alignment that a resource with the provided
	// description requires within a heap
	GetResourceAllocationInfo(desc ResourceDesc) (AllocationInfo, error)
}

// NativeHeap is a driver-owned heap of memory for a single GPU node
type NativeHeap interface {
	Destroy()
}

// NativeResource is a driver-owned buffer or texture object placed within a NativeHeap
type NativeResource interface {
	Destroy()
}

// AllocationInfo is the heap footprint of a resource description
type AllocationInfo struct {
	Size      int
	Alignment uint
}

// HeapDesc describes a native heap to be created by Driver.CreateHeap
type HeapDesc struct {
	Size      int
	Alignment uint
	NodeMask  NodeMask
	Flags     HeapFlags
}
