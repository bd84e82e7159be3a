package transient

import (
	"github.com/dolthub/maphash"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"github.com/vkngwrapper/arsenal/transient/memutils/metadata"
)

type allocationHashKey struct {
	heap     *Heap
	offset   int
	size     int
	descHash uint64
}

var allocationHasher = maphash.NewHasher[allocationHashKey]()

// Resource is a handle to a buffer or texture created by an Allocator. It is valid until the
// Allocator that created it is destroyed.
type Resource struct {
	name         string
	key          resourceKey
	initialState driver.AccessState
	allocation   memutils.Range
	hash         uint64

	owner     *Allocator
	pool      *Pool
	handle    metadata.BlockAllocationHandle
	committed *CommittedResource
	placed    *PlacedResource

	released   bool
	fenceValue uint64
}

func newResource(owner *Allocator, name string, key resourceKey, state driver.AccessState, heap *Heap, allocation memutils.Range, placed *PlacedResource) *Resource {
	placed.acquire()

	return &Resource{
		name:         name,
		key:          key,
		initialState: state,
		allocation:   allocation,
		hash: allocationHasher.Hash(allocationHashKey{
			heap:     heap,
			offset:   allocation.Offset,
			size:     allocation.Size,
			descHash: key.desc.Hash(),
		}),
		owner:  owner,
		handle: metadata.NoAllocation,
		placed: placed,
	}
}

func (r *Resource) Name() string                     { return r.name }
func (r *Resource) Desc() driver.ResourceDesc        { return r.key.desc }
func (r *Resource) Kind() driver.ResourceKind        { return r.key.desc.Kind }
func (r *Resource) ClearValue() *driver.ClearValue   { return r.key.clearValue() }
func (r *Resource) InitialState() driver.AccessState { return r.initialState }

// Offset is the byte offset of the resource within its heap. Committed resources are always at 0.
func (r *Resource) Offset() int { return r.allocation.Offset }

// Size is the heap footprint of the resource, as reported by the driver
func (r *Resource) Size() int { return r.allocation.Size }

func (r *Resource) Range() memutils.Range { return r.allocation }

// AllocationHash identifies the heap placement of this resource: two resources with the same
// description placed at the same range of the same heap share a hash
func (r *Resource) AllocationHash() uint64 { return r.hash }

// IsCommitted is true for resources that received a dedicated heap instead of a pool range
func (r *Resource) IsCommitted() bool { return r.committed != nil }

// IsReleased is true once the resource has been deallocated
func (r *Resource) IsReleased() bool { return r.released }

// FenceValue is the fence value the resource was deallocated with
func (r *Resource) FenceValue() uint64 { return r.fenceValue }

// Pool is the pool the resource was placed in, or nil for committed resources
func (r *Resource) Pool() *Pool { return r.pool }

func (r *Resource) NodeCount() int { return r.placed.NodeCount() }

// Native returns the native object for the nodeIndex-th node
func (r *Resource) Native(nodeIndex int) driver.NativeResource {
	return r.placed.Native(nodeIndex)
}

func (r *Resource) heap() *Heap {
	if r.committed != nil {
		return r.committed.heap
	}
	return r.pool.heap
}
