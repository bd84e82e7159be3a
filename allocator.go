package transient

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"golang.org/x/exp/slog"
)

// Allocator creates the transient textures and buffers of a single session, typically one frame.
// It borrows pools from its PoolManager and returns them, along with every resource it created,
// when it is destroyed.
//
// An Allocator must only be used from one goroutine at a time. Any number of Allocators may share
// a PoolManager concurrently.
type Allocator struct {
	logger  *slog.Logger
	name    string
	manager *PoolManager

	pools     []*Pool
	resources []*Resource
	overlaps  *swiss.Map[*Resource, []*Resource]

	frozen    bool
	destroyed bool
	stats     AllocatorStatistics
}

// NewAllocator creates an Allocator that draws its pools from manager
func NewAllocator(manager *PoolManager, name string) *Allocator {
	manager.registerAllocator()

	return &Allocator{
		logger:   manager.logger,
		name:     name,
		manager:  manager,
		overlaps: swiss.NewMap[*Resource, []*Resource](32),
	}
}

func (a *Allocator) Name() string                    { return a.name }
func (a *Allocator) IsFrozen() bool                  { return a.frozen }
func (a *Allocator) IsDestroyed() bool               { return a.destroyed }
func (a *Allocator) Statistics() AllocatorStatistics { return a.stats }

// Resources returns every resource created by the allocator, in creation order
func (a *Allocator) Resources() []*Resource {
	resources := make([]*Resource, len(a.resources))
	copy(resources, a.resources)
	return resources
}

// Pools returns the pools the allocator has borrowed, in the order they were borrowed
func (a *Allocator) Pools() []*Pool {
	pools := make([]*Pool, len(a.pools))
	copy(pools, a.pools)
	return pools
}

func (a *Allocator) checkCreate() error {
	if a.destroyed {
		return ErrAllocatorDestroyed
	}
	if a.frozen {
		return ErrAllocatorFrozen
	}
	return nil
}

// CreateTexture creates a texture. Textures with color attachment usage start in
// StateRenderTarget, textures with depth-stencil attachment usage start in StateDepthWrite,
// and all others start in StateUnorderedAccess. clearValue may be nil.
func (a *Allocator) CreateTexture(desc driver.ResourceDesc, clearValue *driver.ClearValue, debugName string) (*Resource, error) {
	err := a.checkCreate()
	if err != nil {
		return nil, err
	}
	if desc.Kind != driver.ResourceKindTexture {
		return nil, errors.Newf("CreateTexture received a %s description", desc.Kind)
	}

	initialState := driver.StateUnorderedAccess
	switch {
	case desc.IsRenderTarget() && desc.IsDepthStencil():
		return nil, errors.Wrapf(ErrConflictingUsage, "texture %q", debugName)
	case desc.IsRenderTarget():
		initialState = driver.StateRenderTarget
	case desc.IsDepthStencil():
		initialState = driver.StateDepthWrite
	}

	return a.createResource(newResourceKey(desc, clearValue), initialState, debugName)
}

// CreateBuffer creates a buffer. Buffers always start in StateUnorderedAccess.
func (a *Allocator) CreateBuffer(desc driver.ResourceDesc, debugName string) (*Resource, error) {
	err := a.checkCreate()
	if err != nil {
		return nil, err
	}
	if desc.Kind != driver.ResourceKindBuffer {
		return nil, errors.Newf("CreateBuffer received a %s description", desc.Kind)
	}

	return a.createResource(newResourceKey(desc, nil), driver.StateUnorderedAccess, debugName)
}

func (a *Allocator) createResource(key resourceKey, initialState driver.AccessState, debugName string) (*Resource, error) {
	err := key.desc.Validate()
	if err != nil {
		return nil, err
	}

	info, err := a.manager.AllocationInfo(key.desc)
	if err != nil {
		return nil, err
	}
	err = memutils.CheckPow2(info.Alignment, "resource alignment")
	if err != nil {
		return nil, err
	}

	var resource *Resource
	if info.Size > a.manager.MaxPooledAllocationSize() {
		resource, err = a.createCommitted(key, info, initialState, debugName)
	} else {
		resource, err = a.createPooled(key, info, initialState, debugName)
	}
	if err != nil {
		return nil, err
	}

	a.resources = append(a.resources, resource)
	a.stats.addAllocation(info.Size, resource.IsCommitted())
	a.manager.recordAllocation(info.Size, resource.IsCommitted())

	a.logger.Debug("Allocator::CreateResource",
		slog.String("allocator", a.name),
		slog.String("name", debugName),
		slog.String("kind", key.desc.Kind.String()),
		slog.Int("offset", resource.Offset()),
		slog.Int("size", resource.Size()),
		slog.Bool("committed", resource.IsCommitted()),
	)
	return resource, nil
}

func (a *Allocator) createPooled(key resourceKey, info driver.AllocationInfo, initialState driver.AccessState, debugName string) (*Resource, error) {
	kinds := a.manager.heapKinds(key.desc)
	poolIndex := a.manager.PoolIndexForSize(info.Size)

	var pool *Pool
	var allocation Allocation
	for _, candidate := range a.pools {
		if candidate.State() != PoolStateLentOut || candidate.poolIndex != poolIndex || candidate.heap.Flags() != kinds {
			continue
		}

		var ok bool
		allocation, ok = candidate.TryAllocate(info.Size, info.Alignment)
		if ok {
			pool = candidate
			break
		}
	}

	if pool == nil {
		var err error
		pool, err = a.manager.lendPool(a, poolIndex, kinds, info.Size, info.Alignment)
		if err != nil {
			return nil, err
		}
		a.pools = append(a.pools, pool)

		var ok bool
		allocation, ok = pool.TryAllocate(info.Size, info.Alignment)
		if !ok {
			return nil, errors.AssertionFailedf("pool %d was lent out for a %d-byte allocation it cannot hold", pool.id, info.Size)
		}
	}

	resource, overlapping, err := pool.placeResource(a, allocation, key, initialState, debugName)
	if err != nil {
		return nil, err
	}

	a.overlaps.Put(resource, overlapping)
	return resource, nil
}

func (a *Allocator) createCommitted(key resourceKey, info driver.AllocationInfo, initialState driver.AccessState, debugName string) (*Resource, error) {
	var committed *CommittedResource
	var ok bool
	if key.desc.Kind == driver.ResourceKindTexture {
		committed, ok = a.manager.GetPooledTexture(key.desc, key.clearValue(), debugName)
	} else {
		committed, ok = a.manager.GetPooledBuffer(key.desc, debugName)
	}

	if !ok {
		var err error
		committed, err = a.manager.createCommittedResource(key, info, initialState, debugName)
		if err != nil {
			return nil, err
		}
	}

	resource := newResource(a, debugName, key, initialState, committed.heap, memutils.Range{Size: info.Size}, committed.placed)
	resource.committed = committed

	return resource, nil
}

// DeallocateMemory releases the memory of a resource created by this allocator. fenceValue is the
// point on the GPU timeline after which the resource's bytes are no longer in use. The resource
// handle stays readable until the allocator is destroyed.
func (a *Allocator) DeallocateMemory(resource *Resource, fenceValue uint64) error {
	if a.destroyed {
		return ErrAllocatorDestroyed
	}
	if resource == nil || resource.owner != a {
		return ErrForeignResource
	}
	if resource.released {
		return errors.Wrapf(ErrDoubleFree, "resource %q", resource.name)
	}

	if resource.pool != nil {
		err := resource.pool.Release(resource, resource.allocation, fenceValue)
		if err != nil {
			return err
		}
	}

	resource.released = true
	resource.fenceValue = fenceValue
	a.stats.removeAllocation(resource.Size())

	return nil
}

// Freeze ends the allocation phase of the session. Create calls made afterward fail with
// ErrAllocatorFrozen. The allocator keeps its resources until it is destroyed. Freezing a frozen
// allocator does nothing.
func (a *Allocator) Freeze() error {
	if a.destroyed {
		return ErrAllocatorDestroyed
	}
	if a.frozen {
		return nil
	}

	a.frozen = true
	a.manager.drainPools(a.pools)

	a.logger.Debug("Allocator::Freeze",
		slog.String("allocator", a.name),
		slog.Int("resources", len(a.resources)),
		slog.Int("pools", len(a.pools)),
	)
	return nil
}

// GetOverlappingResources returns the resources created earlier by this allocator whose bytes
// resource was placed over. The caller must place an aliasing barrier between their last use and
// the first use of resource.
func (a *Allocator) GetOverlappingResources(resource *Resource) []*Resource {
	overlapping, _ := a.overlaps.Get(resource)
	return overlapping
}

// Destroy returns every borrowed pool and every created resource to the PoolManager. Resources
// that were never deallocated are released as if deallocated with their last fence value.
func (a *Allocator) Destroy() error {
	if a.destroyed {
		return ErrAllocatorDestroyed
	}

	unreleased := 0
	for _, resource := range a.resources {
		if !resource.released && !resource.IsCommitted() {
			unreleased++
		}
	}
	if unreleased > 0 {
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "Allocator::Destroy releasing live resources",
			slog.String("allocator", a.name),
			slog.Int("resources", unreleased),
		)
	}

	err := a.manager.ReleaseResources(a)
	a.destroyed = true
	a.overlaps.Clear()
	return err
}
