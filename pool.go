package transient

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/internal/utils"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"github.com/vkngwrapper/arsenal/transient/memutils/metadata"
	"golang.org/x/exp/slog"
)

// PoolState is the lifecycle stage of a Pool
type PoolState uint32

const (
	// PoolStateIdle pools are held by the PoolManager and can be lent to an Allocator
	PoolStateIdle PoolState = iota
	// PoolStateLentOut pools are used exclusively by one Allocator
	PoolStateLentOut
	// PoolStateDraining pools belong to a frozen Allocator and receive no new allocations
	PoolStateDraining
	// PoolStatePurged pools have had their heap destroyed and can never be used again
	PoolStatePurged
)

var poolStateMapping = map[PoolState]string{
	PoolStateIdle:     "PoolStateIdle",
	PoolStateLentOut:  "PoolStateLentOut",
	PoolStateDraining: "PoolStateDraining",
	PoolStatePurged:   "PoolStatePurged",
}

func (s PoolState) String() string {
	return poolStateMapping[s]
}

// Allocation is a range of a Pool's heap handed out by Pool.TryAllocate
type Allocation struct {
	Range  memutils.Range
	handle metadata.BlockAllocationHandle
}

type activeRecord struct {
	allocation memutils.Range
	active     memutils.Range
	resource   *Resource
}

// Pool sub-allocates the bytes of a single Heap. It caches the placed resource objects created
// at each offset so that a resource of the same shape placed at the same offset in a later frame
// reuses the native object, and it tracks which bytes were last used by which resource so that
// aliasing can be reported.
//
// A lent out pool is mutated by its owning Allocator while the PoolManager reads it for
// statistics and validation, so every method takes the pool's own lock. The PoolManager's lock,
// when held, is always taken first.
type Pool struct {
	logger *slog.Logger
	driver driver.Driver
	frame  *atomic.Uint64
	mutex  utils.OptionalRWMutex

	id        int
	poolIndex int
	heap      *Heap
	metadata  metadata.BlockMetadata
	strategy  metadata.AllocationStrategy

	state      PoolState
	owner      *Allocator
	fenceValue uint64
	idleFrames int

	activeRecords []activeRecord
	resources     *swiss.Map[int, *PlacedResource]
}

func newPool(
	logger *slog.Logger,
	drv driver.Driver,
	frame *atomic.Uint64,
	id int,
	poolIndex int,
	heap *Heap,
	strategy metadata.AllocationStrategy,
	useMutex bool,
) *Pool {
	pool := &Pool{
		logger:    logger,
		driver:    drv,
		frame:     frame,
		mutex:     utils.OptionalRWMutex{UseMutex: useMutex},
		id:        id,
		poolIndex: poolIndex,
		heap:      heap,
		metadata:  metadata.NewFreeListBlockMetadata(),
		strategy:  strategy,
		state:     PoolStateIdle,
		resources: swiss.NewMap[int, *PlacedResource](8),
	}
	pool.metadata.Init(heap.Size())

	return pool
}

func (p *Pool) ID() int                 { return p.id }
func (p *Pool) PoolIndex() int          { return p.poolIndex }
func (p *Pool) Heap() *Heap             { return p.heap }
func (p *Pool) Kinds() driver.HeapFlags { return p.heap.Flags() }

func (p *Pool) State() PoolState {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.state
}

func (p *Pool) setState(state PoolState) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.state = state
}

func (p *Pool) FenceValue() uint64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.fenceValue
}

func (p *Pool) AllocationCount() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.metadata.AllocationCount()
}

func (p *Pool) CachedResources() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.resources.Count()
}

func (p *Pool) SumFreeSize() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.metadata.SumFreeSize()
}

func (p *Pool) IsEmpty() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.metadata.IsEmpty()
}

// TryAllocate reserves size bytes at an offset aligned to alignment. It returns false when no
// free range can hold the request.
func (p *Pool) TryAllocate(size int, alignment uint) (Allocation, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	success, request, err := p.metadata.CreateAllocationRequest(size, alignment, p.strategy)
	if err != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelError, "Pool::TryAllocate rejected request",
			slog.Int("pool", p.id),
			slog.Int("size", size),
			slog.Any("error", err),
		)
		return Allocation{}, false
	}
	if !success {
		return Allocation{}, false
	}

	err = p.metadata.Alloc(request, nil)
	if err != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelError, "Pool::TryAllocate failed to commit request",
			slog.Int("pool", p.id),
			slog.Int("size", size),
			slog.Any("error", err),
		)
		return Allocation{}, false
	}

	return Allocation{
		Range:  memutils.Range{Offset: request.Item.Offset, Size: request.Size},
		handle: request.BlockAllocationHandle,
	}, true
}

// CanAllocate reports whether TryAllocate would currently succeed, without reserving anything
func (p *Pool) CanAllocate(size int, alignment uint) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	success, _, err := p.metadata.CreateAllocationRequest(size, alignment, p.strategy)
	return err == nil && success
}

// FindOrCreateResourceAt returns the cached placed resource at offset if it was created with
// the same description and clear value. Otherwise any cached resource at offset is evicted and a
// new placed resource is created. The returned resource is still owned by the cache: callers
// that hold on to it must acquire their own reference.
func (p *Pool) FindOrCreateResourceAt(
	offset int,
	desc driver.ResourceDesc,
	initialState driver.AccessState,
	clearValue *driver.ClearValue,
	debugName string,
) (*PlacedResource, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.findOrCreateResourceLocked(offset, newResourceKey(desc, clearValue), initialState, debugName)
}

func (p *Pool) findOrCreateResourceLocked(offset int, key resourceKey, initialState driver.AccessState, debugName string) (*PlacedResource, error) {
	frame := p.frame.Load()

	cached, ok := p.resources.Get(offset)
	if ok && cached.key == key {
		cached.touch(frame)
		return cached, nil
	}
	if ok {
		p.logger.Debug("Pool::FindOrCreateResourceAt evicting incompatible resource",
			slog.Int("pool", p.id),
			slog.Int("offset", offset),
			slog.String("kind", cached.key.desc.Kind.String()),
		)
		p.resources.Delete(offset)
		cached.release()
	}

	placed, err := createPlacedResource(p.driver, p.heap, offset, key, initialState, debugName, frame)
	if err != nil {
		return nil, err
	}

	p.resources.Put(offset, placed)
	return placed, nil
}

// placeResource binds a new Resource owned by owner to allocation, which must have been reserved
// with TryAllocate. It returns the resource along with the earlier resources it overlaps. On
// failure the allocation is returned to the free list.
func (p *Pool) placeResource(
	owner *Allocator,
	allocation Allocation,
	key resourceKey,
	initialState driver.AccessState,
	debugName string,
) (resource *Resource, overlapping []*Resource, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	defer func() {
		if err != nil {
			freeErr := p.metadata.Free(allocation.handle)
			err = errors.CombineErrors(err, freeErr)
		}
	}()

	placed, err := p.findOrCreateResourceLocked(allocation.Range.Offset, key, initialState, debugName)
	if err != nil {
		return nil, nil, err
	}

	resource = newResource(owner, debugName, key, initialState, p.heap, allocation.Range, placed)
	resource.pool = p
	resource.handle = allocation.handle

	err = p.metadata.SetAllocationUserData(allocation.handle, resource)
	if err != nil {
		placed.release()
		return nil, nil, err
	}

	overlapping = p.checkActiveResourcesLocked(allocation.Range)
	p.recordActiveLocked(allocation.Range, resource)

	return resource, overlapping, nil
}

// CheckActiveResources returns the resources whose active range intersects allocation, in the
// order they were allocated
func (p *Pool) CheckActiveResources(allocation memutils.Range) []*Resource {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.checkActiveResourcesLocked(allocation)
}

func (p *Pool) checkActiveResourcesLocked(allocation memutils.Range) []*Resource {
	var overlapping []*Resource
	for _, record := range p.activeRecords {
		if record.active.Overlaps(allocation) {
			overlapping = append(overlapping, record.resource)
		}
	}

	return overlapping
}

// recordActive makes resource the most recent user of allocation. Earlier records lose the
// part of their active range that allocation covers, when that part is a prefix, a suffix,
// or the whole range. A record covered in the middle keeps its full active range.
func (p *Pool) recordActive(allocation memutils.Range, resource *Resource) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.recordActiveLocked(allocation, resource)
}

func (p *Pool) recordActiveLocked(allocation memutils.Range, resource *Resource) {
	kept := p.activeRecords[:0]
	for _, record := range p.activeRecords {
		if record.active.Overlaps(allocation) {
			first, second := record.active.Subtract(allocation)
			if first.IsEmpty() {
				continue
			}
			if second.IsEmpty() {
				record.active = first
			}
		}

		kept = append(kept, record)
	}

	clear(p.activeRecords[len(kept):])
	p.activeRecords = append(kept, activeRecord{
		allocation: allocation,
		active:     allocation,
		resource:   resource,
	})
}

// Release returns allocation to the free list. The placed resource at that offset stays cached.
func (p *Pool) Release(resource *Resource, allocation memutils.Range, fenceValue uint64) error {
	p.mutex.Lock()
	err := p.releaseLocked(resource, allocation, fenceValue)
	p.mutex.Unlock()
	if err != nil {
		return err
	}

	memutils.DebugValidate(p)
	return nil
}

func (p *Pool) releaseLocked(resource *Resource, allocation memutils.Range, fenceValue uint64) error {
	if resource.pool != p {
		return errors.Wrapf(ErrForeignResource, "resource %q was not allocated from pool %d", resource.name, p.id)
	}
	if resource.allocation != allocation {
		return errors.Newf("resource %q occupies [%d, %d) of pool %d, not [%d, %d)",
			resource.name, resource.allocation.Offset, resource.allocation.End(), p.id, allocation.Offset, allocation.End())
	}

	err := p.metadata.Free(resource.handle)
	if err != nil {
		return errors.Wrapf(err, "failed to release resource %q from pool %d", resource.name, p.id)
	}

	p.fenceValue = max(p.fenceValue, fenceValue)
	return nil
}

// ResetPool prepares the pool for a new owner. Active records are dropped. A pool with no live
// allocations is returned to a single free range; otherwise its allocations stay in place.
func (p *Pool) ResetPool() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	clear(p.activeRecords)
	p.activeRecords = p.activeRecords[:0]

	if p.metadata.IsEmpty() {
		p.metadata.Clear()
	}
}

func (p *Pool) evictIdleResources(frame uint64, threshold int) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var stale []int
	p.resources.Iter(func(offset int, placed *PlacedResource) bool {
		if placed.idleFrames(frame) >= uint64(threshold) {
			stale = append(stale, offset)
		}
		return false
	})

	for _, offset := range stale {
		placed, _ := p.resources.Get(offset)
		p.resources.Delete(offset)
		placed.release()
	}

	return len(stale)
}

func (p *Pool) destroy() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.metadata.IsEmpty() {
		err := p.metadata.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
			if free {
				return nil
			}

			name := "empty"
			if resource, ok := userData.(*Resource); ok && resource.name != "" {
				name = resource.name
			}
			p.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased pool allocation",
				slog.Int("pool", p.id),
				slog.Int("offset", offset),
				slog.Int("size", size),
				slog.String("name", name),
			)
			return nil
		})
		if err != nil {
			p.logger.LogAttrs(context.Background(), slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		return errors.Newf("pool %d still has %d live allocations", p.id, p.metadata.AllocationCount())
	}

	p.resources.Iter(func(offset int, placed *PlacedResource) bool {
		placed.release()
		return false
	})
	p.resources.Clear()
	p.activeRecords = nil

	p.heap.Destroy()
	p.state = PoolStatePurged
	return nil
}

func (p *Pool) Validate() error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.state == PoolStatePurged {
		return errors.Newf("pool %d has been purged", p.id)
	}
	if p.heap.IsDestroyed() {
		return errors.Newf("pool %d has no heap", p.id)
	}
	if p.metadata.Size() != p.heap.Size() {
		return errors.Newf("pool %d tracks %d bytes but its heap holds %d", p.id, p.metadata.Size(), p.heap.Size())
	}

	heapRange := memutils.Range{Size: p.heap.Size()}
	var err error
	p.resources.Iter(func(offset int, placed *PlacedResource) bool {
		if placed.offset != offset {
			err = errors.Newf("pool %d caches a resource placed at %d under offset %d", p.id, placed.offset, offset)
			return true
		}
		if offset < 0 || offset >= heapRange.End() {
			err = errors.Newf("pool %d caches a resource at offset %d outside its heap", p.id, offset)
			return true
		}
		if placed.RefCount() < 1 {
			err = errors.Newf("pool %d caches a destroyed resource at offset %d", p.id, offset)
			return true
		}
		return false
	})
	if err != nil {
		return err
	}

	for _, record := range p.activeRecords {
		if !heapRange.Contains(record.allocation) || !record.allocation.Contains(record.active) {
			return errors.Newf("pool %d has an active record [%d, %d) outside its allocation [%d, %d)",
				p.id, record.active.Offset, record.active.End(), record.allocation.Offset, record.allocation.End())
		}
	}

	return p.metadata.Validate()
}

func (p *Pool) AddStatistics(stats *memutils.Statistics) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	p.metadata.AddStatistics(stats)
}

func (p *Pool) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	p.metadata.AddDetailedStatistics(stats)
}

func (p *Pool) printDetailedMap(json jwriter.ObjectState) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	json.Name("State").String(p.state.String())
	json.Name("PoolIndex").Int(p.poolIndex)
	json.Name("Flags").String(p.heap.Flags().String())
	json.Name("Nodes").Int(p.heap.NodeCount())
	json.Name("FenceValue").Float64(float64(p.fenceValue))
	json.Name("CachedResources").Int(p.resources.Count())
	json.Name("ActiveRecords").Int(len(p.activeRecords))
	p.metadata.BlockJsonData(json)

	suballocations := json.Name("Suballocations").Array()
	_ = p.metadata.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
		obj := suballocations.Object()
		obj.Name("Offset").Int(offset)
		obj.Name("Size").Int(size)
		if free {
			obj.Name("Type").String("FREE")
		} else if resource, ok := userData.(*Resource); ok {
			obj.Name("Type").String(resource.Kind().String())
			obj.Name("Name").String(resource.name)
			obj.Name("InitialState").String(resource.initialState.String())
		}
		obj.End()
		return nil
	})
	suballocations.End()
}
