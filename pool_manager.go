package transient

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/internal/utils"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"github.com/vkngwrapper/arsenal/transient/memutils/metadata"
	"golang.org/x/exp/slog"
)

// PoolManager owns every Pool and every cached committed resource for a device. It lends pools
// to Allocators and takes them back when the Allocator is destroyed. One PoolManager is shared by
// all Allocators of a device and is safe for concurrent use unless it was created with
// PoolManagerCreateExternallySynchronized.
type PoolManager struct {
	logger *slog.Logger
	driver driver.Driver
	mutex  utils.OptionalRWMutex

	createFlags             CreateFlags
	poolSize                int
	poolAlignment           uint
	maxPooledAllocationSize int
	nodeMask                driver.NodeMask
	poolIdleFrames          int
	resourceIdleFrames      int
	strategy                metadata.AllocationStrategy
	completedFenceValue     func() uint64

	allocationInfo *allocationInfoCache
	frame          atomic.Uint64

	nextPoolID int
	pools      []*Pool
	idlePools  []*Pool

	pooledTextures *committedCache
	pooledBuffers  *committedCache

	liveAllocators int
	current        Statistics
	published      Statistics
}

// PoolIndexForSize returns the smallest pool index whose pools can hold an allocation of size bytes
func (m *PoolManager) PoolIndexForSize(size int) int {
	index := 0
	for m.poolSize<<index < size {
		index++
	}
	return index
}

// PoolSizeForIndex returns the heap size of pools with the provided index
func (m *PoolManager) PoolSizeForIndex(poolIndex int) int {
	return memutils.AlignUp(m.poolSize<<poolIndex, m.poolAlignment)
}

// MaxPooledAllocationSize is the largest allocation that will be placed in a pool
func (m *PoolManager) MaxPooledAllocationSize() int { return m.maxPooledAllocationSize }

// NodeMask is the set of GPU nodes every heap is created for
func (m *PoolManager) NodeMask() driver.NodeMask { return m.nodeMask }

// Frame is the number of BeginFrame calls so far
func (m *PoolManager) Frame() uint64 { return m.frame.Load() }

func (m *PoolManager) heapKinds(desc driver.ResourceDesc) driver.HeapFlags {
	if m.createFlags&PoolManagerCreateSeparateResourceHeaps != 0 {
		return desc.HeapFlags()
	}
	return driver.HeapAllowAll
}

// AllocationInfo returns the heap footprint of a resource description
func (m *PoolManager) AllocationInfo(desc driver.ResourceDesc) (driver.AllocationInfo, error) {
	return m.allocationInfo.Get(desc)
}

// GetOrCreatePool returns an idle pool of the requested index and kinds that can hold an
// allocation of size bytes at alignment, or a new pool if none can. The returned pool is lent out
// and must be returned with ReleasePool.
func (m *PoolManager) GetOrCreatePool(poolIndex int, kinds driver.HeapFlags, size int, alignment uint) (*Pool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.getOrCreatePoolLocked(poolIndex, kinds, size, alignment)
}

func (m *PoolManager) lendPool(owner *Allocator, poolIndex int, kinds driver.HeapFlags, size int, alignment uint) (*Pool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	pool, err := m.getOrCreatePoolLocked(poolIndex, kinds, size, alignment)
	if err != nil {
		return nil, err
	}

	pool.owner = owner
	return pool, nil
}

func (m *PoolManager) getOrCreatePoolLocked(poolIndex int, kinds driver.HeapFlags, size int, alignment uint) (*Pool, error) {
	if poolIndex < 0 {
		return nil, errors.Newf("pool index must not be negative, but was %d", poolIndex)
	}

	var completedFence uint64
	checkFence := m.completedFenceValue != nil
	if checkFence {
		completedFence = m.completedFenceValue()
	}

	for index, pool := range m.idlePools {
		if pool.poolIndex != poolIndex || pool.heap.Flags() != kinds {
			continue
		}
		if checkFence && pool.FenceValue() > completedFence {
			continue
		}

		pool.ResetPool()
		if !pool.CanAllocate(size, alignment) {
			continue
		}

		m.idlePools = append(m.idlePools[:index], m.idlePools[index+1:]...)
		pool.setState(PoolStateLentOut)
		pool.idleFrames = 0

		m.logger.Debug("PoolManager::GetOrCreatePool reused",
			slog.Int("pool", pool.id),
			slog.Int("poolIndex", poolIndex),
			slog.Int("size", size),
		)
		return pool, nil
	}

	heapSize := m.PoolSizeForIndex(poolIndex)
	if size > heapSize {
		return nil, errors.Newf("a %d-byte allocation cannot fit pool index %d, whose pools hold %d bytes", size, poolIndex, heapSize)
	}

	heap, err := CreateHeap(m.logger, m.driver, driver.HeapDesc{
		Size:      heapSize,
		Alignment: m.poolAlignment,
		NodeMask:  m.nodeMask,
		Flags:     kinds,
	})
	if err != nil {
		return nil, err
	}

	pool := newPool(m.logger, m.driver, &m.frame, m.nextPoolID, poolIndex, heap, m.strategy, m.mutex.UseMutex)
	m.nextPoolID++
	pool.setState(PoolStateLentOut)
	m.pools = append(m.pools, pool)

	m.logger.Debug("PoolManager::GetOrCreatePool created",
		slog.Int("pool", pool.id),
		slog.Int("poolIndex", poolIndex),
		slog.Int("heapSize", heapSize),
		slog.String("kinds", kinds.String()),
	)
	return pool, nil
}

// ReleasePool returns a lent out pool to the idle set. The pool's heap is not destroyed.
func (m *PoolManager) ReleasePool(pool *Pool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.releasePoolLocked(pool)
}

func (m *PoolManager) releasePoolLocked(pool *Pool) error {
	state := pool.State()
	if state != PoolStateLentOut && state != PoolStateDraining {
		return errors.Newf("pool %d cannot be released while in state %s", pool.id, state)
	}

	if !pool.IsEmpty() {
		m.logger.Warn("PoolManager::ReleasePool pool released with live allocations",
			slog.Int("pool", pool.id),
			slog.Int("allocations", pool.AllocationCount()),
		)
	}

	pool.setState(PoolStateIdle)
	pool.owner = nil
	pool.idleFrames = 0
	m.idlePools = append(m.idlePools, pool)

	return nil
}

// GetPooledTexture removes and returns a cached committed texture created with the same
// description and clear value, if one exists
func (m *PoolManager) GetPooledTexture(desc driver.ResourceDesc, clearValue *driver.ClearValue, debugName string) (*CommittedResource, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.getPooledLocked(m.pooledTextures, newResourceKey(desc, clearValue), debugName)
}

// GetPooledBuffer removes and returns a cached committed buffer created with the same
// description, if one exists
func (m *PoolManager) GetPooledBuffer(desc driver.ResourceDesc, debugName string) (*CommittedResource, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.getPooledLocked(m.pooledBuffers, newResourceKey(desc, nil), debugName)
}

func (m *PoolManager) getPooledLocked(cache *committedCache, key resourceKey, debugName string) (*CommittedResource, bool) {
	resource, ok := cache.pop(key)
	if !ok {
		return nil, false
	}

	resource.placed.touch(m.frame.Load())
	m.logger.Debug("PoolManager::GetPooledResource",
		slog.String("name", debugName),
		slog.String("kind", key.desc.Kind.String()),
		slog.Int("size", resource.size),
	)
	return resource, true
}

func (m *PoolManager) committedCacheFor(kind driver.ResourceKind) *committedCache {
	if kind == driver.ResourceKindTexture {
		return m.pooledTextures
	}
	return m.pooledBuffers
}

func (m *PoolManager) createCommittedResource(
	key resourceKey,
	info driver.AllocationInfo,
	initialState driver.AccessState,
	debugName string,
) (*CommittedResource, error) {
	return createCommittedResource(m.logger, m.driver, m.nodeMask, key, info, initialState, debugName, m.frame.Load())
}

// drainPools moves the pools of a frozen allocator to PoolStateDraining
func (m *PoolManager) drainPools(pools []*Pool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, pool := range pools {
		pool.setState(PoolStateDraining)
	}
}

func (m *PoolManager) registerAllocator() {
	m.mutex.Locked(func() {
		m.liveAllocators++
	})
}

func (m *PoolManager) recordAllocation(size int, committed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.current.TotalRequested += size
	if committed {
		m.current.CommittedAllocations++
		m.current.CommittedAllocated += size
	} else {
		m.current.PoolAllocations++
	}
}

// ReleaseResources is called when an Allocator is destroyed. Every live pooled range of the
// allocator is released, every committed resource is moved to the free-object caches, and
// every pool the allocator borrowed is returned to the idle set.
func (m *PoolManager) ReleaseResources(allocator *Allocator) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	frame := m.frame.Load()
	var err error

	for _, resource := range allocator.resources {
		if resource.committed != nil {
			resource.placed.release()
			m.committedCacheFor(resource.Kind()).push(resource.key, resource.committed, frame)
			continue
		}

		if !resource.released {
			releaseErr := resource.pool.Release(resource, resource.allocation, resource.fenceValue)
			err = errors.CombineErrors(err, releaseErr)
			resource.released = true
		}
		resource.placed.release()
	}

	for _, pool := range allocator.pools {
		err = errors.CombineErrors(err, m.releasePoolLocked(pool))
	}

	m.liveAllocators--
	m.logger.Debug("PoolManager::ReleaseResources",
		slog.String("allocator", allocator.name),
		slog.Int("resources", len(allocator.resources)),
		slog.Int("pools", len(allocator.pools)),
	)

	allocator.resources = nil
	allocator.pools = nil
	return err
}

// BeginFrame advances the frame counter and resets the per-frame statistics
func (m *PoolManager) BeginFrame() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	frame := m.frame.Add(1)
	m.current = Statistics{
		Frame:             frame,
		MaxFrameAllocated: m.current.MaxFrameAllocated,
	}
}

// EndFrame purges pools that have been idle and empty for PoolIdleFrames frames, destroys cached
// resources that have not been reused for ResourceIdleFrames frames, and publishes the frame's
// statistics. Idle pools whose fence has not completed keep their heap and cached resources.
func (m *PoolManager) EndFrame() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	frame := m.frame.Load()
	evictedResources := 0
	purgedPools := 0

	var completedFence uint64
	checkFence := m.completedFenceValue != nil
	if checkFence {
		completedFence = m.completedFenceValue()
	}

	keptIdle := m.idlePools[:0]
	for _, pool := range m.idlePools {
		pool.idleFrames++
		if checkFence && pool.FenceValue() > completedFence {
			keptIdle = append(keptIdle, pool)
			continue
		}

		evictedResources += pool.evictIdleResources(frame, m.resourceIdleFrames)

		if pool.idleFrames >= m.poolIdleFrames && pool.IsEmpty() {
			err := pool.destroy()
			if err == nil {
				purgedPools++
				m.removePoolLocked(pool)
				continue
			}

			m.logger.LogAttrs(context.Background(), slog.LevelError, "PoolManager::EndFrame failed to purge pool",
				slog.Int("pool", pool.id),
				slog.Any("error", err),
			)
		}

		keptIdle = append(keptIdle, pool)
	}
	clear(m.idlePools[len(keptIdle):])
	m.idlePools = keptIdle

	evictedResources += m.pooledTextures.evict(frame, m.resourceIdleFrames)
	evictedResources += m.pooledBuffers.evict(frame, m.resourceIdleFrames)

	var stats memutils.Statistics
	for _, pool := range m.pools {
		pool.AddStatistics(&stats)
	}

	m.current.Frame = frame
	m.current.CurrentPoolAllocated = stats.HeapBytes
	m.current.MaxFrameAllocated = max(m.current.MaxFrameAllocated, m.current.TotalRequested)
	m.current.PoolCount = len(m.pools)
	m.current.IdlePoolCount = len(m.idlePools)
	m.current.CachedCommittedResources = m.pooledTextures.Count() + m.pooledBuffers.Count()
	m.published = m.current

	m.logger.Debug("PoolManager::EndFrame",
		slog.Uint64("frame", frame),
		slog.Int("purgedPools", purgedPools),
		slog.Int("evictedResources", evictedResources),
		slog.Int("totalRequested", m.current.TotalRequested),
	)
}

func (m *PoolManager) removePoolLocked(pool *Pool) {
	for index, candidate := range m.pools {
		if candidate == pool {
			m.pools = append(m.pools[:index], m.pools[index+1:]...)
			return
		}
	}
}

// Statistics returns the snapshot published by the most recent EndFrame
func (m *PoolManager) Statistics() Statistics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.published
}

// Pools returns every live pool, idle or lent out
func (m *PoolManager) Pools() []*Pool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	pools := make([]*Pool, len(m.pools))
	copy(pools, m.pools)
	return pools
}

// IdlePoolCount is the number of pools waiting to be lent out
func (m *PoolManager) IdlePoolCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.idlePools)
}

// Validate checks that every pool is consistent and is either idle or lent out, never both
func (m *PoolManager) Validate() error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	idle := make(map[*Pool]struct{}, len(m.idlePools))
	for _, pool := range m.idlePools {
		state := pool.State()
		if state != PoolStateIdle {
			return errors.Newf("pool %d is in the idle set but is in state %s", pool.id, state)
		}
		idle[pool] = struct{}{}
	}

	for _, pool := range m.pools {
		_, isIdle := idle[pool]
		if !isIdle && pool.State() == PoolStateIdle {
			return errors.Newf("pool %d is idle but missing from the idle set", pool.id)
		}
		if isIdle && pool.owner != nil {
			return errors.Newf("pool %d is in the idle set but is owned by allocator %q", pool.id, pool.owner.name)
		}

		err := pool.Validate()
		if err != nil {
			return err
		}
	}

	return nil
}

// BuildStatsString returns a JSON document describing the pool manager. When detailedMap is true,
// every suballocation of every pool is listed.
func (m *PoolManager) BuildStatsString(detailedMap bool) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("Frame").Int(int(m.frame.Load()))
	obj.Name("Flags").String(m.createFlags.String())
	obj.Name("AllocationInfoHitRatio").Float64(m.allocationInfo.HitRatio())

	statsObj := obj.Name("Statistics").Object()
	statsObj.Name("CurrentPoolAllocated").Int(m.published.CurrentPoolAllocated)
	statsObj.Name("TotalRequested").Int(m.published.TotalRequested)
	statsObj.Name("MaxFrameAllocated").Int(m.published.MaxFrameAllocated)
	statsObj.Name("CommittedAllocated").Int(m.published.CommittedAllocated)
	statsObj.Name("PoolAllocations").Int(m.published.PoolAllocations)
	statsObj.Name("CommittedAllocations").Int(m.published.CommittedAllocations)
	statsObj.End()

	var total memutils.DetailedStatistics
	total.Clear()
	for _, pool := range m.pools {
		pool.AddDetailedStatistics(&total)
	}

	totalObj := obj.Name("Total").Object()
	totalObj.Name("HeapCount").Int(total.HeapCount)
	totalObj.Name("HeapBytes").Int(total.HeapBytes)
	totalObj.Name("AllocationCount").Int(total.AllocationCount)
	totalObj.Name("AllocationBytes").Int(total.AllocationBytes)
	totalObj.Name("UnusedRangeCount").Int(total.UnusedRangeCount)
	if total.AllocationCount > 0 {
		totalObj.Name("AllocationSizeMin").Int(total.AllocationSizeMin)
		totalObj.Name("AllocationSizeMax").Int(total.AllocationSizeMax)
	}
	if total.UnusedRangeCount > 0 {
		totalObj.Name("UnusedRangeSizeMin").Int(total.UnusedRangeSizeMin)
		totalObj.Name("UnusedRangeSizeMax").Int(total.UnusedRangeSizeMax)
	}
	totalObj.End()

	if detailedMap {
		poolsObj := obj.Name("Pools").Object()
		for _, pool := range m.pools {
			poolObj := poolsObj.Name(strconv.Itoa(pool.id)).Object()
			pool.printDetailedMap(poolObj)
			poolObj.End()
		}
		poolsObj.End()

		m.pooledTextures.BuildStatsString(obj.Name("PooledTextures"))
		m.pooledBuffers.BuildStatsString(obj.Name("PooledBuffers"))
	}

	obj.End()
	return string(writer.Bytes())
}

// Destroy destroys every pool and every cached committed resource. It fails if any pool is still
// lent out.
func (m *PoolManager) Destroy() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.liveAllocators > 0 || len(m.idlePools) != len(m.pools) {
		for _, pool := range m.pools {
			if pool.State() == PoolStateIdle {
				continue
			}

			owner := "none"
			if pool.owner != nil {
				owner = pool.owner.name
			}
			m.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] pool still lent out",
				slog.Int("pool", pool.id),
				slog.String("owner", owner),
				slog.Int("allocations", pool.AllocationCount()),
			)
		}

		return errors.Newf("%d allocators are still live and %d pools are still lent out",
			m.liveAllocators, len(m.pools)-len(m.idlePools))
	}

	var err error
	for _, pool := range m.pools {
		err = errors.CombineErrors(err, pool.destroy())
	}
	m.pools = nil
	m.idlePools = nil

	m.pooledTextures.destroyAll()
	m.pooledBuffers.destroyAll()
	m.allocationInfo.Close()

	return err
}
