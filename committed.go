package transient

import (
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"golang.org/x/exp/slog"
)

// CommittedResource is a resource that received a heap of its own because it was too large to
// be pooled. Once its allocator is destroyed it waits in the PoolManager's free-object cache for
// a request with the same description and clear value.
type CommittedResource struct {
	heap   *Heap
	placed *PlacedResource
	size   int
}

func createCommittedResource(
	logger *slog.Logger,
	drv driver.Driver,
	nodeMask driver.NodeMask,
	key resourceKey,
	info driver.AllocationInfo,
	initialState driver.AccessState,
	debugName string,
	frame uint64,
) (*CommittedResource, error) {
	alignment := max(info.Alignment, 1)
	heap, err := CreateHeap(logger, drv, driver.HeapDesc{
		Size:      memutils.AlignUp(info.Size, alignment),
		Alignment: alignment,
		NodeMask:  nodeMask,
		Flags:     key.desc.HeapFlags(),
	})
	if err != nil {
		return nil, err
	}

	placed, err := createPlacedResource(drv, heap, 0, key, initialState, debugName, frame)
	if err != nil {
		heap.Destroy()
		return nil, err
	}

	return &CommittedResource{
		heap:   heap,
		placed: placed,
		size:   info.Size,
	}, nil
}

func (c *CommittedResource) Heap() *Heap               { return c.heap }
func (c *CommittedResource) Placed() *PlacedResource   { return c.placed }
func (c *CommittedResource) Size() int                 { return c.size }
func (c *CommittedResource) Desc() driver.ResourceDesc { return c.placed.key.desc }

// destroy releases the cache's reference to the placed resource and frees the heap. No Resource
// handle may still refer to it.
func (c *CommittedResource) destroy() {
	c.placed.release()
	c.heap.Destroy()
}

// committedCache holds committed resources that no allocator is using, grouped by the key
// they can be reused for
type committedCache struct {
	entries *swiss.Map[resourceKey, []*CommittedResource]
	count   int
}

func newCommittedCache() *committedCache {
	return &committedCache{
		entries: swiss.NewMap[resourceKey, []*CommittedResource](16),
	}
}

func (c *committedCache) push(key resourceKey, resource *CommittedResource, frame uint64) {
	list, _ := c.entries.Get(key)

	resource.placed.touch(frame)
	c.entries.Put(key, append(list, resource))
	c.count++
}

func (c *committedCache) pop(key resourceKey) (*CommittedResource, bool) {
	list, _ := c.entries.Get(key)
	if len(list) == 0 {
		return nil, false
	}

	resource := list[len(list)-1]
	list[len(list)-1] = nil
	if len(list) == 1 {
		c.entries.Delete(key)
	} else {
		c.entries.Put(key, list[:len(list)-1])
	}
	c.count--

	return resource, true
}

func (c *committedCache) evict(frame uint64, threshold int) int {
	var staleKeys []resourceKey
	c.entries.Iter(func(key resourceKey, list []*CommittedResource) bool {
		for _, resource := range list {
			if resource.placed.idleFrames(frame) >= uint64(threshold) {
				staleKeys = append(staleKeys, key)
				break
			}
		}
		return false
	})

	evicted := 0
	for _, key := range staleKeys {
		list, _ := c.entries.Get(key)
		kept := list[:0]
		for _, resource := range list {
			if resource.placed.idleFrames(frame) >= uint64(threshold) {
				resource.destroy()
				evicted++
				continue
			}
			kept = append(kept, resource)
		}

		clear(list[len(kept):])
		if len(kept) == 0 {
			c.entries.Delete(key)
		} else {
			c.entries.Put(key, kept)
		}
	}

	c.count -= evicted
	return evicted
}

func (c *committedCache) destroyAll() {
	c.entries.Iter(func(_ resourceKey, list []*CommittedResource) bool {
		for _, resource := range list {
			resource.destroy()
		}
		return false
	})
	c.entries.Clear()
	c.count = 0
}

func (c *committedCache) Count() int { return c.count }

func (c *committedCache) AddStatistics(stats *memutils.Statistics) {
	c.entries.Iter(func(_ resourceKey, list []*CommittedResource) bool {
		for _, resource := range list {
			stats.AddHeap(resource.heap.Size())
		}
		return false
	})
}

func (c *committedCache) BuildStatsString(writer *jwriter.Writer) {
	s := writer.Array()
	defer s.End()

	c.entries.Iter(func(_ resourceKey, list []*CommittedResource) bool {
		for _, resource := range list {
			o := s.Object()
			o.Name("Kind").String(resource.Desc().Kind.String())
			o.Name("Size").Int(resource.size)
			o.Name("HeapSize").Int(resource.heap.Size())
			o.Name("Nodes").Int(resource.heap.NodeCount())
			o.End()
		}
		return false
	})
}
