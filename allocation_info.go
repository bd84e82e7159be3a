package transient

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/maypok86/otter"
	"github.com/vkngwrapper/arsenal/transient/driver"
)

// allocationInfoCache remembers the heap footprint of each resource description so that the
// driver is queried once per shape rather than once per request. It is safe for concurrent use.
type allocationInfoCache struct {
	driver driver.Driver
	cache  otter.Cache[driver.ResourceDesc, driver.AllocationInfo]
}

func newAllocationInfoCache(drv driver.Driver, capacity int) (*allocationInfoCache, error) {
	if capacity < 1 {
		return nil, errors.Newf("allocation info cache capacity must be positive, but was %d", capacity)
	}

	cache, err := otter.MustBuilder[driver.ResourceDesc, driver.AllocationInfo](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build allocation info cache")
	}

	return &allocationInfoCache{
		driver: drv,
		cache:  cache,
	}, nil
}

func (c *allocationInfoCache) Get(desc driver.ResourceDesc) (driver.AllocationInfo, error) {
	info, ok := c.cache.Get(desc)
	if ok {
		return info, nil
	}

	info, err := c.driver.GetResourceAllocationInfo(desc)
	if err != nil {
		return driver.AllocationInfo{}, errors.Wrapf(err, "failed to query the heap footprint of a %s", desc.Kind)
	}
	if info.Size < 1 {
		return driver.AllocationInfo{}, errors.Newf("driver reported a %d-byte footprint for a %s", info.Size, desc.Kind)
	}
	if info.Alignment == 0 {
		info.Alignment = 1
	}

	c.cache.Set(desc, info)
	return info, nil
}

func (c *allocationInfoCache) HitRatio() float64 {
	ratio := c.cache.Stats().Ratio()
	if math.IsNaN(ratio) {
		return 0
	}
	return ratio
}

func (c *allocationInfoCache) Close() {
	c.cache.Close()
}
