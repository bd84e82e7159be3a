package transient

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/driver/mocks"
	"github.com/vkngwrapper/core/v2/core1_0"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

const (
	testPoolSize      = 1 << 20
	testPoolAlignment = 64 * 1024
	bytesPerTexel     = 4
)

// nativeCounts tracks every native object created through the mock driver
type nativeCounts struct {
	mutex sync.Mutex

	heapDescs          []driver.HeapDesc
	heapsDestroyed     int
	placements         []int
	resourcesDestroyed int
}

func (c *nativeCounts) liveHeaps() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.heapDescs) - c.heapsDestroyed
}

func (c *nativeCounts) liveResources() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.placements) - c.resourcesDestroyed
}

func (c *nativeCounts) locked(fn func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	fn()
}

type ManagerSetup struct {
	Options CreateOptions
	// Footprint overrides the default heap footprint of resources
	Footprint func(desc driver.ResourceDesc) driver.AllocationInfo
	// NoNatives skips registering CreateHeap and CreatePlacedResource expectations
	NoNatives bool
}

func testFootprint(desc driver.ResourceDesc) driver.AllocationInfo {
	if desc.Kind == driver.ResourceKindBuffer {
		return driver.AllocationInfo{Size: desc.Size, Alignment: testPoolAlignment}
	}

	return driver.AllocationInfo{
		Size:      desc.Width * desc.Height * desc.Depth * desc.ArrayLayers * bytesPerTexel,
		Alignment: testPoolAlignment,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func expectNatives(ctrl *gomock.Controller, drv *mocks.MockDriver, counts *nativeCounts) {
	drv.EXPECT().CreateHeap(gomock.Any()).DoAndReturn(func(desc driver.HeapDesc) (driver.NativeHeap, error) {
		counts.locked(func() { counts.heapDescs = append(counts.heapDescs, desc) })

		heap := mocks.NewMockNativeHeap(ctrl)
		heap.EXPECT().Destroy().Do(func() { counts.locked(func() { counts.heapsDestroyed++ }) }).MaxTimes(1)
		return heap, nil
	}).AnyTimes()

	drv.EXPECT().CreatePlacedResource(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(heap driver.NativeHeap, offset int, desc driver.ResourceDesc, initialState driver.AccessState, clearValue *driver.ClearValue, debugName string) (driver.NativeResource, error) {
			counts.locked(func() { counts.placements = append(counts.placements, offset) })

			resource := mocks.NewMockNativeResource(ctrl)
			resource.EXPECT().Destroy().Do(func() { counts.locked(func() { counts.resourcesDestroyed++ }) }).MaxTimes(1)
			return resource, nil
		}).AnyTimes()
}

func readyPoolManager(t *testing.T, ctrl *gomock.Controller, setup ManagerSetup) (*mocks.MockDriver, *nativeCounts, *PoolManager) {
	drv := mocks.NewMockDriver(ctrl)
	counts := &nativeCounts{}

	footprint := setup.Footprint
	if footprint == nil {
		footprint = testFootprint
	}
	drv.EXPECT().GetResourceAllocationInfo(gomock.Any()).DoAndReturn(func(desc driver.ResourceDesc) (driver.AllocationInfo, error) {
		return footprint(desc), nil
	}).AnyTimes()

	if !setup.NoNatives {
		expectNatives(ctrl, drv, counts)
	}

	options := setup.Options
	if options.PoolSize == 0 {
		options.PoolSize = testPoolSize
	}
	if options.PoolAlignment == 0 {
		options.PoolAlignment = testPoolAlignment
	}

	manager, err := NewPoolManager(testLogger(), drv, options)
	require.NoError(t, err)

	return drv, counts, manager
}

// texture returns a 2D texture description whose test footprint is width*height*4 bytes
func texture(width, height int, usage core1_0.ImageUsageFlags) driver.ResourceDesc {
	return driver.NewTexture2D(core1_0.FormatA8B8G8R8UnsignedIntPacked, width, height, 1, usage)
}

func buffer(size int) driver.ResourceDesc {
	return driver.NewBuffer(size, core1_0.BufferUsageStorageBuffer)
}
