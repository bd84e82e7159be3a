package transient

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"github.com/vkngwrapper/core/v2/core1_0"
	"go.uber.org/mock/gomock"
)

func TestCreateTextureInitialState(t *testing.T) {
	testCases := map[string]struct {
		Usage         core1_0.ImageUsageFlags
		ExpectedState driver.AccessState
		ExpectedErr   error
	}{
		"Sampled": {
			Usage:         core1_0.ImageUsageSampled,
			ExpectedState: driver.StateUnorderedAccess,
		},
		"Storage": {
			Usage:         core1_0.ImageUsageStorage | core1_0.ImageUsageTransferDst,
			ExpectedState: driver.StateUnorderedAccess,
		},
		"RenderTarget": {
			Usage:         core1_0.ImageUsageColorAttachment | core1_0.ImageUsageSampled,
			ExpectedState: driver.StateRenderTarget,
		},
		"DepthStencil": {
			Usage:         core1_0.ImageUsageDepthStencilAttachment,
			ExpectedState: driver.StateDepthWrite,
		},
		"Conflicting": {
			Usage:       core1_0.ImageUsageColorAttachment | core1_0.ImageUsageDepthStencilAttachment,
			ExpectedErr: ErrConflictingUsage,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			_, _, manager := readyPoolManager(t, ctrl, ManagerSetup{})
			allocator := NewAllocator(manager, testName)

			resource, err := allocator.CreateTexture(texture(64, 64, testCase.Usage), nil, "Texture")
			if testCase.ExpectedErr != nil {
				require.ErrorIs(t, err, testCase.ExpectedErr)
				require.Nil(t, resource)
				require.Empty(t, allocator.Resources())
				return
			}

			require.NoError(t, err)
			require.Equal(t, testCase.ExpectedState, resource.InitialState())
			require.Equal(t, driver.ResourceKindTexture, resource.Kind())
			require.NoError(t, allocator.Destroy())
		})
	}
}

func TestCreateBufferPlacesSequentially(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Buffers")

	first, err := allocator.CreateBuffer(buffer(100000), "B1")
	require.NoError(t, err)
	second, err := allocator.CreateBuffer(buffer(100000), "B2")
	require.NoError(t, err)

	require.Equal(t, driver.StateUnorderedAccess, first.InitialState())
	require.Equal(t, memutils.Range{Offset: 0, Size: 100000}, first.Range())
	require.Equal(t, memutils.Range{Offset: 131072, Size: 100000}, second.Range())
	require.Same(t, first.Pool(), second.Pool())
	require.Equal(t, []int{0, 131072}, counts.placements)
	require.Len(t, allocator.Pools(), 1)
	require.Equal(t, []*Resource{first, second}, allocator.Resources())

	require.Equal(t, AllocatorStatistics{
		PoolAllocations:    2,
		AllocatedBytes:     200000,
		PeakAllocatedBytes: 200000,
		RequestedBytes:     200000,
	}, allocator.Statistics())

	require.NoError(t, manager.Validate())
	require.NoError(t, allocator.Destroy())
}

func TestCreateResourceRejectsMismatchedKinds(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Kinds")

	_, err := allocator.CreateBuffer(texture(64, 64, core1_0.ImageUsageSampled), "NotABuffer")
	require.Error(t, err)
	_, err = allocator.CreateTexture(buffer(64), nil, "NotATexture")
	require.Error(t, err)
	_, err = allocator.CreateBuffer(buffer(0), "Empty")
	require.Error(t, err)
}

func TestAllocatorBorrowsMorePools(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Growing")

	for i := 0; i < 3; i++ {
		_, err := allocator.CreateBuffer(buffer(500000), "Half")
		require.NoError(t, err)
	}

	require.Len(t, allocator.Pools(), 2)
	require.Len(t, counts.heapDescs, 2)

	// Allocations larger than pool index 0 go to larger pools
	large, err := allocator.CreateBuffer(buffer(testPoolSize+1), "Large")
	require.NoError(t, err)
	require.Equal(t, 1, large.Pool().PoolIndex())
	require.Equal(t, 2*testPoolSize, large.Pool().Heap().Size())

	require.NoError(t, allocator.Destroy())
	require.Equal(t, 3, manager.IdlePoolCount())
}

func TestAllocatorSeparateResourceHeaps(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{
		Options: CreateOptions{Flags: PoolManagerCreateSeparateResourceHeaps},
	})
	allocator := NewAllocator(manager, "Separate")

	buf, err := allocator.CreateBuffer(buffer(65536), "B1")
	require.NoError(t, err)
	tex, err := allocator.CreateTexture(texture(64, 64, core1_0.ImageUsageSampled), nil, "T1")
	require.NoError(t, err)
	target, err := allocator.CreateTexture(texture(64, 64, core1_0.ImageUsageColorAttachment), nil, "RT1")
	require.NoError(t, err)

	require.NotSame(t, buf.Pool(), tex.Pool())
	require.NotSame(t, tex.Pool(), target.Pool())
	require.Equal(t, []driver.HeapFlags{
		driver.HeapAllowBuffers,
		driver.HeapAllowTextures,
		driver.HeapAllowRenderTargets,
	}, []driver.HeapFlags{counts.heapDescs[0].Flags, counts.heapDescs[1].Flags, counts.heapDescs[2].Flags})

	require.NoError(t, allocator.Destroy())
}

func TestGetOverlappingResources(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Aliasing")

	first, err := allocator.CreateBuffer(buffer(100000), "B1")
	require.NoError(t, err)
	require.Empty(t, allocator.GetOverlappingResources(first))

	// Disjoint while the first is live
	second, err := allocator.CreateBuffer(buffer(100000), "B2")
	require.NoError(t, err)
	require.NotContains(t, allocator.GetOverlappingResources(second), first)

	// Once released, the bytes are reused and the new resource aliases both
	require.NoError(t, allocator.DeallocateMemory(first, 1))
	require.NoError(t, allocator.DeallocateMemory(second, 1))
	third, err := allocator.CreateBuffer(buffer(150000), "B3")
	require.NoError(t, err)
	require.Equal(t, 0, third.Offset())
	require.Equal(t, []*Resource{first, second}, allocator.GetOverlappingResources(third))

	// The first buffer is fully covered and the second keeps only its tail
	fourth, err := allocator.CreateBuffer(buffer(4096), "B4")
	require.NoError(t, err)
	require.Equal(t, 196608, fourth.Offset())
	require.Equal(t, []*Resource{second}, allocator.GetOverlappingResources(fourth))

	require.NoError(t, allocator.Destroy())
}

func TestGetOverlappingResourcesClipsCoveredRanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Clipping")

	first, err := allocator.CreateBuffer(buffer(262144), "Wide")
	require.NoError(t, err)
	require.NoError(t, allocator.DeallocateMemory(first, 1))

	second, err := allocator.CreateBuffer(buffer(131072), "Head")
	require.NoError(t, err)
	require.Equal(t, []*Resource{first}, allocator.GetOverlappingResources(second))
	require.NoError(t, allocator.DeallocateMemory(second, 2))

	// The head of the wide buffer now belongs to the second buffer
	third, err := allocator.CreateBuffer(buffer(65536), "HeadAgain")
	require.NoError(t, err)
	require.Equal(t, []*Resource{second}, allocator.GetOverlappingResources(third))

	require.NoError(t, allocator.Destroy())
}

func TestOversizedRequestIsCommitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{
		Options: CreateOptions{MaxPooledAllocationSize: 16 * 1024 * 1024},
	})
	allocator := NewAllocator(manager, "Oversized")

	manager.BeginFrame()
	resource, err := allocator.CreateTexture(texture(2560, 2048, core1_0.ImageUsageSampled), nil, "Huge")
	require.NoError(t, err)

	require.True(t, resource.IsCommitted())
	require.Nil(t, resource.Pool())
	require.Equal(t, 0, resource.Offset())
	require.Equal(t, 20*1024*1024, resource.Size())
	require.NotNil(t, resource.Native(0))
	require.Empty(t, allocator.Pools())
	require.Empty(t, manager.Pools())
	require.Empty(t, allocator.GetOverlappingResources(resource))

	require.Len(t, counts.heapDescs, 1)
	require.Equal(t, driver.HeapDesc{
		Size:      20 * 1024 * 1024,
		Alignment: testPoolAlignment,
		NodeMask:  1,
		Flags:     driver.HeapAllowTextures,
	}, counts.heapDescs[0])

	require.Equal(t, 1, allocator.Statistics().CommittedAllocations)
	require.Equal(t, 0, allocator.Statistics().PoolAllocations)

	manager.EndFrame()
	require.Equal(t, 1, manager.Statistics().CommittedAllocations)
	require.Equal(t, 0, manager.Statistics().PoolAllocations)
	require.Equal(t, 20*1024*1024, manager.Statistics().CommittedAllocated)

	require.NoError(t, allocator.DeallocateMemory(resource, 1))
	require.NoError(t, allocator.Destroy())
	require.Equal(t, 0, counts.heapsDestroyed)
}

func TestCommittedResourcesAreReused(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{
		Options: CreateOptions{MaxPooledAllocationSize: 512 * 1024, ResourceIdleFrames: 2},
	})
	clearValue := &driver.ClearValue{Color: [4]float32{1, 0, 0, 1}}
	desc := texture(512, 512, core1_0.ImageUsageColorAttachment)

	allocator := NewAllocator(manager, "First")
	first, err := allocator.CreateTexture(desc, clearValue, "Target")
	require.NoError(t, err)
	native := first.Native(0)
	require.NoError(t, allocator.Destroy())

	// A different clear value cannot reuse the cached object
	allocator = NewAllocator(manager, "Second")
	other, err := allocator.CreateTexture(desc, &driver.ClearValue{}, "Target")
	require.NoError(t, err)
	require.NotSame(t, native, other.Native(0))
	require.Len(t, counts.heapDescs, 2)

	reused, err := allocator.CreateTexture(desc, clearValue, "Target")
	require.NoError(t, err)
	require.Same(t, native, reused.Native(0))
	require.Equal(t, driver.StateRenderTarget, reused.InitialState())
	require.Len(t, counts.heapDescs, 2)
	require.Len(t, counts.placements, 2)
	require.NoError(t, allocator.Destroy())

	// Unused cached objects are destroyed once they idle for too long
	manager.BeginFrame()
	manager.EndFrame()
	manager.BeginFrame()
	manager.EndFrame()
	require.Equal(t, 2, counts.heapsDestroyed)
	require.Equal(t, 2, counts.resourcesDestroyed)
	require.Equal(t, 0, manager.Statistics().CachedCommittedResources)
}

func TestNaNClearValuesAreReused(t *testing.T) {
	nan := float32(math.NaN())
	desc := texture(512, 512, core1_0.ImageUsageColorAttachment)

	key := newResourceKey(desc, &driver.ClearValue{Color: [4]float32{nan, 0, 0, 1}})
	require.True(t, key == newResourceKey(desc, &driver.ClearValue{Color: [4]float32{nan, 0, 0, 1}}))
	require.False(t, key == newResourceKey(desc, &driver.ClearValue{Color: [4]float32{0.5, 0, 0, 1}}))
	require.True(t, math.IsNaN(float64(key.clearValue().Color[0])))
	require.Equal(t, float32(1), key.clearValue().Color[3])

	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{
		Options: CreateOptions{MaxPooledAllocationSize: 512 * 1024, ResourceIdleFrames: 2},
	})

	for frame := 0; frame < 20; frame++ {
		manager.BeginFrame()
		allocator := NewAllocator(manager, "Frame")
		target, err := allocator.CreateTexture(desc, &driver.ClearValue{Color: [4]float32{nan, 0, 0, 1}}, "Target")
		require.NoError(t, err)
		require.True(t, target.IsCommitted())
		require.NoError(t, allocator.Destroy())
		manager.EndFrame()
	}

	require.Len(t, counts.heapDescs, 1)
	require.Equal(t, 1, counts.liveHeaps())
	require.Equal(t, 1, manager.Statistics().CachedCommittedResources)

	manager.BeginFrame()
	manager.EndFrame()
	manager.BeginFrame()
	manager.EndFrame()
	require.Equal(t, 0, counts.liveHeaps())
	require.Equal(t, 0, manager.Statistics().CachedCommittedResources)
}

func TestPlacedResourcesAreReusedAcrossFrames(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	desc := texture(128, 128, core1_0.ImageUsageSampled)

	manager.BeginFrame()
	allocator := NewAllocator(manager, "Frame1")
	first, err := allocator.CreateTexture(desc, nil, "T1")
	require.NoError(t, err)
	require.Equal(t, 0, first.Offset())
	native := first.Native(0)
	hash := first.AllocationHash()
	require.NoError(t, allocator.DeallocateMemory(first, 1))
	require.NoError(t, allocator.Destroy())
	manager.EndFrame()

	manager.BeginFrame()
	allocator = NewAllocator(manager, "Frame2")
	second, err := allocator.CreateTexture(desc, nil, "T2")
	require.NoError(t, err)
	require.Equal(t, 0, second.Offset())
	require.Same(t, native, second.Native(0))
	require.Equal(t, hash, second.AllocationHash())
	require.Len(t, counts.placements, 1)
	require.Len(t, counts.heapDescs, 1)

	// The active records of the previous owner do not leak into the new session
	require.Empty(t, allocator.GetOverlappingResources(second))
	require.NoError(t, allocator.Destroy())
	manager.EndFrame()

	require.Equal(t, 0, counts.resourcesDestroyed)
}

func TestDeallocateMemoryDetectsMisuse(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Owner")
	stranger := NewAllocator(manager, "Stranger")

	resource, err := allocator.CreateBuffer(buffer(65536), "B1")
	require.NoError(t, err)

	require.ErrorIs(t, stranger.DeallocateMemory(resource, 1), ErrForeignResource)
	require.ErrorIs(t, allocator.DeallocateMemory(nil, 1), ErrForeignResource)

	require.NoError(t, allocator.DeallocateMemory(resource, 7))
	require.True(t, resource.IsReleased())
	require.Equal(t, uint64(7), resource.FenceValue())
	require.Equal(t, uint64(7), resource.Pool().FenceValue())
	require.Equal(t, 0, allocator.Statistics().AllocatedBytes)

	require.ErrorIs(t, allocator.DeallocateMemory(resource, 8), ErrDoubleFree)
	require.Equal(t, uint64(7), resource.Pool().FenceValue())
	require.NoError(t, resource.Pool().Validate())

	require.NoError(t, allocator.Destroy())
	require.NoError(t, stranger.Destroy())
}

func TestFreeze(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Frozen")

	var resources []*Resource
	for _, name := range []string{"T1", "T2", "T3"} {
		resource, err := allocator.CreateTexture(texture(64, 64, core1_0.ImageUsageSampled), nil, name)
		require.NoError(t, err)
		resources = append(resources, resource)
	}

	require.NoError(t, allocator.Freeze())
	require.True(t, allocator.IsFrozen())
	for _, pool := range allocator.Pools() {
		require.Equal(t, PoolStateDraining, pool.State())
	}

	_, err := allocator.CreateTexture(texture(64, 64, core1_0.ImageUsageSampled), nil, "T4")
	require.ErrorIs(t, err, ErrAllocatorFrozen)
	_, err = allocator.CreateBuffer(buffer(64), "B1")
	require.ErrorIs(t, err, ErrAllocatorFrozen)
	require.Equal(t, resources, allocator.Resources())

	// Freezing again changes nothing; frozen resources can still be deallocated
	require.NoError(t, allocator.Freeze())
	require.NoError(t, allocator.DeallocateMemory(resources[0], 1))

	require.NoError(t, allocator.Destroy())
	require.Equal(t, 1, manager.IdlePoolCount())
	require.NoError(t, manager.Validate())
}

func TestAllocatorDestroy(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, counts, manager := readyPoolManager(t, ctrl, ManagerSetup{})
	allocator := NewAllocator(manager, "Destroyed")

	resource, err := allocator.CreateBuffer(buffer(65536), "B1")
	require.NoError(t, err)
	pool := resource.Pool()

	require.NoError(t, allocator.Destroy())
	require.True(t, allocator.IsDestroyed())
	require.True(t, resource.IsReleased())
	require.Equal(t, PoolStateIdle, pool.State())
	require.True(t, pool.IsEmpty())
	require.Equal(t, 1, pool.CachedResources())
	require.Equal(t, 0, counts.resourcesDestroyed)

	_, err = allocator.CreateBuffer(buffer(65536), "B2")
	require.ErrorIs(t, err, ErrAllocatorDestroyed)
	require.ErrorIs(t, allocator.DeallocateMemory(resource, 1), ErrAllocatorDestroyed)
	require.ErrorIs(t, allocator.Freeze(), ErrAllocatorDestroyed)
	require.ErrorIs(t, allocator.Destroy(), ErrAllocatorDestroyed)

	require.NoError(t, manager.Validate())
	require.NoError(t, manager.Destroy())
	require.Equal(t, 0, counts.liveHeaps())
	require.Equal(t, 0, counts.liveResources())
}

func TestDriverFailureIsSurfaced(t *testing.T) {
	ctrl := gomock.NewController(t)
	drv, _, manager := readyPoolManager(t, ctrl, ManagerSetup{NoNatives: true})
	allocator := NewAllocator(manager, "Failing")

	drv.EXPECT().CreateHeap(gomock.Any()).Return(nil, errors.New("out of device memory"))

	resource, err := allocator.CreateBuffer(buffer(65536), "B1")
	require.Nil(t, resource)
	require.True(t, errors.Is(err, ErrDriverFailure))
	require.Empty(t, allocator.Resources())
	require.Empty(t, manager.Pools())
}

func TestPlacementFailureReleasesRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	drv, _, manager := readyPoolManager(t, ctrl, ManagerSetup{NoNatives: true})
	allocator := NewAllocator(manager, "Failing")

	drv.EXPECT().CreateHeap(gomock.Any()).Return(nativeHeapStub{}, nil)
	drv.EXPECT().CreatePlacedResource(gomock.Any(), 0, gomock.Any(), gomock.Any(), gomock.Any(), "B1").
		Return(nil, errors.New("invalid placement"))

	resource, err := allocator.CreateBuffer(buffer(65536), "B1")
	require.Nil(t, resource)
	require.True(t, errors.Is(err, ErrDriverFailure))

	pools := allocator.Pools()
	require.Len(t, pools, 1)
	require.True(t, pools[0].IsEmpty())
	require.NoError(t, pools[0].Validate())
}

type nativeHeapStub struct{}

func (nativeHeapStub) Destroy() {}
