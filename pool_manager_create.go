package transient

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/internal/utils"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"github.com/vkngwrapper/arsenal/transient/memutils/metadata"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific pool manager behaviors to activate or deactivate
type CreateFlags int32

var poolManagerCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	poolManagerCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return poolManagerCreateFlagsMapping.FlagsToString(f)
}

const (
	// PoolManagerCreateExternallySynchronized ensures that the pool manager will not be synchronized
	// internally. The consumer must guarantee that the pool manager and every allocator created from
	// it are used from only one thread at a time.
	PoolManagerCreateExternallySynchronized CreateFlags = 1 << iota
	// PoolManagerCreateSeparateResourceHeaps places buffers, plain textures, and render target
	// textures in separate pools. Use this for drivers that cannot mix resource kinds in one heap.
	PoolManagerCreateSeparateResourceHeaps
)

func init() {
	PoolManagerCreateExternallySynchronized.Register("PoolManagerCreateExternallySynchronized")
	PoolManagerCreateSeparateResourceHeaps.Register("PoolManagerCreateSeparateResourceHeaps")
}

const (
	// defaultPoolSize is the heap size of pool index 0 when none is provided via CreateOptions.
	// It is equal to 64Mb.
	defaultPoolSize int = 64 * 1024 * 1024
	// defaultPoolAlignment is the heap alignment when none is provided via CreateOptions.
	// It is equal to 64Kb.
	defaultPoolAlignment uint = 64 * 1024

	defaultPoolIdleFrames              = 30
	defaultResourceIdleFrames          = 10
	defaultAllocationInfoCacheCapacity = 1024
)

// CreateOptions contains optional settings when creating a PoolManager
type CreateOptions struct {
	// Flags indicates specific pool manager behaviors to activate or deactivate
	Flags CreateFlags

	// PoolSize is the size in bytes of the heaps backing pool index 0. Pool index N is backed by
	// heaps of PoolSize << N bytes. It is rounded up to PoolAlignment.
	PoolSize int
	// PoolAlignment is the alignment of every pool heap. It must be a power of two.
	PoolAlignment uint
	// MaxPooledAllocationSize is the largest allocation that is placed in a pool. Larger allocations
	// receive a committed heap of their own. It defaults to PoolSize.
	MaxPooledAllocationSize int
	// NodeMask is the set of GPU nodes every heap is visible to. It defaults to the first node.
	NodeMask driver.NodeMask

	// PoolIdleFrames is the number of consecutive EndFrame calls an idle, empty pool survives
	// before its heap is destroyed
	PoolIdleFrames int
	// ResourceIdleFrames is the number of EndFrame calls a cached resource object survives without
	// being reused before it is destroyed
	ResourceIdleFrames int

	// AllocationStrategy selects first fit or best fit placement within pools
	AllocationStrategy metadata.AllocationStrategy
	// AllocationInfoCacheCapacity is the number of resource descriptions whose heap footprint is
	// cached rather than queried from the driver
	AllocationInfoCacheCapacity int

	// CompletedFenceValue is optional. When provided, idle pools are only handed out again once the
	// value it returns has reached the highest fence value their resources were released with.
	CompletedFenceValue func() uint64
}

// NewPoolManager creates a new PoolManager. One PoolManager is created per device and shared by
// every Allocator for that device.
//
// drv - The driver heaps and placed resources are created through
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewPoolManager(logger *slog.Logger, drv driver.Driver, options CreateOptions) (*PoolManager, error) {
	if drv == nil {
		return nil, errors.New("a driver is required to create a pool manager")
	}

	manager := &PoolManager{
		logger:              logger,
		driver:              drv,
		mutex:               utils.OptionalRWMutex{UseMutex: options.Flags&PoolManagerCreateExternallySynchronized == 0},
		createFlags:         options.Flags,
		poolAlignment:       options.PoolAlignment,
		nodeMask:            options.NodeMask,
		poolIdleFrames:      options.PoolIdleFrames,
		resourceIdleFrames:  options.ResourceIdleFrames,
		strategy:            options.AllocationStrategy,
		completedFenceValue: options.CompletedFenceValue,

		pooledTextures: newCommittedCache(),
		pooledBuffers:  newCommittedCache(),
	}

	if manager.poolAlignment == 0 {
		manager.poolAlignment = defaultPoolAlignment
	}
	err := memutils.CheckPow2(manager.poolAlignment, "CreateOptions.PoolAlignment")
	if err != nil {
		return nil, err
	}

	poolSize := options.PoolSize
	if poolSize == 0 {
		poolSize = defaultPoolSize
	} else if poolSize < 0 {
		return nil, errors.Newf("CreateOptions.PoolSize must be positive, but was %d", poolSize)
	}
	manager.poolSize = memutils.AlignUp(poolSize, manager.poolAlignment)

	manager.maxPooledAllocationSize = options.MaxPooledAllocationSize
	if manager.maxPooledAllocationSize == 0 {
		manager.maxPooledAllocationSize = manager.poolSize
	} else if manager.maxPooledAllocationSize < 0 {
		return nil, errors.Newf("CreateOptions.MaxPooledAllocationSize must be positive, but was %d", manager.maxPooledAllocationSize)
	}

	if manager.nodeMask == 0 {
		manager.nodeMask = 1
	}
	if manager.poolIdleFrames == 0 {
		manager.poolIdleFrames = defaultPoolIdleFrames
	}
	if manager.resourceIdleFrames == 0 {
		manager.resourceIdleFrames = defaultResourceIdleFrames
	}

	cacheCapacity := options.AllocationInfoCacheCapacity
	if cacheCapacity == 0 {
		cacheCapacity = defaultAllocationInfoCacheCapacity
	}
	manager.allocationInfo, err = newAllocationInfoCache(drv, cacheCapacity)
	if err != nil {
		return nil, err
	}

	logger.Debug("PoolManager::New",
		slog.Int("poolSize", manager.poolSize),
		slog.Int("maxPooledAllocationSize", manager.maxPooledAllocationSize),
		slog.Int("nodeCount", manager.nodeMask.Count()),
		slog.String("flags", options.Flags.String()),
	)

	return manager, nil
}
