package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// Options configures a Driver
type Options struct {
	// MemoryTypeIndex is the memory type every heap is allocated from. FindDeviceLocalMemoryType
	// picks a suitable one.
	MemoryTypeIndex int
	// DeviceGroup chains a device mask to every heap allocation. It must be set when the
	// PoolManager is created with a NodeMask naming more than the first node.
	DeviceGroup bool
	// SharingMode is used for every buffer and image. The zero value is exclusive.
	SharingMode core1_0.SharingMode
}

// Driver creates heaps as device memory allocations and placed resources as buffers and images
// bound into them
type Driver struct {
	logger *slog.Logger
	device Device

	memoryTypeIndex int
	deviceGroup     bool
	sharingMode     core1_0.SharingMode
}

var _ driver.Driver = &Driver{}

func New(logger *slog.Logger, device Device, options Options) (*Driver, error) {
	if device == nil {
		return nil, errors.New("a device is required to create a vulkan driver")
	}
	if options.MemoryTypeIndex < 0 || options.MemoryTypeIndex >= 32 {
		return nil, errors.Newf("memory type index %d is out of range", options.MemoryTypeIndex)
	}

	logger.Debug("Driver::New",
		slog.Int("memoryTypeIndex", options.MemoryTypeIndex),
		slog.Bool("deviceGroup", options.DeviceGroup),
	)

	return &Driver{
		logger:          logger,
		device:          device,
		memoryTypeIndex: options.MemoryTypeIndex,
		deviceGroup:     options.DeviceGroup,
		sharingMode:     options.SharingMode,
	}, nil
}

func (d *Driver) MemoryTypeIndex() int { return d.memoryTypeIndex }

// CreateHeap allocates desc.Size bytes of device memory on the single node desc.NodeMask names
func (d *Driver) CreateHeap(desc driver.HeapDesc) (driver.NativeHeap, error) {
	if desc.NodeMask.Count() != 1 {
		return nil, errors.Newf("heaps must be created for exactly one node, but node mask was %b", desc.NodeMask)
	}

	var deviceMask uint32
	if d.deviceGroup {
		deviceMask = uint32(desc.NodeMask)
	} else if desc.NodeMask != 1 {
		return nil, errors.Newf("node mask %b requires a driver created with Options.DeviceGroup", desc.NodeMask)
	}

	memory, err := d.device.AllocateMemory(desc.Size, d.memoryTypeIndex, deviceMask)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate %d bytes of memory type %d", desc.Size, d.memoryTypeIndex)
	}

	d.logger.Debug("Driver::CreateHeap",
		slog.Int("size", desc.Size),
		slog.Uint64("nodeMask", uint64(desc.NodeMask)),
		slog.String("flags", desc.Flags.String()),
	)

	return &Heap{
		memory:   memory,
		size:     desc.Size,
		nodeMask: desc.NodeMask,
		flags:    desc.Flags,
	}, nil
}

// CreatePlacedResource creates a buffer or image and binds it to heap at offset. Vulkan has no
// initial resource state or optimized clear value: both are recorded on the returned resource
// for the renderer's first barrier and clear.
func (d *Driver) CreatePlacedResource(
	nativeHeap driver.NativeHeap,
	offset int,
	desc driver.ResourceDesc,
	initialState driver.AccessState,
	clearValue *driver.ClearValue,
	debugName string,
) (driver.NativeResource, error) {
	heap, ok := nativeHeap.(*Heap)
	if !ok {
		return nil, errors.Newf("heap of type %T was not created by the vulkan driver", nativeHeap)
	}
	if heap.memory == nil {
		return nil, errors.New("attempted to place a resource in a destroyed heap")
	}

	placed := placedResource{
		heap:         heap,
		offset:       offset,
		desc:         desc,
		initialState: initialState,
		name:         debugName,
	}
	if clearValue != nil {
		value := *clearValue
		placed.clearValue = &value
	}

	switch desc.Kind {
	case driver.ResourceKindBuffer:
		buffer, err := d.device.CreateBuffer(d.bufferCreateInfo(desc))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create buffer %q", debugName)
		}

		requirements := buffer.MemoryRequirements()
		err = d.bind(heap, offset, debugName, requirements, buffer.BindMemory)
		if err != nil {
			buffer.Destroy()
			return nil, err
		}

		placed.size = int(requirements.Size)
		return &PlacedBuffer{placedResource: placed, buffer: buffer}, nil
	case driver.ResourceKindTexture:
		image, err := d.device.CreateImage(d.imageCreateInfo(desc))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create image %q", debugName)
		}

		requirements := image.MemoryRequirements()
		err = d.bind(heap, offset, debugName, requirements, image.BindMemory)
		if err != nil {
			image.Destroy()
			return nil, err
		}

		placed.size = int(requirements.Size)
		return &PlacedImage{placedResource: placed, image: image}, nil
	}

	return nil, errors.Newf("cannot place a resource of unknown kind %d", desc.Kind)
}

func (d *Driver) bind(heap *Heap, offset int, debugName string, requirements core1_0.MemoryRequirements, bind func(Memory, int) error) error {
	if requirements.MemoryTypeBits&(1<<d.memoryTypeIndex) == 0 {
		return errors.Newf("%q cannot be placed in memory type %d: supported types are %b", debugName, d.memoryTypeIndex, requirements.MemoryTypeBits)
	}
	alignment := max(int(requirements.Alignment), 1)
	if offset%alignment != 0 {
		return errors.Newf("%q requires an alignment of %d, but was placed at offset %d", debugName, alignment, offset)
	}
	if offset < 0 || offset+int(requirements.Size) > heap.size {
		return errors.Newf("%q of %d bytes does not fit at offset %d of a %d-byte heap", debugName, requirements.Size, offset, heap.size)
	}

	err := bind(heap.memory, offset)
	if err != nil {
		return errors.Wrapf(err, "failed to bind %q at offset %d", debugName, offset)
	}

	return nil
}

// GetResourceAllocationInfo creates a throwaway buffer or image to read its memory requirements
func (d *Driver) GetResourceAllocationInfo(desc driver.ResourceDesc) (driver.AllocationInfo, error) {
	var requirements core1_0.MemoryRequirements

	switch desc.Kind {
	case driver.ResourceKindBuffer:
		buffer, err := d.device.CreateBuffer(d.bufferCreateInfo(desc))
		if err != nil {
			return driver.AllocationInfo{}, errors.Wrap(err, "failed to create a buffer to query memory requirements")
		}
		defer buffer.Destroy()

		requirements = buffer.MemoryRequirements()
	case driver.ResourceKindTexture:
		image, err := d.device.CreateImage(d.imageCreateInfo(desc))
		if err != nil {
			return driver.AllocationInfo{}, errors.Wrap(err, "failed to create an image to query memory requirements")
		}
		defer image.Destroy()

		requirements = image.MemoryRequirements()
	default:
		return driver.AllocationInfo{}, errors.Newf("cannot query the requirements of a resource of unknown kind %d", desc.Kind)
	}

	if requirements.MemoryTypeBits&(1<<d.memoryTypeIndex) == 0 {
		return driver.AllocationInfo{}, errors.Newf("%s cannot be placed in memory type %d: supported types are %b",
			desc.Kind, d.memoryTypeIndex, requirements.MemoryTypeBits)
	}

	return driver.AllocationInfo{
		Size:      int(requirements.Size),
		Alignment: uint(max(int(requirements.Alignment), 1)),
	}, nil
}

func (d *Driver) bufferCreateInfo(desc driver.ResourceDesc) core1_0.BufferCreateInfo {
	return core1_0.BufferCreateInfo{
		Size:        desc.Size,
		Usage:       desc.BufferUsage,
		SharingMode: d.sharingMode,
	}
}

func (d *Driver) imageCreateInfo(desc driver.ResourceDesc) core1_0.ImageCreateInfo {
	return core1_0.ImageCreateInfo{
		ImageType: desc.ImageType,
		Format:    desc.Format,
		Extent: core1_0.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  desc.Depth,
		},
		MipLevels:   desc.MipLevels,
		ArrayLayers: desc.ArrayLayers,
		Samples:     desc.Samples,
		Usage:       desc.ImageUsage,
		SharingMode: d.sharingMode,
	}
}

// FindDeviceLocalMemoryType returns the first memory type allowed by memoryTypeBits that is
// device local, preferring types that are not host visible
func FindDeviceLocalMemoryType(properties *core1_0.PhysicalDeviceMemoryProperties, memoryTypeBits uint32) (int, error) {
	bestIndex := -1
	for index, memoryType := range properties.MemoryTypes {
		if memoryTypeBits&(1<<index) == 0 {
			continue
		}
		if memoryType.PropertyFlags&core1_0.MemoryPropertyDeviceLocal == 0 {
			continue
		}
		if memoryType.PropertyFlags&core1_0.MemoryPropertyHostVisible == 0 {
			return index, nil
		}
		if bestIndex < 0 {
			bestIndex = index
		}
	}

	if bestIndex < 0 {
		return -1, errors.Newf("no device local memory type among %b", memoryTypeBits)
	}
	return bestIndex, nil
}
