package vulkan

//go:generate mockgen -source device.go -destination mocks/device.go -package mocks

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	vkdriver "github.com/vkngwrapper/core/v2/driver"
)

// Device is the part of a Vulkan device that heaps and placed resources are created through.
// WrapDevice builds one from a core1_0.Device.
type Device interface {
	// AllocateMemory allocates size bytes of the provided memory type. When deviceMask is not 0,
	// the allocation is made only on the nodes of the device group that the mask names.
	AllocateMemory(size int, memoryTypeIndex int, deviceMask uint32) (Memory, error)
	CreateBuffer(info core1_0.BufferCreateInfo) (Buffer, error)
	CreateImage(info core1_0.ImageCreateInfo) (Image, error)
}

// Memory is a block of device memory
type Memory interface {
	VulkanDeviceMemory() core1_0.DeviceMemory
	Free()
}

// Buffer is a buffer object that has not necessarily been bound to memory
type Buffer interface {
	VulkanBuffer() core1_0.Buffer
	MemoryRequirements() core1_0.MemoryRequirements
	BindMemory(memory Memory, offset int) error
	Destroy()
}

// Image is an image object that has not necessarily been bound to memory
type Image interface {
	VulkanImage() core1_0.Image
	MemoryRequirements() core1_0.MemoryRequirements
	BindMemory(memory Memory, offset int) error
	Destroy()
}

type coreDevice struct {
	device    core1_0.Device
	callbacks *vkdriver.AllocationCallbacks
}

// WrapDevice exposes device as a Device. callbacks may be nil and are passed to every create,
// allocate, destroy and free call.
func WrapDevice(device core1_0.Device, callbacks *vkdriver.AllocationCallbacks) Device {
	return &coreDevice{
		device:    device,
		callbacks: callbacks,
	}
}

func (d *coreDevice) AllocateMemory(size int, memoryTypeIndex int, deviceMask uint32) (Memory, error) {
	allocateInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryTypeIndex,
	}
	if deviceMask != 0 {
		allocateInfo.Next = core1_1.MemoryAllocateFlagsInfo{
			Flags:      core1_1.MemoryAllocateDeviceMask,
			DeviceMask: deviceMask,
		}
	}

	memory, _, err := d.device.AllocateMemory(d.callbacks, allocateInfo)
	if err != nil {
		return nil, err
	}

	return &coreMemory{memory: memory, callbacks: d.callbacks}, nil
}

func (d *coreDevice) CreateBuffer(info core1_0.BufferCreateInfo) (Buffer, error) {
	buffer, _, err := d.device.CreateBuffer(d.callbacks, info)
	if err != nil {
		return nil, err
	}

	return &coreBuffer{buffer: buffer, callbacks: d.callbacks}, nil
}

func (d *coreDevice) CreateImage(info core1_0.ImageCreateInfo) (Image, error) {
	image, _, err := d.device.CreateImage(d.callbacks, info)
	if err != nil {
		return nil, err
	}

	return &coreImage{image: image, callbacks: d.callbacks}, nil
}

type coreMemory struct {
	memory    core1_0.DeviceMemory
	callbacks *vkdriver.AllocationCallbacks
}

func (m *coreMemory) VulkanDeviceMemory() core1_0.DeviceMemory { return m.memory }
func (m *coreMemory) Free()                                    { m.memory.Free(m.callbacks) }

type coreBuffer struct {
	buffer    core1_0.Buffer
	callbacks *vkdriver.AllocationCallbacks
}

func (b *coreBuffer) VulkanBuffer() core1_0.Buffer { return b.buffer }

func (b *coreBuffer) MemoryRequirements() core1_0.MemoryRequirements {
	return *b.buffer.MemoryRequirements()
}

func (b *coreBuffer) BindMemory(memory Memory, offset int) error {
	_, err := b.buffer.BindBufferMemory(memory.VulkanDeviceMemory(), offset)
	return err
}

func (b *coreBuffer) Destroy() { b.buffer.Destroy(b.callbacks) }

type coreImage struct {
	image     core1_0.Image
	callbacks *vkdriver.AllocationCallbacks
}

func (i *coreImage) VulkanImage() core1_0.Image { return i.image }

func (i *coreImage) MemoryRequirements() core1_0.MemoryRequirements {
	return *i.image.MemoryRequirements()
}

func (i *coreImage) BindMemory(memory Memory, offset int) error {
	_, err := i.image.BindImageMemory(memory.VulkanDeviceMemory(), offset)
	return err
}

func (i *coreImage) Destroy() { i.image.Destroy(i.callbacks) }
