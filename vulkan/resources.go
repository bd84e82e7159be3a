package vulkan

import (
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Heap is a device memory allocation for a single node
type Heap struct {
	memory   Memory
	size     int
	nodeMask driver.NodeMask
	flags    driver.HeapFlags
}

func (h *Heap) Memory() Memory            { return h.memory }
func (h *Heap) Size() int                 { return h.size }
func (h *Heap) NodeMask() driver.NodeMask { return h.nodeMask }
func (h *Heap) Flags() driver.HeapFlags   { return h.flags }
func (h *Heap) IsDestroyed() bool         { return h.memory == nil }

// VulkanMemory returns the device memory backing the heap, or nil once the heap is destroyed
func (h *Heap) VulkanMemory() core1_0.DeviceMemory {
	if h.memory == nil {
		return nil
	}
	return h.memory.VulkanDeviceMemory()
}

// Destroy frees the heap's memory. Destroying a destroyed heap does nothing.
func (h *Heap) Destroy() {
	if h.memory == nil {
		return
	}

	h.memory.Free()
	h.memory = nil
}

type placedResource struct {
	heap         *Heap
	offset       int
	size         int
	desc         driver.ResourceDesc
	initialState driver.AccessState
	clearValue   *driver.ClearValue
	name         string
}

func (r *placedResource) Heap() *Heap                      { return r.heap }
func (r *placedResource) Offset() int                      { return r.offset }
func (r *placedResource) Size() int                        { return r.size }
func (r *placedResource) Desc() driver.ResourceDesc        { return r.desc }
func (r *placedResource) InitialState() driver.AccessState { return r.initialState }
func (r *placedResource) ClearValue() *driver.ClearValue   { return r.clearValue }
func (r *placedResource) Name() string                     { return r.name }

// PlacedBuffer is a buffer bound to a Heap
type PlacedBuffer struct {
	placedResource
	buffer Buffer
}

func (b *PlacedBuffer) VulkanBuffer() core1_0.Buffer { return b.buffer.VulkanBuffer() }

// Destroy destroys the buffer object. The heap memory it was bound to is not freed.
func (b *PlacedBuffer) Destroy() {
	if b.buffer == nil {
		return
	}

	b.buffer.Destroy()
	b.buffer = nil
}

// PlacedImage is an image bound to a Heap. It is created in VK_IMAGE_LAYOUT_UNDEFINED; the
// first barrier moves it from there to the layout matching InitialState.
type PlacedImage struct {
	placedResource
	image Image
}

func (i *PlacedImage) VulkanImage() core1_0.Image { return i.image.VulkanImage() }

// Destroy destroys the image object. The heap memory it was bound to is not freed.
func (i *PlacedImage) Destroy() {
	if i.image == nil {
		return
	}

	i.image.Destroy()
	i.image = nil
}
