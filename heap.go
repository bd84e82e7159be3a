package transient

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/transient/driver"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"golang.org/x/exp/slog"
)

// Heap is a block of device memory of fixed size and alignment. On a multi-node device a Heap
// is made of one native heap per node in its node mask, all the same size, so that a resource
// placed at an offset occupies the same range on every node.
type Heap struct {
	logger *slog.Logger

	size      int
	alignment uint
	nodeMask  driver.NodeMask
	flags     driver.HeapFlags

	natives []driver.NativeHeap
}

// CreateHeap creates one native heap per node in desc.NodeMask. If any node fails, the native
// heaps already created are destroyed and no Heap is returned.
func CreateHeap(logger *slog.Logger, drv driver.Driver, desc driver.HeapDesc) (*Heap, error) {
	if desc.Size < 1 {
		return nil, errors.Newf("heap size must be positive, but was %d", desc.Size)
	}
	err := memutils.CheckPow2(desc.Alignment, "heap alignment")
	if err != nil {
		return nil, err
	}
	if desc.NodeMask == 0 {
		return nil, errors.New("heap node mask must contain at least one node")
	}
	if desc.Flags == 0 {
		return nil, errors.New("heap must allow at least one kind of resource")
	}

	heap := &Heap{
		logger:    logger,
		size:      desc.Size,
		alignment: desc.Alignment,
		nodeMask:  desc.NodeMask,
		flags:     desc.Flags,
		natives:   make([]driver.NativeHeap, 0, desc.NodeMask.Count()),
	}

	for _, node := range desc.NodeMask.Nodes() {
		nodeDesc := desc
		nodeDesc.NodeMask = node

		native, err := drv.CreateHeap(nodeDesc)
		if err == nil && native == nil {
			err = errors.New("driver returned no heap")
		}
		if err != nil {
			heap.Destroy()
			return nil, driverFailure(err, "failed to create a %d-byte heap for node mask %#x", desc.Size, uint32(node))
		}

		heap.natives = append(heap.natives, native)
	}

	logger.Debug("Heap::Create",
		slog.Int("size", desc.Size),
		slog.Int("nodes", desc.NodeMask.Count()),
		slog.String("flags", desc.Flags.String()),
	)

	return heap, nil
}

// Destroy destroys every native heap. Resources placed in the heap must already be destroyed.
// Destroying a heap twice does nothing.
func (h *Heap) Destroy() {
	for _, native := range h.natives {
		native.Destroy()
	}
	h.natives = nil
}

func (h *Heap) Size() int                 { return h.size }
func (h *Heap) Alignment() uint           { return h.alignment }
func (h *Heap) NodeMask() driver.NodeMask { return h.nodeMask }
func (h *Heap) Flags() driver.HeapFlags   { return h.flags }
func (h *Heap) IsDestroyed() bool         { return h.natives == nil }

// NodeCount is the number of native heaps backing this Heap
func (h *Heap) NodeCount() int { return len(h.natives) }

// Native returns the native heap for the nodeIndex-th node of the node mask, counting from the
// lowest set bit
func (h *Heap) Native(nodeIndex int) driver.NativeHeap {
	return h.natives[nodeIndex]
}

// CanHold reports whether a resource of the provided kind may be placed in this heap
func (h *Heap) CanHold(kinds driver.HeapFlags) bool {
	return h.flags&kinds == kinds
}
