package transient

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/transient/driver"
)

// resourceKey is the identity a cached resource object is reused by: two requests can share a
// native object exactly when their keys are equal. Clear values are held as bit patterns so that
// a NaN component still equals itself.
type resourceKey struct {
	desc     driver.ResourceDesc
	clear    clearBits
	hasClear bool
}

type clearBits struct {
	color   [4]uint32
	depth   uint32
	stencil uint32
}

func newResourceKey(desc driver.ResourceDesc, clearValue *driver.ClearValue) resourceKey {
	key := resourceKey{desc: desc}
	if clearValue != nil {
		for index, component := range clearValue.Color {
			key.clear.color[index] = math.Float32bits(component)
		}
		key.clear.depth = math.Float32bits(clearValue.Depth)
		key.clear.stencil = clearValue.Stencil
		key.hasClear = true
	}
	return key
}

func (k resourceKey) clearValue() *driver.ClearValue {
	if !k.hasClear {
		return nil
	}

	clearValue := driver.ClearValue{
		Depth:   math.Float32frombits(k.clear.depth),
		Stencil: k.clear.stencil,
	}
	for index, component := range k.clear.color {
		clearValue.Color[index] = math.Float32frombits(component)
	}
	return &clearValue
}

// PlacedResource is a set of native resource objects, one per node, placed at the same offset
// of a Heap. It is reference counted: the natives are destroyed when the last reference is
// released.
type PlacedResource struct {
	key     resourceKey
	offset  int
	natives []driver.NativeResource
	state   driver.AccessState

	refs          atomic.Int32
	lastUsedFrame atomic.Uint64
}

// createPlacedResource creates one native object per native heap of heap, at offset. The
// returned resource holds one reference owned by the caller.
func createPlacedResource(
	drv driver.Driver,
	heap *Heap,
	offset int,
	key resourceKey,
	initialState driver.AccessState,
	debugName string,
	frame uint64,
) (*PlacedResource, error) {
	resource := &PlacedResource{
		key:     key,
		offset:  offset,
		natives: make([]driver.NativeResource, 0, heap.NodeCount()),
		state:   initialState,
	}
	resource.refs.Store(1)
	resource.lastUsedFrame.Store(frame)

	for nodeIndex := 0; nodeIndex < heap.NodeCount(); nodeIndex++ {
		native, err := drv.CreatePlacedResource(heap.Native(nodeIndex), offset, key.desc, initialState, key.clearValue(), debugName)
		if err == nil && native == nil {
			err = errors.New("driver returned no resource object")
		}
		if err != nil {
			resource.destroyNatives()
			return nil, driverFailure(err, "failed to place %s %q at offset %d on node %d", key.desc.Kind, debugName, offset, nodeIndex)
		}

		resource.natives = append(resource.natives, native)
	}

	return resource, nil
}

func (r *PlacedResource) acquire() {
	r.refs.Add(1)
}

func (r *PlacedResource) release() {
	refs := r.refs.Add(-1)
	if refs < 0 {
		panic(fmt.Sprintf("placed resource at offset %d was released more times than it was acquired", r.offset))
	}
	if refs == 0 {
		r.destroyNatives()
	}
}

func (r *PlacedResource) destroyNatives() {
	for _, native := range r.natives {
		native.Destroy()
	}
	r.natives = nil
}

func (r *PlacedResource) touch(frame uint64) {
	r.lastUsedFrame.Store(frame)
}

func (r *PlacedResource) idleFrames(frame uint64) uint64 {
	lastUsed := r.lastUsedFrame.Load()
	if frame < lastUsed {
		return 0
	}
	return frame - lastUsed
}

func (r *PlacedResource) Offset() int                      { return r.offset }
func (r *PlacedResource) Desc() driver.ResourceDesc        { return r.key.desc }
func (r *PlacedResource) ClearValue() *driver.ClearValue   { return r.key.clearValue() }
func (r *PlacedResource) InitialState() driver.AccessState { return r.state }
func (r *PlacedResource) NodeCount() int                   { return len(r.natives) }
func (r *PlacedResource) RefCount() int                    { return int(r.refs.Load()) }

// Native returns the native object for the nodeIndex-th node
func (r *PlacedResource) Native(nodeIndex int) driver.NativeResource {
	return r.natives[nodeIndex]
}
