package driver

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/maphash"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// HeapFlags indicate which kinds of resources may be placed in a heap
type HeapFlags int32

var heapFlagsMapping = common.NewFlagStringMapping[HeapFlags]()

func (f HeapFlags) Register(str string) {
	heapFlagsMapping.Register(f, str)
}
func (f HeapFlags) String() string {
	return heapFlagsMapping.FlagsToString(f)
}

const (
	// HeapAllowBuffers permits buffers to be placed in the heap
	HeapAllowBuffers HeapFlags = 1 << iota
	// HeapAllowTextures permits textures that are neither render targets nor depth-stencil targets
	HeapAllowTextures
	// HeapAllowRenderTargets permits render target and depth-stencil textures
	HeapAllowRenderTargets

	HeapAllowAll = HeapAllowBuffers | HeapAllowTextures | HeapAllowRenderTargets
)

func init() {
	HeapAllowBuffers.Register("HeapAllowBuffers")
	HeapAllowTextures.Register("HeapAllowTextures")
	HeapAllowRenderTargets.Register("HeapAllowRenderTargets")
}

// NodeMask identifies the GPU nodes of a multi-GPU device that can see a heap. Bit 0 is the
// first node.
type NodeMask uint32

// Count returns the number of nodes in the mask
func (m NodeMask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// Nodes splits the mask into single-node masks, lowest node first
func (m NodeMask) Nodes() []NodeMask {
	nodes := make([]NodeMask, 0, m.Count())
	for remaining := uint32(m); remaining != 0; remaining &= remaining - 1 {
		nodes = append(nodes, NodeMask(remaining&-remaining))
	}
	return nodes
}

// AccessState is the GPU access state a placed resource is created in
type AccessState uint32

const (
	StateCommon AccessState = iota
	StateRenderTarget
	StateDepthWrite
	StateUnorderedAccess
)

var accessStateMapping = map[AccessState]string{
	StateCommon:          "StateCommon",
	StateRenderTarget:    "StateRenderTarget",
	StateDepthWrite:      "StateDepthWrite",
	StateUnorderedAccess: "StateUnorderedAccess",
}

func (s AccessState) String() string {
	return accessStateMapping[s]
}

// ResourceKind distinguishes linear buffers from textures
type ResourceKind byte

const (
	ResourceKindBuffer ResourceKind = iota + 1
	ResourceKindTexture
)

var resourceKindMapping = map[ResourceKind]string{
	ResourceKindBuffer:  "Buffer",
	ResourceKindTexture: "Texture",
}

func (k ResourceKind) String() string {
	return resourceKindMapping[k]
}

// ClearValue is the optimized clear value a render target or depth-stencil texture is created with
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// ResourceDesc is a comparable description of a buffer or texture. Two descriptions are the
// same resource shape exactly when they are equal.
type ResourceDesc struct {
	Kind ResourceKind

	// Size is the byte size of a buffer
	Size        int
	BufferUsage core1_0.BufferUsageFlags

	ImageType   core1_0.ImageType
	Format      core1_0.Format
	Width       int
	Height      int
	Depth       int
	MipLevels   int
	ArrayLayers int
	Samples     core1_0.SampleCountFlags
	ImageUsage  core1_0.ImageUsageFlags
}

var descHasher = maphash.NewHasher[ResourceDesc]()

// NewBuffer describes a linear buffer of size bytes
func NewBuffer(size int, usage core1_0.BufferUsageFlags) ResourceDesc {
	return ResourceDesc{
		Kind:        ResourceKindBuffer,
		Size:        size,
		BufferUsage: usage,
	}
}

// NewTexture2D describes a single-layer, single-sample 2D texture
func NewTexture2D(format core1_0.Format, width, height, mipLevels int, usage core1_0.ImageUsageFlags) ResourceDesc {
	return ResourceDesc{
		Kind:        ResourceKindTexture,
		ImageType:   core1_0.ImageType2D,
		Format:      format,
		Width:       width,
		Height:      height,
		Depth:       1,
		MipLevels:   mipLevels,
		ArrayLayers: 1,
		Samples:     core1_0.Samples1,
		ImageUsage:  usage,
	}
}

// Hash returns a structural hash of the description. Hashes are stable for the life of the process.
func (d ResourceDesc) Hash() uint64 {
	return descHasher.Hash(d)
}

func (d ResourceDesc) IsRenderTarget() bool {
	return d.Kind == ResourceKindTexture && d.ImageUsage&core1_0.ImageUsageColorAttachment != 0
}

func (d ResourceDesc) IsDepthStencil() bool {
	return d.Kind == ResourceKindTexture && d.ImageUsage&core1_0.ImageUsageDepthStencilAttachment != 0
}

// HeapFlags returns the heap kind a resource with this description must be placed in
func (d ResourceDesc) HeapFlags() HeapFlags {
	switch {
	case d.Kind == ResourceKindBuffer:
		return HeapAllowBuffers
	case d.IsRenderTarget() || d.IsDepthStencil():
		return HeapAllowRenderTargets
	default:
		return HeapAllowTextures
	}
}

func (d ResourceDesc) Validate() error {
	switch d.Kind {
	case ResourceKindBuffer:
		if d.Size < 1 {
			return errors.Newf("buffer size must be positive, but was %d", d.Size)
		}
	case ResourceKindTexture:
		if d.Width < 1 || d.Height < 1 || d.Depth < 1 {
			return errors.Newf("texture extent %dx%dx%d is invalid", d.Width, d.Height, d.Depth)
		}
		if d.MipLevels < 1 || d.ArrayLayers < 1 {
			return errors.Newf("texture must have at least one mip level and array layer, but had %d and %d", d.MipLevels, d.ArrayLayers)
		}
	default:
		return errors.Newf("unknown resource kind %d", d.Kind)
	}

	return nil
}
