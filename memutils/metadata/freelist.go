package metadata

import (
	"sync"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/arsenal/transient/memutils"
	"golang.org/x/exp/slices"
)

type freeRange struct {
	offset int
	size   int
}

func (r freeRange) end() int { return r.offset + r.size }

type allocationNode struct {
	offset   int
	size     int
	userData any
}

// FreeListBlockMetadata is a BlockMetadata implementation that keeps the free regions of the
// block in a slice ordered by offset. Freed allocations are merged with their neighbors, so no two
// free regions are ever adjacent. Allocations are found by first fit, or by best fit with
// AllocationStrategyMinMemory.
//
// Allocation handles are the offset of the allocation within the block.
type FreeListBlockMetadata struct {
	BlockMetadataBase

	freeRanges  []freeRange
	allocations *swiss.Map[BlockAllocationHandle, *allocationNode]
	sumFreeSize int

	nodePool sync.Pool
}

var _ BlockMetadata = &FreeListBlockMetadata{}

func NewFreeListBlockMetadata() *FreeListBlockMetadata {
	return &FreeListBlockMetadata{
		allocations: swiss.NewMap[BlockAllocationHandle, *allocationNode](16),
		nodePool: sync.Pool{
			New: func() any {
				return &allocationNode{}
			},
		},
	}
}

func (m *FreeListBlockMetadata) Init(size int) {
	m.BlockMetadataBase.Init(size)
	m.Clear()
}

func (m *FreeListBlockMetadata) Clear() {
	m.allocations.Iter(func(_ BlockAllocationHandle, node *allocationNode) bool {
		m.releaseNode(node)
		return false
	})
	m.allocations.Clear()

	m.freeRanges = m.freeRanges[:0]
	if m.size > 0 {
		m.freeRanges = append(m.freeRanges, freeRange{offset: 0, size: m.size})
	}
	m.sumFreeSize = m.size
}

func (m *FreeListBlockMetadata) releaseNode(node *allocationNode) {
	node.userData = nil
	m.nodePool.Put(node)
}

func (m *FreeListBlockMetadata) AllocationCount() int { return m.allocations.Count() }

func (m *FreeListBlockMetadata) FreeRegionsCount() int { return len(m.freeRanges) }

func (m *FreeListBlockMetadata) SumFreeSize() int { return m.sumFreeSize }

func (m *FreeListBlockMetadata) IsEmpty() bool { return m.allocations.Count() == 0 }

func (m *FreeListBlockMetadata) LargestFreeRegion() int {
	largest := 0
	for _, r := range m.freeRanges {
		largest = max(largest, r.size)
	}
	return largest
}

// findContainingRange returns the index of the free region whose offset is closest to, but not
// above, offset. It returns -1 if every free region starts above offset.
func (m *FreeListBlockMetadata) findContainingRange(offset int) int {
	index, found := slices.BinarySearchFunc(m.freeRanges, offset, func(r freeRange, target int) int {
		return r.offset - target
	})
	if found {
		return index
	}
	return index - 1
}

func (m *FreeListBlockMetadata) CreateAllocationRequest(allocSize int, allocAlignment uint, strategy AllocationStrategy) (bool, AllocationRequest, error) {
	if allocSize < 1 {
		return false, AllocationRequest{}, errors.Errorf("invalid allocation size %d", allocSize)
	}
	if allocAlignment == 0 {
		allocAlignment = 1
	}
	err := memutils.CheckPow2(allocAlignment, "allocation alignment")
	if err != nil {
		return false, AllocationRequest{}, err
	}

	if allocSize > m.sumFreeSize {
		return false, AllocationRequest{}, nil
	}

	bestIndex := -1
	bestOffset := 0
	bestLeftover := 0
	for i, r := range m.freeRanges {
		alignedOffset := memutils.AlignUp(r.offset, allocAlignment)
		if alignedOffset+allocSize > r.end() {
			continue
		}

		leftover := r.size - allocSize
		if bestIndex < 0 || leftover < bestLeftover {
			bestIndex = i
			bestOffset = alignedOffset
			bestLeftover = leftover
		}

		if strategy&AllocationStrategyMinMemory == 0 || leftover == 0 {
			break
		}
	}

	if bestIndex < 0 {
		return false, AllocationRequest{}, nil
	}

	return true, AllocationRequest{
		BlockAllocationHandle: BlockAllocationHandle(bestOffset),
		Size:                  allocSize,
		Item: Suballocation{
			Offset: bestOffset,
			Size:   allocSize,
		},
		Type:          AllocationRequestFreeList,
		AlgorithmData: uint64(bestIndex),
	}, nil
}

func (m *FreeListBlockMetadata) Alloc(request AllocationRequest, userData any) error {
	if request.Type != AllocationRequestFreeList {
		return errors.Errorf("allocation request of type %s was not created by a free list", request.Type)
	}

	offset := request.Item.Offset
	size := request.Size
	index := m.findContainingRange(offset)
	if index < 0 || offset+size > m.freeRanges[index].end() {
		return errors.Errorf("allocation request at offset %d with size %d no longer fits a free region", offset, size)
	}

	region := m.freeRanges[index]
	var remaining []freeRange
	if offset > region.offset {
		remaining = append(remaining, freeRange{offset: region.offset, size: offset - region.offset})
	}
	if offset+size < region.end() {
		remaining = append(remaining, freeRange{offset: offset + size, size: region.end() - offset - size})
	}
	m.freeRanges = slices.Replace(m.freeRanges, index, index+1, remaining...)
	m.sumFreeSize -= size

	node := m.nodePool.Get().(*allocationNode)
	node.offset = offset
	node.size = size
	node.userData = userData
	m.allocations.Put(request.BlockAllocationHandle, node)

	memutils.DebugValidate(m)
	return nil
}

func (m *FreeListBlockMetadata) Free(allocHandle BlockAllocationHandle) error {
	node, ok := m.allocations.Get(allocHandle)
	if !ok {
		return errors.Errorf("attempted to free unknown allocation %d", allocHandle)
	}

	freed := freeRange{offset: node.offset, size: node.size}
	insertAt, _ := slices.BinarySearchFunc(m.freeRanges, freed.offset, func(r freeRange, target int) int {
		return r.offset - target
	})

	if insertAt > 0 && m.freeRanges[insertAt-1].end() > freed.offset {
		return errors.Errorf("allocation at offset %d overlaps the free region at offset %d", freed.offset, m.freeRanges[insertAt-1].offset)
	}
	if insertAt < len(m.freeRanges) && freed.end() > m.freeRanges[insertAt].offset {
		return errors.Errorf("allocation at offset %d overlaps the free region at offset %d", freed.offset, m.freeRanges[insertAt].offset)
	}

	m.allocations.Delete(allocHandle)
	m.releaseNode(node)
	m.sumFreeSize += freed.size

	mergePrev := insertAt > 0 && m.freeRanges[insertAt-1].end() == freed.offset
	mergeNext := insertAt < len(m.freeRanges) && freed.end() == m.freeRanges[insertAt].offset

	switch {
	case mergePrev && mergeNext:
		m.freeRanges[insertAt-1].size += freed.size + m.freeRanges[insertAt].size
		m.freeRanges = slices.Delete(m.freeRanges, insertAt, insertAt+1)
	case mergePrev:
		m.freeRanges[insertAt-1].size += freed.size
	case mergeNext:
		m.freeRanges[insertAt].offset = freed.offset
		m.freeRanges[insertAt].size += freed.size
	default:
		m.freeRanges = slices.Insert(m.freeRanges, insertAt, freed)
	}

	memutils.DebugValidate(m)
	return nil
}

func (m *FreeListBlockMetadata) AllocationOffset(allocHandle BlockAllocationHandle) (int, error) {
	node, ok := m.allocations.Get(allocHandle)
	if !ok {
		return 0, errors.Errorf("unknown allocation %d", allocHandle)
	}
	return node.offset, nil
}

func (m *FreeListBlockMetadata) AllocationSize(allocHandle BlockAllocationHandle) (int, error) {
	node, ok := m.allocations.Get(allocHandle)
	if !ok {
		return 0, errors.Errorf("unknown allocation %d", allocHandle)
	}
	return node.size, nil
}

func (m *FreeListBlockMetadata) AllocationUserData(allocHandle BlockAllocationHandle) (any, error) {
	node, ok := m.allocations.Get(allocHandle)
	if !ok {
		return nil, errors.Errorf("unknown allocation %d", allocHandle)
	}
	return node.userData, nil
}

func (m *FreeListBlockMetadata) SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error {
	node, ok := m.allocations.Get(allocHandle)
	if !ok {
		return errors.Errorf("unknown allocation %d", allocHandle)
	}
	node.userData = userData
	return nil
}

func (m *FreeListBlockMetadata) sortedAllocations() []*allocationNode {
	nodes := make([]*allocationNode, 0, m.allocations.Count())
	m.allocations.Iter(func(_ BlockAllocationHandle, node *allocationNode) bool {
		nodes = append(nodes, node)
		return false
	})
	slices.SortFunc(nodes, func(a, b *allocationNode) bool {
		return a.offset < b.offset
	})
	return nodes
}

func (m *FreeListBlockMetadata) VisitAllRegions(handleBlock func(handle BlockAllocationHandle, offset int, size int, userData any, free bool) error) error {
	nodes := m.sortedAllocations()

	freeIndex := 0
	for _, node := range nodes {
		for freeIndex < len(m.freeRanges) && m.freeRanges[freeIndex].offset < node.offset {
			r := m.freeRanges[freeIndex]
			err := handleBlock(NoAllocation, r.offset, r.size, nil, true)
			if err != nil {
				return err
			}
			freeIndex++
		}

		err := handleBlock(BlockAllocationHandle(node.offset), node.offset, node.size, node.userData, false)
		if err != nil {
			return err
		}
	}

	for ; freeIndex < len(m.freeRanges); freeIndex++ {
		r := m.freeRanges[freeIndex]
		err := handleBlock(NoAllocation, r.offset, r.size, nil, true)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *FreeListBlockMetadata) Validate() error {
	sumFree := 0
	for i, r := range m.freeRanges {
		if r.size < 1 {
			return errors.Errorf("free region at offset %d has invalid size %d", r.offset, r.size)
		}
		if i > 0 {
			prev := m.freeRanges[i-1]
			if prev.end() > r.offset {
				return errors.Errorf("free regions at offsets %d and %d overlap", prev.offset, r.offset)
			}
			if prev.end() == r.offset {
				return errors.Errorf("free regions at offsets %d and %d were not merged", prev.offset, r.offset)
			}
		}
		sumFree += r.size
	}

	if sumFree != m.sumFreeSize {
		return errors.Errorf("free regions sum to %d bytes but the block reports %d free bytes", sumFree, m.sumFreeSize)
	}

	expectedOffset := 0
	err := m.VisitAllRegions(func(handle BlockAllocationHandle, offset int, size int, userData any, free bool) error {
		if offset != expectedOffset {
			return errors.Errorf("region at offset %d does not begin where the previous region ended (%d)", offset, expectedOffset)
		}
		if !free && handle != BlockAllocationHandle(offset) {
			return errors.Errorf("allocation at offset %d has mismatched handle %d", offset, handle)
		}
		expectedOffset = offset + size
		return nil
	})
	if err != nil {
		return err
	}

	if expectedOffset != m.size {
		return errors.Errorf("regions cover %d bytes of a %d byte block", expectedOffset, m.size)
	}

	return nil
}

func (m *FreeListBlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.AddHeap(m.size)

	m.allocations.Iter(func(_ BlockAllocationHandle, node *allocationNode) bool {
		stats.AddAllocation(node.size)
		return false
	})

	for _, r := range m.freeRanges {
		stats.AddUnusedRange(r.size)
	}
}

func (m *FreeListBlockMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.AddHeap(m.size)
	stats.AllocationCount += m.allocations.Count()
	stats.AllocationBytes += m.size - m.sumFreeSize
}

func (m *FreeListBlockMetadata) BlockJsonData(json jwriter.ObjectState) {
	m.writeJsonData(json, m.sumFreeSize, m.allocations.Count(), len(m.freeRanges))
	json.Name("LargestUnusedRange").Int(m.LargestFreeRegion())
}
