package transient

// Statistics is the snapshot of pool manager counters published at each EndFrame
type Statistics struct {
	// Frame is the frame the snapshot was published in
	Frame uint64

	// CurrentPoolAllocated is the number of heap bytes held by pools, idle or lent out
	CurrentPoolAllocated int
	// TotalRequested is the number of bytes requested by every allocator during the frame,
	// pooled and committed
	TotalRequested int
	// MaxFrameAllocated is the highest TotalRequested of any frame so far
	MaxFrameAllocated int
	// CommittedAllocated is the number of bytes given committed heaps during the frame
	CommittedAllocated int

	// PoolAllocations is the number of resources placed in pools during the frame
	PoolAllocations int
	// CommittedAllocations is the number of resources given committed heaps during the frame
	CommittedAllocations int

	PoolCount                int
	IdlePoolCount            int
	CachedCommittedResources int
}

// AllocatorStatistics sums up the resources created by a single Allocator
type AllocatorStatistics struct {
	PoolAllocations      int
	CommittedAllocations int
	// AllocatedBytes is the number of bytes currently held by live resources
	AllocatedBytes int
	// PeakAllocatedBytes is the highest AllocatedBytes has been
	PeakAllocatedBytes int
	// RequestedBytes is the number of bytes requested over the allocator's life
	RequestedBytes int
}

func (s *AllocatorStatistics) addAllocation(size int, committed bool) {
	if committed {
		s.CommittedAllocations++
	} else {
		s.PoolAllocations++
	}
	s.RequestedBytes += size
	s.AllocatedBytes += size
	s.PeakAllocatedBytes = max(s.PeakAllocatedBytes, s.AllocatedBytes)
}

func (s *AllocatorStatistics) removeAllocation(size int) {
	s.AllocatedBytes -= size
}
