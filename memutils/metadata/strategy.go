package metadata

// AllocationStrategy exposes options for choosing the location of a new allocation. If none is
// chosen, AllocationStrategyMinOffset is used.
type AllocationStrategy uint32

const (
	// AllocationStrategyMinMemory chooses the smallest free region that can hold the allocation
	// (best fit) to minimize fragmentation, at the expense of scanning every free region
	AllocationStrategyMinMemory AllocationStrategy = 1 << iota
	// AllocationStrategyMinTime chooses the first free region that can hold the allocation
	AllocationStrategyMinTime
	// AllocationStrategyMinOffset chooses the free region with the lowest offset that can hold the
	// allocation. For an offset-ordered free list this is the same region as AllocationStrategyMinTime.
	AllocationStrategyMinOffset
)

var allocationStrategyMapping = map[AllocationStrategy]string{
	0:                           "Default",
	AllocationStrategyMinMemory: "MinMemory",
	AllocationStrategyMinTime:   "MinTime",
	AllocationStrategyMinOffset: "MinOffset",
}

func (s AllocationStrategy) String() string {
	return allocationStrategyMapping[s]
}
