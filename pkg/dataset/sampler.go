package dataset

import "fmt"

// InferenceSampler assigns a contiguous slice of dataset indices to one
// rank so that all ranks together partition [0, totalSize) exactly.
// When totalSize does not divide evenly, lower ranks receive one extra
// item each.
type InferenceSampler struct {
	begin int
	end   int
}

// NewInferenceSampler computes the shard for rank in a job of worldSize
// processes over totalSize items.
func NewInferenceSampler(totalSize, worldSize, rank int) (*InferenceSampler, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("dataset: total size must be positive, got %d", totalSize)
	}
	if worldSize < 1 {
		return nil, fmt.Errorf("dataset: world size must be at least 1, got %d", worldSize)
	}
	if rank < 0 || rank >= worldSize {
		return nil, fmt.Errorf("dataset: rank %d out of range [0, %d)", rank, worldSize)
	}

	base := totalSize / worldSize
	remainder := totalSize % worldSize

	begin := base*rank + min(rank, remainder)
	size := base
	if rank < remainder {
		size++
	}
	end := begin + size
	if end > totalSize {
		end = totalSize
	}

	return &InferenceSampler{begin: begin, end: end}, nil
}

// Len is the number of indices owned by this rank.
func (s *InferenceSampler) Len() int {
	return s.end - s.begin
}

// Begin is the first global index owned by this rank.
func (s *InferenceSampler) Begin() int {
	return s.begin
}

// End is one past the last global index owned by this rank.
func (s *InferenceSampler) End() int {
	return s.end
}

// Indices returns the rank's global indices in ascending order.
func (s *InferenceSampler) Indices() []int {
	indices := make([]int, 0, s.Len())
	for i := s.begin; i < s.end; i++ {
		indices = append(indices, i)
	}
	return indices
}
