// Package dist provides the collective communication primitives the
// evaluation driver needs: a barrier and an all-gather over a fixed set
// of cooperating processes. Rank and world size travel with the group
// instead of living in process-global state.
package dist

import "context"

// Group is the collective communication surface for one distributed
// job. Barrier and AllGather block until every rank participates; the
// only way out of a stuck collective is context cancellation.
type Group interface {
	Rank() int
	WorldSize() int

	// Barrier blocks until all ranks reach it.
	Barrier(ctx context.Context) error

	// AllGather contributes payload and returns every rank's payload,
	// indexed by rank, on every rank.
	AllGather(ctx context.Context, payload []byte) ([][]byte, error)

	Close() error
}

// Single is the degenerate single-process group.
type Single struct{}

func (Single) Rank() int      { return 0 }
func (Single) WorldSize() int { return 1 }

func (Single) Barrier(ctx context.Context) error { return ctx.Err() }

func (Single) AllGather(ctx context.Context, payload []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return [][]byte{payload}, nil
}

func (Single) Close() error { return nil }
