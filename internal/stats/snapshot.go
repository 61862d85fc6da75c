package stats

import (
	"fmt"

	"github.com/pooledbismuth/poolstats/internal/models"
)

// Snapshot holds the pool-wide running totals as of one block. The newest
// block's snapshot is the current state of the pool.
type Snapshot struct {
	BlockID       int64   `json:"block_id"`
	PoolShmeckles float64 `json:"pool_shmeckles"`
	PoolBalance   float64 `json:"pool_balance"`
}

// SnapshotOf takes the running totals recorded on block.
func SnapshotOf(block models.Block) Snapshot {
	return Snapshot{
		BlockID:       block.ID,
		PoolShmeckles: block.PoolShmeckles,
		PoolBalance:   block.PoolBalance,
	}
}

func (s Snapshot) requireShmeckles() error {
	if s.PoolShmeckles == 0 {
		return fmt.Errorf("%w: pool has no shmeckles as of block %d", ErrInsufficientData, s.BlockID)
	}
	return nil
}

// Share returns shmeckles as a fraction of the pool.
func (s Snapshot) Share(shmeckles float64) (float64, error) {
	if err := s.requireShmeckles(); err != nil {
		return 0, err
	}
	return shmeckles / s.PoolShmeckles, nil
}

// Payout converts shmeckles into the proportional BIS balance.
func (s Snapshot) Payout(shmeckles float64) (float64, error) {
	share, err := s.Share(shmeckles)
	if err != nil {
		return 0, err
	}
	return share * s.PoolBalance, nil
}

// ExchangeRate is the BIS value of one shmeckle, rounded to two places.
func (s Snapshot) ExchangeRate() Metric {
	if err := s.requireShmeckles(); err != nil {
		return Undefined(RatePlaces, err)
	}
	return NewMetric(s.PoolBalance/s.PoolShmeckles, RatePlaces)
}
