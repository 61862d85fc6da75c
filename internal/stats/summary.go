package stats

import (
	"github.com/pooledbismuth/poolstats/internal/models"
)

// AddressSummary aggregates every work proof of one address.
type AddressSummary struct {
	Address        string   `json:"address"`
	AddressID      int64    `json:"address_id"`
	TotalBlocks    int      `json:"total_blocks"`
	TotalShmeckles float64  `json:"total_shmeckles"`
	TotalWorkCount int64    `json:"total_workcount"`
	SharePercent   Metric   `json:"share_percent"`
	Balance        float64  `json:"balance"`
	Snapshot       Snapshot `json:"snapshot"`
}

// SummarizeAddress totals the proofs belonging to addressID against the pool
// snapshot. Proofs of other addresses are ignored. The balance keeps full
// precision; only the share percentage is rounded.
func SummarizeAddress(address string, addressID int64, proofs []models.WorkProof, snap Snapshot) (*AddressSummary, error) {
	summary := &AddressSummary{
		Address:   address,
		AddressID: addressID,
		Snapshot:  snap,
	}

	blocks := make(map[int64]struct{})
	for _, proof := range proofs {
		if proof.AddressID != addressID {
			continue
		}
		blocks[proof.BlockID] = struct{}{}
		summary.TotalShmeckles += proof.Shmeckles
		summary.TotalWorkCount += proof.WorkCount
	}
	summary.TotalBlocks = len(blocks)

	share, err := snap.Share(summary.TotalShmeckles)
	if err != nil {
		return nil, err
	}
	summary.SharePercent = NewMetric(share*100, PercentPlaces)
	summary.Balance = share * snap.PoolBalance

	return summary, nil
}
