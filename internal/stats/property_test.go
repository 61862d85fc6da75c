package stats

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pooledbismuth/poolstats/internal/models"
)

func proofFuzzer(seed int64) *fuzz.Fuzzer {
	return fuzz.NewWithSeed(seed).NilChance(0).NumElements(0, 40).Funcs(
		func(p *models.WorkProof, c fuzz.Continue) {
			p.BlockID = int64(c.Intn(12))
			p.AddressID = int64(c.Intn(3))
			p.WorkCount = int64(c.Intn(100))
			p.Shmeckles = float64(c.Intn(100_000)) / 1000
		},
	)
}

func TestSummarizeAddress_Totals(t *testing.T) {
	f := proofFuzzer(42)
	snap := Snapshot{PoolShmeckles: 1000, PoolBalance: 50}

	for i := 0; i < 200; i++ {
		var proofs []models.WorkProof
		f.Fuzz(&proofs)

		var shmeckles float64
		var workcount int64
		blocks := map[int64]bool{}
		for _, p := range proofs {
			if p.AddressID == 1 {
				shmeckles += p.Shmeckles
				workcount += p.WorkCount
				blocks[p.BlockID] = true
			}
		}

		summary, err := SummarizeAddress("a", 1, proofs, snap)
		require.NoError(t, err)
		assert.Equal(t, shmeckles, summary.TotalShmeckles)
		assert.Equal(t, workcount, summary.TotalWorkCount)
		assert.Equal(t, len(blocks), summary.TotalBlocks)
	}
}

func TestSummarizeAddress_Monotone(t *testing.T) {
	f := proofFuzzer(7)
	snap := Snapshot{PoolShmeckles: 1000, PoolBalance: 50}

	for i := 0; i < 200; i++ {
		var proofs []models.WorkProof
		f.Fuzz(&proofs)

		var extra models.WorkProof
		f.Fuzz(&extra)
		extra.AddressID = 1
		extra.BlockID = 100

		before, err := SummarizeAddress("a", 1, proofs, snap)
		require.NoError(t, err)
		after, err := SummarizeAddress("a", 1, append(proofs, extra), snap)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, after.TotalShmeckles, before.TotalShmeckles)
		assert.True(t, after.SharePercent.Value.GreaterThanOrEqual(before.SharePercent.Value),
			"share %s < %s", after.SharePercent, before.SharePercent)
		assert.GreaterOrEqual(t, after.Balance, before.Balance)
	}
}
