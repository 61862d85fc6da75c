package stats

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pooledbismuth/poolstats/internal/models"
)

func TestClampHours(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{input: -3, expected: 1},
		{input: 0, expected: 1},
		{input: 1, expected: 1},
		{input: 6, expected: 6},
		{input: 12, expected: 12},
		{input: 15, expected: 12},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClampHours(tt.input), "hours=%d", tt.input)
	}
}

func TestNewWindow(t *testing.T) {
	now := time.Unix(1_500_000_000, 0)

	w := NewWindow(now, 0)
	assert.Equal(t, Window{Hours: 1, Since: 1_500_000_000 - 3600}, w)

	w = NewWindow(now, 15)
	assert.Equal(t, Window{Hours: 12, Since: 1_500_000_000 - 12*3600}, w)
}

func TestSortBlocks(t *testing.T) {
	blocks := []models.Block{
		{ID: 1, Stamp: 100},
		{ID: 3, Stamp: 10},
		{ID: 2, Stamp: 500},
		{ID: 3, Stamp: 20},
	}

	sorted := SortBlocks(blocks)

	got := make([][2]int64, 0, len(sorted))
	for _, b := range sorted {
		got = append(got, [2]int64{b.ID, b.Stamp})
	}
	assert.Equal(t, [][2]int64{{3, 20}, {3, 10}, {2, 500}, {1, 100}}, got)
	assert.Equal(t, int64(1), blocks[0].ID, "input must not be reordered")
}

func TestBonusPercent(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		named    float64
		expected string
	}{
		{name: "no shares", total: 0, named: 0, expected: "0.00%"},
		{name: "no shares ignores named", total: 0, named: 42, expected: "0.00%"},
		{name: "all named", total: 8, named: 8, expected: "0.00%"},
		{name: "quarter unnamed", total: 4, named: 3, expected: "25.00%"},
		{name: "repeating fraction", total: 3, named: 1, expected: "66.67%"},
		{name: "nothing named", total: 5, named: 0, expected: "100.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BonusPercent(tt.total, tt.named))
		})
	}
}

func TestMiningRate(t *testing.T) {
	assert.Equal(t, "3.00", MiningRate(3, 3600, 7200).String())
	assert.Equal(t, "1.50", MiningRate(3, 0, 7200).String())

	assert.ErrorIs(t, MiningRate(3, 100, 100).Err, ErrInsufficientData)
	assert.ErrorIs(t, MiningRate(3, 200, 100).Err, ErrInsufficientData)
}

func TestAddressIDs(t *testing.T) {
	proofs := []models.WorkProof{
		{BlockID: 1, AddressID: 9},
		{BlockID: 1, AddressID: 2},
		{BlockID: 2, AddressID: 9},
	}
	assert.Equal(t, []int64{2, 9}, AddressIDs(proofs))
	assert.Empty(t, AddressIDs(nil))
}

func TestBlockIDs(t *testing.T) {
	blocks := []models.Block{{ID: 5}, {ID: 4}, {ID: 5}}
	assert.Equal(t, []int64{5, 4}, BlockIDs(blocks))
}

func windowFixture() ([]models.Block, []models.WorkProof, map[int64]string) {
	blocks := []models.Block{
		{ID: 1, Stamp: 3600, Won: true, Reward: 2, PoolShmeckles: 900, PoolBalance: 40, TotalShares: 4, NamedShares: 3},
		{ID: 3, Stamp: 7200, Won: true, Reward: 1, PoolShmeckles: 1000, PoolBalance: 50, Address: "a1b2c3d4e5f6a7b8", Nonce: "ff00",
			Difficulty: sql.NullInt64{Int64: 110, Valid: true}},
		{ID: 2, Stamp: 5400, Won: false, Reward: 0, PoolShmeckles: 950, PoolBalance: 45},
	}
	proofs := []models.WorkProof{
		{BlockID: 3, AddressID: 11, Shmeckles: 1.2345},
		{BlockID: 3, AddressID: 12, Shmeckles: 2},
		{BlockID: 1, AddressID: 11, Shmeckles: 9},
		{BlockID: 3, AddressID: 11, Shmeckles: 4},
	}
	addresses := map[int64]string{11: "alice", 12: "bob"}
	return blocks, proofs, addresses
}

func TestBuildWindowReport(t *testing.T) {
	blocks, proofs, addresses := windowFixture()
	w := Window{Hours: 2, Since: 0}
	snap := Snapshot{BlockID: 3, PoolShmeckles: 1000, PoolBalance: 50}

	report, err := BuildWindowReport(w, snap, blocks, proofs, addresses)
	require.NoError(t, err)

	assert.Equal(t, w, report.Window)
	assert.Equal(t, 3.0, report.RewardTotal)
	assert.Equal(t, int64(7200), report.BlocksEnd)
	assert.Equal(t, int64(3600), report.BlocksBegin)
	assert.Equal(t, "3.00", report.MiningRate.String())
	assert.Equal(t, "0.05", report.ExchangeRate.String())
	assert.Equal(t, 1000.0, report.PoolTotalShmeckles)
	assert.Equal(t, "50.00", report.PoolBalanceRounded.String())
	assert.Equal(t, "1 hour", report.Span)

	require.Len(t, report.Blocks, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{report.Blocks[0].ID, report.Blocks[1].ID, report.Blocks[2].ID})

	newest := report.Blocks[0]
	assert.Equal(t, "1.0000", newest.Reward)
	assert.Equal(t, "a1b2c3d4e5", newest.FinderShort)
	assert.Equal(t, "0.00%", newest.BonusPercent)
	require.NotNil(t, newest.Difficulty)
	assert.Equal(t, int64(110), *newest.Difficulty)
	assert.Nil(t, newest.TotalWork)

	// later duplicate row for address 11 replaces the first, keeping its slot
	require.Len(t, newest.Proofs, 2)
	assert.Equal(t, int64(11), newest.Proofs[0].AddressID)
	assert.Equal(t, "alice", newest.Proofs[0].Address)
	assert.Equal(t, "4.000", newest.Proofs[0].Shmeckles)
	assert.Equal(t, "0.200", newest.Proofs[0].Balance.String())
	assert.Equal(t, "bob", newest.Proofs[1].Address)
	assert.Equal(t, "2.000", newest.Proofs[1].Shmeckles)
	assert.Equal(t, "0.100", newest.Proofs[1].Balance.String())

	assert.Empty(t, report.Blocks[1].Proofs)

	oldest := report.Blocks[2]
	assert.Equal(t, "25.00%", oldest.BonusPercent)
	require.Len(t, oldest.Proofs, 1)
	assert.Equal(t, "9.000", oldest.Proofs[0].Shmeckles)
	assert.Equal(t, "0.400", oldest.Proofs[0].Balance.String())
}

func TestBuildWindowReport_ProofFormatting(t *testing.T) {
	blocks := []models.Block{{ID: 1, Stamp: 10, PoolShmeckles: 1000, PoolBalance: 50}}
	proofs := []models.WorkProof{{BlockID: 1, AddressID: 1, Shmeckles: 1.2345}}

	report, err := BuildWindowReport(Window{Hours: 1}, SnapshotOf(blocks[0]), blocks, proofs, map[int64]string{})
	require.NoError(t, err)

	entry := report.Blocks[0].Proofs[0]
	assert.Equal(t, "1.235", entry.Shmeckles)
	assert.Equal(t, "0.062", entry.Balance.String())
	assert.Equal(t, "", entry.Address)
}

func TestBuildWindowReport_SingleBlock(t *testing.T) {
	blocks := []models.Block{{ID: 8, Stamp: 500, Won: true, Reward: 4, PoolShmeckles: 10, PoolBalance: 5}}

	report, err := BuildWindowReport(Window{Hours: 1}, SnapshotOf(blocks[0]), blocks, nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, report.MiningRate.Err, ErrInsufficientData)
	assert.Equal(t, "0.50", report.ExchangeRate.String())
	assert.Equal(t, "0 seconds", report.Span)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mining_rate":null`)
}

func TestBuildWindowReport_EmptyPool(t *testing.T) {
	blocks := []models.Block{
		{ID: 2, Stamp: 200},
		{ID: 1, Stamp: 100},
	}
	proofs := []models.WorkProof{{BlockID: 2, AddressID: 1, Shmeckles: 1}}

	report, err := BuildWindowReport(Window{Hours: 1}, SnapshotOf(blocks[0]), blocks, proofs, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, report.ExchangeRate.Err, ErrInsufficientData)
	assert.ErrorIs(t, report.Blocks[0].Proofs[0].Balance.Err, ErrInsufficientData)
	assert.Equal(t, "0.00", report.MiningRate.String())
}

func TestBuildWindowReport_NoBlocks(t *testing.T) {
	report, err := BuildWindowReport(Window{Hours: 2}, Snapshot{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Nil(t, report)
}
