package stats

import (
	"database/sql"
	"sort"
	"time"

	"github.com/hako/durafmt"

	"github.com/pooledbismuth/poolstats/internal/models"
)

// Window bounds accepted for a report, in hours.
const (
	MinWindowHours = 1
	MaxWindowHours = 12
)

const finderPrefixLen = 10

// ClampHours forces hours into [MinWindowHours, MaxWindowHours].
func ClampHours(hours int) int {
	if hours < MinWindowHours {
		return MinWindowHours
	}
	if hours > MaxWindowHours {
		return MaxWindowHours
	}
	return hours
}

// Window is a clamped report window ending at a point in time.
type Window struct {
	Hours int   `json:"hours"`
	Since int64 `json:"since"`
}

// NewWindow clamps hours and computes the lower timestamp bound.
func NewWindow(now time.Time, hours int) Window {
	hours = ClampHours(hours)
	return Window{
		Hours: hours,
		Since: now.Unix() - int64(hours)*3600,
	}
}

// WindowReport lists the blocks of a window with their payouts.
type WindowReport struct {
	Window             Window        `json:"window"`
	PoolTotalShmeckles float64       `json:"pool_total_shmeckles"`
	PoolTotalBalance   float64       `json:"pool_total_balance"`
	PoolBalanceRounded Metric        `json:"pool_total_balance_rounded"`
	RewardTotal        float64       `json:"reward_total"`
	BlocksBegin        int64         `json:"blocks_begin"`
	BlocksEnd          int64         `json:"blocks_end"`
	Span               string        `json:"span"`
	MiningRate         Metric        `json:"mining_rate"`
	ExchangeRate       Metric        `json:"exchange_rate"`
	Blocks             []WindowBlock `json:"blocks"`
}

// WindowBlock is one block row of a report.
type WindowBlock struct {
	ID            int64        `json:"id"`
	Stamp         int64        `json:"stamp"`
	Won           bool         `json:"won"`
	Difficulty    *int64       `json:"difficulty"`
	Reward        string       `json:"reward"`
	Finder        string       `json:"finder"`
	FinderShort   string       `json:"finder_short"`
	Nonce         string       `json:"nonce"`
	TotalWork     *int64       `json:"total_work"`
	TotalShares   float64      `json:"total_shares"`
	NamedShares   float64      `json:"named_shares"`
	PoolShmeckles float64      `json:"pool_shmeckles"`
	PoolBalance   float64      `json:"pool_balance"`
	BonusPercent  string       `json:"bonus_percent"`
	Proofs        []ProofEntry `json:"proofs"`
}

// ProofEntry is one address's share of a block.
type ProofEntry struct {
	AddressID int64  `json:"address_id"`
	Address   string `json:"address"`
	Shmeckles string `json:"shmeckles"`
	Balance   Metric `json:"balance"`
}

// SortBlocks returns a copy of blocks ordered by descending id, then
// descending timestamp. Ids are authoritative; stamps may repeat or run
// backwards with clock skew.
func SortBlocks(blocks []models.Block) []models.Block {
	sorted := make([]models.Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].Stamp > sorted[j].Stamp
	})
	return sorted
}

// BlockIDs returns the distinct block ids in order of first appearance.
func BlockIDs(blocks []models.Block) []int64 {
	seen := make(map[int64]struct{}, len(blocks))
	ids := make([]int64, 0, len(blocks))
	for _, b := range blocks {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		ids = append(ids, b.ID)
	}
	return ids
}

// AddressIDs returns the distinct address ids referenced by proofs, ascending.
func AddressIDs(proofs []models.WorkProof) []int64 {
	seen := make(map[int64]struct{}, len(proofs))
	ids := make([]int64, 0, len(proofs))
	for _, p := range proofs {
		if _, ok := seen[p.AddressID]; ok {
			continue
		}
		seen[p.AddressID] = struct{}{}
		ids = append(ids, p.AddressID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BonusPercent is the share of a block's work not done by named miners:
// 100 - named/total*100, or exactly 0.00% when the block has no shares.
func BonusPercent(totalShares, namedShares float64) string {
	if totalShares <= 0 {
		return "0.00%"
	}
	return Format(100-(namedShares/totalShares)*100, BonusPlaces) + "%"
}

// MiningRate is the BIS won per hour across the window, rounded to two places.
// A window with no positive width has no rate.
func MiningRate(rewardTotal float64, begin, end int64) Metric {
	if end <= begin {
		return Undefined(RatePlaces, ErrInsufficientData)
	}
	return NewMetric(rewardTotal/float64(end-begin)*3600, RatePlaces)
}

// proofIndex groups proofs by block, then by address. A later row for the
// same (block, address) replaces the earlier one but keeps its position.
type proofIndex struct {
	order map[int64][]int64
	rows  map[int64]map[int64]models.WorkProof
}

func indexProofs(proofs []models.WorkProof) proofIndex {
	idx := proofIndex{
		order: make(map[int64][]int64),
		rows:  make(map[int64]map[int64]models.WorkProof),
	}
	for _, p := range proofs {
		byAddress, ok := idx.rows[p.BlockID]
		if !ok {
			byAddress = make(map[int64]models.WorkProof)
			idx.rows[p.BlockID] = byAddress
		}
		if _, dup := byAddress[p.AddressID]; !dup {
			idx.order[p.BlockID] = append(idx.order[p.BlockID], p.AddressID)
		}
		byAddress[p.AddressID] = p
	}
	return idx
}

func (idx proofIndex) forBlock(blockID int64) []models.WorkProof {
	ids := idx.order[blockID]
	out := make([]models.WorkProof, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.rows[blockID][id])
	}
	return out
}

// BuildWindowReport aggregates the blocks of a window. snap carries the
// current pool totals, normally taken from the newest block. An empty block
// list is ErrNoData. Undefined rates are reported on their Metric rather than
// failing the report.
func BuildWindowReport(w Window, snap Snapshot, blocks []models.Block, proofs []models.WorkProof, addresses map[int64]string) (*WindowReport, error) {
	if len(blocks) == 0 {
		return nil, ErrNoData
	}
	blocks = SortBlocks(blocks)

	report := &WindowReport{
		Window:             w,
		PoolTotalShmeckles: snap.PoolShmeckles,
		PoolTotalBalance:   snap.PoolBalance,
		PoolBalanceRounded: NewMetric(snap.PoolBalance, PoolTotalPlaces),
		BlocksEnd:          blocks[0].Stamp,
		BlocksBegin:        blocks[len(blocks)-1].Stamp,
		ExchangeRate:       snap.ExchangeRate(),
		Blocks:             make([]WindowBlock, 0, len(blocks)),
	}

	idx := indexProofs(proofs)
	for _, b := range blocks {
		if b.Won {
			report.RewardTotal += b.Reward
		}
		report.Blocks = append(report.Blocks, buildWindowBlock(b, idx.forBlock(b.ID), addresses))
	}

	report.MiningRate = MiningRate(report.RewardTotal, report.BlocksBegin, report.BlocksEnd)
	report.Span = spanText(report.BlocksEnd - report.BlocksBegin)

	return report, nil
}

func buildWindowBlock(b models.Block, proofs []models.WorkProof, addresses map[int64]string) WindowBlock {
	row := WindowBlock{
		ID:            b.ID,
		Stamp:         b.Stamp,
		Won:           b.Won,
		Difficulty:    nullInt(b.Difficulty),
		Reward:        Format(b.Reward, RewardPlaces),
		Finder:        b.Address,
		FinderShort:   truncate(b.Address, finderPrefixLen),
		Nonce:         b.Nonce,
		TotalWork:     nullInt(b.TotalWork),
		TotalShares:   b.TotalShares,
		NamedShares:   b.NamedShares,
		PoolShmeckles: b.PoolShmeckles,
		PoolBalance:   b.PoolBalance,
		BonusPercent:  BonusPercent(b.TotalShares, b.NamedShares),
		Proofs:        make([]ProofEntry, 0, len(proofs)),
	}

	// Payouts use the totals recorded on this block, not the current pool.
	snap := SnapshotOf(b)
	for _, p := range proofs {
		entry := ProofEntry{
			AddressID: p.AddressID,
			Address:   addresses[p.AddressID],
			Shmeckles: Format(p.Shmeckles, ShmecklePlaces),
		}
		if payout, err := snap.Payout(p.Shmeckles); err != nil {
			entry.Balance = Undefined(ShmecklePlaces, err)
		} else {
			entry.Balance = NewMetric(payout, ShmecklePlaces)
		}
		row.Proofs = append(row.Proofs, entry)
	}
	return row
}

func spanText(seconds int64) string {
	if seconds <= 0 {
		return "0 seconds"
	}
	return durafmt.Parse(time.Duration(seconds) * time.Second).LimitFirstN(2).String()
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
