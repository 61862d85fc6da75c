package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pooledbismuth/poolstats/internal/metrics"
	"github.com/pooledbismuth/poolstats/internal/models"
	"github.com/pooledbismuth/poolstats/internal/stats"
)

// DefaultBatchSize bounds the number of ids bound into one IN clause.
const DefaultBatchSize = 500

// Repository provides database access methods
type Repository struct {
	db        *gorm.DB
	batchSize int
	metrics   *metrics.Store
}

// NewRepository creates a new repository. batchSize <= 0 selects
// DefaultBatchSize.
func NewRepository(db *gorm.DB, batchSize int) *Repository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Repository{
		db:        db,
		batchSize: batchSize,
		metrics:   metrics.NewStore("postgres"),
	}
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []int64, size int) [][]int64 {
	var out [][]int64
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// BlockRepository provides block-related database operations
type BlockRepository struct {
	*Repository
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(repo *Repository) *BlockRepository {
	return &BlockRepository{Repository: repo}
}

// Latest retrieves the block with the highest id, or nil when there are none.
func (r *BlockRepository) Latest(ctx context.Context) (block *models.Block, err error) {
	defer func(start time.Time) { r.metrics.Observe("latest_block", err, start) }(time.Now())

	var b models.Block
	if err = r.db.WithContext(ctx).Order("id DESC").First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest block: %w", err)
	}
	return &b, nil
}

// blocksSinceQuery selects blocks stamped at or after stamp, newest id first.
// Ties on id fall back to the newest stamp.
func blocksSinceQuery(tx *gorm.DB, stamp int64) *gorm.DB {
	return tx.Model(&models.Block{}).
		Where("stamp >= ?", stamp).
		Order("id DESC").
		Order("stamp DESC")
}

// Since retrieves blocks stamped at or after stamp.
func (r *BlockRepository) Since(ctx context.Context, stamp int64) (blocks []models.Block, err error) {
	defer func(start time.Time) { r.metrics.Observe("blocks_since", err, start) }(time.Now())

	if err = blocksSinceQuery(r.db.WithContext(ctx), stamp).Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("query blocks since %d: %w", stamp, err)
	}
	return blocks, nil
}

// WorkProofRepository provides work proof database operations
type WorkProofRepository struct {
	*Repository
}

// NewWorkProofRepository creates a new work proof repository
func NewWorkProofRepository(repo *Repository) *WorkProofRepository {
	return &WorkProofRepository{Repository: repo}
}

// ByBlocks retrieves the proofs of the given blocks. An empty id set returns
// no rows without querying.
func (r *WorkProofRepository) ByBlocks(ctx context.Context, blockIDs []int64) (proofs []models.WorkProof, err error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { r.metrics.Observe("work_proofs", err, start) }(time.Now())

	for _, ids := range chunk(blockIDs, r.batchSize) {
		var rows []models.WorkProof
		err = r.db.WithContext(ctx).
			Where("block_id IN ?", ids).
			Order("block_id DESC").
			Order("address_id ASC").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("query work proofs: %w", err)
		}
		proofs = append(proofs, rows...)
	}
	return proofs, nil
}

// ByAddress retrieves every proof of one address.
func (r *WorkProofRepository) ByAddress(ctx context.Context, addressID int64) (proofs []models.WorkProof, err error) {
	defer func(start time.Time) { r.metrics.Observe("work_proofs_for_address", err, start) }(time.Now())

	err = r.db.WithContext(ctx).
		Where("address_id = ?", addressID).
		Order("block_id DESC").
		Find(&proofs).Error
	if err != nil {
		return nil, fmt.Errorf("query work proofs for address %d: %w", addressID, err)
	}
	return proofs, nil
}

// AddressRepository provides address lookups
type AddressRepository struct {
	*Repository
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(repo *Repository) *AddressRepository {
	return &AddressRepository{Repository: repo}
}

// IDByAddress looks up the id of address, or stats.ErrNotFound.
func (r *AddressRepository) IDByAddress(ctx context.Context, address string) (id int64, err error) {
	defer func(start time.Time) { r.metrics.Observe("find_address_id", err, start) }(time.Now())

	var a models.Address
	err = r.db.WithContext(ctx).
		Select("id").
		Where("address = ?", address).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("address %q: %w", address, stats.ErrNotFound)
		}
		return 0, fmt.Errorf("query address id: %w", err)
	}
	return a.ID, nil
}

// Resolve maps ids onto address strings. Unknown ids are absent from the
// result. An empty id set returns an empty map without querying.
func (r *AddressRepository) Resolve(ctx context.Context, ids []int64) (resolved map[int64]string, err error) {
	resolved = make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}
	defer func(start time.Time) { r.metrics.Observe("resolve_addresses", err, start) }(time.Now())

	for _, batch := range chunk(ids, r.batchSize) {
		var rows []models.Address
		err = r.db.WithContext(ctx).
			Select("id", "address").
			Where("id IN ?", batch).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("query addresses: %w", err)
		}
		for _, row := range rows {
			resolved[row.ID] = row.Address
		}
	}
	return resolved, nil
}

// PoolRepository bundles the read operations the reporter needs.
type PoolRepository struct {
	blocks    *BlockRepository
	proofs    *WorkProofRepository
	addresses *AddressRepository
}

// NewPoolRepository creates a pool repository over database.
func NewPoolRepository(database *gorm.DB, batchSize int) *PoolRepository {
	repo := NewRepository(database, batchSize)
	return &PoolRepository{
		blocks:    NewBlockRepository(repo),
		proofs:    NewWorkProofRepository(repo),
		addresses: NewAddressRepository(repo),
	}
}

// LatestBlock returns the newest block, or nil if the pool has none.
func (p *PoolRepository) LatestBlock(ctx context.Context) (*models.Block, error) {
	return p.blocks.Latest(ctx)
}

// BlocksSince returns blocks with stamp >= stamp ordered by id DESC, stamp DESC.
func (p *PoolRepository) BlocksSince(ctx context.Context, stamp int64) ([]models.Block, error) {
	return p.blocks.Since(ctx, stamp)
}

// WorkProofs returns the proofs attached to blockIDs.
func (p *PoolRepository) WorkProofs(ctx context.Context, blockIDs []int64) ([]models.WorkProof, error) {
	return p.proofs.ByBlocks(ctx, blockIDs)
}

// ResolveAddresses maps address ids to address strings.
func (p *PoolRepository) ResolveAddresses(ctx context.Context, ids []int64) (map[int64]string, error) {
	return p.addresses.Resolve(ctx, ids)
}

// FindAddressID returns the id of address or stats.ErrNotFound.
func (p *PoolRepository) FindAddressID(ctx context.Context, address string) (int64, error) {
	return p.addresses.IDByAddress(ctx, address)
}

// WorkProofsForAddress returns every proof of addressID.
func (p *PoolRepository) WorkProofsForAddress(ctx context.Context, addressID int64) ([]models.WorkProof, error) {
	return p.proofs.ByAddress(ctx, addressID)
}
