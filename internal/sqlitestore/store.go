// Package sqlitestore reads the pool database written by the PooledBismuth
// accounting process, which keeps its state in a local sqlite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pooledbismuth/poolstats/internal/metrics"
	"github.com/pooledbismuth/poolstats/internal/models"
	"github.com/pooledbismuth/poolstats/internal/stats"
)

// DefaultBatchSize bounds the number of ids bound into one IN clause. sqlite
// caps host parameters per statement, so large id sets are split.
const DefaultBatchSize = 500

const blockColumns = `id, stamp, won, total_shares, nonce, reward, address, difficulty,
	total_work, named_work, named_shares, pool_balance, pool_shmeckles`

const proofColumns = `block_id, address_id, shares, workcount, shmeckles`

// Store serves pool reads from a sqlite database.
type Store struct {
	db        *sql.DB
	batchSize int
	metrics   *metrics.Store
}

// PathFromURL extracts the file path from a sqlite database URL. It accepts
// sqlite://path, sqlite:path and file:path.
func PathFromURL(url string) (string, bool) {
	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(url, prefix) {
			path := strings.TrimPrefix(url, prefix)
			if idx := strings.IndexByte(path, '?'); idx >= 0 {
				path = path[:idx]
			}
			return path, path != ""
		}
	}
	return "", false
}

// Open opens the sqlite file at path read-only.
func Open(path string, batchSize int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, os.ErrInvalid
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("pool database: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, batchSize), nil
}

// New wraps an already opened database.
func New(db *sql.DB, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{
		db:        db,
		batchSize: batchSize,
		metrics:   metrics.NewStore("sqlite"),
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (models.Block, error) {
	var b models.Block
	err := row.Scan(&b.ID, &b.Stamp, &b.Won, &b.TotalShares, &b.Nonce, &b.Reward, &b.Address,
		&b.Difficulty, &b.TotalWork, &b.NamedWork, &b.NamedShares, &b.PoolBalance, &b.PoolShmeckles)
	return b, err
}

func scanProof(row rowScanner) (models.WorkProof, error) {
	var p models.WorkProof
	err := row.Scan(&p.BlockID, &p.AddressID, &p.Shares, &p.WorkCount, &p.Shmeckles)
	return p, err
}

// LatestBlock returns the block with the highest id, or nil when empty.
func (s *Store) LatestBlock(ctx context.Context) (block *models.Block, err error) {
	defer func(start time.Time) { s.metrics.Observe("latest_block", err, start) }(time.Now())

	b, err := scanBlock(s.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks ORDER BY id DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest block: %w", err)
	}
	return &b, nil
}

// BlocksSince returns blocks with stamp >= stamp ordered by id DESC, stamp DESC.
func (s *Store) BlocksSince(ctx context.Context, stamp int64) (blocks []models.Block, err error) {
	defer func(start time.Time) { s.metrics.Observe("blocks_since", err, start) }(time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE stamp >= ? ORDER BY id DESC, stamp DESC`, stamp)
	if err != nil {
		return nil, fmt.Errorf("query blocks since %d: %w", stamp, err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return blocks, nil
}

// inClause returns "(?,?,...)" and the matching arguments for ids.
func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}

func (s *Store) batches(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > s.batchSize {
		out = append(out, ids[:s.batchSize])
		ids = ids[s.batchSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func (s *Store) queryProofs(ctx context.Context, query string, args ...any) ([]models.WorkProof, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proofs []models.WorkProof
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work proof: %w", err)
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

// WorkProofs returns the proofs attached to blockIDs. An empty id set returns
// no rows without querying.
func (s *Store) WorkProofs(ctx context.Context, blockIDs []int64) (proofs []models.WorkProof, err error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { s.metrics.Observe("work_proofs", err, start) }(time.Now())

	for _, batch := range s.batches(blockIDs) {
		in, args := inClause(batch)
		rows, err := s.queryProofs(ctx,
			`SELECT `+proofColumns+` FROM workproof WHERE block_id IN `+in+` ORDER BY block_id DESC, address_id ASC`,
			args...)
		if err != nil {
			return nil, fmt.Errorf("query work proofs: %w", err)
		}
		proofs = append(proofs, rows...)
	}
	return proofs, nil
}

// WorkProofsForAddress returns every proof of addressID.
func (s *Store) WorkProofsForAddress(ctx context.Context, addressID int64) (proofs []models.WorkProof, err error) {
	defer func(start time.Time) { s.metrics.Observe("work_proofs_for_address", err, start) }(time.Now())

	proofs, err = s.queryProofs(ctx,
		`SELECT `+proofColumns+` FROM workproof WHERE address_id = ? ORDER BY block_id DESC`, addressID)
	if err != nil {
		return nil, fmt.Errorf("query work proofs for address %d: %w", addressID, err)
	}
	return proofs, nil
}

// FindAddressID returns the id of address or stats.ErrNotFound.
func (s *Store) FindAddressID(ctx context.Context, address string) (id int64, err error) {
	defer func(start time.Time) { s.metrics.Observe("find_address_id", err, start) }(time.Now())

	err = s.db.QueryRowContext(ctx, `SELECT id FROM addresses WHERE address = ?`, address).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("address %q: %w", address, stats.ErrNotFound)
		}
		return 0, fmt.Errorf("query address id: %w", err)
	}
	return id, nil
}

// ResolveAddresses maps ids onto address strings. An empty id set returns an
// empty map without querying.
func (s *Store) ResolveAddresses(ctx context.Context, ids []int64) (resolved map[int64]string, err error) {
	resolved = make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}
	defer func(start time.Time) { s.metrics.Observe("resolve_addresses", err, start) }(time.Now())

	for _, batch := range s.batches(ids) {
		if err = s.resolveBatch(ctx, batch, resolved); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func (s *Store) resolveBatch(ctx context.Context, ids []int64, into map[int64]string) error {
	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT id, address FROM addresses WHERE id IN `+in, args...)
	if err != nil {
		return fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			address string
		)
		if err := rows.Scan(&id, &address); err != nil {
			return fmt.Errorf("scan address: %w", err)
		}
		into[id] = address
	}
	return rows.Err()
}
