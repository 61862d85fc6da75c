package sqlitestore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pooledbismuth/poolstats/internal/stats"
)

// poolSchema mirrors the tables the accounting process creates.
const poolSchema = `
CREATE TABLE workproof (
    block_id INTEGER NOT NULL,
    address_id INTEGER NOT NULL,
    shares INTEGER NOT NULL,
    workcount INTEGER NOT NULL,
    shmeckles INTEGER DEFAULT 0,
    PRIMARY KEY (block_id, address_id)
);
CREATE TABLE addresses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    address VARCHAR(56) NOT NULL,
    total_reward DECIMAL DEFAULT 0,
    sent_reward DECIMAL DEFAULT 0,
    paid_upto INTEGER,
    total_work INTEGER,
    UNIQUE (address)
);
CREATE TABLE blocks (
    id INTEGER NOT NULL PRIMARY KEY,
    stamp INTEGER NOT NULL,
    won INTEGER NOT NULL,
    total_shares INTEGER NOT NULL,
    nonce VARCHAR(32) NOT NULL,
    reward TEXT NOT NULL,
    address TEXT NOT NULL,
    difficulty INTEGER,
    total_work INTEGER,
    named_work INTEGER,
    named_shares INTEGER NOT NULL,
    pool_balance INTEGER NOT NULL,
    pool_shmeckles INTEGER NOT NULL
);
`

const poolFixture = `
INSERT INTO addresses (id, address) VALUES (1, 'alice-addr'), (2, 'bob-addr'), (3, 'carol-addr');
INSERT INTO blocks VALUES
    (100, 1000, 1, 4, 'n100', '2.5', 'finder-one', 90, 6, 4, 3, 10.5, 21),
    (101, 1600, 0, 0, 'n101', '0', 'finder-two', NULL, NULL, NULL, 0, 10.5, 21),
    (102, 1300, 1, 2.5, 'n102', '1.25', 'finder-three', 95, 3, 3, 2, 12.0, 24);
INSERT INTO workproof VALUES
    (100, 1, 3, 4, 0.75),
    (100, 2, 1, 2, 0.25),
    (102, 1, 2, 3, 1.0),
    (102, 3, 0.5, 1, 0.5);
`

func openMemory(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// each connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(poolSchema)
	require.NoError(t, err)
	_, err = db.Exec(poolFixture)
	require.NoError(t, err)

	return New(db, 2)
}

func TestPathFromURL(t *testing.T) {
	tests := []struct {
		url      string
		path     string
		expected bool
	}{
		{url: "sqlite://data/pool.db", path: "data/pool.db", expected: true},
		{url: "sqlite:/var/lib/pool.db", path: "/var/lib/pool.db", expected: true},
		{url: "file:pool.db?mode=ro", path: "pool.db", expected: true},
		{url: "sqlite://", path: "", expected: false},
		{url: "postgresql://user@localhost/pool", path: "", expected: false},
	}

	for _, tt := range tests {
		path, ok := PathFromURL(tt.url)
		assert.Equal(t, tt.expected, ok, tt.url)
		assert.Equal(t, tt.path, path, tt.url)
	}
}

func TestLatestBlock(t *testing.T) {
	store := openMemory(t)

	block, err := store.LatestBlock(context.Background())
	require.NoError(t, err)
	require.NotNil(t, block)

	assert.Equal(t, int64(102), block.ID)
	assert.True(t, block.Won)
	assert.Equal(t, 1.25, block.Reward)
	assert.Equal(t, 24.0, block.PoolShmeckles)
	assert.Equal(t, 12.0, block.PoolBalance)
	assert.Equal(t, 2.5, block.TotalShares)
	assert.True(t, block.Difficulty.Valid)
	assert.Equal(t, int64(95), block.Difficulty.Int64)
}

func TestLatestBlock_Empty(t *testing.T) {
	store := openMemory(t)
	_, err := store.db.Exec(`DELETE FROM blocks`)
	require.NoError(t, err)

	block, err := store.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestBlocksSince_OrderedByIDThenStamp(t *testing.T) {
	store := openMemory(t)

	blocks, err := store.BlocksSince(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	// id wins over stamp: 102 is stamped before 101 but still comes first
	assert.Equal(t, []int64{102, 101, 100}, []int64{blocks[0].ID, blocks[1].ID, blocks[2].ID})
	assert.False(t, blocks[1].Won)
	assert.False(t, blocks[1].Difficulty.Valid)

	blocks, err = store.BlocksSince(context.Background(), 1301)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, int64(101), blocks[0].ID)

	blocks, err = store.BlocksSince(context.Background(), 5000)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestWorkProofs(t *testing.T) {
	store := openMemory(t)

	// three ids with a batch size of two exercises batching
	proofs, err := store.WorkProofs(context.Background(), []int64{102, 101, 100})
	require.NoError(t, err)
	require.Len(t, proofs, 4)

	byKey := make(map[[2]int64]float64)
	for _, p := range proofs {
		byKey[[2]int64{p.BlockID, p.AddressID}] = p.Shmeckles
	}
	assert.Equal(t, 0.75, byKey[[2]int64{100, 1}])
	assert.Equal(t, 0.5, byKey[[2]int64{102, 3}])

	proofs, err = store.WorkProofs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, proofs)
}

func TestWorkProofsForAddress(t *testing.T) {
	store := openMemory(t)

	proofs, err := store.WorkProofsForAddress(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, proofs, 2)
	assert.Equal(t, int64(102), proofs[0].BlockID)
	assert.Equal(t, int64(3), proofs[0].WorkCount)
	assert.Equal(t, int64(100), proofs[1].BlockID)
}

func TestFindAddressID(t *testing.T) {
	store := openMemory(t)

	id, err := store.FindAddressID(context.Background(), "bob-addr")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	_, err = store.FindAddressID(context.Background(), "mallory' OR '1'='1")
	assert.ErrorIs(t, err, stats.ErrNotFound)
}

func TestResolveAddresses(t *testing.T) {
	store := openMemory(t)

	resolved, err := store.ResolveAddresses(context.Background(), []int64{1, 2, 3, 99})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "alice-addr", 2: "bob-addr", 3: "carol-addr"}, resolved)

	resolved, err = store.ResolveAddresses(context.Background(), []int64{})
	require.NoError(t, err)
	assert.NotNil(t, resolved)
	assert.Empty(t, resolved)
}

func TestInClause(t *testing.T) {
	in, args := inClause([]int64{4, 5, 6})
	assert.Equal(t, "(?,?,?)", in)
	assert.Equal(t, []any{int64(4), int64(5), int64(6)}, args)
}

func TestOpen(t *testing.T) {
	_, err := Open("", 0)
	assert.ErrorIs(t, err, os.ErrInvalid)

	_, err = Open(filepath.Join(t.TempDir(), "missing.db"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "pool.db")
	seed, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = seed.Exec(poolSchema)
	require.NoError(t, err)
	_, err = seed.Exec(poolFixture)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	store, err := Open(path, 0)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Health(context.Background()))
	block, err := store.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(102), block.ID)
}
