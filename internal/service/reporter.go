// Package service builds pool reports from a data store and the aggregation
// engine in internal/stats.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/pooledbismuth/poolstats/internal/cache"
	"github.com/pooledbismuth/poolstats/internal/metrics"
	"github.com/pooledbismuth/poolstats/internal/models"
	"github.com/pooledbismuth/poolstats/internal/stats"
	"github.com/pooledbismuth/poolstats/pkg/logging"
	"github.com/pooledbismuth/poolstats/pkg/telemetry"
)

// Store is the read side of the pool database.
type Store interface {
	LatestBlock(ctx context.Context) (*models.Block, error)
	BlocksSince(ctx context.Context, stamp int64) ([]models.Block, error)
	WorkProofs(ctx context.Context, blockIDs []int64) ([]models.WorkProof, error)
	ResolveAddresses(ctx context.Context, ids []int64) (map[int64]string, error)
	FindAddressID(ctx context.Context, address string) (int64, error)
	WorkProofsForAddress(ctx context.Context, addressID int64) ([]models.WorkProof, error)
}

// ReportCache stores encoded reports. *cache.Cache satisfies it.
type ReportCache interface {
	GetJSON(ctx context.Context, key string, v interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// Reporter answers address summary and window report requests.
type Reporter struct {
	store    Store
	cache    ReportCache
	cacheTTL time.Duration
	limiter  ratelimit.Limiter
	now      func() time.Time
	metrics  *metrics.Reporter
	logger   *zap.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithCache caches reports for ttl. A zero ttl disables caching.
func WithCache(c ReportCache, ttl time.Duration) Option {
	return func(r *Reporter) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// WithStoreRate paces store reads to rps per second. rps <= 0 is unlimited.
func WithStoreRate(rps int) Option {
	return func(r *Reporter) {
		if rps <= 0 {
			r.limiter = ratelimit.NewUnlimited()
			return
		}
		r.limiter = ratelimit.New(rps)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		r.now = now
	}
}

// NewReporter creates a reporter reading from store.
func NewReporter(store Store, opts ...Option) *Reporter {
	r := &Reporter{
		store:   store,
		limiter: ratelimit.NewUnlimited(),
		now:     time.Now,
		metrics: metrics.NewReporter(),
		logger:  logging.WithComponent("reporter"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) pace() {
	r.limiter.Take()
}

func (r *Reporter) cacheEnabled() bool {
	return r.cache != nil && r.cacheTTL > 0
}

// loadCached reports whether key was found and decoded into v. Cache errors
// never fail a request.
func (r *Reporter) loadCached(ctx context.Context, key string, v interface{}) bool {
	if !r.cacheEnabled() {
		return false
	}
	err := r.cache.GetJSON(ctx, key, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, cache.ErrMiss), errors.Is(err, cache.ErrCacheDisabled):
	default:
		logging.FromContext(ctx, r.logger).Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (r *Reporter) storeCached(ctx context.Context, key string, v interface{}) {
	if !r.cacheEnabled() {
		return
	}
	if err := r.cache.SetJSON(ctx, key, v, r.cacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		logging.FromContext(ctx, r.logger).Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddressSummary totals the work of address against the current pool.
// Unknown or blank addresses yield stats.ErrNotFound; a pool without blocks
// or shmeckles yields stats.ErrInsufficientData.
func (r *Reporter) AddressSummary(ctx context.Context, address string) (summary *stats.AddressSummary, err error) {
	ctx, span := telemetry.StartSpan(ctx, "reporter.address_summary")
	start := time.Now()
	cached := false
	defer func() {
		r.metrics.Observe("address", err, cached, start)
		finishSpan(span, err)
	}()

	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("empty address: %w", stats.ErrNotFound)
	}
	span.SetAttributes(attribute.String("pool.address", address))

	key := cache.HashKey("address_summary", address)
	var hit stats.AddressSummary
	if r.loadCached(ctx, key, &hit) {
		cached = true
		return &hit, nil
	}

	r.pace()
	addressID, err := r.store.FindAddressID(ctx, address)
	if err != nil {
		return nil, err
	}

	r.pace()
	latest, err := r.store.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("pool has no blocks: %w", stats.ErrInsufficientData)
	}

	r.pace()
	proofs, err := r.store.WorkProofsForAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}

	summary, err = stats.SummarizeAddress(address, addressID, proofs, stats.SnapshotOf(*latest))
	if err != nil {
		return nil, err
	}

	r.storeCached(ctx, key, summary)
	return summary, nil
}

// WindowReport lists the blocks of the last hours hours, clamped to [1, 12],
// with their payouts. A window without blocks yields stats.ErrNoData.
func (r *Reporter) WindowReport(ctx context.Context, hours int) (report *stats.WindowReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "reporter.window_report")
	start := time.Now()
	cached := false
	defer func() {
		r.metrics.Observe("window", err, cached, start)
		finishSpan(span, err)
	}()

	w := stats.NewWindow(r.now(), hours)
	span.SetAttributes(attribute.Int("pool.window_hours", w.Hours))

	key := cache.HashKey("window_report", strconv.Itoa(w.Hours))
	var hit stats.WindowReport
	if r.loadCached(ctx, key, &hit) {
		cached = true
		return &hit, nil
	}

	r.pace()
	blocks, err := r.store.BlocksSince(ctx, w.Since)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("last %d hours: %w", w.Hours, stats.ErrNoData)
	}
	blocks = stats.SortBlocks(blocks)

	r.pace()
	proofs, err := r.store.WorkProofs(ctx, stats.BlockIDs(blocks))
	if err != nil {
		return nil, err
	}

	r.pace()
	addresses, err := r.store.ResolveAddresses(ctx, stats.AddressIDs(proofs))
	if err != nil {
		return nil, err
	}

	report, err = stats.BuildWindowReport(w, stats.SnapshotOf(blocks[0]), blocks, proofs, addresses)
	if err != nil {
		return nil, err
	}

	if !report.MiningRate.Valid() {
		logging.FromContext(ctx, r.logger).Debug("Mining rate undefined for window",
			zap.Int("hours", w.Hours),
			zap.Int("blocks", len(blocks)))
	}

	r.storeCached(ctx, key, report)
	return report, nil
}
