package resolver

import (
	"context"
	"log"
	"time"

	"go.uber.org/ratelimit"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/observability"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

// Refresher re-resolves stale records in the background so reads keep
// hitting fresh data without paying for the fetch themselves.
type Refresher struct {
	resolver   *Resolver
	records    storage.TokenRecordStore
	interval   time.Duration
	batchLimit int
	limiter    ratelimit.Limiter
	logger     *log.Logger
}

// RefresherOptions contains configuration for creating a Refresher.
type RefresherOptions struct {
	Resolver   *Resolver
	Records    storage.TokenRecordStore
	Interval   time.Duration // sweep interval, default 1 minute
	BatchLimit int           // records per sweep, default 100
	RPS        int           // refresh calls per second, default 5
	Logger     *log.Logger
}

// NewRefresher creates a new Refresher.
func NewRefresher(opts RefresherOptions) *Refresher {
	interval := opts.Interval
	if interval == 0 {
		interval = 1 * time.Minute
	}

	batchLimit := opts.BatchLimit
	if batchLimit == 0 {
		batchLimit = 100
	}

	rps := opts.RPS
	if rps == 0 {
		rps = 5
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Refresher{
		resolver:   opts.Resolver,
		records:    opts.Records,
		interval:   interval,
		batchLimit: batchLimit,
		limiter:    ratelimit.New(rps),
		logger:     logger,
	}
}

// Run sweeps for stale records on the configured interval.
// It blocks until context is cancelled.
func (f *Refresher) Run(ctx context.Context) error {
	f.logger.Printf("Refresher started, interval: %v, batch limit: %d", f.interval, f.batchLimit)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Println("Refresher stopping...")
			return ctx.Err()
		case <-ticker.C:
			f.sweep(ctx)
		}
	}
}

// sweep lists records older than the resolver's TTL and re-resolves them,
// throttled to the configured rate. Records another caller refreshed in the
// meantime are served from the store and cost no RPC call.
func (f *Refresher) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-f.resolver.TTL()).UnixMilli()

	stale, err := f.records.ListStale(ctx, cutoff, f.batchLimit)
	if err != nil {
		f.logger.Printf("Error listing stale records: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	refreshed, failed := 0, 0
	for _, rec := range stale {
		if ctx.Err() != nil {
			return
		}
		f.limiter.Take()

		if _, err := f.resolver.resolve(ctx, rec.Mint, false, domain.SourceRefresh); err != nil {
			failed++
			f.logger.Printf("Error refreshing %s: %v", rec.Mint, err)
			continue
		}
		refreshed++
	}

	observability.RecordRefreshSweep(refreshed)
	f.logger.Printf("Refresh sweep complete: %d refreshed, %d failed of %d stale", refreshed, failed, len(stale))
}
