// Package resolver orchestrates metadata resolution: cache lookup, PDA
// derivation, account fetch, decode, and persistence.
package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/idhash"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/metaplex"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/observability"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

// DefaultTTL is how long a stored record is served without a fresh fetch.
const DefaultTTL = 15 * time.Minute

// Circuit breaker tuning. The breaker trips once enough requests have been
// seen and the failure ratio meets the threshold.
var (
	breakerMinRequests  uint32 = 10
	breakerFailureRatio        = 0.6
)

// Options contains configuration for creating a Resolver.
type Options struct {
	RPC         solana.RPCClient
	Records     storage.TokenRecordStore
	Resolutions storage.ResolutionLogStore // optional analytics log
	TTL         time.Duration
	Logger      *log.Logger
}

// Resolver resolves a mint address to its token-metadata record. Fresh
// records are served from the store; stale or missing ones are fetched,
// decoded and upserted. Concurrent resolutions of the same mint are
// collapsed into a single fetch.
type Resolver struct {
	rpc         solana.RPCClient
	records     storage.TokenRecordStore
	resolutions storage.ResolutionLogStore
	ttl         time.Duration
	logger      *log.Logger
	breaker     *gobreaker.CircuitBreaker

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// inflightCall tracks one in-progress fetch. Joiners wait on done and read
// record/err afterwards.
type inflightCall struct {
	done   chan struct{}
	record *domain.TokenRecord
	err    error
}

// NewResolver creates a new Resolver.
func NewResolver(opts Options) *Resolver {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Resolver{
		rpc:         opts.RPC,
		records:     opts.Records,
		resolutions: opts.Resolutions,
		ttl:         ttl,
		logger:      logger,
		inflight:    make(map[string]*inflightCall),
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "solana-rpc",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests > breakerMinRequests && ratio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("Circuit breaker %s: %s -> %s", name, from, to)
			observability.UpdateBreakerState(breakerStateValue(to))
		},
	})

	return r
}

// TTL returns the freshness window records are served within.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

// Resolve returns the metadata record for a mint, serving a stored record
// when it is fresh and fetching otherwise. Invalid mints fail with
// storage.ErrInvalidInput, missing accounts with storage.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, mint string) (*domain.TokenRecord, error) {
	return r.resolve(ctx, mint, false, domain.SourceRPC)
}

// Refresh resolves a mint bypassing the freshness check, always fetching
// from RPC.
func (r *Resolver) Refresh(ctx context.Context, mint string) (*domain.TokenRecord, error) {
	return r.resolve(ctx, mint, true, domain.SourceRPC)
}

func (r *Resolver) resolve(ctx context.Context, mint string, force bool, source domain.Source) (*domain.TokenRecord, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", mint, storage.ErrInvalidInput)
	}

	// The stored record is the answer on a fresh hit and the fallback when
	// a forced fetch fails, so it is read up front either way.
	cached, err := r.records.GetByMint(ctx, mint)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Printf("Error reading record for %s: %v", mint, err)
		cached = nil
	}

	if !force && cached != nil && !r.isStale(cached) {
		observability.RecordCacheHit()
		return cached, nil
	}
	observability.RecordCacheMiss()

	// Collapse concurrent fetches of the same mint into one RPC call. A
	// joined fetch is as fresh as one started now, so forced refreshes
	// join too.
	r.mu.Lock()
	if call, ok := r.inflight[mint]; ok {
		r.mu.Unlock()
		observability.RecordInflightCollapsed()
		select {
		case <-call.done:
			return call.record, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	r.inflight[mint] = call
	r.mu.Unlock()

	record, err := r.fetch(ctx, mintKey, cached, source)

	call.record, call.err = record, err
	r.mu.Lock()
	delete(r.inflight, mint)
	r.mu.Unlock()
	close(call.done)

	return record, err
}

// fetch derives the metadata PDA, reads the account through the circuit
// breaker, decodes it and stores the result. cached, when non-nil, is
// served in place of a failed fetch.
func (r *Resolver) fetch(ctx context.Context, mint solana.PublicKey, cached *domain.TokenRecord, source domain.Source) (*domain.TokenRecord, error) {
	start := time.Now()
	mintStr := mint.String()

	metaAddr, bump, err := solana.MetadataAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata address for %s: %w", mintStr, err)
	}
	metaStr := metaAddr.String()

	rpcStart := time.Now()
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.rpc.GetAccountInfo(ctx, metaStr)
	})
	observability.RecordRPCLatency("getAccountInfo", time.Since(rpcStart).Seconds())
	if err != nil {
		observability.RecordRPCError("getAccountInfo", errKind(err))
		r.logResolution(ctx, mintStr, metaStr, domain.ResolutionRPCError, source, 0, start, err)
		if cached != nil {
			observability.RecordStaleServed()
			r.logger.Printf("Serving stale record for %s after failed fetch: %v", mintStr, err)
			return cached, nil
		}
		return nil, fmt.Errorf("fetch account %s: %w", metaStr, err)
	}

	info, _ := result.(*solana.AccountInfo)
	if info == nil {
		r.logResolution(ctx, mintStr, metaStr, domain.ResolutionNotFound, source, 0, start, nil)
		return nil, fmt.Errorf("metadata account for mint %s: %w", mintStr, storage.ErrNotFound)
	}

	raw, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		observability.RecordDecode("error")
		r.logResolution(ctx, mintStr, metaStr, domain.ResolutionDecodeError, source, int64(info.Slot), start, err)
		return nil, fmt.Errorf("decode account data for %s: %w", metaStr, err)
	}

	meta, err := metaplex.Decode(raw)
	if err != nil {
		observability.RecordDecode("error")
		r.logResolution(ctx, mintStr, metaStr, domain.ResolutionDecodeError, source, int64(info.Slot), start, err)
		return nil, fmt.Errorf("decode metadata account %s: %w", metaStr, err)
	}
	observability.RecordDecode("ok")

	record := buildRecord(meta, mintStr, metaStr, bump, int64(info.Slot))

	if err := r.records.Upsert(ctx, record); err != nil {
		// A store failure does not fail the resolution; the record is
		// still served.
		r.logger.Printf("Error storing record for %s: %v", mintStr, err)
	}

	r.logResolution(ctx, mintStr, metaStr, domain.ResolutionOK, source, record.Slot, start, nil)
	observability.RecordSuccessfulResolution(time.Now().Unix())

	return record, nil
}

// isStale reports whether the record's last fetch is older than the TTL.
func (r *Resolver) isStale(rec *domain.TokenRecord) bool {
	return time.Now().UnixMilli()-rec.FetchedAt > r.ttl.Milliseconds()
}

// logResolution records the attempt in metrics and the analytics log.
func (r *Resolver) logResolution(ctx context.Context, mint, metaAddr string, status domain.ResolutionStatus, source domain.Source, slot int64, start time.Time, cause error) {
	writeResolution(ctx, r.resolutions, r.logger, mint, metaAddr, status, source, slot, start, cause)
}

// writeResolution builds one resolution event, records its metrics and
// inserts it into the analytics log when one is configured. Insert failures
// are logged, not returned; analytics never fail a resolution.
func writeResolution(ctx context.Context, store storage.ResolutionLogStore, logger *log.Logger, mint, metaAddr string, status domain.ResolutionStatus, source domain.Source, slot int64, start time.Time, cause error) {
	observability.RecordResolution(string(status), string(source), time.Since(start).Seconds())

	if store == nil {
		return
	}

	resolvedAt := time.Now().UnixMilli()
	res := &domain.Resolution{
		ResolutionID:    idhash.ResolutionID(mint, uint64(slot), resolvedAt),
		Mint:            mint,
		MetadataAddress: metaAddr,
		Status:          status,
		Source:          source,
		Slot:            slot,
		DurationMs:      time.Since(start).Milliseconds(),
		ResolvedAt:      resolvedAt,
	}
	if cause != nil {
		res.Err = cause.Error()
	}

	if err := store.InsertBulk(ctx, []*domain.Resolution{res}); err != nil {
		logger.Printf("Error logging resolution for %s: %v", mint, err)
	}
}

// buildRecord maps a decoded metadata account to the stored record form.
func buildRecord(meta *metaplex.Metadata, mint, metaAddr string, bump uint8, slot int64) *domain.TokenRecord {
	now := time.Now().UnixMilli()

	var creators []domain.Creator
	if meta.Creators != nil {
		creators = make([]domain.Creator, 0, len(meta.Creators))
		for _, c := range meta.Creators {
			creators = append(creators, domain.Creator{
				Address:  c.Address.String(),
				Verified: c.Verified,
				Share:    c.Share,
			})
		}
	}

	return &domain.TokenRecord{
		Mint:                 mint,
		MetadataAddress:      metaAddr,
		Bump:                 bump,
		Version:              meta.Version,
		UpdateAuthority:      meta.UpdateAuthority.String(),
		Name:                 meta.Name,
		Symbol:               meta.Symbol,
		URI:                  meta.URI,
		SellerFeeBasisPoints: meta.SellerFeeBasisPoints,
		Creators:             creators,
		PrimarySaleHappened:  meta.PrimarySaleHappened,
		IsMutable:            meta.IsMutable,
		Slot:                 slot,
		FetchedAt:            now,
		UpdatedAt:            now,
	}
}

// errKind classifies a fetch error for metrics.
func errKind(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case solana.IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}

// breakerStateValue maps a breaker state onto the gauge scale.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
