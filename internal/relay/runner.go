package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bridgeRelay/internal/store"
)

// RunnerConfig holds runtime settings for the poll loop.
type RunnerConfig struct {
	SourceName string
	DestName   string

	// StartBlock seeds the cursor on first run. Zero means "latest block
	// at startup"; scanning begins at the block after the seed.
	StartBlock uint64

	// Confirmations lags the scan head behind the chain tip so shallow
	// reorgs cannot surface events that later disappear.
	Confirmations uint64

	PollInterval  time.Duration
	MaxBlockRange uint64
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Runner owns the poll loop: it computes ranges, pulls logs through the
// scanner, drives every entry through the processor in order, and advances
// the cursor only when the whole range reached a terminal state. Strictly
// single-threaded; the dedup invariant depends on it.
type Runner struct {
	cfg       RunnerConfig
	source    LedgerClient
	dest      LedgerClient
	scanner   *Scanner
	processor *Processor
	store     store.Store
	gasPricer GasPricer
	logger    *zap.Logger

	// rangeCap is the working range limit, halved when the node rejects a
	// range and restored after a successful fetch.
	rangeCap uint64
}

// NewRunner builds a Runner with its dependencies. gasPricer may be nil.
func NewRunner(
	cfg RunnerConfig,
	source LedgerClient,
	dest LedgerClient,
	scanner *Scanner,
	processor *Processor,
	eventStore store.Store,
	gasPricer GasPricer,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		source:    source,
		dest:      dest,
		scanner:   scanner,
		processor: processor,
		store:     eventStore,
		gasPricer: gasPricer,
		logger:    logger,
		rangeCap:  cfg.MaxBlockRange,
	}
}

// Run executes the relay loop until the context is cancelled or a fatal
// error occurs.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil || r.dest == nil {
		return fmt.Errorf("ledger clients are required")
	}
	if r.scanner == nil || r.processor == nil {
		return fmt.Errorf("scanner and processor are required")
	}
	if r.store == nil {
		return fmt.Errorf("store is required")
	}
	if r.cfg.MaxBlockRange == 0 {
		return fmt.Errorf("max block range must be greater than zero")
	}
	if r.cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if err := r.initialize(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		progressed, err := r.iterate(ctx)
		if err != nil {
			if isFatal(err) {
				return err
			}
			r.logger.Warn("iteration failed, retrying next poll", zap.Error(err))
		}

		// Keep draining the backlog without sleeping; the inter-poll wait
		// is the only suspension point.
		if progressed && err == nil {
			continue
		}

		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Runner) initialize(ctx context.Context) error {
	sourceID, err := r.source.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", r.cfg.SourceName, err)
	}
	destID, err := r.dest.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", r.cfg.DestName, err)
	}
	r.logger.Info("chains verified",
		zap.String("source", r.cfg.SourceName),
		zap.String("source_chain_id", sourceID.String()),
		zap.String("dest", r.cfg.DestName),
		zap.String("dest_chain_id", destID.String()),
	)

	if err := r.store.Load(ctx); err != nil {
		return fmt.Errorf("load store: %w", err)
	}

	cursor, set, err := r.store.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	if set {
		r.logger.Info("resuming from cursor", zap.Uint64("last_scanned_block", cursor))
		return nil
	}

	seed := r.cfg.StartBlock
	if seed == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("connect %s: %w", r.cfg.SourceName, err)
		}
		seed = latest
	}
	if err := r.store.AdvanceCursor(ctx, seed); err != nil {
		return fmt.Errorf("seed cursor: %w", err)
	}
	if err := r.store.Persist(ctx); err != nil {
		return fmt.Errorf("persist seeded cursor: %w", err)
	}
	r.logger.Info("cursor seeded", zap.Uint64("last_scanned_block", seed))
	return nil
}

// iterate runs one poll cycle. It reports whether the cursor advanced.
func (r *Runner) iterate(ctx context.Context) (bool, error) {
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = r.source.LatestBlockNumber(ctx)
		if err != nil {
			return classifyRPCError(err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	head := latest
	if r.cfg.Confirmations > 0 {
		if latest < r.cfg.Confirmations {
			return false, nil
		}
		head = latest - r.cfg.Confirmations
	}

	cursor, _, err := r.store.Cursor(ctx)
	if err != nil {
		return false, fmt.Errorf("read cursor: %w", err)
	}

	blockRange, ok, err := NextRange(cursor, head, r.rangeCap)
	if err != nil {
		return false, err
	}
	if !ok {
		r.logger.Debug("no new blocks", zap.Uint64("cursor", cursor), zap.Uint64("head", head))
		return false, nil
	}

	r.logger.Info("scanning range",
		zap.String("chain", r.cfg.SourceName),
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
	)

	logs, err := r.fetchLogsWithRetry(ctx, blockRange)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			r.shrinkRangeCap()
		}
		return false, err
	}
	r.rangeCap = r.cfg.MaxBlockRange

	if len(logs) > 0 {
		r.logGasPrice(ctx)
	}

	for _, rawLog := range logs {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		if _, err := r.processor.Process(ctx, rawLog); err != nil {
			// Stop at the first non-terminal entry so dispatch order is
			// preserved; the whole range is re-scanned next pass and
			// committed entries skip cheaply through the dedup check.
			return false, fmt.Errorf("range %d-%d: %w", blockRange.From, blockRange.To, err)
		}
	}

	if err := r.store.AdvanceCursor(ctx, blockRange.To); err != nil {
		return false, fmt.Errorf("advance cursor: %w", err)
	}
	if err := r.store.Persist(ctx); err != nil {
		return false, fmt.Errorf("persist state: %w", err)
	}

	r.logger.Info("range complete",
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
		zap.Int("logs", len(logs)),
	)
	return true, nil
}

func (r *Runner) fetchLogsWithRetry(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.scanner.FetchLogs(ctx, blockRange)
		if err != nil {
			r.logger.Warn("fetch logs failed",
				zap.Error(err),
				zap.Uint64("from", blockRange.From),
				zap.Uint64("to", blockRange.To),
			)
		}
		return err
	})
	return logs, err
}

func (r *Runner) shrinkRangeCap() {
	next := r.rangeCap / 2
	if next == 0 {
		next = 1
	}
	if next != r.rangeCap {
		r.logger.Warn("shrinking block range cap", zap.Uint64("from", r.rangeCap), zap.Uint64("to", next))
		r.rangeCap = next
	}
}

func (r *Runner) logGasPrice(ctx context.Context) {
	if r.gasPricer == nil {
		return
	}
	price, err := r.gasPricer.SuggestedGasPrice(ctx)
	if err != nil {
		r.logger.Warn("gas oracle unavailable", zap.Error(err))
		return
	}
	r.logger.Info("oracle gas price", zap.String("propose_gwei", price))
}

// isFatal reports whether an error must stop the relay: corrupt state or a
// bookkeeping invariant violation means no safe continuation exists.
func isFatal(err error) bool {
	return errors.Is(err, store.ErrCorrupt) ||
		errors.Is(err, store.ErrDuplicateRecord) ||
		errors.Is(err, store.ErrCursorRegression)
}
