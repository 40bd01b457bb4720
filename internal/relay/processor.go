package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bridgeRelay/internal/bridge"
	"bridgeRelay/internal/dispatch"
	"bridgeRelay/internal/model"
	"bridgeRelay/internal/store"
)

// Outcome is the terminal state an event reached in the processing pipeline.
type Outcome int

const (
	// OutcomeCommitted: action dispatched and the event recorded.
	OutcomeCommitted Outcome = iota
	// OutcomeDuplicate: already recorded, nothing to do.
	OutcomeDuplicate
	// OutcomeRejected: failed validation; recorded so it is never retried.
	OutcomeRejected
	// OutcomeMalformed: undecodable log, skipped without recording. A
	// malformed payload can never become valid on retry.
	OutcomeMalformed
	// OutcomeDeadLettered: dispatch attempts exhausted; written to the
	// dead-letter sink and recorded so the range can advance.
	OutcomeDeadLettered
)

// ProcessorConfig holds the business-rule settings.
type ProcessorConfig struct {
	// ExpectedDestChainID is the destination chain this relay serves.
	ExpectedDestChainID *big.Int
	// MaxDispatchAttempts bounds dispatch retries per event before the
	// event is dead-lettered. Zero retries forever.
	MaxDispatchAttempts int
}

// Processor runs each raw log through decode, dedup, validation, dispatch,
// and commit. Events are handed to it strictly in scan order.
type Processor struct {
	cfg         ProcessorConfig
	decoder     *bridge.LockDecoder
	store       store.Store
	dispatcher  dispatch.Dispatcher
	deadLetters *dispatch.DeadLetterSink
	logger      *zap.Logger
	attempts    map[string]int
}

// NewProcessor builds a Processor. deadLetters may be nil when dispatch
// retries are unbounded.
func NewProcessor(
	cfg ProcessorConfig,
	decoder *bridge.LockDecoder,
	eventStore store.Store,
	dispatcher dispatch.Dispatcher,
	deadLetters *dispatch.DeadLetterSink,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:         cfg,
		decoder:     decoder,
		store:       eventStore,
		dispatcher:  dispatcher,
		deadLetters: deadLetters,
		logger:      logger,
		attempts:    make(map[string]int),
	}
}

// Process takes one raw log to a terminal state. A non-nil error means the
// event is not terminal and its block range must not advance: either the
// dispatch failed (wrapped ErrDispatch, retried by re-scanning the range) or
// the store reported an invariant violation (fatal upstream).
func (p *Processor) Process(ctx context.Context, rawLog types.Log) (Outcome, error) {
	event, err := p.decoder.Decode(rawLog)
	if err != nil {
		if errors.Is(err, bridge.ErrMalformedEvent) {
			p.logger.Warn("skipping malformed event",
				zap.String("tx", rawLog.TxHash.Hex()),
				zap.Uint64("block", rawLog.BlockNumber),
				zap.Error(err),
			)
			return OutcomeMalformed, nil
		}
		return 0, err
	}

	processed, err := p.store.IsProcessed(ctx, event.TxHash)
	if err != nil {
		return 0, fmt.Errorf("check processed %s: %w", event.TxHash, err)
	}
	if processed {
		p.logger.Debug("skipping already processed transaction", zap.String("tx", event.TxHash))
		return OutcomeDuplicate, nil
	}

	if err := p.validate(event); err != nil {
		p.logger.Warn("lock event rejected",
			zap.String("tx", event.TxHash),
			zap.Uint64("block", event.BlockNumber),
			zap.Error(err),
		)
		if err := p.store.MarkProcessed(ctx, event.TxHash, time.Now()); err != nil {
			return 0, fmt.Errorf("record rejected %s: %w", event.TxHash, err)
		}
		return OutcomeRejected, nil
	}

	action := model.ActionFor(event)
	confirmation, err := p.dispatcher.Submit(ctx, action)
	if err != nil {
		return p.handleDispatchFailure(ctx, event, action, err)
	}
	delete(p.attempts, event.TxHash)

	p.logger.Info("action dispatched",
		zap.String("tx", event.TxHash),
		zap.String("recipient", action.Recipient),
		zap.String("amount", action.Amount.String()),
		zap.String("confirmation", confirmation),
	)

	if err := p.store.MarkProcessed(ctx, event.TxHash, time.Now()); err != nil {
		return 0, fmt.Errorf("record committed %s: %w", event.TxHash, err)
	}
	return OutcomeCommitted, nil
}

func (p *Processor) validate(event model.LockEvent) error {
	if event.DestChainID == nil || event.DestChainID.Cmp(p.cfg.ExpectedDestChainID) != 0 {
		return fmt.Errorf("%w: destination chain %v, relay serves %s",
			ErrValidation, event.DestChainID, p.cfg.ExpectedDestChainID)
	}
	if event.Amount == nil || event.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive amount %v", ErrValidation, event.Amount)
	}
	return nil
}

func (p *Processor) handleDispatchFailure(ctx context.Context, event model.LockEvent, action model.Action, cause error) (Outcome, error) {
	p.attempts[event.TxHash]++
	attempts := p.attempts[event.TxHash]

	if p.cfg.MaxDispatchAttempts <= 0 || attempts < p.cfg.MaxDispatchAttempts {
		return 0, fmt.Errorf("%w: tx %s attempt %d: %v", ErrDispatch, event.TxHash, attempts, cause)
	}

	p.logger.Error("dispatch attempts exhausted, dead-lettering event",
		zap.String("tx", event.TxHash),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	if p.deadLetters != nil {
		record := model.DeadLetter{
			TxHash:      event.TxHash,
			BlockNumber: event.BlockNumber,
			LogIndex:    event.LogIndex,
			Recipient:   action.Recipient,
			Amount:      action.Amount.String(),
			DestChainID: action.DestChainID.String(),
			Attempts:    attempts,
			LastError:   cause.Error(),
			AbandonedAt: time.Now().UTC().Format(time.RFC3339Nano),
		}
		if err := p.deadLetters.Write(record); err != nil {
			// Keep retrying rather than drop the event without a trace.
			return 0, fmt.Errorf("%w: tx %s: write dead letter: %v", ErrDispatch, event.TxHash, err)
		}
	}
	delete(p.attempts, event.TxHash)

	if err := p.store.MarkProcessed(ctx, event.TxHash, time.Now()); err != nil {
		return 0, fmt.Errorf("record dead-lettered %s: %w", event.TxHash, err)
	}
	return OutcomeDeadLettered, nil
}
