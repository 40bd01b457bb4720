package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bridgeRelay/internal/model"
)

// Dispatcher hands a mint action to the destination chain. Submit returns an
// opaque confirmation reference on success; transaction signing and broadcast
// live behind this boundary, not in the relay core.
type Dispatcher interface {
	Submit(ctx context.Context, action model.Action) (string, error)
}

// Simulated logs the mint trigger instead of submitting a transaction.
// It stands in for the destination-side submitter in development and tests.
type Simulated struct {
	chainName string
	logger    *zap.Logger
}

func NewSimulated(chainName string, logger *zap.Logger) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{chainName: chainName, logger: logger}
}

func (d *Simulated) Submit(ctx context.Context, action model.Action) (string, error) {
	d.logger.Info("simulated mint trigger",
		zap.String("chain", d.chainName),
		zap.String("recipient", action.Recipient),
		zap.String("amount", action.Amount.String()),
		zap.String("source_tx", action.SourceTx),
	)
	return fmt.Sprintf("sim-%s", action.SourceTx), nil
}
