package relay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LedgerClient is the per-chain capability the relay consumes. chain.Client
// satisfies it; tests use fakes.
type LedgerClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 common.Hash) ([]types.Log, error)
}

// GasPricer reports an advisory gas price for log context. Optional.
type GasPricer interface {
	SuggestedGasPrice(ctx context.Context) (string, error)
}
