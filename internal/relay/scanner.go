package relay

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Scanner retrieves lock-event logs for block ranges from the source chain.
type Scanner struct {
	client   LedgerClient
	contract common.Address
	topic0   common.Hash
}

func NewScanner(client LedgerClient, contract common.Address, topic0 common.Hash) *Scanner {
	return &Scanner{client: client, contract: contract, topic0: topic0}
}

// FetchLogs returns the bridge contract's lock-event logs within the range,
// ordered by block number then log index. That ordering is the processing
// order downstream.
func (s *Scanner) FetchLogs(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	logs, err := s.client.FilterLogs(ctx, blockRange.From, blockRange.To, s.contract, s.topic0)
	if err != nil {
		return nil, classifyRPCError(err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
	return logs, nil
}
