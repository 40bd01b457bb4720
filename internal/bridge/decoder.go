package bridge

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bridgeRelay/internal/model"
)

// ErrMalformedEvent means a log does not match the TokensLocked shape.
// Such logs can never become valid on retry.
var ErrMalformedEvent = errors.New("bridge: malformed lock event")

// LockDecoder decodes TokensLocked logs into LockEvents against a fixed
// schema. Unknown shapes are rejected rather than introspected.
type LockDecoder struct {
	event abi.Event
}

func NewLockDecoder() (*LockDecoder, error) {
	parsed, err := LockABI()
	if err != nil {
		return nil, err
	}
	event, ok := parsed.Events["TokensLocked"]
	if !ok {
		return nil, fmt.Errorf("abi missing TokensLocked event")
	}
	return &LockDecoder{event: event}, nil
}

// Topic0 returns the TokensLocked event signature hash used for log filters.
func (d *LockDecoder) Topic0() common.Hash {
	return d.event.ID
}

// Decode parses a raw log into a LockEvent.
func (d *LockDecoder) Decode(log types.Log) (model.LockEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != d.event.ID {
		return model.LockEvent{}, fmt.Errorf("%w: unexpected topic0", ErrMalformedEvent)
	}
	indexedCount := len(indexedArguments(d.event.Inputs))
	if len(log.Topics) != indexedCount+1 {
		return model.LockEvent{}, fmt.Errorf("%w: expected %d topics, got %d",
			ErrMalformedEvent, indexedCount+1, len(log.Topics))
	}

	var indexed struct {
		From      common.Address
		ToChainId *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return model.LockEvent{}, fmt.Errorf("%w: parse topics: %v", ErrMalformedEvent, err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.LockEvent{}, fmt.Errorf("%w: unpack data: %v", ErrMalformedEvent, err)
	}
	if len(values) != 2 {
		return model.LockEvent{}, fmt.Errorf("%w: unexpected value count %d", ErrMalformedEvent, len(values))
	}

	amount, ok := values[0].(*big.Int)
	if !ok {
		return model.LockEvent{}, fmt.Errorf("%w: amount is not uint256", ErrMalformedEvent)
	}
	token, ok := values[1].(common.Address)
	if !ok {
		return model.LockEvent{}, fmt.Errorf("%w: token is not address", ErrMalformedEvent)
	}

	return model.LockEvent{
		TxHash:      log.TxHash.Hex(),
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
		Sender:      indexed.From.Hex(),
		Token:       token.Hex(),
		Amount:      amount,
		DestChainID: indexed.ToChainId,
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
