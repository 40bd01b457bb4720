package model

import "math/big"

// LockEvent is a decoded TokensLocked event from the source bridge contract.
// The transaction hash is the dedup key: one lock per transaction.
type LockEvent struct {
	TxHash      string   `json:"tx_hash"`
	BlockNumber uint64   `json:"block_number"`
	LogIndex    uint64   `json:"log_index"`
	Sender      string   `json:"sender"`
	Token       string   `json:"token"`
	Amount      *big.Int `json:"amount"`
	DestChainID *big.Int `json:"dest_chain_id"`
}

// Action describes the mint that must be triggered on the destination chain
// for a committed LockEvent. The relay decides that it happens and with what
// payload; signing and broadcast belong to the destination-side collaborator.
type Action struct {
	Recipient   string   `json:"recipient"`
	Amount      *big.Int `json:"amount"`
	DestChainID *big.Int `json:"dest_chain_id"`
	SourceTx    string   `json:"source_tx"`
}

// ActionFor builds the destination action for a validated lock event.
// The recipient mirrors the sender, per the lock-and-mint flow.
func ActionFor(ev LockEvent) Action {
	return Action{
		Recipient:   ev.Sender,
		Amount:      ev.Amount,
		DestChainID: ev.DestChainID,
		SourceTx:    ev.TxHash,
	}
}
