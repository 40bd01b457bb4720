package model

// DeadLetter records a lock event abandoned after exhausting dispatch
// attempts. Amounts are kept as decimal strings for downstream tooling.
type DeadLetter struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	DestChainID string `json:"dest_chain_id"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error"`
	AbandonedAt string `json:"abandoned_at"`
}
