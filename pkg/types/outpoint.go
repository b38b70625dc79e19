package types

import "fmt"

// CoinbaseIndex is the sentinel input index marking a coinbase input.
const CoinbaseIndex uint32 = 0xFFFFFFFF

// OutPoint references a specific output in a transaction.
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero tx hash and zero index.
func (o OutPoint) IsZero() bool {
	return o.TxHash.IsZero() && o.Index == 0
}

// IsCoinbaseSentinel reports whether this outpoint is the coinbase input
// sentinel: prev = (0x00...00, 0xFFFFFFFF).
func (o OutPoint) IsCoinbaseSentinel() bool {
	return o.TxHash.IsZero() && o.Index == CoinbaseIndex
}

// String returns "txhash:index" in hex.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash.String(), o.Index)
}
