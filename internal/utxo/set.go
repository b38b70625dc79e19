// Package utxo manages the unspent transaction output set: the working
// state consensus validates new blocks against.
package utxo

import "github.com/INT-devs/intcoin-sub001/pkg/types"

// UTXO represents an unspent transaction output and the metadata needed to
// validate spends against it: its opaque spending predicate, the height it
// was created at (for coinbase maturity), and whether it came from a
// coinbase transaction.
type UTXO struct {
	OutPoint        types.OutPoint `json:"outpoint"`
	Value           uint64         `json:"value"`
	ScriptPubKey    []byte         `json:"script_pubkey"`
	RecipientPubKey []byte         `json:"recipient_pubkey"`
	Height          uint64         `json:"height"`
	Coinbase        bool           `json:"coinbase"`
}

// Set is the interface for UTXO storage.
type Set interface {
	Get(outpoint types.OutPoint) (*UTXO, error)
	Put(u *UTXO) error
	Delete(outpoint types.OutPoint) error
	Has(outpoint types.OutPoint) (bool, error)
}
