// Package tx defines transaction types and validation.
package tx

import (
	"encoding/hex"
	"encoding/json"

	"github.com/INT-devs/intcoin-sub001/pkg/codec"
	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Transaction represents a blockchain transaction.
type Transaction struct {
	Version   uint32   `json:"version"`
	Inputs    []Input  `json:"inputs"`
	Outputs   []Output `json:"outputs"`
	LockTime  uint32   `json:"locktime"`
	Timestamp uint64   `json:"timestamp"`
}

// Input references a UTXO being spent. A coinbase input carries
// Prev.IsCoinbaseSentinel() == true and its Signature field holds the
// arbitrary coinbase data (height + extra nonce) instead of a real signature.
type Input struct {
	Prev      types.OutPoint `json:"prev"`
	Signature []byte         `json:"signature"`
	PubKey    []byte         `json:"pubkey"`
	Witness   []byte         `json:"witness,omitempty"`
	Sequence  uint32         `json:"sequence"`
}

// inputJSON is the JSON representation of Input with hex-encoded byte fields.
type inputJSON struct {
	Prev      types.OutPoint `json:"prev"`
	Signature *string        `json:"signature"`
	PubKey    *string        `json:"pubkey"`
	Witness   *string        `json:"witness,omitempty"`
	Sequence  uint32         `json:"sequence"`
}

// MarshalJSON encodes the input with hex-encoded signature, pubkey, and witness.
func (in Input) MarshalJSON() ([]byte, error) {
	j := inputJSON{Prev: in.Prev, Sequence: in.Sequence}
	if in.Signature != nil {
		s := hex.EncodeToString(in.Signature)
		j.Signature = &s
	}
	if in.PubKey != nil {
		p := hex.EncodeToString(in.PubKey)
		j.PubKey = &p
	}
	if in.Witness != nil {
		w := hex.EncodeToString(in.Witness)
		j.Witness = &w
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an input with hex-encoded signature, pubkey, and witness.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	in.Prev = j.Prev
	in.Sequence = j.Sequence
	if j.Signature != nil {
		b, err := hex.DecodeString(*j.Signature)
		if err != nil {
			return err
		}
		in.Signature = b
	}
	if j.PubKey != nil {
		b, err := hex.DecodeString(*j.PubKey)
		if err != nil {
			return err
		}
		in.PubKey = b
	}
	if j.Witness != nil {
		b, err := hex.DecodeString(*j.Witness)
		if err != nil {
			return err
		}
		in.Witness = b
	}
	return nil
}

// Output defines a new UTXO. ScriptPubKey and RecipientPubKey are opaque
// byte strings: this package does not interpret them as a scripting VM
// would, beyond the single spending predicate implemented in
// utxo_validate.go (the recipient's public key must hash to ScriptPubKey).
type Output struct {
	Value           uint64 `json:"value"`
	ScriptPubKey    []byte `json:"script_pubkey"`
	RecipientPubKey []byte `json:"recipient_pubkey"`
}

// outputJSON is the JSON representation of Output with hex-encoded byte fields.
type outputJSON struct {
	Value           uint64 `json:"value"`
	ScriptPubKey    string `json:"script_pubkey"`
	RecipientPubKey string `json:"recipient_pubkey"`
}

// MarshalJSON encodes the output with hex-encoded script/recipient fields.
func (o Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{
		Value:           o.Value,
		ScriptPubKey:    hex.EncodeToString(o.ScriptPubKey),
		RecipientPubKey: hex.EncodeToString(o.RecipientPubKey),
	})
}

// UnmarshalJSON decodes an output with hex-encoded script/recipient fields.
func (o *Output) UnmarshalJSON(data []byte) error {
	var j outputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	o.Value = j.Value
	if j.ScriptPubKey != "" {
		b, err := hex.DecodeString(j.ScriptPubKey)
		if err != nil {
			return err
		}
		o.ScriptPubKey = b
	}
	if j.RecipientPubKey != "" {
		b, err := hex.DecodeString(j.RecipientPubKey)
		if err != nil {
			return err
		}
		o.RecipientPubKey = b
	}
	return nil
}

// Hash computes the transaction ID: BLAKE3 of the canonical signing bytes.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for both
// hashing and signing: version | varint(len(inputs)) | [prev(32+4) +
// sequence(4) + coinbase-data]... | varint(len(outputs)) | [value(8) +
// script_pubkey + recipient_pubkey]... | locktime(4) | timestamp(8).
// Input signatures are excluded to avoid signing over themselves; a
// coinbase input's Signature field is instead arbitrary height/extra-nonce
// data and IS included so that otherwise-identical coinbase transactions
// still hash to distinct IDs.
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte

	buf = codec.PutUint32(buf, tx.Version)

	buf = codec.PutVarint(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.Prev.TxHash[:]...)
		buf = codec.PutUint32(buf, in.Prev.Index)
		buf = codec.PutUint32(buf, in.Sequence)
		if in.Prev.IsCoinbaseSentinel() {
			buf = codec.PutBytes(buf, in.Signature)
		}
	}

	buf = codec.PutVarint(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = codec.PutUint64(buf, out.Value)
		buf = codec.PutBytes(buf, out.ScriptPubKey)
		buf = codec.PutBytes(buf, out.RecipientPubKey)
	}

	buf = codec.PutUint32(buf, tx.LockTime)
	buf = codec.PutUint64(buf, tx.Timestamp)

	return buf
}

// TotalOutputValue returns the sum of all output values.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > ^uint64(0)-out.Value {
			return 0, ErrOutputOverflow
		}
		total += out.Value
	}
	return total, nil
}

// IsCoinbase reports whether this transaction is a coinbase: exactly one
// input, carrying the coinbase sentinel outpoint.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].Prev.IsCoinbaseSentinel()
}
