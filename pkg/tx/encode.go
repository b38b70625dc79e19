package tx

import (
	"fmt"

	"github.com/INT-devs/intcoin-sub001/pkg/codec"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

var txMagic = [3]byte{'T', 'X', '1'}

const txVersion uint8 = 1

// emptyToNil restores the nil/empty distinction codec.ReadBytes loses: it
// always allocates a non-nil slice even for a zero-length field.
func emptyToNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Encode returns the canonical binary encoding of the transaction for
// storage. Unlike SigningBytes, which omits a non-coinbase input's
// signature and public key to avoid signing over itself, Encode round-trips
// every field losslessly.
func (tx *Transaction) Encode() []byte {
	var buf []byte
	buf = codec.PutFrame(buf, txMagic, txVersion)
	buf = codec.PutUint32(buf, tx.Version)

	buf = codec.PutVarint(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.Prev.TxHash[:]...)
		buf = codec.PutUint32(buf, in.Prev.Index)
		buf = codec.PutBytes(buf, in.Signature)
		buf = codec.PutBytes(buf, in.PubKey)
		buf = codec.PutBytes(buf, in.Witness)
		buf = codec.PutUint32(buf, in.Sequence)
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

// DecodeTransaction parses a transaction previously produced by Encode.
func DecodeTransaction(data []byte) (*Transaction, error) {
	_, rest, err := codec.ReadFrame(data, txMagic, txVersion)
	if err != nil {
		return nil, fmt.Errorf("transaction frame: %w", err)
	}

	var t Transaction
	t.Version, rest, err = codec.ReadUint32(rest)
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}

	nIn, rest, err := codec.ReadVarint(rest)
	if err != nil {
		return nil, fmt.Errorf("input count: %w", err)
	}
	t.Inputs = make([]Input, int(nIn))
	for i := range t.Inputs {
		var in Input
		var hash [32]byte
		hash, rest, err = codec.ReadFixedHash(rest)
		if err != nil {
			return nil, fmt.Errorf("input %d prev hash: %w", i, err)
		}
		in.Prev.TxHash = types.Hash(hash)
		in.Prev.Index, rest, err = codec.ReadUint32(rest)
		if err != nil {
			return nil, fmt.Errorf("input %d prev index: %w", i, err)
		}
		in.Signature, rest, err = codec.ReadBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("input %d signature: %w", i, err)
		}
		in.Signature = emptyToNil(in.Signature)
		in.PubKey, rest, err = codec.ReadBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("input %d pubkey: %w", i, err)
		}
		in.PubKey = emptyToNil(in.PubKey)
		in.Witness, rest, err = codec.ReadBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("input %d witness: %w", i, err)
		}
		in.Witness = emptyToNil(in.Witness)
		in.Sequence, rest, err = codec.ReadUint32(rest)
		if err != nil {
			return nil, fmt.Errorf("input %d sequence: %w", i, err)
		}
		t.Inputs[i] = in
	}

	nOut, rest, err := codec.ReadVarint(rest)
	if err != nil {
		return nil, fmt.Errorf("output count: %w", err)
	}
	t.Outputs = make([]Output, int(nOut))
	for i := range t.Outputs {
		var out Output
		out.Value, rest, err = codec.ReadUint64(rest)
		if err != nil {
			return nil, fmt.Errorf("output %d value: %w", i, err)
		}
		out.ScriptPubKey, rest, err = codec.ReadBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("output %d script_pubkey: %w", i, err)
		}
		out.ScriptPubKey = emptyToNil(out.ScriptPubKey)
		out.RecipientPubKey, rest, err = codec.ReadBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("output %d recipient_pubkey: %w", i, err)
		}
		out.RecipientPubKey = emptyToNil(out.RecipientPubKey)
		t.Outputs[i] = out
	}

	t.LockTime, rest, err = codec.ReadUint32(rest)
	if err != nil {
		return nil, fmt.Errorf("locktime: %w", err)
	}
	t.Timestamp, rest, err = codec.ReadUint64(rest)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("transaction: %w", codec.ErrTrailingBytes)
	}

	return &t, nil
}
