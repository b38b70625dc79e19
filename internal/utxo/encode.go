package utxo

import (
	"fmt"

	"github.com/INT-devs/intcoin-sub001/pkg/codec"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

var utxoMagic = [3]byte{'U', 'T', 'X'}

const utxoVersion uint8 = 1

// Encode returns the canonical binary encoding of a UTXO record for
// storage: outpoint(36) | value(8) | script_pubkey | recipient_pubkey |
// height(8) | coinbase(1).
func (u *UTXO) Encode() []byte {
	var buf []byte
	buf = codec.PutFrame(buf, utxoMagic, utxoVersion)
	buf = append(buf, u.OutPoint.TxHash[:]...)
	buf = codec.PutUint32(buf, u.OutPoint.Index)
	buf = codec.PutUint64(buf, u.Value)
	buf = codec.PutBytes(buf, u.ScriptPubKey)
	buf = codec.PutBytes(buf, u.RecipientPubKey)
	buf = codec.PutUint64(buf, u.Height)
	var coinbase byte
	if u.Coinbase {
		coinbase = 1
	}
	return append(buf, coinbase)
}

// DecodeUTXO parses a UTXO record previously produced by Encode.
func DecodeUTXO(data []byte) (*UTXO, error) {
	_, rest, err := codec.ReadFrame(data, utxoMagic, utxoVersion)
	if err != nil {
		return nil, fmt.Errorf("utxo frame: %w", err)
	}

	var u UTXO
	var hash [32]byte
	hash, rest, err = codec.ReadFixedHash(rest)
	if err != nil {
		return nil, fmt.Errorf("outpoint tx hash: %w", err)
	}
	u.OutPoint.TxHash = types.Hash(hash)
	u.OutPoint.Index, rest, err = codec.ReadUint32(rest)
	if err != nil {
		return nil, fmt.Errorf("outpoint index: %w", err)
	}
	u.Value, rest, err = codec.ReadUint64(rest)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	u.ScriptPubKey, rest, err = codec.ReadBytes(rest)
	if err != nil {
		return nil, fmt.Errorf("script_pubkey: %w", err)
	}
	u.RecipientPubKey, rest, err = codec.ReadBytes(rest)
	if err != nil {
		return nil, fmt.Errorf("recipient_pubkey: %w", err)
	}
	u.Height, rest, err = codec.ReadUint64(rest)
	if err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("coinbase flag: %w", codec.ErrTrailingBytes)
	}
	u.Coinbase = rest[0] != 0

	return &u, nil
}
