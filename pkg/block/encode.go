package block

import (
	"fmt"

	"github.com/INT-devs/intcoin-sub001/pkg/codec"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

var blockMagic = [3]byte{'B', 'L', 'K'}

const blockVersion uint8 = 1

// Encode returns the canonical binary encoding of the block for storage:
// framed header bytes, reusing Header.SigningBytes (which already covers
// every header field with no exclusions), followed by each transaction's
// own Encode.
func (b *Block) Encode() []byte {
	var buf []byte
	buf = codec.PutFrame(buf, blockMagic, blockVersion)
	buf = append(buf, b.Header.SigningBytes()...)
	buf = codec.PutVarint(buf, uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		buf = codec.PutBytes(buf, t.Encode())
	}
	return buf
}

// DecodeBlock parses a block previously produced by Encode.
func DecodeBlock(data []byte) (*Block, error) {
	_, rest, err := codec.ReadFrame(data, blockMagic, blockVersion)
	if err != nil {
		return nil, fmt.Errorf("block frame: %w", err)
	}

	header, rest, err := decodeHeaderBody(rest)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	n, rest, err := codec.ReadVarint(rest)
	if err != nil {
		return nil, fmt.Errorf("transaction count: %w", err)
	}
	txs := make([]*tx.Transaction, int(n))
	for i := range txs {
		var raw []byte
		raw, rest, err = codec.ReadBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		decoded, err := tx.DecodeTransaction(raw)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs[i] = decoded
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("block: %w", codec.ErrTrailingBytes)
	}

	return &Block{Header: header, Transactions: txs}, nil
}

// decodeHeaderBody reverse-parses the fixed-width fields Header.SigningBytes
// writes: version(4) | prev_block(32) | merkle_root(32) | timestamp(8) |
// bits(4) | nonce(8).
func decodeHeaderBody(buf []byte) (*Header, []byte, error) {
	h := &Header{}
	var err error
	h.Version, buf, err = codec.ReadUint32(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("version: %w", err)
	}
	var prevBlock, merkleRoot [32]byte
	prevBlock, buf, err = codec.ReadFixedHash(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("prev_block: %w", err)
	}
	h.PrevBlock = types.Hash(prevBlock)
	merkleRoot, buf, err = codec.ReadFixedHash(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("merkle_root: %w", err)
	}
	h.MerkleRoot = types.Hash(merkleRoot)
	h.Timestamp, buf, err = codec.ReadUint64(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("timestamp: %w", err)
	}
	h.Bits, buf, err = codec.ReadUint32(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("bits: %w", err)
	}
	h.Nonce, buf, err = codec.ReadUint64(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}
	return h, buf, nil
}
