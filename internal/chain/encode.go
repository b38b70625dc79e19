package chain

import (
	"fmt"

	"github.com/INT-devs/intcoin-sub001/internal/utxo"
	"github.com/INT-devs/intcoin-sub001/pkg/codec"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

var undoMagic = [3]byte{'U', 'N', 'D'}

const undoVersion uint8 = 1

// encode returns the canonical binary encoding of undo data for storage.
func (u *undoData) encode() []byte {
	var buf []byte
	buf = codec.PutFrame(buf, undoMagic, undoVersion)

	buf = codec.PutVarint(buf, uint64(len(u.Diff.Spent)))
	for i := range u.Diff.Spent {
		buf = codec.PutBytes(buf, u.Diff.Spent[i].Encode())
	}

	buf = codec.PutVarint(buf, uint64(len(u.Diff.Created)))
	for _, op := range u.Diff.Created {
		buf = append(buf, op.TxHash[:]...)
		buf = codec.PutUint32(buf, op.Index)
	}

	buf = codec.PutVarint(buf, uint64(len(u.TxHashes)))
	for _, h := range u.TxHashes {
		buf = append(buf, h[:]...)
	}

	buf = codec.PutUint64(buf, u.BlockReward)
	return buf
}

// decodeUndoData parses undo data previously produced by encode.
func decodeUndoData(data []byte) (*undoData, error) {
	_, rest, err := codec.ReadFrame(data, undoMagic, undoVersion)
	if err != nil {
		return nil, fmt.Errorf("undo frame: %w", err)
	}

	var u undoData

	nSpent, rest, err := codec.ReadVarint(rest)
	if err != nil {
		return nil, fmt.Errorf("spent count: %w", err)
	}
	u.Diff.Spent = make([]utxo.UTXO, int(nSpent))
	for i := range u.Diff.Spent {
		var raw []byte
		raw, rest, err = codec.ReadBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("spent %d: %w", i, err)
		}
		entry, err := utxo.DecodeUTXO(raw)
		if err != nil {
			return nil, fmt.Errorf("spent %d: %w", i, err)
		}
		u.Diff.Spent[i] = *entry
	}

	nCreated, rest, err := codec.ReadVarint(rest)
	if err != nil {
		return nil, fmt.Errorf("created count: %w", err)
	}
	u.Diff.Created = make([]types.OutPoint, int(nCreated))
	for i := range u.Diff.Created {
		var hash [32]byte
		hash, rest, err = codec.ReadFixedHash(rest)
		if err != nil {
			return nil, fmt.Errorf("created %d tx hash: %w", i, err)
		}
		u.Diff.Created[i].TxHash = types.Hash(hash)
		u.Diff.Created[i].Index, rest, err = codec.ReadUint32(rest)
		if err != nil {
			return nil, fmt.Errorf("created %d index: %w", i, err)
		}
	}

	nTx, rest, err := codec.ReadVarint(rest)
	if err != nil {
		return nil, fmt.Errorf("tx hash count: %w", err)
	}
	u.TxHashes = make([]types.Hash, int(nTx))
	for i := range u.TxHashes {
		var hash [32]byte
		hash, rest, err = codec.ReadFixedHash(rest)
		if err != nil {
			return nil, fmt.Errorf("tx hash %d: %w", i, err)
		}
		u.TxHashes[i] = types.Hash(hash)
	}

	u.BlockReward, rest, err = codec.ReadUint64(rest)
	if err != nil {
		return nil, fmt.Errorf("block reward: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("undo data: %w", codec.ErrTrailingBytes)
	}

	return &u, nil
}
