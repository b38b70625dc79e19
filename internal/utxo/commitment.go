package utxo

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Commitment computes a merkle root over all UTXOs in the store.
// Each UTXO is hashed deterministically, the hashes are sorted, and
// a merkle tree is built from them. Returns a zero hash for an empty set.
func Commitment(store *Store) (types.Hash, error) {
	var hashes []types.Hash

	err := store.ForEach(func(u *UTXO) error {
		hashes = append(hashes, hashUTXO(u))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}

	if len(hashes) == 0 {
		return types.Hash{}, nil
	}

	// Sort for deterministic ordering (map iteration order varies).
	sort.Slice(hashes, func(i, j int) bool {
		return hashLess(hashes[i], hashes[j])
	})

	return block.ComputeMerkleRoot(hashes), nil
}

// hashUTXO produces a deterministic BLAKE3 hash of a UTXO.
// Format: txhash(32) | index(4) | value(8) | script_len(4) | script_pubkey | recipient_pubkey
func hashUTXO(u *UTXO) types.Hash {
	var buf []byte
	buf = append(buf, u.OutPoint.TxHash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, u.OutPoint.Index)
	buf = binary.LittleEndian.AppendUint64(buf, u.Value)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(u.ScriptPubKey)))
	buf = append(buf, u.ScriptPubKey...)
	buf = append(buf, u.RecipientPubKey...)
	return crypto.Hash(buf)
}

func hashLess(a, b types.Hash) bool {
	for i := 0; i < types.HashSize; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
