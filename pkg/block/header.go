package block

import (
	"encoding/json"

	"github.com/INT-devs/intcoin-sub001/pkg/codec"
	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Header contains block metadata. Block height is deliberately not a header
// field: it is derived from chain position (BlockStore/Chain.State), not
// committed to by the header itself.
type Header struct {
	Version    uint32     `json:"version"`
	PrevBlock  types.Hash `json:"prev_block"`
	MerkleRoot types.Hash `json:"merkle_root"`
	Timestamp  uint64     `json:"timestamp"`
	Bits       uint32     `json:"bits"`
	Nonce      uint64     `json:"nonce"`
}

// headerJSON mirrors Header; kept as a distinct type so adding hex-only
// fields later doesn't change Header's own JSON shape.
type headerJSON struct {
	Version    uint32     `json:"version"`
	PrevBlock  types.Hash `json:"prev_block"`
	MerkleRoot types.Hash `json:"merkle_root"`
	Timestamp  uint64     `json:"timestamp"`
	Bits       uint32     `json:"bits"`
	Nonce      uint64     `json:"nonce"`
}

// MarshalJSON encodes the header.
func (h *Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(headerJSON{
		Version:    h.Version,
		PrevBlock:  h.PrevBlock,
		MerkleRoot: h.MerkleRoot,
		Timestamp:  h.Timestamp,
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	})
}

// UnmarshalJSON decodes a header.
func (h *Header) UnmarshalJSON(data []byte) error {
	var j headerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	h.Version = j.Version
	h.PrevBlock = j.PrevBlock
	h.MerkleRoot = j.MerkleRoot
	h.Timestamp = j.Timestamp
	h.Bits = j.Bits
	h.Nonce = j.Nonce
	return nil
}

// Hash computes the block header hash (double BLAKE3 of the signing bytes,
// matching Bitcoin-style double hashing so a single-hash length-extension
// concern doesn't leak into PoW difficulty).
func (h *Header) Hash() types.Hash {
	return crypto.DoubleHash(h.SigningBytes())
}

// SigningBytes returns the canonical bytes hashed for both the block ID and
// proof-of-work: version | prev_block(32) | merkle_root(32) | timestamp(8) |
// bits(4) | nonce(8).
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 88)
	buf = codec.PutUint32(buf, h.Version)
	buf = append(buf, h.PrevBlock[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = codec.PutUint64(buf, h.Timestamp)
	buf = codec.PutUint32(buf, h.Bits)
	buf = codec.PutUint64(buf, h.Nonce)
	return buf
}
