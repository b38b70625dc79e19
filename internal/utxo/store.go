package utxo

import (
	"encoding/binary"
	"fmt"

	"github.com/INT-devs/intcoin-sub001/internal/storage"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO = []byte("u/") // u/<txhash><index> -> codec-framed UTXO
	prefixAddr = []byte("a/") // a/<address><txhash><index> -> empty (index)
)

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key for an outpoint: "u/" + txhash(32) + index(4).
func utxoKey(op types.OutPoint) []byte {
	key := make([]byte, len(prefixUTXO)+types.HashSize+4)
	copy(key, prefixUTXO)
	copy(key[len(prefixUTXO):], op.TxHash[:])
	binary.BigEndian.PutUint32(key[len(prefixUTXO)+types.HashSize:], op.Index)
	return key
}

// addrKey builds an address index key: "a/" + addr(20) + txhash(32) + index(4).
func addrKey(addr types.Address, op types.OutPoint) []byte {
	key := make([]byte, len(prefixAddr)+types.AddressSize+types.HashSize+4)
	copy(key, prefixAddr)
	copy(key[len(prefixAddr):], addr[:])
	off := len(prefixAddr) + types.AddressSize
	copy(key[off:], op.TxHash[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}

// Get retrieves a UTXO by its outpoint.
func (s *Store) Get(outpoint types.OutPoint) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(outpoint))
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	u, err := DecodeUTXO(data)
	if err != nil {
		return nil, fmt.Errorf("utxo decode: %w", err)
	}
	return u, nil
}

// scriptAddress returns the address a UTXO's spending predicate names, when
// it's shaped like one: an exact AddressSize byte string.
func scriptAddress(scriptPubKey []byte) (types.Address, bool) {
	if len(scriptPubKey) != types.AddressSize {
		return types.Address{}, false
	}
	var addr types.Address
	copy(addr[:], scriptPubKey)
	return addr, true
}

// Put stores a UTXO and updates the address index.
func (s *Store) Put(u *UTXO) error {
	data := u.Encode()
	if err := s.db.Put(utxoKey(u.OutPoint), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}

	if addr, ok := scriptAddress(u.ScriptPubKey); ok {
		if err := s.db.Put(addrKey(addr, u.OutPoint), []byte{}); err != nil {
			return fmt.Errorf("utxo index put: %w", err)
		}
	}

	return nil
}

// Delete removes a UTXO and its address index entry.
func (s *Store) Delete(outpoint types.OutPoint) error {
	// Read first to clean up the secondary index.
	u, err := s.Get(outpoint)
	if err == nil {
		if addr, ok := scriptAddress(u.ScriptPubKey); ok {
			s.db.Delete(addrKey(addr, u.OutPoint))
		}
	}

	if err := s.db.Delete(utxoKey(outpoint)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// Has checks if a UTXO exists for the given outpoint.
func (s *Store) Has(outpoint types.OutPoint) (bool, error) {
	return s.db.Has(utxoKey(outpoint))
}

// ForEach iterates over all UTXOs in the store.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		u, err := DecodeUTXO(value)
		if err != nil {
			return fmt.Errorf("utxo decode: %w", err)
		}
		return fn(u)
	})
}

// ClearAll removes all UTXOs and the address index. Used during UTXO set
// recovery after a crash mid-reorg.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixAddr} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			keys = append(keys, k)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	return nil
}

// GetByAddress returns all UTXOs whose spending predicate names the given
// address. It scans the address index and loads each referenced UTXO.
func (s *Store) GetByAddress(addr types.Address) ([]*UTXO, error) {
	// Build the prefix: "a/" + addr(20).
	prefix := make([]byte, len(prefixAddr)+types.AddressSize)
	copy(prefix, prefixAddr)
	copy(prefix[len(prefixAddr):], addr[:])

	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		// Key layout: "a/" + addr(20) + txhash(32) + index(4).
		off := len(prefixAddr) + types.AddressSize
		if len(key) < off+types.HashSize+4 {
			return nil // Malformed key, skip.
		}
		var op types.OutPoint
		copy(op.TxHash[:], key[off:off+types.HashSize])
		op.Index = binary.BigEndian.Uint32(key[off+types.HashSize:])

		u, err := s.Get(op)
		if err != nil {
			return nil // UTXO may have been spent, skip.
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}
