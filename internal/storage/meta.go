package storage

import (
	"fmt"

	"github.com/INT-devs/intcoin-sub001/pkg/codec"
)

// metaKey holds the store-wide magic+version record. It lives outside every
// other keyspace's prefix so PrefixDB namespacing never shadows it.
var metaKey = []byte("\x00meta")

// StoreMagic identifies an intcoin store; it never changes.
var StoreMagic = [3]byte{'I', 'N', 'T'}

// StoreVersion is the on-disk layout version this build writes. Bump it
// when a persisted record's encoding changes in a way older builds can't
// read.
const StoreVersion uint8 = 1

// CheckOrInitMeta stamps a fresh database with the current magic+version
// record, or, if one is already present, verifies it matches what this
// build can read. A mismatched magic means the path holds a foreign
// database; a version newer than StoreVersion means the store was written
// by a newer build than this one.
func CheckOrInitMeta(db DB) error {
	existing, err := db.Get(metaKey)
	if err != nil {
		return db.Put(metaKey, codec.PutFrame(nil, StoreMagic, StoreVersion))
	}
	if _, _, err := codec.ReadFrame(existing, StoreMagic, StoreVersion); err != nil {
		return fmt.Errorf("incompatible store at this path: %w", err)
	}
	return nil
}
