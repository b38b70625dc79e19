package codec

import "encoding/binary"

// HeaderSize is the width in bytes of a record's magic+version framing.
const HeaderSize = 4

// PutFrame appends a 3-byte magic and 1-byte version ahead of a record, the
// framing every persisted struct (blocks, transactions, UTXO entries, store
// metadata) carries so a reader can refuse a record from an incompatible
// build before attempting to decode its body.
func PutFrame(buf []byte, magic [3]byte, version uint8) []byte {
	buf = append(buf, magic[:]...)
	return append(buf, version)
}

// ReadFrame reads and validates a record's magic+version framing, returning
// the unconsumed remainder. wantMagic must match exactly; wantVersion must
// be greater than or equal to the encoded version for forward-compatible
// reads of older records, and equal for writes.
func ReadFrame(buf []byte, wantMagic [3]byte, maxVersion uint8) (version uint8, rest []byte, err error) {
	if len(buf) < HeaderSize {
		return 0, nil, ErrTruncated
	}
	var magic [3]byte
	copy(magic[:], buf[:3])
	if magic != wantMagic {
		return 0, nil, ErrVersionMismatch
	}
	version = buf[3]
	if version > maxVersion {
		return 0, nil, ErrVersionMismatch
	}
	return version, buf[4:], nil
}

// PutUint32 and PutUint64 are thin little-endian helpers kept alongside the
// varint/frame helpers so callers never reach for encoding/binary directly
// when building a canonical record.
func PutUint32(buf []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(buf, v) }
func PutUint64(buf []byte, v uint64) []byte { return binary.LittleEndian.AppendUint64(buf, v) }

// ReadUint32 and ReadUint64 decode a little-endian fixed-width integer from
// the front of buf, returning the unconsumed remainder.
func ReadUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, ErrTruncated
	}
	return binary.LittleEndian.Uint32(buf[:4]), buf[4:], nil
}

func ReadUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, ErrTruncated
	}
	return binary.LittleEndian.Uint64(buf[:8]), buf[8:], nil
}
