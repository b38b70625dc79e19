// Package codec implements the canonical binary encoding used for wire and
// storage serialization of transactions, blocks, and UTXO records: compact
// variable-length integers, length-prefixed byte strings, and fixed
// magic/version framing. All multi-byte fixed-width integers are
// little-endian; only hash/address byte arrays carry their own (big-endian)
// comparison semantics.
package codec

import "encoding/binary"

// Varint encoding thresholds (CompactSize-style):
//
//	value <  0xFD                 -> 1 byte, the value itself
//	value <= 0xFFFF                -> 0xFD, then uint16 little-endian
//	value <= 0xFFFFFFFF             -> 0xFE, then uint32 little-endian
//	otherwise                      -> 0xFF, then uint64 little-endian
const (
	varint16Prefix = 0xFD
	varint32Prefix = 0xFE
	varint64Prefix = 0xFF
)

// PutVarint appends v to buf using the canonical compact varint encoding
// and returns the extended slice.
func PutVarint(buf []byte, v uint64) []byte {
	switch {
	case v < varint16Prefix:
		return append(buf, byte(v))
	case v <= 0xFFFF:
		buf = append(buf, varint16Prefix)
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case v <= 0xFFFFFFFF:
		buf = append(buf, varint32Prefix)
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		buf = append(buf, varint64Prefix)
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

// ReadVarint decodes a compact varint from the front of buf, returning the
// value and the unconsumed remainder. Non-canonical encodings (a prefix
// byte used where a shorter form would suffice) are rejected.
func ReadVarint(buf []byte) (uint64, []byte, error) {
	if len(buf) < 1 {
		return 0, nil, ErrTruncated
	}
	switch prefix := buf[0]; prefix {
	case varint16Prefix:
		if len(buf) < 3 {
			return 0, nil, ErrTruncated
		}
		v := binary.LittleEndian.Uint16(buf[1:3])
		if uint64(v) < varint16Prefix {
			return 0, nil, ErrFieldOutOfRange
		}
		return uint64(v), buf[3:], nil
	case varint32Prefix:
		if len(buf) < 5 {
			return 0, nil, ErrTruncated
		}
		v := binary.LittleEndian.Uint32(buf[1:5])
		if uint64(v) <= 0xFFFF {
			return 0, nil, ErrFieldOutOfRange
		}
		return uint64(v), buf[5:], nil
	case varint64Prefix:
		if len(buf) < 9 {
			return 0, nil, ErrTruncated
		}
		v := binary.LittleEndian.Uint64(buf[1:9])
		if v <= 0xFFFFFFFF {
			return 0, nil, ErrFieldOutOfRange
		}
		return v, buf[9:], nil
	default:
		return uint64(prefix), buf[1:], nil
	}
}

// PutBytes appends b to buf as a varint-length-prefixed byte string.
func PutBytes(buf []byte, b []byte) []byte {
	buf = PutVarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// ReadBytes decodes a varint-length-prefixed byte string from the front of
// buf, returning a freshly allocated copy and the unconsumed remainder.
func ReadBytes(buf []byte) ([]byte, []byte, error) {
	n, rest, err := ReadVarint(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, rest[:n])
	return out, rest[n:], nil
}

// PutFixedHash appends a fixed-size 32-byte hash with no length prefix.
func PutFixedHash(buf []byte, h [32]byte) []byte {
	return append(buf, h[:]...)
}

// ReadFixedHash reads a fixed-size 32-byte hash from the front of buf.
func ReadFixedHash(buf []byte) ([32]byte, []byte, error) {
	var h [32]byte
	if len(buf) < 32 {
		return h, nil, ErrTruncated
	}
	copy(h[:], buf[:32])
	return h, buf[32:], nil
}
