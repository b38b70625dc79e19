package codec

import "errors"

// Sentinel decode errors. Callers match with errors.Is.
var (
	// ErrTruncated is returned when a buffer ends before a field is fully read.
	ErrTruncated = errors.New("codec: truncated input")

	// ErrTrailingBytes is returned when a decode leaves unconsumed bytes in
	// a buffer expected to be fully consumed.
	ErrTrailingBytes = errors.New("codec: trailing bytes")

	// ErrVersionMismatch is returned when a header's version byte does not
	// match what the reader supports.
	ErrVersionMismatch = errors.New("codec: version mismatch")

	// ErrFieldOutOfRange is returned when a decoded field's value falls
	// outside its permitted domain (e.g. a non-canonical varint encoding).
	ErrFieldOutOfRange = errors.New("codec: field out of range")
)
