package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xFC, 0xFD, 0xFE, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, 1 << 63}
	for _, v := range cases {
		buf := PutVarint(nil, v)
		got, rest, err := ReadVarint(buf)
		if err != nil {
			t.Fatalf("ReadVarint(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("ReadVarint(%d) = %d", v, got)
		}
		if len(rest) != 0 {
			t.Errorf("ReadVarint(%d) left %d trailing bytes", v, len(rest))
		}
	}
}

func TestVarintEncodingWidth(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{0xFC, 1},
		{0xFD, 3},
		{0xFFFF, 3},
		{0x10000, 5},
		{0xFFFFFFFF, 5},
		{0x100000000, 9},
	}
	for _, c := range cases {
		if got := len(PutVarint(nil, c.v)); got != c.want {
			t.Errorf("PutVarint(%d): encoded width = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestReadVarintRejectsNonCanonical(t *testing.T) {
	// 0xFD followed by a value < 0xFD should have been encoded as 1 byte.
	buf := []byte{0xFD, 0x05, 0x00}
	if _, _, err := ReadVarint(buf); !errors.Is(err, ErrFieldOutOfRange) {
		t.Fatalf("expected ErrFieldOutOfRange, got %v", err)
	}
}

func TestReadVarintTruncated(t *testing.T) {
	if _, _, err := ReadVarint([]byte{0xFD, 0x00}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, _, err := ReadVarint(nil); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for empty input, got %v", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	want := []byte("opaque spending predicate")
	buf := PutBytes(nil, want)
	got, rest, err := ReadBytes(buf)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBytes = %q, want %q", got, want)
	}
	if len(rest) != 0 {
		t.Errorf("ReadBytes left %d trailing bytes", len(rest))
	}
}

func TestReadBytesTruncated(t *testing.T) {
	buf := PutVarint(nil, 10)
	if _, _, err := ReadBytes(buf); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	magic := [3]byte{'I', 'N', 'T'}
	buf := PutFrame(nil, magic, 1)
	buf = PutUint64(buf, 42)
	version, rest, err := ReadFrame(buf, magic, 1)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	v, rest, err := ReadUint64(rest)
	if err != nil {
		t.Fatalf("ReadUint64: %v", err)
	}
	if v != 42 || len(rest) != 0 {
		t.Errorf("ReadUint64 = %d, rest = %d bytes", v, len(rest))
	}
}

func TestFrameRejectsWrongMagic(t *testing.T) {
	buf := PutFrame(nil, [3]byte{'X', 'X', 'X'}, 1)
	if _, _, err := ReadFrame(buf, [3]byte{'I', 'N', 'T'}, 1); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestFrameRejectsNewerVersion(t *testing.T) {
	buf := PutFrame(nil, [3]byte{'I', 'N', 'T'}, 7)
	if _, _, err := ReadFrame(buf, [3]byte{'I', 'N', 'T'}, 1); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}
