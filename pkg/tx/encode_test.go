package tx

import (
	"bytes"
	"errors"
	"testing"

	"github.com/INT-devs/intcoin-sub001/pkg/codec"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

func TestTransaction_EncodeDecode_RoundTrip(t *testing.T) {
	original := &Transaction{
		Version: 1,
		Inputs: []Input{
			{
				Prev:      types.OutPoint{TxHash: types.Hash{0x01}, Index: 2},
				Signature: bytes.Repeat([]byte{0xAB}, 64),
				PubKey:    bytes.Repeat([]byte{0xCD}, 33),
				Sequence:  7,
			},
			{
				Prev:     types.OutPoint{Index: types.CoinbaseIndex},
				Witness:  []byte{0x01, 0x02, 0x03},
				Sequence: 0,
			},
		},
		Outputs: []Output{
			{Value: 5000, ScriptPubKey: make([]byte, types.AddressSize), RecipientPubKey: bytes.Repeat([]byte{0xEF}, 33)},
		},
		LockTime:  100,
		Timestamp: 1700000000,
	}

	decoded, err := DecodeTransaction(original.Encode())
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}

	if decoded.Hash() != original.Hash() {
		t.Errorf("round-tripped transaction hash = %s, want %s", decoded.Hash(), original.Hash())
	}
	if !bytes.Equal(decoded.Inputs[0].Signature, original.Inputs[0].Signature) {
		t.Error("signature did not round-trip")
	}
	if !bytes.Equal(decoded.Inputs[0].PubKey, original.Inputs[0].PubKey) {
		t.Error("pubkey did not round-trip")
	}
	if !bytes.Equal(decoded.Inputs[1].Witness, original.Inputs[1].Witness) {
		t.Error("witness did not round-trip")
	}
	if decoded.LockTime != original.LockTime || decoded.Timestamp != original.Timestamp {
		t.Error("locktime/timestamp did not round-trip")
	}
}

func TestTransaction_EncodeDecode_EmptyFieldsStayNil(t *testing.T) {
	original := &Transaction{
		Version: 1,
		Inputs: []Input{
			{Prev: types.OutPoint{Index: types.CoinbaseIndex}},
		},
		Outputs: []Output{
			{Value: 1000, ScriptPubKey: make([]byte, types.AddressSize)},
		},
	}

	decoded, err := DecodeTransaction(original.Encode())
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if decoded.Inputs[0].Signature != nil {
		t.Errorf("Signature = %v, want nil", decoded.Inputs[0].Signature)
	}
	if decoded.Inputs[0].Witness != nil {
		t.Errorf("Witness = %v, want nil", decoded.Inputs[0].Witness)
	}
	if decoded.Outputs[0].RecipientPubKey != nil {
		t.Errorf("RecipientPubKey = %v, want nil", decoded.Outputs[0].RecipientPubKey)
	}
}

func TestDecodeTransaction_RejectsTruncated(t *testing.T) {
	original := &Transaction{
		Version: 1,
		Outputs: []Output{{Value: 1, ScriptPubKey: make([]byte, types.AddressSize)}},
	}
	data := original.Encode()

	if _, err := DecodeTransaction(data[:len(data)-1]); err == nil {
		t.Error("DecodeTransaction(truncated) = nil error, want one")
	}
}

func TestDecodeTransaction_RejectsWrongMagic(t *testing.T) {
	original := &Transaction{Outputs: []Output{{Value: 1}}}
	data := original.Encode()
	data[0] = 'X'

	if _, err := DecodeTransaction(data); !errors.Is(err, codec.ErrVersionMismatch) {
		t.Errorf("DecodeTransaction(wrong magic) = %v, want ErrVersionMismatch", err)
	}
}

func TestDecodeTransaction_RejectsTrailingBytes(t *testing.T) {
	original := &Transaction{Outputs: []Output{{Value: 1}}}
	data := append(original.Encode(), 0xFF)

	if _, err := DecodeTransaction(data); !errors.Is(err, codec.ErrTrailingBytes) {
		t.Errorf("DecodeTransaction(trailing bytes) = %v, want ErrTrailingBytes", err)
	}
}
