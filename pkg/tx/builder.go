package tx

import (
	"fmt"

	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Version: 1},
	}
}

// AddInput adds an input referencing a previous output.
func (b *Builder) AddInput(prev types.OutPoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{Prev: prev, Sequence: ^uint32(0)})
	return b
}

// AddOutput adds an output paying value, storing scriptPubKey and
// recipientPubKey exactly as given; use PayTo to derive scriptPubKey from
// the recipient's public key.
func (b *Builder) AddOutput(value uint64, scriptPubKey, recipientPubKey []byte) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{
		Value:           value,
		ScriptPubKey:    scriptPubKey,
		RecipientPubKey: recipientPubKey,
	})
	return b
}

// PayTo is a convenience wrapper around AddOutput that derives the
// script_pubkey address from the recipient's public key directly.
func (b *Builder) PayTo(value uint64, recipientPubKey []byte) *Builder {
	addr := crypto.AddressFromPubKey(recipientPubKey)
	return b.AddOutput(value, addr.Bytes(), recipientPubKey)
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// SetTimestamp sets the transaction's creation timestamp (unix seconds).
func (b *Builder) SetTimestamp(ts uint64) *Builder {
	b.tx.Timestamp = ts
	return b
}

// Sign signs all inputs with the provided private key.
// Each input gets the same signature (single-key spending).
func (b *Builder) Sign(key *crypto.PrivateKey) error {
	hash := b.tx.Hash()
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	pubKey := key.PublicKey()
	for i := range b.tx.Inputs {
		if b.tx.Inputs[i].Prev.IsCoinbaseSentinel() {
			continue
		}
		b.tx.Inputs[i].Signature = sig
		b.tx.Inputs[i].PubKey = pubKey
	}
	return nil
}

// SignMulti signs each input with the key that owns its outpoint.
// outpointAddr maps each input's outpoint to the address that owns it.
// signers maps each address to the private key that can spend from it.
func (b *Builder) SignMulti(
	signers map[types.Address]*crypto.PrivateKey,
	outpointAddr map[types.OutPoint]types.Address,
) error {
	hash := b.tx.Hash()

	// Cache signatures: same key always produces the same sig for the same hash.
	type sigPub struct {
		sig    []byte
		pubKey []byte
	}
	cache := make(map[types.Address]*sigPub)

	for i := range b.tx.Inputs {
		if b.tx.Inputs[i].Prev.IsCoinbaseSentinel() {
			continue
		}

		addr, ok := outpointAddr[b.tx.Inputs[i].Prev]
		if !ok {
			return fmt.Errorf("no address mapping for input %d outpoint", i)
		}
		key, ok := signers[addr]
		if !ok {
			return fmt.Errorf("no signer for address %s (input %d)", addr, i)
		}

		sp, cached := cache[addr]
		if !cached {
			sig, err := key.Sign(hash[:])
			if err != nil {
				return fmt.Errorf("sign input %d: %w", i, err)
			}
			sp = &sigPub{sig: sig, pubKey: key.PublicKey()}
			cache[addr] = sp
		}
		b.tx.Inputs[i].Signature = sp.sig
		b.tx.Inputs[i].PubKey = sp.pubKey
	}
	return nil
}

// Build returns the constructed transaction.
// Does NOT validate — call tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
