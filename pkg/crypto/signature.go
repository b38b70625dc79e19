package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// SignatureAdapter is the pluggable signature scheme boundary: every place
// that signs or verifies a transaction input goes through an adapter
// instead of calling a concrete scheme directly, so the consensus-critical
// key and signature sizes can be swapped (e.g. for a post-quantum scheme)
// without touching transaction or validator code.
type SignatureAdapter interface {
	// Sign produces a signature over a 32-byte hash using the given
	// private key scalar.
	Sign(key, hash []byte) ([]byte, error)
	// Verify checks a signature against a 32-byte hash and public key.
	Verify(hash, signature, publicKey []byte) bool
	// PublicKeySize is the fixed encoded public key length this adapter
	// produces and expects.
	PublicKeySize() int
	// SignatureSize is the fixed encoded signature length this adapter
	// produces and expects.
	SignatureSize() int
}

// DefaultAdapter is the Schnorr/secp256k1 adapter used unless a node is
// explicitly configured otherwise.
var DefaultAdapter SignatureAdapter = SchnorrAdapter{}

// SchnorrAdapter implements SignatureAdapter over BIP-340 style
// Schnorr signatures on secp256k1.
type SchnorrAdapter struct{}

// PublicKeySize returns the compressed secp256k1 public key length.
func (SchnorrAdapter) PublicKeySize() int { return 33 }

// SignatureSize returns the serialized Schnorr signature length.
func (SchnorrAdapter) SignatureSize() int { return 64 }

// Sign produces a Schnorr signature over a 32-byte hash using a raw
// 32-byte private key scalar.
func (SchnorrAdapter) Sign(key, hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	priv := secp256k1.PrivKeyFromBytes(key)
	sig, err := schnorr.Sign(priv, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// Verify checks a Schnorr signature against a 32-byte hash and a
// compressed public key. Returns false on any malformed input.
func (SchnorrAdapter) Verify(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}

// PrivateKey wraps a secp256k1 private key for Schnorr signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Sign produces a signature over a 32-byte hash via the default adapter.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	return DefaultAdapter.Sign(pk.key.Serialize(), hash)
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a signature against a 32-byte hash and public key
// using the default adapter. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	return DefaultAdapter.Verify(hash, signature, publicKey)
}

// deterministicAdapter is a SignatureAdapter test double: "signatures" are
// just the signed hash itself concatenated with the key, and "verification"
// recomputes the same bytes. It exists so consensus and mempool tests can
// exercise signature-shaped code paths without paying for real elliptic
// curve operations on every table-driven case.
type deterministicAdapter struct{}

// NewDeterministicAdapter returns a SignatureAdapter suitable only for
// tests: it is not cryptographically secure.
func NewDeterministicAdapter() SignatureAdapter { return deterministicAdapter{} }

func (deterministicAdapter) PublicKeySize() int { return 32 }
func (deterministicAdapter) SignatureSize() int { return 64 }

func (deterministicAdapter) Sign(key, hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig := make([]byte, 64)
	copy(sig[:32], hash)
	copy(sig[32:], key)
	return sig, nil
}

func (deterministicAdapter) Verify(hash, signature, publicKey []byte) bool {
	if len(signature) != 64 || len(hash) != 32 {
		return false
	}
	if string(signature[:32]) != string(hash) {
		return false
	}
	return string(signature[32:]) == string(publicKey)
}
