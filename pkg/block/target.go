package block

import (
	"math/big"

	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// maxTarget is the easiest possible target (bits = 0x1f00ffff): the ceiling
// every retargeted difficulty is clamped under.
var maxTarget = TargetFromBits(0x1f00ffff)

// TargetFromBits decodes a compact "bits" difficulty encoding into a target
// threshold, Bitcoin-style: the low 3 bytes are a mantissa, the high byte an
// exponent measured in bytes. target = mantissa << (8*(exponent-3)) for
// exponent > 3, or mantissa >> (8*(3-exponent)) otherwise.
func TargetFromBits(bits uint32) *big.Int {
	exponent := bits >> 24
	mantissa := int64(bits & 0x007fffff)
	if bits&0x00800000 != 0 {
		// Negative-target encodings never appear in a valid chain.
		return big.NewInt(0)
	}

	target := big.NewInt(mantissa)
	if exponent <= 3 {
		shift := uint(8 * (3 - exponent))
		return target.Rsh(target, shift)
	}
	shift := uint(8 * (exponent - 3))
	return target.Lsh(target, shift)
}

// BitsFromTarget encodes a target threshold into the compact "bits" form,
// the inverse of TargetFromBits. Targets that don't fit a 23-bit mantissa
// are rounded down to the nearest representable value, matching the
// direction difficulty adjustment must round to stay at least as hard.
func BitsFromTarget(target *big.Int) uint32 {
	if target.Sign() <= 0 {
		return 0
	}

	b := target.Bytes()
	exponent := len(b)
	var mantissaBytes []byte
	if exponent <= 3 {
		mantissaBytes = make([]byte, 3)
		copy(mantissaBytes[3-exponent:], b)
	} else {
		mantissaBytes = append([]byte(nil), b[:3]...)
	}
	mantissa := uint32(mantissaBytes[0])<<16 | uint32(mantissaBytes[1])<<8 | uint32(mantissaBytes[2])

	// If the top mantissa bit would be mistaken for the sign bit, shift the
	// mantissa right by one byte and bump the exponent to compensate.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	return uint32(exponent)<<24 | mantissa
}

// CheckProofOfWork reports whether hash, read as a big-endian integer,
// satisfies the target implied by bits.
func CheckProofOfWork(hash types.Hash, bits uint32) bool {
	target := TargetFromBits(bits)
	if target.Sign() <= 0 {
		return false
	}
	h := new(big.Int).SetBytes(hash[:])
	return h.Cmp(target) <= 0
}

// Work returns a block's contribution to cumulative chain work: floor(2^256
// / (target+1)), the standard measure that makes work additive and
// monotonic in difficulty even as the target representation saturates.
func Work(bits uint32) *big.Int {
	target := TargetFromBits(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	numerator := new(big.Int).Lsh(big.NewInt(1), 256)
	return numerator.Div(numerator, denom)
}

// MaxTarget returns the easiest permitted target, used to clamp difficulty
// retargeting and to validate genesis/checkpoint bits.
func MaxTarget() *big.Int {
	return new(big.Int).Set(maxTarget)
}
