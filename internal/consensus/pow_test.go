package consensus

import (
	"errors"
	"math/big"
	"testing"

	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// easyBits is the same trivially-satisfiable target pkg/block uses as its
// difficulty ceiling, so Seal finds a nonce almost immediately in tests.
const easyBits = 0x1f00ffff

// midBits is a harder target with room to both tighten and loosen, used by
// the retargeting tests.
func midBits() uint32 {
	t := new(big.Int).Rsh(block.TargetFromBits(easyBits), 8)
	return block.BitsFromTarget(t)
}

func TestPoW_SealAndVerify(t *testing.T) {
	pow := NewPoW(easyBits, 0, 3)

	header := &block.Header{
		Version:    1,
		MerkleRoot: [32]byte{1, 2, 3},
		Timestamp:  1000,
		Bits:       easyBits,
	}

	blk := block.NewBlock(header, nil)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after Seal: %v", err)
	}
}

func TestPoW_VerifyHeader_Rejects(t *testing.T) {
	pow := NewPoW(easyBits, 0, 3)

	// An astronomically hard target: a random nonce will not satisfy it.
	header := &block.Header{
		Version:    1,
		MerkleRoot: [32]byte{1, 2, 3},
		Timestamp:  1000,
		Bits:       0x03000001,
		Nonce:      42,
	}

	err := pow.VerifyHeader(header)
	if err != ErrInsufficientWork {
		t.Fatalf("VerifyHeader with near-impossible target = %v, want ErrInsufficientWork", err)
	}
}

func TestPoW_VerifyHeader_BadBits(t *testing.T) {
	pow := NewPoW(easyBits, 0, 3)

	// Sign bit set: never a valid encoding.
	header := &block.Header{Version: 1, Bits: 0x01800000}

	err := pow.VerifyHeader(header)
	if err != ErrBadBits {
		t.Fatalf("VerifyHeader(bad bits) = %v, want ErrBadBits", err)
	}
}

func TestPoW_SealModerateDifficulty(t *testing.T) {
	pow := NewPoW(midBits(), 0, 3)

	header := &block.Header{
		Version:    1,
		MerkleRoot: [32]byte{0xDE, 0xAD},
		Timestamp:  12345,
		Bits:       midBits(),
	}
	blk := block.NewBlock(header, nil)

	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader: %v", err)
	}

	if !block.CheckProofOfWork(blk.Header.Hash(), blk.Header.Bits) {
		t.Fatal("mined header does not satisfy its own bits")
	}
}

func TestPoW_Prepare_SetsBits(t *testing.T) {
	pow := NewPoW(42, 0, 3)
	header := &block.Header{Version: 1, Timestamp: 1}
	if err := pow.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Bits != 42 {
		t.Fatalf("Prepare set bits = %#x, want 42", header.Bits)
	}
}

// ── Retargeting tests ──────────────────────────────────────────────

func TestCalcNextBits_ExactSpacing(t *testing.T) {
	base := midBits()
	got := CalcNextBits(base, 600, 600)
	if got != base {
		t.Fatalf("CalcNextBits(exact) = %#x, want %#x (unchanged)", got, base)
	}
}

func TestCalcNextBits_TooFast_TightensTarget(t *testing.T) {
	base := midBits()
	got := CalcNextBits(base, 300, 600)

	gotTarget := block.TargetFromBits(got)
	baseTarget := block.TargetFromBits(base)
	if gotTarget.Cmp(baseTarget) >= 0 {
		t.Fatalf("blocks arriving too fast should tighten the target: got %s, base %s", gotTarget, baseTarget)
	}
}

func TestCalcNextBits_TooSlow_LoosensTarget(t *testing.T) {
	base := midBits()
	got := CalcNextBits(base, 1200, 600)

	gotTarget := block.TargetFromBits(got)
	baseTarget := block.TargetFromBits(base)
	if gotTarget.Cmp(baseTarget) <= 0 {
		t.Fatalf("blocks arriving too slow should loosen the target: got %s, base %s", gotTarget, baseTarget)
	}
}

func TestCalcNextBits_ClampUp(t *testing.T) {
	base := midBits()
	// 10x too fast: clamped to a max 4x tightening.
	clamped := CalcNextBits(base, 60, 600)
	unclamped := CalcNextBits(base, 150, 600) // equivalent to the 4x-clamp floor

	clampedTarget := block.TargetFromBits(clamped)
	unclampedTarget := block.TargetFromBits(unclamped)
	if clampedTarget.Cmp(unclampedTarget) != 0 {
		t.Fatalf("10x-too-fast should clamp to the same target as exactly 4x: got %s, want %s", clampedTarget, unclampedTarget)
	}
}

func TestCalcNextBits_ClampDown(t *testing.T) {
	base := midBits()
	// 10x too slow: clamped to a max 4x loosening.
	clamped := CalcNextBits(base, 6000, 600)
	unclamped := CalcNextBits(base, 2400, 600) // equivalent to the 4x-clamp ceiling

	clampedTarget := block.TargetFromBits(clamped)
	unclampedTarget := block.TargetFromBits(unclamped)
	if clampedTarget.Cmp(unclampedTarget) != 0 {
		t.Fatalf("10x-too-slow should clamp to the same target as exactly 4x: got %s, want %s", clampedTarget, unclampedTarget)
	}
}

func TestCalcNextBits_NeverExceedsMaxTarget(t *testing.T) {
	got := CalcNextBits(easyBits, 100000, 600)
	gotTarget := block.TargetFromBits(got)
	if gotTarget.Cmp(block.MaxTarget()) > 0 {
		t.Fatalf("retargeted target %s exceeds MaxTarget %s", gotTarget, block.MaxTarget())
	}
}

func TestPoW_ShouldRetarget(t *testing.T) {
	pow := NewPoW(1, 10, 3)

	tests := []struct {
		height uint64
		want   bool
	}{
		{0, false},
		{1, false},
		{9, false},
		{10, true},
		{11, false},
		{20, true},
		{30, true},
		{100, true},
	}

	for _, tt := range tests {
		got := pow.ShouldRetarget(tt.height)
		if got != tt.want {
			t.Errorf("ShouldRetarget(%d) = %v, want %v", tt.height, got, tt.want)
		}
	}

	pow0 := NewPoW(1, 0, 3)
	if pow0.ShouldRetarget(10) {
		t.Error("ShouldRetarget with interval=0 should be false")
	}
}

func TestPoW_ExpectedBits(t *testing.T) {
	base := midBits()
	pow := NewPoW(base, 10, 3)

	if got := pow.ExpectedBits(0, 0, nil); got != base {
		t.Fatalf("ExpectedBits(0) = %#x, want %#x", got, base)
	}
	if got := pow.ExpectedBits(1, 0, nil); got != base {
		t.Fatalf("ExpectedBits(1) = %#x, want %#x", got, base)
	}

	prev := CalcNextBits(base, 1000, 600)
	if got := pow.ExpectedBits(5, prev, nil); got != prev {
		t.Fatalf("ExpectedBits(5, non-boundary) = %#x, want %#x (carried forward)", got, prev)
	}

	getTS := func(h uint64) (uint64, error) {
		if h == 0 {
			return 0, nil
		}
		return 30, nil // height 9: 30s elapsed over a 10*3=30s expected span.
	}
	if got := pow.ExpectedBits(10, prev, getTS); got != prev {
		t.Fatalf("ExpectedBits(10, exact spacing) = %#x, want %#x (unchanged)", got, prev)
	}
}

func TestPoW_VerifyDifficulty(t *testing.T) {
	base := midBits()
	pow := NewPoW(base, 10, 3)

	header := &block.Header{Bits: base}
	if err := pow.VerifyDifficulty(header, 1, 0, nil); err != nil {
		t.Fatalf("VerifyDifficulty(height=1) = %v, want nil", err)
	}

	header2 := &block.Header{Bits: 0x1f00ff00}
	if err := pow.VerifyDifficulty(header2, 1, 0, nil); err == nil {
		t.Fatal("VerifyDifficulty with wrong bits at height 1 = nil, want error")
	}

	header3 := &block.Header{Bits: base}
	if err := pow.VerifyDifficulty(header3, 5, base, nil); err != nil {
		t.Fatalf("VerifyDifficulty(height=5, carried forward) = %v, want nil", err)
	}
}

func TestPoW_VerifyCheckpoint(t *testing.T) {
	pinned := types.Hash{0xAA}
	pow := NewPoW(easyBits, 0, 3, WithCheckpoints(map[uint32]types.Hash{
		10: pinned,
	}))

	if err := pow.VerifyCheckpoint(10, pinned); err != nil {
		t.Fatalf("VerifyCheckpoint with matching hash = %v, want nil", err)
	}

	other := types.Hash{0xBB}
	if err := pow.VerifyCheckpoint(10, other); !errors.Is(err, ErrCheckpointViolation) {
		t.Fatalf("VerifyCheckpoint with mismatched hash = %v, want ErrCheckpointViolation", err)
	}

	// A height with no pinned checkpoint always passes.
	if err := pow.VerifyCheckpoint(11, other); err != nil {
		t.Fatalf("VerifyCheckpoint at unpinned height = %v, want nil", err)
	}
}

func TestPoW_VerifyCheckpoint_NoCheckpoints(t *testing.T) {
	pow := NewPoW(easyBits, 0, 3)
	if err := pow.VerifyCheckpoint(10, types.Hash{0xAA}); err != nil {
		t.Fatalf("VerifyCheckpoint with no checkpoint table = %v, want nil", err)
	}
}

func TestPoW_CheckpointCrossed(t *testing.T) {
	pow := NewPoW(easyBits, 0, 3, WithCheckpoints(map[uint32]types.Hash{
		50: {0xAA},
	}))

	// Reorg forking at height 60 never touches the checkpoint at 50.
	if pow.CheckpointCrossed(60, 100) {
		t.Fatal("CheckpointCrossed(60, 100) = true, want false (fork is above the checkpoint)")
	}

	// Reorg forking at height 10 would disconnect the block at 50.
	if !pow.CheckpointCrossed(10, 100) {
		t.Fatal("CheckpointCrossed(10, 100) = false, want true (fork crosses the checkpoint)")
	}

	// Forking exactly at the checkpoint height leaves it connected.
	if pow.CheckpointCrossed(50, 100) {
		t.Fatal("CheckpointCrossed(50, 100) = true, want false (checkpoint itself is the fork point)")
	}
}
