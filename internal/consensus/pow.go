package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// PoW errors.
var (
	ErrInsufficientWork    = errors.New("hash does not meet difficulty target")
	ErrBadBits             = errors.New("bits value does not decode to a valid target")
	ErrBadDifficulty       = errors.New("block difficulty does not match expected")
	ErrCheckpointViolation = errors.New("block conflicts with a pinned checkpoint")
)

// PoW implements proof-of-work consensus. Difficulty is carried in each
// header's Bits field (compact target encoding, see pkg/block.TargetFromBits);
// the engine itself holds no per-block mutable state — retargeting is driven
// by chain history passed in at call time.
type PoW struct {
	InitialBits      uint32 // Bits used for the first RetargetInterval blocks.
	RetargetInterval int    // Blocks between difficulty adjustments (0 = never).
	TargetSpacing    int64  // Target seconds between blocks.

	// Threads controls the number of parallel mining goroutines used by Seal.
	// 0 or 1 = single-threaded. Each goroutine searches a strided partition
	// of the nonce space.
	Threads int

	// checkpoints pins known-good block hashes at specific heights. Set via
	// WithCheckpoints; nil means no checkpoints are enforced.
	checkpoints map[uint32]types.Hash
}

// PoWOption configures optional PoW engine behavior at construction time.
type PoWOption func(*PoW)

// WithCheckpoints pins known-good block hashes at specific heights. A block
// whose hash disagrees with the checkpoint at its height is rejected
// outright, and a reorg that would disconnect a block at or below a
// checkpointed height is refused regardless of accumulated work.
func WithCheckpoints(checkpoints map[uint32]types.Hash) PoWOption {
	return func(p *PoW) {
		p.checkpoints = checkpoints
	}
}

// NewPoW creates a new PoW engine.
func NewPoW(initialBits uint32, retargetInterval int, targetSpacing int64, opts ...PoWOption) *PoW {
	p := &PoW{
		InitialBits:      initialBits,
		RetargetInterval: retargetInterval,
		TargetSpacing:    targetSpacing,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// VerifyCheckpoint checks hash against any checkpoint pinned at height. It
// returns ErrCheckpointViolation if a checkpoint is pinned at height and
// hash does not match it; a height with no pinned checkpoint always passes.
func (p *PoW) VerifyCheckpoint(height uint64, hash types.Hash) error {
	if len(p.checkpoints) == 0 || height > math.MaxUint32 {
		return nil
	}
	want, ok := p.checkpoints[uint32(height)]
	if !ok {
		return nil
	}
	if want != hash {
		return fmt.Errorf("%w: height %d has %s, want %s", ErrCheckpointViolation, height, hash, want)
	}
	return nil
}

// CheckpointCrossed reports whether disconnecting blocks above forkHeight up
// to oldHeight (inclusive) would revert a block at a pinned checkpoint
// height. Callers use this to refuse a reorg that would rewrite history at
// or below a checkpoint, independent of accumulated work.
func (p *PoW) CheckpointCrossed(forkHeight, oldHeight uint64) bool {
	for h := range p.checkpoints {
		height := uint64(h)
		if height > forkHeight && height <= oldHeight {
			return true
		}
	}
	return false
}

// ShouldRetarget returns true if difficulty should be recalculated at this height.
func (p *PoW) ShouldRetarget(height uint64) bool {
	return height > 0 && p.RetargetInterval > 0 && height%uint64(p.RetargetInterval) == 0
}

// VerifyHeader checks that the header's hash satisfies its own stated bits.
// This is a redundant check against block.Validate()'s own PoW verification;
// it exists so the consensus engine can be the single place callers rely on
// for "is this header's proof of work valid" regardless of whether
// structural validation already ran.
func (p *PoW) VerifyHeader(header *block.Header) error {
	target := block.TargetFromBits(header.Bits)
	if target.Sign() <= 0 {
		return ErrBadBits
	}
	if !block.CheckProofOfWork(header.Hash(), header.Bits) {
		return ErrInsufficientWork
	}
	return nil
}

// Prepare sets the header's bits to the engine's initial difficulty. Callers
// that need a retargeted value should compute it with ExpectedBits and
// assign header.Bits directly before sealing.
func (p *PoW) Prepare(header *block.Header) error {
	header.Bits = p.InitialBits
	return nil
}

// Seal mines the block by iterating the nonce until the header hash meets
// the bits already set in the header.
func (p *PoW) Seal(blk *block.Block) error {
	return p.SealWithCancel(context.Background(), blk)
}

// SealWithCancel mines the block with cancellation support. When ctx is
// cancelled, mining stops and ctx.Err() is returned. If Threads > 1, mining
// runs in parallel goroutines with strided nonce partitioning.
func (p *PoW) SealWithCancel(ctx context.Context, blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	target := block.TargetFromBits(blk.Header.Bits)
	if target.Sign() <= 0 {
		return ErrBadBits
	}

	threads := p.Threads
	if threads <= 1 {
		return p.sealSingle(ctx, blk, target)
	}
	return p.sealParallel(ctx, blk, threads, target)
}

// signingPrefix returns the header's signing bytes WITHOUT the trailing
// nonce, so each mining goroutine can pre-compute the fixed prefix once and
// only append+hash the 8-byte nonce per iteration.
func signingPrefix(h *block.Header) []byte {
	buf := h.SigningBytes()
	return buf[:len(buf)-8]
}

// sealSingle mines with a single goroutine.
func (p *PoW) sealSingle(ctx context.Context, blk *block.Block, target *big.Int) error {
	prefix := signingPrefix(blk.Header)
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	hashInt := new(big.Int)

	for nonce := uint64(0); ; nonce++ {
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
		hash := crypto.DoubleHash(buf)
		hashInt.SetBytes(hash[:])
		if hashInt.Cmp(target) <= 0 {
			blk.Header.Nonce = nonce
			return nil
		}
		if nonce == ^uint64(0) {
			return fmt.Errorf("nonce space exhausted")
		}
	}
}

// sealParallel mines with multiple goroutines, each searching a strided
// partition of the nonce space (goroutine i starts at nonce=i, step=threads).
func (p *PoW) sealParallel(ctx context.Context, blk *block.Block, threads int, target *big.Int) error {
	prefix := signingPrefix(blk.Header)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint64
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		startNonce := uint64(i)
		stride := uint64(threads)
		go func() {
			defer wg.Done()
			buf := make([]byte, len(prefix)+8)
			copy(buf, prefix)
			hashInt := new(big.Int)

			for nonce := startNonce; ; nonce += stride {
				if (nonce/stride)&0xFFFF == 0 && nonce > 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
				hash := crypto.DoubleHash(buf)
				hashInt.SetBytes(hash[:])
				if hashInt.Cmp(target) <= 0 {
					select {
					case found <- result{nonce: nonce}:
					default:
					}
					cancel()
					return
				}

				if nonce > ^uint64(0)-stride {
					select {
					case found <- result{err: fmt.Errorf("nonce space exhausted")}:
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return fmt.Errorf("nonce space exhausted")
		}
		if r.err != nil {
			return r.err
		}
		blk.Header.Nonce = r.nonce
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExpectedBits computes the correct bits value for a block at the given
// height. prevBits is the bits value from the block at height-1 (ignored
// for height <= 1). getTimestamp retrieves a block's timestamp by height,
// used to measure the actual span of the last retarget interval.
func (p *PoW) ExpectedBits(height uint64, prevBits uint32, getTimestamp func(uint64) (uint64, error)) uint32 {
	if height <= 1 || prevBits == 0 {
		return p.InitialBits
	}
	if !p.ShouldRetarget(height) {
		return prevBits
	}

	interval := uint64(p.RetargetInterval)
	startTS, err := getTimestamp(height - interval)
	if err != nil {
		return prevBits
	}
	endTS, err := getTimestamp(height - 1)
	if err != nil {
		return prevBits
	}

	actual := int64(endTS - startTS)
	expected := int64(p.RetargetInterval) * p.TargetSpacing
	return CalcNextBits(prevBits, actual, expected)
}

// VerifyDifficulty checks that a header's stated bits match the expected
// value computed from chain history.
func (p *PoW) VerifyDifficulty(header *block.Header, height uint64, prevBits uint32, getTimestamp func(uint64) (uint64, error)) error {
	expected := p.ExpectedBits(height, prevBits, getTimestamp)
	if header.Bits != expected {
		return fmt.Errorf("%w: height %d has bits %#x, want %#x",
			ErrBadDifficulty, height, header.Bits, expected)
	}
	return nil
}

// CalcNextBits computes the retargeted bits after a retarget period.
// actualTimeSpan is the elapsed seconds for the last interval; expectedTimeSpan
// is interval * targetSpacing. The actual span is clamped to
// [expected/4, expected*4] to limit adjustment per period, and the resulting
// target is clamped to MaxTarget so difficulty never goes below the chain's floor.
func CalcNextBits(currentBits uint32, actualTimeSpan, expectedTimeSpan int64) uint32 {
	if actualTimeSpan <= 0 {
		actualTimeSpan = 1
	}
	if expectedTimeSpan <= 0 {
		expectedTimeSpan = 1
	}

	minSpan := expectedTimeSpan / 4
	maxSpan := expectedTimeSpan * 4
	if minSpan == 0 {
		minSpan = 1
	}
	if actualTimeSpan < minSpan {
		actualTimeSpan = minSpan
	}
	if actualTimeSpan > maxSpan {
		actualTimeSpan = maxSpan
	}

	// newTarget = currentTarget * actual / expected: a longer-than-expected
	// span means blocks came in slow, so the target (difficulty inverse)
	// widens; a shorter span tightens it.
	current := block.TargetFromBits(currentBits)
	newTarget := new(big.Int).Mul(current, big.NewInt(actualTimeSpan))
	newTarget.Div(newTarget, big.NewInt(expectedTimeSpan))

	if newTarget.Cmp(block.MaxTarget()) > 0 {
		newTarget = block.MaxTarget()
	}
	if newTarget.Sign() <= 0 {
		newTarget = big.NewInt(1)
	}

	return block.BitsFromTarget(newTarget)
}
