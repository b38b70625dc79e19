package tx

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// sigCheck is one signature to verify: hash is the message that was signed,
// Signature/PubKey are the input's claimed signature and public key. label
// identifies the check in error messages.
type sigCheck struct {
	Hash      types.Hash
	Signature []byte
	PubKey    []byte
	label     string
}

// VerifyBatch verifies many independent signature checks in parallel,
// partitioning the batch across runtime.NumCPU() workers the same way
// pow.go's sealParallel strides the nonce space across mining goroutines.
// Returns an error if any check fails; which check is reported first is not
// deterministic when more than one worker runs, since failures race.
func VerifyBatch(checks []sigCheck) error {
	if len(checks) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(checks) {
		workers = len(checks)
	}
	if workers <= 1 {
		return verifyBatchStrided(checks, 0, 1)
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
		mu     sync.Mutex
		first  error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < len(checks); i += workers {
				if failed.Load() {
					return
				}
				c := checks[i]
				if !crypto.VerifySignature(c.Hash[:], c.Signature, c.PubKey) {
					if failed.CompareAndSwap(false, true) {
						mu.Lock()
						first = fmt.Errorf("%s: %w", c.label, ErrInvalidSig)
						mu.Unlock()
					}
					return
				}
			}
		}(w)
	}
	wg.Wait()
	return first
}

// verifyBatchStrided runs checks sequentially starting at start, stepping by
// stride. Used when the batch is too small to be worth spawning goroutines.
func verifyBatchStrided(checks []sigCheck, start, stride int) error {
	for i := start; i < len(checks); i += stride {
		c := checks[i]
		if !crypto.VerifySignature(c.Hash[:], c.Signature, c.PubKey) {
			return fmt.Errorf("%s: %w", c.label, ErrInvalidSig)
		}
	}
	return nil
}

// VerifyTransactionsBatch verifies every non-coinbase input signature
// across all of the given transactions in parallel. Intended as a fast
// block-wide pre-pass ahead of the slower, fully sequential per-transaction
// validation that also checks UTXO existence and fee sanity.
func VerifyTransactionsBatch(txs []*Transaction) error {
	var checks []sigCheck
	for ti, t := range txs {
		hash := t.Hash()
		for i, in := range t.Inputs {
			if in.Prev.IsCoinbaseSentinel() {
				continue
			}
			checks = append(checks, sigCheck{
				Hash:      hash,
				Signature: in.Signature,
				PubKey:    in.PubKey,
				label:     fmt.Sprintf("tx %d input %d", ti, i),
			})
		}
	}
	return VerifyBatch(checks)
}
