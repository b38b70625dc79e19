// Package mempool manages pending transactions waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/internal/utxo"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists     = errors.New("transaction already in mempool")
	ErrConflict          = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull          = errors.New("mempool is full")
	ErrValidation        = errors.New("transaction failed validation")
	ErrFeeTooLow         = errors.New("transaction fee below minimum")
	ErrCoinbaseNotMature = errors.New("coinbase output not mature")
)

// entry wraps a transaction with its fee and admission metadata.
type entry struct {
	tx                *tx.Transaction
	txHash            types.Hash
	fee               uint64
	sizeBytes         uint64
	feeRate           float64 // fee per byte of SigningBytes.
	timeAdded         time.Time
	heightAtAdmission uint64
}

// Entry is a read-only snapshot of a pooled transaction, returned by queries
// that expose more than just the raw transaction.
type Entry struct {
	Tx                *tx.Transaction
	Fee               uint64
	SizeBytes         uint64
	FeeRate           float64
	TimeAdded         time.Time
	HeightAtAdmission uint64
}

func (e *entry) snapshot() *Entry {
	return &Entry{
		Tx:                e.tx,
		Fee:               e.fee,
		SizeBytes:         e.sizeBytes,
		FeeRate:           e.feeRate,
		TimeAdded:         e.timeAdded,
		HeightAtAdmission: e.heightAtAdmission,
	}
}

// Pool holds unconfirmed transactions, bounded by total cached byte size
// rather than transaction count.
type Pool struct {
	mu         sync.RWMutex
	txs        map[types.Hash]*entry         // txHash -> entry
	spends     map[types.OutPoint]types.Hash // outpoint -> txHash (conflict index)
	maxBytes   uint64                        // Total cached transaction bytes allowed.
	totalBytes uint64                        // Running total of entry.sizeBytes.
	minFeeRate uint64                        // Minimum fee rate in base units per byte (0 = no minimum).
	utxos      tx.UTXOProvider
	policy     *Policy

	// Coinbase maturity checking.
	utxoSet          utxo.Set      // For maturity checks (nil = disabled).
	heightFn         func() uint64 // Current chain height.
	coinbaseMaturity uint64        // Required confirmations (0 = disabled).
}

// New creates a new mempool with the given UTXO provider and total byte
// budget. A maxBytes of 0 defaults to config.MaxMempoolBytes.
func New(utxos tx.UTXOProvider, maxBytes uint64) *Pool {
	if maxBytes == 0 {
		maxBytes = uint64(config.MaxMempoolBytes)
	}
	return &Pool{
		txs:      make(map[types.Hash]*entry),
		spends:   make(map[types.OutPoint]types.Hash),
		maxBytes: maxBytes,
		utxos:    utxos,
		policy:   DefaultPolicy(),
	}
}

// SetMinFeeRate sets the minimum fee rate (base units per byte) for transaction acceptance.
func (p *Pool) SetMinFeeRate(rate uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minFeeRate = rate
}

// MinFeeRate returns the current minimum fee rate (base units per byte).
func (p *Pool) MinFeeRate() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minFeeRate
}

// SetCoinbaseMaturity enables coinbase maturity checking.
func (p *Pool) SetCoinbaseMaturity(maturity uint64, heightFn func() uint64, set utxo.Set) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coinbaseMaturity = maturity
	p.heightFn = heightFn
	p.utxoSet = set
}

// MaxBytes returns the pool's configured byte budget.
func (p *Pool) MaxBytes() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxBytes
}

// TotalBytes returns the pool's current cached transaction bytes.
func (p *Pool) TotalBytes() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalBytes
}

// Add validates and adds a transaction to the mempool. Returns the computed
// fee. Rejects duplicates, policy violations, dust outputs, below-minimum
// fee rates, and double-spend conflicts, and evicts lower fee-rate entries
// to make room when the pool is at its byte budget.
func (p *Pool) Add(transaction *tx.Transaction) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := transaction.Hash()

	// Reject duplicates.
	if _, exists := p.txs[txHash]; exists {
		return 0, ErrAlreadyExists
	}

	// Policy: size, input/output counts, script sizes.
	if err := p.policy.Check(transaction); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Reject dust outputs.
	for i, out := range transaction.Outputs {
		if out.Value < config.DustThreshold {
			return 0, fmt.Errorf("%w: output %d value %d below dust threshold %d",
				ErrValidation, i, out.Value, config.DustThreshold)
		}
	}

	// Check for double-spend conflicts.
	for _, in := range transaction.Inputs {
		if in.Prev.IsCoinbaseSentinel() {
			continue
		}
		if conflictHash, exists := p.spends[in.Prev]; exists {
			return 0, fmt.Errorf("%w: input %s already spent by %s", ErrConflict, in.Prev, conflictHash)
		}
	}

	// Coinbase maturity check.
	if p.coinbaseMaturity > 0 && p.utxoSet != nil {
		currentHeight := p.heightFn()
		for _, in := range transaction.Inputs {
			if in.Prev.IsCoinbaseSentinel() {
				continue
			}
			u, uErr := p.utxoSet.Get(in.Prev)
			if uErr == nil && u.Coinbase && currentHeight-u.Height < p.coinbaseMaturity {
				return 0, fmt.Errorf("%w: need %d confirmations, have %d",
					ErrCoinbaseNotMature, p.coinbaseMaturity, currentHeight-u.Height)
			}
		}
	}

	// UTXO-aware validation: structure, spend authorization, and fee.
	fee, err := transaction.ValidateWithUTXOs(p.utxos)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	sizeBytes := uint64(len(transaction.SigningBytes()))
	var feeRate float64
	if sizeBytes > 0 {
		feeRate = float64(fee) / float64(sizeBytes)
	}

	// Enforce minimum fee rate (fee per byte of SigningBytes).
	if p.minFeeRate > 0 {
		requiredFee := p.minFeeRate * sizeBytes
		if fee < requiredFee {
			return 0, fmt.Errorf("%w: got %d, need %d (%d bytes × %d rate)", ErrFeeTooLow, fee, requiredFee, sizeBytes, p.minFeeRate)
		}
	}

	// Make room if admitting this tx would exceed the byte budget: evict
	// entries with a strictly lower fee rate, low end first, until enough
	// bytes are freed. Reject, evicting nothing, if that isn't enough.
	if p.totalBytes+sizeBytes > p.maxBytes {
		p.evictBelowLocked(feeRate, p.totalBytes+sizeBytes-p.maxBytes)
		if p.totalBytes+sizeBytes > p.maxBytes {
			return 0, ErrPoolFull
		}
	}

	var height uint64
	if p.heightFn != nil {
		height = p.heightFn()
	}

	e := &entry{
		tx:                transaction,
		txHash:            txHash,
		fee:               fee,
		sizeBytes:         sizeBytes,
		feeRate:           feeRate,
		timeAdded:         time.Now(),
		heightAtAdmission: height,
	}

	// Add to pool and conflict index.
	p.txs[txHash] = e
	p.totalBytes += sizeBytes
	for _, in := range transaction.Inputs {
		if !in.Prev.IsCoinbaseSentinel() {
			p.spends[in.Prev] = txHash
		}
	}

	return fee, nil
}

// evictBelowLocked walks entries in ascending fee-rate order, selecting any
// entry whose fee rate is strictly below incomingRate, until at least
// bytesNeeded would be freed or no more entries qualify. If the selection
// frees enough it is evicted and the freed byte count returned; otherwise
// nothing is evicted and it returns 0. Must be called with p.mu held.
func (p *Pool) evictBelowLocked(incomingRate float64, bytesNeeded uint64) uint64 {
	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].feeRate < entries[j].feeRate
	})

	var freed uint64
	var victims []*entry
	for _, e := range entries {
		if freed >= bytesNeeded {
			break
		}
		if e.feeRate >= incomingRate {
			break
		}
		freed += e.sizeBytes
		victims = append(victims, e)
	}
	if freed < bytesNeeded {
		return 0
	}
	for _, e := range victims {
		p.removeLocked(e.txHash)
	}
	return freed
}

// Remove removes a transaction from the mempool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	// Clean up spend index.
	for _, in := range e.tx.Inputs {
		if !in.Prev.IsCoinbaseSentinel() {
			delete(p.spends, in.Prev)
		}
	}
	delete(p.txs, txHash)
	p.totalBytes -= e.sizeBytes
}

// RemoveConfirmed removes all transactions that were included in a block.
func (p *Pool) RemoveConfirmed(transactions []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range transactions {
		p.removeLocked(t.Hash())
	}
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get retrieves a transaction from the mempool.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// GetFee returns the fee for a transaction in the mempool (0 if not found).
func (p *Pool) GetFee(txHash types.Hash) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return 0
	}
	return e.fee
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the hashes of all transactions in the mempool.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// Dependencies returns every pooled transaction that spends an output
// created by txHash — i.e. txHash's unconfirmed descendants. Used to find
// what else would need to be evicted or re-validated if txHash were dropped.
func (p *Pool) Dependencies(txHash types.Hash) []*Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var deps []*Entry
	for _, e := range p.txs {
		for _, in := range e.tx.Inputs {
			if in.Prev.TxHash == txHash {
				deps = append(deps, e.snapshot())
				break
			}
		}
	}
	return deps
}

// Expire removes every entry admitted more than maxAge before now, returning
// the number evicted. Intended to be called periodically by a caller that
// owns a ticker; the pool itself runs no background goroutines.
func (p *Pool) Expire(now time.Time, maxAge time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stale []types.Hash
	for h, e := range p.txs {
		if now.Sub(e.timeAdded) > maxAge {
			stale = append(stale, h)
		}
	}
	for _, h := range stale {
		p.removeLocked(h)
	}
	return len(stale)
}

// SelectForBlock returns transactions ordered by fee rate (highest first),
// up to the given limit.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}

	// Sort by fee rate descending.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].feeRate > entries[j].feeRate
	})

	if limit > len(entries) {
		limit = len(entries)
	}

	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}
