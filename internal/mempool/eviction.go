package mempool

import "sort"

// Evict removes the lowest fee-rate transactions until the pool's total
// cached bytes is at or below its configured budget. Intended for periodic
// maintenance; Add already evicts inline when admitting a tx would exceed
// the budget.
func (p *Pool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalBytes <= p.maxBytes {
		return 0
	}

	// Collect entries and sort by fee rate ascending (lowest first).
	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].feeRate < entries[j].feeRate
	})

	evicted := 0
	for _, e := range entries {
		if p.totalBytes <= p.maxBytes {
			break
		}
		p.removeLocked(e.txHash)
		evicted++
	}
	return evicted
}
