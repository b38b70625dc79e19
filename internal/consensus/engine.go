// Package consensus defines consensus engine interfaces and implements
// proof-of-work block validation and retargeting.
package consensus

import "github.com/INT-devs/intcoin-sub001/pkg/block"

// Engine is the interface for consensus implementations.
type Engine interface {
	VerifyHeader(header *block.Header) error
	Prepare(header *block.Header) error
	Seal(blk *block.Block) error
}
