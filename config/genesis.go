package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis or compiled in).
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants. 1 coin = 10^12 base units; all on-chain values are
// base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// Consensus-critical constants. Every node must agree on these exactly;
// changing any of them is a hard fork.
const (
	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must accumulate before it is spendable.
	CoinbaseMaturity uint32 = 100

	// DustThreshold is the smallest output value (in base units) the
	// mempool will admit; block validation does not apply it.
	DustThreshold uint64 = 1_000

	// MaxMoney is the maximum representable supply in base units
	// (21,000,000 coins at 10^12 base units each: 21e14).
	MaxMoney uint64 = 21 * 100_000 * Coin

	// MaxTxSize bounds a single transaction's signing-bytes size.
	MaxTxSize = 100 * 1024 // 100 KiB

	// MaxMempoolBytes bounds the mempool's total cached transaction bytes.
	MaxMempoolBytes = 300 * 1024 * 1024 // 300 MiB

	// MinRelayFeeRate is the minimum fee rate (base units per byte of
	// SigningBytes) the mempool will admit.
	MinRelayFeeRate uint64 = 1

	// MaxReorgDepth bounds how many blocks a reorg may disconnect before
	// it is rejected as implausible.
	MaxReorgDepth = 100

	// RetargetInterval is the number of blocks between difficulty
	// adjustments.
	RetargetInterval = 2016

	// TargetSpacing is the target time between blocks.
	TargetSpacing = 120 * time.Second

	// MedianTimeWindow is the number of preceding blocks whose timestamps
	// make up a median-time-past window. Nothing in this module computes a
	// median-time-past: a block's timestamp is checked only against its
	// parent's, and transaction lock times are not enforced.
	MedianTimeWindow = 11

	// MaxTimestampDrift bounds how far into the future a block's
	// timestamp may sit relative to a validating node's clock.
	MaxTimestampDrift = 2 * time.Hour

	// HalvingInterval is the number of blocks between coinbase reward
	// halvings.
	HalvingInterval uint64 = 210_000

	// MaxMempoolAge is how long an unconfirmed transaction may sit in the
	// mempool before it is swept out as expired.
	MaxMempoolAge = 72 * time.Hour
)

// Block and transaction shape limits (consensus-critical, but not named
// numerically by the distilled specification — chosen so the whole family
// of size limits is mutually consistent: a full MaxBlockTxs-transaction
// block of MaxTxSize transactions would exceed MaxBlockSize, which is
// intentional headroom rather than a guarantee every slot can be maxed out).
const (
	MaxBlockSize  = 4_000_000 // 4 MB max block size (header + all tx signing bytes)
	MaxBlockTxs   = 10_000    // Max transactions per block (including coinbase)
	MaxTxInputs   = 2_500     // Max inputs per transaction
	MaxTxOutputs  = 2_500     // Max outputs per transaction
	MaxScriptData = 65_536    // 64 KB max script_pubkey size per output
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"`

	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Alloc maps bech32m addresses to an initial balance in base units.
	Alloc map[string]uint64 `json:"alloc"`

	Protocol ProtocolConfig `json:"protocol"`
}

// ProtocolConfig holds consensus-critical rules. All nodes MUST agree on
// these values.
type ProtocolConfig struct {
	Consensus ConsensusRules `json:"consensus"`

	// Checkpoints pins known-good block hashes at specific heights; a
	// reorg that would rewrite history at or below a checkpointed height
	// is rejected outright.
	Checkpoints map[uint64]string `json:"checkpoints,omitempty"`
}

// ConsensusRules defines how blocks are produced and validated. PoW is the
// only consensus mechanism this node implements; it treats proof-of-work as
// an oracle rather than a pluggable policy.
type ConsensusRules struct {
	// InitialBits is the compact target encoding new blocks must satisfy
	// until the first retarget.
	InitialBits uint32 `json:"initial_bits"`

	// BlockReward is the coinbase subsidy at height 0, before halving.
	BlockReward uint64 `json:"block_reward"`

	// MaxSupply caps total issuance; 0 means unlimited (bounded only by
	// MaxMoney).
	MaxSupply uint64 `json:"max_supply"`
}

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "intcoin-mainnet-1",
		ChainName: "intcoin",
		Symbol:    "INT",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "intcoin genesis",
		Alloc:     map[string]uint64{},
		Protocol: ProtocolConfig{
			Consensus: ConsensusRules{
				InitialBits: 0x1f00ffff, // easiest permitted target
				BlockReward: 50 * Coin,
				MaxSupply:   MaxMoney,
			},
			Checkpoints: map[uint64]string{},
		},
	}
}

// =============================================================================
// Testnet Identity
//
// The testnet allocation recipient is a fixed placeholder address; it is not
// derived from any key or mnemonic.
// =============================================================================

const (
	// TestnetAddress is the well-known testnet allocation recipient,
	// given as raw hex (ParseAddress accepts either bech32m or raw hex)
	// so genesis loading never depends on a hand-computed checksum.
	TestnetAddress = "00000000000000000000000000000000000000e2"
)

// TestnetGenesis returns the testnet genesis configuration: a much easier
// initial target so a single machine can produce blocks quickly.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "intcoin-testnet-1"
	g.ChainName = "intcoin testnet"
	g.ExtraData = "intcoin testnet genesis"
	g.Protocol.Consensus.InitialBits = 0x1f7fffff
	g.Alloc = map[string]uint64{
		TestnetAddress: 200_000 * Coin,
	}
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.Protocol.Consensus.InitialBits == 0 {
		return fmt.Errorf("consensus requires initial_bits")
	}
	if g.Protocol.Consensus.BlockReward == 0 {
		return fmt.Errorf("block_reward must be positive")
	}

	var totalAlloc uint64
	for addrStr, v := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		if totalAlloc > MaxMoney-v {
			return fmt.Errorf("genesis allocations overflow max money")
		}
		totalAlloc += v
	}
	if g.Protocol.Consensus.MaxSupply > 0 && totalAlloc > g.Protocol.Consensus.MaxSupply {
		return fmt.Errorf("genesis allocations (%d) exceed max_supply (%d)",
			totalAlloc, g.Protocol.Consensus.MaxSupply)
	}

	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to identify the chain and detect genesis mismatches.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}

// BlockSubsidy returns the coinbase reward at the given height, applying
// the halving schedule: subsidy(h) = BlockReward >> (h / HalvingInterval).
func (g *Genesis) BlockSubsidy(height uint64) uint64 {
	halvings := height / HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return g.Protocol.Consensus.BlockReward >> halvings
}
