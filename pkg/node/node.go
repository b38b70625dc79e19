// Package node composes the core chain components (storage, consensus,
// chain state, mempool) into a single embeddable unit. It is the surface
// external collaborators — RPC servers, wallets, miners, explorers — call
// against; none of those live in this module.
package node

import (
	"fmt"
	"math"
	"os"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/internal/chain"
	"github.com/INT-devs/intcoin-sub001/internal/consensus"
	klog "github.com/INT-devs/intcoin-sub001/internal/log"
	"github.com/INT-devs/intcoin-sub001/internal/mempool"
	"github.com/INT-devs/intcoin-sub001/internal/miner"
	"github.com/INT-devs/intcoin-sub001/internal/storage"
	"github.com/INT-devs/intcoin-sub001/internal/utxo"
	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized core node: storage, consensus engine, chain
// state, and mempool, wired together and ready to accept blocks and
// transactions.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db     storage.DB
	utxos  *utxo.Store
	engine consensus.Engine
	chain  *chain.Chain
	pool   *mempool.Pool
}

// New opens storage, loads genesis, and wires the chain and mempool. It
// does not start any background goroutines — there are none at this layer;
// block production and networking belong to callers outside this module.
func New(cfg *config.Config) (*Node, error) {
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/intcoind.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	genesis := config.GenesisFor(cfg.Network)
	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Msg("Starting node")

	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.ChainDataDir(), err)
	}

	utxoStore := utxo.NewStore(db)
	logger.Info().Str("path", cfg.ChainDataDir()).Msg("Database opened")

	checkpoints, err := parseCheckpoints(genesis.Protocol.Checkpoints)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("parse checkpoints: %w", err)
	}
	engine := consensus.NewPoW(genesis.Protocol.Consensus.InitialBits, config.RetargetInterval, int64(config.TargetSpacing.Seconds()), consensus.WithCheckpoints(checkpoints))

	ch, err := chain.New(genesis.ChainID, db, utxoStore, engine)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create chain: %w", err)
	}
	ch.SetConsensusRules(genesis.Protocol.Consensus)

	if ch.State().IsGenesis() {
		if err := ch.InitFromGenesis(genesis); err != nil {
			db.Close()
			return nil, fmt.Errorf("init from genesis: %w", err)
		}
		logger.Info().Msg("Chain initialized from genesis")
	} else {
		logger.Info().
			Uint64("height", ch.Height()).
			Str("tip", ch.TipHash().String()).
			Msg("Chain resumed from database")
	}

	adapter := miner.NewUTXOAdapter(utxoStore)
	pool := mempool.New(adapter, uint64(cfg.Mempool.MaxBytes))
	pool.SetMinFeeRate(cfg.Mempool.MinFeeRate)
	pool.SetCoinbaseMaturity(uint64(config.CoinbaseMaturity), ch.Height, utxoStore)
	logger.Info().
		Uint64("min_fee_rate", cfg.Mempool.MinFeeRate).
		Uint64("max_bytes", pool.MaxBytes()).
		Msg("Mempool ready")

	n := &Node{
		cfg:     cfg,
		genesis: genesis,
		logger:  logger,
		db:      db,
		utxos:   utxoStore,
		engine:  engine,
		chain:   ch,
		pool:    pool,
	}

	// Transactions undone by a reorg go back into the mempool if they are
	// still valid against the post-reorg UTXO set.
	ch.SetRevertedTxHandler(func(txs []*tx.Transaction) {
		reinserted := 0
		for _, t := range txs {
			if _, err := pool.Add(t); err == nil {
				reinserted++
			}
		}
		if reinserted > 0 {
			logger.Info().
				Int("reverted", len(txs)).
				Int("reinserted", reinserted).
				Msg("Reverted transactions returned to mempool")
		}
	})

	return n, nil
}

// parseCheckpoints converts the genesis config's height->hex-hash checkpoint
// table into the map[uint32]types.Hash form the consensus engine pins
// blocks against.
func parseCheckpoints(cfg map[uint64]string) (map[uint32]types.Hash, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	out := make(map[uint32]types.Hash, len(cfg))
	for height, hexHash := range cfg {
		if height > math.MaxUint32 {
			return nil, fmt.Errorf("checkpoint height %d exceeds uint32 range", height)
		}
		hash, err := types.HexToHash(hexHash)
		if err != nil {
			return nil, fmt.Errorf("checkpoint at height %d: %w", height, err)
		}
		out[uint32(height)] = hash
	}
	return out, nil
}

// Close releases the underlying storage handle.
func (n *Node) Close() error {
	return n.db.Close()
}

// Genesis returns the genesis configuration this node was initialized with.
func (n *Node) Genesis() *config.Genesis {
	return n.genesis
}

// SubmitTransaction validates and admits a transaction into the mempool,
// returning the fee it pays.
func (n *Node) SubmitTransaction(transaction *tx.Transaction) (uint64, error) {
	return n.pool.Add(transaction)
}

// SubmitBlock validates a block against consensus and chain rules, applies
// it (including any reorg it triggers), and clears its transactions from
// the mempool.
func (n *Node) SubmitBlock(blk *block.Block) error {
	if err := n.chain.ProcessBlock(blk); err != nil {
		return err
	}
	n.pool.RemoveConfirmed(blk.Transactions)
	return nil
}

// GetBlock retrieves a block by hash.
func (n *Node) GetBlock(hash types.Hash) (*block.Block, error) {
	return n.chain.GetBlock(hash)
}

// GetBlockAt retrieves the block at the given height on the canonical chain.
func (n *Node) GetBlockAt(height uint64) (*block.Block, error) {
	return n.chain.GetBlockByHeight(height)
}

// GetTip returns a snapshot of the current chain state.
func (n *Node) GetTip() chain.State {
	return n.chain.State()
}

// GetTransaction locates a confirmed transaction by hash.
func (n *Node) GetTransaction(hash types.Hash) (*tx.Transaction, error) {
	return n.chain.GetTransaction(hash)
}

// GetUTXO retrieves a single unspent output.
func (n *Node) GetUTXO(outpoint types.OutPoint) (*utxo.UTXO, error) {
	return n.utxos.Get(outpoint)
}

// GetUTXOsByAddress retrieves every unspent output paid to an address.
func (n *Node) GetUTXOsByAddress(addr types.Address) ([]*utxo.UTXO, error) {
	return n.utxos.GetByAddress(addr)
}

// MempoolSnapshot returns every transaction currently pending in the
// mempool, in no particular order.
func (n *Node) MempoolSnapshot() []*tx.Transaction {
	hashes := n.pool.Hashes()
	txs := make([]*tx.Transaction, 0, len(hashes))
	for _, h := range hashes {
		if t := n.pool.Get(h); t != nil {
			txs = append(txs, t)
		}
	}
	return txs
}

// BuildBlockTemplate returns an unsealed block extending the current tip,
// built from the highest fee-rate mempool transactions, paying the block
// reward plus fees to coinbaseAddr. The caller (an external miner) is
// responsible for finding a valid nonce and submitting the result via
// SubmitBlock.
func (n *Node) BuildBlockTemplate(coinbaseAddr types.Address) (*block.Block, error) {
	m := miner.New(n.chain, n.engine, n.pool, coinbaseAddr,
		n.genesis.Protocol.Consensus.BlockReward,
		n.genesis.Protocol.Consensus.MaxSupply,
		n.chain.Supply)
	return m.Template()
}
