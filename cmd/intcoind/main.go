// Intcoin full node daemon.
//
// Usage:
//
//	intcoind [options]   Run node
//	intcoind --help      Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/INT-devs/intcoin-sub001/config"
	klog "github.com/INT-devs/intcoin-sub001/internal/log"
	"github.com/INT-devs/intcoin-sub001/pkg/node"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Build the node (opens storage, loads genesis, wires chain and
	// mempool; initializes the logger internally) ───────────────────────
	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting node: %v\n", err)
		os.Exit(1)
	}
	defer n.Close()

	logger := klog.Node
	tip := n.GetTip()
	logger.Info().
		Uint64("height", tip.Height).
		Str("tip", tip.TipHash.String()).
		Msg("Node started successfully")

	// ── 3. Wait for shutdown ─────────────────────────────────────────────
	// This daemon runs the chain core alone: no P2P gossip, RPC server, or
	// in-process miner. Those are external collaborators that embed
	// pkg/node.Node and drive it through SubmitBlock/SubmitTransaction/
	// BuildBlockTemplate.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	logger.Info().Msg("Goodbye!")
}
