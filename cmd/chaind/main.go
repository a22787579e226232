// Command chaind wires the chain facade to a config file and a network
// selection, then idles until an interrupt signal, the way the
// teacher's bitcoin.go/server.go pair runs the full node.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dario-ramos/bitprim-blockchain/chain"
	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/config"
	"github.com/dario-ramos/bitprim-blockchain/logging"
	"github.com/dario-ramos/bitprim-blockchain/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to engine.yml (optional, searched for if omitted)")
	flag.StringVar(&cfgPath, "c", "", "shorthand for -config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.InitRotator(filepath.Join(cfg.Engine.LogDir, "chaind.log")); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logging.SetLevels(cfg.Engine.LogLevel)

	params, err := consensusParamsFor(cfg.Engine.Network)
	if err != nil {
		return err
	}

	checkpoints, err := parseCheckpoints(cfg)
	if err != nil {
		return fmt.Errorf("parse checkpoints: %w", err)
	}

	logging.ChainLog.Infof("opening chain: network=%s datadir=%s", cfg.Engine.Network, cfg.Engine.DataDir)
	c, err := chain.Open(cfg, params, checkpoints)
	if err != nil {
		return fmt.Errorf("open chain: %w", err)
	}
	defer func() {
		logging.ChainLog.Info("closing chain")
		if err := c.Close(); err != nil {
			logging.ChainLog.Errorf("close chain: %v", err)
		}
	}()

	height, err := c.FetchLastHeight(context.Background())
	if err != nil {
		logging.ChainLog.Warnf("fetch last height: %v", err)
	} else {
		logging.ChainLog.Infof("chain open at height %d", height)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logging.ChainLog.Info("interrupt received, shutting down")
	return nil
}

// consensusParamsFor maps a configured network name to its parameter
// set; regtest and simnet reuse testnet's lighter activation thresholds
// since neither carries distinct consensus constants here.
func consensusParamsFor(network string) (*validator.ConsensusParams, error) {
	switch network {
	case "mainnet":
		return validator.MainNetParams(), nil
	case "testnet", "testnet3", "regtest", "simnet":
		return validator.TestNetParams(), nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}

// parseCheckpoints turns "height:hash" entries from the config into the
// map chain.Open expects, or nil if checkpoints are disabled.
func parseCheckpoints(cfg *config.Config) (map[int32]chainhash.Hash, error) {
	if cfg.Engine.DisableCheckpoints || len(cfg.Engine.AddCheckpoints) == 0 {
		return nil, nil
	}
	out := make(map[int32]chainhash.Hash, len(cfg.Engine.AddCheckpoints))
	for _, entry := range cfg.Engine.AddCheckpoints {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("checkpoint %q: want height:hash", entry)
		}
		height, err := strconv.ParseInt(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %q: bad height: %w", entry, err)
		}
		hash, err := chainhash.NewHashFromStr(parts[1])
		if err != nil {
			return nil, fmt.Errorf("checkpoint %q: bad hash: %w", entry, err)
		}
		out[int32(height)] = *hash
	}
	return out, nil
}
