package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/swapslot/escrowd/params"
	"github.com/swapslot/escrowd/pkg/api"
	"github.com/swapslot/escrowd/pkg/crypto"
	"github.com/swapslot/escrowd/pkg/gossip"
	"github.com/swapslot/escrowd/pkg/ledger"
	"github.com/swapslot/escrowd/pkg/node"
	"github.com/swapslot/escrowd/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Ledger ----
	led, err := ledger.Open(filepath.Join(cfg.Node.DataDir, "ledger"), sugar)
	if err != nil {
		sugar.Fatalw("ledger_open_failed", "err", err)
	}
	defer led.Close()

	// ---- Settlement journal ----
	journal, err := node.OpenJournal(cfg.Node.JournalPath)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "err", err)
	}
	defer journal.Close()

	// ---- Attestation ----
	var attester *crypto.BLSSigner
	if cfg.Attestation.Enabled {
		// Hash the configured seed so any string yields valid key material
		attester = crypto.NewBLSSignerFromSeed(crypto.Keccak256([]byte(cfg.Attestation.Seed)))
		sugar.Infow("attestation_enabled", "pubkey_bytes", len(attester.PubkeyBytes()))
	}

	// ---- Node ----
	nd := node.New(node.Config{
		Ledger:   led,
		Clock:    util.RealClock{},
		Attester: attester,
		Journal:  journal,
		Logger:   sugar,
	})

	// ---- Gossip fanout (optional) ----
	var gnet *gossip.Net
	if cfg.Gossip.Enabled {
		gnet, err = gossip.New(ctx, gossip.Config{
			ListenAddr: cfg.Gossip.ListenAddr,
			Bootstrap:  cfg.Gossip.Bootstrap,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("gossip_init_failed", "err", err)
		}
		defer gnet.Close()
	}

	// ---- API server ----
	apiServer := api.NewServer(nd)

	// Fan settlement events out to WebSocket subscribers and gossip peers
	nd.OnEvent = func(e *node.Event) {
		apiServer.BroadcastEvent(e)
		if gnet != nil {
			if err := gnet.Publish(ctx, e); err != nil {
				sugar.Warnw("gossip_publish_failed", "event", e.ID, "err", err)
			}
		}
	}

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("escrowd_started",
		"data_dir", cfg.Node.DataDir,
		"gossip", cfg.Gossip.Enabled,
		"attestation", cfg.Attestation.Enabled)

	<-ctx.Done()
	sugar.Info("escrowd_shutting_down")
}
