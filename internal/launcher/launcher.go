// Package launcher wires the chain-controller's CLI flags, genesis
// handling, and ambient stack (logging, metrics) into a running Controller,
// the way cmd/opera/launcher wires a full Opera node's CLI flags into its
// services. It carries no P2P, RPC, or transaction-pool setup: the
// controller's block and transaction objects cross its boundary through
// Controller.PushBlock/PushTransaction, fed by whatever external transport
// the deployment chooses.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/urfave/cli.v1"

	"github.com/asset-chain/chain-controller/authority"
	"github.com/asset-chain/chain-controller/blocklog"
	"github.com/asset-chain/chain-controller/controller"
	"github.com/asset-chain/chain-controller/flags"
	"github.com/asset-chain/chain-controller/forkdb"
	"github.com/asset-chain/chain-controller/interp"
	"github.com/asset-chain/chain-controller/internal/metrics"
	"github.com/asset-chain/chain-controller/internal/xlog"
	"github.com/asset-chain/chain-controller/rules"
	"github.com/asset-chain/chain-controller/store"
	"github.com/asset-chain/chain-controller/txapply"
)

var (
	// Git SHA1 commit hash of the release (set via linker flags).
	gitCommit = ""
	gitDate   = ""
)

var log = xlog.New("launcher")

// Launch builds the cli.App, wires every flag group onto it, and runs args
// against it. It is the chain-controller equivalent of the Opera node's
// Launch stub, fully implemented rather than left returning "not
// implemented yet".
func Launch(args []string) error {
	app := flags.NewApp("chaind", gitCommit, "the chain-controller command line interface")
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.NetworkFlags()...)
	app.Flags = append(app.Flags, flags.NodeFlags()...)
	app.Flags = append(app.Flags, flags.ControllerFlags()...)
	app.Flags = append(app.Flags, flags.MetricsFlags()...)
	app.Action = run

	return app.Run(args)
}

func run(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}

	if err := xlog.Configure(cfg.LogVerbosity, cfg.LogFormat, cfg.LogColor); err != nil {
		return err
	}
	if err := xlog.EnableSentry(cfg.SentryDSN); err != nil {
		return err
	}

	c, collectors, err := buildController(cfg)
	if err != nil {
		return fmt.Errorf("launcher: %w", err)
	}

	if cfg.Replay {
		log.Info("replaying block log from genesis")
		if err := c.Replay(context.Background()); err != nil {
			return fmt.Errorf("launcher: replay: %w", err)
		}
	}

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		metricsSrv = serveMetrics(cfg, collectors)
		defer metricsSrv.Close()
	}

	log.WithField("head", c.DynamicGlobalProperties().HeadBlockHeight).Info("chain-controller ready")
	waitForShutdown()
	log.Info("shutting down")
	return nil
}

// buildController assembles a Controller from cfg: the genesis (fakenet or
// loaded from --genesis), the state store (mem or bolt backend), the block
// log, and a metrics.Collectors set registered under cfg.MetricsNamespace.
// The controller does not update that set itself.
func buildController(cfg Config) (*controller.Controller, *metrics.Collectors, error) {
	genesis, keys, err := loadGenesisOrFake(cfg)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	blog, err := blocklog.Open(afero.NewOsFs(), cfg.BlockLogDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open block log: %w", err)
	}

	if cfg.BlockInterval > 0 {
		genesis.Config.Blocks.IntervalMS = uint32(cfg.BlockInterval / time.Millisecond)
	}

	// A production deployment injects a real sandboxed interpreter here;
	// the interpreter is an external collaborator this module only
	// consumes through interp.Interpreter. interp.Fake stands in for
	// --fakenet and replay-only invocations that never execute real
	// contract actions.
	applier := txapply.New(interp.NewFake())

	c := controller.New(genesis, st, forkdb.New(), blog, applier, keys)
	return c, metrics.New(cfg.MetricsNamespace), nil
}

func loadGenesisOrFake(cfg Config) (rules.Genesis, authority.KeyResolver, error) {
	if cfg.FakeNet {
		return rules.FakeGenesis(cfg.FakeNetProducers), authority.StaticResolver{}, nil
	}
	if cfg.GenesisPath == "" {
		return rules.Genesis{}, nil, errors.New("launcher: one of --genesis or --fakenet is required")
	}
	genesis, resolver, err := LoadGenesis(cfg.GenesisPath)
	if err != nil {
		return rules.Genesis{}, nil, err
	}
	return genesis, resolver, nil
}

func openStore(cfg Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "bolt":
		return store.OpenBoltStore(filepath.Join(cfg.DataDir, "state.bolt"))
	case "mem":
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("launcher: unknown store backend %q", cfg.StoreBackend)
	}
}

func serveMetrics(cfg Config, collectors *metrics.Collectors) *http.Server {
	addr := fmt.Sprintf("%s:%d", cfg.MetricsAddr, cfg.MetricsPort)
	srv := &http.Server{Addr: addr, Handler: collectors.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithField("error", err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
