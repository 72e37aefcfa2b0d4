package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"

	"github.com/trong0x/vanledger/foundation/events"
	"github.com/trong0x/vanledger/foundation/ledger/genesis"
	"github.com/trong0x/vanledger/foundation/ledger/state"
	"github.com/trong0x/vanledger/foundation/ledger/worker"
	"github.com/trong0x/vanledger/foundation/logger"
)

// build is the git version of this program. It is set using build flags
// in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LEDGER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Ledger struct {
			DBPath         string `conf:"default:zledger/ledger.db"`
			GenesisPath    string `conf:"default:zledger/genesis.json"`
			MinerAddress   string `conf:"default:system"`
			SelectStrategy string `conf:"default:Fee"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Ledger Support

	// The ledger packages accept a function of this signature to allow
	// the application to log. The raw messages are also sent to any
	// registered event consumer for audit purposes.
	evts := events.New()
	defer evts.Shutdown()

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		evts.Send(s)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
	}

	gen, err := genesis.Load(cfg.Ledger.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	st, err := state.New(state.Config{
		Genesis:        gen,
		DBPath:         cfg.Ledger.DBPath,
		MinerAddress:   cfg.Ledger.MinerAddress,
		SelectStrategy: cfg.Ledger.SelectStrategy,
		EvHandler:      ev,
	})
	if err != nil {
		return fmt.Errorf("starting ledger state: %w", err)
	}
	defer st.Shutdown()

	// Start the background mining and reconciliation operations.
	worker.Run(st, ev)

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown

	log.Infow("shutdown", "status", "shutdown started", "signal", sig)
	defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

	return nil
}
