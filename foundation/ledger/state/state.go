// Package state is the core API for the ledger and implements all the
// business rules and processing.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/trong0x/vanledger/foundation/ledger/database"
	"github.com/trong0x/vanledger/foundation/ledger/fraud"
	"github.com/trong0x/vanledger/foundation/ledger/genesis"
	"github.com/trong0x/vanledger/foundation/ledger/mempool"
	"github.com/trong0x/vanledger/foundation/ledger/verify"
)

// EventHandler defines a function that is called when events occur in the
// processing of transactions and blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for mining and mempool reconciliation.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start the ledger state.
type Config struct {
	Genesis        genesis.Genesis
	DBPath         string
	MinerAddress   string
	SelectStrategy string
	EvHandler      EventHandler
}

// State manages the ledger: accounts, the transaction lifecycle, the
// verification pipeline and the mined chain.
type State struct {
	genesis      genesis.Genesis
	minerAddress string
	evHandler    EventHandler

	// mu orders chain appends against mining. Balance mutation is
	// serialized by the database's exclusive write transaction, not here.
	mu          sync.Mutex
	allowMining bool
	db          *database.Database
	mempool     *mempool.Mempool
	verifier    *verify.Verifier

	// The Worker is not set here. The call to worker.Run will assign
	// itself and start everything up and running.
	Worker Worker
}

// New constructs the state, opens the database, validates the persisted
// chain and mines the genesis block when the chain is empty.
func New(cfg Config) (*State, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(cfg.DBPath, cfg.Genesis, ev)
	if err != nil {
		return nil, err
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = "Fee"
	}

	mpool, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		db.Close()
		return nil, err
	}

	detector := fraud.NewDetector(db, cfg.Genesis)

	s := State{
		genesis:      cfg.Genesis,
		minerAddress: cfg.MinerAddress,
		evHandler:    ev,
		allowMining:  true,
		db:           db,
		mempool:      mpool,
		verifier:     verify.New(db, detector, ev),
	}

	// The chain on disk has to check out before anything can be mined on
	// top of it.
	count, err := db.BlockCount()
	if err != nil {
		db.Close()
		return nil, err
	}

	switch {
	case count == 0:
		if err := s.mineGenesisBlock(context.Background()); err != nil {
			db.Close()
			return nil, err
		}

	default:
		if err := db.ValidateChain(); err != nil {
			s.allowMining = false
			if errors.Is(err, database.ErrChainIntegrity) {
				db.Close()
				return nil, fmt.Errorf("startup chain validation: %w", err)
			}
			db.Close()
			return nil, err
		}
	}

	return &s, nil
}

// Shutdown cleanly brings the state down.
func (s *State) Shutdown() error {
	defer s.db.Close()

	// Stop all ledger writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// Genesis returns a copy of the genesis parameters.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// IsMiningAllowed reports whether mining may proceed. Mining is switched
// off permanently once a chain integrity violation has been observed.
func (s *State) IsMiningAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allowMining
}

// disallowMining permanently stops mining. Called when the chain fails
// validation, which is fatal and must be surfaced, not retried.
func (s *State) disallowMining() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowMining = false
}

// signalStartMining asks the worker for a mining run if one is attached.
func (s *State) signalStartMining() {
	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}
}
