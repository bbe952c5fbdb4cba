// Package crowdmind assembles the crowdfunding agent: multi-chain USDC
// clients, the x402 payment protocol, the decision engine, the
// execution coordinator and the HTTP API.
package crowdmind

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/decision"
	"github.com/crowdmind/crowdmind/executor"
	"github.com/crowdmind/crowdmind/logger"
	"github.com/crowdmind/crowdmind/metrics"
	"github.com/crowdmind/crowdmind/protocol"
	"github.com/crowdmind/crowdmind/server"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

// Agent is the fully wired CrowdMind instance.
type Agent struct {
	cfg      *config.Config
	store    store.Store
	clients  *clients.Registry
	proto    *protocol.Handler
	maker    *decision.Maker
	executor *executor.Executor
	server   *server.Server
	log      logger.Logger
	rec      metrics.Recorder
}

// New builds an agent from configuration. Options override the default
// collaborators; anything not overridden is constructed from cfg.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	a := &Agent{
		cfg:   cfg,
		maker: decision.NewMaker(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logger.NewZapLogger(cfg.Log.Level)
	}
	if a.rec == nil {
		if cfg.Metrics.Enabled {
			a.rec = metrics.NewPrometheusRecorder()
		} else {
			a.rec = metrics.NoopRecorder{}
		}
	}

	if a.store == nil {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.store = st
	}

	if a.clients == nil {
		registry, err := buildRegistry(cfg)
		if err != nil {
			a.store.Close()
			return nil, err
		}
		a.clients = registry
	}

	a.proto = protocol.NewHandler(cfg.X402, a.clients, a.log, a.rec)
	a.executor = executor.New(a.store, a.clients, a.maker, cfg.Agent, a.log, a.rec)
	a.server = server.New(*cfg, a.store, a.clients, a.proto, a.executor, a.maker, a.log)

	a.log.Info("agent initialized", map[string]any{
		"chains": a.clients.Chains(),
		"demo":   cfg.Demo,
	})
	return a, nil
}

// buildRegistry constructs chain clients from configuration. Demo mode
// substitutes deterministic simulation clients for both chains.
func buildRegistry(cfg *config.Config) (*clients.Registry, error) {
	registry := clients.NewRegistry()

	if cfg.Demo {
		registry.Add(types.ChainSolana, clients.NewMockClient(types.ChainSolana))
		registry.Add(types.ChainBase, clients.NewMockClient(types.ChainBase))
		return registry, nil
	}

	if sol := cfg.Chains.Solana; sol.PrivateKey != "" {
		client, err := clients.NewSolanaClient(clients.SolanaConfig{
			RPCURL:     sol.RPCURL,
			PrivateKey: sol.PrivateKey,
			USDCMint:   sol.USDCMint,
		})
		if err != nil {
			return nil, fmt.Errorf("solana client: %w", err)
		}
		registry.Add(types.ChainSolana, client)
	}

	if base := cfg.Chains.Base; base.PrivateKey != "" {
		client, err := clients.NewBaseClient(context.Background(), clients.BaseConfig{
			RPCURL:      base.RPCURL,
			PrivateKey:  base.PrivateKey,
			USDCAddress: base.USDCAddress,
		})
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("base client: %w", err)
		}
		registry.Add(types.ChainBase, client)
	}

	if len(registry.Chains()) == 0 {
		return nil, types.NewAgentError(types.ErrConfigError, "no chain clients configured; set chain private keys or enable demo mode")
	}
	return registry, nil
}

// Run serves HTTP and runs the monitor loop until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.executor.Monitor(ctx)
		return nil
	})
	group.Go(func() error {
		return a.server.Run(ctx)
	})
	return group.Wait()
}

// Store exposes the persistence layer, mainly for seeding and tests.
func (a *Agent) Store() store.Store { return a.store }

// Executor exposes the execution coordinator.
func (a *Agent) Executor() *executor.Executor { return a.executor }

// Protocol exposes the x402 handler.
func (a *Agent) Protocol() *protocol.Handler { return a.proto }

// Close releases the store and all chain clients.
func (a *Agent) Close() error {
	a.clients.Close()
	return a.store.Close()
}
