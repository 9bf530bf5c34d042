package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/govledger/treasury/genesis"
	"github.com/govledger/treasury/governance"
	"github.com/govledger/treasury/internal/config"
	"github.com/govledger/treasury/storage"
	"github.com/govledger/treasury/token"
	"github.com/govledger/treasury/vault"
)

const shutdownTimeout = 5 * time.Second

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "Start the ledger and serve JSON-RPC",
	Action: run,
}

// node bundles the running components
type node struct {
	cfg   *config.Config
	store *storage.Store
	vault *vault.StateVault
	gc    *governance.GovernanceContract
	gate  governance.TokenGate

	client *ethclient.Client // erc20 模式的节点连接
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	n, err := openNode(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer n.close()

	sigctx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.RPC.HTTPHost, strconv.Itoa(cfg.RPC.HTTPPort)),
		Handler:           n.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(sigctx)
	g.Go(func() error {
		log.Info("HTTP server started", "endpoint", server.Addr, "namespace", governance.Namespace)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if interval := cfg.Node.CheckpointInterval; interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := n.checkpoint(gctx); err != nil {
						log.Error("Periodic checkpoint failed", "err", err)
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	return g.Wait()
}

// openNode opens the store and restores the ledger, or creates it from the
// genesis configuration when the store is empty.
func openNode(ctx context.Context, cfg *config.Config) (*node, error) {
	boot, err := cfg.Bootstrap()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Storage())
	if err != nil {
		return nil, err
	}
	n := &node{cfg: cfg, store: store}
	fail := func(err error) (*node, error) {
		if n.client != nil {
			n.client.Close()
		}
		store.Close()
		return nil, err
	}

	setter, err := n.openTokenGate(&cfg.Token)
	if err != nil {
		return fail(err)
	}

	n.vault, err = vault.NewMemory()
	if err != nil {
		return fail(err)
	}

	snap, err := store.Load()
	fresh := errors.Is(err, storage.ErrEmpty)
	switch {
	case fresh:
		log.Info("Creating new ledger", "admin", boot.Admin)
		snap = governance.Genesis(boot.Admin)
	case err != nil:
		return fail(fmt.Errorf("failed to load ledger: %w", err))
	default:
		for addr, amount := range snap.Balances {
			n.vault.Mint(addr, amount)
		}
	}

	roles, proposals, donations, err := governance.Restore(snap)
	if err != nil {
		return fail(fmt.Errorf("failed to restore ledger: %w", err))
	}
	n.gc = governance.NewGovernanceContract(genesis.EscrowAddress(snap.Admins[0]), roles, proposals, donations, n.gate, n.vault)
	if err := n.gc.Notifier().Restore(snap.Events); err != nil {
		return fail(fmt.Errorf("failed to restore events: %w", err))
	}
	n.gc.SetPersister(store)

	if fresh {
		boot.Apply(n.vault, setter)
		if err := boot.Seed(ctx, n.gc); err != nil {
			return fail(err)
		}
		if err := n.checkpoint(ctx); err != nil {
			return fail(err)
		}
	} else {
		boot.ApplyTokens(setter)
	}
	log.Info("Ledger ready", "escrow", n.gc.EscrowAddress(), "proposals", n.gc.ProposalCount(), "donations", n.gc.DonationCount())
	return n, nil
}

// openTokenGate builds the configured gate. The returned setter is nil
// unless the gate accepts genesis balances.
func (n *node) openTokenGate(cfg *config.TokenConfig) (genesis.BalanceSetter, error) {
	switch cfg.Mode {
	case config.TokenModeERC20:
		client, err := ethclient.Dial(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Endpoint, err)
		}
		gate, err := token.NewERC20Gate(client, cfg.Contract)
		if err != nil {
			client.Close()
			return nil, err
		}
		n.gate, n.client = gate, client
		log.Info("Using ERC-20 token gate", "endpoint", cfg.Endpoint, "contract", cfg.Contract)
		return nil, nil
	default:
		gate := token.NewMemoryGateWithDecimals(cfg.Decimals)
		n.gate = gate
		return gate, nil
	}
}

// handler serves HTTP and WebSocket JSON-RPC on the same endpoint
func (n *node) handler() http.Handler {
	srv := rpc.NewServer()
	for _, api := range governance.APIs(n.gc) {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			// Only fails on a service without exported methods
			panic(err)
		}
	}
	ws := srv.WebsocketHandler(n.cfg.RPC.CorsOrigins)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocket(r) {
			ws.ServeHTTP(w, r)
			return
		}
		srv.ServeHTTP(w, r)
	})
	h = newCorsHandler(h, n.cfg.RPC.CorsOrigins)
	if n.cfg.RPC.RateLimit > 0 {
		h = newRateLimitHandler(h, rate.NewLimiter(rate.Limit(n.cfg.RPC.RateLimit), n.cfg.RPC.RateBurst))
	}
	return h
}

// checkpoint writes the full ledger, the vault balances and the event log
func (n *node) checkpoint(ctx context.Context) error {
	return n.gc.Checkpoint(ctx, n.store.Checkpoint)
}

func (n *node) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := n.checkpoint(ctx); err != nil {
		log.Error("Final checkpoint failed", "err", err)
	}
	n.gc.Notifier().Close()
	if n.client != nil {
		n.client.Close()
	}
	if err := n.store.Close(); err != nil {
		log.Error("Failed to close database", "err", err)
	}
}

func newCorsHandler(srv http.Handler, allowedOrigins []string) http.Handler {
	// disable CORS support if user has not specified a custom CORS configuration
	if len(allowedOrigins) == 0 {
		return srv
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
	return c.Handler(srv)
}

func newRateLimitHandler(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isWebsocket checks the header of an http request for a websocket upgrade request.
func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
