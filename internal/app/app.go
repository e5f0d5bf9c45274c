package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/api"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/config"
	machinecrypto "github.com/piezasparawebsite/blogchain-js-blockchain/internal/crypto"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/ledger"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/logging"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/service"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage/accountfile"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage/chainfile"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage/postgres"
)

type Application struct {
	Server  *http.Server
	Service *service.BlogService
	Ledger  *ledger.Store

	closeOnce sync.Once
	closers   []func()
}

// Backends is what OpenBackends hands back. With postgres both fields point
// at the same pool, so Close must run once.
type Backends struct {
	Chain    storage.ChainStore
	Accounts storage.AccountStore
	Source   string
	close    func()
}

func (b *Backends) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenBackends opens the chain and account stores selected by
// storage.backend.
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.Storage.PostgresDSN, cfg.Storage.MaxConns, cfg.Storage.MinConns, cfg.Difficulty())
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return &Backends{Chain: store, Accounts: store, Source: "postgres", close: store.Close}, nil
	default:
		for _, p := range []string{cfg.Storage.ChainPath, cfg.Storage.AccountsPath} {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		chain, err := chainfile.Open(cfg.Storage.ChainPath, cfg.Difficulty())
		if err != nil {
			return nil, fmt.Errorf("open chain file: %w", err)
		}
		accounts, err := accountfile.Open(cfg.Storage.AccountsPath)
		if err != nil {
			chain.Close()
			return nil, fmt.Errorf("open account file: %w", err)
		}
		return &Backends{
			Chain:    chain,
			Accounts: accounts,
			Source:   chain.Path(),
			close: func() {
				accounts.Close()
				chain.Close()
			},
		}, nil
	}
}

// OpenChainStore opens only the chain backend. The file backend touches
// nothing on disk until the chain is read.
func OpenChainStore(ctx context.Context, cfg *config.Config) (storage.ChainStore, string, error) {
	if cfg.Storage.Backend == config.BackendPostgres {
		store, err := postgres.Open(ctx, cfg.Storage.PostgresDSN, cfg.Storage.MaxConns, cfg.Storage.MinConns, cfg.Difficulty())
		if err != nil {
			return nil, "", fmt.Errorf("open postgres store: %w", err)
		}
		return store, "postgres", nil
	}
	chain, err := chainfile.Open(cfg.Storage.ChainPath, cfg.Difficulty())
	if err != nil {
		return nil, "", fmt.Errorf("open chain file: %w", err)
	}
	return chain, chain.Path(), nil
}

func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	var signer *machinecrypto.Signer
	if cfg.AuditSigningEnabled() {
		s, err := machinecrypto.LoadSigner(cfg.Audit.SigningPrivateKeyPath, cfg.Audit.SigningPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load audit signing keys: %w", err)
		}
		signer = s
	}

	backends, err := OpenBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	chainStore, err := ledger.NewStore(ledger.Params{
		Backend:           backends.Chain,
		Logger:            logger,
		Difficulty:        cfg.Difficulty(),
		MaxSealIterations: cfg.Ledger.MaxSealIterations,
		SealTimeout:       time.Duration(cfg.Ledger.SealTimeoutSeconds) * time.Second,
		PersistAttempts:   cfg.Ledger.PersistAttempts,
		PersistTimeout:    time.Duration(cfg.Ledger.PersistTimeoutSecs) * time.Second,
		VerifyOnLoad:      *cfg.Ledger.VerifyOnLoad,
	})
	if err != nil {
		backends.Close()
		return nil, fmt.Errorf("build chain store: %w", err)
	}
	if _, err := chainStore.Load(ctx); err != nil {
		backends.Close()
		return nil, fmt.Errorf("load chain: %w", err)
	}

	svc, err := service.New(service.Params{
		Ledger:            chainStore,
		Accounts:          backends.Accounts,
		Signer:            signer,
		Logger:            logger,
		Difficulty:        cfg.Difficulty(),
		BcryptCost:        cfg.Security.BcryptCost,
		MinPasswordLength: cfg.Security.MinPasswordLength,
		AuditSource:       backends.Source,
		Service:           cfg.Logging.Service,
		Version:           cfg.Logging.Version,
		NodeID:            cfg.Logging.NodeID,
	})
	if err != nil {
		backends.Close()
		return nil, fmt.Errorf("build blog service: %w", err)
	}

	handler, err := api.NewHandler(svc, logger, api.Options{
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		AuditTrustedCIDRs: cfg.Security.AuditTrustedCIDRs,
	})
	if err != nil {
		backends.Close()
		return nil, fmt.Errorf("configure audit ip allow list: %w", err)
	}
	env := logging.Environment{
		Service: cfg.Logging.Service,
		Version: cfg.Logging.Version,
		Commit:  cfg.Logging.Commit,
		Region:  cfg.Logging.Region,
		NodeID:  cfg.Logging.NodeID,
	}
	root := logging.Middleware(logger, env)(handler.Router())

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           root,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Application{
		Server:  server,
		Service: svc,
		Ledger:  chainStore,
		closers: []func(){backends.Close},
	}, nil
}

func (a *Application) Shutdown(ctx context.Context) error {
	defer a.closeOnce.Do(func() {
		for _, c := range a.closers {
			c()
		}
	})
	return a.Server.Shutdown(ctx)
}
