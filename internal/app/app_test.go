package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/config"
)

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
ledger:
  difficulty: 1
storage:
  backend: file
  chain_path: %q
  accounts_path: %q
security:
  bcrypt_cost: 4
  min_password_length: 4
logging:
  node_id: test-node
`, filepath.Join(dir, "data", "blockchain.json"), filepath.Join(dir, "data", "accounts.json"))))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return cfg
}

func TestBuildServesAndSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx := context.Background()

	first, err := Build(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := serve(first.Server.Handler, http.MethodPost, "/v1/auth", `{"username":"alice","password":"wonderland","mode":"register"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(first.Server.Handler, http.MethodPost, "/v1/publish", `{"username":"alice","password":"wonderland","content":"persist me","public":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish: %d %s", rec.Code, rec.Body.String())
	}
	shutdown(t, first)

	second, err := Build(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	defer shutdown(t, second)
	if got := len(second.Ledger.Snapshot()); got != 2 {
		t.Fatalf("expected 2 blocks after restart, got %d", got)
	}
	rec = serve(second.Server.Handler, http.MethodPost, "/v1/auth", `{"username":"alice","password":"wonderland"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login after restart: %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(second.Server.Handler, http.MethodGet, "/v1/blog", "")
	if !strings.Contains(rec.Body.String(), "persist me") {
		t.Fatalf("public entry missing after restart: %s", rec.Body.String())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	application, err := Build(context.Background(), cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	shutdown(t, application)
	shutdown(t, application)
}

func TestOpenChainStoreLeavesDiskUntouched(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	store, source, err := OpenChainStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenChainStore: %v", err)
	}
	defer store.Close()
	if source != cfg.Storage.ChainPath {
		t.Fatalf("unexpected source %q", source)
	}
	if _, found, err := store.ReadChain(context.Background()); err != nil || found {
		t.Fatalf("expected no chain, found=%v err=%v", found, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("opening the chain store must not create the data dir, stat err=%v", err)
	}
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func shutdown(t *testing.T, a *Application) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
