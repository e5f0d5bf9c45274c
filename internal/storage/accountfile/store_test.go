package accountfile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

func TestCreateAccountPersistsAndRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	acct := storage.Account{Username: "alice", PasswordHash: "$2a$04$hash", CreatedAt: time.Now().UTC()}
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := s.CreateAccount(ctx, acct); !errors.Is(err, storage.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, found, err := reopened.GetAccount(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("GetAccount found=%v err=%v", found, err)
	}
	if got.PasswordHash != acct.PasswordHash {
		t.Fatalf("expected stored hash %q, got %q", acct.PasswordHash, got.PasswordHash)
	}
	if _, found, _ := reopened.GetAccount(ctx, "bob"); found {
		t.Fatalf("expected bob to be missing")
	}
}
