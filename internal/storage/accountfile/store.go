// Package accountfile keeps credential records in a JSON file.
package accountfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

type document struct {
	Accounts []storage.Account `json:"accounts"`
}

type Store struct {
	path string

	mu       sync.RWMutex
	accounts map[string]storage.Account
}

// Open loads path, creating an empty account file if it does not exist.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("accounts path is required")
	}
	s := &Store{path: path, accounts: map[string]storage.Account{}}
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("decode accounts file: %w", err)
	}
	for _, acct := range doc.Accounts {
		s.accounts[acct.Username] = acct
	}
	return s, nil
}

func (s *Store) Close() {}

func (s *Store) CreateAccount(ctx context.Context, acct storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acct.Username]; exists {
		return storage.ErrAccountExists
	}
	s.accounts[acct.Username] = acct
	if err := s.flushLocked(); err != nil {
		delete(s.accounts, acct.Username)
		return err
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, username string) (storage.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.Account{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[username]
	return acct, ok, nil
}

func (s *Store) flushLocked() error {
	doc := document{Accounts: make([]storage.Account, 0, len(s.accounts))}
	for _, acct := range s.accounts {
		doc.Accounts = append(doc.Accounts, acct)
	}
	sort.Slice(doc.Accounts, func(i, j int) bool {
		return doc.Accounts[i].Username < doc.Accounts[j].Username
	})
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if err := storage.WriteFileAtomic(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write accounts file: %w", err)
	}
	return nil
}
