// Package chainfile keeps the chain as a single JSON document on local disk.
package chainfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

type document struct {
	Format     string           `json:"format"`
	Difficulty int              `json:"difficulty"`
	Blocks     []protocol.Block `json:"blocks"`
}

type Store struct {
	path       string
	difficulty int
	writer     storage.AtomicWriter

	// mu orders file access within this process; the ledger writer lock
	// already serializes appends.
	mu sync.Mutex
}

func Open(path string, difficulty int) (*Store, error) {
	if path == "" {
		return nil, errors.New("chain path is required")
	}
	return &Store{path: path, difficulty: difficulty}, nil
}

// SetRename overrides the rename step of the atomic replace.
func (s *Store) SetRename(fn func(oldpath, newpath string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Rename = fn
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() {}

func (s *Store) ReadChain(ctx context.Context) (protocol.Chain, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read chain file: %w", err)
	}
	var doc document
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("decode chain file: %w", err)
	}
	if doc.Format != storage.ChainFormat {
		return nil, false, fmt.Errorf("unsupported chain format %q", doc.Format)
	}
	if len(doc.Blocks) == 0 {
		return nil, false, errors.New("chain file holds no blocks")
	}
	return protocol.Chain(doc.Blocks), true, nil
}

func (s *Store) WriteChain(ctx context.Context, chain protocol.Chain) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(document{
		Format:     storage.ChainFormat,
		Difficulty: s.difficulty,
		Blocks:     chain,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chain: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write chain file: %w", err)
	}
	return nil
}
