package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

// Candidate carries the fields of an entry about to be published. The caller
// sets Authenticated only after the credential store accepted Author.
type Candidate struct {
	Author        string
	Payload       string
	Public        bool
	Authenticated bool
}

type Params struct {
	Backend           storage.ChainStore
	Logger            *slog.Logger
	Difficulty        int
	MaxSealIterations uint64
	SealTimeout       time.Duration
	PersistAttempts   int
	PersistTimeout    time.Duration
	VerifyOnLoad      bool
	Now               func() time.Time
}

// Store owns the chain. writeMu admits one Append at a time for the whole
// read-seal-persist sequence; mu only guards swapping the chain reference.
type Store struct {
	backend         storage.ChainStore
	logger          *slog.Logger
	difficulty      int
	maxIterations   uint64
	sealTimeout     time.Duration
	persistAttempts int
	persistTimeout  time.Duration
	verifyOnLoad    bool
	now             func() time.Time

	writeMu sync.Mutex
	// stale is set when a persist failed and the durable chain may be ahead
	// of the in-memory one. Guarded by writeMu.
	stale bool

	mu     sync.RWMutex
	chain  protocol.Chain
	loaded bool
}

func NewStore(params Params) (*Store, error) {
	if params.Backend == nil {
		return nil, errors.New("chain backend is required")
	}
	if params.Difficulty < 0 || params.Difficulty > MaxDifficulty {
		return nil, fmt.Errorf("difficulty must be within 0..%d", MaxDifficulty)
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	if params.PersistAttempts <= 0 {
		params.PersistAttempts = 1
	}
	if params.PersistTimeout <= 0 {
		params.PersistTimeout = 15 * time.Second
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Store{
		backend:         params.Backend,
		logger:          params.Logger,
		difficulty:      params.Difficulty,
		maxIterations:   params.MaxSealIterations,
		sealTimeout:     params.SealTimeout,
		persistAttempts: params.PersistAttempts,
		persistTimeout:  params.PersistTimeout,
		verifyOnLoad:    params.VerifyOnLoad,
		now:             params.Now,
	}, nil
}

// Difficulty is the proof-of-work difficulty the chain is audited against.
func (s *Store) Difficulty() int {
	return s.difficulty
}

// Load reads the persisted chain, seeding and persisting the genesis block
// when none exists.
func (s *Store) Load(ctx context.Context) (protocol.Chain, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	chain, found, err := s.backend.ReadChain(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read chain: %v", ErrStorageUnavailable, err)
	}
	if !found {
		chain = protocol.Chain{protocol.Genesis()}
		if err := s.persist(ctx, chain); err != nil {
			return nil, err
		}
		s.logger.Info("ledger initialised", slog.String("genesis_hash", chain[0].Hash))
	}
	if s.verifyOnLoad {
		if err := Validate(chain, s.difficulty); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.chain = chain
	s.loaded = true
	s.mu.Unlock()

	head, _ := chain.Head()
	s.logger.Info("ledger loaded", slog.Int("height", len(chain)), slog.String("head_hash", head.Hash))
	return chain.Clone(), nil
}

// Append seals a new block on top of the current head and persists the
// extended chain. The in-memory chain only advances once persistence
// succeeds.
func (s *Store) Append(ctx context.Context, c Candidate, difficulty int) (protocol.Block, error) {
	if !c.Authenticated || strings.TrimSpace(c.Author) == "" {
		return protocol.Block{}, ErrUnauthorized
	}
	if c.Payload == "" {
		return protocol.Block{}, fmt.Errorf("%w: payload is required", ErrInvalidCandidate)
	}
	if difficulty < 0 || difficulty > MaxDifficulty {
		return protocol.Block{}, fmt.Errorf("%w: difficulty must be within 0..%d", ErrInvalidCandidate, MaxDifficulty)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, loaded := s.snapshot()
	if !loaded {
		return protocol.Block{}, fmt.Errorf("%w: chain not loaded", ErrStorageUnavailable)
	}
	if s.stale {
		resynced, err := s.resync(ctx)
		if err != nil {
			return protocol.Block{}, err
		}
		current = resynced
	}
	head, _ := current.Head()
	candidate := protocol.NewBlock(head.Index+1, protocol.FormatTimestamp(s.now()), c.Payload, c.Author, c.Public, head.Hash)

	sealCtx := ctx
	if s.sealTimeout > 0 {
		var cancel context.CancelFunc
		sealCtx, cancel = context.WithTimeout(ctx, s.sealTimeout)
		defer cancel()
	}
	start := time.Now()
	sealed, err := Seal(sealCtx, candidate, difficulty, s.maxIterations)
	if err != nil {
		return protocol.Block{}, err
	}
	sealDuration := time.Since(start)

	next := append(current, sealed)
	if err := s.persist(ctx, next); err != nil {
		s.stale = true
		if _, rerr := s.resync(ctx); rerr != nil {
			s.logger.Warn("chain resync after failed persist", slog.String("error", rerr.Error()))
		}
		return protocol.Block{}, err
	}

	s.mu.Lock()
	s.chain = next
	s.mu.Unlock()

	s.logger.Info("block appended",
		slog.Int64("index", sealed.Index),
		slog.String("hash", sealed.Hash),
		slog.Uint64("nonce", sealed.Nonce),
		slog.Int64("seal_ms", sealDuration.Milliseconds()),
	)
	return sealed, nil
}

// Snapshot returns a copy of the current chain.
func (s *Store) Snapshot() protocol.Chain {
	chain, _ := s.snapshot()
	return chain
}

func (s *Store) snapshot() (protocol.Chain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chain.Clone(), s.loaded
}

// resync replaces the in-memory chain with the durable one. A write that
// reported failure may still have committed; appending on the old head
// would then overwrite it. Callers hold writeMu.
func (s *Store) resync(ctx context.Context) (protocol.Chain, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	chain, found, err := s.backend.ReadChain(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: resync chain: %v", ErrStorageUnavailable, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: resync chain: no chain persisted", ErrStorageUnavailable)
	}
	if s.verifyOnLoad {
		if err := Validate(chain, s.difficulty); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.chain = chain
	s.mu.Unlock()
	s.stale = false
	head, _ := chain.Head()
	s.logger.Info("ledger resynced", slog.Int("height", len(chain)), slog.String("head_hash", head.Hash))
	return chain.Clone(), nil
}

// persist writes chain under a context detached from the caller, so a
// client going away cannot cut a commit short.
func (s *Store) persist(ctx context.Context, chain protocol.Chain) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	var lastErr error
	for attempt := 1; attempt <= s.persistAttempts; attempt++ {
		lastErr = s.backend.WriteChain(ctx, chain)
		if lastErr == nil {
			return nil
		}
		if attempt == s.persistAttempts || ctx.Err() != nil {
			break
		}
		s.logger.Warn("chain persist failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: persist chain: %v", ErrStorageUnavailable, lastErr)
}
