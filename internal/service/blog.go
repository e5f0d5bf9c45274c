package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"golang.org/x/crypto/bcrypt"

	machinecrypto "github.com/piezasparawebsite/blogchain-js-blockchain/internal/crypto"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/ledger"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

type BlogService struct {
	ledger            *ledger.Store
	accounts          storage.AccountStore
	signer            *machinecrypto.Signer
	logger            *slog.Logger
	difficulty        int
	bcryptCost        int
	minPasswordLength int
	dummyHash         []byte
	auditSource       string
	service           string
	version           string
	nodeID            string
}

type Params struct {
	Ledger            *ledger.Store
	Accounts          storage.AccountStore
	Signer            *machinecrypto.Signer
	Logger            *slog.Logger
	Difficulty        int
	BcryptCost        int
	MinPasswordLength int
	AuditSource       string
	Service           string
	Version           string
	NodeID            string
}

func New(params Params) (*BlogService, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if params.Difficulty < 0 || params.Difficulty > ledger.MaxDifficulty {
		return nil, fmt.Errorf("difficulty must be within 0..%d", ledger.MaxDifficulty)
	}
	if params.BcryptCost == 0 {
		params.BcryptCost = bcrypt.DefaultCost
	}
	if params.MinPasswordLength <= 0 {
		params.MinPasswordLength = 8
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	if params.Service == "" {
		params.Service = "blogchain"
	}
	if params.Version == "" {
		params.Version = "dev"
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("blogchain-dummy-password"), params.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &BlogService{
		ledger:            params.Ledger,
		accounts:          params.Accounts,
		signer:            params.Signer,
		logger:            params.Logger,
		difficulty:        params.Difficulty,
		bcryptCost:        params.BcryptCost,
		minPasswordLength: params.MinPasswordLength,
		dummyHash:         dummy,
		auditSource:       params.AuditSource,
		service:           params.Service,
		version:           params.Version,
		nodeID:            params.NodeID,
	}, nil
}

// Publish authenticates the author and appends a sealed entry. A failed
// credential check never reaches the chain store.
func (s *BlogService) Publish(ctx context.Context, req protocol.PublishRequest) (protocol.PublishResponse, error) {
	if req.Content == "" {
		return protocol.PublishResponse{}, BadRequest("content is required", nil)
	}
	ok, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return protocol.PublishResponse{}, err
	}
	if !ok {
		return protocol.PublishResponse{}, fromLedger("publish", ledger.ErrUnauthorized)
	}
	block, err := s.PublishAs(ctx, req.Username, req.Content, req.Public, true)
	if err != nil {
		return protocol.PublishResponse{}, err
	}
	return protocol.PublishResponse{OK: true, Block: block}, nil
}

// PublishAs appends an entry for an author whose credentials the caller has
// already checked.
func (s *BlogService) PublishAs(ctx context.Context, author, payload string, public, authenticated bool) (protocol.Block, error) {
	block, err := s.ledger.Append(ctx, ledger.Candidate{
		Author:        author,
		Payload:       payload,
		Public:        public,
		Authenticated: authenticated,
	}, s.difficulty)
	if err != nil {
		return protocol.Block{}, fromLedger("append block", err)
	}
	return block, nil
}

// GetView returns the chain as viewer may see it, oldest first.
func (s *BlogService) GetView(ctx context.Context, viewer string) []protocol.Block {
	return ledger.Project(s.ledger.Snapshot(), viewer)
}

// Blog wraps GetView with presentation order.
func (s *BlogService) Blog(ctx context.Context, viewer, order string) (protocol.BlogResponse, error) {
	switch order {
	case "", OrderAsc:
		order = OrderAsc
	case OrderDesc:
	default:
		return protocol.BlogResponse{}, BadRequest("order must be one of asc|desc", nil)
	}
	view := s.GetView(ctx, viewer)
	if order == OrderDesc {
		slices.Reverse(view)
	}
	return protocol.BlogResponse{Viewer: viewer, Order: order, Blocks: view}, nil
}

// Audit validates a snapshot of the chain and signs the result when an audit
// key is configured. An invalid chain is reported, not returned as an error.
func (s *BlogService) Audit(ctx context.Context) (protocol.AuditReport, error) {
	summary := AuditChain(s.ledger.Snapshot(), s.difficulty, s.auditSource, time.Now().UTC())
	if !summary.Valid {
		s.logger.Warn("chain audit failed", slog.String("reason", summary.Reason))
	}
	if s.signer == nil {
		return protocol.AuditReport{Summary: summary}, nil
	}
	report, err := s.signer.SignAudit(summary)
	if err != nil {
		return protocol.AuditReport{}, Internal("sign audit report", err)
	}
	return report, nil
}

// AuditChain runs ledger.Validate and summarises the outcome.
func AuditChain(chain protocol.Chain, difficulty int, source string, now time.Time) protocol.AuditSummary {
	summary := protocol.AuditSummary{
		GeneratedAt: now,
		Source:      source,
		Difficulty:  difficulty,
		BlockCount:  len(chain),
		Valid:       true,
	}
	if head, ok := chain.Head(); ok {
		summary.HeadIndex = head.Index
		summary.HeadHash = head.Hash
	}
	if err := ledger.Validate(chain, difficulty); err != nil {
		summary.Valid = false
		summary.Reason = err.Error()
		if idx, ok := ledger.FailedIndex(err); ok {
			summary.FailedIndex = &idx
		}
	}
	return summary
}

func (s *BlogService) Health(ctx context.Context) (protocol.HealthResponse, error) {
	chain := s.ledger.Snapshot()
	head, ok := chain.Head()
	if !ok {
		return protocol.HealthResponse{}, NewAppError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "ledger not loaded", true, nil)
	}
	return protocol.HealthResponse{
		Service:    s.service,
		Version:    s.version,
		Status:     "ok",
		NodeID:     s.nodeID,
		Difficulty: s.difficulty,
		Height:     len(chain),
		HeadHash:   head.Hash,
		Time:       time.Now().UTC(),
	}, nil
}
