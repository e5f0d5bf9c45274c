package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/logging"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/service"
)

type Handler struct {
	service      *service.BlogService
	logger       *slog.Logger
	maxBodyBytes int64
	auditGuard   func(http.Handler) http.Handler
}

type Options struct {
	MaxBodyBytes int64
	// AuditTrustedCIDRs limits who may run chain audits; empty allows everyone.
	AuditTrustedCIDRs []string
}

func NewHandler(svc *service.BlogService, logger *slog.Logger, opts Options) (*Handler, error) {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	guard, err := IPAllowListMiddleware(opts.AuditTrustedCIDRs)
	if err != nil {
		return nil, err
	}
	return &Handler{service: svc, logger: logger, maxBodyBytes: opts.MaxBodyBytes, auditGuard: guard}, nil
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /v1/auth", h.handleAuth)
	mux.HandleFunc("GET /v1/blog", h.handleBlog)
	mux.HandleFunc("POST /v1/publish", h.handlePublish)
	mux.Handle("GET /v1/chain/audit", h.auditGuard(http.HandlerFunc(h.handleAudit)))
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Health(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.AddField(r.Context(), "op", "health")
	logging.AddField(r.Context(), "height", resp.Height)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req protocol.AuthRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, service.BadRequest(err.Error(), err))
		return
	}
	logging.AddField(r.Context(), "op", "auth")
	logging.AddField(r.Context(), "auth_mode", req.Mode)
	logging.AddField(r.Context(), "username", req.Username)
	resp, err := h.service.Auth(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if resp.Mode == protocol.AuthModeRegister {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// handleBlog serves the chain as the caller may see it. The viewer comes only
// from HTTP Basic credentials the credential store accepts; anything else
// gets the anonymous view.
func (h *Handler) handleBlog(w http.ResponseWriter, r *http.Request) {
	viewer := ""
	if username, password, ok := r.BasicAuth(); ok {
		valid, err := h.service.Authenticate(r.Context(), username, password)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if valid {
			viewer = username
		} else {
			logging.AddField(r.Context(), "viewer_auth", "rejected")
		}
	}
	order := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("order")))
	resp, err := h.service.Blog(r.Context(), viewer, order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.AddField(r.Context(), "op", "blog_view")
	logging.AddField(r.Context(), "viewer", viewer)
	logging.AddField(r.Context(), "block_count", len(resp.Blocks))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req protocol.PublishRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, service.BadRequest(err.Error(), err))
		return
	}
	logging.AddField(r.Context(), "op", "publish")
	logging.AddField(r.Context(), "author", req.Username)
	logging.AddField(r.Context(), "public", req.Public)
	resp, err := h.service.Publish(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.AddField(r.Context(), "block_index", resp.Block.Index)
	logging.AddField(r.Context(), "block_hash", resp.Block.Hash)
	logging.AddField(r.Context(), "nonce", resp.Block.Nonce)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Audit(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.AddField(r.Context(), "op", "chain_audit")
	logging.AddField(r.Context(), "audit_valid", report.Summary.Valid)
	logging.AddField(r.Context(), "block_count", report.Summary.BlockCount)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *service.AppError
	if errors.As(err, &appErr) {
		logging.AddField(r.Context(), "error_code", appErr.Code)
		logging.AddField(r.Context(), "error_message", appErr.Message)
		writeJSON(w, appErr.HTTPStatus, protocol.ErrorResponse{Error: protocol.ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: appErr.Retryable,
		}})
		return
	}
	logging.AddField(r.Context(), "error_code", "INTERNAL_ERROR")
	logging.AddField(r.Context(), "error_message", err.Error())
	writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: protocol.ErrorBody{
		Code:      "INTERNAL_ERROR",
		Message:   "internal server error",
		Retryable: true,
	}})
}

func (h *Handler) decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(limited)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
