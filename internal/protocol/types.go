package protocol

import "time"

const (
	AuthModeLogin    = "login"
	AuthModeRegister = "register"
)

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Mode     string `json:"mode"`
}

type AuthResponse struct {
	OK       bool   `json:"ok"`
	Username string `json:"username"`
	Mode     string `json:"mode"`
}

type PublishRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Content  string `json:"content"`
	Public   bool   `json:"public"`
}

type PublishResponse struct {
	OK    bool  `json:"ok"`
	Block Block `json:"block"`
}

// BlogResponse is a viewer-specific projection of the chain.
type BlogResponse struct {
	Viewer string  `json:"viewer,omitempty"`
	Order  string  `json:"order"`
	Blocks []Block `json:"blocks"`
}

type AuditSummary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source"`
	Difficulty  int       `json:"difficulty"`
	BlockCount  int       `json:"block_count"`
	HeadIndex   int64     `json:"head_index"`
	HeadHash    string    `json:"head_hash"`
	Valid       bool      `json:"valid"`
	FailedIndex *int64    `json:"failed_index,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

type AuditSignature struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Sig string `json:"sig"`
}

type AuditReport struct {
	Summary   AuditSummary    `json:"summary"`
	Signature *AuditSignature `json:"audit_signature,omitempty"`
}

type HealthResponse struct {
	Service    string    `json:"service"`
	Version    string    `json:"version"`
	Status     string    `json:"status"`
	NodeID     string    `json:"node_id,omitempty"`
	Difficulty int       `json:"difficulty"`
	Height     int       `json:"height"`
	HeadHash   string    `json:"head_hash"`
	Time       time.Time `json:"time"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
