package protocol

// AuditSignaturePayload is the byte string an audit signature covers.
func AuditSignaturePayload(summary AuditSummary, keyID string) ([]byte, error) {
	type payload struct {
		Summary AuditSummary `json:"summary"`
		KeyID   string       `json:"kid"`
	}
	return CanonicalJSON(payload{Summary: summary, KeyID: keyID})
}
