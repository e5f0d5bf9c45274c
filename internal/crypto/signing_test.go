package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
)

func writeKeyPair(t *testing.T) (string, string, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	dir := t.TempDir()
	privPath := filepath.Join(dir, "audit.key")
	pubPath := filepath.Join(dir, "audit.pub")
	if err := os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	if err := os.WriteFile(pubPath, []byte(base64.StdEncoding.EncodeToString(pub)), 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return privPath, pubPath, pub
}

func TestSignAuditRoundTrip(t *testing.T) {
	privPath, pubPath, pub := writeKeyPair(t)
	signer, err := LoadSigner(privPath, pubPath)
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	summary := protocol.AuditSummary{
		GeneratedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:      "data/blockchain.json",
		Difficulty:  2,
		BlockCount:  3,
		HeadIndex:   2,
		HeadHash:    "00ab",
		Valid:       true,
	}
	report, err := signer.SignAudit(summary)
	if err != nil {
		t.Fatalf("SignAudit: %v", err)
	}
	if err := VerifyAudit(pub, report); err != nil {
		t.Fatalf("VerifyAudit: %v", err)
	}

	report.Summary.Valid = false
	if err := VerifyAudit(pub, report); err == nil {
		t.Fatalf("expected tampered summary to fail verification")
	}
}

func TestVerifyAuditRejectsUnsignedAndForeignKeys(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	other, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	report, err := NewSigner(priv).SignAudit(protocol.AuditSummary{Valid: true})
	if err != nil {
		t.Fatalf("SignAudit: %v", err)
	}
	if err := VerifyAudit(other, report); err == nil {
		t.Fatalf("expected key id mismatch")
	}
	if err := VerifyAudit(other, protocol.AuditReport{}); err == nil {
		t.Fatalf("expected unsigned report to fail")
	}
}

func TestLoadSignerRejectsMismatchedKeys(t *testing.T) {
	privPath, _, _ := writeKeyPair(t)
	_, otherPub, _ := writeKeyPair(t)
	if _, err := LoadSigner(privPath, otherPub); err == nil {
		t.Fatalf("expected mismatched key pair to be rejected")
	}
}
