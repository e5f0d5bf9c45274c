package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/app"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/config"
	machinecrypto "github.com/piezasparawebsite/blogchain-js-blockchain/internal/crypto"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/service"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage/chainfile"
)

func main() {
	configPath := flag.String("config", "", "path to blogchain config; overrides -chain and -difficulty")
	chainPath := flag.String("chain", "data/blockchain.json", "path to a persisted chain file")
	difficulty := flag.Int("difficulty", 2, "proof-of-work difficulty the chain was sealed with")
	auditPrivateKey := flag.String("audit-private-key", "", "audit signing private key path (optional)")
	auditPublicKey := flag.String("audit-public-key", "", "audit signing public key path (optional)")
	outPath := flag.String("out", "", "output path for the audit report json (default stdout)")
	checkReport := flag.String("check-report", "", "verify the signature of an existing audit report against -audit-public-key and exit")
	flag.Parse()

	if strings.TrimSpace(*checkReport) != "" {
		checkSignedReport(*checkReport, *auditPublicKey)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		chain  protocol.Chain
		found  bool
		source string
		d      int
	)
	if strings.TrimSpace(*configPath) != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fail("load config", err)
		}
		store, src, err := app.OpenChainStore(ctx, cfg)
		if err != nil {
			fail("open storage", err)
		}
		chain, found, err = store.ReadChain(ctx)
		store.Close()
		if err != nil {
			fail("read chain", err)
		}
		source, d = src, cfg.Difficulty()
		if *auditPrivateKey == "" && cfg.AuditSigningEnabled() {
			*auditPrivateKey, *auditPublicKey = cfg.Audit.SigningPrivateKeyPath, cfg.Audit.SigningPublicKeyPath
		}
	} else {
		store, err := chainfile.Open(*chainPath, *difficulty)
		if err != nil {
			fail("open chain file", err)
		}
		chain, found, err = store.ReadChain(ctx)
		if err != nil {
			fail("read chain", err)
		}
		source, d = *chainPath, *difficulty
	}
	if !found {
		fail("read chain", fmt.Errorf("no chain persisted at %s", source))
	}

	report := protocol.AuditReport{Summary: service.AuditChain(chain, d, source, time.Now().UTC())}
	if *auditPrivateKey != "" || *auditPublicKey != "" {
		signer, err := machinecrypto.LoadSigner(*auditPrivateKey, *auditPublicKey)
		if err != nil {
			fail("load audit signer", err)
		}
		report, err = signer.SignAudit(report.Summary)
		if err != nil {
			fail("sign audit report", err)
		}
	}

	if err := writeReport(strings.TrimSpace(*outPath), report); err != nil {
		fail("write audit report", err)
	}
	fmt.Fprintf(os.Stderr, "blocks:%d head:%s\n", report.Summary.BlockCount, report.Summary.HeadHash)
	fmt.Fprintf(os.Stderr, "verification_passed:%t\n", report.Summary.Valid)
	if !report.Summary.Valid {
		os.Exit(1)
	}
}

func checkSignedReport(path, publicKeyPath string) {
	if publicKeyPath == "" {
		fail("check report", errors.New("-audit-public-key is required"))
	}
	pub, err := machinecrypto.LoadPublicKey(publicKeyPath)
	if err != nil {
		fail("load audit public key", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		fail("read audit report", err)
	}
	var report protocol.AuditReport
	if err := json.Unmarshal(raw, &report); err != nil {
		fail("decode audit report", err)
	}
	if err := machinecrypto.VerifyAudit(pub, report); err != nil {
		fail("verify audit signature", err)
	}
	fmt.Fprintf(os.Stderr, "signature_ok kid:%s\n", report.Signature.Kid)
	fmt.Fprintf(os.Stderr, "verification_passed:%t\n", report.Summary.Valid)
	if !report.Summary.Valid {
		os.Exit(1)
	}
}

func writeReport(path string, report protocol.AuditReport) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	if path == "" {
		_, err = os.Stdout.Write(raw)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
