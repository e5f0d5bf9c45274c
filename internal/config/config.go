package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/ledger"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/logging"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config captures runtime settings for a blogchain node. Difficulty is read
// once here and stays fixed for the life of the process.
type Config struct {
	Server struct {
		Listen                 string `yaml:"listen"`
		ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
		MaxBodyBytes           int64  `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Ledger struct {
		Difficulty         *int   `yaml:"difficulty"`
		MaxSealIterations  uint64 `yaml:"max_seal_iterations"`
		SealTimeoutSeconds int    `yaml:"seal_timeout_seconds"`
		PersistAttempts    int    `yaml:"persist_attempts"`
		PersistTimeoutSecs int    `yaml:"persist_timeout_seconds"`
		VerifyOnLoad       *bool  `yaml:"verify_on_load"`
	} `yaml:"ledger"`

	Storage struct {
		Backend          string `yaml:"backend"`
		ChainPath        string `yaml:"chain_path"`
		AccountsPath     string `yaml:"accounts_path"`
		PostgresDSN      string `yaml:"postgres_dsn"`
		MaxConns         int32  `yaml:"max_conns"`
		MinConns         int32  `yaml:"min_conns"`
		EnforceSecureTLS *bool  `yaml:"enforce_secure_transport"`
	} `yaml:"storage"`

	Security struct {
		BcryptCost        int      `yaml:"bcrypt_cost"`
		MinPasswordLength int      `yaml:"min_password_length"`
		AuditTrustedCIDRs []string `yaml:"audit_trusted_cidrs"`
	} `yaml:"security"`

	Audit struct {
		SigningPrivateKeyPath string `yaml:"signing_private_key_path"`
		SigningPublicKeyPath  string `yaml:"signing_public_key_path"`
	} `yaml:"audit"`

	Logging struct {
		Service string `yaml:"service"`
		Version string `yaml:"version"`
		Commit  string `yaml:"commit"`
		Region  string `yaml:"region"`
		NodeID  string `yaml:"node_id"`
		Level   string `yaml:"level"`
		Format  string `yaml:"format"`
	} `yaml:"logging"`
}

// Load reads and validates config from disk.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(buf)
}

// Parse validates a YAML config document.
func Parse(buf []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.expandEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Difficulty returns the configured proof-of-work difficulty.
func (c *Config) Difficulty() int {
	return *c.Ledger.Difficulty
}

func (c *Config) AuditSigningEnabled() bool {
	return c.Audit.SigningPrivateKeyPath != "" && c.Audit.SigningPublicKeyPath != ""
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:3000"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 60
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 15
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Ledger.Difficulty == nil {
		c.Ledger.Difficulty = intPtr(ledger.DefaultDifficulty)
	}
	if c.Ledger.MaxSealIterations == 0 && *c.Ledger.Difficulty >= 0 && *c.Ledger.Difficulty <= ledger.MaxDifficulty {
		c.Ledger.MaxSealIterations = ledger.ExpectedWork(*c.Ledger.Difficulty) * 64
	}
	if c.Ledger.SealTimeoutSeconds <= 0 {
		c.Ledger.SealTimeoutSeconds = 30
	}
	if c.Ledger.PersistAttempts <= 0 {
		c.Ledger.PersistAttempts = 3
	}
	if c.Ledger.PersistTimeoutSecs <= 0 {
		c.Ledger.PersistTimeoutSecs = 15
	}
	if c.Ledger.VerifyOnLoad == nil {
		c.Ledger.VerifyOnLoad = boolPtr(true)
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.ChainPath == "" {
		c.Storage.ChainPath = "data/blockchain.json"
	}
	if c.Storage.AccountsPath == "" {
		c.Storage.AccountsPath = "data/accounts.json"
	}
	if c.Storage.MaxConns <= 0 {
		c.Storage.MaxConns = 8
	}
	if c.Storage.MinConns < 0 {
		c.Storage.MinConns = 0
	}
	if c.Storage.EnforceSecureTLS == nil {
		c.Storage.EnforceSecureTLS = boolPtr(true)
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = bcrypt.DefaultCost
	}
	if c.Security.MinPasswordLength <= 0 {
		c.Security.MinPasswordLength = 8
	}
	if c.Security.AuditTrustedCIDRs == nil {
		c.Security.AuditTrustedCIDRs = []string{"127.0.0.1/32", "::1/128"}
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "blogchain"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "dev"
	}
	if c.Logging.Commit == "" {
		c.Logging.Commit = "unknown"
	}
	if c.Logging.Region == "" {
		c.Logging.Region = "local"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = logging.FormatJSON
	}
}

func (c *Config) validate() error {
	if d := *c.Ledger.Difficulty; d < 0 || d > ledger.MaxDifficulty {
		return fmt.Errorf("ledger.difficulty must be within 0..%d", ledger.MaxDifficulty)
	}
	if c.Ledger.MaxSealIterations < ledger.ExpectedWork(*c.Ledger.Difficulty) {
		return errors.New("ledger.max_seal_iterations must be at least 16^difficulty")
	}
	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("security.bcrypt_cost must be within %d..%d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	switch strings.TrimSpace(strings.ToLower(c.Storage.Backend)) {
	case BackendFile:
		if c.Storage.ChainPath == c.Storage.AccountsPath {
			return errors.New("storage.chain_path and storage.accounts_path must differ")
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
		if *c.Storage.EnforceSecureTLS && dsnUsesInsecureSSL(c.Storage.PostgresDSN) {
			if host := dsnHost(c.Storage.PostgresDSN); !isLoopbackHost(host) && !strings.EqualFold(host, "localhost") {
				return errors.New("storage.postgres_dsn must use sslmode=require|verify-ca|verify-full for non-loopback hosts when enforce_secure_transport is enabled")
			}
		}
	default:
		return errors.New("storage.backend must be one of file|postgres")
	}
	for _, cidr := range c.Security.AuditTrustedCIDRs {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return fmt.Errorf("security.audit_trusted_cidrs contains invalid cidr %q", cidr)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != logging.FormatJSON && c.Logging.Format != logging.FormatText {
		return errors.New("logging.format must be one of json|text")
	}
	if (c.Audit.SigningPrivateKeyPath == "") != (c.Audit.SigningPublicKeyPath == "") {
		return errors.New("audit.signing_private_key_path and audit.signing_public_key_path must be set together")
	}
	return nil
}

func (c *Config) expandEnv() {
	c.Storage.Backend = strings.TrimSpace(strings.ToLower(c.Storage.Backend))
	c.Logging.Format = strings.TrimSpace(strings.ToLower(c.Logging.Format))
	c.Storage.ChainPath = os.ExpandEnv(strings.TrimSpace(c.Storage.ChainPath))
	c.Storage.AccountsPath = os.ExpandEnv(strings.TrimSpace(c.Storage.AccountsPath))
	c.Storage.PostgresDSN = os.ExpandEnv(strings.TrimSpace(c.Storage.PostgresDSN))
	c.Audit.SigningPrivateKeyPath = os.ExpandEnv(strings.TrimSpace(c.Audit.SigningPrivateKeyPath))
	c.Audit.SigningPublicKeyPath = os.ExpandEnv(strings.TrimSpace(c.Audit.SigningPublicKeyPath))
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
