// Package config enables config file parsing.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/fraudledger/migrate/genesis"
	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/log"
)

// EnvPrefix prefixes environment overrides, e.g. LEDGER_MIGRATE_LEDGER__ENDPOINT.
const EnvPrefix = "LEDGER_MIGRATE_"

// Config contains the CLI configuration.
type Config struct {
	Log     *LogConfig     `koanf:"log"`
	Metrics *MetricsConfig `koanf:"metrics"`
	Ledger  *LedgerConfig  `koanf:"ledger"`
	Genesis *GenesisConfig `koanf:"genesis"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	if cfg.Ledger != nil {
		if err := cfg.Ledger.Validate(); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
	}
	if cfg.Genesis != nil {
		if err := cfg.Genesis.Validate(); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}

	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	if _, err := log.ParseFormat(cfg.Format); err != nil {
		return err
	}
	_, err := log.ParseLevel(cfg.Level)
	return err
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	// PullEndpoint is the address the Prometheus pull endpoint listens on.
	// Empty disables it.
	PullEndpoint string `koanf:"pull_endpoint"`

	// PushGateway is the Pushgateway URL metrics are pushed to when a
	// command finishes. Empty disables pushing.
	PushGateway string `koanf:"push_gateway"`

	// Job is the Pushgateway job name.
	Job string `koanf:"job"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PushGateway != "" {
		if _, err := url.ParseRequestURI(cfg.PushGateway); err != nil {
			return fmt.Errorf("malformed Pushgateway url '%s': %w", cfg.PushGateway, err)
		}
		if cfg.Job == "" {
			return fmt.Errorf("push_gateway set without a job name")
		}
	}
	return nil
}

// LedgerConfig contains the ledger node connection and signing identity.
type LedgerConfig struct {
	// Endpoint is the node's HTTP API base URL.
	Endpoint string `koanf:"endpoint"`

	// Account is the signing account, as name@domain.
	Account string `koanf:"account"`

	// PrivateKey is the hex encoded ed25519 key of Account. Quote it in
	// YAML files.
	PrivateKey string `koanf:"private_key"`

	// RequestTimeout bounds a single HTTP round-trip.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// AckTimeout bounds the wait for each transaction's acknowledgement.
	AckTimeout time.Duration `koanf:"ack_timeout"`

	// PollInterval is the initial wait between transaction status polls.
	PollInterval time.Duration `koanf:"poll_interval"`
}

// Configured reports whether a node connection was configured at all.
func (cfg *LedgerConfig) Configured() bool {
	return cfg.Endpoint != "" || cfg.Account != "" || cfg.PrivateKey != ""
}

// Validate validates the ledger configuration. An entirely unconfigured
// ledger section is valid; commands that need a node check Configured.
func (cfg *LedgerConfig) Validate() error {
	if cfg.AckTimeout <= 0 {
		return fmt.Errorf("ack_timeout must be positive, got %s", cfg.AckTimeout)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", cfg.PollInterval)
	}
	if !cfg.Configured() {
		return nil
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return fmt.Errorf("malformed endpoint '%s': %w", cfg.Endpoint, err)
	}
	if _, err := ledger.ParseAccountID(cfg.Account); err != nil {
		return err
	}
	if _, err := ledger.ParsePrivateKey(cfg.PrivateKey); err != nil {
		return err
	}
	return nil
}

// ColumnConfig maps a CSV column to a metadata key.
type ColumnConfig struct {
	Name   string `koanf:"name"`
	Column int    `koanf:"column"`
	Type   string `koanf:"type"`
}

func (c ColumnConfig) field() genesis.Field {
	return genesis.Field{Name: ledger.Name(c.Name), Column: c.Column, Type: genesis.ValueType(c.Type)}
}

// GenesisConfig contains the CSV layout and the accounts the fraud
// records are stored under.
type GenesisConfig struct {
	// Domain is the domain assets are registered in.
	Domain string `koanf:"domain"`

	// Admin is the name of the admin account within Domain.
	Admin string `koanf:"admin"`

	// DateLayout is the Go time layout of date columns, parsed in UTC.
	DateLayout string `koanf:"date_layout"`

	// ExpiryOffset is added to the expiry column.
	ExpiryOffset time.Duration `koanf:"expiry_offset"`

	// ID, Expiry and Columns override the default column table when set.
	ID      *ColumnConfig  `koanf:"id"`
	Expiry  *ColumnConfig  `koanf:"expiry"`
	Columns []ColumnConfig `koanf:"columns"`
}

// DomainID returns the configured domain.
func (cfg *GenesisConfig) DomainID() ledger.DomainID {
	return ledger.DomainID{Name: ledger.Name(cfg.Domain)}
}

// AdminID returns the configured admin account.
func (cfg *GenesisConfig) AdminID() ledger.AccountID {
	return ledger.AccountID{Name: ledger.Name(cfg.Admin), Domain: cfg.DomainID()}
}

// Schema returns the column table: the default one with the configured
// overrides applied.
func (cfg *GenesisConfig) Schema() genesis.Schema {
	schema := genesis.DefaultSchema()
	schema.DateLayout = cfg.DateLayout
	schema.ExpiryOffset = cfg.ExpiryOffset
	if cfg.ID != nil {
		schema.ID = cfg.ID.field()
	}
	if cfg.Expiry != nil {
		schema.Expiry = cfg.Expiry.field()
	}
	if len(cfg.Columns) > 0 {
		schema.Attributes = make([]genesis.Field, len(cfg.Columns))
		for i, c := range cfg.Columns {
			schema.Attributes[i] = c.field()
		}
	}
	return schema
}

// Validate validates the genesis configuration.
func (cfg *GenesisConfig) Validate() error {
	if _, err := ledger.ParseName(cfg.Domain); err != nil {
		return fmt.Errorf("domain: %w", err)
	}
	if _, err := ledger.ParseName(cfg.Admin); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	return cfg.Schema().Validate()
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.format":             "JSON",
		"log.level":              "INFO",
		"metrics.job":            "ledger_migrate",
		"ledger.request_timeout": 10 * time.Second,
		"ledger.ack_timeout":     30 * time.Second,
		"ledger.poll_interval":   200 * time.Millisecond,
		"genesis.domain":         "some_domain",
		"genesis.admin":          "some_admin",
		"genesis.date_layout":    genesis.DefaultDateLayout,
		"genesis.expiry_offset":  genesis.DefaultExpiryOffset,
	}
}

// InitConfig initializes configuration from file. An empty path uses the
// defaults and environment only.
func InitConfig(f string) (*Config, error) {
	var p koanf.Provider
	if f != "" {
		p = file.Provider(f)
	}
	return initConfig(p)
}

func initConfig(p koanf.Provider) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Compiled defaults.
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	// Load configuration from the yaml config.
	if p != nil {
		if err := k.Load(p, yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Load environment variables and merge into the loaded config.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		// `__` is used as a hierarchy delimiter.
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// YAML reads an all-digit hex key as a number, which would be
	// unmarshalled as its float rendering.
	if v := k.Get("ledger.private_key"); v != nil {
		if _, ok := v.(string); !ok {
			return nil, fmt.Errorf("ledger: private_key must be a quoted hex string, got %T", v)
		}
	}

	// Unmarshal into config.
	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	// Validate config.
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
