// Package config loads relay settings from relay.yaml with RELAY_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FeeFallbackWaive is the only accepted fees.fallback policy
const FeeFallbackWaive = "waive"

// EnvPrefix is the prefix of every environment override, e.g. RELAY_CHAIN_RPC_URL
const EnvPrefix = "RELAY"

// App captures process-wide runtime settings.
type App struct {
	Name        string `mapstructure:"name"`
	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Chain selects the network and the relayer environment.
type Chain struct {
	RPCURL      string `mapstructure:"rpc_url"`
	Environment string `mapstructure:"environment"`
}

// Contracts names the DEX deployment and the fee token.
type Contracts struct {
	Router              string `mapstructure:"router"`
	Factory             string `mapstructure:"factory"`
	FeeToken            string `mapstructure:"fee_token"`
	ForwarderDomainName string `mapstructure:"forwarder_domain_name"`
}

// Relayer configures the relayer transport. URL overrides the endpoint table
// for the configured chain.
type Relayer struct {
	URL              string        `mapstructure:"url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MinConfirmations uint64        `mapstructure:"min_confirmations"`
}

// Fees selects the policy for chains missing from the built-in fee table.
// "waive" relays for free on those chains; empty refuses to quote.
type Fees struct {
	Fallback string `mapstructure:"fallback"`
}

// Signer holds key material. Exactly one of PrivateKey or Mnemonic is used.
type Signer struct {
	PrivateKey string `mapstructure:"private_key"`
	Mnemonic   string `mapstructure:"mnemonic"`
	Index      uint32 `mapstructure:"index"`
}

// Journal configures the dispatch journal. An empty DSN disables it.
type Journal struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// DevRelayer configures the development relayer.
type DevRelayer struct {
	Addr   string `mapstructure:"addr"`
	Submit bool   `mapstructure:"submit"`
}

// Config collects every configuration leaf.
type Config struct {
	App        App        `mapstructure:"app"`
	Chain      Chain      `mapstructure:"chain"`
	Contracts  Contracts  `mapstructure:"contracts"`
	Relayer    Relayer    `mapstructure:"relayer"`
	Fees       Fees       `mapstructure:"fees"`
	Signer     Signer     `mapstructure:"signer"`
	Journal    Journal    `mapstructure:"journal"`
	DevRelayer DevRelayer `mapstructure:"dev_relayer"`
}

var defaults = map[string]interface{}{
	"app.name":                        "relay",
	"app.log_level":                   "info",
	"app.metrics_addr":                "",
	"chain.rpc_url":                   "",
	"chain.environment":               "prod",
	"contracts.router":                "",
	"contracts.factory":               "",
	"contracts.fee_token":             "",
	"contracts.forwarder_domain_name": "",
	"relayer.url":                     "",
	"relayer.api_key":                 "",
	"relayer.timeout":                 "30s",
	"relayer.min_confirmations":       1,
	"fees.fallback":                   "",
	"signer.private_key":              "",
	"signer.mnemonic":                 "",
	"signer.index":                    0,
	"journal.driver":                  "mysql",
	"journal.dsn":                     "",
	"dev_relayer.addr":                ":8545",
	"dev_relayer.submit":              false,
}

// Load reads path (or ./relay.yaml when path is empty) and applies
// environment overrides. A missing relay.yaml in the default location is not
// an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relay")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Files that
// do not exist are skipped; existing variables are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ValidateClient checks the settings every relay client needs
func (c *Config) ValidateClient() error {
	var missing []string
	if c.Chain.RPCURL == "" {
		missing = append(missing, "chain.rpc_url")
	}
	if c.Contracts.Router == "" {
		missing = append(missing, "contracts.router")
	}
	if c.Contracts.Factory == "" {
		missing = append(missing, "contracts.factory")
	}
	if c.Contracts.FeeToken == "" {
		missing = append(missing, "contracts.fee_token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	switch c.Fees.Fallback {
	case "", FeeFallbackWaive:
	default:
		return fmt.Errorf("fees.fallback: unknown policy %q", c.Fees.Fallback)
	}
	return nil
}

// ValidateSigner checks that exactly one kind of key material is set
func (c *Config) ValidateSigner() error {
	switch {
	case c.Signer.PrivateKey != "" && c.Signer.Mnemonic != "":
		return errors.New("signer.private_key and signer.mnemonic are mutually exclusive")
	case c.Signer.PrivateKey == "" && c.Signer.Mnemonic == "":
		return errors.New("missing config: signer.private_key or signer.mnemonic")
	}
	return nil
}
