// Package config defines the top-level configuration for the settlement
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// duration wraps time.Duration so TOML values like "5m" parse directly.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CIPHERBET_* environment
// variables.
type Config struct {
	Market     MarketConfig     `toml:"market"`
	Oracle     OracleConfig     `toml:"oracle"`
	Feed       FeedConfig       `toml:"feed"`
	Keeper     KeeperConfig     `toml:"keeper"`
	Disclosure DisclosureConfig `toml:"disclosure"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// MarketConfig holds the settlement core parameters.
type MarketConfig struct {
	Owner         string   `toml:"owner"`
	FeeRecipient  string   `toml:"fee_recipient"`
	StakeAmount   uint64   `toml:"stake_amount"`
	RoundDuration duration `toml:"round_duration"`
	GenesisUnix   int64    `toml:"genesis_unix"`
	FeeBps        uint32   `toml:"fee_bps"`
	MaxPriceAge   duration `toml:"max_price_age"`
}

// OracleConfig selects and parameterizes the price feed.
type OracleConfig struct {
	// Mode is "chainlink" (on-chain aggregator over JSON-RPC) or "cached"
	// (Redis cache fed by the ticker stream).
	Mode       string `toml:"mode"`
	RPCURL     string `toml:"rpc_url"`
	Aggregator string `toml:"aggregator"`
	Symbol     string `toml:"symbol"`
}

// FeedConfig holds the streaming price ticker parameters.
type FeedConfig struct {
	Enabled    bool   `toml:"enabled"`
	WsHost     string `toml:"ws_host"`
	Symbol     string `toml:"symbol"`
	PriceScale int64  `toml:"price_scale"`
}

// KeeperConfig holds the automation loop parameters.
type KeeperConfig struct {
	Enabled    bool     `toml:"enabled"`
	Interval   duration `toml:"interval"`
	AutoReveal bool     `toml:"auto_reveal"`
}

// DisclosureConfig holds disclosure oracle parameters. When Local is true
// the daemon runs the decryption oracle in-process (development and test
// deployments); otherwise OracleAddress names the external oracle whose
// proofs are accepted.
type DisclosureConfig struct {
	Local            bool   `toml:"local"`
	OracleAddress    string `toml:"oracle_address"`
	OracleKey        string `toml:"oracle_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	VaultKey         string `toml:"vault_key"`
}

// PostgresConfig holds PostgreSQL connection parameters for the journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			StakeAmount:   1_000_000, // 0.01 in 1e8 scaled units
			RoundDuration: duration{time.Hour},
			FeeBps:        200,
			MaxPriceAge:   duration{5 * time.Minute},
		},
		Oracle: OracleConfig{
			Mode:   "cached",
			Symbol: "btcusdt",
		},
		Feed: FeedConfig{
			WsHost:     "wss://stream.binance.com:9443",
			Symbol:     "btcusdt",
			PriceScale: 100,
		},
		Keeper: KeeperConfig{
			Enabled:    true,
			Interval:   duration{15 * time.Second},
			AutoReveal: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Market.Owner) {
		return fmt.Errorf("config: market.owner %q is not a valid address", c.Market.Owner)
	}
	if c.Market.FeeRecipient != "" && !common.IsHexAddress(c.Market.FeeRecipient) {
		return fmt.Errorf("config: market.fee_recipient %q is not a valid address", c.Market.FeeRecipient)
	}
	if c.Market.StakeAmount == 0 {
		return fmt.Errorf("config: market.stake_amount must be positive")
	}
	if c.Market.RoundDuration.Duration <= 0 {
		return fmt.Errorf("config: market.round_duration must be positive")
	}
	if c.Market.MaxPriceAge.Duration <= 0 {
		return fmt.Errorf("config: market.max_price_age must be positive")
	}
	if c.Market.FeeBps > 2000 {
		return fmt.Errorf("config: market.fee_bps %d exceeds the 2000 bps cap", c.Market.FeeBps)
	}

	switch c.Oracle.Mode {
	case "chainlink":
		if c.Oracle.RPCURL == "" {
			return fmt.Errorf("config: oracle.rpc_url is required in chainlink mode")
		}
		if !common.IsHexAddress(c.Oracle.Aggregator) {
			return fmt.Errorf("config: oracle.aggregator %q is not a valid address", c.Oracle.Aggregator)
		}
	case "cached":
		if !c.Redis.Enabled {
			return fmt.Errorf("config: oracle mode cached requires redis.enabled")
		}
		if c.Oracle.Symbol == "" {
			return fmt.Errorf("config: oracle.symbol is required in cached mode")
		}
	default:
		return fmt.Errorf("config: unsupported oracle.mode %q", c.Oracle.Mode)
	}

	if c.Feed.Enabled {
		if !c.Redis.Enabled {
			return fmt.Errorf("config: feed requires redis.enabled")
		}
		if c.Feed.PriceScale <= 0 {
			return fmt.Errorf("config: feed.price_scale must be positive")
		}
	}

	if !c.Disclosure.Local && !common.IsHexAddress(c.Disclosure.OracleAddress) {
		return fmt.Errorf("config: disclosure.oracle_address is required unless disclosure.local")
	}
	if c.Keeper.Enabled && c.Keeper.Interval.Duration <= 0 {
		return fmt.Errorf("config: keeper.interval must be positive")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	return nil
}
