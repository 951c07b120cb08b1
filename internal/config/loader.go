package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CIPHERBET_* environment variable overrides,
// and returns the final Config. The caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CIPHERBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Market ──
	setStr(&cfg.Market.Owner, "CIPHERBET_MARKET_OWNER")
	setStr(&cfg.Market.FeeRecipient, "CIPHERBET_MARKET_FEE_RECIPIENT")
	setUint64(&cfg.Market.StakeAmount, "CIPHERBET_MARKET_STAKE_AMOUNT")
	setDuration(&cfg.Market.RoundDuration, "CIPHERBET_MARKET_ROUND_DURATION")
	setInt64(&cfg.Market.GenesisUnix, "CIPHERBET_MARKET_GENESIS_UNIX")
	setUint32(&cfg.Market.FeeBps, "CIPHERBET_MARKET_FEE_BPS")
	setDuration(&cfg.Market.MaxPriceAge, "CIPHERBET_MARKET_MAX_PRICE_AGE")

	// ── Oracle ──
	setStr(&cfg.Oracle.Mode, "CIPHERBET_ORACLE_MODE")
	setStr(&cfg.Oracle.RPCURL, "CIPHERBET_ORACLE_RPC_URL")
	setStr(&cfg.Oracle.Aggregator, "CIPHERBET_ORACLE_AGGREGATOR")
	setStr(&cfg.Oracle.Symbol, "CIPHERBET_ORACLE_SYMBOL")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "CIPHERBET_FEED_ENABLED")
	setStr(&cfg.Feed.WsHost, "CIPHERBET_FEED_WS_HOST")
	setStr(&cfg.Feed.Symbol, "CIPHERBET_FEED_SYMBOL")
	setInt64(&cfg.Feed.PriceScale, "CIPHERBET_FEED_PRICE_SCALE")

	// ── Keeper ──
	setBool(&cfg.Keeper.Enabled, "CIPHERBET_KEEPER_ENABLED")
	setDuration(&cfg.Keeper.Interval, "CIPHERBET_KEEPER_INTERVAL")
	setBool(&cfg.Keeper.AutoReveal, "CIPHERBET_KEEPER_AUTO_REVEAL")

	// ── Disclosure ──
	setBool(&cfg.Disclosure.Local, "CIPHERBET_DISCLOSURE_LOCAL")
	setStr(&cfg.Disclosure.OracleAddress, "CIPHERBET_DISCLOSURE_ORACLE_ADDRESS")
	setStr(&cfg.Disclosure.OracleKey, "CIPHERBET_DISCLOSURE_ORACLE_KEY")
	setStr(&cfg.Disclosure.EncryptedKeyPath, "CIPHERBET_DISCLOSURE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Disclosure.KeyPassword, "CIPHERBET_DISCLOSURE_KEY_PASSWORD")
	setStr(&cfg.Disclosure.VaultKey, "CIPHERBET_DISCLOSURE_VAULT_KEY")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "CIPHERBET_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CIPHERBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CIPHERBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CIPHERBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CIPHERBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CIPHERBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CIPHERBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CIPHERBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CIPHERBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CIPHERBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CIPHERBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CIPHERBET_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CIPHERBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CIPHERBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CIPHERBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CIPHERBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CIPHERBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CIPHERBET_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CIPHERBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CIPHERBET_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "CIPHERBET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
