package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cipherbet/cipherbet/internal/cache/redis"
	"github.com/cipherbet/cipherbet/internal/confidential"
	"github.com/cipherbet/cipherbet/internal/config"
	"github.com/cipherbet/cipherbet/internal/crypto"
	"github.com/cipherbet/cipherbet/internal/disclosure"
	"github.com/cipherbet/cipherbet/internal/domain"
	"github.com/cipherbet/cipherbet/internal/feed"
	"github.com/cipherbet/cipherbet/internal/market"
	"github.com/cipherbet/cipherbet/internal/oracle"
	"github.com/cipherbet/cipherbet/internal/store/postgres"
)

// Dependencies bundles everything the application goroutines need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Conf   *confidential.Engine
	Engine *market.Engine

	// Oracle is the in-process disclosure oracle; nil unless
	// disclosure.local is set.
	Oracle domain.DisclosureOracle

	// TickerFeed streams live prices into the cache; nil unless the feed is
	// enabled.
	TickerFeed *feed.TickerFeed
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (price cache + event bus) ---
	var priceCache domain.PriceCache
	var eventBus domain.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		priceCache = redis.NewPriceCache(redisClient)
		eventBus = redis.NewEventBus(redisClient)
	}

	// --- PostgreSQL (journal + stats mirror) ---
	var journal domain.Journal
	var statsStore domain.StatsStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		journal = postgres.NewJournalStore(pgClient.Pool())
		statsStore = postgres.NewStatsStore(pgClient.Pool())
	}

	// --- Confidential vault ---
	vaultKey, err := hex.DecodeString(strings.TrimPrefix(cfg.Disclosure.VaultKey, "0x"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: decode vault key: %w", err)
	}
	conf, err := confidential.NewEngine(vaultKey)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: confidential vault: %w", err)
	}
	deps.Conf = conf

	// --- Disclosure oracle / verifier ---
	var verifier *disclosure.Verifier
	if cfg.Disclosure.Local {
		keyHex, err := crypto.LoadOracleKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Disclosure.OracleKey,
			EncryptedKeyPath: cfg.Disclosure.EncryptedKeyPath,
			KeyPassword:      cfg.Disclosure.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle key: %w", err)
		}
		signer, err := disclosure.NewSigner(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle signer: %w", err)
		}
		dec, err := conf.Decryptor(vaultKey)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: vault decryptor: %w", err)
		}
		verifier = disclosure.NewVerifier(signer.Address())
		deps.Oracle = disclosure.NewLocalOracle(dec, signer)
		logger.InfoContext(ctx, "wire: running local disclosure oracle",
			slog.String("oracle", signer.Address().Hex()),
		)
	} else {
		verifier = disclosure.NewVerifier(common.HexToAddress(cfg.Disclosure.OracleAddress))
	}

	// --- Price feed ---
	var priceFeed domain.PriceFeed
	switch cfg.Oracle.Mode {
	case "chainlink":
		ethClient, err := ethclient.DialContext(ctx, cfg.Oracle.RPCURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: eth rpc: %w", err)
		}
		closers = append(closers, ethClient.Close)
		priceFeed = oracle.NewAggregatorFeed(ethClient, common.HexToAddress(cfg.Oracle.Aggregator))
	case "cached":
		priceFeed = oracle.NewCachedFeed(priceCache, cfg.Oracle.Symbol)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unsupported oracle mode %q", cfg.Oracle.Mode)
	}

	// --- Ticker feed ---
	if cfg.Feed.Enabled {
		deps.TickerFeed = feed.NewTickerFeed(
			cfg.Feed.WsHost, cfg.Feed.Symbol, cfg.Feed.PriceScale, priceCache, logger,
		)
	}

	// --- Settlement engine ---
	genesis := time.Unix(cfg.Market.GenesisUnix, 0)
	if cfg.Market.GenesisUnix == 0 {
		genesis = time.Now()
	}
	params := market.Params{
		Owner:         common.HexToAddress(cfg.Market.Owner),
		FeeRecipient:  common.HexToAddress(cfg.Market.FeeRecipient),
		StakeAmount:   cfg.Market.StakeAmount,
		RoundDuration: cfg.Market.RoundDuration.Duration,
		Genesis:       genesis,
		FeeBps:        cfg.Market.FeeBps,
		MaxPriceAge:   cfg.Market.MaxPriceAge.Duration,
	}

	var opts []market.Option
	if eventBus != nil {
		opts = append(opts, market.WithEventBus(eventBus))
	}
	if journal != nil {
		opts = append(opts, market.WithJournal(journal))
	}
	if statsStore != nil {
		opts = append(opts, market.WithStatsStore(statsStore))
	}

	engine, err := market.NewEngine(params, conf, priceFeed, verifier, logger, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: settlement engine: %w", err)
	}
	deps.Engine = engine

	return deps, cleanup, nil
}
