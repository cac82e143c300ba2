package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/db"
	"github.com/sells-group/geocode-cli/internal/fuzzy"
	"github.com/sells-group/geocode-cli/internal/geocache"
	"github.com/sells-group/geocode-cli/internal/resolver"
	"github.com/sells-group/geocode-cli/internal/roads"
	"github.com/sells-group/geocode-cli/internal/search"
	"github.com/sells-group/geocode-cli/internal/tagger"
	"github.com/sells-group/geocode-cli/internal/validate"
	"github.com/sells-group/geocode-cli/internal/zipstate"
)

// appEnv holds the wired resolver and the connections behind it.
type appEnv struct {
	Resolver *resolver.Resolver
	pool     *pgxpool.Pool
	cache    *geocache.Cache
}

func (e *appEnv) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			zap.L().Warn("closing address cache", zap.Error(err))
		}
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// initResolver wires the full resolution pipeline from config. The road
// reference store is a capability: when the database is unreachable the
// resolver runs with the search cascade only and the fuzzy and TIGER
// fallbacks report it as unavailable.
func initResolver(ctx context.Context) (*appEnv, error) {
	searchClient := search.New(cfg.Search.BaseURL,
		search.WithTimeout(cfg.Search.Timeout()),
		search.WithUserAgent(cfg.Search.UserAgent),
		search.WithLimit(cfg.Search.ResultLimit),
		search.WithRateLimit(cfg.Search.RateRPS),
	)

	env := &appEnv{}

	var roadStore roads.Store
	pool, err := db.Connect(ctx, db.ConnConfig{
		Host:               cfg.Roads.Host,
		Port:               cfg.Roads.Port,
		Name:               cfg.Roads.Name,
		User:               cfg.Roads.User,
		Password:           cfg.Roads.Password,
		ConnectTimeout:     time.Duration(cfg.Roads.ConnectTimeoutSecs) * time.Second,
		StatementTimeoutMS: cfg.Roads.StatementTimeoutMS,
	})
	if err != nil {
		zap.L().Warn("road reference store unavailable, fuzzy and TIGER fallbacks disabled", zap.Error(err))
	} else {
		env.pool = pool
		roadStore = roads.NewPostgres(pool, roads.Config{
			CountryCode: cfg.Roads.CountryCode,
			RadiusM:     cfg.Roads.ProximityRadiusM,
		})
	}

	cache, err := geocache.New(cfg.Cache.Path, cfg.Cache.Save)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init address cache")
	}
	env.cache = cache
	badAddrs, err := geocache.LoadBadAddresses(cfg.Cache.BadAddressPath)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init bad address table")
	}

	validatorCfg := validate.DefaultConfig()
	if cfg.Resolve.MinPlaceRank > 0 {
		validatorCfg.MinPlaceRank = cfg.Resolve.MinPlaceRank
	}
	if cfg.Resolve.MaxLinearM > 0 {
		validatorCfg.MaxLinearM = cfg.Resolve.MaxLinearM
	}

	threshold := float64(cfg.Resolve.FuzzyThreshold)
	if threshold <= 0 {
		threshold = resolver.DefaultFuzzyThreshold
	}

	res, err := resolver.New(resolver.Options{
		Searcher:     searchClient,
		Validator:    validate.New(validatorCfg),
		Roads:        roadStore,
		Matcher:      fuzzy.NewMatcher(threshold),
		Tagger:       tagger.New(zipstate.Lookup, tagger.WithSearcher(searchClient)),
		Cache:        cache,
		BadAddresses: badAddrs,
	})
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init resolver")
	}

	env.Resolver = res
	return env, nil
}
