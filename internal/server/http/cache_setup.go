package httpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"blockd/internal/config"
	"blockd/pkg/blocks"
	appcache "blockd/pkg/cache"
)

// SetupCache builds the block cache for the configured driver.
// Returns cleanup function (no-op if nothing to close).
// An unreachable Redis is not fatal: the store is kept and every request
// falls back to the block API until Redis comes back.
func SetupCache(ctx context.Context, cfg config.Cache) (blocks.Cache, func(), error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case config.CacheNone:
		return nil, func() {}, nil
	case "", config.CacheMemory:
		return appcache.NewMemory(), func() {}, nil
	case config.CacheRedis:
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}

	cacheCfg := appcache.Config{
		Addr:        cfg.Addr(),
		Password:    cfg.Pass,
		DB:          cfg.Db,
		DialTimeout: appcache.LoadConfigFromEnv().DialTimeout,
	}

	r, err := appcache.Init(ctx, cacheCfg)
	if err != nil {
		log.Warn().Err(err).Str("addr", cacheCfg.Addr).Msg("redis unavailable, serving from block api until it recovers")
		rdb := appcache.NewClient(cacheCfg)
		return appcache.NewStore(rdb), func() { _ = rdb.Close() }, nil
	}

	return appcache.NewStore(r.Client), func() { _ = r.Close() }, nil
}
