// Package middleware attaches CMS blocks to Fiber requests.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blockd/pkg/blocks"
	"blockd/pkg/cache"
	"blockd/pkg/format"
)

// Configuration errors returned by New.
var (
	ErrMissingURL       = blocks.ErrMissingURL
	ErrConflictingCache = errors.New("memory cache and redis cache are mutually exclusive")
	ErrKeyWithoutCache  = errors.New("redis key requires a redis cache")
)

const (
	DefaultStaticPrefix = "/static"
	DefaultBypassParam  = "nocortina"
	DefaultLocaleKey    = "locale"
	DefaultBlocksKey    = "blocks"
)

// Options configures the blocks middleware.
type Options struct {
	// BlockAPIURL is the block API base url, required.
	BlockAPIURL string
	Version     string

	// Blocks overrides entries of Defaults.
	Blocks   blocks.IDs
	Defaults blocks.IDs

	SupportedLanguages []string

	// MemoryCache enables the process-local cache.
	MemoryCache bool
	// Redis enables the Redis cache. Exclusive with MemoryCache.
	Redis *cache.Config
	// Cache injects an external cache instead of Redis. Exclusive with MemoryCache.
	Cache blocks.Cache
	// RedisKey replaces the cache key prefix; only valid with Redis or Cache.
	RedisKey string
	CacheTTL time.Duration

	// SkipCookieScripts drops the consent and analytics blocks.
	SkipCookieScripts bool

	Debug          bool
	Timeout        time.Duration
	MaxConcurrency int
	Headers        http.Header
	// RequestHeaders adds per-request headers on top of Headers.
	RequestHeaders func(c *fiber.Ctx) http.Header
	HTTPClient     *http.Client

	// Format, when set, runs format.Prepare on every result.
	Format *format.Config
	// CacheQualifier derives a cache key qualifier from the request.
	CacheQualifier func(c *fiber.Ctx) string

	StaticPrefix string
	BypassParam  string
	LocaleKey    string
	BlocksKey    string

	Logger *zerolog.Logger
}

func (o Options) validate() error {
	if strings.TrimSpace(o.BlockAPIURL) == "" {
		return ErrMissingURL
	}
	external := o.Redis != nil || o.Cache != nil
	if o.MemoryCache && external {
		return ErrConflictingCache
	}
	if o.RedisKey != "" && !external {
		return ErrKeyWithoutCache
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Defaults == nil {
		o.Defaults = blocks.DefaultIDs()
	}
	if o.StaticPrefix == "" {
		o.StaticPrefix = DefaultStaticPrefix
	}
	if o.BypassParam == "" {
		o.BypassParam = DefaultBypassParam
	}
	if o.LocaleKey == "" {
		o.LocaleKey = DefaultLocaleKey
	}
	if o.BlocksKey == "" {
		o.BlocksKey = DefaultBlocksKey
	}
	return o
}

func (o Options) buildCache() blocks.Cache {
	switch {
	case o.Cache != nil:
		return o.Cache
	case o.Redis != nil:
		return cache.NewStore(cache.NewClient(*o.Redis))
	case o.MemoryCache:
		return cache.NewMemory()
	}
	return nil
}

// New validates opts and returns a handler that stores the request's blocks in
// c.Locals(opts.BlocksKey). It always continues the chain; when the blocks
// cannot be loaded an empty blocks.Blocks is stored instead.
func New(opts Options) (fiber.Handler, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("blocks middleware: %w", err)
	}
	opts = opts.withDefaults()

	logger := log.With().Str("component", "middleware").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	ids := blocks.MergeIDs(opts.Defaults, opts.Blocks)
	if opts.SkipCookieScripts {
		ids = ids.Without(blocks.CookieScriptBlocks...)
	}

	svc := blocks.NewService(blocks.Options{
		Cache:          opts.buildCache(),
		KeyPrefix:      opts.RedisKey,
		CacheTTL:       opts.CacheTTL,
		Languages:      blocks.Languages(opts.SupportedLanguages),
		Timeout:        opts.Timeout,
		MaxConcurrency: opts.MaxConcurrency,
		HTTPClient:     opts.HTTPClient,
		Debug:          opts.Debug,
		Logger:         opts.Logger,
	})

	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), opts.StaticPrefix) || c.Query(opts.BypassParam) != "" {
			return c.Next()
		}

		lang := svc.Languages().Normalize(languageFromLocals(c, opts.LocaleKey))

		qualifier := ""
		if opts.CacheQualifier != nil {
			qualifier = opts.CacheQualifier(c)
		}

		headers := opts.Headers
		if opts.RequestHeaders != nil {
			headers = mergeHeaders(opts.Headers, opts.RequestHeaders(c))
		}

		result, err := svc.GetAll(c.UserContext(), blocks.Request{
			IDs:            ids,
			BaseURL:        opts.BlockAPIURL,
			Language:       lang,
			Version:        opts.Version,
			CacheQualifier: qualifier,
			Headers:        headers,
		})
		if err != nil {
			logger.Error().Err(err).Str("path", c.Path()).Msg("failed to get blocks")
			c.Locals(opts.BlocksKey, blocks.Blocks{})
			return c.Next()
		}

		if opts.Format != nil {
			fc := *opts.Format
			fc.URLs.Request = c.OriginalURL()
			if fc.URLs.App == "" {
				fc.URLs.App = c.BaseURL()
			}
			result = format.Prepare(result, fc)
		}

		c.Locals(opts.BlocksKey, result)
		return c.Next()
	}, nil
}

func mergeHeaders(base, extra http.Header) http.Header {
	out := base.Clone()
	if out == nil {
		out = make(http.Header, len(extra))
	}
	for k, vs := range extra {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// FromLocals returns the blocks stored by the middleware, or an empty set.
func FromLocals(c *fiber.Ctx, key string) blocks.Blocks {
	if key == "" {
		key = DefaultBlocksKey
	}
	if b, ok := c.Locals(key).(blocks.Blocks); ok {
		return b
	}
	return blocks.Blocks{}
}
