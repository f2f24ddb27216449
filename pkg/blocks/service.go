package blocks

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options configures a Service. The zero value fetches without a cache.
type Options struct {
	// Cache is consulted before the block API and filled after it. Nil disables caching.
	Cache Cache

	// KeyPrefix is prepended to cache keys (default DefaultKeyPrefix).
	KeyPrefix string

	// CacheTTL is the lifetime of a cached block set (default DefaultCacheTTL).
	CacheTTL time.Duration

	// Languages is the supported language set (default DefaultLanguages).
	Languages Languages

	// Timeout bounds each block request (default DefaultTimeout).
	Timeout time.Duration

	// MaxConcurrency limits parallel block requests; 0 means unlimited.
	MaxConcurrency int

	HTTPClient *http.Client

	// Debug logs cache failures verbosely.
	Debug bool

	Logger *zerolog.Logger
}

// Request describes one block set lookup.
type Request struct {
	IDs      IDs
	BaseURL  string
	Language string
	Version  string

	// CacheQualifier distinguishes presentation variants sharing a language.
	CacheQualifier string

	// Headers are sent with every block request.
	Headers http.Header
}

// Service coordinates cache lookup, concurrent block fetches and cache fill.
type Service struct {
	fetcher        *Fetcher
	cache          Cache
	keyPrefix      string
	ttl            time.Duration
	languages      Languages
	maxConcurrency int
	debug          bool
	log            zerolog.Logger
}

// NewService builds a Service from opts.
func NewService(opts Options) *Service {
	logger := log.With().Str("component", "blocks").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if len(opts.Languages) == 0 {
		opts.Languages = DefaultLanguages
	}
	return &Service{
		fetcher:        NewFetcher(opts.HTTPClient, opts.Timeout, logger),
		cache:          opts.Cache,
		keyPrefix:      opts.KeyPrefix,
		ttl:            opts.CacheTTL,
		languages:      opts.Languages,
		maxConcurrency: opts.MaxConcurrency,
		debug:          opts.Debug,
		log:            logger,
	}
}

// Get is a one-shot GetAll on a Service built from opts.
func Get(ctx context.Context, req Request, opts Options) (Blocks, error) {
	return NewService(opts).GetAll(ctx, req)
}

// Languages returns the supported language set.
func (s *Service) Languages() Languages {
	return s.languages
}

// GetAll returns every block in req.IDs for the request language, from cache
// when possible. Only a missing base url is an error; failed blocks come back
// as empty strings and cache failures fall back to the block API.
func (s *Service) GetAll(ctx context.Context, req Request) (Blocks, error) {
	if strings.TrimSpace(req.BaseURL) == "" {
		return nil, ErrMissingURL
	}

	lang := s.languages.Normalize(req.Language)
	key := CacheKey(s.keyPrefix, req.CacheQualifier, lang)

	if s.cache != nil {
		if cached, ok := s.lookup(ctx, key); ok {
			return cached, nil
		}
	}

	result := s.fetchAll(ctx, req, lang)

	if s.cache != nil && !result.Empty() {
		if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
			CacheErrors.WithLabelValues("set").Inc()
			s.logCacheError(err, key, "cache set failed")
		}
	}

	return result, nil
}

func (s *Service) lookup(ctx context.Context, key string) (Blocks, bool) {
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		s.logCacheError(err, key, "cache get failed")
		if isConnectionError(err) && s.debug {
			s.log.Info().Str("key", key).Msg("bad cache connection, getting blocks from api")
		}
		return nil, false
	}
	if !ok || len(cached) == 0 {
		CacheMisses.Inc()
		s.log.Debug().Str("key", key).Msg("cache miss")
		return nil, false
	}
	CacheHits.Inc()
	s.log.Debug().Str("key", key).Msg("cache hit")
	return Blocks(cached).Clone(), true
}

func (s *Service) logCacheError(err error, key, msg string) {
	if s.debug {
		s.log.Error().Err(err).Str("key", key).Bool("connection", isConnectionError(err)).Msg(msg)
		return
	}
	s.log.Debug().Err(err).Str("key", key).Msg(msg)
}

// fetchAll requests every block concurrently. Tasks never fail, so Wait
// returns once all of them settled; each task owns one slot of results.
func (s *Service) fetchAll(ctx context.Context, req Request, lang string) Blocks {
	names := make([]string, 0, len(req.IDs))
	for name := range req.IDs {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]FetchedBlock, len(names))

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, name := range names {
		target := BuildURL(req.BaseURL, req.IDs[name], lang, req.Version)
		g.Go(func() error {
			results[i] = s.fetcher.Fetch(ctx, name, target, req.Headers)
			return nil
		})
	}
	_ = g.Wait()

	out := make(Blocks, len(results))
	for _, b := range results {
		out[b.Name] = b.HTML
	}

	if out.Empty() && len(out) > 0 {
		s.log.Error().Str("lang", lang).Int("blocks", len(out)).Msg("no blocks could be loaded, check the block api")
	}
	return out
}
