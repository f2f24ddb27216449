package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockd/pkg/blocks"
	"blockd/pkg/cache"
	"blockd/pkg/format"
)

type blockAPI struct {
	srv   *httptest.Server
	hits  int32
	mu    sync.Mutex
	paths []string
}

func newBlockAPI(t *testing.T) *blockAPI {
	t.Helper()
	api := &blockAPI{}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.hits, 1)
		api.mu.Lock()
		api.paths = append(api.paths, r.URL.RequestURI())
		api.mu.Unlock()
		_, _ = w.Write([]byte("<div>" + strings.TrimPrefix(r.URL.Path, "/") + "</div>"))
	}))
	t.Cleanup(api.srv.Close)
	return api
}

func (a *blockAPI) requested() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newApp(t *testing.T, h fiber.Handler, locale any) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if locale != nil {
			c.Locals(DefaultLocaleKey, locale)
		}
		return c.Next()
	})
	app.Use(h)
	app.Get("/*", func(c *fiber.Ctx) error {
		if c.Locals(DefaultBlocksKey) == nil {
			return c.Status(http.StatusNoContent).SendString("")
		}
		return c.JSON(FromLocals(c, ""))
	})
	return app
}

func getBlocks(t *testing.T, app *fiber.App, target string) (int, blocks.Blocks) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out blocks.Blocks
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp.StatusCode, out
}

func TestNew_ConfigurationErrors(t *testing.T) {
	redisCfg := &cache.Config{Addr: "127.0.0.1:6379"}

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"missing url", Options{}, ErrMissingURL},
		{"memory and redis", Options{BlockAPIURL: "http://x/", MemoryCache: true, Redis: redisCfg}, ErrConflictingCache},
		{"memory and injected cache", Options{BlockAPIURL: "http://x/", MemoryCache: true, Cache: cache.NewMemory()}, ErrConflictingCache},
		{"redis key without redis", Options{BlockAPIURL: "http://x/", RedisKey: "app_"}, ErrKeyWithoutCache},
		{"redis key with memory cache", Options{BlockAPIURL: "http://x/", RedisKey: "app_", MemoryCache: true}, ErrKeyWithoutCache},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, h)
		})
	}

	h, err := New(Options{BlockAPIURL: "http://x/", RedisKey: "app_", Redis: redisCfg})
	assert.NoError(t, err)
	assert.NotNil(t, h)
}

func TestMiddleware_AttachesBlocks(t *testing.T) {
	api := newBlockAPI(t)
	h, err := New(Options{
		BlockAPIURL: api.srv.URL + "/",
		Defaults:    blocks.IDs{"footer": "1.202278"},
		Blocks:      blocks.IDs{"search": "1.77262"},
		Logger:      nop(),
	})
	require.NoError(t, err)

	status, got := getBlocks(t, newApp(t, h, Locale{Language: "sv"}), "/page")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, blocks.Blocks{"footer": "<div>1.202278</div>", "search": "<div>1.77262</div>"}, got)
	assert.ElementsMatch(t, []string{"/1.202278?l=sv", "/1.77262?l=sv"}, api.requested())
}

func TestMiddleware_UnsupportedLanguageFallsBack(t *testing.T) {
	api := newBlockAPI(t)
	h, err := New(Options{
		BlockAPIURL:        api.srv.URL + "/",
		Defaults:           blocks.IDs{"footer": "1"},
		SupportedLanguages: []string{"sv", "en"},
		Logger:             nop(),
	})
	require.NoError(t, err)

	_, _ = getBlocks(t, newApp(t, h, "de"), "/")

	assert.Equal(t, []string{"/1?l=sv"}, api.requested())
}

func TestMiddleware_SkipsStaticAndBypass(t *testing.T) {
	api := newBlockAPI(t)
	h, err := New(Options{BlockAPIURL: api.srv.URL + "/", Defaults: blocks.IDs{"footer": "1"}, Logger: nop()})
	require.NoError(t, err)
	app := newApp(t, h, nil)

	status, _ := getBlocks(t, app, "/static/app.css")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = getBlocks(t, app, "/page?nocortina=true")
	assert.Equal(t, http.StatusNoContent, status)

	assert.Zero(t, atomic.LoadInt32(&api.hits))
}

func TestMiddleware_MemoryCache(t *testing.T) {
	api := newBlockAPI(t)
	h, err := New(Options{
		BlockAPIURL: api.srv.URL + "/",
		Defaults:    blocks.IDs{"footer": "1"},
		MemoryCache: true,
		Logger:      nop(),
	})
	require.NoError(t, err)
	app := newApp(t, h, Locale{Language: "en"})

	_, first := getBlocks(t, app, "/")
	_, second := getBlocks(t, app, "/")

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&api.hits))
}

func TestMiddleware_UnreachableRedisFallsBackToAPI(t *testing.T) {
	api := newBlockAPI(t)
	h, err := New(Options{
		BlockAPIURL: api.srv.URL + "/",
		Defaults:    blocks.IDs{"footer": "1"},
		Redis:       &cache.Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond},
		Debug:       true,
		Logger:      nop(),
	})
	require.NoError(t, err)

	status, got := getBlocks(t, newApp(t, h, Locale{Language: "en"}), "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, blocks.Blocks{"footer": "<div>1</div>"}, got)
}

func TestMiddleware_SkipCookieScripts(t *testing.T) {
	api := newBlockAPI(t)
	h, err := New(Options{
		BlockAPIURL:       api.srv.URL + "/",
		Defaults:          blocks.IDs{"footer": "1", blocks.KlaroConfig: "2", blocks.MatomoAnalytics: "3"},
		SkipCookieScripts: true,
		Logger:            nop(),
	})
	require.NoError(t, err)

	_, got := getBlocks(t, newApp(t, h, nil), "/")

	assert.Equal(t, blocks.Blocks{"footer": "<div>1</div>"}, got)
}

func TestMiddleware_FormatsBlocks(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div class="mainLogo"><img src="/logo.svg"/></div>`))
	}))
	t.Cleanup(api.Close)

	h, err := New(Options{
		BlockAPIURL: api.URL + "/",
		Defaults:    blocks.IDs{"image": "1"},
		Format:      &format.Config{URLs: format.URLs{Prod: "https://www.kth.se"}},
		Logger:      nop(),
	})
	require.NoError(t, err)

	_, got := getBlocks(t, newApp(t, h, nil), "/")

	assert.Contains(t, got["image"], `src="https://www.kth.se/logo.svg"`)
}

func TestMiddleware_CacheQualifier(t *testing.T) {
	api := newBlockAPI(t)
	store := cache.NewMemory()
	h, err := New(Options{
		BlockAPIURL:    api.srv.URL + "/",
		Defaults:       blocks.IDs{"footer": "1"},
		Cache:          store,
		RedisKey:       "app_",
		CacheQualifier: func(c *fiber.Ctx) string { return c.Query("style") },
		Logger:         nop(),
	})
	require.NoError(t, err)

	_, _ = getBlocks(t, newApp(t, h, Locale{Language: "sv"}), "/?style=external")

	_, ok, err := store.Get(t.Context(), "app_external_sv")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMiddleware_ForwardsHeaders(t *testing.T) {
	got := make(chan http.Header, 1)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
	}))
	t.Cleanup(api.Close)

	h, err := New(Options{
		BlockAPIURL: api.URL + "/",
		Defaults:    blocks.IDs{"footer": "1"},
		Headers:     http.Header{"X-Static": {"yes"}},
		RequestHeaders: func(c *fiber.Ctx) http.Header {
			return http.Header{"X-Request-Id": {c.Get("X-Request-Id")}}
		},
		Logger: nop(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	_, err = newApp(t, h, nil).Test(req, -1)
	require.NoError(t, err)

	hdr := <-got
	assert.Equal(t, "yes", hdr.Get("X-Static"))
	assert.Equal(t, "req-1", hdr.Get("X-Request-Id"))
}
