package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"blockd/internal/config"
	"blockd/pkg/blocks"
	"blockd/pkg/cache"
)

type blockAPI struct {
	*httptest.Server
	mu      sync.Mutex
	queries []string
	headers []http.Header
}

func newBlockAPI(t *testing.T) *blockAPI {
	t.Helper()
	api := &blockAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.queries = append(api.queries, r.URL.RequestURI())
		api.headers = append(api.headers, r.Header.Clone())
		api.mu.Unlock()
		w.Write([]byte("<nav>" + strings.TrimPrefix(r.URL.Path, "/") + " " + r.URL.Query().Get("l") + "</nav>"))
	}))
	t.Cleanup(api.Close)
	return api
}

func (a *blockAPI) snapshot() ([]string, []http.Header) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.queries...), append([]http.Header(nil), a.headers...)
}

func testConfig(apiURL, env string) *config.FinalConfig {
	return &config.FinalConfig{
		Env: env,
		Blocks: config.Blocks{
			APIURL:    apiURL,
			Languages: []string{"en", "sv"},
			IDs:       map[string]string{"footer": "2"},
		},
		Cache:        config.Cache{Driver: config.CacheMemory},
		FetchTimeout: time.Second,
		CacheTTL:     time.Minute,
	}
}

func newTestApp(t *testing.T, cfg *config.FinalConfig, deps Deps) *fiber.App {
	t.Helper()
	deps.Logger = zerolog.Nop()
	app := fiber.New()
	app.Use(requestContext(deps.Logger))
	if err := RegisterRoutes(app, cfg, deps); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	return app
}

func get(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test err=%v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestRegisterRoutes_Health(t *testing.T) {
	api := newBlockAPI(t)
	app := newTestApp(t, testConfig(api.URL, "prod"), Deps{IDs: blocks.IDs{"title": "1"}})

	resp, body := get(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if q, _ := api.snapshot(); len(q) != 0 {
		t.Fatalf("health must not fetch blocks, got %v", q)
	}
}

func TestRegisterRoutes_BlocksJSON(t *testing.T) {
	api := newBlockAPI(t)
	app := newTestApp(t, testConfig(api.URL, "prod"), Deps{IDs: blocks.IDs{"title": "1"}})

	req := httptest.NewRequest(http.MethodGet, "/blocks?l=sv", nil)
	req.Header.Set("X-Request-Id", "abc")
	resp, body := get(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("X-Request-Id"); got != "abc" {
		t.Fatalf("X-Request-Id=%q want abc", got)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("json: %v (%s)", err, body)
	}
	want := map[string]string{"title": "<nav>1 sv</nav>", "footer": "<nav>2 sv</nav>"}
	if len(got) != len(want) || got["title"] != want["title"] || got["footer"] != want["footer"] {
		t.Fatalf("blocks=%v want %v", got, want)
	}

	_, headers := api.snapshot()
	for _, h := range headers {
		if h.Get("X-Request-Id") != "abc" {
			t.Fatalf("request id not forwarded: %v", h)
		}
	}
}

func TestRegisterRoutes_PageUsesCache(t *testing.T) {
	api := newBlockAPI(t)
	store := cache.NewMemory()
	app := newTestApp(t, testConfig(api.URL, "prod"), Deps{Cache: store, IDs: blocks.IDs{"title": "1"}})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", "sv")
		resp, body := get(t, app, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status=%d want %d", resp.StatusCode, http.StatusOK)
		}
		if !strings.Contains(body, `<html lang="sv">`) || !strings.Contains(body, "<nav>2 sv</nav>") {
			t.Fatalf("unexpected page: %s", body)
		}
	}

	if q, _ := api.snapshot(); len(q) != 2 {
		t.Fatalf("block api calls=%d want 2 (second page from cache)", len(q))
	}
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	api := newBlockAPI(t)
	app := newTestApp(t, testConfig(api.URL, "prod"), Deps{IDs: blocks.IDs{"title": "1"}})
	get(t, app, httptest.NewRequest(http.MethodGet, "/blocks", nil))

	resp, body := get(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(body, "blockd_block_fetches_total") {
		t.Fatalf("metrics missing block counters")
	}
}

func TestRegisterRoutes_DebugConfig_DevOnly(t *testing.T) {
	api := newBlockAPI(t)

	// non-dev: should be 404
	app := newTestApp(t, testConfig(api.URL, "prod"), Deps{})
	resp, _ := get(t, app, httptest.NewRequest(http.MethodGet, "/debug/config", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want %d", resp.StatusCode, http.StatusNotFound)
	}

	// dev: should be 200 and never leak the password
	cfg := testConfig(api.URL, "dev")
	cfg.Cache.Pass = "secret"
	app2 := newTestApp(t, cfg, Deps{})
	resp2, body := get(t, app2, httptest.NewRequest(http.MethodGet, "/debug/config", nil))
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status2=%d want %d", resp2.StatusCode, http.StatusOK)
	}
	if strings.Contains(body, "secret") {
		t.Fatalf("password leaked: %s", body)
	}
}

func TestRegisterRoutes_InvalidConfig(t *testing.T) {
	cfg := testConfig("http://blocks.local/", "prod")
	cfg.Cache.KeyPrefix = "app_"

	// key prefix without an external cache is rejected by the middleware
	err := RegisterRoutes(fiber.New(), cfg, Deps{Logger: zerolog.Nop()})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeAPIURL(t *testing.T) {
	cases := map[string]string{
		"blocks.local/cm":         "http://blocks.local/cm/",
		"https://www.kth.se/cm/":  "https://www.kth.se/cm/",
		" http://localhost:3000 ": "http://localhost:3000/",
	}
	for in, want := range cases {
		got, err := normalizeAPIURL(in)
		if err != nil {
			t.Fatalf("normalizeAPIURL(%q) err=%v", in, err)
		}
		if got != want {
			t.Fatalf("normalizeAPIURL(%q)=%q want %q", in, got, want)
		}
	}
	if _, err := normalizeAPIURL("http://"); err == nil {
		t.Fatal("expected error for missing host")
	}
}
