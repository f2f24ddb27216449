package httpserver

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"blockd/internal/config"
	"blockd/pkg/blocks"
	"blockd/pkg/middleware"
)

// Deps are the runtime pieces built by main.
type Deps struct {
	Cache blocks.Cache
	// IDs are the default block ids, blocks.DefaultIDs when nil.
	IDs    blocks.IDs
	Logger zerolog.Logger
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>blockd</title>
{{index .Blocks "klaroConfig"}}
</head>
<body>
<header>
{{index .Blocks "image"}}
{{index .Blocks "title"}}
{{index .Blocks "secondaryMenu"}}
{{index .Blocks "megaMenu"}}
{{index .Blocks "search"}}
</header>
<main></main>
{{index .Blocks "footer"}}
{{index .Blocks "matomoAnalytics"}}
</body>
</html>
`))

// RegisterRoutes строит маршруты: служебные эндпоинты и страницы с блоками.
func RegisterRoutes(app *fiber.App, cfg *config.FinalConfig, deps Deps) error {
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	if strings.EqualFold(strings.TrimSpace(cfg.Env), "dev") {
		app.Get("/debug/config", func(c *fiber.Ctx) error {
			out, err := cfg.Pretty()
			if err != nil {
				return fiber.NewError(http.StatusInternalServerError, err.Error())
			}
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return c.SendString(out)
		})
	}

	apiURL, err := normalizeAPIURL(cfg.Blocks.APIURL)
	if err != nil {
		return err
	}

	opts := middleware.Options{
		BlockAPIURL:        apiURL,
		Version:            cfg.Blocks.Version,
		Blocks:             cfg.Blocks.IDs,
		Defaults:           deps.IDs,
		SupportedLanguages: cfg.Blocks.Languages,
		Cache:              deps.Cache,
		RedisKey:           cfg.Cache.KeyPrefix,
		CacheTTL:           cfg.CacheTTL,
		SkipCookieScripts:  cfg.Blocks.SkipCookieScripts,
		Debug:              cfg.Cache.Debug,
		Timeout:            cfg.FetchTimeout,
		MaxConcurrency:     cfg.Blocks.MaxConcurrency,
		HTTPClient:         newBlockClient(cfg.Blocks.MaxConcurrency),
		RequestHeaders:     forwardHeadersFromFiber,
		Logger:             &deps.Logger,
	}
	if cfg.Format.Enabled {
		f := cfg.Format.Config
		opts.Format = &f
	}

	attach, err := middleware.New(opts)
	if err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	pages := app.Group("/", middleware.DetectLocale("", cfg.Blocks.Languages), attach)
	pages.Get("/blocks", func(c *fiber.Ctx) error {
		return c.JSON(middleware.FromLocals(c, ""))
	})
	pages.Get("/", renderPage)
	return nil
}

func renderPage(c *fiber.Ctx) error {
	lang := ""
	if l, ok := c.Locals(middleware.DefaultLocaleKey).(middleware.Locale); ok {
		lang = l.Language
	}

	found := middleware.FromLocals(c, "")
	html := make(map[string]template.HTML, len(found))
	for name, s := range found {
		html[name] = template.HTML(s) // блоки приходят из CMS как готовая разметка
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, struct {
		Lang   string
		Blocks map[string]template.HTML
	}{lang, html}); err != nil {
		l := reqLogger(c)
		l.Error().Err(err).Msg("render page")
		return fiber.NewError(http.StatusInternalServerError, "render page")
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
