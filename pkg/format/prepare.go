package format

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"blockd/pkg/blocks"
)

// URLs used when rewriting blocks.
type URLs struct {
	// Prod is the public site root, used for the logo and global locale links.
	Prod string `yaml:"prod"`
	// Request is the current request URI (path and query).
	Request string `yaml:"-"`
	// App is the application host and path prefix.
	App string `yaml:"app"`
	// SiteURL overrides App as the site name target.
	SiteURL string `yaml:"site_url"`
}

type Selectors struct {
	Logo                string `yaml:"logo"`
	SiteName            string `yaml:"site_name"`
	SecondaryMenuLocale string `yaml:"secondary_menu_locale"`
}

// Config controls Prepare.
type Config struct {
	URLs       URLs      `yaml:"urls"`
	SiteName   string    `yaml:"site_name"`
	LocaleText string    `yaml:"locale_text"`
	Selectors  Selectors `yaml:"selectors"`
	// GlobalLink points the locale link at the public site root instead of the current page.
	GlobalLink bool `yaml:"global_link"`
}

// DefaultSelectors match the markup of the standard blocks.
var DefaultSelectors = Selectors{
	Logo:                ".mainLogo img",
	SiteName:            ".siteName a",
	SecondaryMenuLocale: ".block.links a[hreflang]",
}

// DefaultProdURL is the public site root.
const DefaultProdURL = "https://www.kth.se"

func (c Config) withDefaults() Config {
	if c.URLs.Prod == "" {
		c.URLs.Prod = DefaultProdURL
	}
	if c.Selectors.Logo == "" {
		c.Selectors.Logo = DefaultSelectors.Logo
	}
	if c.Selectors.SiteName == "" {
		c.Selectors.SiteName = DefaultSelectors.SiteName
	}
	if c.Selectors.SecondaryMenuLocale == "" {
		c.Selectors.SecondaryMenuLocale = DefaultSelectors.SecondaryMenuLocale
	}
	return c
}

// Prepare adjusts the logo, site name and locale link blocks. Blocks that are
// missing or empty are left alone; in is not modified.
func Prepare(in blocks.Blocks, cfg Config) blocks.Blocks {
	cfg = cfg.withDefaults()
	out := in.Clone()

	if s := out["image"]; s != "" {
		out["image"] = rewrite(s, cfg.Selectors.Logo, func(sel *goquery.Selection) {
			img := sel.First()
			src, _ := img.Attr("src")
			img.SetAttr("src", cfg.URLs.Prod+src)
		})
	}

	if s := out["title"]; s != "" {
		out["title"] = rewrite(s, cfg.Selectors.SiteName, func(sel *goquery.Selection) {
			link := sel.First()
			if cfg.URLs.SiteURL != "" {
				link.SetAttr("href", cfg.URLs.SiteURL)
			} else {
				link.SetAttr("href", cfg.URLs.App)
			}
			if cfg.SiteName != "" {
				link.SetText(cfg.SiteName)
			}
		})
	}

	if s := out["secondaryMenu"]; s != "" {
		out["secondaryMenu"] = rewrite(s, cfg.Selectors.SecondaryMenuLocale, func(sel *goquery.Selection) {
			rewriteLocaleLink(sel.First(), cfg)
		})
	}

	return out
}

func rewriteLocaleLink(link *goquery.Selection, cfg Config) {
	target := resolve(cfg.URLs.App, cfg.URLs.Request)
	q := target.Query()

	langSegment := ""
	hreflang, _ := link.Attr("hreflang")
	if strings.HasPrefix(hreflang, "en") {
		q.Set("l", "en")
		langSegment = "/en"
	} else {
		q.Set("l", "sv")
	}
	target.RawQuery = q.Encode()

	if cfg.LocaleText != "" {
		link.SetText(cfg.LocaleText)
	}

	if cfg.GlobalLink {
		link.SetAttr("href", cfg.URLs.Prod+langSegment)
		return
	}
	link.SetAttr("href", target.String())
}

// resolve joins the request URI onto the app URL, like a browser would.
func resolve(app, request string) *url.URL {
	base, err := url.Parse(app)
	if err != nil {
		base = &url.URL{}
	}
	ref, err := url.Parse(request)
	if err != nil {
		return base
	}
	return base.ResolveReference(ref)
}
