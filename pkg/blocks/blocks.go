// Package blocks fetches named HTML blocks from a CMS block API and caches
// the per-language result set.
package blocks

import (
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultKeyPrefix is prepended to every cache key.
	DefaultKeyPrefix = "CortinaBlock_"

	// DefaultCacheTTL is how long a cached block set stays valid.
	DefaultCacheTTL = 600 * time.Second

	// DefaultTimeout bounds a single block fetch.
	DefaultTimeout = 5 * time.Second
)

// Blocks maps a block name to its HTML.
type Blocks map[string]string

// Empty reports whether every block is the empty string.
func (b Blocks) Empty() bool {
	for _, html := range b {
		if html != "" {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy.
func (b Blocks) Clone() Blocks {
	out := make(Blocks, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// FetchedBlock is the outcome of one block fetch. HTML is empty on failure.
type FetchedBlock struct {
	Name string
	HTML string
}

// Languages is the ordered set of supported language codes.
// The first entry is the default.
type Languages []string

// DefaultLanguages is used when no language list is configured.
var DefaultLanguages = Languages{"en", "sv"}

// Default returns the fallback language.
func (l Languages) Default() string {
	if len(l) == 0 {
		return DefaultLanguages[0]
	}
	return l[0]
}

// Normalize maps lang onto the supported set; anything unknown becomes the default.
func (l Languages) Normalize(lang string) string {
	set := l
	if len(set) == 0 {
		set = DefaultLanguages
	}
	lang = strings.TrimSpace(lang)
	for _, s := range set {
		if strings.EqualFold(s, lang) {
			return s
		}
	}
	return set.Default()
}

// BuildURL returns the block API url for one block:
// {baseURL}{blockID}?l={lang}[&v={version}].
func BuildURL(baseURL, blockID, lang, version string) string {
	q := url.Values{}
	q.Set("l", lang)
	if version != "" {
		q.Set("v", version)
	}
	return baseURL + blockID + "?" + q.Encode()
}

// CacheKey builds {prefix}{lang} or {prefix}{qualifier}_{lang}.
func CacheKey(prefix, qualifier, lang string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if qualifier == "" {
		return prefix + lang
	}
	return prefix + qualifier + "_" + lang
}
