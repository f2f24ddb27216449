package blocks

// Block names with a special meaning.
const (
	KlaroConfig     = "klaroConfig"
	MatomoAnalytics = "matomoAnalytics"
)

// CookieScriptBlocks are the consent and analytics snippets that can be skipped outside production.
var CookieScriptBlocks = []string{KlaroConfig, MatomoAnalytics}

// IDs maps a block name to its opaque block API identifier.
type IDs map[string]string

// DefaultIDs returns the production block set.
func DefaultIDs() IDs {
	return IDs{
		"title":         "1.260060",
		"megaMenu":      "1.855134",
		"secondaryMenu": "1.865038",
		"image":         "1.77257",
		"footer":        "1.202278",
		"search":        "1.77262",
		KlaroConfig:     "1.1137647",
		MatomoAnalytics: "1.714097",
	}
}

// DevelopmentIDs returns the block set for local development against the
// reference CMS, which carries its own consent configuration.
func DevelopmentIDs() IDs {
	ids := DefaultIDs()
	ids[KlaroConfig] = "1.1011389"
	return ids
}

// MergeIDs returns defaults with overrides applied key by key. Keys only
// present in defaults are kept. Neither input is modified.
func MergeIDs(defaults, overrides IDs) IDs {
	out := make(IDs, len(defaults)+len(overrides))
	for name, id := range defaults {
		out[name] = id
	}
	for name, id := range overrides {
		out[name] = id
	}
	return out
}

// Without returns a copy of ids minus the given names.
func (ids IDs) Without(names ...string) IDs {
	out := make(IDs, len(ids))
	for name, id := range ids {
		out[name] = id
	}
	for _, name := range names {
		delete(out, name)
	}
	return out
}
