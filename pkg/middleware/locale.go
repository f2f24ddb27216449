package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locale is the request-scoped locale state read by the blocks middleware.
type Locale struct {
	Language string
}

// DetectLocale stores a Locale in c.Locals(key) picked from the l query
// parameter, then Accept-Language, then the first supported language.
func DetectLocale(key string, supported []string) fiber.Handler {
	if key == "" {
		key = DefaultLocaleKey
	}
	return func(c *fiber.Ctx) error {
		lang := ""
		if l := c.Query("l"); l != "" && isSupported(l, supported) {
			lang = strings.ToLower(l)
		} else if len(supported) > 0 {
			lang = c.AcceptsLanguages(supported...)
		}
		if lang == "" && len(supported) > 0 {
			lang = supported[0]
		}
		c.Locals(key, Locale{Language: lang})
		return c.Next()
	}
}

func isSupported(lang string, supported []string) bool {
	for _, s := range supported {
		if strings.EqualFold(s, lang) {
			return true
		}
	}
	return false
}

func languageFromLocals(c *fiber.Ctx, key string) string {
	switch v := c.Locals(key).(type) {
	case Locale:
		return v.Language
	case *Locale:
		if v != nil {
			return v.Language
		}
	case string:
		return v
	}
	return ""
}
