package httpserver

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// forwardHeadersFromFiber builds the header set sent along with block API requests.
// Keep it conservative: the block API is public and needs no credentials.
func forwardHeadersFromFiber(c *fiber.Ctx) http.Header {
	h := make(http.Header)
	for _, k := range []string{
		"X-Request-Id",
		"Accept-Language",
		"User-Agent",
		"X-Forwarded-For",
		"X-Real-IP",
	} {
		if v := c.Get(k); v != "" {
			h.Set(k, v)
		}
	}
	// request id may have been generated by requestContext
	if id, ok := c.Locals(requestIDKey).(string); ok && id != "" {
		h.Set("X-Request-Id", id)
	}
	return h
}
