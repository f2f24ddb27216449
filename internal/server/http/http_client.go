package httpserver

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// newBlockClient returns the client used for block API calls. Request
// deadlines come from the fetch timeout; the client only bounds dialing.
func newBlockClient(maxConns int) *http.Client {
	if maxConns <= 0 {
		maxConns = 16
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConnsPerHost: maxConns,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

// normalizeAPIURL adds a missing scheme and a trailing slash so block ids can
// be appended directly.
func normalizeAPIURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid api_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid api_url %q: missing host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}
