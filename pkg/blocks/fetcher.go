package blocks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher performs single block requests against the block API.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewFetcher returns a Fetcher. A nil client means http.DefaultClient and a
// non-positive timeout means DefaultTimeout.
func NewFetcher(client *http.Client, timeout time.Duration, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{client: client, timeout: timeout, log: logger}
}

// Fetch retrieves one block. It never fails: any error or non-2xx status is
// logged and yields an empty HTML string under the block's name.
func (f *Fetcher) Fetch(ctx context.Context, name, target string, headers http.Header) FetchedBlock {
	start := time.Now()
	body, status, err := f.get(ctx, target, headers)
	BlockFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		BlockFetches.WithLabelValues("error").Inc()
		f.log.Warn().Str("block", name).Err(err).Msg("failed to fetch block")
		return FetchedBlock{Name: name}
	}
	if status < 200 || status > 299 {
		BlockFetches.WithLabelValues("bad_status").Inc()
		f.log.Warn().Str("url", target).Int("status", status).Msg("block api returned non-success status")
		return FetchedBlock{Name: name}
	}

	BlockFetches.WithLabelValues("ok").Inc()
	f.log.Debug().Str("block", name).Str("url", target).Dur("duration", time.Since(start)).Msg("block fetched")
	return FetchedBlock{Name: name, HTML: string(body)}
}

func (f *Fetcher) get(ctx context.Context, target string, headers http.Header) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}
