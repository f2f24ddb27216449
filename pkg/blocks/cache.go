package blocks

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// Cache stores whole block sets by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (map[string]string, bool, error)
	Set(ctx context.Context, key string, value map[string]string, ttl time.Duration) error
}

// ErrMissingURL is returned when no block API url is given.
var ErrMissingURL = errors.New("block api url must be specified")

// isConnectionError reports whether err looks like an unreachable or broken cache backend.
func isConnectionError(err error) bool {
	var opErr *net.OpError
	switch {
	case errors.As(err, &opErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
