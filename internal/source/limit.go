package source

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// limited waits for a token before every Open.
type limited struct {
	next    Opener
	limiter *rate.Limiter
}

// Limit throttles Open calls on o through limiter. Reads from already
// opened streams are not throttled. A nil limiter returns o unchanged.
func Limit(o Opener, limiter *rate.Limiter) Opener {
	if limiter == nil {
		return o
	}
	return &limited{next: o, limiter: limiter}
}

func (l *limited) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Open(ctx, key)
}

func (l *limited) Close() error {
	return Close(l.next)
}
