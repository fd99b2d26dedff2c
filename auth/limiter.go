package auth

import (
	"context"
	"runtime"
)

type (
	// Limiter bounds how many CPU heavy operations (password
	// derivation, token sealing) run at once, so they cannot starve
	// the goroutines serving requests.
	Limiter struct {
		slots chan struct{}
	}
)

// NewLimiter creates a limiter with n slots. n <= 0 uses half the
// available CPUs, with a minimum of one.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = runtime.NumCPU() / 2
		if n < 1 {
			n = 1
		}
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Do runs fn once a slot is available, or gives up when ctx is
// cancelled first.
func (l *Limiter) Do(ctx context.Context, fn func()) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slots }()
	fn()
	return nil
}
