package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck returns a CheckFunc that fails when the process runs
// more than threshold goroutines. Registered as a liveness check it catches
// goroutine leaks, for example handlers blocked forever on a dependency,
// before they exhaust memory. The count is sampled on every probe.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// Pinger is a dependency that can be checked with a round trip. It is
// satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a CheckFunc that fails when p cannot be reached within
// the check timeout. It suits readiness checks: a database outage should take
// the instance out of rotation, not restart it. The ping error is wrapped,
// so the probe body shows the underlying cause.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// NonEmptyCheck returns a CheckFunc that fails while size reports zero. The
// what argument names the collection in the failure message.
//
// The server registers it as a readiness check over the catalog, so an
// instance that loaded an empty menu never receives chat traffic.
func NonEmptyCheck(what string, size func() int) CheckFunc {
	return func(_ context.Context) error {
		if size() == 0 {
			return errors.Errorf("%s is empty", what)
		}
		return nil
	}
}
