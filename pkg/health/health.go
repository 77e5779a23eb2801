// Package health serves liveness and readiness probes.
//
// Checks run on demand when a probe endpoint is hit. All checks of a probe
// run concurrently, each bounded by its own timeout, and the probe fails if
// any of them returns an error.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc is a health check. It returns nil when the checked component is
// healthy, or an error describing the problem; the error text is reported
// in the probe body. The context carries the check timeout and the probe
// request's cancellation, and a check should return promptly once it is done.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

func (c check) run(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.fn(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "check timed out")
	}
	return nil
}

// Health holds the liveness and readiness checks of a service together with
// a manual readiness flag. It is safe for concurrent use: checks may be
// registered while probes are being served.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []check
	readiness []check
}

// New returns a Health with no checks. It reports live immediately and not
// ready until SetReady(true) is called, so traffic is only routed once
// startup has completed.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check for /livez. Liveness checks should only
// fail when the process itself is broken and a restart would help, such as a
// goroutine leak. A non-positive timeout leaves the check bounded only by the
// probe request.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check for /readyz. Readiness checks cover
// dependencies and state the instance needs to serve traffic, such as the
// database or a loaded catalog. A failing readiness check takes the instance
// out of rotation without restarting it.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady sets the manual readiness flag. The server marks itself ready
// after startup and unready at the start of graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady(ctx context.Context) bool {
	if !h.ready.Load() {
		return false
	}
	return len(runChecks(ctx, h.snapshot(false))) == 0
}

func (h *Health) snapshot(live bool) []check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.readiness
	if live {
		src = h.liveness
	}
	return append([]check(nil), src...)
}

// runChecks runs checks concurrently and returns failures by check name.
func runChecks(ctx context.Context, checks []check) map[string]string {
	var (
		mu       sync.Mutex
		failures = make(map[string]string)
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			if err := c.run(ctx); err != nil {
				mu.Lock()
				failures[c.name] = err.Error()
				mu.Unlock()
			}
			// Failures are collected, not propagated, so one failing check
			// does not cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

// LiveEndpoint is an http.HandlerFunc for /livez. It runs every liveness
// check and responds 200 {"status":"ok"} when all pass, or 503
// {"status":"unhealthy","checks":{name: error}} listing the failures.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, runChecks(r.Context(), h.snapshot(true)))
}

// ReadyEndpoint is an http.HandlerFunc for /readyz. It responds like
// LiveEndpoint over the readiness checks, and additionally fails with a
// "_readiness" entry while the service is not marked ready, even if every
// check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := runChecks(r.Context(), h.snapshot(false))
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeResponse(w, failures)
}

func writeResponse(w http.ResponseWriter, failures map[string]string) {
	status := http.StatusOK
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
