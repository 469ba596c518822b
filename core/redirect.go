package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openlearn/sessionkit/identity"
	"github.com/openlearn/sessionkit/metrics"
)

// RedirectResultResolver performs the one-shot startup check for a completed
// native-provider redirect sign-in.
//
// It may race the session listener for the same identity: both funnel through
// the idempotent materializer, so the store converges on the same profile
// regardless of which resolves first.
type RedirectResultResolver struct {
	provider     identity.Provider
	materializer *Materializer
	store        *Store
	timeout      time.Duration
	log          *zap.Logger
	once         sync.Once
}

// ResolveOnce awaits the provider's pending-redirect check. Subsequent calls
// are no-ops.
func (r *RedirectResultResolver) ResolveOnce(ctx context.Context) {
	r.once.Do(func() { r.resolve(ctx) })
}

func (r *RedirectResultResolver) resolve(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	a, err := r.provider.ResolveRedirectResult(ctx)
	if err != nil {
		r.log.Warn("redirect result resolution failed", zap.Error(err))
		r.store.publish(Failed(err.Error()))
		return
	}
	if a == nil {
		// No pending redirect; the listener owns the outcome.
		return
	}
	p, err := r.materializer.EnsureProfile(ctx, *a)
	if err != nil {
		r.log.Error("profile materialization failed", zap.Error(err))
		r.store.publish(Failed(err.Error()))
		return
	}
	r.store.publish(Authenticated(p))
	metrics.SignIns.WithLabelValues(p.Provider).Inc()
}
