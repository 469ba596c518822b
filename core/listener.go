package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openlearn/sessionkit/identity"
	"github.com/openlearn/sessionkit/metrics"
)

// SessionListener mirrors native-provider change events into the session
// store. It subscribes once for the lifetime of the service; errored events
// are published as Failed but leave the subscription in place.
type SessionListener struct {
	provider     identity.Provider
	ephemeral    EphemeralStore
	materializer *Materializer
	store        *Store
	timeout      time.Duration
	now          func() time.Time
	log          *zap.Logger
	cancel       func()
}

// Start subscribes to the provider's change notifications. It must be called
// at most once.
func (l *SessionListener) Start(ctx context.Context) error {
	cancel, err := l.provider.Subscribe(ctx, l.onChange)
	if err != nil {
		return err
	}
	l.cancel = cancel
	return nil
}

// Close releases the provider subscription.
func (l *SessionListener) Close() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *SessionListener) onChange(ev identity.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if ev.Err != nil {
		l.log.Warn("provider change event errored", zap.Error(ev.Err))
		l.store.publish(Failed(ev.Err.Error()))
		return
	}

	if ev.Assertion != nil {
		p, err := l.materializer.EnsureProfile(ctx, *ev.Assertion)
		if err != nil {
			l.log.Error("profile materialization failed", zap.Error(err))
			l.store.publish(Failed(err.Error()))
			return
		}
		l.store.publish(Authenticated(p))
		metrics.SignIns.WithLabelValues(p.Provider).Inc()
		return
	}

	// No native identity. An external-provider sign-in may have left a
	// bridge record across the redirect boundary; it authenticates this
	// session without materializing a persisted profile.
	rec, ok, err := consumeBridgeRecord(ctx, l.ephemeral)
	if err != nil {
		l.log.Error("bridge record read failed", zap.Error(err))
		l.store.publish(Failed(err.Error()))
		return
	}
	if ok {
		l.store.publish(Authenticated(rec.sessionProfile(l.now())))
		metrics.SignIns.WithLabelValues(rec.Provider).Inc()
		return
	}
	l.store.publish(Unauthenticated())
}
