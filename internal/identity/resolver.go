package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"convrelay/internal/audit"
	"convrelay/internal/gate"
	"convrelay/internal/kv"
	"convrelay/internal/platform/metrics"
)

// ErrCookieTimeout is returned when the tracking cookie never appears within
// the resolver's wait budget.
var ErrCookieTimeout = errors.New("tracking cookie never appeared")

// DefaultCookieWait bounds how long Ensure waits for the tracking cookie.
const DefaultCookieWait = 5 * time.Second

// ResolverConfig carries the resolver's knobs.
type ResolverConfig struct {
	// CookieName is the tracking cookie carrying the lookup token.
	CookieName string
	// CookieWait bounds the cookie poll; zero means DefaultCookieWait.
	CookieWait time.Duration
	// PollInterval spaces cookie poll attempts; zero means gate.DefaultInterval.
	PollInterval time.Duration
}

// Resolver resolves the visitor identity once and memoizes it through the
// store. Concurrent Ensure calls coalesce into a single in-flight resolution.
type Resolver struct {
	cfg     ResolverConfig
	cookies CookieSource
	store   kv.Store
	lookup  *LookupClient
	log     *slog.Logger
	audit   *audit.Log
	metrics *metrics.Metrics

	flight singleflight.Group

	mu        sync.Mutex
	listeners []func(Identity)
	notified  bool
}

func NewResolver(cfg ResolverConfig, cookies CookieSource, store kv.Store, lookup *LookupClient, log *slog.Logger, auditLog *audit.Log, m *metrics.Metrics) *Resolver {
	if cfg.CookieWait <= 0 {
		cfg.CookieWait = DefaultCookieWait
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = gate.DefaultInterval
	}
	return &Resolver{
		cfg:     cfg,
		cookies: cookies,
		store:   store,
		lookup:  lookup,
		log:     log,
		audit:   auditLog,
		metrics: m,
	}
}

// OnResolved registers a listener fired once, the first time the identity
// becomes known in this process. Used by sinks whose identify call waits on
// identity.
func (r *Resolver) OnResolved(fn func(Identity)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Ensure returns the visitor identity, resolving it if necessary:
// a complete persisted identity short-circuits everything; otherwise Ensure
// waits (bounded) for the tracking cookie, calls the lookup service, and
// persists both fields before returning. Safe to call concurrently; all
// callers share one in-flight resolution, but each caller's own deadline
// still applies: a caller whose context expires gets ctx.Err() immediately
// while the shared flight runs on for the others.
func (r *Resolver) Ensure(ctx context.Context) (Identity, error) {
	ch := r.flight.DoChan("identity", func() (any, error) {
		return r.resolve(ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Identity{}, res.Err
		}
		return res.Val.(Identity), nil
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	}
}

func (r *Resolver) resolve(ctx context.Context) (Identity, error) {
	if id, ok := r.stored(ctx); ok {
		if r.metrics != nil {
			r.metrics.IdentityCacheHits.Inc()
		}
		r.notify(id)
		return id, nil
	}

	token, err := r.awaitCookie(ctx)
	if err != nil {
		return Identity{}, err
	}

	r.audit.Logf("fetching contact info for token %s", token)
	if r.metrics != nil {
		r.metrics.IdentityLookups.Inc()
	}
	id, err := r.lookup.Fetch(ctx, token)
	if err != nil {
		r.audit.Errorf("identity lookup: %v", err)
		return Identity{}, err
	}

	// Both values are in hand before anything is written, so no reader can
	// observe a half-written identity. A failed lookup never reaches here
	// and therefore never disturbs previously stored state.
	err = r.store.SetMulti(ctx, map[string]string{
		KeyVisitorID: id.VisitorID,
		KeyEmail:     id.Email,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("persist identity: %w", err)
	}

	r.log.InfoContext(ctx, "visitor identity resolved", "visitor_id", id.VisitorID)
	r.audit.Logf("identity stored: contact %s", id.VisitorID)
	r.notify(id)
	return id, nil
}

// stored returns the persisted identity if it is complete. A partial pair is
// treated as unresolved.
func (r *Resolver) stored(ctx context.Context) (Identity, bool) {
	visitorID, err := r.store.Get(ctx, KeyVisitorID)
	if err != nil {
		return Identity{}, false
	}
	email, err := r.store.Get(ctx, KeyEmail)
	if err != nil {
		return Identity{}, false
	}
	id := Identity{VisitorID: visitorID, Email: email}
	return id, id.Complete()
}

func (r *Resolver) awaitCookie(ctx context.Context) (string, error) {
	attempts := int(r.cfg.CookieWait / r.cfg.PollInterval)
	if attempts < 1 {
		attempts = 1
	}

	err := gate.Await(ctx, func() bool {
		_, ok := r.cookies.Get(r.cfg.CookieName)
		return ok
	}, gate.Config{Name: "cookie:" + r.cfg.CookieName, MaxAttempts: attempts, Interval: r.cfg.PollInterval})
	if err != nil {
		if errors.Is(err, gate.ErrReadinessTimeout) {
			r.audit.Errorf("timeout waiting for %s cookie", r.cfg.CookieName)
			return "", fmt.Errorf("%w: %s", ErrCookieTimeout, r.cfg.CookieName)
		}
		return "", err
	}

	token, _ := r.cookies.Get(r.cfg.CookieName)
	return token, nil
}

func (r *Resolver) notify(id Identity) {
	r.mu.Lock()
	if r.notified {
		r.mu.Unlock()
		return
	}
	r.notified = true
	listeners := make([]func(Identity), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}
