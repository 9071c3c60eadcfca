package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"convrelay/internal/audit"
	"convrelay/internal/dispatch"
	"convrelay/internal/gate"
	"convrelay/internal/identity"
	"convrelay/internal/kv"
	"convrelay/internal/platform/config"
	"convrelay/internal/platform/httpserver"
	"convrelay/internal/platform/logger"
	"convrelay/internal/platform/metrics"
	platformredis "convrelay/internal/platform/redis"
	"convrelay/internal/sink"
	"convrelay/internal/sink/vendors"
	httptransport "convrelay/internal/transport/http"
	"convrelay/internal/vendorsdk"
)

// Readiness budgets per vendor, in poll attempts at the default interval.
// Critical sinks wait longer than best-effort ones.
const (
	morphNotifyAttempts   = 50
	pulseNotifyAttempts   = 100
	journeyNotifyAttempts = 50
	schedulerAttempts     = 120
	identifyAttempts      = 180
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Dispatch logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	auditLog := audit.NewLog()
	m := metrics.New()

	var store kv.Store = kv.NewMemoryStore()
	var health httptransport.HealthChecker
	rc, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if rc != nil {
		store = kv.NewRedisStore(rc.Client)
		health = rc
		log.Info("using redis visitor store")
	} else {
		log.Info("using in-memory visitor store")
	}

	cookies := identity.NewSnapshot()
	resolver := identity.NewResolver(identity.ResolverConfig{
		CookieName: cfg.CookieName,
		CookieWait: cfg.ResolveTimeout,
	}, cookies, store, identity.NewLookupClient(cfg.LookupURL), log, auditLog, m)

	// Vendor clients register only when their endpoint is configured; an
	// absent vendor behaves exactly like one that never finished loading.
	vreg := vendorsdk.NewRegistry()
	if cfg.PulseURL != "" {
		vreg.Register(vendors.PulseName, vendors.NewPulseHTTP(cfg.PulseURL))
	}
	if cfg.MorphURL != "" {
		vreg.Register(vendors.MorphName, vendors.NewMorphHTTP(cfg.MorphURL))
	}
	if cfg.JourneyURL != "" {
		vreg.Register(vendors.JourneyName, vendors.NewJourneyHTTP(cfg.JourneyURL))
	}
	if cfg.SchedulerURL != "" {
		vreg.Register(vendors.SchedulerName, vendors.NewSchedulerHTTP(cfg.SchedulerURL))
	}

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(log))
	bridge := vendors.NewTagBridge(bus)
	pulse := vendors.NewPulse(vreg)

	registry := sink.NewRegistry(log, auditLog,
		sink.Descriptor{
			Sink:         vendors.NewMorph(vreg),
			NotifyGate:   gate.Config{MaxAttempts: morphNotifyAttempts},
			IdentifyGate: gate.Config{MaxAttempts: identifyAttempts},
		},
		sink.Descriptor{
			Sink:         pulse,
			NotifyGate:   gate.Config{MaxAttempts: pulseNotifyAttempts},
			IdentifyGate: gate.Config{MaxAttempts: identifyAttempts},
		},
		sink.Descriptor{
			Sink:       vendors.NewJourney(vreg),
			NotifyGate: gate.Config{MaxAttempts: journeyNotifyAttempts},
		},
		sink.Descriptor{
			Sink:       bridge,
			NotifyGate: gate.Config{MaxAttempts: 1},
		},
	)

	// Identity resolved outside a dispatch (the warm-up path) still fans
	// identify out to every sink that supports it, so a returning visitor is
	// identified before their first submit.
	resolver.OnResolved(func(id identity.Identity) {
		registry.IdentifyAll(context.Background(), id)
	})

	scheduler := vendors.NewScheduler(vreg,
		gate.Config{MaxAttempts: schedulerAttempts},
		cfg.SchedulerTenant, cfg.SchedulerRouter,
		audit.NewOccurrences(store), pulse, auditLog, log)

	dispatcher := dispatch.New(dispatch.Config{
		Resolver:       resolver,
		Registry:       registry,
		Scheduler:      scheduler,
		SchedulerForms: cfg.SchedulerForms,
		Store:          store,
		ResolveTimeout: cfg.ResolveTimeout,
		Log:            log,
		Audit:          auditLog,
		Metrics:        m,
	})

	// Best-effort background work: warm the identity cache and mirror vendor
	// experiments onto the page event bus.
	go dispatcher.WarmUp(context.Background())
	go vendors.SyncExperiments(context.Background(), vreg, bridge, auditLog, log)

	handler := httptransport.New(dispatcher, cookies, auditLog, log)
	router := httptransport.NewRouter(handler, log, health)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting convrelay", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := bus.Close(); err != nil {
		log.Error("closing page event bus", "error", err)
	}
	if rc != nil {
		_ = rc.Close()
	}
}
