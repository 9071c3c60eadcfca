// Package config loads the relay's configuration from the environment.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the relay needs at startup. All knobs come from
// CONVRELAY_* environment variables with development defaults so main stays
// lean.
type Config struct {
	Addr string

	// RedisURL selects the durable visitor store; empty means the in-memory
	// store (single instance, state lost on restart).
	RedisURL string

	// LookupURL is the identity lookup service endpoint.
	LookupURL string

	// CookieName is the tracking cookie carrying the lookup token.
	CookieName string

	// ResolveTimeout bounds how long a dispatch waits for identity before
	// degrading to an identity-less event.
	ResolveTimeout time.Duration

	// Scheduler routing and the form ids allowed to trigger it.
	SchedulerTenant string
	SchedulerRouter string
	SchedulerForms  []string

	// Vendor collection endpoints; an unset endpoint leaves that vendor
	// unregistered and its readiness gate times out.
	PulseURL     string
	MorphURL     string
	JourneyURL   string
	SchedulerURL string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:            getenv("CONVRELAY_ADDR", ":8080"),
		RedisURL:        os.Getenv("CONVRELAY_REDIS_URL"),
		LookupURL:       getenv("CONVRELAY_LOOKUP_URL", "http://localhost:8090/contacts"),
		CookieName:      getenv("CONVRELAY_COOKIE_NAME", "vtk"),
		ResolveTimeout:  getduration("CONVRELAY_RESOLVE_TIMEOUT", 5*time.Second),
		SchedulerTenant: getenv("CONVRELAY_SCHEDULER_TENANT", "omnipresent"),
		SchedulerRouter: getenv("CONVRELAY_SCHEDULER_ROUTER", "book_a_call"),
		SchedulerForms:  getlist("CONVRELAY_SCHEDULER_FORMS"),
		PulseURL:        os.Getenv("CONVRELAY_PULSE_URL"),
		MorphURL:        os.Getenv("CONVRELAY_MORPH_URL"),
		JourneyURL:      os.Getenv("CONVRELAY_JOURNEY_URL"),
		SchedulerURL:    os.Getenv("CONVRELAY_SCHEDULER_URL"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getlist(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
