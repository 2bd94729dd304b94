package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration: the server's listening
// setup plus the client pool/session/health-check knobs from the
// connection options table (WRITE_TIMEOUT_MILLIS, RESPONSE_TIMEOUT_MILLIS,
// MAX_RESPONSE_LENGTH, ...).
type Config struct {
	Port         int
	ReadTimeout  int
	WriteTimeout int
	Env          string

	// Client connection options.
	WriteTimeoutMillis       int
	ResponseTimeoutMillis    int
	MaxResponseLength        int64
	NegotiationTimeoutMillis int
	MaxConnectionsPerPool    int
	MaxRequestsSentPerSession int64

	// Health-check engine defaults.
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}

// New loads configuration from flags (and env var overrides).
func New() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.Port, "port", 8080, "HTTP server port")
	flag.IntVar(&cfg.ReadTimeout, "read-timeout", 10, "HTTP read timeout (seconds)")
	flag.IntVar(&cfg.WriteTimeout, "write-timeout", 30, "HTTP write timeout (seconds)")
	flag.StringVar(&cfg.Env, "env", "development", "Environment (development/production)")

	flag.IntVar(&cfg.WriteTimeoutMillis, "client-write-timeout-ms", 10_000, "per-request client write deadline")
	flag.IntVar(&cfg.ResponseTimeoutMillis, "client-response-timeout-ms", 15_000, "end-to-end client reply deadline")
	var maxResponseLength int64
	flag.Int64Var(&maxResponseLength, "client-max-response-length", 0, "max response body size, 0 = unlimited")
	flag.IntVar(&cfg.NegotiationTimeoutMillis, "client-negotiation-timeout-ms", 3_000, "connect/ALPN negotiation deadline")
	flag.IntVar(&cfg.MaxConnectionsPerPool, "client-max-conns-per-pool-key", 0, "0 = unlimited idle connections per pool key")
	var maxRequestsSent int64
	flag.Int64Var(&maxRequestsSent, "client-max-requests-sent", 1<<29, "requests sent on one session before graceful drain")

	flag.DurationVar(&cfg.HealthCheckInterval, "healthcheck-interval", 3*time.Second, "fixed backoff between probes")
	flag.DurationVar(&cfg.HealthCheckTimeout, "healthcheck-timeout", 1*time.Second, "per-probe timeout")

	flag.Parse()

	cfg.MaxResponseLength = maxResponseLength
	cfg.MaxRequestsSentPerSession = maxRequestsSent

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	return cfg
}
