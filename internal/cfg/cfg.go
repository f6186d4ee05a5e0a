package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"

	"github.com/linnemanlabs/haul/internal/routing"
)

const minJWTSecretLen = 32

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	DBMaxConns            int
	SlowQueryMillis       int
	JWTSecret             string
	RoutingProvider       string
	GoogleMapsAPIKey      string
	HEREAPIKey            string
	RoutingTimeoutSeconds int
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 10, "maximum PostgreSQL pool connections (1..200)")
	fs.IntVar(&c.SlowQueryMillis, "slow-query-ms", 0, "log only queries slower than this many milliseconds, failures always log (0 = log all)")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HMAC secret used to verify bearer tokens (at least 32 bytes)")
	fs.StringVar(&c.RoutingProvider, "routing-provider", "", "waypoint ordering provider: google, here, or empty to disable")
	fs.StringVar(&c.GoogleMapsAPIKey, "google-maps-api-key", "", "Google Maps Directions API key")
	fs.StringVar(&c.HEREAPIKey, "here-api-key", "", "HERE Waypoints Sequence API key")
	fs.IntVar(&c.RoutingTimeoutSeconds, "routing-timeout-seconds", 10, "timeout for a single routing provider call (1..120)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for dispatch notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.DBMaxConns <= 0 || c.DBMaxConns > 200 {
		errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be 1..200)", c.DBMaxConns))
	}
	if c.SlowQueryMillis < 0 {
		errs = append(errs, fmt.Errorf("invalid SLOW_QUERY_MS %d (must be >= 0)", c.SlowQueryMillis))
	}

	if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required and must be at least %d bytes", minJWTSecretLen))
	}

	switch c.RoutingProvider {
	case routing.ProviderNone:
	case routing.ProviderGoogle:
		if c.GoogleMapsAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required when ROUTING_PROVIDER=google"))
		}
	case routing.ProviderHERE:
		if c.HEREAPIKey == "" {
			errs = append(errs, errors.New("HERE_API_KEY is required when ROUTING_PROVIDER=here"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid ROUTING_PROVIDER %q (must be google, here or empty)", c.RoutingProvider))
	}
	if c.RoutingTimeoutSeconds <= 0 || c.RoutingTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid ROUTING_TIMEOUT_SECONDS %d (must be 1..120)", c.RoutingTimeoutSeconds))
	}

	if c.SlackWebhookURL != "" {
		if u, err := url.Parse(c.SlackWebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, errors.New("SLACK_WEBHOOK_URL must be an https URL"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
