package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		DBMaxConns:            10,
		JWTSecret:             testSecret,
		RoutingTimeoutSeconds: 10,
	}
}

func with(mut func(*Config)) Config {
	c := validBase()
	mut(&c)
	return c
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, want 10", c.DBMaxConns)
	}
	if c.RoutingTimeoutSeconds != 10 {
		t.Errorf("RoutingTimeoutSeconds = %d, want 10", c.RoutingTimeoutSeconds)
	}
	if c.RoutingProvider != "" || c.DatabaseURL != "" {
		t.Errorf("RoutingProvider/DatabaseURL = %q/%q, want empty", c.RoutingProvider, c.DatabaseURL)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://localhost/haul",
		"-jwt-secret", testSecret,
		"-routing-provider", "here",
		"-here-api-key", "hk",
		"-routing-timeout-seconds", "5",
		"-slow-query-ms", "250",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://localhost/haul" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.RoutingProvider != "here" || c.HEREAPIKey != "hk" {
		t.Errorf("routing = %q/%q, want here/hk", c.RoutingProvider, c.HEREAPIKey)
	}
	if c.RoutingTimeoutSeconds != 5 {
		t.Errorf("RoutingTimeoutSeconds = %d, want 5", c.RoutingTimeoutSeconds)
	}
	if c.SlowQueryMillis != 250 {
		t.Errorf("SlowQueryMillis = %d, want 250", c.SlowQueryMillis)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name:    "minimum valid values",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.DBMaxConns, c.RoutingTimeoutSeconds = 1, 2, 1, 1, 1 }),
			wantErr: false,
		},
		{
			name:    "maximum valid values",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.DBMaxConns, c.RoutingTimeoutSeconds = 299, 300, 65535, 200, 120 }),
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Database
		{
			name:      "pool size zero",
			cfg:       with(func(c *Config) { c.DBMaxConns = 0 }),
			wantErr:   true,
			errSubstr: []string{"DB_MAX_CONNS"},
		},
		{
			name:      "negative slow query threshold",
			cfg:       with(func(c *Config) { c.SlowQueryMillis = -1 }),
			wantErr:   true,
			errSubstr: []string{"SLOW_QUERY_MS"},
		},
		// Auth
		{
			name:      "missing jwt secret",
			cfg:       with(func(c *Config) { c.JWTSecret = "" }),
			wantErr:   true,
			errSubstr: []string{"JWT_SECRET"},
		},
		{
			name:      "short jwt secret",
			cfg:       with(func(c *Config) { c.JWTSecret = "too-short" }),
			wantErr:   true,
			errSubstr: []string{"JWT_SECRET"},
		},
		// Routing
		{
			name:    "google with key",
			cfg:     with(func(c *Config) { c.RoutingProvider, c.GoogleMapsAPIKey = "google", "g" }),
			wantErr: false,
		},
		{
			name:      "google without key",
			cfg:       with(func(c *Config) { c.RoutingProvider = "google" }),
			wantErr:   true,
			errSubstr: []string{"GOOGLE_MAPS_API_KEY"},
		},
		{
			name:      "here without key",
			cfg:       with(func(c *Config) { c.RoutingProvider = "here" }),
			wantErr:   true,
			errSubstr: []string{"HERE_API_KEY"},
		},
		{
			name:      "unknown provider",
			cfg:       with(func(c *Config) { c.RoutingProvider = "mapbox" }),
			wantErr:   true,
			errSubstr: []string{"ROUTING_PROVIDER"},
		},
		{
			name:      "routing timeout zero",
			cfg:       with(func(c *Config) { c.RoutingTimeoutSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"ROUTING_TIMEOUT_SECONDS"},
		},
		// Slack
		{
			name:    "https slack webhook",
			cfg:     with(func(c *Config) { c.SlackWebhookURL = "https://hooks.slack.com/services/T/B/X" }),
			wantErr: false,
		},
		{
			name:      "plain http slack webhook",
			cfg:       with(func(c *Config) { c.SlackWebhookURL = "http://hooks.slack.com/services/T/B/X" }),
			wantErr:   true,
			errSubstr: []string{"SLACK_WEBHOOK_URL"},
		},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{RoutingProvider: "x"},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "DB_MAX_CONNS", "JWT_SECRET", "ROUTING_PROVIDER", "ROUTING_TIMEOUT_SECONDS"},
		},
		// Extreme values
		{
			name:      "extreme negative values",
			cfg:       Config{DrainSeconds: math.MinInt32, ShutdownBudgetSeconds: math.MinInt32, APIPort: math.MinInt32},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port int
		secret, provider    string
	}{
		{60, 90, 8080, testSecret, ""},
		{1, 2, 1, testSecret, "google"},
		{299, 300, 65535, testSecret, "here"},
		{0, 0, 0, "", ""},
		{-1, -1, -1, "", "nope"},
		{300, 300, 65535, testSecret, ""},
		{150, 100, 8080, testSecret, ""},
		{math.MinInt32, math.MinInt32, math.MinInt32, "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.secret, s.provider)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, secret, provider string) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.JWTSecret = secret
		c.RoutingProvider = provider
		c.GoogleMapsAPIKey = "g"
		c.HEREAPIKey = "h"
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		secretOK := len(secret) >= minJWTSecretLen
		providerOK := provider == "" || provider == "google" || provider == "here"

		allValid := drainOK && budgetOK && portOK && crossOK && secretOK && providerOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
