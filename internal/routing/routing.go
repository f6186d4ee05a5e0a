// Package routing selects the waypoint-ordering provider used by route.Optimizer.
package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/haul/internal/route"
	"github.com/linnemanlabs/haul/internal/routing/google"
	"github.com/linnemanlabs/haul/internal/routing/here"
)

// Supported provider names.
const (
	ProviderNone   = ""
	ProviderGoogle = "google"
	ProviderHERE   = "here"
)

// Options configures the provider client.
type Options struct {
	Provider      string
	GoogleAPIKey  string
	GoogleBaseURL string
	HEREAPIKey    string
	HEREBaseURL   string
	Timeout       time.Duration
}

// New returns the configured Router, or nil when no provider is set.
func New(o Options) (route.Router, error) {
	switch o.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderGoogle:
		if o.GoogleAPIKey == "" {
			return nil, errors.New("routing: google provider needs an API key")
		}
		return google.New(o.GoogleAPIKey, o.GoogleBaseURL, o.Timeout), nil
	case ProviderHERE:
		if o.HEREAPIKey == "" {
			return nil, errors.New("routing: here provider needs an API key")
		}
		return here.New(o.HEREAPIKey, o.HEREBaseURL, o.Timeout), nil
	default:
		return nil, fmt.Errorf("routing: unknown provider %q", o.Provider)
	}
}
