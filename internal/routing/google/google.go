// Package google orders waypoints with the Google Directions API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/haul/internal/alert"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com"
	directionsPath = "/maps/api/directions/json"
	maxErrorBody   = 512
)

// Client calls the Directions API with waypoint optimisation enabled.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New creates a Client. baseURL may be empty for the public endpoint.
func New(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		WaypointOrder []int `json:"waypoint_order"`
	} `json:"routes"`
}

// Optimize returns the optimised visiting order of stops for a round trip
// from and back to origin.
func (c *Client) Optimize(ctx context.Context, origin alert.Coordinates, stops []alert.Coordinates) ([]int, error) {
	waypoints := make([]string, 0, len(stops)+1)
	waypoints = append(waypoints, "optimize:true")
	for _, s := range stops {
		waypoints = append(waypoints, latLng(s))
	}

	params := url.Values{}
	params.Set("origin", latLng(origin))
	params.Set("destination", latLng(origin))
	params.Set("waypoints", strings.Join(waypoints, "|"))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+directionsPath+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("google: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: directions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("google: directions returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("google: decode directions: %w", err)
	}
	if dr.Status != "OK" {
		if dr.ErrorMessage != "" {
			return nil, fmt.Errorf("google: directions status %s: %s", dr.Status, dr.ErrorMessage)
		}
		return nil, fmt.Errorf("google: directions status %s", dr.Status)
	}
	if len(dr.Routes) == 0 {
		return nil, fmt.Errorf("google: directions returned no routes")
	}
	return dr.Routes[0].WaypointOrder, nil
}

func latLng(c alert.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}
