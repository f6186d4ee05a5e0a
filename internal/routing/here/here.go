// Package here orders waypoints with the HERE Waypoints Sequence API v8.
package here

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/haul/internal/alert"
)

const (
	DefaultBaseURL = "https://wps.hereapi.com"
	sequencePath   = "/v8/findsequence2"
	maxErrorBody   = 512

	startID = "depot-start"
	endID   = "depot-end"
)

// Client calls findsequence2 for a round trip through all stops.
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

type waypoint struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
}

type sequenceResponse struct {
	Results []struct {
		Waypoints []waypoint `json:"waypoints"`
	} `json:"results"`
	ErrorCode string   `json:"errorCode"`
	Errors    []string `json:"errors"`
}

// Optimize returns the visiting order of stops for a round trip starting and
// ending at origin.
func (c *Client) Optimize(ctx context.Context, origin alert.Coordinates, stops []alert.Coordinates) ([]int, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("mode", "fastest;car;traffic:enabled")
	params.Set("improveFor", "time")
	params.Set("start", startID+";"+latLng(origin))
	for i, s := range stops {
		params.Set(fmt.Sprintf("destination%d", i+1), stopID(i)+";"+latLng(s))
	}
	params.Set("end", endID+";"+latLng(origin))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sequencePath+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("here: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("here: sequence request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("here: findsequence2 returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr sequenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("here: decode sequence: %w", err)
	}
	if sr.ErrorCode != "" || len(sr.Errors) > 0 {
		return nil, fmt.Errorf("here: findsequence2 error %s %v", sr.ErrorCode, sr.Errors)
	}
	if len(sr.Results) == 0 {
		return nil, fmt.Errorf("here: findsequence2 returned no results")
	}

	wps := sr.Results[0].Waypoints
	slices.SortStableFunc(wps, func(a, b waypoint) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	order := make([]int, 0, len(stops))
	for _, wp := range wps {
		if wp.ID == startID || wp.ID == endID {
			continue
		}
		i, ok := parseStopID(wp.ID)
		if !ok {
			return nil, fmt.Errorf("here: unknown waypoint id %q", wp.ID)
		}
		order = append(order, i)
	}
	return order, nil
}

func stopID(i int) string {
	return "stop-" + strconv.Itoa(i)
}

func parseStopID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "stop-")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return i, true
}

func latLng(c alert.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}
