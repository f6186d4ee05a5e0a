package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/haul/internal/alert"
)

func TestOptimize_Success(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != directionsPath {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"origin":      q.Get("origin"),
			"destination": q.Get("destination"),
			"waypoints":   q.Get("waypoints"),
			"key":         q.Get("key"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"waypoint_order":[2,0,1]}]}`))
	}))
	defer srv.Close()

	c := New("k-123", srv.URL, time.Second)
	origin := alert.Coordinates{Lat: 6.5, Lng: 3.3}
	stops := []alert.Coordinates{{Lat: 6.51, Lng: 3.31}, {Lat: 6.52, Lng: 3.32}, {Lat: 6.53, Lng: 3.33}}

	order, err := c.Optimize(context.Background(), origin, stops)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !slices.Equal(order, []int{2, 0, 1}) {
		t.Errorf("order = %v, want [2 0 1]", order)
	}

	if gotQuery["origin"] != "6.500000,3.300000" || gotQuery["destination"] != gotQuery["origin"] {
		t.Errorf("origin/destination = %q/%q, want a round trip", gotQuery["origin"], gotQuery["destination"])
	}
	if !strings.HasPrefix(gotQuery["waypoints"], "optimize:true|6.510000,3.310000|") {
		t.Errorf("waypoints = %q", gotQuery["waypoints"])
	}
	if strings.Count(gotQuery["waypoints"], "|") != 3 {
		t.Errorf("waypoints = %q, want 3 stops", gotQuery["waypoints"])
	}
	if gotQuery["key"] != "k-123" {
		t.Errorf("key = %q", gotQuery["key"])
	}
}

func TestOptimize_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    int
		body    string
		wantErr string
	}{
		{"non-OK status", 200, `{"status":"OVER_QUERY_LIMIT","error_message":"quota"}`, "OVER_QUERY_LIMIT"},
		{"zero results", 200, `{"status":"ZERO_RESULTS"}`, "ZERO_RESULTS"},
		{"no routes", 200, `{"status":"OK","routes":[]}`, "no routes"},
		{"http error", 500, `boom`, "HTTP 500"},
		{"bad json", 200, `{`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New("k", srv.URL, time.Second).Optimize(context.Background(), alert.Coordinates{}, []alert.Coordinates{{}, {}})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestOptimize_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := New("k", srv.URL, 5*time.Second).Optimize(ctx, alert.Coordinates{}, []alert.Coordinates{{}, {}}); err == nil {
		t.Fatal("expected error after deadline")
	}
}
