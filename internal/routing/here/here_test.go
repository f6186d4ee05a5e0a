package here

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

func TestOptimize_MapsSequenceToIndices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != sequencePath {
			t.Errorf("path = %q", r.URL.Path)
		}
		if q.Get("apiKey") != "hk" {
			t.Errorf("apiKey = %q", q.Get("apiKey"))
		}
		if q.Get("start") != "depot-start;1.000000,2.000000" || q.Get("end") != "depot-end;1.000000,2.000000" {
			t.Errorf("start/end = %q/%q, want a round trip", q.Get("start"), q.Get("end"))
		}
		if q.Get("destination3") != "stop-2;1.300000,2.300000" {
			t.Errorf("destination3 = %q", q.Get("destination3"))
		}
		// deliberately unsorted
		_, _ = w.Write([]byte(`{"results":[{"waypoints":[
			{"id":"stop-0","sequence":3},
			{"id":"depot-end","sequence":4},
			{"id":"depot-start","sequence":0},
			{"id":"stop-2","sequence":1},
			{"id":"stop-1","sequence":2}
		]}]}`))
	}))
	defer srv.Close()

	stops := []alert.Coordinates{{Lat: 1.1, Lng: 2.1}, {Lat: 1.2, Lng: 2.2}, {Lat: 1.3, Lng: 2.3}}
	order, err := New("hk", srv.URL, time.Second).Optimize(context.Background(), alert.Coordinates{Lat: 1, Lng: 2}, stops)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !slices.Equal(order, []int{2, 1, 0}) {
		t.Errorf("order = %v, want [2 1 0]", order)
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
		{"http error", 401, `{"error":"Unauthorized"}`, "HTTP 401"},
		{"api error", 200, `{"errorCode":"INVALID_INPUT","errors":["bad start"]}`, "INVALID_INPUT"},
		{"no results", 200, `{"results":[]}`, "no results"},
		{"unknown id", 200, `{"results":[{"waypoints":[{"id":"mystery","sequence":1}]}]}`, "unknown waypoint"},
		{"bad json", 200, `not json`, "decode"},
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

func TestParseStopID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"stop-0", 0, true},
		{"stop-17", 17, true},
		{"stop-", 0, false},
		{"stop-x", 0, false},
		{"depot-start", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseStopID(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseStopID(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
