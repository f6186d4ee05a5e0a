package alertapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/haul/internal/alert"
)

type routeRequest struct {
	AlertIDs []string `json:"alert_ids"`
}

func (req *routeRequest) Validate() error {
	if len(req.AlertIDs) == 0 {
		return alert.NewValidationError("alert_ids", "must not be empty")
	}
	return nil
}

// routeGroup is one time slot of an optimized plan, in visiting order.
type routeGroup struct {
	TimeSlot string             `json:"time_slot"`
	Alerts   []alert.WasteAlert `json:"alerts"`
}

func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	alerts, err := a.svc.ListAvailable(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": nonNil(alerts)})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	h, err := a.svc.History(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *API) handleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req routeRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	plan, err := a.routes.Optimize(r.Context(), userID, req.AlertIDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	// slots are emitted in the order their first alert appears in the request
	groups := make([]routeGroup, 0, len(plan))
	seen := make(map[string]bool, len(plan))
	for _, id := range req.AlertIDs {
		for slot, alerts := range plan {
			if seen[slot] || !containsID(alerts, id) {
				continue
			}
			seen[slot] = true
			groups = append(groups, routeGroup{TimeSlot: slot, Alerts: alerts})
		}
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("haul.route.groups", len(groups)))
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func containsID(alerts []alert.WasteAlert, id string) bool {
	for i := range alerts {
		if alerts[i].ID == id {
			return true
		}
	}
	return false
}
