package alertapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/haul/internal/alert"
)

type createAlertRequest struct {
	WasteType   alert.WasteType    `json:"waste_type"`
	Description string             `json:"description"`
	ImageURL    string             `json:"image_url"`
	WeightKg    float64            `json:"weight_kg"`
	Address     string             `json:"address"`
	Location    *alert.Coordinates `json:"location"`
	TimeSlot    string             `json:"time_slot"`
}

func (req *createAlertRequest) Validate() error {
	v := &alert.ValidationError{}
	if req.WasteType == "" {
		v.Add("waste_type", "is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		v.Add("description", "is required")
	}
	if strings.TrimSpace(req.Address) == "" {
		v.Add("address", "is required")
	}
	if req.Location == nil {
		v.Add("location", "is required")
	}
	if strings.TrimSpace(req.TimeSlot) == "" {
		v.Add("time_slot", "is required")
	}
	return v.Err()
}

type advanceRequest struct {
	Status alert.Status `json:"status"`
	Note   string       `json:"note"`
}

func (req *advanceRequest) Validate() error {
	if req.Status == "" {
		return alert.NewValidationError("status", "is required")
	}
	return nil
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (req *reviewRequest) Validate() error {
	if req.Rating < 1 || req.Rating > 5 {
		return alert.NewValidationError("rating", "must be between 1 and 5")
	}
	return nil
}

// alertID reads the path id and tags the request span with it.
func alertID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("haul.alert.id", id))
	return id
}

func (a *API) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req createAlertRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	created, err := a.svc.CreateAlert(r.Context(), &alert.NewAlert{
		WasteType:   req.WasteType,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		WeightKg:    req.WeightKg,
		Address:     req.Address,
		Location:    *req.Location,
		TimeSlot:    req.TimeSlot,
		CreatorID:   userID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/alerts/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	alerts, err := a.svc.ListCreated(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": nonNil(alerts)})
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	al, err := a.svc.Get(r.Context(), alertID(r), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

func (a *API) handleStatusLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	logs, err := a.svc.StatusLog(r.Context(), alertID(r), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []alert.StatusLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": logs})
}

func (a *API) handleClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	al, err := a.svc.Claim(r.Context(), alertID(r), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

func (a *API) handleAdvance(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	id := alertID(r)

	var req advanceRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	al, err := a.svc.Advance(r.Context(), id, req.Status, userID, req.Note)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("haul.alert.status", string(al.Status)))
	writeJSON(w, http.StatusOK, al)
}

func (a *API) handleReject(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	if err := a.svc.Reject(r.Context(), alertID(r), userID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUnreject(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	if err := a.svc.Unreject(r.Context(), alertID(r), userID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	id := alertID(r)

	var req reviewRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	rev, err := a.svc.CreateReview(r.Context(), &alert.NewReview{
		AlertID:    id,
		ReviewerID: userID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

func nonNil(alerts []alert.WasteAlert) []alert.WasteAlert {
	if alerts == nil {
		return []alert.WasteAlert{}
	}
	return alerts
}
