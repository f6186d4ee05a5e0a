package alert

import (
	"slices"
	"time"
)

// Status tracks where an alert is in its lifecycle.
type Status string

const (
	// StatusPending means created and visible to matching collectors
	StatusPending Status = "PENDING"

	// StatusClaimed means exactly one collector has taken the job
	StatusClaimed Status = "CLAIMED"

	// StatusInTransit means the claimant is on the way
	StatusInTransit Status = "IN_TRANSIT"

	// StatusCompleted means the waste was collected, terminal
	StatusCompleted Status = "COMPLETED"

	// StatusCancelled means the job was abandoned after claiming, terminal
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusClaimed, StatusInTransit, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether s is a claimed-but-unfinished status.
func (s Status) Active() bool {
	return s == StatusClaimed || s == StatusInTransit
}

// WasteType is the category of waste a household wants collected.
type WasteType string

const (
	WasteGeneral    WasteType = "GENERAL"
	WasteRecyclable WasteType = "RECYCLABLE"
	WasteOrganic    WasteType = "ORGANIC"
	WasteElectronic WasteType = "E_WASTE"
	WasteHazardous  WasteType = "HAZARDOUS"
	WasteBulky      WasteType = "BULKY"
)

var wasteTypes = []WasteType{
	WasteGeneral, WasteRecyclable, WasteOrganic, WasteElectronic, WasteHazardous, WasteBulky,
}

// Valid reports whether t is a known waste category.
func (t WasteType) Valid() bool {
	return slices.Contains(wasteTypes, t)
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c lies within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// WasteAlert is a household's pickup request.
//
// ClaimantID is empty exactly when Status is StatusPending.
type WasteAlert struct {
	ID          string      `json:"id"`
	WasteType   WasteType   `json:"waste_type"`
	Description string      `json:"description"`
	ImageURL    string      `json:"image_url,omitempty"`
	WeightKg    float64     `json:"weight_kg,omitempty"`
	Address     string      `json:"address"`
	Location    Coordinates `json:"location"`
	TimeSlot    string      `json:"time_slot"`
	Status      Status      `json:"status"`
	CreatorID   string      `json:"creator_id"`
	ClaimantID  string      `json:"claimant_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// StatusLog is one append-only audit entry.
type StatusLog struct {
	AlertID   string    `json:"alert_id"`
	Status    Status    `json:"status"`
	Note      string    `json:"note,omitempty"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Rejection hides an alert from one collector's queue.
type Rejection struct {
	AlertID     string    `json:"alert_id"`
	CollectorID string    `json:"collector_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// CollectorProfile is owned by the identity component and read-only here.
type CollectorProfile struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Location      Coordinates `json:"location"`
	AcceptedTypes []WasteType `json:"accepted_types"`
	Verified      bool        `json:"verified"`
}

// Accepts reports whether the collector takes waste of type t.
func (p *CollectorProfile) Accepts(t WasteType) bool {
	return slices.Contains(p.AcceptedTypes, t)
}

// Review is a household's rating of a completed pickup.
type Review struct {
	ID          string    `json:"id"`
	AlertID     string    `json:"alert_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	ReviewerID  string    `json:"reviewer_id"`
	CollectorID string    `json:"collector_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// History splits a collector's claimed alerts by whether they are finished.
type History struct {
	Active    []WasteAlert `json:"active"`
	Completed []WasteAlert `json:"completed"`
}
