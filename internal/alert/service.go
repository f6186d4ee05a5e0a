package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
)

const (
	maxDescriptionLen = 2000
	maxCommentLen     = 2000
	maxNoteLen        = 500
)

// Event describes a committed lifecycle change for notifiers.
type Event struct {
	Alert   WasteAlert
	From    Status
	ActorID string
	At      time.Time
}

// Notifier receives lifecycle events after commit. Failures are logged only.
type Notifier interface {
	Notify(ctx context.Context, ev *Event) error
}

// NewAlert is the validated input for CreateAlert.
type NewAlert struct {
	WasteType   WasteType
	Description string
	ImageURL    string
	WeightKg    float64
	Address     string
	Location    Coordinates
	TimeSlot    string
	CreatorID   string
}

// Validate checks required fields and ranges.
func (n *NewAlert) Validate() error {
	v := &ValidationError{}
	if !n.WasteType.Valid() {
		v.Add("waste_type", fmt.Sprintf("unknown waste type %q", n.WasteType))
	}
	if strings.TrimSpace(n.Description) == "" {
		v.Add("description", "is required")
	} else if len(n.Description) > maxDescriptionLen {
		v.Add("description", fmt.Sprintf("must be at most %d bytes", maxDescriptionLen))
	}
	if strings.TrimSpace(n.Address) == "" {
		v.Add("address", "is required")
	}
	if !n.Location.Valid() {
		v.Add("location", "coordinates out of range")
	}
	if strings.TrimSpace(n.TimeSlot) == "" {
		v.Add("time_slot", "is required")
	}
	if n.WeightKg < 0 {
		v.Add("weight_kg", "must not be negative")
	}
	if n.CreatorID == "" {
		v.Add("creator_id", "is required")
	}
	return v.Err()
}

// NewReview is the input for CreateReview.
type NewReview struct {
	AlertID    string
	ReviewerID string
	Rating     int
	Comment    string
}

// Validate checks the rating range and comment size.
func (n *NewReview) Validate() error {
	v := &ValidationError{}
	if n.Rating < 1 || n.Rating > 5 {
		v.Add("rating", "must be between 1 and 5")
	}
	if len(n.Comment) > maxCommentLen {
		v.Add("comment", fmt.Sprintf("must be at most %d bytes", maxCommentLen))
	}
	return v.Err()
}

// Service is the business boundary for alert operations.
type Service struct {
	store    Store
	profiles ProfileSource
	logger   log.Logger
	hooks    Hooks
	notifier Notifier
	now      func() time.Time
}

// NewService creates a new alert service. notifier may be nil.
func NewService(store Store, profiles ProfileSource, logger log.Logger, hooks Hooks, notifier Notifier) *Service {
	if store == nil {
		panic(xerrors.New("alert store is required"))
	}
	if profiles == nil {
		panic(xerrors.New("profile source is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		profiles: profiles,
		logger:   logger,
		hooks:    hooks,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// CreateAlert stores a new PENDING alert together with its first log entry.
func (s *Service) CreateAlert(ctx context.Context, in *NewAlert) (*WasteAlert, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	a := &WasteAlert{
		ID:          ulid.Make().String(),
		WasteType:   in.WasteType,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    in.ImageURL,
		WeightKg:    in.WeightKg,
		Address:     strings.TrimSpace(in.Address),
		Location:    in.Location,
		TimeSlot:    strings.TrimSpace(in.TimeSlot),
		Status:      StatusPending,
		CreatorID:   in.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.InsertAlert(ctx, a); err != nil {
			return err
		}
		return q.AppendStatusLog(ctx, &StatusLog{
			AlertID:   a.ID,
			Status:    StatusPending,
			Note:      "created",
			ActorID:   in.CreatorID,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	if s.hooks.OnCreate != nil {
		s.hooks.OnCreate(a.WasteType)
	}
	s.logger.Info(ctx, "alert created",
		"alert_id", a.ID,
		"waste_type", a.WasteType,
		"time_slot", a.TimeSlot,
	)
	return a, nil
}

// Get returns an alert to its creator, its claimant, or, while it is still
// PENDING, to any verified collector.
func (s *Service) Get(ctx context.Context, alertID, userID string) (*WasteAlert, error) {
	a, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.CreatorID == userID {
		return a, nil
	}
	p, err := s.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("alert %s: %w", alertID, ErrForbidden)
		}
		return nil, err
	}
	if a.ClaimantID == p.ID || (a.Status == StatusPending && p.Verified) {
		return a, nil
	}
	return nil, fmt.Errorf("alert %s: %w", alertID, ErrForbidden)
}

// StatusLog returns the audit trail of an alert to its creator or claimant.
func (s *Service) StatusLog(ctx context.Context, alertID, userID string) ([]StatusLog, error) {
	a, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.CreatorID != userID {
		p, err := s.profiles.GetCollectorByUser(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if p == nil || a.ClaimantID == "" || a.ClaimantID != p.ID {
			return nil, fmt.Errorf("alert %s log: %w", alertID, ErrForbidden)
		}
	}
	return s.store.ListStatusLogs(ctx, alertID)
}

// ListCreated returns the alerts a household has posted, newest first.
func (s *Service) ListCreated(ctx context.Context, userID string) ([]WasteAlert, error) {
	return s.store.ListByCreator(ctx, userID)
}

// ListAvailable returns the pending alerts a verified collector may claim,
// oldest first, excluding types they do not accept and alerts they rejected.
func (s *Service) ListAvailable(ctx context.Context, userID string) ([]WasteAlert, error) {
	p, err := s.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("collector profile for %s: %w", userID, ErrForbidden)
		}
		return nil, err
	}
	if !p.Verified {
		return nil, fmt.Errorf("collector %s is not verified: %w", p.ID, ErrForbidden)
	}
	if len(p.AcceptedTypes) == 0 {
		return []WasteAlert{}, nil
	}
	return s.store.ListQueue(ctx, QueueFilter{
		WasteTypes:  p.AcceptedTypes,
		CollectorID: p.ID,
	})
}

// Claim gives the alert to the calling collector. Exactly one of any number
// of concurrent claims on a PENDING alert succeeds; the rest get ErrConflict.
func (s *Service) Claim(ctx context.Context, alertID, userID string) (*WasteAlert, error) {
	a, err := s.claim(ctx, alertID, userID)
	if s.hooks.OnClaim != nil {
		result := outcome(err, "won")
		if result == "conflict" {
			result = "lost"
		}
		s.hooks.OnClaim(result)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "alert claimed", "alert_id", a.ID, "collector_id", a.ClaimantID)
	s.notify(ctx, &Event{Alert: *a, From: StatusPending, ActorID: userID, At: a.UpdatedAt})
	return a, nil
}

func (s *Service) claim(ctx context.Context, alertID, userID string) (*WasteAlert, error) {
	p, err := s.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collector profile for %s: %w", userID, err)
	}
	if !p.Verified {
		return nil, fmt.Errorf("collector %s is not verified: %w", p.ID, ErrForbidden)
	}

	now := s.now()
	return InTx(ctx, s.store, func(ctx context.Context, q Queries) (*WasteAlert, error) {
		a, err := q.ClaimAlert(ctx, alertID, p.ID, now)
		if err != nil {
			return nil, err
		}
		err = q.AppendStatusLog(ctx, &StatusLog{
			AlertID:   a.ID,
			Status:    StatusClaimed,
			Note:      "claimed by collector " + p.ID,
			ActorID:   userID,
			CreatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}

// Advance moves a claimed alert along the lifecycle on behalf of its claimant.
func (s *Service) Advance(ctx context.Context, alertID string, to Status, userID, note string) (*WasteAlert, error) {
	if !to.Valid() {
		return nil, NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}
	if len(note) > maxNoteLen {
		return nil, NewValidationError("note", fmt.Sprintf("must be at most %d bytes", maxNoteLen))
	}

	p, err := s.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("collector profile for %s: %w", userID, ErrForbidden)
		}
		return nil, err
	}

	var from Status
	now := s.now()
	a, err := InTx(ctx, s.store, func(ctx context.Context, q Queries) (*WasteAlert, error) {
		cur, err := q.LockAlert(ctx, alertID)
		if err != nil {
			return nil, err
		}
		if cur.ClaimantID != p.ID {
			return nil, fmt.Errorf("alert %s is not claimed by collector %s: %w", alertID, p.ID, ErrForbidden)
		}
		if !CanTransition(cur.Status, to) {
			return nil, fmt.Errorf("alert %s: %s -> %s not allowed: %w", alertID, cur.Status, to, ErrConflict)
		}
		from = cur.Status

		updated, err := q.UpdateStatus(ctx, alertID, cur.Status, to, now)
		if err != nil {
			return nil, err
		}
		if note == "" {
			note = fmt.Sprintf("%s -> %s", cur.Status, to)
		}
		err = q.AppendStatusLog(ctx, &StatusLog{
			AlertID:   alertID,
			Status:    to,
			Note:      note,
			ActorID:   userID,
			CreatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	if s.hooks.OnTransition != nil {
		s.hooks.OnTransition(from, to)
	}
	s.logger.Info(ctx, "alert advanced",
		"alert_id", a.ID,
		"collector_id", p.ID,
		"from", from,
		"to", to,
	)
	if to.Terminal() {
		s.notify(ctx, &Event{Alert: *a, From: from, ActorID: userID, At: now})
	}
	return a, nil
}

// Reject hides an alert from the calling collector's queue only.
func (s *Service) Reject(ctx context.Context, alertID, userID string) error {
	err := s.reject(ctx, alertID, userID)
	if s.hooks.OnRejection != nil {
		s.hooks.OnRejection("reject", outcome(err, "ok"))
	}
	return err
}

func (s *Service) reject(ctx context.Context, alertID, userID string) error {
	p, err := s.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("collector profile for %s: %w", userID, err)
	}
	return s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if _, err := q.GetAlert(ctx, alertID); err != nil {
			return err
		}
		return q.InsertRejection(ctx, &Rejection{
			AlertID:     alertID,
			CollectorID: p.ID,
			CreatedAt:   s.now(),
		})
	})
}

// Unreject restores an alert to the calling collector's queue.
func (s *Service) Unreject(ctx context.Context, alertID, userID string) error {
	err := s.unreject(ctx, alertID, userID)
	if s.hooks.OnRejection != nil {
		s.hooks.OnRejection("unreject", outcome(err, "ok"))
	}
	return err
}

func (s *Service) unreject(ctx context.Context, alertID, userID string) error {
	p, err := s.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("collector profile for %s: %w", userID, err)
	}
	return s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		return q.DeleteRejection(ctx, alertID, p.ID)
	})
}

// History partitions the calling collector's claimed alerts into active
// (CLAIMED, IN_TRANSIT) and finished (COMPLETED, CANCELLED).
func (s *Service) History(ctx context.Context, userID string) (*History, error) {
	p, err := s.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collector profile for %s: %w", userID, err)
	}
	alerts, err := s.store.ListByClaimant(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	h := &History{Active: []WasteAlert{}, Completed: []WasteAlert{}}
	for _, a := range alerts {
		switch {
		case a.Status.Active():
			h.Active = append(h.Active, a)
		case a.Status.Terminal():
			h.Completed = append(h.Completed, a)
		}
	}
	return h, nil
}

// CreateReview records the creator's single review of a completed alert.
func (s *Service) CreateReview(ctx context.Context, in *NewReview) (*Review, error) {
	r, err := s.createReview(ctx, in)
	if s.hooks.OnReview != nil {
		s.hooks.OnReview(outcome(err, "ok"))
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "review created", "alert_id", r.AlertID, "collector_id", r.CollectorID, "rating", r.Rating)
	return r, nil
}

func (s *Service) createReview(ctx context.Context, in *NewReview) (*Review, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return InTx(ctx, s.store, func(ctx context.Context, q Queries) (*Review, error) {
		a, err := q.LockAlert(ctx, in.AlertID)
		if err != nil {
			return nil, err
		}
		if a.CreatorID != in.ReviewerID {
			return nil, fmt.Errorf("alert %s was not created by %s: %w", a.ID, in.ReviewerID, ErrForbidden)
		}
		if a.Status != StatusCompleted {
			return nil, fmt.Errorf("alert %s is %s, not completed: %w", a.ID, a.Status, ErrConflict)
		}
		if _, err := q.GetReview(ctx, a.ID); err == nil {
			return nil, fmt.Errorf("alert %s already reviewed: %w", a.ID, ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		r := &Review{
			ID:          ulid.Make().String(),
			AlertID:     a.ID,
			Rating:      in.Rating,
			Comment:     strings.TrimSpace(in.Comment),
			ReviewerID:  in.ReviewerID,
			CollectorID: a.ClaimantID,
			CreatedAt:   s.now(),
		}
		if err := q.InsertReview(ctx, r); err != nil {
			return nil, err
		}
		return r, nil
	})
}

func (s *Service) notify(ctx context.Context, ev *Event) {
	if s.notifier == nil {
		return
	}
	// detached so a slow webhook never holds the request open
	go func(ctx context.Context) {
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.logger.Warn(ctx, "lifecycle notification failed", "alert_id", ev.Alert.ID, "error", err)
		}
	}(context.WithoutCancel(ctx))
}
