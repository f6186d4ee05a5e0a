package alert

import (
	"context"
	"time"
)

// QueueFilter selects the pending alerts one collector may see.
type QueueFilter struct {
	WasteTypes  []WasteType
	CollectorID string // rejections made by this collector are excluded
}

// Queries is the persistence surface. Implementations hold no business
// rules beyond the guarded updates documented on ClaimAlert and UpdateStatus.
type Queries interface {
	GetAlert(ctx context.Context, id string) (*WasteAlert, error)
	// LockAlert reads an alert and holds it against concurrent writers until
	// the surrounding transaction ends.
	LockAlert(ctx context.Context, id string) (*WasteAlert, error)
	ListAlerts(ctx context.Context, ids []string) ([]WasteAlert, error)
	InsertAlert(ctx context.Context, a *WasteAlert) error

	// ClaimAlert sets status CLAIMED and the claimant only if the alert is
	// still PENDING, in a single conditional write. ErrConflict otherwise.
	ClaimAlert(ctx context.Context, id, collectorID string, at time.Time) (*WasteAlert, error)
	// UpdateStatus moves an alert from one status to another, failing with
	// ErrConflict if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) (*WasteAlert, error)

	AppendStatusLog(ctx context.Context, l *StatusLog) error
	ListStatusLogs(ctx context.Context, alertID string) ([]StatusLog, error)

	ListQueue(ctx context.Context, f QueueFilter) ([]WasteAlert, error)
	ListByClaimant(ctx context.Context, collectorID string) ([]WasteAlert, error)
	ListByCreator(ctx context.Context, creatorID string) ([]WasteAlert, error)

	InsertRejection(ctx context.Context, r *Rejection) error
	DeleteRejection(ctx context.Context, alertID, collectorID string) error

	InsertReview(ctx context.Context, r *Review) error
	GetReview(ctx context.Context, alertID string) (*Review, error)
}

// Store adds transactions to Queries. fn runs against a transactional view;
// the store commits when fn returns nil and rolls back on any error.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// ProfileSource reads collector profiles owned by the identity component.
type ProfileSource interface {
	GetCollectorByUser(ctx context.Context, userID string) (*CollectorProfile, error)
	GetCollector(ctx context.Context, id string) (*CollectorProfile, error)
}

// InTx runs fn in a transaction on s and returns its value on commit.
func InTx[T any](ctx context.Context, s Store, fn func(ctx context.Context, q Queries) (T, error)) (T, error) {
	var out T
	err := s.InTx(ctx, func(ctx context.Context, q Queries) error {
		v, err := fn(ctx, q)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
