package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/linnemanlabs/haul/internal/alert"
)

var alertColumns = []string{
	"id", "waste_type", "description", "image_url", "weight_kg", "address",
	"lat", "lng", "time_slot", "status", "creator_id", "claimant_id",
	"created_at", "updated_at",
}

const alertSelect = `id, waste_type, description, image_url, weight_kg, address,
	lat, lng, time_slot, status, creator_id, claimant_id, created_at, updated_at`

// queries implements alert.Queries over the pool or a transaction.
type queries struct {
	db dbtx
}

var _ alert.Queries = queries{}

func (q queries) GetAlert(ctx context.Context, id string) (*alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.GetAlert", "SELECT")
	defer span.End()

	a, err := scanAlert(q.db.QueryRow(ctx, `SELECT `+alertSelect+` FROM waste_alerts WHERE id = $1`, id))
	if err != nil {
		return nil, fail(span, mapError(err, "alert", id))
	}
	return a, nil
}

func (q queries) LockAlert(ctx context.Context, id string) (*alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.LockAlert", "SELECT")
	defer span.End()

	a, err := scanAlert(q.db.QueryRow(ctx, `SELECT `+alertSelect+` FROM waste_alerts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fail(span, mapError(err, "alert", id))
	}
	return a, nil
}

func (q queries) ListAlerts(ctx context.Context, ids []string) ([]alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.ListAlerts", "SELECT")
	defer span.End()

	if len(ids) == 0 {
		return []alert.WasteAlert{}, nil
	}
	out, err := q.selectAlerts(ctx, psql.Select(alertColumns...).
		From("waste_alerts").
		Where(sq.Eq{"id": ids}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

func (q queries) InsertAlert(ctx context.Context, a *alert.WasteAlert) error {
	ctx, span := startSpan(ctx, "pgstore.InsertAlert", "INSERT")
	defer span.End()

	query, args, err := psql.Insert("waste_alerts").
		Columns(alertColumns...).
		Values(
			a.ID, string(a.WasteType), a.Description, a.ImageURL, a.WeightKg, a.Address,
			a.Location.Lat, a.Location.Lng, a.TimeSlot, string(a.Status), a.CreatorID, nullable(a.ClaimantID),
			a.CreatedAt, a.UpdatedAt,
		).ToSql()
	if err != nil {
		return fail(span, fmt.Errorf("build insert alert: %w", err))
	}
	if _, err := q.db.Exec(ctx, query, args...); err != nil {
		return fail(span, mapError(err, "alert", a.ID))
	}
	return nil
}

func (q queries) ClaimAlert(ctx context.Context, id, collectorID string, at time.Time) (*alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.ClaimAlert", "UPDATE")
	defer span.End()

	a, err := scanAlert(q.db.QueryRow(ctx,
		`UPDATE waste_alerts SET status = 'CLAIMED', claimant_id = $2, updated_at = $3
		 WHERE id = $1 AND status = 'PENDING'
		 RETURNING `+alertSelect,
		id, collectorID, at,
	))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fail(span, mapError(err, "alert", id))
	}
	return nil, fail(span, q.missOrConflict(ctx, id, alert.StatusPending))
}

func (q queries) UpdateStatus(ctx context.Context, id string, from, to alert.Status, at time.Time) (*alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.UpdateStatus", "UPDATE")
	defer span.End()

	a, err := scanAlert(q.db.QueryRow(ctx,
		`UPDATE waste_alerts SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING `+alertSelect,
		id, string(from), string(to), at,
	))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fail(span, mapError(err, "alert", id))
	}
	return nil, fail(span, q.missOrConflict(ctx, id, from))
}

// missOrConflict explains why a guarded update touched no row.
func (q queries) missOrConflict(ctx context.Context, id string, want alert.Status) error {
	var status string
	err := q.db.QueryRow(ctx, `SELECT status FROM waste_alerts WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return mapError(err, "alert", id)
	}
	return fmt.Errorf("alert %s is %s, expected %s: %w", id, status, want, alert.ErrConflict)
}

func (q queries) AppendStatusLog(ctx context.Context, l *alert.StatusLog) error {
	ctx, span := startSpan(ctx, "pgstore.AppendStatusLog", "INSERT")
	defer span.End()

	_, err := q.db.Exec(ctx,
		`INSERT INTO alert_status_logs (alert_id, status, note, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		l.AlertID, string(l.Status), l.Note, l.ActorID, l.CreatedAt,
	)
	if err != nil {
		return fail(span, mapError(err, "alert", l.AlertID))
	}
	return nil
}

func (q queries) ListStatusLogs(ctx context.Context, alertID string) ([]alert.StatusLog, error) {
	ctx, span := startSpan(ctx, "pgstore.ListStatusLogs", "SELECT")
	defer span.End()

	rows, err := q.db.Query(ctx,
		`SELECT alert_id, status, note, actor_id, created_at
		 FROM alert_status_logs WHERE alert_id = $1 ORDER BY id`,
		alertID,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query status logs: %w", err))
	}
	defer rows.Close()

	out := make([]alert.StatusLog, 0)
	for rows.Next() {
		var (
			l      alert.StatusLog
			status string
		)
		if err := rows.Scan(&l.AlertID, &status, &l.Note, &l.ActorID, &l.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan status log: %w", err))
		}
		l.Status = alert.Status(status)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate status logs: %w", err))
	}
	return out, nil
}

func (q queries) ListQueue(ctx context.Context, f alert.QueueFilter) ([]alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.ListQueue", "SELECT")
	defer span.End()

	if len(f.WasteTypes) == 0 {
		return []alert.WasteAlert{}, nil
	}
	types := make([]string, len(f.WasteTypes))
	for i, t := range f.WasteTypes {
		types[i] = string(t)
	}

	out, err := q.selectAlerts(ctx, psql.Select(alertColumns...).
		From("waste_alerts a").
		Where(sq.Eq{"a.status": string(alert.StatusPending), "a.waste_type": types}).
		Where(`NOT EXISTS (
			SELECT 1 FROM alert_rejections r
			WHERE r.alert_id = a.id AND r.collector_id = ?)`, f.CollectorID).
		OrderBy("a.created_at", "a.id"))
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

func (q queries) ListByClaimant(ctx context.Context, collectorID string) ([]alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.ListByClaimant", "SELECT")
	defer span.End()

	out, err := q.selectAlerts(ctx, psql.Select(alertColumns...).
		From("waste_alerts").
		Where(sq.Eq{"claimant_id": collectorID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

func (q queries) ListByCreator(ctx context.Context, creatorID string) ([]alert.WasteAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.ListByCreator", "SELECT")
	defer span.End()

	out, err := q.selectAlerts(ctx, psql.Select(alertColumns...).
		From("waste_alerts").
		Where(sq.Eq{"creator_id": creatorID}).
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

func (q queries) InsertRejection(ctx context.Context, r *alert.Rejection) error {
	ctx, span := startSpan(ctx, "pgstore.InsertRejection", "INSERT")
	defer span.End()

	_, err := q.db.Exec(ctx,
		`INSERT INTO alert_rejections (alert_id, collector_id, created_at) VALUES ($1, $2, $3)`,
		r.AlertID, r.CollectorID, r.CreatedAt,
	)
	if err != nil {
		return fail(span, mapError(err, "rejection of alert", r.AlertID))
	}
	return nil
}

func (q queries) DeleteRejection(ctx context.Context, alertID, collectorID string) error {
	ctx, span := startSpan(ctx, "pgstore.DeleteRejection", "DELETE")
	defer span.End()

	tag, err := q.db.Exec(ctx,
		`DELETE FROM alert_rejections WHERE alert_id = $1 AND collector_id = $2`,
		alertID, collectorID,
	)
	if err != nil {
		return fail(span, mapError(err, "rejection of alert", alertID))
	}
	if tag.RowsAffected() == 0 {
		return fail(span, fmt.Errorf("rejection of %s by %s: %w", alertID, collectorID, alert.ErrNotFound))
	}
	return nil
}

func (q queries) InsertReview(ctx context.Context, r *alert.Review) error {
	ctx, span := startSpan(ctx, "pgstore.InsertReview", "INSERT")
	defer span.End()

	_, err := q.db.Exec(ctx,
		`INSERT INTO alert_reviews (id, alert_id, rating, comment, reviewer_id, collector_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.AlertID, r.Rating, r.Comment, r.ReviewerID, r.CollectorID, r.CreatedAt,
	)
	if err != nil {
		return fail(span, mapError(err, "review for alert", r.AlertID))
	}
	return nil
}

func (q queries) GetReview(ctx context.Context, alertID string) (*alert.Review, error) {
	ctx, span := startSpan(ctx, "pgstore.GetReview", "SELECT")
	defer span.End()

	var r alert.Review
	err := q.db.QueryRow(ctx,
		`SELECT id, alert_id, rating, comment, reviewer_id, collector_id, created_at
		 FROM alert_reviews WHERE alert_id = $1`,
		alertID,
	).Scan(&r.ID, &r.AlertID, &r.Rating, &r.Comment, &r.ReviewerID, &r.CollectorID, &r.CreatedAt)
	if err != nil {
		// a missing review is an expected answer, not a span error
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mapError(err, "review for alert", alertID)
		}
		return nil, fail(span, mapError(err, "review for alert", alertID))
	}
	return &r, nil
}

func (q queries) selectAlerts(ctx context.Context, b sq.SelectBuilder) ([]alert.WasteAlert, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out := make([]alert.WasteAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// scanAlert scans one waste_alerts row in alertColumns order.
func scanAlert(row pgx.Row) (*alert.WasteAlert, error) {
	var (
		a         alert.WasteAlert
		wasteType string
		status    string
		claimant  *string
	)
	err := row.Scan(
		&a.ID, &wasteType, &a.Description, &a.ImageURL, &a.WeightKg, &a.Address,
		&a.Location.Lat, &a.Location.Lng, &a.TimeSlot, &status, &a.CreatorID, &claimant,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.WasteType = alert.WasteType(wasteType)
	a.Status = alert.Status(status)
	if claimant != nil {
		a.ClaimantID = *claimant
	}
	return &a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
