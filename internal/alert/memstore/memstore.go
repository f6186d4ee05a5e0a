// Package memstore provides an in-memory implementation of alert.Store and
// alert.ProfileSource. Suitable for dev/testing.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/linnemanlabs/haul/internal/alert"
)

type rejectionKey struct {
	alertID     string
	collectorID string
}

// state is one immutable-by-convention snapshot of all tables. Stored values
// are never modified in place; writes replace them with fresh copies, so a
// shallow map clone is a full snapshot.
type state struct {
	alerts     map[string]*alert.WasteAlert
	logs       map[string][]alert.StatusLog // alert ID -> entries in append order
	rejections map[rejectionKey]alert.Rejection
	reviews    map[string]*alert.Review // alert ID -> review
	seq        map[string]uint64        // alert ID -> insertion order
	nextSeq    uint64
}

func newState() *state {
	return &state{
		alerts:     make(map[string]*alert.WasteAlert),
		logs:       make(map[string][]alert.StatusLog),
		rejections: make(map[rejectionKey]alert.Rejection),
		reviews:    make(map[string]*alert.Review),
		seq:        make(map[string]uint64),
	}
}

func (st *state) clone() *state {
	return &state{
		alerts:     maps.Clone(st.alerts),
		logs:       maps.Clone(st.logs),
		rejections: maps.Clone(st.rejections),
		reviews:    maps.Clone(st.reviews),
		seq:        maps.Clone(st.seq),
		nextSeq:    st.nextSeq,
	}
}

// Store holds alerts in memory. Transactions are serialised by mu and run
// against a private clone that replaces the live state only on commit.
type Store struct {
	mu         sync.RWMutex
	st         *state
	collectors map[string]*alert.CollectorProfile // profile ID -> profile
	byUser     map[string]string                  // user ID -> profile ID
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		st:         newState(),
		collectors: make(map[string]*alert.CollectorProfile),
		byUser:     make(map[string]string),
	}
}

// PutCollector seeds a collector profile, standing in for the identity component.
func (s *Store) PutCollector(p *alert.CollectorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.AcceptedTypes = slices.Clone(p.AcceptedTypes)
	s.collectors[p.ID] = &cp
	s.byUser[p.UserID] = p.ID
}

// GetCollector returns a copy of the profile with the given ID.
func (s *Store) GetCollector(_ context.Context, id string) (*alert.CollectorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.collectors[id]
	if !ok {
		return nil, fmt.Errorf("collector %s: %w", id, alert.ErrNotFound)
	}
	cp := *p
	cp.AcceptedTypes = slices.Clone(p.AcceptedTypes)
	return &cp, nil
}

// GetCollectorByUser returns a copy of the profile owned by userID.
func (s *Store) GetCollectorByUser(ctx context.Context, userID string) (*alert.CollectorProfile, error) {
	s.mu.RLock()
	id, ok := s.byUser[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("collector for user %s: %w", userID, alert.ErrNotFound)
	}
	return s.GetCollector(ctx, id)
}

// InTx runs fn against a private snapshot and publishes it if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q alert.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Outside InTx every call reads the current snapshot or runs as its own
// single-statement transaction.

func (s *Store) GetAlert(ctx context.Context, id string) (*alert.WasteAlert, error) {
	return s.read().GetAlert(ctx, id)
}

func (s *Store) LockAlert(ctx context.Context, id string) (*alert.WasteAlert, error) {
	return s.read().GetAlert(ctx, id)
}

func (s *Store) ListAlerts(ctx context.Context, ids []string) ([]alert.WasteAlert, error) {
	return s.read().ListAlerts(ctx, ids)
}

func (s *Store) ListStatusLogs(ctx context.Context, alertID string) ([]alert.StatusLog, error) {
	return s.read().ListStatusLogs(ctx, alertID)
}

func (s *Store) ListQueue(ctx context.Context, f alert.QueueFilter) ([]alert.WasteAlert, error) {
	return s.read().ListQueue(ctx, f)
}

func (s *Store) ListByClaimant(ctx context.Context, collectorID string) ([]alert.WasteAlert, error) {
	return s.read().ListByClaimant(ctx, collectorID)
}

func (s *Store) ListByCreator(ctx context.Context, creatorID string) ([]alert.WasteAlert, error) {
	return s.read().ListByCreator(ctx, creatorID)
}

func (s *Store) GetReview(ctx context.Context, alertID string) (*alert.Review, error) {
	return s.read().GetReview(ctx, alertID)
}

func (s *Store) InsertAlert(ctx context.Context, a *alert.WasteAlert) error {
	return s.InTx(ctx, func(ctx context.Context, q alert.Queries) error { return q.InsertAlert(ctx, a) })
}

func (s *Store) ClaimAlert(ctx context.Context, id, collectorID string, at time.Time) (*alert.WasteAlert, error) {
	return alert.InTx(ctx, s, func(ctx context.Context, q alert.Queries) (*alert.WasteAlert, error) {
		return q.ClaimAlert(ctx, id, collectorID, at)
	})
}

func (s *Store) UpdateStatus(ctx context.Context, id string, from, to alert.Status, at time.Time) (*alert.WasteAlert, error) {
	return alert.InTx(ctx, s, func(ctx context.Context, q alert.Queries) (*alert.WasteAlert, error) {
		return q.UpdateStatus(ctx, id, from, to, at)
	})
}

func (s *Store) AppendStatusLog(ctx context.Context, l *alert.StatusLog) error {
	return s.InTx(ctx, func(ctx context.Context, q alert.Queries) error { return q.AppendStatusLog(ctx, l) })
}

func (s *Store) InsertRejection(ctx context.Context, r *alert.Rejection) error {
	return s.InTx(ctx, func(ctx context.Context, q alert.Queries) error { return q.InsertRejection(ctx, r) })
}

func (s *Store) DeleteRejection(ctx context.Context, alertID, collectorID string) error {
	return s.InTx(ctx, func(ctx context.Context, q alert.Queries) error {
		return q.DeleteRejection(ctx, alertID, collectorID)
	})
}

func (s *Store) InsertReview(ctx context.Context, r *alert.Review) error {
	return s.InTx(ctx, func(ctx context.Context, q alert.Queries) error { return q.InsertReview(ctx, r) })
}

// state implements alert.Queries without locking; callers hold Store.mu.

func (st *state) GetAlert(_ context.Context, id string) (*alert.WasteAlert, error) {
	a, ok := st.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, alert.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (st *state) LockAlert(ctx context.Context, id string) (*alert.WasteAlert, error) {
	return st.GetAlert(ctx, id)
}

func (st *state) ListAlerts(_ context.Context, ids []string) ([]alert.WasteAlert, error) {
	out := make([]alert.WasteAlert, 0, len(ids))
	for _, id := range ids {
		if a, ok := st.alerts[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (st *state) InsertAlert(_ context.Context, a *alert.WasteAlert) error {
	if _, ok := st.alerts[a.ID]; ok {
		return fmt.Errorf("alert %s: %w", a.ID, alert.ErrConflict)
	}
	cp := *a
	st.alerts[a.ID] = &cp
	st.nextSeq++
	st.seq[a.ID] = st.nextSeq
	return nil
}

func (st *state) ClaimAlert(_ context.Context, id, collectorID string, at time.Time) (*alert.WasteAlert, error) {
	a, ok := st.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, alert.ErrNotFound)
	}
	if a.Status != alert.StatusPending {
		return nil, fmt.Errorf("alert %s is %s: %w", id, a.Status, alert.ErrConflict)
	}
	cp := *a
	cp.Status = alert.StatusClaimed
	cp.ClaimantID = collectorID
	cp.UpdatedAt = at
	st.alerts[id] = &cp
	out := cp
	return &out, nil
}

func (st *state) UpdateStatus(_ context.Context, id string, from, to alert.Status, at time.Time) (*alert.WasteAlert, error) {
	a, ok := st.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, alert.ErrNotFound)
	}
	if a.Status != from {
		return nil, fmt.Errorf("alert %s is %s, expected %s: %w", id, a.Status, from, alert.ErrConflict)
	}
	cp := *a
	cp.Status = to
	cp.UpdatedAt = at
	st.alerts[id] = &cp
	out := cp
	return &out, nil
}

func (st *state) AppendStatusLog(_ context.Context, l *alert.StatusLog) error {
	if _, ok := st.alerts[l.AlertID]; !ok {
		return fmt.Errorf("alert %s: %w", l.AlertID, alert.ErrNotFound)
	}
	st.logs[l.AlertID] = append(slices.Clip(st.logs[l.AlertID]), *l)
	return nil
}

func (st *state) ListStatusLogs(_ context.Context, alertID string) ([]alert.StatusLog, error) {
	return slices.Clone(st.logs[alertID]), nil
}

func (st *state) ListQueue(_ context.Context, f alert.QueueFilter) ([]alert.WasteAlert, error) {
	out := make([]alert.WasteAlert, 0)
	for id, a := range st.alerts {
		if a.Status != alert.StatusPending || !slices.Contains(f.WasteTypes, a.WasteType) {
			continue
		}
		if _, hidden := st.rejections[rejectionKey{alertID: id, collectorID: f.CollectorID}]; hidden {
			continue
		}
		out = append(out, *a)
	}
	st.sortOldestFirst(out)
	return out, nil
}

func (st *state) ListByClaimant(_ context.Context, collectorID string) ([]alert.WasteAlert, error) {
	out := make([]alert.WasteAlert, 0)
	for _, a := range st.alerts {
		if a.ClaimantID == collectorID {
			out = append(out, *a)
		}
	}
	st.sortOldestFirst(out)
	return out, nil
}

func (st *state) ListByCreator(_ context.Context, creatorID string) ([]alert.WasteAlert, error) {
	out := make([]alert.WasteAlert, 0)
	for _, a := range st.alerts {
		if a.CreatorID == creatorID {
			out = append(out, *a)
		}
	}
	st.sortOldestFirst(out)
	slices.Reverse(out)
	return out, nil
}

func (st *state) InsertRejection(_ context.Context, r *alert.Rejection) error {
	if _, ok := st.alerts[r.AlertID]; !ok {
		return fmt.Errorf("alert %s: %w", r.AlertID, alert.ErrNotFound)
	}
	k := rejectionKey{alertID: r.AlertID, collectorID: r.CollectorID}
	if _, ok := st.rejections[k]; ok {
		return fmt.Errorf("alert %s already rejected by %s: %w", r.AlertID, r.CollectorID, alert.ErrConflict)
	}
	st.rejections[k] = *r
	return nil
}

func (st *state) DeleteRejection(_ context.Context, alertID, collectorID string) error {
	k := rejectionKey{alertID: alertID, collectorID: collectorID}
	if _, ok := st.rejections[k]; !ok {
		return fmt.Errorf("rejection of %s by %s: %w", alertID, collectorID, alert.ErrNotFound)
	}
	delete(st.rejections, k)
	return nil
}

func (st *state) InsertReview(_ context.Context, r *alert.Review) error {
	if _, ok := st.alerts[r.AlertID]; !ok {
		return fmt.Errorf("alert %s: %w", r.AlertID, alert.ErrNotFound)
	}
	if _, ok := st.reviews[r.AlertID]; ok {
		return fmt.Errorf("review for alert %s: %w", r.AlertID, alert.ErrConflict)
	}
	cp := *r
	st.reviews[r.AlertID] = &cp
	return nil
}

func (st *state) GetReview(_ context.Context, alertID string) (*alert.Review, error) {
	r, ok := st.reviews[alertID]
	if !ok {
		return nil, fmt.Errorf("review for alert %s: %w", alertID, alert.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// sortOldestFirst orders by creation time, then insertion order.
func (st *state) sortOldestFirst(as []alert.WasteAlert) {
	slices.SortFunc(as, func(a, b alert.WasteAlert) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(st.seq[a.ID], st.seq[b.ID])
	})
}
