// Package route orders a collector's claimed pickups into per-time-slot
// round trips by delegating each group to an external Router.
package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/haul/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/haul/internal/route")

const (
	defaultTimeout = 10 * time.Second
	maxAlerts      = 100
)

// Router returns the visiting order for stops on a round trip that starts
// and ends at origin. The result holds indices into stops.
type Router interface {
	Optimize(ctx context.Context, origin alert.Coordinates, stops []alert.Coordinates) ([]int, error)
}

// AlertLister reads alerts by ID.
type AlertLister interface {
	ListAlerts(ctx context.Context, ids []string) ([]alert.WasteAlert, error)
}

// Plan maps a time slot to its alerts in visiting order.
type Plan map[string][]alert.WasteAlert

// Optimizer builds Plans. Safe for concurrent use.
type Optimizer struct {
	alerts   AlertLister
	profiles alert.ProfileSource
	router   Router
	timeout  time.Duration
	logger   log.Logger
	hooks    Hooks
}

// NewOptimizer creates an Optimizer. A nil router fails every multi-stop
// group with ErrUpstream; timeout <= 0 uses a 10s default per router call.
func NewOptimizer(alerts AlertLister, profiles alert.ProfileSource, router Router, timeout time.Duration, logger log.Logger, hooks Hooks) *Optimizer {
	if alerts == nil {
		panic(xerrors.New("alert lister is required"))
	}
	if profiles == nil {
		panic(xerrors.New("profile source is required"))
	}
	if router == nil {
		router = unconfigured{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Optimizer{
		alerts:   alerts,
		profiles: profiles,
		router:   router,
		timeout:  timeout,
		logger:   logger,
		hooks:    hooks,
	}
}

type group struct {
	slot   string
	alerts []alert.WasteAlert
}

// Optimize partitions the caller's CLAIMED alerts by time slot and orders
// each group. Any invalid id or any failed group fails the whole call.
func (o *Optimizer) Optimize(ctx context.Context, userID string, alertIDs []string) (Plan, error) {
	ctx, span := tracer.Start(ctx, "route.Optimize", trace.WithAttributes(
		attribute.Int("route.alerts", len(alertIDs)),
	))
	defer span.End()

	plan, err := o.optimize(ctx, span, userID, alertIDs)
	if o.hooks.OnOptimize != nil {
		o.hooks.OnOptimize(result(err))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return plan, nil
}

func (o *Optimizer) optimize(ctx context.Context, span trace.Span, userID string, alertIDs []string) (Plan, error) {
	if err := validateIDs(alertIDs); err != nil {
		return nil, err
	}

	p, err := o.profiles.GetCollectorByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			return nil, fmt.Errorf("collector profile for %s: %w", userID, alert.ErrForbidden)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("collector.id", p.ID))

	alerts, err := o.load(ctx, p.ID, alertIDs)
	if err != nil {
		return nil, err
	}

	groups := partition(alerts)
	span.SetAttributes(attribute.Int("route.groups", len(groups)))

	g, gctx := errgroup.WithContext(ctx)
	for i := range groups {
		if o.hooks.OnGroup != nil {
			o.hooks.OnGroup(len(groups[i].alerts))
		}
		if len(groups[i].alerts) < 2 {
			continue
		}
		g.Go(func() error {
			ordered, err := o.orderGroup(gctx, p.Location, &groups[i])
			if err != nil {
				return err
			}
			groups[i].alerts = ordered
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan := make(Plan, len(groups))
	for _, gr := range groups {
		plan[gr.slot] = gr.alerts
	}

	o.logger.Info(ctx, "route optimized",
		"collector_id", p.ID,
		"alerts", len(alerts),
		"groups", len(groups),
	)
	return plan, nil
}

func validateIDs(ids []string) error {
	if len(ids) == 0 {
		return alert.NewValidationError("alert_ids", "at least one alert is required")
	}
	if len(ids) > maxAlerts {
		return alert.NewValidationError("alert_ids", fmt.Sprintf("at most %d alerts per request", maxAlerts))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return alert.NewValidationError("alert_ids", "ids must not be empty")
		}
		if _, dup := seen[id]; dup {
			return alert.NewValidationError("alert_ids", fmt.Sprintf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// load returns the alerts in request order after checking each belongs to
// collectorID and is CLAIMED.
func (o *Optimizer) load(ctx context.Context, collectorID string, ids []string) ([]alert.WasteAlert, error) {
	found, err := o.alerts.ListAlerts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	byID := make(map[string]alert.WasteAlert, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	out := make([]alert.WasteAlert, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("alert %s: %w", id, alert.ErrNotFound)
		}
		if a.ClaimantID != "" && a.ClaimantID != collectorID {
			return nil, fmt.Errorf("alert %s is claimed by another collector: %w", id, alert.ErrForbidden)
		}
		if a.Status != alert.StatusClaimed {
			return nil, fmt.Errorf("alert %s is %s, not claimed: %w", id, a.Status, alert.ErrNotFound)
		}
		out = append(out, a)
	}
	return out, nil
}

// partition groups alerts by time slot, keeping first-seen slot order and
// input order within each group.
func partition(alerts []alert.WasteAlert) []group {
	idx := make(map[string]int)
	var groups []group
	for _, a := range alerts {
		i, ok := idx[a.TimeSlot]
		if !ok {
			i = len(groups)
			idx[a.TimeSlot] = i
			groups = append(groups, group{slot: a.TimeSlot})
		}
		groups[i].alerts = append(groups[i].alerts, a)
	}
	return groups
}

func (o *Optimizer) orderGroup(ctx context.Context, origin alert.Coordinates, gr *group) ([]alert.WasteAlert, error) {
	ctx, span := tracer.Start(ctx, "route.orderGroup", trace.WithAttributes(
		attribute.String("route.slot", gr.slot),
		attribute.Int("route.stops", len(gr.alerts)),
	))
	defer span.End()

	stops := make([]alert.Coordinates, len(gr.alerts))
	for i := range gr.alerts {
		stops[i] = gr.alerts[i].Location
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	order, err := o.router.Optimize(callCtx, origin, stops)
	if err == nil {
		err = checkPermutation(order, len(stops))
	}
	if err != nil && !errors.Is(err, alert.ErrUpstream) {
		err = fmt.Errorf("%w: %w", alert.ErrUpstream, err)
	}
	if o.hooks.OnRouterCall != nil {
		o.hooks.OnRouterCall(result(err), time.Since(start))
	}
	if err != nil {
		err = fmt.Errorf("route slot %q: %w", gr.slot, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ordered := make([]alert.WasteAlert, len(order))
	for i, j := range order {
		ordered[i] = gr.alerts[j]
	}
	return ordered, nil
}

// checkPermutation verifies order holds each of 0..n-1 exactly once.
func checkPermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("router returned %d indices for %d stops", len(order), n)
	}
	seen := make([]bool, n)
	for _, j := range order {
		if j < 0 || j >= n || seen[j] {
			return fmt.Errorf("router returned invalid order %v", order)
		}
		seen[j] = true
	}
	return nil
}

type unconfigured struct{}

func (unconfigured) Optimize(context.Context, alert.Coordinates, []alert.Coordinates) ([]int, error) {
	return nil, fmt.Errorf("no routing provider configured: %w", alert.ErrUpstream)
}
