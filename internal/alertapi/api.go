package alertapi

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/haul/internal/alert"
	"github.com/linnemanlabs/haul/internal/route"
)

// AlertService defines the business operations alertapi needs.
type AlertService interface {
	CreateAlert(ctx context.Context, in *alert.NewAlert) (*alert.WasteAlert, error)
	Get(ctx context.Context, alertID, userID string) (*alert.WasteAlert, error)
	StatusLog(ctx context.Context, alertID, userID string) ([]alert.StatusLog, error)
	ListCreated(ctx context.Context, userID string) ([]alert.WasteAlert, error)
	ListAvailable(ctx context.Context, userID string) ([]alert.WasteAlert, error)
	Claim(ctx context.Context, alertID, userID string) (*alert.WasteAlert, error)
	Advance(ctx context.Context, alertID string, to alert.Status, userID, note string) (*alert.WasteAlert, error)
	Reject(ctx context.Context, alertID, userID string) error
	Unreject(ctx context.Context, alertID, userID string) error
	History(ctx context.Context, userID string) (*alert.History, error)
	CreateReview(ctx context.Context, in *alert.NewReview) (*alert.Review, error)
}

// RoutePlanner orders a collector's claimed alerts.
type RoutePlanner interface {
	Optimize(ctx context.Context, userID string, alertIDs []string) (route.Plan, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    AlertService
	routes RoutePlanner
}

// New creates a new API handler.
func New(logger log.Logger, svc AlertService, routes RoutePlanner) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("alert service is required"))
	}
	if routes == nil {
		panic(xerrors.New("route planner is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		routes: routes,
	}
}

// RegisterRoutes attaches API endpoints to the router. Every route expects
// an identity from authmw.Identity on the request context.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", a.handleCreateAlert)
			r.Get("/mine", a.handleListMine)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetAlert)
				r.Get("/log", a.handleStatusLog)
				r.Post("/claim", a.handleClaim)
				r.Post("/status", a.handleAdvance)
				r.Post("/reject", a.handleReject)
				r.Delete("/reject", a.handleUnreject)
				r.Post("/review", a.handleCreateReview)
			})
		})
		r.Route("/collector", func(r chi.Router) {
			r.Get("/queue", a.handleQueue)
			r.Get("/history", a.handleHistory)
			r.Post("/route", a.handleOptimizeRoute)
		})
	})
}
