// Package ledger provides the AMC ledger module: automatic sale and churn
// adjustments plus the manual seeding and churn endpoints.
package ledger

import (
	"context"
	"time"

	"intro_pipeline_backend/internal/events"
	apphttp "intro_pipeline_backend/internal/http"
	"intro_pipeline_backend/internal/ledger/handler"
	"intro_pipeline_backend/internal/ledger/repository"
	"intro_pipeline_backend/internal/ledger/service"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/logger"
	"intro_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the ledger domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new ledger module with all dependencies wired.
// gate may be nil, in which case reconcile passes are not serialized across processes.
func NewModule(pool *pgxpool.Pool, clk clock.Clock, gate service.Gate, gateTTL time.Duration, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, clk, log)
	if gate != nil {
		svc.SetGate(gate, gateTTL)
	}
	svc.SetEventBus(bus)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "ledger"
}

// Service exposes the ledger service to the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes under /api/v1/amc
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/amc"))
}

// RegisterHandlers subscribes to the events that drive automatic adjustments.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.SaleRecorded{}.EventName(), m)
	bus.Subscribe(events.ChurnEventRecorded{}.EventName(), m)
}

// Handle routes events to the appropriate service method. Adjustment failures are
// reported by the service's logs, never to the publisher.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SaleRecorded:
		runID := e.RunID
		m.service.RecordSaleAdjustment(ctx, service.SaleAdjustment{
			PersonName:     e.MemberName,
			MembershipType: e.MembershipType,
			Author:         e.RecordedBy,
			RunID:          &runID,
		})
		return nil
	case events.ChurnEventRecorded:
		m.service.ReconcileNow(ctx)
		return nil
	default:
		return nil
	}
}

// Wait blocks until background reconcile passes have finished.
func (m *Module) Wait() {
	m.service.Wait()
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
