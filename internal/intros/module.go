// Package intros provides the intro pipeline module: classified booking views, the
// needs-outcome worklist and outcome logging.
package intros

import (
	"intro_pipeline_backend/internal/events"
	apphttp "intro_pipeline_backend/internal/http"
	"intro_pipeline_backend/internal/intros/handler"
	"intro_pipeline_backend/internal/intros/repository"
	"intro_pipeline_backend/internal/intros/service"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/logger"
	"intro_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the intros domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new intros module with all dependencies wired
func NewModule(pool *pgxpool.Pool, clk clock.Clock, bus events.Bus, lookbackDays int, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, clk, bus, lookbackDays, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "intros"
}

// RegisterRoutes registers the module's routes under /api/v1/intros
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/intros"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
