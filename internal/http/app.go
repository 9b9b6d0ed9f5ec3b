package http

import (
	"context"

	"intro_pipeline_backend/platform/config"
	"intro_pipeline_backend/platform/logger"
)

// RouterConfig is the slice of config the router reads: listen address, CORS and the
// JWT secret used to verify staff tokens.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is what cmd/api hands the router. Event wiring (sale and churn adjustments) is
// done by the modules themselves before the router is built.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	// Health is the Postgres pool; nil skips the ping.
	Health  HealthChecker
	// Modules are mounted in order under /api/v1.
	Modules []Module
}
