// Package http wires the intros and ledger modules into one gin router.
package http

import "github.com/gin-gonic/gin"

// Module is a bounded context that mounts its own routes.
type Module interface {
	// Name appears in the startup log.
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what a module receives at route registration.
type RouterContext struct {
	// Protected is /api/v1 behind bearer verification; the token's name claim becomes
	// the author of runs, ledger entries and churn events.
	Protected *gin.RouterGroup
}
