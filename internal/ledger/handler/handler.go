package handler

import (
	"net/http"

	"intro_pipeline_backend/internal/ledger/service"
	"intro_pipeline_backend/internal/ledger/transport"
	"intro_pipeline_backend/platform/httpkit"
	"intro_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the AMC ledger
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new ledger handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the ledger routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.POST("/entries", h.CreateEntry)
	rg.POST("/churn", h.CreateChurn)
	rg.POST("/reconcile", h.Reconcile)
}

// Get handles GET /api/v1/amc. It also starts a background reconcile pass, so newly
// effective churn shows up on the next load.
func (h *Handler) Get(c *gin.Context) {
	var req transport.ListEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	h.svc.ReconcileInBackground(c.Request.Context())

	result, err := h.svc.Snapshot(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// CreateEntry handles POST /api/v1/amc/entries
func (h *Handler) CreateEntry(c *gin.Context) {
	var req transport.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CreateEntry(c.Request.Context(), identity.DisplayName(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// CreateChurn handles POST /api/v1/amc/churn
func (h *Handler) CreateChurn(c *gin.Context) {
	var req transport.CreateChurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CreateChurnEvent(c.Request.Context(), identity.DisplayName(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// Reconcile handles POST /api/v1/amc/reconcile. A pass skipped because another one
// holds the gate is reported with 409.
func (h *Handler) Reconcile(c *gin.Context) {
	report := h.svc.ReconcileNow(c.Request.Context())

	status := http.StatusOK
	if report.Skipped {
		status = http.StatusConflict
	}
	httpkit.JSON(c, status, service.ToReconcileResponse(report))
}
