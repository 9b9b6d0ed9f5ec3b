package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateEntryRequest is the request body for a manual baseline or correction entry.
type CreateEntryRequest struct {
	Value      int    `json:"value" validate:"min=0"`
	LoggedDate string `json:"loggedDate,omitempty" validate:"omitempty,civildate"`
	Note       string `json:"note" validate:"required,min=1,max=500"`
}

// CreateChurnRequest is the request body for recording a churn event.
type CreateChurnRequest struct {
	Count         int    `json:"count" validate:"required,min=1,max=1000"`
	EffectiveDate string `json:"effectiveDate" validate:"required,civildate"`
	Note          string `json:"note,omitempty" validate:"max=500"`
}

// ListEntriesRequest is the query parameters for GET /amc.
type ListEntriesRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=200"`
}

// EntryResponse is one ledger entry.
type EntryResponse struct {
	ID           uuid.UUID  `json:"id"`
	LoggedDate   string     `json:"loggedDate"`
	Value        int        `json:"value"`
	Note         string     `json:"note"`
	Author       string     `json:"author"`
	ChurnEventID *uuid.UUID `json:"churnEventId,omitempty"`
	SaleRunID    *uuid.UUID `json:"saleRunId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// LedgerResponse is the current AMC value and the most recent entries.
type LedgerResponse struct {
	// Current is nil until the ledger has been seeded.
	Current *int            `json:"current"`
	Entries []EntryResponse `json:"entries"`
}

// ChurnEventResponse is a stored churn event.
type ChurnEventResponse struct {
	ID            uuid.UUID `json:"id"`
	Count         int       `json:"count"`
	EffectiveDate string    `json:"effectiveDate"`
	Note          string    `json:"note"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AdjustmentResponse reports one automatic adjustment.
type AdjustmentResponse struct {
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Value        int        `json:"value,omitempty"`
	Note         string     `json:"note"`
	ChurnEventID *uuid.UUID `json:"churnEventId,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// ReconcileResponse is the summary of one reconcile pass.
type ReconcileResponse struct {
	Today          string               `json:"today"`
	Considered     int                  `json:"considered"`
	Applied        int                  `json:"applied"`
	AlreadyApplied int                  `json:"alreadyApplied"`
	NoBaseline     int                  `json:"noBaseline"`
	Failed         int                  `json:"failed"`
	Skipped        bool                 `json:"skipped"`
	Error          string               `json:"error,omitempty"`
	Adjustments    []AdjustmentResponse `json:"adjustments"`
}
