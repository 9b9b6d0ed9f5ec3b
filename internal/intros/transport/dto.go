package transport

import (
	"intro_pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// ListIntrosRequest is the query parameters for listing intros by class date.
// Both bounds are inclusive; an empty range means today through the coming week.
type ListIntrosRequest struct {
	From       string `form:"from" validate:"omitempty,civildate"`
	To         string `form:"to" validate:"omitempty,civildate"`
	IncludeVIP bool   `form:"includeVip"`
}

// NeedsOutcomeRequest is the query parameters for the needs-outcome worklist.
type NeedsOutcomeRequest struct {
	LookbackDays int `form:"lookbackDays" validate:"omitempty,min=1,max=365"`
}

// SummaryRequest is the query parameters for funnel counts.
type SummaryRequest struct {
	From string `form:"from" validate:"omitempty,civildate"`
	To   string `form:"to" validate:"omitempty,civildate"`
}

// UpdateStatusRequest is the request body for setting a booking's canonical status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,max=64"`
}

// RecordRunRequest is the request body for logging an intro's outcome.
type RecordRunRequest struct {
	Result         string `json:"result" validate:"required,max=120"`
	ResultCanon    string `json:"resultCanon,omitempty" validate:"omitempty,oneof=SOLD NO_SALE NO_SHOW"`
	MembershipType string `json:"membershipType,omitempty" validate:"max=120"`
}

// RunResponse is the logged outcome of an intro.
type RunResponse struct {
	ID             uuid.UUID `json:"id"`
	Result         string    `json:"result"`
	ResultCanon    string    `json:"resultCanon,omitempty"`
	MembershipType string    `json:"membershipType,omitempty"`
}

// IntroResponse is one booking with its run and classification.
type IntroResponse struct {
	ID             uuid.UUID             `json:"id"`
	MemberName     string                `json:"memberName"`
	CoachName      string                `json:"coachName"`
	ClassDate      string                `json:"classDate"`
	ClassTime      *string               `json:"classTime,omitempty"`
	LeadSource     string                `json:"leadSource"`
	Status         string                `json:"status"`
	LegacyStatus   string                `json:"legacyStatus,omitempty"`
	Run            *RunResponse          `json:"run,omitempty"`
	Classification domain.Classification `json:"classification"`
}

// ListIntrosResponse is the response body for list endpoints.
type ListIntrosResponse struct {
	Items []IntroResponse `json:"items"`
	Total int             `json:"total"`
}

// SummaryResponse counts the funnel for a class-date range. VIP bookings are counted
// only in VIPExcluded.
type SummaryResponse struct {
	From         string                `json:"from"`
	To           string                `json:"to"`
	Total        int                   `json:"total"`
	Buckets      map[domain.Bucket]int `json:"buckets"`
	Results      map[domain.Result]int `json:"results"`
	Resolved     int                   `json:"resolved"`
	NeedsOutcome int                   `json:"needsOutcome"`
	VIPExcluded  int                   `json:"vipExcluded"`
}
