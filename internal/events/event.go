package events

import "github.com/google/uuid"

// =============================================================================
// Intro Pipeline Events
// =============================================================================

// SaleRecorded is published when a run's result becomes a sale. VIP and comp bookings
// never publish it. RunID is the ledger's link for the +1 entry, so redelivery cannot
// count the sale twice.
type SaleRecorded struct {
	BaseEvent
	BookingID      uuid.UUID `json:"bookingId"`
	RunID          uuid.UUID `json:"runId"`
	MemberName     string    `json:"memberName"`
	MembershipType string    `json:"membershipType"`
	RecordedBy     string    `json:"recordedBy"`
}

func (e SaleRecorded) EventName() string { return "intros.sale.recorded" }

// =============================================================================
// Ledger Events
// =============================================================================

// ChurnEventRecorded is published after a churn event is stored. Subscribers may
// trigger a reconcile pass; the event itself carries no ledger write.
type ChurnEventRecorded struct {
	BaseEvent
	ChurnEventID  uuid.UUID `json:"churnEventId"`
	Count         int       `json:"count"`
	EffectiveDate string    `json:"effectiveDate"`
	RecordedBy    string    `json:"recordedBy"`
}

func (e ChurnEventRecorded) EventName() string { return "ledger.churn.recorded" }
