// Package domain holds the intro pipeline's classification rules: canonical values,
// VIP/comp detection, lifecycle buckets, and outcome resolution. Every function here is
// pure and total; ambiguous input resolves to a sentinel, never an error.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Booking is one scheduled intro as stored, including legacy columns that predate
// the canonical ones.
type Booking struct {
	ID         uuid.UUID
	MemberName string
	CoachName  string
	// ClassDate is the local civil date as YYYY-MM-DD. Empty when unknown.
	ClassDate string
	ClassTime *string

	IsVIP            bool
	BookingTypeCanon string
	VIPSessionID     *string
	LeadSource       string

	StatusCanon  string
	LegacyStatus string

	DeletedAt *time.Time
}

// IsDeleted reports whether the booking carries a soft-delete marker.
func (b Booking) IsDeleted() bool {
	return b.DeletedAt != nil
}

// Run is the realized outcome of an intro. Its VIP fields mirror Booking's so a
// run logged without a booking can still be classified.
type Run struct {
	ID             uuid.UUID
	BookingID      *uuid.UUID
	MemberName     string
	MembershipType string

	Result      string
	ResultCanon string

	IsVIP            bool
	BookingTypeCanon string
	VIPSessionID     *string
	LeadSource       string
}

// Intro is a booking together with its run, if one has been logged.
type Intro struct {
	Booking Booking
	Run     *Run
}
