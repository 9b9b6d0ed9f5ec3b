package domain

import (
	"strings"

	"cloud.google.com/go/civil"
)

// Canonical booking statuses (booking_status_canon).
const (
	BookingStatusActive               = "ACTIVE"
	BookingStatusClosed               = "CLOSED"
	BookingStatusClosedPurchased      = "CLOSED_PURCHASED"
	BookingStatusCanceled             = "CANCELED"
	BookingStatusDormant              = "DORMANT"
	BookingStatusNotInterested        = "NOT_INTERESTED"
	BookingStatusSecondIntroScheduled = "SECOND_INTRO_SCHEDULED"
)

// Canonical run results (result_canon). This column predates the Result dictionary and
// only ever held these three resolved values.
const (
	RunResultSold   = "SOLD"
	RunResultNoSale = "NO_SALE"
	RunResultNoShow = "NO_SHOW"
)

var knownBookingStatuses = map[string]bool{
	BookingStatusActive:               true,
	BookingStatusClosed:               true,
	BookingStatusClosedPurchased:      true,
	BookingStatusCanceled:             true,
	BookingStatusDormant:              true,
	BookingStatusNotInterested:        true,
	BookingStatusSecondIntroScheduled: true,
}

var terminalCanonStatuses = map[string]bool{
	BookingStatusClosed:               true,
	BookingStatusClosedPurchased:      true,
	BookingStatusCanceled:             true,
	BookingStatusDormant:              true,
	BookingStatusNotInterested:        true,
	BookingStatusSecondIntroScheduled: true,
}

// terminalLegacyStatuses are lower-cased booking_status values written before the
// canonical column existed.
var terminalLegacyStatuses = map[string]bool{
	"closed":                 true,
	"closed - bought":        true,
	"closed – bought":        true,
	"closed (purchased)":     true,
	"purchased":              true,
	"canceled":               true,
	"cancelled":              true,
	"dormant":                true,
	"not interested":         true,
	"2nd intro scheduled":    true,
	"second intro scheduled": true,
}

// terminalLegacyResults are the canonical results that close an intro when they come
// from the free-text run result. FOLLOW_UP_NEEDED and SECOND_INTRO_SCHEDULED count:
// staff has logged what happens next, so the intro is off the worklist.
var terminalLegacyResults = map[Result]bool{
	ResultPurchased:            true,
	ResultDidntBuy:             true,
	ResultNoShow:               true,
	ResultNotInterested:        true,
	ResultFollowUpNeeded:       true,
	ResultSecondIntroScheduled: true,
}

var terminalRunCanonResults = map[string]Result{
	RunResultSold:   ResultPurchased,
	RunResultNoSale: ResultDidntBuy,
	RunResultNoShow: ResultNoShow,
}

// NormalizeBookingStatus upper-cases s and joins words with underscores, so
// "closed purchased" and "Closed-Purchased" both read as CLOSED_PURCHASED.
func NormalizeBookingStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "CANCELLED" {
		return BookingStatusCanceled
	}
	return s
}

// IsKnownBookingStatus reports whether s names a canonical booking status.
func IsKnownBookingStatus(s string) bool {
	return knownBookingStatuses[NormalizeBookingStatus(s)]
}

// ResolutionSource names which field resolved a booking's outcome.
type ResolutionSource string

const (
	ResolvedByNone            ResolutionSource = ""
	ResolvedByBookingCanon    ResolutionSource = "booking_status_canon"
	ResolvedByBookingLegacy   ResolutionSource = "booking_status"
	ResolvedByRunCanonResult  ResolutionSource = "run_result_canon"
	ResolvedByRunLegacyResult ResolutionSource = "run_result"
)

type outcomeResolver struct {
	source  ResolutionSource
	matches func(b Booking, r *Run) bool
}

// outcomeResolvers is checked in order: canonical field before its legacy counterpart,
// booking before run. The legacy checks stay until pre-canon rows are migrated.
var outcomeResolvers = []outcomeResolver{
	{ResolvedByBookingCanon, func(b Booking, _ *Run) bool {
		return terminalCanonStatuses[NormalizeBookingStatus(b.StatusCanon)]
	}},
	{ResolvedByBookingLegacy, func(b Booking, _ *Run) bool {
		return terminalLegacyStatuses[strings.ToLower(strings.TrimSpace(b.LegacyStatus))]
	}},
	{ResolvedByRunCanonResult, func(_ Booking, r *Run) bool {
		if r == nil {
			return false
		}
		_, ok := terminalRunCanonResults[strings.ToUpper(strings.TrimSpace(r.ResultCanon))]
		return ok
	}},
	{ResolvedByRunLegacyResult, func(_ Booking, r *Run) bool {
		return r != nil && terminalLegacyResults[CanonicalizeResult(r.Result)]
	}},
}

// ResolveOutcome returns the first source that marks the booking's lifecycle complete,
// or ResolvedByNone.
func ResolveOutcome(b Booking, r *Run) ResolutionSource {
	for _, res := range outcomeResolvers {
		if res.matches(b, r) {
			return res.source
		}
	}
	return ResolvedByNone
}

// IsResolvedOutcome reports whether no outcome action is needed for b.
func IsResolvedOutcome(b Booking, r *Run) bool {
	return ResolveOutcome(b, r) != ResolvedByNone
}

// IsUnresolvedPastIntro reports whether b belongs on the "needs outcome" worklist:
// a non-VIP, non-deleted booking dated strictly before today with no resolved outcome.
func IsUnresolvedPastIntro(b Booking, r *Run, today civil.Date) bool {
	if IsVIPBooking(b) || b.IsDeleted() {
		return false
	}
	if BucketFor(b.ClassDate, today) != BucketPast {
		return false
	}
	return !IsResolvedOutcome(b, r)
}

// ResolveRunResult is the canonical result of r: result_canon when set, else the
// free-text result through the dictionary. A nil run is ResultUnresolved.
func ResolveRunResult(r *Run) Result {
	if r == nil {
		return ResultUnresolved
	}
	if res, ok := terminalRunCanonResults[strings.ToUpper(strings.TrimSpace(r.ResultCanon))]; ok {
		return res
	}
	return CanonicalizeResult(r.Result)
}
