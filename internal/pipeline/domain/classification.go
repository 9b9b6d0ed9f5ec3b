package domain

import "cloud.google.com/go/civil"

// Classification is everything downstream views need to know about one booking.
type Classification struct {
	BookingType        BookingType      `json:"bookingType"`
	VIP                bool             `json:"vip"`
	VIPSignal          VIPSignal        `json:"vipSignal,omitempty"`
	ExcludedFromFunnel bool             `json:"excludedFromFunnel"`
	Bucket             Bucket           `json:"bucket"`
	HasRun             bool             `json:"hasRun"`
	Result             Result           `json:"result"`
	Resolved           bool             `json:"resolved"`
	ResolvedBy         ResolutionSource `json:"resolvedBy,omitempty"`
	NeedsOutcome       bool             `json:"needsOutcome"`
}

// Classify resolves b and its optional run against today.
func Classify(b Booking, r *Run, today civil.Date) Classification {
	signal := BookingVIPSignal(b)
	resolvedBy := ResolveOutcome(b, r)

	return Classification{
		BookingType:        EffectiveBookingType(b),
		VIP:                signal != VIPSignalNone,
		VIPSignal:          signal,
		ExcludedFromFunnel: ShouldExcludeFromFunnel(b),
		Bucket:             BucketFor(b.ClassDate, today),
		HasRun:             r != nil,
		Result:             ResolveRunResult(r),
		Resolved:           resolvedBy != ResolvedByNone,
		ResolvedBy:         resolvedBy,
		NeedsOutcome:       IsUnresolvedPastIntro(b, r, today),
	}
}
