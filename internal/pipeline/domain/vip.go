package domain

import "strings"

// VIPSignal names the field that marked a record as VIP/comp.
type VIPSignal string

const (
	VIPSignalNone        VIPSignal = ""
	VIPSignalFlag        VIPSignal = "is_vip"
	VIPSignalBookingType VIPSignal = "booking_type"
	VIPSignalSession     VIPSignal = "vip_session"
	VIPSignalLeadSource  VIPSignal = "lead_source"
)

type vipFields struct {
	flag       bool
	typeCanon  string
	sessionID  *string
	leadSource string
}

// detect checks the signals in priority order; any one is sufficient.
func (f vipFields) detect() VIPSignal {
	if f.flag {
		return VIPSignalFlag
	}
	if t := CanonicalizeBookingType(f.typeCanon); t == BookingTypeVIP || t == BookingTypeComp {
		return VIPSignalBookingType
	}
	if f.sessionID != nil && strings.TrimSpace(*f.sessionID) != "" {
		return VIPSignalSession
	}
	if strings.Contains(strings.ToLower(f.leadSource), "vip") {
		return VIPSignalLeadSource
	}
	return VIPSignalNone
}

func bookingVIPFields(b Booking) vipFields {
	return vipFields{flag: b.IsVIP, typeCanon: b.BookingTypeCanon, sessionID: b.VIPSessionID, leadSource: b.LeadSource}
}

func runVIPFields(r Run) vipFields {
	return vipFields{flag: r.IsVIP, typeCanon: r.BookingTypeCanon, sessionID: r.VIPSessionID, leadSource: r.LeadSource}
}

// BookingVIPSignal returns the first VIP signal found on b, or VIPSignalNone.
func BookingVIPSignal(b Booking) VIPSignal {
	return bookingVIPFields(b).detect()
}

// RunVIPSignal returns the first VIP signal found on r, or VIPSignalNone.
func RunVIPSignal(r Run) VIPSignal {
	return runVIPFields(r).detect()
}

// IsVIPBooking reports whether b is a VIP or comp booking.
func IsVIPBooking(b Booking) bool {
	return BookingVIPSignal(b) != VIPSignalNone
}

// IsVIPRun reports whether r belongs to a VIP or comp session.
func IsVIPRun(r Run) bool {
	return RunVIPSignal(r) != VIPSignalNone
}

// ShouldExcludeFromFunnel reports whether b stays out of dashboards, follow-up queues
// and scoreboards. Handling a VIP booking that converted into a real booking is left to
// the caller.
func ShouldExcludeFromFunnel(b Booking) bool {
	return IsVIPBooking(b)
}

// EffectiveBookingType is the single booking type that applies to b. An explicit VIP or
// COMP column wins; otherwise any other VIP signal yields VIP. COMP is never inferred.
func EffectiveBookingType(b Booking) BookingType {
	if t := CanonicalizeBookingType(b.BookingTypeCanon); t != BookingTypeStandard {
		return t
	}
	if IsVIPBooking(b) {
		return BookingTypeVIP
	}
	return BookingTypeStandard
}
