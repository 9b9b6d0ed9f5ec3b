package domain

import "testing"

func TestCanonicalizeBookingType(t *testing.T) {
	tests := []struct {
		raw  string
		want BookingType
	}{
		{"", BookingTypeStandard},
		{"   ", BookingTypeStandard},
		{"vip", BookingTypeVIP},
		{"VIP", BookingTypeVIP},
		{"Vip", BookingTypeVIP},
		{" vip ", BookingTypeVIP},
		{"comp", BookingTypeComp},
		{"COMP", BookingTypeComp},
		{"standard", BookingTypeStandard},
		{"anything-else", BookingTypeStandard},
		{"vip event", BookingTypeStandard},
		{"complimentary", BookingTypeStandard},
	}

	for _, tc := range tests {
		if got := CanonicalizeBookingType(tc.raw); got != tc.want {
			t.Errorf("CanonicalizeBookingType(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestCanonicalizeBookingTypeIsFixedPointOnOwnOutput(t *testing.T) {
	for _, bt := range []BookingType{BookingTypeStandard, BookingTypeVIP, BookingTypeComp} {
		if got := CanonicalizeBookingType(string(bt)); got != bt {
			t.Errorf("CanonicalizeBookingType(%q) = %q, want fixed point", bt, got)
		}
	}
}

func TestCanonicalizeResultKnownPhrasings(t *testing.T) {
	tests := []struct {
		raw  string
		want Result
	}{
		{"Premier + OTbeat", ResultPurchased},
		{"Elite", ResultPurchased},
		{"sold - premier", ResultPurchased},
		{"Sold – Elite w/ OTbeat", ResultPurchased},
		{"Purchased", ResultPurchased},
		{"No-show", ResultNoShow},
		{"no show", ResultNoShow},
		{"Didn't Buy", ResultDidntBuy},
		{"didnt buy", ResultDidntBuy},
		{"Didn’t buy", ResultDidntBuy},
		{"  NOT INTERESTED ", ResultNotInterested},
		{"Follow-up needed", ResultFollowUpNeeded},
		{"Booked 2nd intro", ResultSecondIntroScheduled},
		{"SECOND_INTRO_SCHEDULED", ResultSecondIntroScheduled},
	}

	for _, tc := range tests {
		if got := CanonicalizeResult(tc.raw); got != tc.want {
			t.Errorf("CanonicalizeResult(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestCanonicalizeResultUnknownIsUnresolved(t *testing.T) {
	for _, raw := range []string{"", "   ", "Maybe later", "premier-ish", "sold?", "UNRESOLVED"} {
		if got := CanonicalizeResult(raw); got != ResultUnresolved {
			t.Errorf("CanonicalizeResult(%q) = %q, want UNRESOLVED", raw, got)
		}
	}
}

func TestResultPredicates(t *testing.T) {
	tests := []struct {
		r        Result
		sale     bool
		terminal bool
		resolved bool
	}{
		{ResultPurchased, true, true, true},
		{ResultNotInterested, false, true, true},
		{ResultDidntBuy, false, false, true},
		{ResultNoShow, false, false, true},
		{ResultFollowUpNeeded, false, false, true},
		{ResultSecondIntroScheduled, false, false, true},
		{ResultUnresolved, false, false, false},
	}

	for _, tc := range tests {
		if tc.r.IsSale() != tc.sale {
			t.Errorf("%s.IsSale() = %v", tc.r, !tc.sale)
		}
		if tc.r.IsTerminal() != tc.terminal {
			t.Errorf("%s.IsTerminal() = %v", tc.r, !tc.terminal)
		}
		if tc.r.IsResolved() != tc.resolved {
			t.Errorf("%s.IsResolved() = %v", tc.r, !tc.resolved)
		}
	}
}
