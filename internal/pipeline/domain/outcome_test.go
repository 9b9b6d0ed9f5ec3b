package domain

import (
	"testing"
	"time"
)

const yesterday = "2026-03-09"

func TestNormalizeBookingStatus(t *testing.T) {
	tests := map[string]string{
		"closed purchased":       BookingStatusClosedPurchased,
		"Closed-Purchased":       BookingStatusClosedPurchased,
		" cancelled ":            BookingStatusCanceled,
		"second intro scheduled": BookingStatusSecondIntroScheduled,
		"Active":                 BookingStatusActive,
	}
	for in, want := range tests {
		if got := NormalizeBookingStatus(in); got != want {
			t.Errorf("NormalizeBookingStatus(%q) = %q, want %q", in, got, want)
		}
	}
	if IsKnownBookingStatus("Open") {
		t.Errorf("Open is not a canonical status")
	}
}

func TestResolveOutcomeOrder(t *testing.T) {
	tests := []struct {
		name string
		b    Booking
		r    *Run
		want ResolutionSource
	}{
		{"open without run", Booking{StatusCanon: "ACTIVE", LegacyStatus: "Open"}, nil, ResolvedByNone},
		{"canon closed", Booking{StatusCanon: "CLOSED_PURCHASED"}, nil, ResolvedByBookingCanon},
		{"canon first even with legacy", Booking{StatusCanon: "DORMANT", LegacyStatus: "Closed"}, nil, ResolvedByBookingCanon},
		{"legacy only", Booking{LegacyStatus: "Closed – Bought"}, nil, ResolvedByBookingLegacy},
		{"legacy cancelled spelling", Booking{LegacyStatus: "Cancelled"}, nil, ResolvedByBookingLegacy},
		{"run canon", Booking{StatusCanon: "ACTIVE"}, &Run{ResultCanon: "no_show"}, ResolvedByRunCanonResult},
		{"run legacy text", Booking{}, &Run{Result: "Sold - Premier"}, ResolvedByRunLegacyResult},
		{"follow up counts as resolved", Booking{}, &Run{Result: "Follow-up needed"}, ResolvedByRunLegacyResult},
		{"unresolved run text", Booking{}, &Run{Result: "thinking about it"}, ResolvedByNone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveOutcome(tc.b, tc.r); got != tc.want {
				t.Fatalf("ResolveOutcome = %q, want %q", got, tc.want)
			}
			if IsResolvedOutcome(tc.b, tc.r) != (tc.want != ResolvedByNone) {
				t.Fatalf("IsResolvedOutcome disagrees with source %q", tc.want)
			}
		})
	}
}

func TestIsUnresolvedPastIntroScenario(t *testing.T) {
	open := Booking{ClassDate: yesterday, LegacyStatus: "Open"}
	if !IsUnresolvedPastIntro(open, nil, testToday) {
		t.Fatalf("open booking from yesterday without a run must need an outcome")
	}

	vip := open
	vip.IsVIP = true
	if IsUnresolvedPastIntro(vip, nil, testToday) {
		t.Fatalf("vip booking must never need an outcome")
	}

	if IsUnresolvedPastIntro(open, &Run{ResultCanon: RunResultNoShow}, testToday) {
		t.Fatalf("booking with a NO_SHOW run is resolved")
	}

	if !IsUnresolvedPastIntro(open, &Run{Result: "unsure"}, testToday) {
		t.Fatalf("an unresolved run result does not resolve a past booking")
	}
}

func TestIsUnresolvedPastIntroNeverFiresForVIP(t *testing.T) {
	session := "vip-1"
	for mask := 1; mask < 16; mask++ {
		b := Booking{ClassDate: yesterday}
		if mask&1 != 0 {
			b.IsVIP = true
		}
		if mask&2 != 0 {
			b.BookingTypeCanon = "COMP"
		}
		if mask&4 != 0 {
			b.VIPSessionID = &session
		}
		if mask&8 != 0 {
			b.LeadSource = "VIP Night"
		}
		if IsUnresolvedPastIntro(b, nil, testToday) {
			t.Fatalf("mask %04b: vip booking flagged as needing outcome", mask)
		}
	}
}

func TestIsUnresolvedPastIntroDates(t *testing.T) {
	deletedAt := time.Date(2026, time.March, 9, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		b    Booking
	}{
		{"today", Booking{ClassDate: "2026-03-10"}},
		{"tomorrow", Booking{ClassDate: "2026-03-11"}},
		{"far future", Booking{ClassDate: "2026-06-01"}},
		{"unparseable", Booking{ClassDate: "03/09/2026"}},
		{"blank", Booking{}},
		{"deleted", Booking{ClassDate: yesterday, DeletedAt: &deletedAt}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if IsUnresolvedPastIntro(tc.b, nil, testToday) {
				t.Fatalf("booking %+v must not need an outcome", tc.b)
			}
		})
	}
}

func TestResolveRunResult(t *testing.T) {
	if got := ResolveRunResult(nil); got != ResultUnresolved {
		t.Fatalf("nil run = %q", got)
	}
	if got := ResolveRunResult(&Run{ResultCanon: "SOLD", Result: "no show"}); got != ResultPurchased {
		t.Fatalf("canon result must win, got %q", got)
	}
	if got := ResolveRunResult(&Run{Result: "Didn't buy"}); got != ResultDidntBuy {
		t.Fatalf("free text result = %q", got)
	}
}

func TestFreeTextRunResultTerminalSet(t *testing.T) {
	tests := []struct {
		result string
		want   ResolutionSource
	}{
		{"Elite", ResolvedByRunLegacyResult},
		{"Didn't Buy", ResolvedByRunLegacyResult},
		{"No-show", ResolvedByRunLegacyResult},
		{"not interested", ResolvedByRunLegacyResult},
		{"Follow-up needed", ResolvedByRunLegacyResult},
		{"Booked 2nd intro", ResolvedByRunLegacyResult},
		{"Maybe later", ResolvedByNone},
		{"", ResolvedByNone},
	}

	for _, tt := range tests {
		b := Booking{ClassDate: yesterday}
		if got := ResolveOutcome(b, &Run{Result: tt.result}); got != tt.want {
			t.Errorf("ResolveOutcome(result %q) = %q, want %q", tt.result, got, tt.want)
		}
	}

	for r := range terminalLegacyResults {
		if !r.IsResolved() {
			t.Errorf("terminal result %q must be a resolved canonical value", r)
		}
	}
}
