package domain

import "testing"

func TestClassify(t *testing.T) {
	b := Booking{ClassDate: yesterday, LeadSource: "Walk-in"}
	got := Classify(b, nil, testToday)
	want := Classification{
		BookingType:  BookingTypeStandard,
		Bucket:       BucketPast,
		Result:       ResultUnresolved,
		NeedsOutcome: true,
	}
	if got != want {
		t.Fatalf("Classify = %+v, want %+v", got, want)
	}

	run := &Run{Result: "Sold – Elite"}
	got = Classify(b, run, testToday)
	if !got.HasRun || got.Result != ResultPurchased || !got.Resolved || got.ResolvedBy != ResolvedByRunLegacyResult || got.NeedsOutcome {
		t.Fatalf("Classify with sold run = %+v", got)
	}
}

func TestClassifyVIP(t *testing.T) {
	b := Booking{ClassDate: "2026-03-12", BookingTypeCanon: "vip"}
	got := Classify(b, nil, testToday)
	if !got.VIP || got.VIPSignal != VIPSignalBookingType || !got.ExcludedFromFunnel {
		t.Fatalf("vip flags = %+v", got)
	}
	if got.BookingType != BookingTypeVIP || got.Bucket != BucketWeek || got.NeedsOutcome {
		t.Fatalf("vip classification = %+v", got)
	}
}
