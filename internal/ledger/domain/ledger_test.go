package domain

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

func TestExpectedChurnNoteIsDeterministic(t *testing.T) {
	ev := ChurnEvent{
		ID:            uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000001"),
		Count:         2,
		EffectiveDate: civil.Date{Year: 2026, Month: time.March, Day: 1},
		Note:          "cancellations",
	}

	want := "Auto-churn: -2 [3f2a9c1e] effective 2026-03-01"
	if got := ExpectedChurnNote(ev); got != want {
		t.Fatalf("ExpectedChurnNote = %q, want %q", got, want)
	}

	ev.Note = "edited elsewhere"
	if got := ExpectedChurnNote(ev); got != want {
		t.Fatalf("note text must not affect the provenance note, got %q", got)
	}
}

func TestAutoChurnRecognition(t *testing.T) {
	id := uuid.New()
	if !(Entry{ChurnEventID: &id}).IsAutoChurn() {
		t.Fatalf("linked entry must be recognised")
	}
	if !(Entry{Note: "Auto-churn: -1 [abcdef12] effective 2026-01-01"}).IsAutoChurn() {
		t.Fatalf("legacy note must be recognised")
	}
	if (Entry{Note: SaleNote("Ana", "Premier")}).IsAutoChurn() {
		t.Fatalf("sale note is not a churn adjustment")
	}
}

func TestSaleNote(t *testing.T) {
	if got := SaleNote("Ana Ruiz", "Elite"); got != "Auto: +1 sale (Ana Ruiz, Elite)" {
		t.Fatalf("SaleNote = %q", got)
	}
	if got := SaleNote(" ", ""); got != "Auto: +1 sale (unknown member)" {
		t.Fatalf("SaleNote blank = %q", got)
	}
}

func TestCurrentValueUsesCreationOrder(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Seq: 1, Value: 50, LoggedDate: civil.Date{Year: 2026, Month: time.March, Day: 9}, CreatedAt: base},
		// Backdated but created last.
		{Seq: 3, Value: 48, LoggedDate: civil.Date{Year: 2026, Month: time.February, Day: 1}, CreatedAt: base.Add(2 * time.Minute)},
		{Seq: 2, Value: 51, LoggedDate: civil.Date{Year: 2026, Month: time.March, Day: 10}, CreatedAt: base.Add(time.Minute)},
	}

	got, ok := CurrentValue(entries)
	if !ok || got != 48 {
		t.Fatalf("CurrentValue = %d, %v; want 48", got, ok)
	}

	if _, ok := CurrentValue(nil); ok {
		t.Fatalf("empty ledger has no current value")
	}
}

func TestCurrentValueFollowsSeqOverTimestamp(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	// A transaction that began earlier can commit later; its timestamp is older but
	// its sequence is newer.
	entries := []Entry{
		{Seq: 1, Value: 50, CreatedAt: base},
		{Seq: 2, Value: 51, CreatedAt: base.Add(2 * time.Second)},
		{Seq: 3, Value: 52, CreatedAt: base.Add(time.Second)},
	}

	if got, _ := CurrentValue(entries); got != 52 {
		t.Fatalf("CurrentValue = %d, want 52", got)
	}
}

func TestIsEffective(t *testing.T) {
	today := civil.Date{Year: 2026, Month: time.March, Day: 10}
	ev := ChurnEvent{EffectiveDate: today}
	if !ev.IsEffective(today) {
		t.Fatalf("event effective today must apply")
	}
	ev.EffectiveDate = today.AddDays(1)
	if ev.IsEffective(today) {
		t.Fatalf("future event must not apply")
	}
}
