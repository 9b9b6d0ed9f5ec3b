package clock

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestSystemClockUsesLocationForToday(t *testing.T) {
	loc := time.FixedZone("UTC-10", -10*60*60)
	c := New(loc)

	want := civil.DateOf(time.Now().In(loc))
	if got := c.Today(); got != want && got != want.AddDays(1) {
		t.Fatalf("Today() = %s, want %s", got, want)
	}
}

func TestFixedDate(t *testing.T) {
	d := civil.Date{Year: 2026, Month: time.March, Day: 9}
	c := FixedDate(d)
	if c.Today() != d {
		t.Fatalf("Today() = %s, want %s", c.Today(), d)
	}
	if c.Now().Hour() != 12 {
		t.Fatalf("Now().Hour() = %d, want 12", c.Now().Hour())
	}
}
