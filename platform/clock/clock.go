// Package clock provides the injectable source of "now" and "today".
// Classification compares local civil dates, so Today is always computed in the studio's location.
package clock

import (
	"time"

	"cloud.google.com/go/civil"
)

// Clock reports the current instant and the current local civil date.
type Clock interface {
	Now() time.Time
	Today() civil.Date
}

type systemClock struct {
	loc *time.Location
}

// New returns a Clock backed by time.Now, reporting civil dates in loc.
// A nil loc means time.Local.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time { return time.Now().In(c.loc) }

func (c systemClock) Today() civil.Date { return civil.DateOf(c.Now()) }

// Fixed is a Clock frozen at a single instant. Used by tests.
type Fixed struct {
	At time.Time
}

// FixedDate returns a Fixed clock at noon UTC on d.
func FixedDate(d civil.Date) Fixed {
	return Fixed{At: d.In(time.UTC).Add(12 * time.Hour)}
}

func (f Fixed) Now() time.Time { return f.At }

func (f Fixed) Today() civil.Date { return civil.DateOf(f.At) }
