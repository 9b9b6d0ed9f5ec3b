// Package domain holds the AMC ledger records and the provenance notes that make
// automatic adjustments recognisable on replay.
package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// AutoChurnPrefix starts every note written by churn reconciliation.
const AutoChurnPrefix = "Auto-churn:"

// AutoChurnNotePattern is the SQL LIKE pattern matching AutoChurnPrefix.
const AutoChurnNotePattern = AutoChurnPrefix + "%"

// churnIDPrefixLen is how much of the churn event id is embedded in its provenance note.
const churnIDPrefixLen = 8

// Entry is one append-only AMC ledger row. Value is the absolute member count after
// the entry, not a delta. Seq is assigned while the append lock is held, so it is the
// creation order. ChurnEventID and SaleRunID link automatic entries to their source;
// each source gets at most one entry.
type Entry struct {
	ID           uuid.UUID
	Seq          int64
	LoggedDate   civil.Date
	Value        int
	Note         string
	Author       string
	ChurnEventID *uuid.UUID
	SaleRunID    *uuid.UUID
	CreatedAt    time.Time
}

// IsAutoChurn reports whether e was written by churn reconciliation.
func (e Entry) IsAutoChurn() bool {
	return e.ChurnEventID != nil || strings.HasPrefix(e.Note, AutoChurnPrefix)
}

// ChurnEvent records that Count members leave as of EffectiveDate. Created once and
// never mutated.
type ChurnEvent struct {
	ID            uuid.UUID
	Count         int
	EffectiveDate civil.Date
	Note          string
	CreatedBy     string
	CreatedAt     time.Time
}

// IsEffective reports whether ev applies on or before today.
func (ev ChurnEvent) IsEffective(today civil.Date) bool {
	return !ev.EffectiveDate.After(today)
}

// ExpectedChurnNote is the provenance note reconciliation writes for ev. It is derived
// only from the event's count, id and effective date, so replaying yields the same text.
func ExpectedChurnNote(ev ChurnEvent) string {
	id := ev.ID.String()
	if len(id) > churnIDPrefixLen {
		id = id[:churnIDPrefixLen]
	}
	return fmt.Sprintf("%s -%d [%s] effective %s", AutoChurnPrefix, ev.Count, id, ev.EffectiveDate)
}

// SaleNote is the provenance note for a +1 sale adjustment.
func SaleNote(personName, membershipType string) string {
	name := strings.TrimSpace(personName)
	if name == "" {
		name = "unknown member"
	}
	membership := strings.TrimSpace(membershipType)
	if membership == "" {
		return fmt.Sprintf("Auto: +1 sale (%s)", name)
	}
	return fmt.Sprintf("Auto: +1 sale (%s, %s)", name, membership)
}

// CurrentValue is the value of the most recently created entry in entries, which need
// not be sorted. ok is false when entries is empty.
func CurrentValue(entries []Entry) (value int, ok bool) {
	var latest *Entry
	for i := range entries {
		e := &entries[i]
		if latest == nil || e.Seq > latest.Seq {
			latest = e
		}
	}
	if latest == nil {
		return 0, false
	}
	return latest.Value, true
}
