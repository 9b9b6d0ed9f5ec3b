package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"intro_pipeline_backend/internal/events"
	"intro_pipeline_backend/internal/ledger/domain"
	"intro_pipeline_backend/internal/ledger/transport"
	"intro_pipeline_backend/platform/apperr"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/lock"
	"intro_pipeline_backend/platform/logger"
	"intro_pipeline_backend/platform/sanitize"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

const (
	maxNoteRunes      = 500
	defaultListLimit  = 20
	reconcileGateKey  = "amc:churn-reconcile"
	defaultGateTTL    = 30 * time.Second
	backgroundTimeout = time.Minute
)

// Store is the ledger persistence the service depends on.
type Store interface {
	// AppendAfterTail serializes appends: it reads the current tail (nil when the
	// ledger is empty), passes it to build and inserts the entry build returns.
	// A nil entry inserts nothing. inserted is false when nothing was written,
	// including when the entry's churn event or sale run link already exists.
	AppendAfterTail(ctx context.Context, build func(tail *domain.Entry) (*domain.Entry, error)) (inserted bool, err error)
	ListRecentEntries(ctx context.Context, limit int) ([]domain.Entry, error)
	ListNotesLike(ctx context.Context, pattern string) ([]string, error)
	// HasChurnAdjustment reports whether an entry links to eventID or carries note.
	HasChurnAdjustment(ctx context.Context, eventID uuid.UUID, note string) (bool, error)
	CreateChurnEvent(ctx context.Context, ev domain.ChurnEvent) error
	ListEffectiveChurnEvents(ctx context.Context, onOrBefore civil.Date) ([]domain.ChurnEvent, error)
}

// Gate is the single-writer lock around reconcile passes. *lock.Locker implements it.
type Gate interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, error)
}

// AdjustmentKind says what caused an automatic adjustment.
type AdjustmentKind string

const (
	KindSale  AdjustmentKind = "sale"
	KindChurn AdjustmentKind = "churn"
)

// AdjustmentStatus is the outcome of one adjustment attempt.
type AdjustmentStatus string

const (
	StatusApplied        AdjustmentStatus = "applied"
	StatusNoBaseline     AdjustmentStatus = "no_baseline"
	StatusAlreadyApplied AdjustmentStatus = "already_applied"
	StatusFailed         AdjustmentStatus = "failed"
)

// SaleAdjustment asks for a +1 entry after a membership sale. RunID links the entry to
// the sold run; when set, the database rejects a second entry for the same run.
type SaleAdjustment struct {
	PersonName     string
	MembershipType string
	Author         string
	RunID          *uuid.UUID
}

// ChurnAdjustment asks for a -Count entry. ChurnEventID links the entry to its
// source event; when set, the database rejects a second entry for the same event.
type ChurnAdjustment struct {
	Count         int
	Note          string
	Author        string
	EffectiveDate civil.Date
	ChurnEventID  *uuid.UUID
}

// AdjustmentResult reports one adjustment. Err is set only for StatusFailed.
type AdjustmentResult struct {
	Kind         AdjustmentKind
	Status       AdjustmentStatus
	Value        int
	Note         string
	ChurnEventID *uuid.UUID
	Err          error
}

// ReconcileReport summarizes one reconcile pass. Skipped is true when another pass
// held the gate; Err is set when the churn events could not be loaded.
type ReconcileReport struct {
	Today          civil.Date
	Considered     int
	Applied        int
	AlreadyApplied int
	NoBaseline     int
	Failed         int
	Skipped        bool
	Err            error
	Adjustments    []AdjustmentResult
}

// Service owns every write to the AMC ledger.
// Automatic adjustments never return errors; failures are logged and reported in the result.
type Service struct {
	store   Store
	clock   clock.Clock
	log     *logger.Logger
	gate    Gate
	gateTTL time.Duration
	bus     events.Bus

	background sync.WaitGroup
}

// New creates a ledger service.
func New(store Store, clk clock.Clock, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: store, clock: clk, log: log, gateTTL: defaultGateTTL}
}

// SetGate enables single-writer reconciliation. Without a gate, duplicate writes are
// still rejected by the churn event link.
func (s *Service) SetGate(gate Gate, ttl time.Duration) {
	s.gate = gate
	if ttl > 0 {
		s.gateTTL = ttl
	}
}

// SetEventBus sets the bus used to announce new churn events.
func (s *Service) SetEventBus(bus events.Bus) {
	s.bus = bus
}

// RecordSaleAdjustment writes one entry of tail+1. It is a no-op when the ledger has
// never been seeded.
func (s *Service) RecordSaleAdjustment(ctx context.Context, adj SaleAdjustment) AdjustmentResult {
	note := sanitize.Text(domain.SaleNote(adj.PersonName, adj.MembershipType), maxNoteRunes)
	result := s.appendAdjustment(ctx, KindSale, note, nil, func(tail *domain.Entry) *domain.Entry {
		return &domain.Entry{
			ID:         uuid.New(),
			LoggedDate: s.clock.Today(),
			Value:      tail.Value + 1,
			Note:       note,
			Author:     adj.Author,
			SaleRunID:  adj.RunID,
		}
	})
	s.log.WithContext(ctx).LedgerAdjustment(string(result.Kind), string(result.Status), result.Value, result.Note, result.Err)
	return result
}

// RecordChurnAdjustment writes one entry of tail-Count, logged on the effective date.
// Same seeding guard as RecordSaleAdjustment.
func (s *Service) RecordChurnAdjustment(ctx context.Context, adj ChurnAdjustment) AdjustmentResult {
	note := strings.TrimSpace(adj.Note)
	if note == "" {
		note = fmt.Sprintf("Churn: -%d", adj.Count)
	}
	note = sanitize.Text(note, maxNoteRunes)

	var result AdjustmentResult
	if adj.Count <= 0 {
		result = AdjustmentResult{
			Kind:         KindChurn,
			Status:       StatusFailed,
			Note:         note,
			ChurnEventID: adj.ChurnEventID,
			Err:          fmt.Errorf("churn count must be positive, got %d", adj.Count),
		}
	} else {
		loggedDate := adj.EffectiveDate
		if !loggedDate.IsValid() {
			loggedDate = s.clock.Today()
		}
		result = s.appendAdjustment(ctx, KindChurn, note, adj.ChurnEventID, func(tail *domain.Entry) *domain.Entry {
			return &domain.Entry{
				ID:           uuid.New(),
				LoggedDate:   loggedDate,
				Value:        tail.Value - adj.Count,
				Note:         note,
				Author:       adj.Author,
				ChurnEventID: adj.ChurnEventID,
			}
		})
	}

	s.log.WithContext(ctx).LedgerAdjustment(string(result.Kind), string(result.Status), result.Value, result.Note, result.Err)
	return result
}

func (s *Service) appendAdjustment(ctx context.Context, kind AdjustmentKind, note string, eventID *uuid.UUID, next func(tail *domain.Entry) *domain.Entry) AdjustmentResult {
	result := AdjustmentResult{Kind: kind, Note: note, ChurnEventID: eventID}

	var built *domain.Entry
	inserted, err := s.store.AppendAfterTail(ctx, func(tail *domain.Entry) (*domain.Entry, error) {
		if tail == nil {
			return nil, nil
		}
		built = next(tail)
		return built, nil
	})

	switch {
	case err != nil:
		result.Status = StatusFailed
		result.Err = err
	case built == nil:
		result.Status = StatusNoBaseline
	case !inserted:
		result.Status = StatusAlreadyApplied
	default:
		result.Status = StatusApplied
		result.Value = built.Value
	}
	return result
}

// ReconcileEffectiveChurn applies every churn event effective on or before today that
// has no ledger entry yet. Running it again for the same events writes nothing.
func (s *Service) ReconcileEffectiveChurn(ctx context.Context, today civil.Date) ReconcileReport {
	report := ReconcileReport{Today: today, Adjustments: []AdjustmentResult{}}
	log := s.log.WithContext(ctx)

	if s.gate != nil {
		lease, err := s.gate.Acquire(ctx, reconcileGateKey, s.gateTTL)
		switch {
		case errors.Is(err, lock.ErrNotAcquired):
			report.Skipped = true
			log.ReconcilePass(today.String(), 0, 0, 0, 0, true)
			return report
		case err != nil:
			// The churn event link still rejects duplicates without the gate.
			log.Warn("reconcile gate unavailable, continuing without it", "error", err)
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("reconcile gate release failed", "error", err)
				}
			}()
		}
	}

	churnEvents, err := s.store.ListEffectiveChurnEvents(ctx, today)
	if err != nil {
		report.Err = err
		log.DatabaseError("list effective churn events", err)
		log.ReconcilePass(today.String(), 0, 0, 0, 0, false)
		return report
	}

	existing := map[string]bool{}
	notes, err := s.store.ListNotesLike(ctx, domain.AutoChurnNotePattern)
	if err != nil {
		// Each event is re-checked below, so a missing snapshot only costs extra reads.
		log.DatabaseError("list auto-churn notes", err)
	}
	for _, n := range notes {
		existing[n] = true
	}

	for _, ev := range churnEvents {
		if !ev.IsEffective(today) {
			continue
		}
		report.Considered++

		note := domain.ExpectedChurnNote(ev)
		if existing[note] {
			report.AlreadyApplied++
			continue
		}

		eventID := ev.ID
		applied, err := s.store.HasChurnAdjustment(ctx, eventID, note)
		if err != nil {
			result := AdjustmentResult{Kind: KindChurn, Status: StatusFailed, Note: note, ChurnEventID: &eventID, Err: err}
			log.LedgerAdjustment(string(result.Kind), string(result.Status), 0, note, err)
			report.Failed++
			report.Adjustments = append(report.Adjustments, result)
			continue
		}
		if applied {
			report.AlreadyApplied++
			continue
		}

		result := s.RecordChurnAdjustment(ctx, ChurnAdjustment{
			Count:         ev.Count,
			Note:          note,
			Author:        ev.CreatedBy,
			EffectiveDate: ev.EffectiveDate,
			ChurnEventID:  &eventID,
		})
		report.Adjustments = append(report.Adjustments, result)

		switch result.Status {
		case StatusApplied:
			report.Applied++
			existing[note] = true
		case StatusAlreadyApplied:
			report.AlreadyApplied++
		case StatusNoBaseline:
			report.NoBaseline++
		default:
			report.Failed++
		}
	}

	log.ReconcilePass(today.String(), report.Considered, report.Applied, report.AlreadyApplied, report.Failed, false)
	return report
}

// ReconcileNow runs a pass for the studio's current date.
func (s *Service) ReconcileNow(ctx context.Context) ReconcileReport {
	return s.ReconcileEffectiveChurn(ctx, s.clock.Today())
}

// ReconcileInBackground starts a pass that outlives ctx's cancellation. Used by page
// loads, which must not wait for the ledger.
func (s *Service) ReconcileInBackground(ctx context.Context) {
	detached := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		runCtx, cancel := context.WithTimeout(detached, backgroundTimeout)
		defer cancel()
		s.ReconcileNow(runCtx)
	}()
}

// Wait blocks until background passes have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Snapshot returns the current value and the most recent entries, newest first.
func (s *Service) Snapshot(ctx context.Context, req transport.ListEntriesRequest) (*transport.LedgerResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	entries, err := s.store.ListRecentEntries(ctx, limit)
	if err != nil {
		return nil, err
	}

	resp := &transport.LedgerResponse{Entries: make([]transport.EntryResponse, 0, len(entries))}
	if value, ok := domain.CurrentValue(entries); ok {
		resp.Current = &value
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	return resp, nil
}

// CreateEntry appends a manual entry. It is the only way to seed the ledger.
func (s *Service) CreateEntry(ctx context.Context, author string, req transport.CreateEntryRequest) (*transport.EntryResponse, error) {
	if req.Value < 0 {
		return nil, apperr.Validation("value must not be negative")
	}

	loggedDate := s.clock.Today()
	if req.LoggedDate != "" {
		d, err := civil.ParseDate(req.LoggedDate)
		if err != nil {
			return nil, apperr.Validation("loggedDate must be YYYY-MM-DD")
		}
		loggedDate = d
	}

	note := sanitize.Text(req.Note, maxNoteRunes)
	if note == "" {
		return nil, apperr.Validation("note is required")
	}
	if strings.HasPrefix(note, domain.AutoChurnPrefix) {
		return nil, apperr.Validation("note prefix is reserved for automatic entries")
	}

	entry := domain.Entry{
		ID:         uuid.New(),
		LoggedDate: loggedDate,
		Value:      req.Value,
		Note:       note,
		Author:     author,
	}
	if _, err := s.store.AppendAfterTail(ctx, func(*domain.Entry) (*domain.Entry, error) {
		return &entry, nil
	}); err != nil {
		return nil, err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	resp := toEntryResponse(entry)
	return &resp, nil
}

// CreateChurnEvent stores a churn event. It reaches the ledger on the next reconcile
// pass once its effective date has arrived.
func (s *Service) CreateChurnEvent(ctx context.Context, author string, req transport.CreateChurnRequest) (*transport.ChurnEventResponse, error) {
	if req.Count < 1 {
		return nil, apperr.Validation("count must be at least 1")
	}
	effective, err := civil.ParseDate(req.EffectiveDate)
	if err != nil {
		return nil, apperr.Validation("effectiveDate must be YYYY-MM-DD")
	}

	ev := domain.ChurnEvent{
		ID:            uuid.New(),
		Count:         req.Count,
		EffectiveDate: effective,
		Note:          sanitize.Text(req.Note, maxNoteRunes),
		CreatedBy:     author,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.CreateChurnEvent(ctx, ev); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ChurnEventRecorded{
			BaseEvent:     events.NewBaseEvent(),
			ChurnEventID:  ev.ID,
			Count:         ev.Count,
			EffectiveDate: ev.EffectiveDate.String(),
			RecordedBy:    author,
		})
	}

	return &transport.ChurnEventResponse{
		ID:            ev.ID,
		Count:         ev.Count,
		EffectiveDate: ev.EffectiveDate.String(),
		Note:          ev.Note,
		CreatedBy:     ev.CreatedBy,
		CreatedAt:     ev.CreatedAt,
	}, nil
}

// ToReconcileResponse converts a report to its wire form.
func ToReconcileResponse(r ReconcileReport) transport.ReconcileResponse {
	resp := transport.ReconcileResponse{
		Today:          r.Today.String(),
		Considered:     r.Considered,
		Applied:        r.Applied,
		AlreadyApplied: r.AlreadyApplied,
		NoBaseline:     r.NoBaseline,
		Failed:         r.Failed,
		Skipped:        r.Skipped,
		Adjustments:    make([]transport.AdjustmentResponse, 0, len(r.Adjustments)),
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	for _, a := range r.Adjustments {
		item := transport.AdjustmentResponse{
			Kind:         string(a.Kind),
			Status:       string(a.Status),
			Value:        a.Value,
			Note:         a.Note,
			ChurnEventID: a.ChurnEventID,
		}
		if a.Err != nil {
			item.Error = a.Err.Error()
		}
		resp.Adjustments = append(resp.Adjustments, item)
	}
	return resp
}

func toEntryResponse(e domain.Entry) transport.EntryResponse {
	return transport.EntryResponse{
		ID:           e.ID,
		LoggedDate:   e.LoggedDate.String(),
		Value:        e.Value,
		Note:         e.Note,
		Author:       e.Author,
		ChurnEventID: e.ChurnEventID,
		SaleRunID:    e.SaleRunID,
		CreatedAt:    e.CreatedAt,
	}
}
