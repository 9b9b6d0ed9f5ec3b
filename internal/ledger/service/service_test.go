package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"intro_pipeline_backend/internal/events"
	"intro_pipeline_backend/internal/ledger/domain"
	"intro_pipeline_backend/internal/ledger/transport"
	"intro_pipeline_backend/platform/apperr"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/lock"
	"intro_pipeline_backend/platform/logger"

	"cloud.google.com/go/civil"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var today = civil.Date{Year: 2026, Month: time.March, Day: 10}

// memStore is an in-memory Store. Like the repository, the tail is the highest Seq,
// and the churn event and sale run links are unique.
type memStore struct {
	mu      sync.Mutex
	entries []domain.Entry
	churn   []domain.ChurnEvent
	seq     int64
	base    time.Time

	appendErr error
	listErr   error
	checkErr  error
}

func newMemStore() *memStore {
	return &memStore{base: time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)}
}

func (m *memStore) seed(value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(domain.Entry{ID: uuid.New(), LoggedDate: today, Value: value, Note: "baseline", Author: "owner"})
}

func (m *memStore) insertLocked(e domain.Entry) {
	m.seq++
	e.Seq = m.seq
	e.CreatedAt = m.base.Add(time.Duration(m.seq) * time.Second)
	m.entries = append(m.entries, e)
}

func (m *memStore) current() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CurrentValue(m.entries)
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memStore) AppendAfterTail(_ context.Context, build func(tail *domain.Entry) (*domain.Entry, error)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return false, m.appendErr
	}

	var tail *domain.Entry
	for i := range m.entries {
		if tail == nil || m.entries[i].Seq > tail.Seq {
			e := m.entries[i]
			tail = &e
		}
	}

	entry, err := build(tail)
	if err != nil || entry == nil {
		return false, err
	}
	for _, e := range m.entries {
		if sameLink(e.ChurnEventID, entry.ChurnEventID) || sameLink(e.SaleRunID, entry.SaleRunID) {
			return false, nil
		}
	}
	m.insertLocked(*entry)
	return true, nil
}

func sameLink(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

func (m *memStore) ListRecentEntries(_ context.Context, limit int) ([]domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memStore) ListNotesLike(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pattern != domain.AutoChurnNotePattern {
		return nil, errors.New("unexpected pattern " + pattern)
	}
	var notes []string
	for _, e := range m.entries {
		if len(e.Note) >= len(domain.AutoChurnPrefix) && e.Note[:len(domain.AutoChurnPrefix)] == domain.AutoChurnPrefix {
			notes = append(notes, e.Note)
		}
	}
	return notes, nil
}

func (m *memStore) HasChurnAdjustment(_ context.Context, eventID uuid.UUID, note string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkErr != nil {
		return false, m.checkErr
	}
	for _, e := range m.entries {
		if e.Note == note || (e.ChurnEventID != nil && *e.ChurnEventID == eventID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateChurnEvent(_ context.Context, ev domain.ChurnEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.churn = append(m.churn, ev)
	return nil
}

func (m *memStore) ListEffectiveChurnEvents(_ context.Context, onOrBefore civil.Date) ([]domain.ChurnEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.ChurnEvent
	for _, ev := range m.churn {
		if !ev.EffectiveDate.After(onOrBefore) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) addChurn(count int, effective civil.Date) domain.ChurnEvent {
	ev := domain.ChurnEvent{ID: uuid.New(), Count: count, EffectiveDate: effective, CreatedBy: "front desk"}
	_ = m.CreateChurnEvent(context.Background(), ev)
	return ev
}

func newTestService(store Store) *Service {
	return New(store, clock.FixedDate(today), logger.Discard())
}

func TestSaleThenChurnScenario(t *testing.T) {
	store := newMemStore()
	store.seed(50)
	svc := newTestService(store)
	ctx := context.Background()

	sale := svc.RecordSaleAdjustment(ctx, SaleAdjustment{PersonName: "Ana Ruiz", MembershipType: "Premier", Author: "Coach Sam"})
	if sale.Status != StatusApplied || sale.Value != 51 {
		t.Fatalf("sale = %+v, want applied 51", sale)
	}

	store.addChurn(2, today)
	report := svc.ReconcileEffectiveChurn(ctx, today)
	if report.Applied != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want one applied", report)
	}

	if got, _ := store.current(); got != 49 {
		t.Fatalf("current = %d, want 49", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.seed(50)
	ev := store.addChurn(3, today.AddDays(-2))
	svc := newTestService(store)
	ctx := context.Background()

	first := svc.ReconcileEffectiveChurn(ctx, today)
	if first.Applied != 1 {
		t.Fatalf("first pass = %+v", first)
	}
	second := svc.ReconcileEffectiveChurn(ctx, today)
	if second.Applied != 0 || second.AlreadyApplied != 1 || second.Considered != 1 {
		t.Fatalf("second pass = %+v", second)
	}

	if store.count() != 2 {
		t.Fatalf("entries = %d, want baseline plus one churn entry", store.count())
	}
	if got, _ := store.current(); got != 47 {
		t.Fatalf("current = %d, want 47", got)
	}

	store.mu.Lock()
	last := store.entries[len(store.entries)-1]
	store.mu.Unlock()
	if last.Note != domain.ExpectedChurnNote(ev) || last.ChurnEventID == nil || *last.ChurnEventID != ev.ID {
		t.Fatalf("churn entry = %+v", last)
	}
	if last.LoggedDate != ev.EffectiveDate {
		t.Fatalf("churn entry logged on %s, want effective date %s", last.LoggedDate, ev.EffectiveDate)
	}
}

func TestReconcileRecognisesLegacyNote(t *testing.T) {
	store := newMemStore()
	store.seed(50)
	ev := store.addChurn(1, today)
	store.mu.Lock()
	store.insertLocked(domain.Entry{ID: uuid.New(), LoggedDate: today, Value: 49, Note: domain.ExpectedChurnNote(ev)})
	store.mu.Unlock()

	report := newTestService(store).ReconcileEffectiveChurn(context.Background(), today)
	if report.Applied != 0 || report.AlreadyApplied != 1 {
		t.Fatalf("report = %+v, want legacy note treated as applied", report)
	}
}

func TestReconcileIgnoresFutureChurn(t *testing.T) {
	store := newMemStore()
	store.seed(50)
	store.addChurn(4, today.AddDays(1))

	report := newTestService(store).ReconcileEffectiveChurn(context.Background(), today)
	if report.Considered != 0 || store.count() != 1 {
		t.Fatalf("future churn applied early: %+v", report)
	}
}

func TestNoBaselineIsSkipped(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	sale := svc.RecordSaleAdjustment(ctx, SaleAdjustment{PersonName: "Ana"})
	if sale.Status != StatusNoBaseline || sale.Err != nil {
		t.Fatalf("sale on empty ledger = %+v", sale)
	}

	store.addChurn(2, today)
	report := svc.ReconcileEffectiveChurn(ctx, today)
	if report.NoBaseline != 1 || report.Applied != 0 {
		t.Fatalf("report = %+v, want no_baseline", report)
	}
	if store.count() != 0 {
		t.Fatalf("ledger must stay empty without a baseline")
	}

	// Once seeded, the pending churn is applied on the next pass.
	store.seed(30)
	report = svc.ReconcileEffectiveChurn(ctx, today)
	if report.Applied != 1 {
		t.Fatalf("report after seeding = %+v", report)
	}
	if got, _ := store.current(); got != 28 {
		t.Fatalf("current = %d, want 28", got)
	}
}

func TestFailuresAreIsolated(t *testing.T) {
	store := newMemStore()
	store.seed(50)
	store.appendErr = errors.New("connection reset")
	svc := newTestService(store)
	ctx := context.Background()

	sale := svc.RecordSaleAdjustment(ctx, SaleAdjustment{PersonName: "Ana"})
	if sale.Status != StatusFailed || sale.Err == nil {
		t.Fatalf("sale = %+v, want failed", sale)
	}

	store.addChurn(1, today)
	store.addChurn(2, today)
	report := svc.ReconcileEffectiveChurn(ctx, today)
	if report.Failed != 2 || report.Considered != 2 {
		t.Fatalf("report = %+v, want both events failed", report)
	}

	store.appendErr = nil
	report = svc.ReconcileEffectiveChurn(ctx, today)
	if report.Applied != 2 {
		t.Fatalf("retry pass = %+v", report)
	}
}

func TestReconcileReportsListFailure(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("timeout")

	report := newTestService(store).ReconcileEffectiveChurn(context.Background(), today)
	if report.Err == nil || report.Considered != 0 {
		t.Fatalf("report = %+v, want list error", report)
	}
}

func TestReconcileCheckFailureCountsAsFailed(t *testing.T) {
	store := newMemStore()
	store.seed(10)
	store.addChurn(1, today)
	store.checkErr = errors.New("timeout")

	report := newTestService(store).ReconcileEffectiveChurn(context.Background(), today)
	if report.Failed != 1 || store.count() != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestChurnLinkRejectsSecondEntry(t *testing.T) {
	store := newMemStore()
	store.seed(20)
	svc := newTestService(store)
	id := uuid.New()
	adj := ChurnAdjustment{Count: 1, Note: "manual", EffectiveDate: today, ChurnEventID: &id}

	if res := svc.RecordChurnAdjustment(context.Background(), adj); res.Status != StatusApplied || res.Value != 19 {
		t.Fatalf("first = %+v", res)
	}
	if res := svc.RecordChurnAdjustment(context.Background(), adj); res.Status != StatusAlreadyApplied {
		t.Fatalf("second = %+v, want already_applied", res)
	}
	if got, _ := store.current(); got != 19 {
		t.Fatalf("current = %d, want 19", got)
	}
}

func TestRecordChurnRejectsNonPositiveCount(t *testing.T) {
	store := newMemStore()
	store.seed(20)

	res := newTestService(store).RecordChurnAdjustment(context.Background(), ChurnAdjustment{Count: 0})
	if res.Status != StatusFailed || store.count() != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestConcurrentReconcileWritesOnce(t *testing.T) {
	store := newMemStore()
	store.seed(50)
	store.addChurn(2, today)
	svc := newTestService(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ReconcileEffectiveChurn(context.Background(), today)
		}()
	}
	wg.Wait()

	if store.count() != 2 {
		t.Fatalf("entries = %d, want exactly one churn entry", store.count())
	}
}

func TestReconcileSkipsWhenGateHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.New(client, "test:")
	ctx := context.Background()

	store := newMemStore()
	store.seed(50)
	store.addChurn(2, today)
	svc := newTestService(store)
	svc.SetGate(locker, time.Minute)

	held, err := locker.Acquire(ctx, reconcileGateKey, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	report := svc.ReconcileEffectiveChurn(ctx, today)
	if !report.Skipped || store.count() != 1 {
		t.Fatalf("report = %+v, want skipped", report)
	}

	if err := held.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	report = svc.ReconcileEffectiveChurn(ctx, today)
	if report.Skipped || report.Applied != 1 {
		t.Fatalf("report after release = %+v", report)
	}
	if mr.Exists("test:" + reconcileGateKey) {
		t.Fatalf("gate must be released after the pass")
	}
}

func TestReconcileProceedsWhenGateUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	store.seed(5)
	store.addChurn(1, today)
	svc := newTestService(store)
	svc.SetGate(lock.New(client, "test:"), time.Minute)
	mr.Close()

	report := svc.ReconcileEffectiveChurn(context.Background(), today)
	if report.Skipped || report.Applied != 1 {
		t.Fatalf("report = %+v, want pass without gate", report)
	}
}

func TestCreateEntrySeedsLedger(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	resp, err := svc.CreateEntry(ctx, "Owner", transport.CreateEntryRequest{Value: 42, LoggedDate: "2026-03-01", Note: "  opening <b>count</b> "})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if resp.Value != 42 || resp.LoggedDate != "2026-03-01" || resp.Note != "opening count" || resp.Author != "Owner" {
		t.Fatalf("entry = %+v", resp)
	}

	snap, err := svc.Snapshot(ctx, transport.ListEntriesRequest{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Current == nil || *snap.Current != 42 || len(snap.Entries) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	tests := []transport.CreateEntryRequest{
		{Value: -1, Note: "oops"},
		{Value: 10, Note: "Auto-churn: -1 [deadbeef] effective 2026-03-01"},
		{Value: 10, Note: "<p></p>"},
		{Value: 10, Note: "ok", LoggedDate: "03/01/2026"},
	}
	for _, req := range tests {
		if _, err := svc.CreateEntry(ctx, "Owner", req); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("CreateEntry(%+v) err = %v, want validation", req, err)
		}
	}
}

func TestSnapshotOnEmptyLedger(t *testing.T) {
	snap, err := newTestService(newMemStore()).Snapshot(context.Background(), transport.ListEntriesRequest{Limit: 5})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Current != nil || len(snap.Entries) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCreateChurnEventPublishes(t *testing.T) {
	store := newMemStore()
	bus := events.NewInMemoryBus(logger.Discard())
	svc := newTestService(store)
	svc.SetEventBus(bus)

	var (
		mu  sync.Mutex
		got []events.ChurnEventRecorded
	)
	bus.Subscribe(events.ChurnEventRecorded{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(events.ChurnEventRecorded))
		return nil
	}))

	resp, err := svc.CreateChurnEvent(context.Background(), "Front Desk", transport.CreateChurnRequest{Count: 2, EffectiveDate: "2026-03-12", Note: "freeze"})
	if err != nil {
		t.Fatalf("CreateChurnEvent: %v", err)
	}
	bus.Wait()

	if len(got) != 1 || got[0].ChurnEventID != resp.ID || got[0].EffectiveDate != "2026-03-12" {
		t.Fatalf("published = %+v", got)
	}
	if len(store.churn) != 1 || store.churn[0].CreatedBy != "Front Desk" {
		t.Fatalf("stored = %+v", store.churn)
	}
	if store.count() != 0 {
		t.Fatalf("creating a churn event must not write the ledger directly")
	}
}

func TestReconcileInBackground(t *testing.T) {
	store := newMemStore()
	store.seed(12)
	store.addChurn(2, today)
	svc := newTestService(store)

	ctx, cancel := context.WithCancel(context.Background())
	svc.ReconcileInBackground(ctx)
	cancel()
	svc.Wait()

	if got, _ := store.current(); got != 10 {
		t.Fatalf("current = %d, want 10", got)
	}
}

func TestToReconcileResponse(t *testing.T) {
	id := uuid.New()
	resp := ToReconcileResponse(ReconcileReport{
		Today:      today,
		Considered: 1,
		Failed:     1,
		Adjustments: []AdjustmentResult{
			{Kind: KindChurn, Status: StatusFailed, ChurnEventID: &id, Err: errors.New("boom")},
		},
	})
	if resp.Today != "2026-03-10" || len(resp.Adjustments) != 1 || resp.Adjustments[0].Error != "boom" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestSaleAdjustmentOncePerRun(t *testing.T) {
	store := newMemStore()
	store.seed(50)
	svc := newTestService(store)
	ctx := context.Background()
	runID := uuid.New()

	var wg sync.WaitGroup
	results := make([]AdjustmentResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.RecordSaleAdjustment(ctx, SaleAdjustment{PersonName: "Ana Ruiz", Author: "Coach Sam", RunID: &runID})
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, r := range results {
		switch r.Status {
		case StatusApplied:
			applied++
		case StatusAlreadyApplied:
		default:
			t.Fatalf("unexpected result %+v", r)
		}
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}
	if got, _ := store.current(); got != 51 {
		t.Fatalf("current = %d, want 51", got)
	}

	other := uuid.New()
	if r := svc.RecordSaleAdjustment(ctx, SaleAdjustment{PersonName: "Ben Ode", RunID: &other}); r.Status != StatusApplied || r.Value != 52 {
		t.Fatalf("second run = %+v, want applied 52", r)
	}
}
