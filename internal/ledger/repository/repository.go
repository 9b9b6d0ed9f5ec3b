package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intro_pipeline_backend/internal/ledger/domain"
	"intro_pipeline_backend/internal/ledger/service"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerAppendLockID is the pg advisory lock key held while reading the tail and
// inserting the next entry.
const ledgerAppendLockID int64 = 0x616d635f6c6467 // "amc_ldg"

const entryColumns = `id, seq, logged_date, amc_value, note, created_by, churn_event_id, sale_run_id, created_at`

// Repository provides database operations for the AMC ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new ledger repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ service.Store = (*Repository)(nil)

// AppendAfterTail reads the tail and inserts build's entry in one transaction, holding
// an advisory lock so concurrent appends see each other's writes. The tail is the
// highest seq; seq is drawn under the lock, unlike now() which is fixed when the
// transaction begins.
func (r *Repository) AppendAfterTail(ctx context.Context, build func(tail *domain.Entry) (*domain.Entry, error)) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin ledger append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerAppendLockID); err != nil {
		return false, fmt.Errorf("failed to lock ledger: %w", err)
	}

	tail, err := latestEntry(ctx, tx)
	if err != nil {
		return false, err
	}

	entry, err := build(tail)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	query := `
		INSERT INTO amc_ledger (id, logged_date, amc_value, note, created_by, churn_event_id, sale_run_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, clock_timestamp())
		ON CONFLICT DO NOTHING
		RETURNING seq, created_at`

	err = tx.QueryRow(ctx, query,
		entry.ID, dateValue(entry.LoggedDate), entry.Value, entry.Note, entry.Author, entry.ChurnEventID, entry.SaleRunID,
	).Scan(&entry.Seq, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit ledger entry: %w", err)
	}
	return true, nil
}

func latestEntry(ctx context.Context, q pgx.Tx) (*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM amc_ledger ORDER BY seq DESC LIMIT 1`

	e, err := scanEntry(q.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger tail: %w", err)
	}
	return e, nil
}

// ListRecentEntries returns up to limit entries, most recently created first.
func (r *Repository) ListRecentEntries(ctx context.Context, limit int) ([]domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM amc_ledger ORDER BY seq DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// ListNotesLike returns the notes of every entry matching the LIKE pattern.
func (r *Repository) ListNotesLike(ctx context.Context, pattern string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT note FROM amc_ledger WHERE note LIKE $1`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger notes: %w", err)
	}

	notes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger notes: %w", err)
	}
	return notes, nil
}

// HasChurnAdjustment reports whether an entry links to eventID or carries note.
func (r *Repository) HasChurnAdjustment(ctx context.Context, eventID uuid.UUID, note string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM amc_ledger WHERE churn_event_id = $1 OR note = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, eventID, note).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check churn adjustment: %w", err)
	}
	return exists, nil
}

// CreateChurnEvent inserts a churn event.
func (r *Repository) CreateChurnEvent(ctx context.Context, ev domain.ChurnEvent) error {
	query := `
		INSERT INTO churn_events (id, member_count, effective_date, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		ev.ID, ev.Count, dateValue(ev.EffectiveDate), ev.Note, ev.CreatedBy, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create churn event: %w", err)
	}
	return nil
}

// ListEffectiveChurnEvents returns churn events effective on or before the given date,
// oldest first.
func (r *Repository) ListEffectiveChurnEvents(ctx context.Context, onOrBefore civil.Date) ([]domain.ChurnEvent, error) {
	query := `
		SELECT id, member_count, effective_date, note, created_by, created_at
		FROM churn_events
		WHERE effective_date <= $1
		ORDER BY effective_date, created_at`

	rows, err := r.pool.Query(ctx, query, dateValue(onOrBefore))
	if err != nil {
		return nil, fmt.Errorf("failed to list churn events: %w", err)
	}
	defer rows.Close()

	var out []domain.ChurnEvent
	for rows.Next() {
		var (
			ev        domain.ChurnEvent
			effective time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.Count, &effective, &ev.Note, &ev.CreatedBy, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan churn event: %w", err)
		}
		ev.EffectiveDate = civil.DateOf(effective)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate churn events: %w", err)
	}
	return out, nil
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var (
		e      domain.Entry
		logged time.Time
	)
	if err := row.Scan(&e.ID, &e.Seq, &logged, &e.Value, &e.Note, &e.Author, &e.ChurnEventID, &e.SaleRunID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.LoggedDate = civil.DateOf(logged)
	return &e, nil
}

// dateValue encodes a civil date for a DATE column.
func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}
