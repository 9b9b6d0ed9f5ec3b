package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intro_pipeline_backend/internal/intros/service"
	"intro_pipeline_backend/internal/pipeline/domain"
	"intro_pipeline_backend/platform/apperr"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const introNotFoundMsg = "intro not found"

const introSelect = `
	SELECT b.id, b.member_name, b.coach_name, b.class_date, b.class_time,
		b.is_vip, b.booking_type_canon, b.vip_session_id, b.lead_source,
		b.booking_status_canon, b.booking_status, b.deleted_at,
		r.id, r.member_name, r.membership_type, r.result, r.result_canon,
		r.is_vip, r.booking_type_canon, r.vip_session_id, r.lead_source
	FROM intro_bookings b
	LEFT JOIN intro_runs r ON r.booking_id = b.id`

// Repository provides database operations for intro bookings and runs
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new intros repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ service.Repository = (*Repository)(nil)

// ListByClassDate returns non-deleted bookings dated from..to inclusive.
func (r *Repository) ListByClassDate(ctx context.Context, from, to civil.Date) ([]domain.Intro, error) {
	query := introSelect + `
	WHERE b.class_date BETWEEN $1 AND $2 AND b.deleted_at IS NULL
	ORDER BY b.class_date, b.class_time NULLS LAST, b.created_at`

	rows, err := r.pool.Query(ctx, query, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to list intros: %w", err)
	}
	defer rows.Close()

	intros := make([]domain.Intro, 0)
	for rows.Next() {
		in, err := scanIntro(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intro: %w", err)
		}
		intros = append(intros, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intros: %w", err)
	}
	return intros, nil
}

// GetByID retrieves one booking, deleted or not, with its run.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intro, error) {
	in, err := scanIntro(r.pool.QueryRow(ctx, introSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(introNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get intro: %w", err)
	}
	return &in, nil
}

// UpdateStatus sets booking_status_canon on a non-deleted booking.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, statusCanon string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE intro_bookings SET booking_status_canon = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id, statusCanon,
	)
	if err != nil {
		return fmt.Errorf("failed to update intro status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(introNotFoundMsg)
	}
	return nil
}

// UpsertRun writes the run for its booking, replacing any earlier one, and returns the
// run it replaced. The booking row stays locked until commit, so concurrent writers
// each see the run the other wrote.
func (r *Repository) UpsertRun(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	if run.BookingID == nil {
		return nil, apperr.Validation("run must belong to a booking")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin intro run upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var bookingID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM intro_bookings WHERE id = $1 FOR UPDATE`, *run.BookingID).Scan(&bookingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(introNotFoundMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock intro booking: %w", err)
	}

	previous, err := runForBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO intro_runs (
			id, booking_id, member_name, membership_type, result, result_canon,
			is_vip, booking_type_canon, vip_session_id, lead_source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (booking_id) WHERE booking_id IS NOT NULL DO UPDATE SET
			member_name = EXCLUDED.member_name,
			membership_type = EXCLUDED.membership_type,
			result = EXCLUDED.result,
			result_canon = EXCLUDED.result_canon,
			is_vip = EXCLUDED.is_vip,
			booking_type_canon = EXCLUDED.booking_type_canon,
			vip_session_id = EXCLUDED.vip_session_id,
			lead_source = EXCLUDED.lead_source,
			updated_at = now()
		RETURNING id`

	err = tx.QueryRow(ctx, query,
		run.ID, run.BookingID, run.MemberName, run.MembershipType, run.Result, run.ResultCanon,
		run.IsVIP, run.BookingTypeCanon, run.VIPSessionID, run.LeadSource,
	).Scan(&run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert intro run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit intro run: %w", err)
	}
	return previous, nil
}

func runForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, member_name, membership_type, result, result_canon,
			is_vip, booking_type_canon, vip_session_id, lead_source
		FROM intro_runs WHERE booking_id = $1`

	run := domain.Run{BookingID: &bookingID}
	err := tx.QueryRow(ctx, query, bookingID).Scan(
		&run.ID, &run.MemberName, &run.MembershipType, &run.Result, &run.ResultCanon,
		&run.IsVIP, &run.BookingTypeCanon, &run.VIPSessionID, &run.LeadSource,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intro run: %w", err)
	}
	return &run, nil
}

// runColumns holds the nullable side of the LEFT JOIN.
type runColumns struct {
	id               *uuid.UUID
	memberName       *string
	membershipType   *string
	result           *string
	resultCanon      *string
	isVIP            *bool
	bookingTypeCanon *string
	vipSessionID     *string
	leadSource       *string
}

func scanIntro(row pgx.Row) (domain.Intro, error) {
	var (
		b         domain.Booking
		classDate *time.Time
		rc        runColumns
	)
	err := row.Scan(
		&b.ID, &b.MemberName, &b.CoachName, &classDate, &b.ClassTime,
		&b.IsVIP, &b.BookingTypeCanon, &b.VIPSessionID, &b.LeadSource,
		&b.StatusCanon, &b.LegacyStatus, &b.DeletedAt,
		&rc.id, &rc.memberName, &rc.membershipType, &rc.result, &rc.resultCanon,
		&rc.isVIP, &rc.bookingTypeCanon, &rc.vipSessionID, &rc.leadSource,
	)
	if err != nil {
		return domain.Intro{}, err
	}
	if classDate != nil {
		b.ClassDate = civil.DateOf(*classDate).String()
	}

	in := domain.Intro{Booking: b}
	if rc.id != nil {
		bookingID := b.ID
		in.Run = &domain.Run{
			ID:               *rc.id,
			BookingID:        &bookingID,
			MemberName:       deref(rc.memberName),
			MembershipType:   deref(rc.membershipType),
			Result:           deref(rc.result),
			ResultCanon:      deref(rc.resultCanon),
			IsVIP:            rc.isVIP != nil && *rc.isVIP,
			BookingTypeCanon: deref(rc.bookingTypeCanon),
			VIPSessionID:     rc.vipSessionID,
			LeadSource:       deref(rc.leadSource),
		}
	}
	return in, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
