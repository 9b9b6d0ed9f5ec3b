package service

import (
	"context"
	"strings"

	"intro_pipeline_backend/internal/events"
	"intro_pipeline_backend/internal/intros/transport"
	"intro_pipeline_backend/internal/pipeline/domain"
	"intro_pipeline_backend/platform/apperr"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/logger"
	"intro_pipeline_backend/platform/sanitize"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

const (
	maxRangeDays        = 366
	defaultLookbackDays = 30
	maxTextRunes        = 120
)

// Repository is the intro persistence the service depends on.
type Repository interface {
	// ListByClassDate returns non-deleted bookings dated from..to inclusive, with runs.
	ListByClassDate(ctx context.Context, from, to civil.Date) ([]domain.Intro, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Intro, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, statusCanon string) error
	// UpsertRun inserts or replaces the run for run.BookingID, sets run.ID and returns
	// the run it replaced (nil for a first run). Concurrent calls for one booking are
	// serialized, so each sees the other's write as its previous run.
	UpsertRun(ctx context.Context, run *domain.Run) (previous *domain.Run, err error)
}

// Service provides the intro pipeline views and outcome logging.
type Service struct {
	repo         Repository
	clock        clock.Clock
	bus          events.Bus
	lookbackDays int
	log          *logger.Logger
}

// New creates a new intros service. lookbackDays is the default needs-outcome window.
func New(repo Repository, clk clock.Clock, bus events.Bus, lookbackDays int, log *logger.Logger) *Service {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{repo: repo, clock: clk, bus: bus, lookbackDays: lookbackDays, log: log}
}

// List returns intros in the requested range, VIP bookings omitted unless asked for.
func (s *Service) List(ctx context.Context, req transport.ListIntrosRequest) (*transport.ListIntrosResponse, error) {
	today := s.clock.Today()
	from, to, err := resolveRange(req.From, req.To, today)
	if err != nil {
		return nil, err
	}

	intros, err := s.repo.ListByClassDate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	items := make([]transport.IntroResponse, 0, len(intros))
	for _, in := range intros {
		if !req.IncludeVIP && domain.ShouldExcludeFromFunnel(in.Booking) {
			continue
		}
		items = append(items, toIntroResponse(in, today))
	}
	return &transport.ListIntrosResponse{Items: items, Total: len(items)}, nil
}

// NeedsOutcome returns the worklist of past, non-VIP intros with no resolved outcome,
// oldest first.
func (s *Service) NeedsOutcome(ctx context.Context, req transport.NeedsOutcomeRequest) (*transport.ListIntrosResponse, error) {
	lookback := req.LookbackDays
	if lookback <= 0 {
		lookback = s.lookbackDays
	}

	today := s.clock.Today()
	intros, err := s.repo.ListByClassDate(ctx, today.AddDays(-lookback), today.AddDays(-1))
	if err != nil {
		return nil, err
	}

	items := make([]transport.IntroResponse, 0)
	for _, in := range intros {
		if domain.IsUnresolvedPastIntro(in.Booking, in.Run, today) {
			items = append(items, toIntroResponse(in, today))
		}
	}
	return &transport.ListIntrosResponse{Items: items, Total: len(items)}, nil
}

// Summary counts the funnel for the requested range.
func (s *Service) Summary(ctx context.Context, req transport.SummaryRequest) (*transport.SummaryResponse, error) {
	today := s.clock.Today()
	from, to, err := resolveRange(req.From, req.To, today)
	if err != nil {
		return nil, err
	}

	intros, err := s.repo.ListByClassDate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	resp := &transport.SummaryResponse{
		From:    from.String(),
		To:      to.String(),
		Buckets: map[domain.Bucket]int{},
		Results: map[domain.Result]int{},
	}
	for _, in := range intros {
		c := domain.Classify(in.Booking, in.Run, today)
		if c.ExcludedFromFunnel {
			resp.VIPExcluded++
			continue
		}
		resp.Total++
		resp.Buckets[c.Bucket]++
		if c.HasRun {
			resp.Results[c.Result]++
		}
		if c.Resolved {
			resp.Resolved++
		}
		if c.NeedsOutcome {
			resp.NeedsOutcome++
		}
	}
	return resp, nil
}

// Get returns one intro.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*transport.IntroResponse, error) {
	in, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toIntroResponse(*in, s.clock.Today())
	return &resp, nil
}

// UpdateStatus sets the booking's canonical status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateStatusRequest) (*transport.IntroResponse, error) {
	status := domain.NormalizeBookingStatus(req.Status)
	if !domain.IsKnownBookingStatus(status) {
		return nil, apperr.Validation("unknown booking status").WithDetails(map[string]string{"status": req.Status})
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// RecordRun logs the intro's outcome. When the outcome becomes a sale on a non-VIP
// booking, a SaleRecorded event is published; the ledger write happens asynchronously
// and never affects this call.
func (s *Service) RecordRun(ctx context.Context, id uuid.UUID, author string, req transport.RecordRunRequest) (*transport.IntroResponse, error) {
	in, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Booking.IsDeleted() {
		return nil, apperr.Conflict("booking has been deleted")
	}

	b := in.Booking
	run := &domain.Run{
		BookingID:        &b.ID,
		MemberName:       b.MemberName,
		MembershipType:   sanitize.Text(req.MembershipType, maxTextRunes),
		Result:           sanitize.Text(req.Result, maxTextRunes),
		ResultCanon:      strings.ToUpper(strings.TrimSpace(req.ResultCanon)),
		IsVIP:            b.IsVIP,
		BookingTypeCanon: b.BookingTypeCanon,
		VIPSessionID:     b.VIPSessionID,
		LeadSource:       b.LeadSource,
	}
	if in.Run != nil {
		run.ID = in.Run.ID
	}
	if run.Result == "" {
		return nil, apperr.Validation("result is required")
	}

	previous, err := s.repo.UpsertRun(ctx, run)
	if err != nil {
		return nil, err
	}
	in.Run = run

	// Compare with the run UpsertRun replaced; in.Run may be stale by now.
	becameSale := domain.ResolveRunResult(run).IsSale() && !domain.ResolveRunResult(previous).IsSale()
	if becameSale && !domain.IsVIPBooking(b) && s.bus != nil {
		s.bus.Publish(ctx, events.SaleRecorded{
			BaseEvent:      events.NewBaseEvent(),
			BookingID:      b.ID,
			RunID:          run.ID,
			MemberName:     b.MemberName,
			MembershipType: saleMembership(run),
			RecordedBy:     author,
		})
		s.log.WithContext(ctx).Info("sale recorded", "bookingId", b.ID, "runId", run.ID)
	}

	resp := toIntroResponse(*in, s.clock.Today())
	return &resp, nil
}

// saleMembership is the membership named on a sale, falling back to the free-text
// result when staff logged the tier there.
func saleMembership(r *domain.Run) string {
	if r.MembershipType != "" {
		return r.MembershipType
	}
	return r.Result
}

func resolveRange(rawFrom, rawTo string, today civil.Date) (civil.Date, civil.Date, error) {
	from, to := today, today.AddDays(domain.WeekWindowDays)

	if rawFrom != "" {
		d, ok := domain.ParseClassDate(rawFrom)
		if !ok {
			return from, to, apperr.Validation("from must be YYYY-MM-DD")
		}
		from = d
		if rawTo == "" {
			to = from.AddDays(domain.WeekWindowDays)
		}
	}
	if rawTo != "" {
		d, ok := domain.ParseClassDate(rawTo)
		if !ok {
			return from, to, apperr.Validation("to must be YYYY-MM-DD")
		}
		to = d
	}

	if to.Before(from) {
		return from, to, apperr.Validation("to must not be before from")
	}
	if to.DaysSince(from) > maxRangeDays {
		return from, to, apperr.Validation("date range is too large")
	}
	return from, to, nil
}

func toIntroResponse(in domain.Intro, today civil.Date) transport.IntroResponse {
	b := in.Booking
	resp := transport.IntroResponse{
		ID:             b.ID,
		MemberName:     b.MemberName,
		CoachName:      b.CoachName,
		ClassDate:      b.ClassDate,
		ClassTime:      b.ClassTime,
		LeadSource:     b.LeadSource,
		Status:         b.StatusCanon,
		LegacyStatus:   b.LegacyStatus,
		Classification: domain.Classify(b, in.Run, today),
	}
	if in.Run != nil {
		resp.Run = &transport.RunResponse{
			ID:             in.Run.ID,
			Result:         in.Run.Result,
			ResultCanon:    in.Run.ResultCanon,
			MembershipType: in.Run.MembershipType,
		}
	}
	return resp
}
