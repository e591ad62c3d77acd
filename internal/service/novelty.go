package service

import (
	"context"
	"strings"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/logger"
	"gremio-backoffice/internal/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NoveltyInput struct {
	AfiliadoID     uuid.UUID
	PadronID       *uuid.UUID
	Kind           domain.NoveltyKind
	ConceptoCodigo string
	Amount         domain.Cents
	EventDate      time.Time
}

type PeriodResolution struct {
	EventDate string        `json:"event_date"`
	CutoffDay int           `json:"cutoff_day"`
	Period    domain.Period `json:"period"`
}

type NoveltyService struct {
	store         ports.Store
	defaultCutoff int
	log           *zap.Logger
	now           func() time.Time
}

// NewNoveltyService falls back to defaultCutoff for months without a configured cutoff day;
// zero means domain.DefaultCutoffDay.
func NewNoveltyService(store ports.Store, defaultCutoff int, log *zap.Logger) *NoveltyService {
	if defaultCutoff == 0 {
		defaultCutoff = domain.DefaultCutoffDay
	}
	return &NoveltyService{
		store:         store,
		defaultCutoff: defaultCutoff,
		log:           log,
		now:           time.Now,
	}
}

// ResolvePeriod looks up the cutoff configured for the event's own month.
func (s *NoveltyService) ResolvePeriod(ctx context.Context, tenant domain.TenantID, eventDate time.Time) (PeriodResolution, error) {
	if err := tenant.Validate(); err != nil {
		return PeriodResolution{}, err
	}
	res, err := s.resolve(ctx, s.store, tenant, eventDate)
	if err != nil {
		return PeriodResolution{}, domain.ExternalWrite("resolve period", err)
	}
	return res, nil
}

func (s *NoveltyService) resolve(ctx context.Context, r ports.Repositories, tenant domain.TenantID, eventDate time.Time) (PeriodResolution, error) {
	day, err := r.Novelties().CutoffDay(ctx, tenant, domain.PeriodOf(eventDate))
	if err != nil {
		return PeriodResolution{}, err
	}
	if day == 0 {
		day = s.defaultCutoff
	}
	p, err := domain.ResolvePeriod(eventDate, day)
	if err != nil {
		return PeriodResolution{}, err
	}
	return PeriodResolution{EventDate: eventDate.Format(time.DateOnly), CutoffDay: day, Period: p}, nil
}

func (s *NoveltyService) SetCutoff(ctx context.Context, tenant domain.TenantID, period domain.Period, day int) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	if period.IsZero() {
		return domain.ErrInvalidPeriod
	}
	if day < 1 || day > 31 {
		return domain.ErrInvalidCutoffDay.Withf("cutoff day %d must be between 1 and 31", day)
	}
	if err := s.store.Novelties().SetCutoff(ctx, tenant, period, day); err != nil {
		return domain.ExternalWrite("set cutoff day", err)
	}

	logger.FromContext(ctx).Info("cutoff day set", zap.String("period", period.String()), zap.Int("day", day))
	return nil
}

func (s *NoveltyService) RegisterNovelty(ctx context.Context, tenant domain.TenantID, in NoveltyInput) (*domain.Novelty, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if in.AfiliadoID == uuid.Nil {
		return nil, domain.ErrAfiliadoRequired
	}
	if err := in.Kind.Validate(); err != nil {
		return nil, err
	}
	concept := strings.TrimSpace(in.ConceptoCodigo)
	if concept == "" {
		return nil, domain.ErrConceptRequired
	}
	if in.Amount < 0 {
		return nil, domain.ErrInvalidAmount.Withf("novelty amount %s cannot be negative", in.Amount)
	}
	if in.EventDate.IsZero() {
		return nil, domain.NewValidationError("INVALID_EVENT_DATE", "event date is required")
	}

	var n *domain.Novelty
	err := s.store.WithinTx(ctx, func(r ports.Repositories) error {
		res, err := s.resolve(ctx, r, tenant, in.EventDate)
		if err != nil {
			return err
		}
		n = &domain.Novelty{
			ID:             uuid.New(),
			TenantID:       tenant,
			AfiliadoID:     in.AfiliadoID,
			PadronID:       in.PadronID,
			Kind:           in.Kind,
			ConceptoCodigo: concept,
			Amount:         in.Amount,
			EventDate:      in.EventDate,
			Period:         res.Period,
			CreatedAt:      s.now(),
		}
		return r.Novelties().CreateNovelty(ctx, n)
	})
	if err != nil {
		return nil, domain.ExternalWrite("register novelty", err)
	}

	logger.FromContext(ctx).Info("novelty registered",
		zap.String("novelty_id", n.ID.String()),
		zap.String("kind", string(n.Kind)),
		zap.String("period", n.Period.String()),
	)
	return n, nil
}

func (s *NoveltyService) ListByPeriod(ctx context.Context, tenant domain.TenantID, period domain.Period) ([]domain.Novelty, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	out, err := s.store.Novelties().ListByPeriod(ctx, tenant, period)
	if err != nil {
		return nil, domain.ExternalWrite("list novelties", err)
	}
	return out, nil
}
