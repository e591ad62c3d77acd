package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/logger"
	"gremio-backoffice/internal/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateOrderInput struct {
	AfiliadoID     uuid.UUID
	PadronID       *uuid.UUID
	ConceptoCodigo string
	Schedule       domain.ScheduleInput
}

type MaterializeResult struct {
	Order       *domain.CreditOrder `json:"order"`
	Installment domain.Installment  `json:"installment"`
	Obligation  *domain.Obligation  `json:"obligation"`
}

type CreditService struct {
	store   ports.Store
	concept string
	log     *zap.Logger
	now     func() time.Time
}

// NewCreditService uses defaultConcept for orders created without a concepto code.
func NewCreditService(store ports.Store, defaultConcept string, log *zap.Logger) *CreditService {
	return &CreditService{
		store:   store,
		concept: defaultConcept,
		log:     log,
		now:     time.Now,
	}
}

// PreviewSchedule returns the schedule CreateOrder would persist for the same input.
func (s *CreditService) PreviewSchedule(ctx context.Context, tenant domain.TenantID, in domain.ScheduleInput) (domain.Schedule, error) {
	if err := tenant.Validate(); err != nil {
		return domain.Schedule{}, err
	}
	return domain.BuildSchedule(in)
}

func (s *CreditService) CreateOrder(ctx context.Context, tenant domain.TenantID, in CreateOrderInput) (*domain.CreditOrder, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if in.AfiliadoID == uuid.Nil {
		return nil, domain.ErrAfiliadoRequired
	}
	concept := strings.TrimSpace(in.ConceptoCodigo)
	if concept == "" {
		concept = s.concept
	}
	if concept == "" {
		return nil, domain.ErrConceptRequired
	}

	schedule, err := domain.BuildSchedule(in.Schedule)
	if err != nil {
		return nil, err
	}

	order := domain.NewCreditOrder(tenant, in.AfiliadoID, in.PadronID, concept, in.Schedule, schedule, s.now())
	err = s.store.WithinTx(ctx, func(r ports.Repositories) error {
		return r.Orders().CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, domain.ExternalWrite("create credit order", err)
	}

	logger.FromContext(ctx).Info("credit order created",
		zap.String("order_id", order.ID.String()),
		zap.Int("installments", order.TotalInstallments),
		zap.String("total", order.TotalAmount.String()),
	)
	return order, nil
}

func (s *CreditService) GetOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	o, err := s.store.Orders().GetOrder(ctx, tenant, id)
	if err != nil {
		return nil, domain.ExternalWrite("get credit order", err)
	}
	return o, nil
}

// MaterializeNext turns the order's current installment into an obligation.
func (s *CreditService) MaterializeNext(ctx context.Context, tenant domain.TenantID, orderID uuid.UUID) (*MaterializeResult, error) {
	return s.materialize(ctx, tenant, orderID, 0)
}

// Materialize turns installment number into an obligation.
func (s *CreditService) Materialize(ctx context.Context, tenant domain.TenantID, orderID uuid.UUID, number int) (*MaterializeResult, error) {
	if number < 1 {
		return nil, domain.ErrInvalidCount.Withf("installment number %d must be at least 1", number)
	}
	return s.materialize(ctx, tenant, orderID, number)
}

func (s *CreditService) materialize(ctx context.Context, tenant domain.TenantID, orderID uuid.UUID, number int) (*MaterializeResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var res *MaterializeResult
	err := s.store.WithinTx(ctx, func(r ports.Repositories) error {
		order, err := r.Orders().LockOrder(ctx, tenant, orderID)
		if err != nil {
			return err
		}
		if order.State.IsTerminal() {
			return domain.ErrOrderNotActive.Withf("credit order %s is %s", order.ID, order.State)
		}

		if number == 0 {
			cur, ok := domain.CurrentInstallment(order.Installments)
			if !ok {
				return domain.ErrNothingToGenerate.Withf("credit order %s has no open installment", order.ID)
			}
			number = cur.Number
		}
		if err := domain.CanMaterialize(order.Installments, number); err != nil {
			return err
		}

		now := s.now()
		inst, err := order.Installment(number)
		if err != nil {
			return err
		}

		ob := domain.NewObligation(tenant, order.AfiliadoID, order.PadronID, order.ConceptoCodigo, inst.Period, inst.Amount, now)
		ob.InstallmentID = &inst.ID
		if err := r.Obligations().CreateObligation(ctx, ob); err != nil {
			return err
		}

		inst.ObligationID = &ob.ID
		inst.GeneratedAt = &now
		inst.State = domain.InstallmentGenerated
		if inst.Amount == 0 {
			inst.State = domain.InstallmentPaid
			inst.CancelledAt = &now
		}
		if err := r.Orders().UpdateInstallment(ctx, inst); err != nil {
			return err
		}

		if order.State == domain.OrderPending {
			order.State = domain.OrderInProgress
		}
		order.Refresh(now)
		if err := r.Orders().UpdateOrder(ctx, order); err != nil {
			return err
		}

		res = &MaterializeResult{Order: order, Installment: *inst, Obligation: ob}
		return nil
	})
	if err != nil {
		return nil, domain.ExternalWrite("materialize installment", err)
	}

	logger.FromContext(ctx).Info("installment materialized",
		zap.String("order_id", orderID.String()),
		zap.Int("number", res.Installment.Number),
		zap.String("period", res.Installment.Period.String()),
		zap.String("obligation_id", res.Obligation.ID.String()),
	)
	return res, nil
}

// VoidOrder voids the order, every installment not yet settled and their unpaid obligations.
// An obligation that already received money blocks the whole operation.
func (s *CreditService) VoidOrder(ctx context.Context, tenant domain.TenantID, orderID uuid.UUID) (*domain.CreditOrder, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var order *domain.CreditOrder
	err := s.store.WithinTx(ctx, func(r ports.Repositories) error {
		var err error
		order, err = r.Orders().LockOrder(ctx, tenant, orderID)
		if err != nil {
			return err
		}
		if order.State.IsTerminal() {
			return domain.ErrOrderNotActive.Withf("credit order %s is %s", order.ID, order.State)
		}

		now := s.now()
		for i := range order.Installments {
			inst := &order.Installments[i]
			if inst.State.IsTerminal() {
				continue
			}
			if inst.ObligationID != nil {
				ob, err := r.Obligations().LockObligation(ctx, tenant, *inst.ObligationID)
				if err != nil {
					return err
				}
				if err := ob.Void(now); err != nil {
					return err
				}
				if err := r.Obligations().UpdateObligation(ctx, ob); err != nil {
					return err
				}
			}
			inst.State = domain.InstallmentVoided
			inst.CancelledAt = &now
			if err := r.Orders().UpdateInstallment(ctx, inst); err != nil {
				return err
			}
		}

		order.State = domain.OrderVoided
		order.Refresh(now)
		return r.Orders().UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, domain.ExternalWrite("void credit order", err)
	}

	logger.FromContext(ctx).Info("credit order voided", zap.String("order_id", orderID.String()))
	return order, nil
}

// settleInstallment mirrors a payment on an obligation into the installment of order it came from.
// The caller holds the order lock.
func settleInstallment(ctx context.Context, r ports.Repositories, order *domain.CreditOrder, obligationID uuid.UUID, amount domain.Cents, now time.Time) error {
	for i := range order.Installments {
		inst := &order.Installments[i]
		if inst.ObligationID == nil || *inst.ObligationID != obligationID {
			continue
		}
		if err := inst.ApplyPayment(amount, now); err != nil {
			return err
		}
		if err := r.Orders().UpdateInstallment(ctx, inst); err != nil {
			return err
		}
		order.Refresh(now)
		return r.Orders().UpdateOrder(ctx, order)
	}
	return domain.ErrInstallmentNotFound.Withf("no installment of order %s is linked to obligation %s", order.ID, obligationID)
}

// lockOrdersFor locks, in id order, every credit order behind the given obligations and returns
// them keyed by obligation. Orders are always locked before their obligations.
func lockOrdersFor(ctx context.Context, r ports.Repositories, tenant domain.TenantID, obligationIDs []uuid.UUID) (map[uuid.UUID]*domain.CreditOrder, error) {
	byOrder := make(map[uuid.UUID][]uuid.UUID)
	for _, id := range obligationIDs {
		orderID, err := r.Orders().OrderIDByObligation(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if orderID != uuid.Nil {
			byOrder[orderID] = append(byOrder[orderID], id)
		}
	}

	orderIDs := make([]uuid.UUID, 0, len(byOrder))
	for id := range byOrder {
		orderIDs = append(orderIDs, id)
	}
	sortIDs(orderIDs)

	out := make(map[uuid.UUID]*domain.CreditOrder, len(obligationIDs))
	for _, orderID := range orderIDs {
		order, err := r.Orders().LockOrder(ctx, tenant, orderID)
		if err != nil {
			return nil, err
		}
		for _, obID := range byOrder[orderID] {
			out[obID] = order
		}
	}
	return out, nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
