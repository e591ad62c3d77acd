package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	tenantA domain.TenantID = "gremio-norte"
	tenantB domain.TenantID = "gremio-sur"
)

var fixedNow = time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC)

func mustPeriod(t *testing.T, s string) domain.Period {
	t.Helper()
	p, err := domain.ParsePeriod(s)
	require.NoError(t, err)
	return p
}

func newCreditService(t *testing.T, store *memStore) *CreditService {
	s := NewCreditService(store, "CUOTA", zaptest.NewLogger(t))
	s.now = func() time.Time { return fixedNow }
	return s
}

func createOrder(t *testing.T, svc *CreditService, principal domain.Cents, n int, first string) *domain.CreditOrder {
	t.Helper()
	o, err := svc.CreateOrder(context.Background(), tenantA, CreateOrderInput{
		AfiliadoID: uuid.New(),
		Schedule:   domain.ScheduleInput{Principal: principal, Installments: n, FirstPeriod: first},
	})
	require.NoError(t, err)
	return o
}

func TestCreditService_PreviewMatchesCreate(t *testing.T) {
	store := newMemStore()
	svc := newCreditService(t, store)
	ctx := context.Background()

	in := domain.ScheduleInput{Principal: 100000, Installments: 3, FirstPeriod: "2025-11"}
	preview, err := svc.PreviewSchedule(ctx, tenantA, in)
	require.NoError(t, err)
	assert.Zero(t, store.Writes(), "preview must not write")

	order, err := svc.CreateOrder(ctx, tenantA, CreateOrderInput{AfiliadoID: uuid.New(), Schedule: in})
	require.NoError(t, err)

	require.Len(t, order.Installments, len(preview.Lines))
	var sum domain.Cents
	for i, inst := range order.Installments {
		assert.Equal(t, preview.Lines[i].Amount, inst.Amount)
		assert.Equal(t, preview.Lines[i].Period, inst.Period)
		assert.Equal(t, domain.InstallmentPending, inst.State)
		sum += inst.Amount
	}
	assert.Equal(t, domain.Cents(100000), sum)
	assert.Equal(t, domain.Cents(33334), order.Installments[2].Amount)
	assert.Equal(t, "2026-01", order.Installments[2].Period.String())
	assert.Equal(t, "CUOTA", order.ConceptoCodigo)
	assert.Equal(t, domain.OrderPending, order.State)
	assert.Equal(t, 1, order.CurrentInstallment)
}

func TestCreditService_CreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCreditService(t, store)

	tests := []struct {
		name   string
		tenant domain.TenantID
		in     CreateOrderInput
		want   error
	}{
		{"no tenant", "", CreateOrderInput{AfiliadoID: uuid.New()}, domain.ErrTenantRequired},
		{"no afiliado", tenantA, CreateOrderInput{}, domain.ErrAfiliadoRequired},
		{"zero principal", tenantA, CreateOrderInput{AfiliadoID: uuid.New(), Schedule: domain.ScheduleInput{Installments: 2, FirstPeriod: "2025-10"}}, domain.ErrInvalidAmount},
		{"zero count", tenantA, CreateOrderInput{AfiliadoID: uuid.New(), Schedule: domain.ScheduleInput{Principal: 100, FirstPeriod: "2025-10"}}, domain.ErrInvalidCount},
		{"bad period", tenantA, CreateOrderInput{AfiliadoID: uuid.New(), Schedule: domain.ScheduleInput{Principal: 100, Installments: 1, FirstPeriod: "2025-13"}}, domain.ErrInvalidPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.tenant, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}
	assert.Zero(t, store.Writes())

	noDefault := NewCreditService(store, "", zaptest.NewLogger(t))
	_, err := noDefault.CreateOrder(ctx, tenantA, CreateOrderInput{
		AfiliadoID: uuid.New(),
		Schedule:   domain.ScheduleInput{Principal: 100, Installments: 1, FirstPeriod: "2025-10"},
	})
	assert.ErrorIs(t, err, domain.ErrConceptRequired)
}

func TestCreditService_MaterializeNext(t *testing.T) {
	store := newMemStore()
	svc := newCreditService(t, store)
	order := createOrder(t, svc, 30000, 3, "2025-10")

	res, err := svc.MaterializeNext(context.Background(), tenantA, order.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Installment.Number)
	assert.Equal(t, domain.InstallmentGenerated, res.Installment.State)
	require.NotNil(t, res.Installment.ObligationID)
	assert.Equal(t, res.Obligation.ID, *res.Installment.ObligationID)
	assert.Equal(t, domain.OrderInProgress, res.Order.State)

	ob := store.obligation(res.Obligation.ID)
	assert.Equal(t, domain.Cents(10000), ob.Amount)
	assert.Equal(t, "2025-10", ob.Period.String())
	assert.Equal(t, domain.ObligationPending, ob.State)
	require.NotNil(t, ob.InstallmentID)
	assert.Equal(t, res.Installment.ID, *ob.InstallmentID)

	// Installment 1 is generated but unpaid, so the next one is blocked.
	_, err = svc.MaterializeNext(context.Background(), tenantA, order.ID)
	assert.ErrorIs(t, err, domain.ErrInstallmentState)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
}

func TestCreditService_MaterializeOutOfOrder(t *testing.T) {
	store := newMemStore()
	svc := newCreditService(t, store)
	order := createOrder(t, svc, 30000, 3, "2025-10")

	_, err := svc.Materialize(context.Background(), tenantA, order.ID, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInstallmentNotReady)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
	assert.Zero(t, store.obligationCount())

	_, err = svc.Materialize(context.Background(), tenantA, order.ID, 9)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = svc.Materialize(context.Background(), tenantA, order.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidCount)
}

func TestCreditService_PayingInstallmentsCancelsOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	credit := newCreditService(t, store)
	cash := newCashService(t, store)
	order := createOrder(t, credit, 20000, 2, "2025-12")

	session, err := cash.OpenSession(ctx, tenantA, "sede central", 7)
	require.NoError(t, err)

	pay := func(obligationID uuid.UUID, amount domain.Cents) {
		t.Helper()
		_, err := cash.RegisterCollection(ctx, tenantA, session.ID, CollectionInput{
			Methods:      []domain.MethodLine{{Method: "Efectivo", Amount: amount}},
			Applications: []domain.Application{{ObligationID: obligationID, Amount: amount}},
		})
		require.NoError(t, err)
	}

	first, err := credit.MaterializeNext(ctx, tenantA, order.ID)
	require.NoError(t, err)

	pay(first.Obligation.ID, 4000)
	got, err := credit.GetOrder(ctx, tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPartiallyPaid, got.Installments[0].State)
	assert.Equal(t, domain.Cents(16000), got.Balance)

	// Still blocked while installment 1 is only partially paid.
	_, err = credit.Materialize(ctx, tenantA, order.ID, 2)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))

	pay(first.Obligation.ID, 6000)
	second, err := credit.MaterializeNext(ctx, tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Installment.Number)
	assert.Equal(t, "2026-01", second.Installment.Period.String())
	assert.Equal(t, 2, second.Order.CurrentInstallment)

	pay(second.Obligation.ID, 10000)
	got, err = credit.GetOrder(ctx, tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, got.State)
	assert.Zero(t, got.Balance)
	for _, inst := range got.Installments {
		assert.Equal(t, domain.InstallmentPaid, inst.State)
	}

	_, err = credit.MaterializeNext(ctx, tenantA, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotActive)
}

func TestCreditService_ZeroAmountInstallmentIsBornPaid(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCreditService(t, store)
	order := createOrder(t, svc, 2, 3, "2025-10")
	require.Equal(t, domain.Cents(0), order.Installments[0].Amount)

	res, err := svc.MaterializeNext(ctx, tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPaid, res.Installment.State)
	assert.Equal(t, domain.ObligationPaid, store.obligation(res.Obligation.ID).State)

	res, err = svc.MaterializeNext(ctx, tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Installment.Number)
}

func TestCreditService_VoidOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCreditService(t, store)
	order := createOrder(t, svc, 30000, 3, "2025-10")

	res, err := svc.MaterializeNext(ctx, tenantA, order.ID)
	require.NoError(t, err)

	voided, err := svc.VoidOrder(ctx, tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderVoided, voided.State)
	assert.Zero(t, voided.Balance)
	for _, inst := range voided.Installments {
		assert.Equal(t, domain.InstallmentVoided, inst.State)
		assert.NotNil(t, inst.CancelledAt)
	}
	assert.Equal(t, domain.ObligationVoided, store.obligation(res.Obligation.ID).State)

	_, err = svc.VoidOrder(ctx, tenantA, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotActive)
}

func TestCreditService_VoidOrderWithPaymentsIsRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	credit := newCreditService(t, store)
	cash := newCashService(t, store)
	order := createOrder(t, credit, 30000, 3, "2025-10")

	res, err := credit.MaterializeNext(ctx, tenantA, order.ID)
	require.NoError(t, err)
	session, err := cash.OpenSession(ctx, tenantA, "sede", 1)
	require.NoError(t, err)
	_, err = cash.RegisterCollection(ctx, tenantA, session.ID, CollectionInput{
		Methods:      []domain.MethodLine{{Method: "efectivo", Amount: 100}},
		Applications: []domain.Application{{ObligationID: res.Obligation.ID, Amount: 100}},
	})
	require.NoError(t, err)

	_, err = credit.VoidOrder(ctx, tenantA, order.ID)
	assert.ErrorIs(t, err, domain.ErrObligationHasPaid)

	got, err := credit.GetOrder(ctx, tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderInProgress, got.State)
	for _, inst := range got.Installments {
		assert.NotEqual(t, domain.InstallmentVoided, inst.State)
	}
}

func TestCreditService_OrdersLockedBeforeObligations(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	credit := newCreditService(t, store)
	cash := newCashService(t, store)

	first := createOrder(t, credit, 30000, 3, "2025-10")
	second := createOrder(t, credit, 20000, 2, "2025-10")
	a, err := credit.MaterializeNext(ctx, tenantA, first.ID)
	require.NoError(t, err)
	b, err := credit.MaterializeNext(ctx, tenantA, second.ID)
	require.NoError(t, err)
	loose := seedObligation(t, store, 500)

	session, err := cash.OpenSession(ctx, tenantA, "sede", 1)
	require.NoError(t, err)

	assertOrdersFirst := func(wantOrders, wantObligations int) {
		t.Helper()
		var orders, obligations int
		for _, l := range store.locks {
			if strings.HasPrefix(l, "order:") {
				assert.Zero(t, obligations, "order locked after an obligation: %v", store.locks)
				orders++
			} else {
				obligations++
			}
		}
		assert.Equal(t, wantOrders, orders)
		assert.Equal(t, wantObligations, obligations)
	}

	store.resetLocks()
	_, err = cash.RegisterCollection(ctx, tenantA, session.ID, CollectionInput{
		Methods: []domain.MethodLine{{Method: "efectivo", Amount: 700}},
		Applications: []domain.Application{
			{ObligationID: loose.ID, Amount: 500},
			{ObligationID: b.Obligation.ID, Amount: 100},
			{ObligationID: a.Obligation.ID, Amount: 100},
		},
	})
	require.NoError(t, err)
	assertOrdersFirst(2, 3)

	got, err := credit.GetOrder(ctx, tenantA, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPartiallyPaid, got.Installments[0].State)

	third := createOrder(t, credit, 10000, 1, "2025-10")
	_, err = credit.MaterializeNext(ctx, tenantA, third.ID)
	require.NoError(t, err)
	store.resetLocks()
	_, err = credit.VoidOrder(ctx, tenantA, third.ID)
	require.NoError(t, err)
	assertOrdersFirst(1, 1)
}

func TestCreditService_TenantIsolation(t *testing.T) {
	store := newMemStore()
	svc := newCreditService(t, store)
	order := createOrder(t, svc, 1000, 1, "2025-10")

	_, err := svc.GetOrder(context.Background(), tenantB, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = svc.MaterializeNext(context.Background(), tenantB, order.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCreditService_WriteFailureRollsBack(t *testing.T) {
	store := newMemStore()
	svc := newCreditService(t, store)
	order := createOrder(t, svc, 30000, 3, "2025-10")

	store.failOn["UpdateOrder"] = errors.New("connection reset")

	_, err := svc.MaterializeNext(context.Background(), tenantA, order.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindExternalWrite, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrExternalWrite)

	assert.Zero(t, store.obligationCount())
	got, err := svc.GetOrder(context.Background(), tenantA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPending, got.Installments[0].State)
	assert.Equal(t, domain.OrderPending, got.State)
}

func TestCreditService_FrenchOrderKeepsInterest(t *testing.T) {
	store := newMemStore()
	svc := newCreditService(t, store)

	order, err := svc.CreateOrder(context.Background(), tenantA, CreateOrderInput{
		AfiliadoID:     uuid.New(),
		ConceptoCodigo: "PRESTAMO",
		Schedule: domain.ScheduleInput{
			Principal:    1000000,
			Installments: 12,
			FirstPeriod:  "2025-10",
			MonthlyRate:  decimal.RequireFromString("0.03"),
			System:       domain.SystemFrench,
		},
	})
	require.NoError(t, err)

	var capital domain.Cents
	for _, inst := range order.Installments {
		capital += inst.Capital
	}
	assert.Equal(t, domain.Cents(1000000), capital)
	assert.Equal(t, domain.Cents(30000), order.Installments[0].Interest)
	assert.Greater(t, order.TotalAmount, order.Principal)
	require.NotNil(t, order.InterestRate)
	assert.Equal(t, "PRESTAMO", order.ConceptoCodigo)
}
