package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderState string

const (
	OrderPending    OrderState = "pending"
	OrderInProgress OrderState = "in_progress"
	OrderCancelled  OrderState = "cancelled"
	OrderVoided     OrderState = "voided"
)

// IsTerminal is true once the order is fully paid (cancelled) or voided.
func (s OrderState) IsTerminal() bool {
	return s == OrderCancelled || s == OrderVoided
}

type InstallmentState string

const (
	InstallmentPending       InstallmentState = "pending"
	InstallmentGenerated     InstallmentState = "generated"
	InstallmentPartiallyPaid InstallmentState = "partially_paid"
	InstallmentPaid          InstallmentState = "paid"
	InstallmentVoided        InstallmentState = "voided"
)

func (s InstallmentState) IsTerminal() bool {
	return s == InstallmentPaid || s == InstallmentVoided
}

type AmortizationSystem string

const (
	SystemNone   AmortizationSystem = "none"
	SystemFrench AmortizationSystem = "frances"
)

type CreditOrder struct {
	ID                 uuid.UUID          `json:"id"`
	TenantID           TenantID           `json:"tenant_id"`
	AfiliadoID         uuid.UUID          `json:"afiliado_id"`
	PadronID           *uuid.UUID         `json:"padron_id"`
	ConceptoCodigo     string             `json:"concepto_codigo"`
	Principal          Cents              `json:"principal"`
	EnCuotas           bool               `json:"en_cuotas"`
	TotalInstallments  int                `json:"total_installments"`
	CurrentInstallment int                `json:"current_installment"`
	TotalAmount        Cents              `json:"total_amount"`
	Balance            Cents              `json:"balance"`
	FirstPeriod        Period             `json:"first_period"`
	InterestRate       *decimal.Decimal   `json:"interest_rate"`
	System             AmortizationSystem `json:"system"`
	State              OrderState         `json:"state"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`

	Installments []Installment `json:"installments,omitempty"`
}

type Installment struct {
	ID           uuid.UUID        `json:"id"`
	OrderID      uuid.UUID        `json:"order_id"`
	Number       int              `json:"number"`
	Period       Period           `json:"period"`
	Capital      Cents            `json:"capital"`
	Interest     Cents            `json:"interest"`
	Amount       Cents            `json:"amount"`
	Paid         Cents            `json:"paid"`
	Balance      Cents            `json:"balance"`
	State        InstallmentState `json:"state"`
	ObligationID *uuid.UUID       `json:"obligation_id"`
	GeneratedAt  *time.Time       `json:"generated_at"`
	CancelledAt  *time.Time       `json:"cancelled_at"`
}

// ApplyPayment mirrors a payment made against the installment's obligation.
func (i *Installment) ApplyPayment(amount Cents, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if i.State.IsTerminal() {
		return ErrInstallmentState.Withf("installment %d is %s", i.Number, i.State)
	}
	if amount > i.Balance {
		return ErrPaymentExceeds.Withf("payment %s exceeds installment %d balance %s", amount, i.Number, i.Balance)
	}
	i.Paid += amount
	i.Balance -= amount
	if i.Balance == 0 {
		i.State = InstallmentPaid
		i.CancelledAt = &at
	} else {
		i.State = InstallmentPartiallyPaid
	}
	return nil
}

// NewCreditOrder lays out a confirmed schedule as a pending order.
func NewCreditOrder(tenant TenantID, afiliado uuid.UUID, padron *uuid.UUID, concepto string, in ScheduleInput, s Schedule, now time.Time) *CreditOrder {
	o := &CreditOrder{
		ID:                 uuid.New(),
		TenantID:           tenant,
		AfiliadoID:         afiliado,
		PadronID:           padron,
		ConceptoCodigo:     concepto,
		Principal:          s.Principal,
		EnCuotas:           len(s.Lines) > 1,
		TotalInstallments:  len(s.Lines),
		CurrentInstallment: 1,
		TotalAmount:        s.TotalAmount,
		Balance:            s.TotalAmount,
		FirstPeriod:        s.Lines[0].Period,
		System:             in.normalizedSystem(),
		State:              OrderPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if !in.MonthlyRate.IsZero() {
		rate := in.MonthlyRate
		o.InterestRate = &rate
	}
	for _, l := range s.Lines {
		o.Installments = append(o.Installments, Installment{
			ID:       uuid.New(),
			OrderID:  o.ID,
			Number:   l.Number,
			Period:   l.Period,
			Capital:  l.Capital,
			Interest: l.Interest,
			Amount:   l.Amount,
			Balance:  l.Amount,
			State:    InstallmentPending,
		})
	}
	return o
}

// Installment returns a pointer into o.Installments.
func (o *CreditOrder) Installment(number int) (*Installment, error) {
	for i := range o.Installments {
		if o.Installments[i].Number == number {
			return &o.Installments[i], nil
		}
	}
	return nil, ErrInstallmentNotFound.Withf("installment %d not found in order %s", number, o.ID)
}

// Refresh recomputes balance, current pointer and state from the installments.
func (o *CreditOrder) Refresh(now time.Time) {
	var balance Cents
	allSettled := true
	for _, inst := range o.Installments {
		if inst.State != InstallmentVoided {
			balance += inst.Balance
		}
		if !inst.State.IsTerminal() {
			allSettled = false
		}
	}
	o.Balance = balance
	if cur, ok := CurrentInstallment(o.Installments); ok {
		o.CurrentInstallment = cur.Number
	}
	if o.State != OrderVoided && allSettled {
		o.State = OrderCancelled
	}
	o.UpdatedAt = now
}
