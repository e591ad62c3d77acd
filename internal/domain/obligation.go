package domain

import (
	"time"

	"github.com/google/uuid"
)

type ObligationState string

const (
	ObligationPending       ObligationState = "pending"
	ObligationPartiallyPaid ObligationState = "partially_paid"
	ObligationPaid          ObligationState = "paid"
	ObligationVoided        ObligationState = "voided"
)

// Obligation is a billable charge owed by an afiliado for one period.
type Obligation struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       TenantID        `json:"tenant_id"`
	AfiliadoID     uuid.UUID       `json:"afiliado_id"`
	PadronID       *uuid.UUID      `json:"padron_id"`
	ConceptoCodigo string          `json:"concepto_codigo"`
	Period         Period          `json:"period"`
	Amount         Cents           `json:"amount"`
	Balance        Cents           `json:"balance"`
	State          ObligationState `json:"state"`
	InstallmentID  *uuid.UUID      `json:"installment_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewObligation creates a pending charge; a zero amount is born paid.
func NewObligation(tenant TenantID, afiliado uuid.UUID, padron *uuid.UUID, concepto string, period Period, amount Cents, now time.Time) *Obligation {
	state := ObligationPending
	if amount == 0 {
		state = ObligationPaid
	}
	return &Obligation{
		ID:             uuid.New(),
		TenantID:       tenant,
		AfiliadoID:     afiliado,
		PadronID:       padron,
		ConceptoCodigo: concepto,
		Period:         period,
		Amount:         amount,
		Balance:        amount,
		State:          state,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ApplyPayment reduces the balance and moves pending -> partially_paid -> paid.
func (o *Obligation) ApplyPayment(amount Cents, now time.Time) (ObligationState, error) {
	if amount <= 0 {
		return o.State, ErrInvalidAmount.Withf("payment %s must be greater than zero", amount)
	}
	if o.State == ObligationPaid || o.State == ObligationVoided {
		return o.State, ErrObligationNotOpen.Withf("obligation %s is %s", o.ID, o.State)
	}
	if amount > o.Balance {
		return o.State, ErrPaymentExceeds.Withf("payment %s exceeds obligation %s balance %s", amount, o.ID, o.Balance)
	}
	o.Balance -= amount
	if o.Balance == 0 {
		o.State = ObligationPaid
	} else {
		o.State = ObligationPartiallyPaid
	}
	o.UpdatedAt = now
	return o.State, nil
}

// Void cancels a charge that never received money.
func (o *Obligation) Void(now time.Time) error {
	if o.State == ObligationVoided {
		return nil
	}
	if o.Balance != o.Amount {
		return ErrObligationHasPaid.Withf("obligation %s has %s applied", o.ID, o.Amount-o.Balance)
	}
	o.State = ObligationVoided
	o.UpdatedAt = now
	return nil
}
