package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionOpen   SessionState = "open"
	SessionClosed SessionState = "closed"
)

// PaymentMethod is a lower-case method code such as efectivo or tarjeta.
type PaymentMethod string

func NormalizeMethod(s string) PaymentMethod {
	return PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
}

type CashSession struct {
	ID           uuid.UUID    `json:"id"`
	TenantID     TenantID     `json:"tenant_id"`
	Site         string       `json:"site"`
	OperatorID   int64        `json:"operator_id"`
	State        SessionState `json:"state"`
	OpenedAt     time.Time    `json:"opened_at"`
	ClosedAt     *time.Time   `json:"closed_at"`
	DiffTotal    *Cents       `json:"diff_total"`
	CloseEntryID *uuid.UUID   `json:"close_entry_id"`

	CloseLines []CloseLine `json:"close_lines,omitempty"`
}

func NewCashSession(tenant TenantID, site string, operator int64, now time.Time) *CashSession {
	return &CashSession{
		ID:         uuid.New(),
		TenantID:   tenant,
		Site:       strings.TrimSpace(site),
		OperatorID: operator,
		State:      SessionOpen,
		OpenedAt:   now,
	}
}

type MethodLine struct {
	Method    PaymentMethod `json:"method"`
	Amount    Cents         `json:"amount"`
	Reference string        `json:"reference,omitempty"`
}

type Application struct {
	ObligationID uuid.UUID `json:"obligation_id"`
	Amount       Cents     `json:"amount"`
}

// Collection (pago) is money taken during a session and applied to obligations.
type Collection struct {
	ID           uuid.UUID     `json:"id"`
	SessionID    uuid.UUID     `json:"session_id"`
	AfiliadoID   *uuid.UUID    `json:"afiliado_id"`
	Methods      []MethodLine  `json:"methods"`
	Applications []Application `json:"applications"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (c Collection) Total() Cents {
	var total Cents
	for _, m := range c.Methods {
		total += m.Amount
	}
	return total
}

// Validate enforces that what came in through payment methods equals what was applied.
func (c Collection) Validate() error {
	if len(c.Methods) == 0 {
		return ErrInvalidCollection.Withf("collection needs at least one payment method line")
	}
	if len(c.Applications) == 0 {
		return ErrInvalidCollection.Withf("collection needs at least one obligation application")
	}
	var methods, applied Cents
	for _, m := range c.Methods {
		if m.Method == "" {
			return ErrInvalidCollection.Withf("payment method line without method")
		}
		if m.Amount <= 0 {
			return ErrInvalidAmount.Withf("payment method %s amount must be greater than zero", m.Method)
		}
		methods += m.Amount
	}
	seen := make(map[uuid.UUID]bool, len(c.Applications))
	for _, a := range c.Applications {
		if seen[a.ObligationID] {
			return ErrInvalidCollection.Withf("obligation %s applied twice", a.ObligationID)
		}
		seen[a.ObligationID] = true
		if a.Amount <= 0 {
			return ErrInvalidAmount.Withf("application to %s must be greater than zero", a.ObligationID)
		}
		applied += a.Amount
	}
	if methods != applied {
		return ErrUnbalancedPayment.Withf("payment methods total %s but applications total %s", methods, applied)
	}
	return nil
}
