package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so transports can map it without knowing every code.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindStateConflict ErrorKind = "state_conflict"
	KindNotFound      ErrorKind = "not_found"
	KindExternalWrite ErrorKind = "external_write"
)

// Error is the typed rejection returned by domain rules and services.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code, so a sentinel with a customized message still satisfies errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e carrying a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewValidationError builds a validation rejection with an ad-hoc code.
func NewValidationError(code, message string) *Error {
	return newError(KindValidation, code, message)
}

// ExternalWrite wraps a persistence failure. The caller only ever sees the generic message.
func ExternalWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindExternalWrite, Code: ErrExternalWrite.Code, Message: op + " failed", Err: err}
}

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

var (
	ErrInvalidAmount       = newError(KindValidation, "INVALID_AMOUNT", "amount must be greater than zero")
	ErrInvalidPrecision    = newError(KindValidation, "INVALID_AMOUNT_PRECISION", "amount has more than two decimal places")
	ErrInvalidCount        = newError(KindValidation, "INVALID_COUNT", "installments must be at least 1")
	ErrInvalidPeriod       = newError(KindValidation, "INVALID_PERIOD", "period must match YYYY-MM")
	ErrInvalidRate         = newError(KindValidation, "INVALID_RATE", "interest rate is not valid for the amortization system")
	ErrInvalidSystem       = newError(KindValidation, "INVALID_SYSTEM", "unknown amortization system")
	ErrInvalidCutoffDay    = newError(KindValidation, "INVALID_CUTOFF_DAY", "cutoff day must be between 1 and 31")
	ErrInvalidLine         = newError(KindValidation, "INVALID_LINE", "close line has no payment method")
	ErrInvalidCollection   = newError(KindValidation, "INVALID_COLLECTION", "collection is not valid")
	ErrUnbalancedPayment   = newError(KindValidation, "UNBALANCED_COLLECTION", "payment method total does not match applied total")
	ErrPaymentExceeds      = newError(KindValidation, "PAYMENT_EXCEEDS_BALANCE", "payment exceeds obligation balance")
	ErrTenantRequired      = newError(KindValidation, "TENANT_REQUIRED", "tenant is required")
	ErrAfiliadoRequired    = newError(KindValidation, "AFILIADO_REQUIRED", "afiliado is required")
	ErrConceptRequired     = newError(KindValidation, "CONCEPT_REQUIRED", "concepto codigo is required")
	ErrSiteRequired        = newError(KindValidation, "SITE_REQUIRED", "cash session site is required")
	ErrInvalidNoveltyKind  = newError(KindValidation, "INVALID_NOVELTY_KIND", "novelty kind must be alta, baja or modificacion")
	ErrUnbalancedPosting   = newError(KindValidation, "UNBALANCED_POSTING", "ledger posting debits and credits differ")
	ErrSessionNotOpen      = newError(KindStateConflict, "SESSION_NOT_OPEN", "cash session is not open")
	ErrSessionAlreadyOpen  = newError(KindStateConflict, "SESSION_ALREADY_OPEN", "site already has an open cash session")
	ErrSessionStillOpen    = newError(KindStateConflict, "SESSION_STILL_OPEN", "cash session has not been closed yet")
	ErrInstallmentNotReady = newError(KindStateConflict, "INSTALLMENT_OUT_OF_ORDER", "previous installment is not paid or voided")
	ErrInstallmentState    = newError(KindStateConflict, "INSTALLMENT_NOT_PENDING", "installment is not pending")
	ErrOrderNotActive      = newError(KindStateConflict, "ORDER_NOT_ACTIVE", "credit order is cancelled or voided")
	ErrNothingToGenerate   = newError(KindStateConflict, "NOTHING_TO_GENERATE", "credit order has no installment left to generate")
	ErrObligationNotOpen   = newError(KindStateConflict, "OBLIGATION_NOT_PAYABLE", "obligation is paid or voided")
	ErrObligationHasPaid   = newError(KindStateConflict, "OBLIGATION_HAS_PAYMENTS", "obligation already has payments applied")
	ErrOrderNotFound       = newError(KindNotFound, "ORDER_NOT_FOUND", "credit order not found")
	ErrInstallmentNotFound = newError(KindNotFound, "INSTALLMENT_NOT_FOUND", "installment not found")
	ErrSessionNotFound     = newError(KindNotFound, "SESSION_NOT_FOUND", "cash session not found")
	ErrObligationNotFound  = newError(KindNotFound, "OBLIGATION_NOT_FOUND", "obligation not found")
	ErrEntryNotFound       = newError(KindNotFound, "LEDGER_ENTRY_NOT_FOUND", "ledger entry not found")
	ErrReportNotFound      = newError(KindNotFound, "REPORT_NOT_FOUND", "report not found")
	ErrExternalWrite       = newError(KindExternalWrite, "EXTERNAL_WRITE_FAILURE", "write failed")
)
