package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

const maxRateDecimals = 8

var maxRate = decimal.NewFromInt(10000)

// ScheduleInput describes a credit order before it is persisted.
type ScheduleInput struct {
	Principal    Cents
	Installments int
	FirstPeriod  string
	MonthlyRate  decimal.Decimal
	System       AmortizationSystem
}

func (in ScheduleInput) normalizedSystem() AmortizationSystem {
	if in.System == "" {
		return SystemNone
	}
	return in.System
}

type ScheduleLine struct {
	Number   int    `json:"number"`
	Period   Period `json:"period"`
	Capital  Cents  `json:"capital"`
	Interest Cents  `json:"interest"`
	Amount   Cents  `json:"amount"`
}

type Schedule struct {
	Principal     Cents          `json:"principal"`
	TotalInterest Cents          `json:"total_interest"`
	TotalAmount   Cents          `json:"total_amount"`
	Lines         []ScheduleLine `json:"lines"`
}

// BuildSchedule splits a principal into monthly installments.
//
// Without interest every installment gets principal/n cents and the remainder of the division is
// added to the last installment. With the French system the fixed payment is rounded to cents and
// the last installment takes whatever capital is left, so capital always sums to the principal.
func BuildSchedule(in ScheduleInput) (Schedule, error) {
	if in.Principal <= 0 {
		return Schedule{}, ErrInvalidAmount.Withf("principal %s must be greater than zero", in.Principal)
	}
	if in.Installments < 1 {
		return Schedule{}, ErrInvalidCount.Withf("installments %d must be at least 1", in.Installments)
	}
	first, err := ParsePeriod(in.FirstPeriod)
	if err != nil {
		return Schedule{}, err
	}
	if in.MonthlyRate.IsNegative() {
		return Schedule{}, ErrInvalidRate.Withf("interest rate %s is negative", in.MonthlyRate)
	}
	// credit_orders.interest_rate is NUMERIC(12, 8)
	if !in.MonthlyRate.Equal(in.MonthlyRate.Truncate(maxRateDecimals)) || in.MonthlyRate.GreaterThanOrEqual(maxRate) {
		return Schedule{}, ErrInvalidRate.Withf("interest rate %s must be below %s with at most %d decimals", in.MonthlyRate, maxRate, maxRateDecimals)
	}

	var lines []ScheduleLine
	switch in.normalizedSystem() {
	case SystemNone:
		if !in.MonthlyRate.IsZero() {
			return Schedule{}, ErrInvalidRate.Withf("interest rate %s requires the %s system", in.MonthlyRate, SystemFrench)
		}
		lines = flatLines(in.Principal, in.Installments, first)
	case SystemFrench:
		if in.MonthlyRate.IsZero() {
			lines = flatLines(in.Principal, in.Installments, first)
		} else {
			lines = frenchLines(in.Principal, in.Installments, first, in.MonthlyRate)
		}
	default:
		return Schedule{}, ErrInvalidSystem.Withf("unknown amortization system %q", in.System)
	}

	s := Schedule{Principal: in.Principal, Lines: lines}
	for _, l := range lines {
		s.TotalInterest += l.Interest
		s.TotalAmount += l.Amount
	}
	return s, nil
}

func flatLines(principal Cents, n int, first Period) []ScheduleLine {
	base := principal / Cents(n)
	remainder := principal % Cents(n)

	lines := make([]ScheduleLine, n)
	for i := range lines {
		amount := base
		if i == n-1 {
			amount += remainder
		}
		lines[i] = ScheduleLine{
			Number:  i + 1,
			Period:  first.AddMonths(i),
			Capital: amount,
			Amount:  amount,
		}
	}
	return lines
}

func frenchLines(principal Cents, n int, first Period, rate decimal.Decimal) []ScheduleLine {
	one := decimal.NewFromInt(1)
	factor := one.Add(rate).Pow(decimal.NewFromInt(int64(n)))
	payment := roundCents(principal.Decimal().Mul(rate).Mul(factor).Div(factor.Sub(one)))

	lines := make([]ScheduleLine, n)
	remaining := principal
	for i := range lines {
		interest := roundCents(remaining.Decimal().Mul(rate))
		capital := payment - interest
		if capital > remaining || i == n-1 {
			capital = remaining
		}
		if capital < 0 {
			capital = 0
		}
		remaining -= capital
		lines[i] = ScheduleLine{
			Number:   i + 1,
			Period:   first.AddMonths(i),
			Capital:  capital,
			Interest: interest,
			Amount:   capital + interest,
		}
	}
	return lines
}

// CurrentInstallment is the lowest-numbered installment that is neither paid nor voided.
func CurrentInstallment(installments []Installment) (Installment, bool) {
	sorted := make([]Installment, len(installments))
	copy(sorted, installments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	for _, inst := range sorted {
		if !inst.State.IsTerminal() {
			return inst, true
		}
	}
	return Installment{}, false
}

// CanMaterialize checks that installment number can become an obligation now: it must still be
// pending and its predecessor must be paid or voided.
func CanMaterialize(installments []Installment, number int) error {
	var target, prev *Installment
	for i := range installments {
		switch installments[i].Number {
		case number:
			target = &installments[i]
		case number - 1:
			prev = &installments[i]
		}
	}
	if target == nil {
		return ErrInstallmentNotFound.Withf("installment %d not found", number)
	}
	if target.State != InstallmentPending {
		return ErrInstallmentState.Withf("installment %d is already %s", number, target.State)
	}
	if number > 1 {
		if prev == nil {
			return ErrInstallmentNotFound.Withf("installment %d not found", number-1)
		}
		if !prev.State.IsTerminal() {
			return ErrInstallmentNotReady.Withf("installment %d cannot be generated while installment %d is %s", number, prev.Number, prev.State)
		}
	}
	return nil
}
