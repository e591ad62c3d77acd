package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// OriginCashClose tags ledger entries posted when a session closes with a variance.
const OriginCashClose = "cierre_caja"

// VarianceTolerance is the 0.01 epsilon: a net variance must exceed it to be posted.
const VarianceTolerance Cents = 1

type CloseLine struct {
	Method      PaymentMethod `json:"method"`
	Declared    Cents         `json:"declared"`
	Theoretical Cents         `json:"teorico"`
	Diff        Cents         `json:"diff"`
}

// LedgerAccounts are the chart-of-accounts codes used by the balancing entry.
type LedgerAccounts struct {
	Cash     string
	Surplus  string
	Shortage string
}

type ReconcileResult struct {
	SessionID uuid.UUID      `json:"session_id"`
	Lines     []CloseLine    `json:"lines"`
	DiffTotal Cents          `json:"diff_total"`
	Posting   *LedgerPosting `json:"posting"`
}

// BuildCloseLines merges the theoretical totals of a session with the operator's declaration.
// A method present on only one side gets zero on the other.
func BuildCloseLines(theoretical map[PaymentMethod]Cents, declared map[PaymentMethod]Cents) []CloseLine {
	methods := make(map[PaymentMethod]struct{}, len(theoretical)+len(declared))
	for m := range theoretical {
		methods[m] = struct{}{}
	}
	for m := range declared {
		methods[m] = struct{}{}
	}
	lines := make([]CloseLine, 0, len(methods))
	for m := range methods {
		lines = append(lines, CloseLine{Method: m, Declared: declared[m], Theoretical: theoretical[m]})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Method < lines[j].Method })
	return lines
}

// Reconcile computes the per-method variance of a close and, when the net variance exceeds the
// tolerance, the single balancing posting. It performs no I/O.
func Reconcile(session CashSession, lines []CloseLine, accounts LedgerAccounts, at time.Time) (ReconcileResult, error) {
	if session.State != SessionOpen {
		return ReconcileResult{}, ErrSessionNotOpen.Withf("cash session %s is %s", session.ID, session.State)
	}

	merged := make(map[PaymentMethod]*CloseLine)
	var order []PaymentMethod
	for _, l := range lines {
		method := NormalizeMethod(string(l.Method))
		if method == "" {
			if l.Declared != 0 || l.Theoretical != 0 {
				return ReconcileResult{}, ErrInvalidLine.Withf("close line with declared %s and teorico %s has no payment method", l.Declared, l.Theoretical)
			}
			continue
		}
		cur, ok := merged[method]
		if !ok {
			cur = &CloseLine{Method: method}
			merged[method] = cur
			order = append(order, method)
		}
		cur.Declared += l.Declared
		cur.Theoretical += l.Theoretical
	}

	res := ReconcileResult{SessionID: session.ID}
	for _, m := range order {
		l := *merged[m]
		l.Diff = l.Declared - l.Theoretical
		res.DiffTotal += l.Diff
		res.Lines = append(res.Lines, l)
	}

	if res.DiffTotal.Abs() > VarianceTolerance {
		p := balancingPosting(session, res.DiffTotal, accounts, at)
		res.Posting = &p
	}
	return res, nil
}

// balancingPosting: a surplus debits cash against the surplus account; a shortage debits the
// shortage account against cash.
func balancingPosting(session CashSession, diff Cents, accounts LedgerAccounts, at time.Time) LedgerPosting {
	amount := diff.Abs()
	p := LedgerPosting{
		Origin:      OriginCashClose,
		ReferenceID: session.ID.String(),
		Date:        at,
	}
	if diff > 0 {
		p.Description = fmt.Sprintf("Sobrante cierre de caja %s (%s)", session.Site, amount)
		p.Lines = []LedgerLine{
			{Account: accounts.Cash, Debit: amount},
			{Account: accounts.Surplus, Credit: amount},
		}
	} else {
		p.Description = fmt.Sprintf("Faltante cierre de caja %s (%s)", session.Site, amount)
		p.Lines = []LedgerLine{
			{Account: accounts.Shortage, Debit: amount},
			{Account: accounts.Cash, Credit: amount},
		}
	}
	return p
}
