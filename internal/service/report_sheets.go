package service

import (
	"strings"
	"time"
	"unicode"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
)

type column[T any] struct {
	Header string
	Value  func(T) any
}

func buildSheet[T any](name string, cols []column[T], items []T) sheet {
	sh := sheet{name: name, headers: make([]string, len(cols))}
	for i, c := range cols {
		sh.headers[i] = c.Header
	}
	for _, item := range items {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = c.Value(item)
		}
		sh.rows = append(sh.rows, row)
	}
	return sh
}

// money writes cents as a numeric cell so the sheet can sum them.
func money(c domain.Cents) float64 {
	return c.Decimal().InexactFloat64()
}

func uuidPtr(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func timeStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// fileSafe keeps letters, digits, '-' and '_' so user text can go into a file name.
func fileSafe(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		}
		return -1
	}, strings.TrimSpace(s))
	if s == "" {
		return "caja"
	}
	return s
}

var installmentColumns = []column[domain.Installment]{
	{"Cuota", func(i domain.Installment) any { return i.Number }},
	{"Período", func(i domain.Installment) any { return i.Period.String() }},
	{"Capital", func(i domain.Installment) any { return money(i.Capital) }},
	{"Interés", func(i domain.Installment) any { return money(i.Interest) }},
	{"Importe", func(i domain.Installment) any { return money(i.Amount) }},
	{"Pagado", func(i domain.Installment) any { return money(i.Paid) }},
	{"Saldo", func(i domain.Installment) any { return money(i.Balance) }},
	{"Estado", func(i domain.Installment) any { return string(i.State) }},
	{"Obligación", func(i domain.Installment) any { return uuidPtr(i.ObligationID) }},
	{"Generada", func(i domain.Installment) any { return timeStr(i.GeneratedAt) }},
}

func orderSummarySheet(o *domain.CreditOrder) sheet {
	rate := ""
	if o.InterestRate != nil {
		rate = o.InterestRate.String()
	}
	system := string(o.System)
	if system == "" {
		system = string(domain.SystemNone)
	}

	return sheet{
		name:    "Orden",
		headers: []string{"Campo", "Valor"},
		rows: [][]any{
			{"Orden", o.ID.String()},
			{"Afiliado", o.AfiliadoID.String()},
			{"Padrón", uuidPtr(o.PadronID)},
			{"Concepto", o.ConceptoCodigo},
			{"Principal", money(o.Principal)},
			{"Total", money(o.TotalAmount)},
			{"Saldo", money(o.Balance)},
			{"Cuotas", o.TotalInstallments},
			{"Cuota actual", o.CurrentInstallment},
			{"Primer período", o.FirstPeriod.String()},
			{"Sistema", system},
			{"Tasa mensual", rate},
			{"Estado", string(o.State)},
		},
	}
}

func closeLinesSheet(lines []domain.CloseLine) sheet {
	sh := buildSheet("Cierre", []column[domain.CloseLine]{
		{"Medio", func(l domain.CloseLine) any { return string(l.Method) }},
		{"Declarado", func(l domain.CloseLine) any { return money(l.Declared) }},
		{"Teórico", func(l domain.CloseLine) any { return money(l.Theoretical) }},
		{"Diferencia", func(l domain.CloseLine) any { return money(l.Diff) }},
	}, lines)

	var declared, theoretical, diff domain.Cents
	for _, l := range lines {
		declared += l.Declared
		theoretical += l.Theoretical
		diff += l.Diff
	}
	sh.rows = append(sh.rows, []any{"TOTAL", money(declared), money(theoretical), money(diff)})
	return sh
}

type collectionRow struct {
	collection domain.Collection
	method     domain.MethodLine
}

// flattenCollections yields one row per payment method line.
func flattenCollections(cs []domain.Collection) []collectionRow {
	var rows []collectionRow
	for _, c := range cs {
		for _, m := range c.Methods {
			rows = append(rows, collectionRow{collection: c, method: m})
		}
	}
	return rows
}

var collectionColumns = []column[collectionRow]{
	{"Cobranza", func(r collectionRow) any { return r.collection.ID.String() }},
	{"Fecha", func(r collectionRow) any { return r.collection.CreatedAt.Format("2006-01-02 15:04:05") }},
	{"Afiliado", func(r collectionRow) any { return uuidPtr(r.collection.AfiliadoID) }},
	{"Medio", func(r collectionRow) any { return string(r.method.Method) }},
	{"Importe", func(r collectionRow) any { return money(r.method.Amount) }},
	{"Referencia", func(r collectionRow) any { return r.method.Reference }},
}

var ledgerColumns = []column[domain.LedgerLine]{
	{"Cuenta", func(l domain.LedgerLine) any { return l.Account }},
	{"Debe", func(l domain.LedgerLine) any { return money(l.Debit) }},
	{"Haber", func(l domain.LedgerLine) any { return money(l.Credit) }},
}

var noveltyColumns = []column[domain.Novelty]{
	{"Afiliado", func(n domain.Novelty) any { return n.AfiliadoID.String() }},
	{"Padrón", func(n domain.Novelty) any { return uuidPtr(n.PadronID) }},
	{"Tipo", func(n domain.Novelty) any { return string(n.Kind) }},
	{"Concepto", func(n domain.Novelty) any { return n.ConceptoCodigo }},
	{"Importe", func(n domain.Novelty) any { return money(n.Amount) }},
	{"Fecha evento", func(n domain.Novelty) any { return n.EventDate.Format("2006-01-02") }},
	{"Período", func(n domain.Novelty) any { return n.Period.String() }},
	{"Registrada", func(n domain.Novelty) any { return n.CreatedAt.Format("2006-01-02 15:04:05") }},
}
