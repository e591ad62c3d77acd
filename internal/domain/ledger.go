package domain

import (
	"time"

	"github.com/google/uuid"
)

type LedgerLine struct {
	Account string `json:"cuenta"`
	Debit   Cents  `json:"debe"`
	Credit  Cents  `json:"haber"`
}

// LedgerPosting is a request to post one balanced entry.
type LedgerPosting struct {
	Origin      string       `json:"origin"`
	ReferenceID string       `json:"reference_id"`
	Description string       `json:"description"`
	Date        time.Time    `json:"date"`
	Lines       []LedgerLine `json:"lines"`
}

func (p LedgerPosting) Validate() error {
	if len(p.Lines) < 2 {
		return ErrUnbalancedPosting.Withf("ledger posting needs at least two lines, got %d", len(p.Lines))
	}
	var debit, credit Cents
	for _, l := range p.Lines {
		if l.Account == "" {
			return ErrUnbalancedPosting.Withf("ledger line without account")
		}
		if l.Debit < 0 || l.Credit < 0 {
			return ErrUnbalancedPosting.Withf("ledger line %s has a negative amount", l.Account)
		}
		debit += l.Debit
		credit += l.Credit
	}
	if debit != credit || debit == 0 {
		return ErrUnbalancedPosting.Withf("debits %s and credits %s differ", debit, credit)
	}
	return nil
}

type LedgerEntry struct {
	ID       uuid.UUID `json:"id"`
	TenantID TenantID  `json:"tenant_id"`
	LedgerPosting
	PostedAt time.Time `json:"posted_at"`
}
