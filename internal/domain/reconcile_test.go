package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAccounts = LedgerAccounts{Cash: "1.1.01", Surplus: "4.9.01", Shortage: "5.9.01"}

func openSession() CashSession {
	return CashSession{ID: uuid.New(), TenantID: "t1", Site: "sede-centro", State: SessionOpen}
}

func TestReconcile_ExactMatchPostsNothing(t *testing.T) {
	lines := []CloseLine{
		{Method: "efectivo", Declared: 150000, Theoretical: 150000},
		{Method: "tarjeta", Declared: 50000, Theoretical: 50000},
	}
	res, err := Reconcile(openSession(), lines, testAccounts, time.Now())
	require.NoError(t, err)

	assert.Equal(t, Cents(0), res.DiffTotal)
	assert.Nil(t, res.Posting)
	require.Len(t, res.Lines, 2)
	for _, l := range res.Lines {
		assert.Equal(t, Cents(0), l.Diff)
	}
}

func TestReconcile_Surplus(t *testing.T) {
	s := openSession()
	lines := []CloseLine{
		{Method: "efectivo", Declared: 100500, Theoretical: 100000},
	}
	res, err := Reconcile(s, lines, testAccounts, time.Now())
	require.NoError(t, err)

	assert.Equal(t, Cents(500), res.DiffTotal)
	require.NotNil(t, res.Posting)
	require.NoError(t, res.Posting.Validate())
	assert.Equal(t, OriginCashClose, res.Posting.Origin)
	assert.Equal(t, s.ID.String(), res.Posting.ReferenceID)
	assert.Equal(t, []LedgerLine{
		{Account: "1.1.01", Debit: 500},
		{Account: "4.9.01", Credit: 500},
	}, res.Posting.Lines)
}

func TestReconcile_Shortage(t *testing.T) {
	lines := []CloseLine{
		{Method: "efectivo", Declared: 99000, Theoretical: 100000},
		{Method: "transferencia", Declared: 20000, Theoretical: 20000},
	}
	res, err := Reconcile(openSession(), lines, testAccounts, time.Now())
	require.NoError(t, err)

	assert.Equal(t, Cents(-1000), res.DiffTotal)
	require.NotNil(t, res.Posting)
	assert.Equal(t, []LedgerLine{
		{Account: "5.9.01", Debit: 1000},
		{Account: "1.1.01", Credit: 1000},
	}, res.Posting.Lines)
}

func TestReconcile_OffsettingMethodsNetToZero(t *testing.T) {
	lines := []CloseLine{
		{Method: "efectivo", Declared: 10500, Theoretical: 10000},
		{Method: "tarjeta", Declared: 4500, Theoretical: 5000},
	}
	res, err := Reconcile(openSession(), lines, testAccounts, time.Now())
	require.NoError(t, err)

	assert.Equal(t, Cents(0), res.DiffTotal)
	assert.Nil(t, res.Posting)
	assert.Equal(t, Cents(500), res.Lines[0].Diff)
	assert.Equal(t, Cents(-500), res.Lines[1].Diff)
}

func TestReconcile_Tolerance(t *testing.T) {
	for _, tt := range []struct {
		diff   Cents
		posted bool
	}{
		{1, false},
		{-1, false},
		{2, true},
		{-2, true},
	} {
		lines := []CloseLine{{Method: "efectivo", Declared: 1000 + tt.diff, Theoretical: 1000}}
		res, err := Reconcile(openSession(), lines, testAccounts, time.Now())
		require.NoError(t, err)
		assert.Equal(t, tt.posted, res.Posting != nil, "diff %s", tt.diff)
	}
}

func TestReconcile_DiffTotalIsSumOfLines(t *testing.T) {
	lines := []CloseLine{
		{Method: "efectivo", Declared: 12345, Theoretical: 12000},
		{Method: "tarjeta", Declared: 0, Theoretical: 700},
		{Method: "cheque", Declared: 3000, Theoretical: 0},
	}
	res, err := Reconcile(openSession(), lines, testAccounts, time.Now())
	require.NoError(t, err)

	var sum Cents
	for _, l := range res.Lines {
		assert.Equal(t, l.Declared-l.Theoretical, l.Diff)
		sum += l.Diff
	}
	assert.Equal(t, sum, res.DiffTotal)
	assert.Equal(t, Cents(2645), res.DiffTotal)
}

func TestReconcile_MergesDuplicateMethods(t *testing.T) {
	lines := []CloseLine{
		{Method: "Efectivo", Declared: 100, Theoretical: 100},
		{Method: " efectivo ", Declared: 50, Theoretical: 0},
	}
	res, err := Reconcile(openSession(), lines, testAccounts, time.Now())
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assert.Equal(t, PaymentMethod("efectivo"), res.Lines[0].Method)
	assert.Equal(t, Cents(150), res.Lines[0].Declared)
	assert.Equal(t, Cents(50), res.Lines[0].Diff)
}

func TestReconcile_BlankMethod(t *testing.T) {
	t.Run("with amounts", func(t *testing.T) {
		_, err := Reconcile(openSession(), []CloseLine{{Method: " ", Declared: 100}}, testAccounts, time.Now())
		assert.ErrorIs(t, err, ErrInvalidLine)
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("empty line is skipped", func(t *testing.T) {
		res, err := Reconcile(openSession(), []CloseLine{{Method: ""}, {Method: "efectivo", Declared: 10, Theoretical: 10}}, testAccounts, time.Now())
		require.NoError(t, err)
		assert.Len(t, res.Lines, 1)
	})
}

func TestReconcile_ClosedSession(t *testing.T) {
	s := openSession()
	s.State = SessionClosed
	_, err := Reconcile(s, []CloseLine{{Method: "efectivo", Declared: 1, Theoretical: 1}}, testAccounts, time.Now())
	assert.ErrorIs(t, err, ErrSessionNotOpen)
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestBuildCloseLines(t *testing.T) {
	lines := BuildCloseLines(
		map[PaymentMethod]Cents{"efectivo": 1000, "tarjeta": 500},
		map[PaymentMethod]Cents{"efectivo": 900, "cheque": 200},
	)
	assert.Equal(t, []CloseLine{
		{Method: "cheque", Declared: 200, Theoretical: 0},
		{Method: "efectivo", Declared: 900, Theoretical: 1000},
		{Method: "tarjeta", Declared: 0, Theoretical: 500},
	}, lines)
}

func TestLedgerPosting_Validate(t *testing.T) {
	ok := LedgerPosting{Lines: []LedgerLine{{Account: "a", Debit: 10}, {Account: "b", Credit: 10}}}
	assert.NoError(t, ok.Validate())

	bad := []LedgerPosting{
		{Lines: []LedgerLine{{Account: "a", Debit: 10}}},
		{Lines: []LedgerLine{{Account: "a", Debit: 10}, {Account: "b", Credit: 9}}},
		{Lines: []LedgerLine{{Account: "", Debit: 10}, {Account: "b", Credit: 10}}},
		{Lines: []LedgerLine{{Account: "a", Debit: 0}, {Account: "b", Credit: 0}}},
		{Lines: []LedgerLine{{Account: "a", Debit: -10}, {Account: "b", Credit: -10}}},
	}
	for _, p := range bad {
		assert.ErrorIs(t, p.Validate(), ErrUnbalancedPosting)
	}
}

func TestReconcile_CardShortfallOfTwo(t *testing.T) {
	s := openSession()
	lines := []CloseLine{
		{Method: "efectivo", Declared: 10000, Theoretical: 10000},
		{Method: "tarjeta", Declared: 5000, Theoretical: 4800},
	}
	res, err := Reconcile(s, lines, testAccounts, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "2.00", res.DiffTotal.String())
	require.NotNil(t, res.Posting)
	assert.Equal(t, s.ID.String(), res.Posting.ReferenceID)
	assert.Len(t, res.Posting.Lines, 2)
}
