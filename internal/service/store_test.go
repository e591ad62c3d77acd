package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/ports"

	"github.com/google/uuid"
)

type memState struct {
	orders      map[uuid.UUID]domain.CreditOrder
	obligations map[uuid.UUID]domain.Obligation
	entries     map[uuid.UUID]domain.LedgerEntry
	sessions    map[uuid.UUID]domain.CashSession
	collections []domain.Collection
	cutoffs     map[string]int
	novelties   []domain.Novelty
}

func (s memState) clone() memState {
	c := memState{
		orders:      make(map[uuid.UUID]domain.CreditOrder, len(s.orders)),
		obligations: make(map[uuid.UUID]domain.Obligation, len(s.obligations)),
		entries:     make(map[uuid.UUID]domain.LedgerEntry, len(s.entries)),
		sessions:    make(map[uuid.UUID]domain.CashSession, len(s.sessions)),
		collections: append([]domain.Collection(nil), s.collections...),
		cutoffs:     make(map[string]int, len(s.cutoffs)),
		novelties:   append([]domain.Novelty(nil), s.novelties...),
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.obligations {
		c.obligations[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.cutoffs {
		c.cutoffs[k] = v
	}
	return c
}

func copyOrder(o domain.CreditOrder) domain.CreditOrder {
	o.Installments = append([]domain.Installment(nil), o.Installments...)
	return o
}

// memStore is an in-memory ports.Store. Transactions snapshot the state and restore it when fn fails.
type memStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	state  memState
	writes int
	failOn map[string]error
	// locks records row locks as "order:<id>" and "obligation:<id>" in the order taken.
	locks []string
}

var _ ports.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		state:  memState{}.clone(),
		failOn: map[string]error{},
	}
}

func (s *memStore) Orders() ports.OrderRepository           { return s }
func (s *memStore) Obligations() ports.ObligationRepository { return s }
func (s *memStore) Ledger() ports.LedgerRepository          { return s }
func (s *memStore) Cash() ports.CashRepository              { return s }
func (s *memStore) Novelties() ports.NoveltyRepository      { return s }

func (s *memStore) WithinTx(ctx context.Context, fn func(ports.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// write must be called with mu held.
func (s *memStore) write(op string) error {
	s.writes++
	return s.failOn[op]
}

func (s *memStore) CreateOrder(ctx context.Context, o *domain.CreditOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("CreateOrder"); err != nil {
		return err
	}
	s.state.orders[o.ID] = copyOrder(*o)
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[id]
	if !ok || o.TenantID != tenant {
		return nil, domain.ErrOrderNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (s *memStore) LockOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error) {
	s.recordLock("order:" + id.String())
	return s.GetOrder(ctx, tenant, id)
}

func (s *memStore) UpdateOrder(ctx context.Context, o *domain.CreditOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("UpdateOrder"); err != nil {
		return err
	}
	cur, ok := s.state.orders[o.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	installments := cur.Installments
	cur = *o
	cur.Installments = installments
	s.state.orders[o.ID] = cur
	return nil
}

func (s *memStore) UpdateInstallment(ctx context.Context, inst *domain.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("UpdateInstallment"); err != nil {
		return err
	}
	o, ok := s.state.orders[inst.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o = copyOrder(o)
	for i := range o.Installments {
		if o.Installments[i].ID == inst.ID {
			o.Installments[i] = *inst
			s.state.orders[o.ID] = o
			return nil
		}
	}
	return domain.ErrInstallmentNotFound
}

func (s *memStore) OrderIDByObligation(ctx context.Context, tenant domain.TenantID, obligationID uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.state.orders {
		if o.TenantID != tenant {
			continue
		}
		for _, inst := range o.Installments {
			if inst.ObligationID != nil && *inst.ObligationID == obligationID {
				return o.ID, nil
			}
		}
	}
	return uuid.Nil, nil
}

func (s *memStore) CreateObligation(ctx context.Context, o *domain.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("CreateObligation"); err != nil {
		return err
	}
	s.state.obligations[o.ID] = *o
	return nil
}

func (s *memStore) GetObligation(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.obligations[id]
	if !ok || o.TenantID != tenant {
		return nil, domain.ErrObligationNotFound
	}
	return &o, nil
}

func (s *memStore) LockObligation(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.Obligation, error) {
	s.recordLock("obligation:" + id.String())
	return s.GetObligation(ctx, tenant, id)
}

func (s *memStore) recordLock(key string) {
	s.mu.Lock()
	s.locks = append(s.locks, key)
	s.mu.Unlock()
}

func (s *memStore) resetLocks() {
	s.mu.Lock()
	s.locks = nil
	s.mu.Unlock()
}

func (s *memStore) UpdateObligation(ctx context.Context, o *domain.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("UpdateObligation"); err != nil {
		return err
	}
	s.state.obligations[o.ID] = *o
	return nil
}

func (s *memStore) PostEntry(ctx context.Context, tenant domain.TenantID, p domain.LedgerPosting) (*domain.LedgerEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("PostEntry"); err != nil {
		return nil, err
	}
	e := domain.LedgerEntry{ID: uuid.New(), TenantID: tenant, LedgerPosting: p, PostedAt: time.Now()}
	s.state.entries[e.ID] = e
	return &e, nil
}

func (s *memStore) GetEntry(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.entries[id]
	if !ok || e.TenantID != tenant {
		return nil, domain.ErrEntryNotFound
	}
	return &e, nil
}

func (s *memStore) entriesFor(reference string) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.state.entries {
		if e.ReferenceID == reference {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) CreateSession(ctx context.Context, cs *domain.CashSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("CreateSession"); err != nil {
		return err
	}
	for _, other := range s.state.sessions {
		if other.TenantID == cs.TenantID && other.Site == cs.Site && other.State == domain.SessionOpen {
			return domain.ErrSessionAlreadyOpen
		}
	}
	s.state.sessions[cs.ID] = *cs
	return nil
}

func (s *memStore) GetSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.state.sessions[id]
	if !ok || cs.TenantID != tenant {
		return nil, domain.ErrSessionNotFound
	}
	cs.CloseLines = append([]domain.CloseLine(nil), cs.CloseLines...)
	return &cs, nil
}

func (s *memStore) LockSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error) {
	return s.GetSession(ctx, tenant, id)
}

func (s *memStore) CreateCollection(ctx context.Context, tenant domain.TenantID, c *domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("CreateCollection"); err != nil {
		return err
	}
	s.state.collections = append(s.state.collections, *c)
	return nil
}

func (s *memStore) ListCollections(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID) ([]domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Collection
	for _, c := range s.state.collections {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) MethodTotals(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID) (map[domain.PaymentMethod]domain.Cents, error) {
	cs, err := s.ListCollections(ctx, tenant, sessionID)
	if err != nil {
		return nil, err
	}
	totals := map[domain.PaymentMethod]domain.Cents{}
	for _, c := range cs {
		for _, m := range c.Methods {
			totals[m.Method] += m.Amount
		}
	}
	return totals, nil
}

func (s *memStore) CloseSession(ctx context.Context, cs *domain.CashSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("CloseSession"); err != nil {
		return err
	}
	cur, ok := s.state.sessions[cs.ID]
	if !ok || cur.State != domain.SessionOpen {
		return domain.ErrSessionNotOpen
	}
	s.state.sessions[cs.ID] = *cs
	return nil
}

func cutoffKey(tenant domain.TenantID, period domain.Period) string {
	return string(tenant) + "|" + period.String()
}

func (s *memStore) CutoffDay(ctx context.Context, tenant domain.TenantID, period domain.Period) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cutoffs[cutoffKey(tenant, period)], nil
}

func (s *memStore) SetCutoff(ctx context.Context, tenant domain.TenantID, period domain.Period, day int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("SetCutoff"); err != nil {
		return err
	}
	s.state.cutoffs[cutoffKey(tenant, period)] = day
	return nil
}

func (s *memStore) CreateNovelty(ctx context.Context, n *domain.Novelty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write("CreateNovelty"); err != nil {
		return err
	}
	s.state.novelties = append(s.state.novelties, *n)
	return nil
}

func (s *memStore) ListByPeriod(ctx context.Context, tenant domain.TenantID, period domain.Period) ([]domain.Novelty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Novelty
	for _, n := range s.state.novelties {
		if n.TenantID == tenant && n.Period == period {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) obligation(id uuid.UUID) domain.Obligation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.obligations[id]
}

func (s *memStore) obligationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.obligations)
}
