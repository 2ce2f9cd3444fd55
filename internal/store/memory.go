package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soulseer/settlement/internal/models"
)

// MemoryStore is an in-process Store for tests and local runs. Row locks are
// keyed semaphores held until the transaction ends; writes are staged in the
// transaction and applied on commit.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	entries  map[string]models.LedgerEntry
	sessions map[string]models.Session
	payouts  map[string]models.PayoutRequest
	deposits map[string]models.Deposit // by gateway ref
	gifts    map[string]models.VirtualGift
	idem     map[string]models.IdempotencyRecord

	locks *lockTable
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]models.Account),
		entries:  make(map[string]models.LedgerEntry),
		sessions: make(map[string]models.Session),
		payouts:  make(map[string]models.PayoutRequest),
		deposits: make(map[string]models.Deposit),
		gifts:    make(map[string]models.VirtualGift),
		idem:     make(map[string]models.IdempotencyRecord),
		locks:    &lockTable{chans: make(map[string]chan struct{})},
	}
}

type lockTable struct {
	mu    sync.Mutex
	chans map[string]chan struct{}
}

func (l *lockTable) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	ch, ok := l.chans[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.chans[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lockTable) release(key string) {
	l.mu.Lock()
	ch := l.chans[key]
	l.mu.Unlock()
	<-ch
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		s:        s,
		held:     make(map[string]bool),
		accounts: make(map[string]models.Account),
		sessions: make(map[string]models.Session),
		payouts:  make(map[string]models.PayoutRequest),
		deposits: make(map[string]models.Deposit),
		idem:     make(map[string]models.IdempotencyRecord),
	}
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAccountIDs(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		if id > after {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *MemoryStore) EarningsSummary(_ context.Context, accountID string) (EarningsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var summary EarningsSummary
	for _, e := range s.entries {
		if e.AccountID != accountID || e.Status != models.EntryCompleted {
			continue
		}
		switch {
		case e.Kind == models.KindSessionEarning || e.Kind == models.KindGiftEarning:
			summary.TotalEarned += e.NetAmount
		case e.Kind == models.KindRefund && e.Direction == models.Debit:
			summary.TotalRefunded += e.NetAmount
		case e.Kind == models.KindPayoutCompleted:
			summary.TotalPaidOut += e.NetAmount
		}
	}
	return summary, nil
}

func (s *MemoryStore) GetEntry(_ context.Context, id string) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, accountID string, filter HistoryFilter, after *Cursor, limit int) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	var out []models.LedgerEntry
	for _, e := range s.entries {
		if e.AccountID == accountID && matchesFilter(e, filter) && isAfter(e, after) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sortEntries(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilter(e models.LedgerEntry, f HistoryFilter) bool {
	if len(f.Kinds) > 0 && !contains(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, e.Status) {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

func isAfter(e models.LedgerEntry, c *Cursor) bool {
	if c == nil {
		return true
	}
	if e.CreatedAt.Equal(c.CreatedAt) {
		return e.ID > c.ID
	}
	return e.CreatedAt.After(c.CreatedAt)
}

func contains[T comparable](values []T, v T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func sortEntries(entries []models.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func (s *MemoryStore) EntriesByRelated(_ context.Context, relatedID string) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	var out []models.LedgerEntry
	for _, e := range s.entries {
		if e.RelatedEntityID == relatedID {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (s *MemoryStore) ListActiveSessions(_ context.Context, limit int) ([]models.Session, error) {
	s.mu.RLock()
	var out []models.Session
	for _, session := range s.sessions {
		if session.Status == models.SessionActive {
			out = append(out, session)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetPayout(_ context.Context, id string) (*models.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payouts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) GetPayoutByTransferRef(_ context.Context, ref string) (*models.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payouts {
		if p.ExternalTransferReference != nil && *p.ExternalTransferReference == ref {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListPayoutsByStatus(_ context.Context, statuses []models.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	return s.listPayouts(func(p models.PayoutRequest) bool { return contains(statuses, p.Status) }, limit, false), nil
}

func (s *MemoryStore) ListPayoutsByAccount(_ context.Context, accountID string, limit int) ([]models.PayoutRequest, error) {
	return s.listPayouts(func(p models.PayoutRequest) bool { return p.ProviderAccountID == accountID }, limit, true), nil
}

func (s *MemoryStore) listPayouts(keep func(models.PayoutRequest) bool, limit int, newestFirst bool) []models.PayoutRequest {
	s.mu.RLock()
	var out []models.PayoutRequest
	for _, p := range s.payouts {
		if keep(p) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) ListPayoutCandidates(_ context.Context, minAvailable int64, runKey string, day time.Time, limit int) ([]models.Account, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	s.mu.RLock()
	paid := make(map[string]bool)
	for _, p := range s.payouts {
		if p.RunKey != nil && *p.RunKey == runKey {
			paid[p.ProviderAccountID] = true
		}
		if p.Status == models.PayoutCompleted && p.CompletedAt != nil &&
			!p.CompletedAt.Before(dayStart) && p.CompletedAt.Before(dayEnd) {
			paid[p.ProviderAccountID] = true
		}
	}
	var out []models.Account
	for _, a := range s.accounts {
		if a.Status == models.AccountActive && a.PayoutDestination != "" && a.Available() >= minAvailable && !paid[a.ID] {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetDeposit(_ context.Context, gatewayRef string) (*models.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deposits[gatewayRef]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListGifts(_ context.Context, activeOnly bool) ([]models.VirtualGift, error) {
	s.mu.RLock()
	var out []models.VirtualGift
	for _, g := range s.gifts {
		if !activeOnly || g.Active {
			out = append(out, g)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].Name < out[j].Name
		}
		return out[i].Price < out[j].Price
	})
	return out, nil
}

func (s *MemoryStore) GetGift(_ context.Context, id string) (*models.VirtualGift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (s *MemoryStore) CreateGift(_ context.Context, gift *models.VirtualGift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gifts[gift.ID]; ok {
		return ErrConflict
	}
	s.gifts[gift.ID] = *gift
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

type memTx struct {
	s    *MemoryStore
	held map[string]bool

	accounts map[string]models.Account
	entries  []models.LedgerEntry
	sessions map[string]models.Session
	payouts  map[string]models.PayoutRequest
	deposits map[string]models.Deposit
	idem     map[string]models.IdempotencyRecord
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	return nil
}

func (t *memTx) releaseAll() {
	for key := range t.held {
		t.s.locks.release(key)
	}
	t.held = nil
}

func (t *memTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, a := range t.accounts {
		t.s.accounts[id] = a
	}
	for _, e := range t.entries {
		t.s.entries[e.ID] = e
	}
	for id, session := range t.sessions {
		t.s.sessions[id] = session
	}
	for id, p := range t.payouts {
		t.s.payouts[id] = p
	}
	for ref, d := range t.deposits {
		t.s.deposits[ref] = d
	}
	for key, r := range t.idem {
		t.s.idem[key] = r
	}
}

func (t *memTx) account(id string) (models.Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.accounts[id]
	return a, ok
}

func (t *memTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	sorted := uniqueSorted(ids)
	out := make(map[string]*models.Account, len(sorted))
	for _, id := range sorted {
		if err := t.lock(ctx, "acct:"+id); err != nil {
			return nil, err
		}
		a, ok := t.account(id)
		if !ok {
			return nil, fmt.Errorf("lock account %s: %w", id, ErrNotFound)
		}
		out[id] = &a
	}
	return out, nil
}

func (t *memTx) CreateAccount(ctx context.Context, a *models.Account) (bool, error) {
	if err := t.lock(ctx, "acct:"+a.ID); err != nil {
		return false, err
	}
	if _, ok := t.account(a.ID); ok {
		return false, nil
	}
	t.accounts[a.ID] = *a
	return true, nil
}

func (t *memTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	if err := t.lock(ctx, "acct:"+a.ID); err != nil {
		return err
	}
	current, ok := t.account(a.ID)
	if !ok {
		return ErrNotFound
	}
	if current.Version != a.Version {
		return fmt.Errorf("%w: account %s", ErrConcurrentModification, a.ID)
	}
	if a.Balance < 0 || a.Reserved < 0 {
		return fmt.Errorf("account %s: negative balance", a.ID)
	}
	a.Version++
	t.accounts[a.ID] = *a
	return nil
}

// allEntries returns committed entries followed by this transaction's staged ones.
func (t *memTx) allEntries(keep func(models.LedgerEntry) bool) []models.LedgerEntry {
	var out []models.LedgerEntry
	t.s.mu.RLock()
	for _, e := range t.s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	t.s.mu.RUnlock()
	for _, e := range t.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (t *memTx) InsertEntry(_ context.Context, e *models.LedgerEntry) error {
	if dup := t.allEntries(func(x models.LedgerEntry) bool { return x.ID == e.ID }); len(dup) > 0 {
		return ErrConflict
	}
	t.entries = append(t.entries, *e)
	return nil
}

func (t *memTx) GetEntry(_ context.Context, id string) (*models.LedgerEntry, error) {
	found := t.allEntries(func(e models.LedgerEntry) bool { return e.ID == id })
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (t *memTx) EntriesByRelated(_ context.Context, relatedID string) ([]models.LedgerEntry, error) {
	out := t.allEntries(func(e models.LedgerEntry) bool { return e.RelatedEntityID == relatedID })
	sortEntries(out)
	return out, nil
}

func (t *memTx) SumRefunded(_ context.Context, originalEntryID string) (int64, error) {
	var total int64
	for _, e := range t.allEntries(func(e models.LedgerEntry) bool {
		return e.OriginalEntryID != nil && *e.OriginalEntryID == originalEntryID &&
			e.Kind == models.KindRefund && e.Direction == models.Credit && e.Status == models.EntryCompleted
	}) {
		total += e.GrossAmount
	}
	return total, nil
}

func (t *memTx) SumCompleted(_ context.Context, accountID string) (int64, int64, error) {
	var credits, debits int64
	for _, e := range t.allEntries(func(e models.LedgerEntry) bool {
		return e.AccountID == accountID && e.Status == models.EntryCompleted
	}) {
		if e.Direction == models.Debit {
			debits += e.NetAmount
		} else {
			credits += e.NetAmount
		}
	}
	return credits, debits, nil
}

func (t *memTx) session(id string) (models.Session, bool) {
	if s, ok := t.sessions[id]; ok {
		return s, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	s, ok := t.s.sessions[id]
	return s, ok
}

func (t *memTx) LockSession(ctx context.Context, id string) (*models.Session, error) {
	if err := t.lock(ctx, "ses:"+id); err != nil {
		return nil, err
	}
	s, ok := t.session(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memTx) InsertSession(ctx context.Context, s *models.Session) error {
	if err := t.lock(ctx, "pair:"+s.ClientAccountID+"|"+s.ProviderAccountID); err != nil {
		return err
	}
	if err := t.lock(ctx, "ses:"+s.ID); err != nil {
		return err
	}
	active := func(x models.Session) bool {
		return x.Status == models.SessionActive &&
			x.ClientAccountID == s.ClientAccountID && x.ProviderAccountID == s.ProviderAccountID
	}
	for _, x := range t.sessions {
		if active(x) {
			return ErrConflict
		}
	}
	t.s.mu.RLock()
	for id, x := range t.s.sessions {
		if _, staged := t.sessions[id]; !staged && active(x) {
			t.s.mu.RUnlock()
			return ErrConflict
		}
	}
	_, exists := t.s.sessions[s.ID]
	t.s.mu.RUnlock()
	if exists {
		return ErrConflict
	}
	t.sessions[s.ID] = *s
	return nil
}

func (t *memTx) UpdateSession(ctx context.Context, s *models.Session) error {
	if err := t.lock(ctx, "ses:"+s.ID); err != nil {
		return err
	}
	if _, ok := t.session(s.ID); !ok {
		return ErrNotFound
	}
	t.sessions[s.ID] = *s
	return nil
}

func (t *memTx) payout(id string) (models.PayoutRequest, bool) {
	if p, ok := t.payouts[id]; ok {
		return p, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	p, ok := t.s.payouts[id]
	return p, ok
}

func (t *memTx) InsertPayout(ctx context.Context, p *models.PayoutRequest) error {
	if p.RunKey != nil {
		if err := t.lock(ctx, "run:"+p.ProviderAccountID+"|"+*p.RunKey); err != nil {
			return err
		}
		sameRun := func(x models.PayoutRequest) bool {
			return x.RunKey != nil && *x.RunKey == *p.RunKey && x.ProviderAccountID == p.ProviderAccountID
		}
		for _, x := range t.payouts {
			if sameRun(x) {
				return ErrConflict
			}
		}
		t.s.mu.RLock()
		for _, x := range t.s.payouts {
			if sameRun(x) {
				t.s.mu.RUnlock()
				return ErrConflict
			}
		}
		t.s.mu.RUnlock()
	}
	if err := t.lock(ctx, "po:"+p.ID); err != nil {
		return err
	}
	if _, ok := t.payout(p.ID); ok {
		return ErrConflict
	}
	t.payouts[p.ID] = *p
	return nil
}

func (t *memTx) LockPayout(ctx context.Context, id string) (*models.PayoutRequest, error) {
	if err := t.lock(ctx, "po:"+id); err != nil {
		return nil, err
	}
	p, ok := t.payout(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) UpdatePayout(ctx context.Context, p *models.PayoutRequest) error {
	if err := t.lock(ctx, "po:"+p.ID); err != nil {
		return err
	}
	if _, ok := t.payout(p.ID); !ok {
		return ErrNotFound
	}
	t.payouts[p.ID] = *p
	return nil
}

func (t *memTx) deposit(ref string) (models.Deposit, bool) {
	if d, ok := t.deposits[ref]; ok {
		return d, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	d, ok := t.s.deposits[ref]
	return d, ok
}

func (t *memTx) InsertDeposit(ctx context.Context, d *models.Deposit) error {
	if err := t.lock(ctx, "dep:"+d.GatewayRef); err != nil {
		return err
	}
	if _, ok := t.deposit(d.GatewayRef); ok {
		return ErrConflict
	}
	t.deposits[d.GatewayRef] = *d
	return nil
}

func (t *memTx) LockDeposit(ctx context.Context, gatewayRef string) (*models.Deposit, error) {
	if err := t.lock(ctx, "dep:"+gatewayRef); err != nil {
		return nil, err
	}
	d, ok := t.deposit(gatewayRef)
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (t *memTx) UpdateDeposit(ctx context.Context, d *models.Deposit) error {
	if err := t.lock(ctx, "dep:"+d.GatewayRef); err != nil {
		return err
	}
	if _, ok := t.deposit(d.GatewayRef); !ok {
		return ErrNotFound
	}
	t.deposits[d.GatewayRef] = *d
	return nil
}

func idemKey(accountID, scope, key string) string {
	return accountID + "|" + scope + "|" + key
}

func (t *memTx) GetIdempotency(ctx context.Context, accountID, scope, key string) (*models.IdempotencyRecord, error) {
	k := idemKey(accountID, scope, key)
	if err := t.lock(ctx, "idem:"+k); err != nil {
		return nil, err
	}
	if r, ok := t.idem[k]; ok {
		return &r, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	r, ok := t.s.idem[k]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memTx) InsertIdempotency(ctx context.Context, r *models.IdempotencyRecord) error {
	if _, err := t.GetIdempotency(ctx, r.AccountID, r.Scope, r.Key); err == nil {
		return ErrConflict
	} else if err != ErrNotFound {
		return err
	}
	t.idem[idemKey(r.AccountID, r.Scope, r.Key)] = *r
	return nil
}
