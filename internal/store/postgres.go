package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/soulseer/settlement/internal/models"
)

const (
	accountColumns = `id, balance, reserved, version, status, payout_destination, chat_rate, call_rate, video_rate, created_at, updated_at`
	entryColumns   = `id, account_id, counterparty_account_id, kind, direction, category, gross_amount, platform_fee, net_amount, related_entity_id, original_entry_id, status, external_reference, memo, created_at, completed_at`
	sessionColumns = `id, client_account_id, provider_account_id, session_type, rate_per_minute, promotional, status, started_at, ended_at, duration_minutes, total_charge, force_ended, updated_at`
	payoutColumns  = `id, provider_account_id, amount, status, run_key, destination, external_transfer_reference, failure_reason, attempts, created_at, updated_at, completed_at`
	depositColumns = `id, account_id, amount, gateway_ref, status, entry_id, created_at, completed_at`
	giftColumns    = `id, name, price, active, created_at`
)

// PostgresStore implements Store on Postgres. Writes go through serializable
// transactions with row locks; reads use sqlx struct scanning.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres")}
}

// mapError translates driver errors into store errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConcurrentModification, pqErr.Message)
		}
	}
	return err
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return mapError(tx.Commit())
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &account, nil
}

func (s *PostgresStore) ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM accounts WHERE id > $1 ORDER BY id LIMIT $2`, after, limit)
	return ids, mapError(err)
}

func (s *PostgresStore) EarningsSummary(ctx context.Context, accountID string) (EarningsSummary, error) {
	var summary EarningsSummary
	err := s.db.GetContext(ctx, &summary, `
		SELECT
			COALESCE(SUM(net_amount) FILTER (WHERE kind IN ('session_earning', 'gift_earning')), 0) AS total_earned,
			COALESCE(SUM(net_amount) FILTER (WHERE kind = 'refund' AND direction = 'debit'), 0) AS total_refunded,
			COALESCE(SUM(net_amount) FILTER (WHERE kind = 'payout_completed'), 0) AS total_paid_out
		FROM ledger_entries
		WHERE account_id = $1 AND status = 'completed'`, accountID)
	return summary, mapError(err)
}

func (s *PostgresStore) GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := s.db.GetContext(ctx, &entry, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &entry, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, accountID string, filter HistoryFilter, after *Cursor, limit int) ([]models.LedgerEntry, error) {
	query, args := buildHistoryQuery(accountID, filter, after, limit)
	var entries []models.LedgerEntry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// buildHistoryQuery assembles a keyset-paginated history query with
// positional parameters only.
func buildHistoryQuery(accountID string, filter HistoryFilter, after *Cursor, limit int) (string, []interface{}) {
	conds := []string{"account_id = $1"}
	args := []interface{}{accountID}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		conds = append(conds, "kind = ANY("+next(pq.Array(kinds))+")")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		conds = append(conds, "status = ANY("+next(pq.Array(statuses))+")")
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= "+next(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at < "+next(filter.To))
	}
	if after != nil {
		ts := next(after.CreatedAt)
		conds = append(conds, fmt.Sprintf("(created_at, id) > (%s, %s)", ts, next(after.ID)))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at, id LIMIT ` + next(limit)
	return query, args
}

func (s *PostgresStore) EntriesByRelated(ctx context.Context, relatedID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE related_entity_id = $1 ORDER BY created_at, id`, relatedID)
	return entries, mapError(err)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &session, nil
}

func (s *PostgresStore) ListActiveSessions(ctx context.Context, limit int) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.SelectContext(ctx, &sessions,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = 'active' ORDER BY started_at LIMIT $1`, limit)
	return sessions, mapError(err)
}

func (s *PostgresStore) GetPayout(ctx context.Context, id string) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	if err := s.db.GetContext(ctx, &payout, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &payout, nil
}

func (s *PostgresStore) GetPayoutByTransferRef(ctx context.Context, ref string) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := s.db.GetContext(ctx, &payout,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE external_transfer_reference = $1`, ref)
	if err != nil {
		return nil, mapError(err)
	}
	return &payout, nil
}

func (s *PostgresStore) ListPayoutsByStatus(ctx context.Context, statuses []models.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	var payouts []models.PayoutRequest
	err := s.db.SelectContext(ctx, &payouts,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE status = ANY($1) ORDER BY created_at LIMIT $2`,
		pq.Array(values), limit)
	return payouts, mapError(err)
}

func (s *PostgresStore) ListPayoutsByAccount(ctx context.Context, accountID string, limit int) ([]models.PayoutRequest, error) {
	var payouts []models.PayoutRequest
	err := s.db.SelectContext(ctx, &payouts,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE provider_account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit)
	return payouts, mapError(err)
}

func (s *PostgresStore) ListPayoutCandidates(ctx context.Context, minAvailable int64, runKey string, day time.Time, limit int) ([]models.Account, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	var accounts []models.Account
	err := s.db.SelectContext(ctx, &accounts, `
		SELECT `+accountColumns+` FROM accounts a
		WHERE a.status = 'active'
		  AND a.payout_destination <> ''
		  AND a.balance - a.reserved >= $1
		  AND NOT EXISTS (
			SELECT 1 FROM payout_requests p
			WHERE p.provider_account_id = a.id
			  AND (p.run_key = $2 OR (p.status = 'completed' AND p.completed_at >= $3 AND p.completed_at < $4))
		  )
		ORDER BY a.id
		LIMIT $5`, minAvailable, runKey, dayStart, dayStart.Add(24*time.Hour), limit)
	return accounts, mapError(err)
}

func (s *PostgresStore) GetDeposit(ctx context.Context, gatewayRef string) (*models.Deposit, error) {
	var deposit models.Deposit
	if err := s.db.GetContext(ctx, &deposit, `SELECT `+depositColumns+` FROM deposits WHERE gateway_ref = $1`, gatewayRef); err != nil {
		return nil, mapError(err)
	}
	return &deposit, nil
}

func (s *PostgresStore) ListGifts(ctx context.Context, activeOnly bool) ([]models.VirtualGift, error) {
	query := `SELECT ` + giftColumns + ` FROM virtual_gifts`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY price, name`
	var gifts []models.VirtualGift
	err := s.db.SelectContext(ctx, &gifts, query)
	return gifts, mapError(err)
}

func (s *PostgresStore) GetGift(ctx context.Context, id string) (*models.VirtualGift, error) {
	var gift models.VirtualGift
	if err := s.db.GetContext(ctx, &gift, `SELECT `+giftColumns+` FROM virtual_gifts WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &gift, nil
}

func (s *PostgresStore) CreateGift(ctx context.Context, gift *models.VirtualGift) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO virtual_gifts (`+giftColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		gift.ID, gift.Name, gift.Price, gift.Active, gift.CreatedAt)
	return mapError(err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	sorted := uniqueSorted(ids)
	accounts := make(map[string]*models.Account, len(sorted))
	// Lock accounts in consistent order to prevent deadlocks
	for _, id := range sorted {
		var account models.Account
		err := t.tx.GetContext(ctx, &account,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return nil, fmt.Errorf("lock account %s: %w", id, mapError(err))
		}
		accounts[id] = &account
	}
	return accounts, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, a *models.Account) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Balance, a.Reserved, a.Version, a.Status, a.PayoutDestination,
		a.ChatRate, a.CallRate, a.VideoRate, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return false, mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	now := time.Now().UTC()
	result, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, reserved = $2, status = $3, payout_destination = $4,
			chat_rate = $5, call_rate = $6, video_rate = $7,
			version = version + 1, updated_at = $8
		WHERE id = $9 AND version = $10`,
		a.Balance, a.Reserved, a.Status, a.PayoutDestination,
		a.ChatRate, a.CallRate, a.VideoRate, now, a.ID, a.Version)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: account %s", ErrConcurrentModification, a.ID)
	}
	a.Version++
	a.UpdatedAt = now
	return nil
}

func (t *pgTx) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.AccountID, e.CounterpartyAccountID, e.Kind, e.Direction, e.Category,
		e.GrossAmount, e.PlatformFee, e.NetAmount, e.RelatedEntityID, e.OriginalEntryID,
		e.Status, e.ExternalReference, e.Memo, e.CreatedAt, e.CompletedAt)
	return mapError(err)
}

func (t *pgTx) GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := t.tx.GetContext(ctx, &entry, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &entry, nil
}

func (t *pgTx) EntriesByRelated(ctx context.Context, relatedID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := t.tx.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE related_entity_id = $1 ORDER BY created_at, id`, relatedID)
	return entries, mapError(err)
}

func (t *pgTx) SumRefunded(ctx context.Context, originalEntryID string) (int64, error) {
	var total int64
	err := t.tx.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(gross_amount), 0) FROM ledger_entries
		WHERE original_entry_id = $1 AND kind = 'refund' AND direction = 'credit' AND status = 'completed'`,
		originalEntryID)
	return total, mapError(err)
}

func (t *pgTx) SumCompleted(ctx context.Context, accountID string) (int64, int64, error) {
	var sums struct {
		Credits int64 `db:"credits"`
		Debits  int64 `db:"debits"`
	}
	err := t.tx.GetContext(ctx, &sums, `
		SELECT
			COALESCE(SUM(net_amount) FILTER (WHERE direction = 'credit'), 0) AS credits,
			COALESCE(SUM(net_amount) FILTER (WHERE direction = 'debit'), 0) AS debits
		FROM ledger_entries
		WHERE account_id = $1 AND status = 'completed'`, accountID)
	return sums.Credits, sums.Debits, mapError(err)
}

func (t *pgTx) LockSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := t.tx.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &session, nil
}

func (t *pgTx) InsertSession(ctx context.Context, s *models.Session) error {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING`,
		s.ID, s.ClientAccountID, s.ProviderAccountID, s.SessionType, s.RatePerMinute, s.Promotional,
		s.Status, s.StartedAt, s.EndedAt, s.DurationMinutes, s.TotalCharge, s.ForceEnded, s.UpdatedAt)
	return insertResult(result, err)
}

func (t *pgTx) UpdateSession(ctx context.Context, s *models.Session) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE sessions
		SET status = $1, ended_at = $2, duration_minutes = $3, total_charge = $4, force_ended = $5, updated_at = $6
		WHERE id = $7`,
		s.Status, s.EndedAt, s.DurationMinutes, s.TotalCharge, s.ForceEnded, s.UpdatedAt, s.ID)
	return mapError(err)
}

func (t *pgTx) InsertPayout(ctx context.Context, p *models.PayoutRequest) error {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO payout_requests (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING`,
		p.ID, p.ProviderAccountID, p.Amount, p.Status, p.RunKey, p.Destination,
		p.ExternalTransferReference, p.FailureReason, p.Attempts, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	return insertResult(result, err)
}

func (t *pgTx) LockPayout(ctx context.Context, id string) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := t.tx.GetContext(ctx, &payout, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &payout, nil
}

func (t *pgTx) UpdatePayout(ctx context.Context, p *models.PayoutRequest) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE payout_requests
		SET status = $1, external_transfer_reference = $2, failure_reason = $3, attempts = $4,
			updated_at = $5, completed_at = $6
		WHERE id = $7`,
		p.Status, p.ExternalTransferReference, p.FailureReason, p.Attempts, p.UpdatedAt, p.CompletedAt, p.ID)
	return mapError(err)
}

func (t *pgTx) InsertDeposit(ctx context.Context, d *models.Deposit) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO deposits (`+depositColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.AccountID, d.Amount, d.GatewayRef, d.Status, d.EntryID, d.CreatedAt, d.CompletedAt)
	return mapError(err)
}

func (t *pgTx) LockDeposit(ctx context.Context, gatewayRef string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := t.tx.GetContext(ctx, &deposit, `SELECT `+depositColumns+` FROM deposits WHERE gateway_ref = $1 FOR UPDATE`, gatewayRef)
	if err != nil {
		return nil, mapError(err)
	}
	return &deposit, nil
}

func (t *pgTx) UpdateDeposit(ctx context.Context, d *models.Deposit) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE deposits SET status = $1, entry_id = $2, completed_at = $3 WHERE id = $4`,
		d.Status, d.EntryID, d.CompletedAt, d.ID)
	return mapError(err)
}

func (t *pgTx) GetIdempotency(ctx context.Context, accountID, scope, key string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := t.tx.GetContext(ctx, &record, `
		SELECT key, account_id, scope, request_hash, entry_id, created_at FROM idempotency_keys
		WHERE account_id = $1 AND scope = $2 AND key = $3 FOR UPDATE`, accountID, scope, key)
	if err != nil {
		return nil, mapError(err)
	}
	return &record, nil
}

func (t *pgTx) InsertIdempotency(ctx context.Context, r *models.IdempotencyRecord) error {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, account_id, scope, request_hash, entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		r.Key, r.AccountID, r.Scope, r.RequestHash, r.EntryID, r.CreatedAt)
	return insertResult(result, err)
}

// insertResult turns a DO NOTHING insert that affected no rows into
// ErrConflict while keeping the transaction usable.
func insertResult(result sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
