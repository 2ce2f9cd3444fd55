package database

// Schema is applied at startup. Amounts are BIGINT minor units.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                 TEXT PRIMARY KEY,
	balance            BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	reserved           BIGINT NOT NULL DEFAULT 0 CHECK (reserved >= 0),
	version            INTEGER NOT NULL DEFAULT 0,
	status             TEXT NOT NULL DEFAULT 'active',
	payout_destination TEXT NOT NULL DEFAULT '',
	chat_rate          BIGINT NOT NULL DEFAULT 0,
	call_rate          BIGINT NOT NULL DEFAULT 0,
	video_rate         BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id                      TEXT PRIMARY KEY,
	account_id              TEXT NOT NULL REFERENCES accounts(id),
	counterparty_account_id TEXT,
	kind                    TEXT NOT NULL,
	direction               TEXT NOT NULL,
	category                TEXT NOT NULL DEFAULT '',
	gross_amount            BIGINT NOT NULL,
	platform_fee            BIGINT NOT NULL,
	net_amount              BIGINT NOT NULL,
	related_entity_id       TEXT NOT NULL DEFAULT '',
	original_entry_id       TEXT REFERENCES ledger_entries(id),
	status                  TEXT NOT NULL,
	external_reference      TEXT,
	memo                    TEXT NOT NULL DEFAULT '',
	created_at              TIMESTAMPTZ NOT NULL,
	completed_at            TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created ON ledger_entries (account_id, created_at, id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_status ON ledger_entries (status);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_original ON ledger_entries (original_entry_id) WHERE original_entry_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_ledger_entries_related ON ledger_entries (related_entity_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_entries_deposit_ref ON ledger_entries (external_reference) WHERE kind = 'deposit' AND status = 'completed';

CREATE TABLE IF NOT EXISTS sessions (
	id                  TEXT PRIMARY KEY,
	client_account_id   TEXT NOT NULL REFERENCES accounts(id),
	provider_account_id TEXT NOT NULL REFERENCES accounts(id),
	session_type        TEXT NOT NULL,
	rate_per_minute     BIGINT NOT NULL CHECK (rate_per_minute > 0),
	promotional         BOOLEAN NOT NULL DEFAULT false,
	status              TEXT NOT NULL,
	started_at          TIMESTAMPTZ NOT NULL,
	ended_at            TIMESTAMPTZ,
	duration_minutes    BIGINT NOT NULL DEFAULT 0,
	total_charge        BIGINT NOT NULL DEFAULT 0,
	force_ended         BOOLEAN NOT NULL DEFAULT false,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_active_pair ON sessions (client_account_id, provider_account_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status);

CREATE TABLE IF NOT EXISTS payout_requests (
	id                          TEXT PRIMARY KEY,
	provider_account_id         TEXT NOT NULL REFERENCES accounts(id),
	amount                      BIGINT NOT NULL CHECK (amount > 0),
	status                      TEXT NOT NULL,
	run_key                     TEXT,
	destination                 TEXT NOT NULL,
	external_transfer_reference TEXT,
	failure_reason              TEXT,
	attempts                    INTEGER NOT NULL DEFAULT 0,
	created_at                  TIMESTAMPTZ NOT NULL,
	updated_at                  TIMESTAMPTZ NOT NULL,
	completed_at                TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_payout_requests_run ON payout_requests (provider_account_id, run_key) WHERE run_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_payout_requests_status ON payout_requests (status);
CREATE UNIQUE INDEX IF NOT EXISTS uq_payout_requests_transfer ON payout_requests (external_transfer_reference) WHERE external_transfer_reference IS NOT NULL;

CREATE TABLE IF NOT EXISTS deposits (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	amount       BIGINT NOT NULL CHECK (amount > 0),
	gateway_ref  TEXT NOT NULL UNIQUE,
	status       TEXT NOT NULL,
	entry_id     TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS virtual_gifts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	price      BIGINT NOT NULL CHECK (price > 0),
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key          TEXT NOT NULL,
	account_id   TEXT NOT NULL,
	scope        TEXT NOT NULL,
	request_hash TEXT NOT NULL,
	entry_id     TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_id, scope, key)
);
`
