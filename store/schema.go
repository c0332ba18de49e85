package store

// Schema is applied on every open; all statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS operations (
	hash             TEXT PRIMARY KEY,
	bank             TEXT NOT NULL,
	op_date          TEXT,
	op_time          TEXT,
	op_datetime_text TEXT NOT NULL DEFAULT '',
	op_text          TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	amount           TEXT NOT NULL,
	rrn              TEXT NOT NULL DEFAULT '',
	details          TEXT NOT NULL DEFAULT '{}',
	inserted_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_operations_bank_date ON operations(bank, op_date);
CREATE INDEX IF NOT EXISTS idx_operations_rrn ON operations(rrn) WHERE rrn != '';
`
