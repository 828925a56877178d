package cache

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	id          TEXT PRIMARY KEY,
	account     TEXT NOT NULL,
	folder      TEXT NOT NULL,
	message_key TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	recipients  TEXT NOT NULL DEFAULT '[]',
	date        DATETIME NOT NULL,
	snippet     TEXT NOT NULL DEFAULT '',
	unread      INTEGER NOT NULL DEFAULT 0,
	flagged     INTEGER NOT NULL DEFAULT 0,
	fetched_at  DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_summaries_key
	ON summaries(account, folder, message_key);
CREATE INDEX IF NOT EXISTS idx_summaries_account ON summaries(account);
CREATE INDEX IF NOT EXISTS idx_summaries_date ON summaries(date);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
