package store

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

CREATE TABLE IF NOT EXISTS tasks (
	id                 TEXT PRIMARY KEY,
	seq                INTEGER NOT NULL UNIQUE,
	title              TEXT NOT NULL CHECK(length(trim(title)) > 0),
	description        TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL CHECK(status IN ('pending', 'in-progress', 'completed')),
	priority           TEXT NOT NULL CHECK(priority IN ('low', 'medium', 'high')),
	deadline           TEXT NOT NULL,
	recurring_pattern  TEXT NOT NULL DEFAULT 'none'
		CHECK(recurring_pattern IN ('none', 'daily', 'weekly', 'custom')),
	recurring_next_due TEXT,
	subtasks           TEXT NOT NULL DEFAULT '[]',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks(deadline);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS successors (
	source_id       TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	source_deadline TEXT NOT NULL,
	successor_id    TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	PRIMARY KEY (source_id, source_deadline)
);

CREATE INDEX IF NOT EXISTS idx_successors_successor_id ON successors(successor_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
