package postgres

import (
	"context"
	"database/sql"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/bonsaihq/bonsai/internal/profile"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database using the given profile.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Open the PostgreSQL connection
	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database with dsn: %s", profile.DSN)
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema when it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	return nil
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS recurrence_rule (
	id SERIAL PRIMARY KEY,
	creator_id INTEGER NOT NULL,
	frequency TEXT NOT NULL,
	interval INTEGER NOT NULL DEFAULT 1,
	end_type TEXT NOT NULL DEFAULT 'NEVER',
	end_count INTEGER,
	end_ts BIGINT,
	created_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS task (
	id SERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	creator_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'PENDING',
	priority INTEGER NOT NULL DEFAULT 3,
	due_ts BIGINT,
	recurrence_rule_id INTEGER,
	parent_task_id INTEGER,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL,
	completed_ts BIGINT
);
CREATE INDEX IF NOT EXISTS idx_task_creator_id ON task (creator_id);
CREATE INDEX IF NOT EXISTS idx_task_recurrence_rule_id ON task (recurrence_rule_id);

CREATE TABLE IF NOT EXISTS conversation (
	id SERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	creator_id INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_creator_id ON conversation (creator_id);

CREATE TABLE IF NOT EXISTS message (
	id SERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	conversation_id INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	generated_command TEXT NOT NULL DEFAULT '',
	confidence REAL,
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_message_conversation_id ON message (conversation_id);

CREATE TABLE IF NOT EXISTS reminder (
	id SERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	task_id INTEGER NOT NULL,
	creator_id INTEGER NOT NULL,
	remind_ts BIGINT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'PENDING',
	delivered_ts BIGINT,
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminder_task_id ON reminder (task_id);
CREATE INDEX IF NOT EXISTS idx_reminder_status_remind_ts ON reminder (status, remind_ts);

CREATE TABLE IF NOT EXISTS task_event (
	id SERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	task_id INTEGER NOT NULL,
	creator_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	published BOOLEAN NOT NULL DEFAULT FALSE,
	published_ts BIGINT,
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_event_published ON task_event (published, created_ts);
`
