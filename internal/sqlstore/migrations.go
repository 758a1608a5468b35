package sqlstore

import "context"

func (s Storage) RunMigrations(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Statements must run unchanged on sqlite3 and postgres.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		user_id VARCHAR(255) NOT NULL,
		provider VARCHAR(32) NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expiry TIMESTAMP NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, provider)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_records (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		provider VARCHAR(32) NOT NULL,
		action VARCHAR(32) NOT NULL,
		event_id VARCHAR(1024) NOT NULL DEFAULT '',
		event_title TEXT NOT NULL DEFAULT '',
		start_at TIMESTAMP NULL,
		end_at TIMESTAMP NULL,
		success BOOLEAN NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_records_user_created ON audit_records (user_id, created_at)`,
}
