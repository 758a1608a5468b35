// Package sqlstore keeps credentials and audit records in a SQL database.
// Both sqlite3 and postgres are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/guilherme-santos/calgateway/internal"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const defaultAuditLimit = 100

type Storage struct {
	db     *sqlx.DB
	sealer sealer
	now    internal.Clock
}

// NewStorage wraps db and runs migrations. When key is set, tokens are
// encrypted with it before being written.
func NewStorage(ctx context.Context, db *sql.DB, driverName string, key []byte) (*Storage, error) {
	switch driverName {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driverName)
	}
	sl, err := newSealer(key)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		db:     sqlx.NewDb(db, driverName),
		sealer: sl,
		now:    time.Now,
	}
	if err := s.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return s, nil
}

// Open connects to dsn using driverName. The driver must already be
// registered by the caller.
func Open(ctx context.Context, driverName, dsn string, key []byte) (*Storage, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if driverName == DriverSQLite {
		// sqlite allows one writer; a single connection keeps :memory: shared too.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: %w", err)
	}
	s, err := NewStorage(ctx, db, driverName, key)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s Storage) Close() error {
	return s.db.Close()
}

func (s Storage) GetCredential(ctx context.Context, userID string, p internal.Provider) (*internal.Credential, error) {
	acc := internal.Account{UserID: userID, Provider: p}

	var row credential
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT user_id, provider, access_token, refresh_token, expiry, updated_at
		FROM credentials
		WHERE user_id = ? AND provider = ?
	`), acc.UserID, acc.Provider.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading credential of %s: %w", acc, err)
	}

	cred := &internal.Credential{}
	if cred.AccessToken, err = s.sealer.open(row.AccessToken); err != nil {
		return nil, err
	}
	if cred.RefreshToken, err = s.sealer.open(row.RefreshToken); err != nil {
		return nil, err
	}
	if row.Expiry.Valid {
		cred.Expiry = row.Expiry.Time.UTC()
	}
	return cred, nil
}

func (s Storage) SaveCredential(ctx context.Context, userID string, p internal.Provider, cred *internal.Credential) error {
	acc := internal.Account{UserID: userID, Provider: p}
	if cred == nil {
		return errors.New("sqlstore: nil credential")
	}
	access, err := s.sealer.seal(cred.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := s.sealer.seal(cred.RefreshToken)
	if err != nil {
		return err
	}
	expiry := nullTime(&cred.Expiry)
	updatedAt := s.now().UTC()

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO credentials (user_id, provider, access_token, refresh_token, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider) DO UPDATE
			SET access_token = ?, refresh_token = ?, expiry = ?, updated_at = ?
	`), acc.UserID, acc.Provider.String(), access, refresh, expiry, updatedAt,
		access, refresh, expiry, updatedAt)
	if err != nil {
		return fmt.Errorf("sqlstore: saving credential of %s: %w", acc, err)
	}
	return nil
}

func (s Storage) AppendAuditRecord(ctx context.Context, rec internal.AuditRecord) error {
	row := newAuditRecord(rec)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_records
			(id, user_id, provider, action, event_id, event_title, start_at, end_at, success, error, created_at)
		VALUES
			(:id, :user_id, :provider, :action, :event_id, :event_title, :start_at, :end_at, :success, :error, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("sqlstore: appending audit record: %w", err)
	}
	return nil
}

// ListAuditRecords returns the newest records of userID first.
func (s Storage) ListAuditRecords(ctx context.Context, userID string, limit int) ([]internal.AuditRecord, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	var rows []auditRecord
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, user_id, provider, action, event_id, event_title, start_at, end_at, success, error, created_at
		FROM audit_records
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing audit records: %w", err)
	}

	recs := make([]internal.AuditRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.Convert())
	}
	return recs, nil
}
