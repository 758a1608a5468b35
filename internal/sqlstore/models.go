package sqlstore

import (
	"database/sql"
	"time"

	"github.com/guilherme-santos/calgateway/internal"
)

type credential struct {
	UserID       string       `db:"user_id"`
	Provider     string       `db:"provider"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	Expiry       sql.NullTime `db:"expiry"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

type auditRecord struct {
	ID         string       `db:"id"`
	UserID     string       `db:"user_id"`
	Provider   string       `db:"provider"`
	Action     string       `db:"action"`
	EventID    string       `db:"event_id"`
	EventTitle string       `db:"event_title"`
	StartAt    sql.NullTime `db:"start_at"`
	EndAt      sql.NullTime `db:"end_at"`
	Success    bool         `db:"success"`
	Error      string       `db:"error"`
	CreatedAt  time.Time    `db:"created_at"`
}

func newAuditRecord(r internal.AuditRecord) auditRecord {
	return auditRecord{
		ID:         r.ID,
		UserID:     r.UserID,
		Provider:   r.Provider.String(),
		Action:     string(r.Action),
		EventID:    r.EventID,
		EventTitle: r.EventTitle,
		StartAt:    nullTime(r.Start),
		EndAt:      nullTime(r.End),
		Success:    r.Success,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (r auditRecord) Convert() internal.AuditRecord {
	// Records of rejected providers are stored as "unknown".
	p, _ := internal.ParseProvider(r.Provider)
	return internal.AuditRecord{
		ID:         r.ID,
		UserID:     r.UserID,
		Provider:   p,
		Action:     internal.Action(r.Action),
		EventID:    r.EventID,
		EventTitle: r.EventTitle,
		Start:      timePtr(r.StartAt),
		End:        timePtr(r.EndAt),
		Success:    r.Success,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
