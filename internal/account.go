package internal

import "time"

// Account identifies the owner of a credential, one per (user, provider) pair.
type Account struct {
	UserID   string
	Provider Provider
}

func (a Account) ID() string {
	return a.Provider.String() + "/" + a.UserID
}

func (a Account) String() string {
	return a.ID()
}

type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

type CredentialState string

const (
	CredentialValid         CredentialState = "valid"
	CredentialExpiring      CredentialState = "expiring"
	CredentialExpired       CredentialState = "expired"
	CredentialRefreshFailed CredentialState = "refresh-failed"
)

// State reports whether the credential can be used at now. A zero expiry
// means the provider did not say, the token is treated as valid.
func (c *Credential) State(now time.Time, margin time.Duration) CredentialState {
	if c == nil || c.AccessToken == "" {
		return CredentialExpired
	}
	if c.Expiry.IsZero() {
		return CredentialValid
	}
	if !now.Before(c.Expiry) {
		return CredentialExpired
	}
	if !now.Before(c.Expiry.Add(-margin)) {
		return CredentialExpiring
	}
	return CredentialValid
}

type Action string

const (
	ActionList         Action = "list"
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionAvailability Action = "availability"
)

// AuditRecord is written once per orchestrated call and never modified.
type AuditRecord struct {
	ID         string
	UserID     string
	Provider   Provider
	Action     Action
	EventID    string
	EventTitle string
	Start      *time.Time
	End        *time.Time
	Success    bool
	Error      string
	CreatedAt  time.Time
}
