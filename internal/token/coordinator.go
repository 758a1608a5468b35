// Package token makes sure every gateway call starts with a usable access
// token, refreshing and persisting it when it is about to expire.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guilherme-santos/calgateway/internal"
)

const DefaultMargin = 5 * time.Minute

// Store is the persistence collaborator owning credentials between calls.
type Store interface {
	GetCredential(_ context.Context, userID string, _ internal.Provider) (*internal.Credential, error)
	SaveCredential(_ context.Context, userID string, _ internal.Provider, _ *internal.Credential) error
}

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	Refresh(context.Context, *internal.Credential) (*internal.Credential, error)
}

// Locker serializes refreshes of the same (user, provider) pair.
type Locker interface {
	Lock(_ context.Context, key string) (unlock func(), _ error)
}

type Option func(*Coordinator)

func WithLocker(l Locker) Option {
	return func(c *Coordinator) {
		c.locker = l
	}
}

// WithMargin sets how long before expiry a credential is already refreshed.
func WithMargin(d time.Duration) Option {
	return func(c *Coordinator) {
		c.margin = d
	}
}

func WithClock(now internal.Clock) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = internal.LoggerOrDiscard(l)
	}
}

type Coordinator struct {
	store      Store
	refreshers map[internal.Provider]Refresher
	locker     Locker
	margin     time.Duration
	now        internal.Clock
	logger     *slog.Logger
}

func NewCoordinator(store Store, refreshers map[internal.Provider]Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		refreshers: refreshers,
		locker:     NewLocalLocker(),
		margin:     DefaultMargin,
		now:        time.Now,
		logger:     internal.LoggerOrDiscard(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credential returns a credential that is valid for at least the margin,
// refreshing and persisting it first when needed.
func (c *Coordinator) Credential(ctx context.Context, userID string, p internal.Provider) (*internal.Credential, error) {
	acc := internal.Account{UserID: userID, Provider: p}

	cred, err := c.load(ctx, acc)
	if err != nil {
		return nil, err
	}
	if c.usable(cred) {
		return cred, nil
	}
	return c.refresh(ctx, acc, c.usable)
}

// ForceRefresh replaces a credential the provider rejected. When another
// caller already replaced it, the stored one is returned without a new
// exchange.
func (c *Coordinator) ForceRefresh(ctx context.Context, userID string, p internal.Provider, stale *internal.Credential) (*internal.Credential, error) {
	acc := internal.Account{UserID: userID, Provider: p}
	return c.refresh(ctx, acc, func(cur *internal.Credential) bool {
		return stale != nil && cur.AccessToken != stale.AccessToken && c.usable(cur)
	})
}

func (c *Coordinator) usable(cred *internal.Credential) bool {
	return cred.State(c.now(), c.margin) == internal.CredentialValid
}

func (c *Coordinator) load(ctx context.Context, acc internal.Account) (*internal.Credential, error) {
	cred, err := c.store.GetCredential(ctx, acc.UserID, acc.Provider)
	if errors.Is(err, internal.ErrCredentialNotFound) {
		return nil, internal.Authenticationf("token", err, "no credential for %s", acc)
	}
	if err != nil {
		return nil, fmt.Errorf("token: loading credential of %s: %w", acc, err)
	}
	return cred, nil
}

// refresh runs under the pair lock and re-reads the stored credential, so
// concurrent callers wait for the first refresh instead of repeating it.
func (c *Coordinator) refresh(ctx context.Context, acc internal.Account, fresh func(*internal.Credential) bool) (*internal.Credential, error) {
	unlock, err := c.locker.Lock(ctx, acc.ID())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("token: locking %s: %w", acc, err)
	}
	defer unlock()

	cur, err := c.load(ctx, acc)
	if err != nil {
		return nil, err
	}
	if fresh(cur) {
		return cur, nil
	}

	state := cur.State(c.now(), c.margin)
	logger := c.logger.With(internal.AccountAttrs(acc)...)
	logger.Debug("token: refreshing credential", "state", state)

	if cur.RefreshToken == "" {
		return nil, c.failed(logger, acc, nil, "no refresh token")
	}
	r, ok := c.refreshers[acc.Provider]
	if !ok {
		return nil, c.failed(logger, acc, nil, "no refresher configured")
	}

	next, err := r.Refresh(ctx, cur)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, c.failed(logger, acc, err, "refresh exchange failed")
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if err := c.store.SaveCredential(ctx, acc.UserID, acc.Provider, next); err != nil {
		return nil, fmt.Errorf("token: saving credential of %s: %w", acc, err)
	}
	logger.Info("token: credential refreshed", "expiry", next.Expiry)
	return next, nil
}

func (c *Coordinator) failed(logger *slog.Logger, acc internal.Account, cause error, reason string) error {
	logger.Warn("token: "+reason, "state", internal.CredentialRefreshFailed, "error", cause)
	return internal.Authenticationf("token", cause, "credential of %s is %s: %s", acc, internal.CredentialRefreshFailed, reason)
}
