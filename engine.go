package calgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/guilherme-santos/calgateway/calendar"
	"github.com/guilherme-santos/calgateway/calendar/google"
	"github.com/guilherme-santos/calgateway/calendar/microsoft"
	"github.com/guilherme-santos/calgateway/internal"
	"github.com/guilherme-santos/calgateway/internal/config"
	"github.com/guilherme-santos/calgateway/internal/orchestrator"
	"github.com/guilherme-santos/calgateway/internal/redislock"
	"github.com/guilherme-santos/calgateway/internal/retry"
	"github.com/guilherme-santos/calgateway/internal/sqlstore"
	"github.com/guilherme-santos/calgateway/internal/token"
)

type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// HTTPClient is used for provider API calls and token refreshes.
	HTTPClient *http.Client
	// Redis is used for the refresh lock when lock.backend is redis. When
	// nil, a client is created from the redis.* settings.
	Redis redis.UniversalClient
	Now   internal.Clock
}

// Engine is the caller facing API. The embedded orchestrator provides
// ListEvents, FindFreeSlots, CreateEvent, UpdateEvent, RescheduleEvent and
// CancelEvent.
type Engine struct {
	*orchestrator.Orchestrator

	storage *sqlstore.Storage
	creds   *token.Coordinator
	logger  *slog.Logger
	closers []func() error
}

// Open connects to the configured storage and wires gateways, retries and
// token refresh around it. The storage driver must be registered by the caller.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("calgateway: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := internal.LoggerOrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	storage, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, key)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		storage: storage,
		logger:  logger,
		closers: []func() error{storage.Close},
	}

	locker, err := e.locker(ctx, cfg, opts.Redis)
	if err != nil {
		e.Close()
		return nil, err
	}

	refreshers := map[internal.Provider]token.Refresher{}
	if cfg.Google.Enabled() {
		r := token.NewGoogleRefresher(cfg.Google.ClientID, cfg.Google.ClientSecret)
		r.HTTPClient = opts.HTTPClient
		if cfg.Google.TokenURL != "" {
			r.Config.Endpoint.TokenURL = cfg.Google.TokenURL
		}
		refreshers[internal.ProviderGoogle] = r
	}
	if cfg.Microsoft.Enabled() {
		r := token.NewMicrosoftRefresher(cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret, cfg.Microsoft.Tenant)
		r.HTTPClient = opts.HTTPClient
		if cfg.Microsoft.TokenURL != "" {
			r.Config.Endpoint.TokenURL = cfg.Microsoft.TokenURL
		}
		refreshers[internal.ProviderMicrosoft] = r
	}
	e.creds = token.NewCoordinator(storage, refreshers,
		token.WithLocker(locker),
		token.WithMargin(cfg.Token.RefreshMargin),
		token.WithClock(now),
		token.WithLogger(logger),
	)

	policy := cfg.RetryPolicy()
	mux := calendar.NewMux()
	mux.Register(internal.ProviderGoogle, retry.New(google.NewClient(google.Config{
		Endpoint:          cfg.Google.Endpoint,
		HTTPClient:        opts.HTTPClient,
		DefaultCalendarID: cfg.Calendar.DefaultID,
		Logger:            logger.With("provider", "google"),
		Now:               now,
	}), policy, retry.WithLogger(logger)))
	mux.Register(internal.ProviderMicrosoft, retry.New(microsoft.NewClient(microsoft.Config{
		BaseURL:    cfg.Microsoft.Endpoint,
		HTTPClient: opts.HTTPClient,
		Logger:     logger.With("provider", "microsoft"),
		Now:        now,
	}), policy, retry.WithLogger(logger)))

	workingHours, err := cfg.Policy()
	if err != nil {
		e.Close()
		return nil, err
	}
	o := orchestrator.New(mux, e.creds, storage, logger)
	o.SetClock(now)
	o.DefaultCalendarID = cfg.Calendar.DefaultID
	o.ListLimit = cfg.Calendar.ListLimit
	o.Policy = workingHours
	e.Orchestrator = o

	logger.Debug("calgateway: engine ready",
		"database", cfg.Database.Driver, "lock", cfg.Lock.Backend, "refreshers", len(refreshers))
	return e, nil
}

func (e *Engine) locker(ctx context.Context, cfg *config.Config, client redis.UniversalClient) (token.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return token.NewLocalLocker(), nil
	}
	if client == nil {
		c := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		e.closers = append(e.closers, c.Close)
		client = c
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("calgateway: connecting to redis: %w", err)
	}
	return redislock.New(client, cfg.Lock.TTL, e.logger), nil
}

// ImportToken stores tok as the credential of the (user, provider) pair,
// replacing any previous one.
func (e *Engine) ImportToken(ctx context.Context, userID, provider string, tok *oauth2.Token) error {
	p, err := internal.ParseProvider(provider)
	if err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return internal.Validationf("token", "user id is required")
	}
	if tok == nil || tok.AccessToken == "" {
		return internal.Validationf("token", "access token is required")
	}
	return e.storage.SaveCredential(ctx, userID, p, &internal.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
}

// AuditRecords returns the latest records of userID, newest first.
func (e *Engine) AuditRecords(ctx context.Context, userID string, limit int) ([]AuditRecord, error) {
	return e.storage.ListAuditRecords(ctx, userID, limit)
}

// Close waits for pending audit writes and releases connections.
func (e *Engine) Close() error {
	if e.Orchestrator != nil {
		e.Wait()
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
