package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/guilherme-santos/calgateway/internal"
)

type memStore struct {
	mu    sync.Mutex
	creds map[string]internal.Credential
	saves int
}

func newMemStore() *memStore {
	return &memStore{creds: map[string]internal.Credential{}}
}

func (s *memStore) key(userID string, p internal.Provider) string {
	return internal.Account{UserID: userID, Provider: p}.ID()
}

func (s *memStore) GetCredential(_ context.Context, userID string, p internal.Provider) (*internal.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[s.key(userID, p)]
	if !ok {
		return nil, internal.ErrCredentialNotFound
	}
	return &c, nil
}

func (s *memStore) SaveCredential(_ context.Context, userID string, p internal.Provider, c *internal.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	s.creds[s.key(userID, p)] = *c
	return nil
}

// tokenServer is a fake OAuth2 token endpoint counting refresh exchanges.
func tokenServer(t *testing.T, status int) (*OAuth2Refresher, *int64) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		// Keep the exchange slow enough for concurrent callers to overlap.
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":"access-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(srv.Close)

	return &OAuth2Refresher{
		Config: &oauth2.Config{
			ClientID: "id",
			Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
		},
		HTTPClient: srv.Client(),
	}, &calls
}

var now = time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

func newCoordinator(store Store, r Refresher) *Coordinator {
	return NewCoordinator(store, map[internal.Provider]Refresher{internal.ProviderGoogle: r},
		WithClock(func() time.Time { return now }))
}

func TestCredentialValidIsNotRefreshed(t *testing.T) {
	store := newMemStore()
	store.creds["google/ana"] = internal.Credential{AccessToken: "a", RefreshToken: "r", Expiry: now.Add(time.Hour)}
	r, calls := tokenServer(t, http.StatusOK)

	cred, err := newCoordinator(store, r).Credential(context.Background(), "ana", internal.ProviderGoogle)
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessToken != "a" || *calls != 0 {
		t.Errorf("got %+v after %d refreshes", cred, *calls)
	}
}

func TestCredentialExpiringIsRefreshedAndPersisted(t *testing.T) {
	store := newMemStore()
	store.creds["google/ana"] = internal.Credential{AccessToken: "a", RefreshToken: "r", Expiry: now.Add(time.Minute)}
	r, calls := tokenServer(t, http.StatusOK)

	cred, err := newCoordinator(store, r).Credential(context.Background(), "ana", internal.ProviderGoogle)
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessToken != "access-1" || cred.RefreshToken != "r" {
		t.Errorf("got %+v", cred)
	}
	if *calls != 1 || store.saves != 1 || store.creds["google/ana"].AccessToken != "access-1" {
		t.Errorf("calls = %d, saves = %d, stored = %+v", *calls, store.saves, store.creds["google/ana"])
	}
}

func TestConcurrentCallersRefreshOnce(t *testing.T) {
	store := newMemStore()
	store.creds["google/ana"] = internal.Credential{AccessToken: "old", RefreshToken: "r", Expiry: now.Add(-time.Minute)}
	r, calls := tokenServer(t, http.StatusOK)
	c := newCoordinator(store, r)

	results := make([]*internal.Credential, 2)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range results {
		i := i
		g.Go(func() error {
			cred, err := c.Credential(ctx, "ana", internal.ProviderGoogle)
			results[i] = cred
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if *calls != 1 {
		t.Errorf("refresh calls = %d, want 1", *calls)
	}
	for i, cred := range results {
		if cred.AccessToken != "access-1" {
			t.Errorf("caller %d got %q", i, cred.AccessToken)
		}
	}
}

func TestRefreshFailureIsAuthentication(t *testing.T) {
	store := newMemStore()
	store.creds["google/ana"] = internal.Credential{AccessToken: "old", RefreshToken: "r", Expiry: now.Add(-time.Minute)}
	r, _ := tokenServer(t, http.StatusBadRequest)

	_, err := newCoordinator(store, r).Credential(context.Background(), "ana", internal.ProviderGoogle)
	if internal.KindOf(err) != internal.KindAuthentication {
		t.Fatalf("got %v, want authentication", err)
	}
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		t.Error("provider cause must be kept")
	}
	if store.saves != 0 {
		t.Error("a failed refresh must not be persisted")
	}
}

func TestMissingCredentialOrRefreshToken(t *testing.T) {
	store := newMemStore()
	store.creds["google/bob"] = internal.Credential{AccessToken: "old", Expiry: now.Add(-time.Minute)}
	r, calls := tokenServer(t, http.StatusOK)
	c := newCoordinator(store, r)

	for _, user := range []string{"nobody", "bob"} {
		if _, err := c.Credential(context.Background(), user, internal.ProviderGoogle); internal.KindOf(err) != internal.KindAuthentication {
			t.Errorf("%s: got %v, want authentication", user, err)
		}
	}
	if *calls != 0 {
		t.Errorf("refresh calls = %d", *calls)
	}
}

func TestForceRefresh(t *testing.T) {
	store := newMemStore()
	stale := internal.Credential{AccessToken: "revoked", RefreshToken: "r", Expiry: now.Add(time.Hour)}
	store.creds["google/ana"] = stale
	r, calls := tokenServer(t, http.StatusOK)
	c := newCoordinator(store, r)

	cred, err := c.ForceRefresh(context.Background(), "ana", internal.ProviderGoogle, &stale)
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessToken != "access-1" {
		t.Errorf("got %+v", cred)
	}

	// A second caller holding the same stale token reuses the replacement.
	cred, err = c.ForceRefresh(context.Background(), "ana", internal.ProviderGoogle, &stale)
	if err != nil || cred.AccessToken != "access-1" || *calls != 1 {
		t.Errorf("got %+v, %v after %d calls", cred, err, *calls)
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
	if _, err := l.Lock(context.Background(), "other"); err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}

	unlock()
	unlock()
	unlock2, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	unlock2()
}
