package token

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/guilherme-santos/calgateway/internal"
)

// OAuth2Refresher refreshes through the token endpoint of an oauth2.Config.
type OAuth2Refresher struct {
	Config     *oauth2.Config
	HTTPClient *http.Client
}

func NewGoogleRefresher(clientID, clientSecret string) *OAuth2Refresher {
	return &OAuth2Refresher{Config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
	}}
}

func NewMicrosoftRefresher(clientID, clientSecret, tenant string) *OAuth2Refresher {
	return &OAuth2Refresher{Config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
		Scopes:       []string{"offline_access", "https://graph.microsoft.com/Calendars.ReadWrite"},
	}}
}

func (r *OAuth2Refresher) Refresh(ctx context.Context, cred *internal.Credential) (*internal.Credential, error) {
	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}
	// Without an access token the source goes straight to the refresh grant.
	tok, err := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, err
	}
	return &internal.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}
