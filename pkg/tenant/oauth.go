package tenant

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultScope is requested when no scopes are given.
const DefaultScope = "user_default"

// ClientCredentials returns the OAuth2 client-credentials configuration for a
// tenant.
func ClientCredentials(tenantURI, clientID, clientSecret string, scopes ...string) *clientcredentials.Config {
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	return &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     strings.TrimRight(tenantURI, "/") + "/oauth/token",
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

// FetchToken requests an access token with the client-credentials grant.
// hc may be nil.
func FetchToken(ctx context.Context, hc *http.Client, tenantURI, clientID, clientSecret string) (*oauth2.Token, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("client id and client secret are required")
	}
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	tok, err := ClientCredentials(tenantURI, clientID, clientSecret).Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting oauth token: %w", err)
	}
	return tok, nil
}
