package playbook

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfroyo/qlikcloud/pkg/inventory"
)

// TokenFunc requests an OAuth access token with client credentials.
type TokenFunc func(ctx context.Context, tenantURI, clientID, clientSecret string) (string, error)

// tokenCache holds one OAuth token per host for the duration of a run.
type tokenCache struct {
	mu     sync.Mutex
	fetch  TokenFunc
	tokens map[string]string
}

func newTokenCache(fetch TokenFunc) *tokenCache {
	return &tokenCache{fetch: fetch, tokens: map[string]string{}}
}

func (c *tokenCache) token(ctx context.Context, host inventory.Host, tenantURI, clientID, clientSecret string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.tokens[host.Name]; ok {
		return tok, nil
	}
	if c.fetch == nil {
		return "", fmt.Errorf("no token source configured for host %s", host.Name)
	}
	tok, err := c.fetch(ctx, tenantURI, clientID, clientSecret)
	if err != nil {
		return "", fmt.Errorf("failed to get token for host %s: %w", host.Name, err)
	}
	c.tokens[host.Name] = tok
	return tok, nil
}

// applyConnectionDefaults fills tenant_uri and api_key from the host vars
// when a task leaves them out.
func applyConnectionDefaults(ctx context.Context, params map[string]any, host inventory.Host, tokens *tokenCache) error {
	if isEmpty(params["tenant_uri"]) && host.Address() != "" {
		params["tenant_uri"] = host.TenantURI()
	}
	if !isEmpty(params["api_key"]) {
		return nil
	}

	if tok, ok := host.Vars[inventory.VarAccessToken].(string); ok && tok != "" {
		params["api_key"] = tok
		return nil
	}

	clientID, _ := host.Vars[inventory.VarClientID].(string)
	clientSecret, _ := host.Vars[inventory.VarClientSecret].(string)
	if clientID == "" || clientSecret == "" {
		return nil
	}
	uri, _ := params["tenant_uri"].(string)
	tok, err := tokens.token(ctx, host, uri, clientID, clientSecret)
	if err != nil {
		return err
	}
	params["api_key"] = tok
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
