package spotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// expiryBuffer refreshes the token this long before Spotify would reject it.
const expiryBuffer = time.Minute

// TokenCache holds the client-credentials token used for anonymous API
// calls. It implements oauth2.TokenSource and is safe for concurrent use.
type TokenCache struct {
	mu    sync.Mutex
	fetch func(ctx context.Context) (*oauth2.Token, error)
	token *oauth2.Token
	now   func() time.Time
}

// NewTokenCache wraps fetch, which must return a fresh token on every call.
func NewTokenCache(fetch func(ctx context.Context) (*oauth2.Token, error)) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

// NewClientCredentialsCache fetches tokens with the client-credentials grant.
func NewClientCredentialsCache(cfg Config) *TokenCache {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return NewTokenCache(cc.Token)
}

// TokenContext returns the cached token, fetching a new one when it is
// missing or about to expire.
func (c *TokenCache) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.now().Add(expiryBuffer).Before(c.token.Expiry) {
		return c.token, nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get client access token: %w", err)
	}
	c.token = tok
	return tok, nil
}

// Token satisfies oauth2.TokenSource.
func (c *TokenCache) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.TokenContext(ctx)
}

// Invalidate drops the cached token so the next call fetches a new one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}
