package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/cdprunbooker/runbooker/internal/credstore"
)

// TokenProvider yields a validated platform token, running setup or migration if needed.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// Compile-time check to ensure the credential store satisfies TokenProvider
var _ TokenProvider = (*credstore.Store)(nil)

// CredentialTokenSource exposes the credential store as an oauth2.TokenSource
// so platform HTTP clients authenticate with the stored token.
// Resolution is deferred to the first Token call and happens at most once.
type CredentialTokenSource struct {
	provider TokenProvider
	token    func() (*oauth2.Token, error)
}

// Compile-time check to ensure CredentialTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*CredentialTokenSource)(nil)

// NewCredentialTokenSource creates a CredentialTokenSource.
// ctx bounds the interactive resolution, since oauth2.TokenSource.Token has
// no context parameter. No I/O is performed until the first Token call.
func NewCredentialTokenSource(ctx context.Context, provider TokenProvider) (*CredentialTokenSource, error) {
	if provider == nil {
		return nil, fmt.Errorf("missing token provider")
	}

	c := &CredentialTokenSource{provider: provider}
	c.token = sync.OnceValues(func() (*oauth2.Token, error) {
		return c.resolve(ctx)
	})
	return c, nil
}

func (c *CredentialTokenSource) resolve(ctx context.Context) (*oauth2.Token, error) {
	token, err := c.provider.GetToken(ctx)
	if err != nil {
		slog.DebugContext(ctx, "credential resolution failed", "error", err)
		return nil, fmt.Errorf("getting token from credential store: %w", err)
	}

	// Platform tokens carry no expiry; the store revalidates on the next process start.
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// Token returns the resolved token. Failures are sticky for the lifetime of the source.
func (c *CredentialTokenSource) Token() (*oauth2.Token, error) {
	return c.token()
}
