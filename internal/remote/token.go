package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"taskdeck/internal/model"
	"taskdeck/internal/repository"
)

// CredentialStore is the persisted session the client authenticates with.
type CredentialStore interface {
	Current(ctx context.Context) (*model.Session, error)
	Invalidate(ctx context.Context) error
}

// storeTokenSource reads the bearer token from the credential store on every request,
// so an invalidated session stops being sent immediately.
type storeTokenSource struct {
	store   CredentialStore
	timeout time.Duration
}

// NewTokenSource adapts the credential store to oauth2.TokenSource.
func NewTokenSource(store CredentialStore) oauth2.TokenSource {
	return &storeTokenSource{store: store, timeout: 5 * time.Second}
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	session, err := s.store.Current(ctx)
	switch {
	case errors.Is(err, repository.ErrNoSession):
		return nil, errNoCredential
	case err != nil:
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if session.Token == "" {
		return nil, errNoCredential
	}
	return &oauth2.Token{AccessToken: session.Token, TokenType: "Bearer"}, nil
}
