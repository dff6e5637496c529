package tokenstore

import (
	"fmt"

	"github.com/ritmofit/agent/pkg/agent/storage"
	"github.com/ritmofit/agent/pkg/agent/types"
)

// TokenStore reads the bearer token from the agent_config store. The token is
// written at login by the host app; this agent only ever reads it.
type TokenStore struct {
	store types.Getter
}

func New(store types.Getter) *TokenStore {
	return &TokenStore{
		store: store,
	}
}

// Token returns the stored auth token, or an empty string if none is set.
func (t *TokenStore) Token() (string, error) {
	raw, err := t.store.Get(storage.AuthTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading auth token from store: %w", err)
	}

	return string(raw), nil
}
