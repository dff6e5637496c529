package types

// TokenProvider supplies the bearer token attached to RitmoFit API requests.
// The token is sourced from the agent_config store; this interface exists so
// that the API client does not depend on the storage layer directly.
type TokenProvider interface {
	// Token returns the current auth token, or an empty string if the user
	// has not logged in on this device yet.
	Token() (string, error)
}
