package storage

// Well-known store (bucket) names. Each feature owns a disjoint store; the
// cache additionally namespaces its keys with a `cache_` prefix inside
// CacheStoreName.
const (
	CacheStoreName       = "ritmofit_cache"
	SentAlertsStoreName  = "sent_alerts"
	AgentConfigStoreName = "agent_config"
)

var (
	// AuthTokenKey holds the bearer token for the RitmoFit API, set at login.
	AuthTokenKey = []byte("auth_token")
)
