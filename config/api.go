package config

// APIConfig protects the read-only sensor endpoints served next to /metrics.
type APIConfig struct {
	// Token is the expected bearer token; empty disables authentication.
	Token string `json:"token"`
}
