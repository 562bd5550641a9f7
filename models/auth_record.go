package models

// AuthRecord holds the credentials for one app installation against one
// host-platform instance. The tenant API URL is the canonical identity.
type AuthRecord struct {
	TenantAPIURL string `json:"tenant_api_url"`
	AccessToken  string `json:"access_token"`
	AppID        string `json:"app_id"`
	// JWKS is the tenant's cached public key set, fetched at registration
	// time and used to verify platform-issued JWTs. May be empty if the
	// fetch failed; verification then falls back to a live fetch.
	JWKS string `json:"jwks,omitempty"`
}
