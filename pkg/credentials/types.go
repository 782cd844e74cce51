package credentials

import "time"

// Credentials is the content of credentials.toml, keyed by provider route.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential is the stored key for one provider route.
type ProviderCredential struct {
	APIKey    string    `toml:"api_key"`
	UpdatedAt time.Time `toml:"updated_at,omitempty"`
}

// Masked hides all but the last four characters of the key.
func (p ProviderCredential) Masked() string {
	const visible = 4
	if len(p.APIKey) <= visible {
		return "****"
	}
	return "****" + p.APIKey[len(p.APIKey)-visible:]
}
