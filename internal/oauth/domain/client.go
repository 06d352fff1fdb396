package domain

import "time"

// Client is a registered OAuth2 client application. Scopes maps each scope
// name the client knows about to a grantable flag; a scope mapped to false
// is registered but explicitly disabled for this client.
type Client struct {
	ID         string
	Name       string
	SecretHash string // argon2id; empty for public clients
	Scopes     map[string]bool
	CreatedAt  time.Time
}

// GrantableScopes returns the scope names enabled for this client.
func (c Client) GrantableScopes() []string {
	out := make([]string, 0, len(c.Scopes))
	for name, enabled := range c.Scopes {
		if enabled {
			out = append(out, name)
		}
	}
	return out
}
