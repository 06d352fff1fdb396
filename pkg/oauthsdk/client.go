package oauthsdk

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default endpoint routes. Override the fields on SDKClient when the server
// is configured with custom routes.
const (
	DefaultAuthorizeRoute   = "/oauth/authorize"
	DefaultAccessTokenRoute = "/oauth/access_token"
)

// SDKClient is a client for an OAuth2 authorization server built on this module.
// It covers the token endpoint grants, authorize URL construction, revocation,
// introspection and health checks.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// AuthorizeRoute and AccessTokenRoute are the endpoint paths on the server.
	// They default to DefaultAuthorizeRoute and DefaultAccessTokenRoute.
	AuthorizeRoute   string
	AccessTokenRoute string
}

// NewSDKClient creates a new authorization server client with default routes.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		AuthorizeRoute:   DefaultAuthorizeRoute,
		AccessTokenRoute: DefaultAccessTokenRoute,
	}
}

// AuthorizeURL builds the front-channel authorization URL for the
// authorization_code flow. The caller redirects the resource owner's
// user-agent to this URL.
func (c *SDKClient) AuthorizeURL(clientID, redirectURI, state string, scopes []string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
	}
	if state != "" {
		q.Set("state", state)
	}
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}
	return c.BaseURL + c.authorizeRoute() + "?" + q.Encode()
}

func (c *SDKClient) authorizeRoute() string {
	if c.AuthorizeRoute != "" {
		return c.AuthorizeRoute
	}
	return DefaultAuthorizeRoute
}

func (c *SDKClient) accessTokenRoute() string {
	if c.AccessTokenRoute != "" {
		return c.AccessTokenRoute
	}
	return DefaultAccessTokenRoute
}
