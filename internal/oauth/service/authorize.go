package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/registry"
	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/pkg/cryptox"
	"github.com/payprop/oauth2-server/pkg/idx"
	"github.com/payprop/oauth2-server/pkg/slogx"
	"github.com/payprop/oauth2-server/pkg/tokenx"
)

// AuthorizeService implements the front-channel authorize leg: validating
// the request, running the resource-owner gateway, and minting either an
// authorization code (response_type=code) or an access token directly
// (response_type=token, the implicit flow).
type AuthorizeService struct {
	Store    store.Store
	Registry *registry.Registry
	Codec    tokenx.Codec
	Gateway  OwnerGateway

	CodeTTL   time.Duration
	AccessTTL time.Duration
}

// AuthorizeRequest captures the validated query parameters of the authorize leg.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        []string
	State        string
}

// AuthorizeGrant is the successful outcome the HTTP layer turns into a 302.
// Exactly one of Code or AccessToken is set, depending on the response type.
type AuthorizeGrant struct {
	RedirectURI string
	State       string

	// Code flow
	Code string

	// Implicit flow
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

// Authorize runs the authorize leg. A nil grant with a nil error means the
// owner gateway deferred and has already written a response; the caller must
// not touch the ResponseWriter.
//
// Error mapping is the caller's job: ErrInvalidRequest is a pre-redirect
// failure (the client or redirect target is not yet trusted, and that
// includes an unrecognised response_type) and must become a 400; registry
// errors and ErrAccessDenied arrive after the client checked out and are
// carried back on the redirect with state echoed.
func (s *AuthorizeService) Authorize(ctx context.Context, w http.ResponseWriter, r *http.Request, req AuthorizeRequest) (*AuthorizeGrant, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	clientID := strings.TrimSpace(req.ClientID)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	responseType := strings.TrimSpace(req.ResponseType)

	if clientID == "" || redirectURI == "" {
		return nil, ErrInvalidRequest
	}
	if responseType != "code" && responseType != "token" {
		return nil, ErrInvalidRequest
	}

	if err := s.Registry.VerifyClient(ctx, clientID, req.Scope); err != nil {
		return nil, err
	}

	decision, userID, err := s.Gateway.Decide(w, r, clientID, req.Scope)
	if err != nil {
		return nil, err
	}
	switch decision {
	case DecisionDeferred:
		return nil, nil
	case DecisionDenied:
		l.Info("authorization denied by resource owner", "client_id", clientID)
		return nil, ErrAccessDenied
	}

	if responseType == "token" {
		return s.issueImplicitToken(ctx, now, clientID, userID, redirectURI, req)
	}

	code, record, err := s.prepareAuthorizationCode(now, clientID, userID, redirectURI, req.Scope)
	if err != nil {
		return nil, err
	}

	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		return nil, err
	}

	l.Info("authorization code issued",
		"client_id", clientID, "user_id", userID, "scope", strings.Join(req.Scope, " "))

	return &AuthorizeGrant{
		RedirectURI: redirectURI,
		State:       req.State,
		Code:        code,
	}, nil
}

func (s *AuthorizeService) prepareAuthorizationCode(
	now time.Time,
	clientID, userID, redirectURI string,
	scopes []string,
) (string, domain.AuthorizationCode, error) {
	id := idx.New().String()

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	code, err := s.Codec.Issue(tokenx.Claims{
		ID:        id,
		ClientID:  clientID,
		UserID:    userID,
		Type:      tokenx.TypeAuthCode,
		Scopes:    scopes,
		Audience:  redirectURI,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return "", domain.AuthorizationCode{}, err
	}

	record := domain.AuthorizationCode{
		ID:          id,
		ClientID:    clientID,
		UserID:      userID,
		CodeHash:    cryptox.FingerprintToken(code),
		RedirectURI: redirectURI,
		Scopes:      scopes,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}

	return code, record, nil
}

// issueImplicitToken mints an access token straight onto the redirect for
// response_type=token. No refresh token is issued; the record is still
// persisted so the token can be verified and revoked like any other.
func (s *AuthorizeService) issueImplicitToken(
	ctx context.Context,
	now time.Time,
	clientID, userID, redirectURI string,
	req AuthorizeRequest,
) (*AuthorizeGrant, error) {
	l := slogx.FromContext(ctx)

	id := idx.New().String()

	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	token, err := s.Codec.Issue(tokenx.Claims{
		ID:        id,
		ClientID:  clientID,
		UserID:    userID,
		Type:      tokenx.TypeAccess,
		Scopes:    req.Scope,
		Audience:  clientID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return nil, err
	}

	err = s.Store.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		ID:        id,
		ClientID:  clientID,
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(token),
		Scopes:    req.Scope,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	l.Info("implicit access token issued", "client_id", clientID, "user_id", userID)

	return &AuthorizeGrant{
		RedirectURI: redirectURI,
		State:       req.State,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttl,
	}, nil
}
