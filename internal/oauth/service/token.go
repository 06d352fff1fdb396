package service

import (
	"context"
	"errors"
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

// TokenService implements the back-channel token leg for every supported
// grant type, plus RFC 7009 revocation.
type TokenService struct {
	Store     store.Store
	Registry  *registry.Registry
	Codec     tokenx.Codec
	Passwords PasswordVerifier

	AccessTTL time.Duration
}

// ExchangeAuthorizationCode implements the OAuth2 authorization_code grant.
//
// The code lookup, replay check, and mark-used all run inside one store
// transaction: two concurrent exchanges of the same code cannot both win.
// A replayed code additionally revokes whatever tokens the first exchange
// produced before failing.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	client, err := s.Registry.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, mapAuthErr(err)
	}

	code = strings.TrimSpace(code)
	redirectURI = strings.TrimSpace(redirectURI)
	if code == "" || redirectURI == "" {
		return nil, ErrInvalidGrant
	}

	codeHash := cryptox.FingerprintToken(code)

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, codeHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if authCode.ClientID != client.ID {
			return ErrInvalidGrant
		}

		if authCode.UsedAt != nil {
			// Replay. Burn everything the first exchange minted: the
			// access token revocation cascades to its paired refresh token.
			if authCode.AccessTokenID != "" {
				if err := tx.AccessTokens().RevokeAccessToken(ctx, authCode.AccessTokenID); err != nil &&
					!errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
			l.Warn("authorization code replay detected, cascading revocation",
				"client_id", client.ID, "code_id", authCode.ID)
			return ErrInvalidGrant
		}

		if authCode.RedirectURI != redirectURI {
			return ErrInvalidGrant
		}
		if now.After(authCode.ExpiresAt) {
			return ErrInvalidGrant
		}

		// One active refresh token per (client, user): retire any earlier
		// generation before minting the new pair.
		if err := tx.RefreshTokens().RevokeAllUserClientTokens(ctx, client.ID, authCode.UserID); err != nil {
			return err
		}

		pair, accessID, err := s.mintPair(ctx, tx, now, client.ID, authCode.UserID, authCode.Scopes, authCode.ID)
		if err != nil {
			return err
		}

		if err := tx.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, authCode.ID, accessID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		result = pair
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("authorization code exchanged", "client_id", client.ID)
	return result, nil
}

// ExchangeRefreshToken implements the OAuth2 refresh_token grant with
// rotation: the presented refresh token and its paired access token are
// revoked and a fresh pair takes their place, atomically.
//
// Scope narrowing is allowed; asking for a scope the refresh token does not
// carry fails with invalid_scope.
func (s *TokenService) ExchangeRefreshToken(
	ctx context.Context,
	clientID, clientSecret, refreshOpaque string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	client, err := s.Registry.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, mapAuthErr(err)
	}

	if strings.TrimSpace(refreshOpaque) == "" {
		return nil, ErrInvalidGrant
	}

	fp := cryptox.FingerprintToken(refreshOpaque)

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if rt.Revoked || rt.ClientID != client.ID {
			return ErrInvalidGrant
		}

		scopes := rt.Scopes
		if len(requestedScopes) > 0 {
			if !scopesSubset(requestedScopes, rt.Scopes) {
				return ErrInvalidScope
			}
			scopes = requestedScopes
		}

		// Rotate-and-replace: retire the presented token (and its paired
		// access token) together with any stragglers for the identity.
		if err := tx.RefreshTokens().RevokeAllUserClientTokens(ctx, client.ID, rt.UserID); err != nil {
			return err
		}

		pair, _, err := s.mintPair(ctx, tx, now, client.ID, rt.UserID, scopes, rt.AuthCodeID)
		if err != nil {
			return err
		}

		result = pair
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("refresh token rotated", "client_id", client.ID)
	return result, nil
}

// ExchangeClientCredentials implements the OAuth2 client_credentials grant.
//
// The client is its own subject (UserID equals ClientID) and no refresh
// token is issued; the client can always re-authenticate.
func (s *TokenService) ExchangeClientCredentials(
	ctx context.Context,
	clientID, clientSecret string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	client, err := s.Registry.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, mapAuthErr(err)
	}

	if client.SecretHash == "" {
		l.Warn("client_credentials grant attempted with public client", "client_id", clientID)
		return nil, ErrInvalidClient
	}

	scopes := requestedScopes
	if len(scopes) == 0 {
		scopes = client.GrantableScopes()
	} else if err := s.Registry.VerifyClient(ctx, client.ID, scopes); err != nil {
		return nil, mapScopeErr(err)
	}

	id := idx.New().String()

	token, err := s.Codec.Issue(tokenx.Claims{
		ID:        id,
		ClientID:  client.ID,
		UserID:    client.ID,
		Type:      tokenx.TypeAccess,
		Scopes:    scopes,
		Audience:  client.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.AccessTTL),
	})
	if err != nil {
		return nil, err
	}

	err = s.Store.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		ID:        id,
		ClientID:  client.ID,
		UserID:    client.ID,
		TokenHash: cryptox.FingerprintToken(token),
		Scopes:    scopes,
		ExpiresAt: now.Add(s.AccessTTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	l.Info("client_credentials token issued", "client_id", client.ID)

	return &domain.TokenPair{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.AccessTTL,
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// ExchangePassword implements the resource owner password credentials grant.
// Credential checking goes through the PasswordVerifier collaborator so
// hosts can plug in their own user directory.
func (s *TokenService) ExchangePassword(
	ctx context.Context,
	clientID, clientSecret, username, password string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	client, err := s.Registry.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, mapAuthErr(err)
	}

	if len(requestedScopes) > 0 {
		if err := s.Registry.VerifyClient(ctx, client.ID, requestedScopes); err != nil {
			return nil, mapScopeErr(err)
		}
	}

	userID, err := s.Passwords.VerifyPassword(ctx, username, password)
	if err != nil {
		l.Info("password grant credential check failed", "client_id", client.ID, "username", username)
		return nil, err
	}

	scopes := requestedScopes
	if len(scopes) == 0 {
		scopes = client.GrantableScopes()
	}

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeAllUserClientTokens(ctx, client.ID, userID); err != nil {
			return err
		}

		pair, _, err := s.mintPair(ctx, tx, now, client.ID, userID, scopes, "")
		if err != nil {
			return err
		}

		result = pair
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("password grant token issued", "client_id", client.ID, "user_id", userID)
	return result, nil
}

// RevokeToken revokes a token by value per RFC 7009. The token may be an
// access token (revocation cascades to its paired refresh token) or a
// refresh token (its access token rides out its own expiry). Unknown tokens
// are not an error.
func (s *TokenService) RevokeToken(ctx context.Context, clientID, clientSecret, token string) error {
	l := slogx.FromContext(ctx)

	client, err := s.Registry.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return mapAuthErr(err)
	}

	fp := cryptox.FingerprintToken(token)

	if at, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, fp); err == nil {
		if at.ClientID != client.ID {
			return nil
		}
		l.Info("access token revoked", "client_id", client.ID, "token_id", at.ID)
		return s.Store.AccessTokens().RevokeAccessToken(ctx, at.ID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp); err == nil {
		if rt.ClientID != client.ID {
			return nil
		}
		l.Info("refresh token revoked", "client_id", client.ID, "token_id", rt.ID)
		return s.Store.RefreshTokens().RevokeRefreshToken(ctx, rt.ID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return nil
}

// mintPair issues an access/refresh token pair, persists both records with
// their mutual references, and returns the wire pair plus the access token's
// record ID for code bookkeeping.
func (s *TokenService) mintPair(
	ctx context.Context,
	tx store.Tx,
	now time.Time,
	clientID, userID string,
	scopes []string,
	authCodeID string,
) (*domain.TokenPair, string, error) {
	accessID := idx.New().String()
	refreshID := idx.New().String()

	accessToken, err := s.Codec.Issue(tokenx.Claims{
		ID:        accessID,
		ClientID:  clientID,
		UserID:    userID,
		Type:      tokenx.TypeAccess,
		Scopes:    scopes,
		Audience:  clientID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.AccessTTL),
	})
	if err != nil {
		return nil, "", err
	}

	// Refresh tokens carry no expiry; rotation and revocation bound them.
	refreshToken, err := s.Codec.Issue(tokenx.Claims{
		ID:       refreshID,
		ClientID: clientID,
		UserID:   userID,
		Type:     tokenx.TypeRefresh,
		Scopes:   scopes,
		Audience: clientID,
		IssuedAt: now,
	})
	if err != nil {
		return nil, "", err
	}

	err = tx.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		ID:             accessID,
		ClientID:       clientID,
		UserID:         userID,
		TokenHash:      cryptox.FingerprintToken(accessToken),
		Scopes:         scopes,
		ExpiresAt:      now.Add(s.AccessTTL),
		RefreshTokenID: refreshID,
		AuthCodeID:     authCodeID,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, "", err
	}

	err = tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:            refreshID,
		ClientID:      clientID,
		UserID:        userID,
		TokenHash:     cryptox.FingerprintToken(refreshToken),
		Scopes:        scopes,
		AccessTokenID: accessID,
		AuthCodeID:    authCodeID,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, "", err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
		Scope:        strings.Join(scopes, " "),
	}, accessID, nil
}

// mapAuthErr converts registry authentication failures to the service
// sentinel; store errors pass through.
func mapAuthErr(err error) error {
	if errors.Is(err, registry.ErrInvalidClient) {
		return ErrInvalidClient
	}
	return err
}

// mapScopeErr flattens registry verification failures on the token endpoint:
// RFC 6749 reports them all as invalid_scope there, unlike the authorize leg.
func mapScopeErr(err error) error {
	if errors.Is(err, registry.ErrInvalidScope) || errors.Is(err, registry.ErrAccessDenied) {
		return ErrInvalidScope
	}
	if errors.Is(err, registry.ErrUnauthorizedClient) {
		return ErrInvalidClient
	}
	return err
}

func scopesSubset(requested, held []string) bool {
	have := make(map[string]struct{}, len(held))
	for _, s := range held {
		have[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}
