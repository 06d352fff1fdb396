// Package memory provides the default in-memory grant store. It is suitable
// for development, testing, and embedding the engine in a single process.
//
// A single mutex guards all tables. That makes WithTx trivially atomic and
// is acceptable for modest throughput; hosts needing more use the sqlite
// driver or their own Store implementation.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
)

type Store struct {
	mu sync.Mutex

	clients map[string]domain.Client
	users   map[string]domain.User

	codes      map[string]domain.AuthorizationCode // by ID
	codeByHash map[string]string                   // code hash -> ID

	access       map[string]domain.AccessToken // by ID
	accessByHash map[string]string

	refresh       map[string]domain.RefreshToken // by ID
	refreshByHash map[string]string
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		clients:       make(map[string]domain.Client),
		users:         make(map[string]domain.User),
		codes:         make(map[string]domain.AuthorizationCode),
		codeByHash:    make(map[string]string),
		access:        make(map[string]domain.AccessToken),
		accessByHash:  make(map[string]string),
		refresh:       make(map[string]domain.RefreshToken),
		refreshByHash: make(map[string]string),
	}
}

func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) ApplyMigrations() error         { return nil }

// WithTx serializes fn behind the store mutex. The tx view the callback
// receives operates on the tables directly, so every step of fn is part of
// the same critical section.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(txView{s})
}

func (s *Store) Clients() store.Clients                       { return lockedRepo{s} }
func (s *Store) Users() store.Users                           { return lockedRepo{s} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return lockedRepo{s} }
func (s *Store) AccessTokens() store.AccessTokens             { return lockedRepo{s} }
func (s *Store) RefreshTokens() store.RefreshTokens           { return lockedRepo{s} }

// txView exposes the repositories without re-acquiring the mutex; it is only
// handed out by WithTx while the lock is held.
type txView struct{ s *Store }

func (t txView) Clients() store.Clients                       { return bareRepo{t.s} }
func (t txView) Users() store.Users                           { return bareRepo{t.s} }
func (t txView) AuthorizationCodes() store.AuthorizationCodes { return bareRepo{t.s} }
func (t txView) AccessTokens() store.AccessTokens             { return bareRepo{t.s} }
func (t txView) RefreshTokens() store.RefreshTokens           { return bareRepo{t.s} }

// lockedRepo wraps every operation in the store mutex for standalone calls.
type lockedRepo struct{ s *Store }

// bareRepo assumes the caller already holds the mutex (WithTx).
type bareRepo struct{ s *Store }

/* Clients */

func (r lockedRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getClientByID(id)
}

func (r bareRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	return r.s.getClientByID(id)
}

func (r lockedRepo) CreateClient(ctx context.Context, c domain.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createClient(c)
}

func (r bareRepo) CreateClient(ctx context.Context, c domain.Client) error {
	return r.s.createClient(c)
}

func (r lockedRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listClients()
}

func (r bareRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	return r.s.listClients()
}

func (r lockedRepo) DeleteClient(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.deleteClient(id)
}

func (r bareRepo) DeleteClient(ctx context.Context, id string) error {
	return r.s.deleteClient(id)
}

func (s *Store) getClientByID(id string) (domain.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return domain.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) createClient(c domain.Client) error {
	if _, ok := s.clients[c.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.clients[c.ID] = c
	return nil
}

func (s *Store) listClients() ([]domain.Client, error) {
	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) deleteClient(id string) error {
	if _, ok := s.clients[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

/* Users */

func (r lockedRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getUserByID(id)
}

func (r bareRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.s.getUserByID(id)
}

func (r lockedRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getUserByUsername(username)
}

func (r bareRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.s.getUserByUsername(username)
}

func (r lockedRepo) CreateUser(ctx context.Context, u domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createUser(u)
}

func (r bareRepo) CreateUser(ctx context.Context, u domain.User) error {
	return r.s.createUser(u)
}

func (s *Store) getUserByID(id string) (domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) getUserByUsername(username string) (domain.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) createUser(u domain.User) error {
	if _, ok := s.users[u.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.users[u.ID] = u
	return nil
}

/* Authorization codes */

func (r lockedRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createCode(code)
}

func (r bareRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	return r.s.createCode(code)
}

func (r lockedRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getCodeByHash(hash)
}

func (r bareRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	return r.s.getCodeByHash(hash)
}

func (r lockedRepo) MarkAuthorizationCodeUsed(ctx context.Context, id, accessTokenID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.markCodeUsed(id, accessTokenID)
}

func (r bareRepo) MarkAuthorizationCodeUsed(ctx context.Context, id, accessTokenID string) error {
	return r.s.markCodeUsed(id, accessTokenID)
}

func (r lockedRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.deleteExpiredCodes()
}

func (r bareRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	return r.s.deleteExpiredCodes()
}

func (s *Store) createCode(code domain.AuthorizationCode) error {
	if _, ok := s.codes[code.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.codes[code.ID] = code
	s.codeByHash[code.CodeHash] = code.ID
	return nil
}

func (s *Store) getCodeByHash(hash string) (domain.AuthorizationCode, error) {
	id, ok := s.codeByHash[hash]
	if !ok {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}
	return s.codes[id], nil
}

func (s *Store) markCodeUsed(id, accessTokenID string) error {
	code, ok := s.codes[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	code.UsedAt = &now
	code.AccessTokenID = accessTokenID
	s.codes[id] = code
	return nil
}

func (s *Store) deleteExpiredCodes() error {
	now := time.Now()
	for id, code := range s.codes {
		if now.After(code.ExpiresAt) {
			delete(s.codeByHash, code.CodeHash)
			delete(s.codes, id)
		}
	}
	return nil
}

/* Access tokens */

func (r lockedRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createAccess(t)
}

func (r bareRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	return r.s.createAccess(t)
}

func (r lockedRepo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getAccessByHash(hash)
}

func (r bareRepo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	return r.s.getAccessByHash(hash)
}

func (r lockedRepo) GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getAccessByID(id)
}

func (r bareRepo) GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error) {
	return r.s.getAccessByID(id)
}

func (r lockedRepo) RevokeAccessToken(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.revokeAccess(id)
}

func (r bareRepo) RevokeAccessToken(ctx context.Context, id string) error {
	return r.s.revokeAccess(id)
}

func (r lockedRepo) DeleteAccessToken(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.deleteAccess(id)
}

func (r bareRepo) DeleteAccessToken(ctx context.Context, id string) error {
	return r.s.deleteAccess(id)
}

func (r lockedRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.deleteExpiredAccess()
}

func (r bareRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	return r.s.deleteExpiredAccess()
}

func (s *Store) createAccess(t domain.AccessToken) error {
	if _, ok := s.access[t.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.access[t.ID] = t
	s.accessByHash[t.TokenHash] = t.ID
	return nil
}

func (s *Store) getAccessByHash(hash string) (domain.AccessToken, error) {
	id, ok := s.accessByHash[hash]
	if !ok {
		return domain.AccessToken{}, store.ErrNotFound
	}
	return s.access[id], nil
}

func (s *Store) getAccessByID(id string) (domain.AccessToken, error) {
	t, ok := s.access[id]
	if !ok {
		return domain.AccessToken{}, store.ErrNotFound
	}
	return t, nil
}

// revokeAccess revokes the access token and its paired refresh token in one
// step, which keeps the pairing invariant without a second call.
func (s *Store) revokeAccess(id string) error {
	t, ok := s.access[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Revoked = true
	s.access[id] = t

	if rt, ok := s.refresh[t.RefreshTokenID]; ok {
		rt.Revoked = true
		s.refresh[rt.ID] = rt
	}
	return nil
}

func (s *Store) deleteAccess(id string) error {
	t, ok := s.access[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.accessByHash, t.TokenHash)
	delete(s.access, id)
	return nil
}

func (s *Store) deleteExpiredAccess() error {
	now := time.Now()
	for id, t := range s.access {
		if now.After(t.ExpiresAt) {
			delete(s.accessByHash, t.TokenHash)
			delete(s.access, id)
		}
	}
	return nil
}

/* Refresh tokens */

func (r lockedRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createRefresh(t)
}

func (r bareRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	return r.s.createRefresh(t)
}

func (r lockedRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getRefreshByHash(hash)
}

func (r bareRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return r.s.getRefreshByHash(hash)
}

func (r lockedRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.revokeRefresh(id)
}

func (r bareRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	return r.s.revokeRefresh(id)
}

func (r lockedRepo) RevokeAllUserClientTokens(ctx context.Context, clientID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.revokeAllUserClient(clientID, userID)
}

func (r bareRepo) RevokeAllUserClientTokens(ctx context.Context, clientID, userID string) error {
	return r.s.revokeAllUserClient(clientID, userID)
}

func (s *Store) createRefresh(t domain.RefreshToken) error {
	if _, ok := s.refresh[t.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.refresh[t.ID] = t
	s.refreshByHash[t.TokenHash] = t.ID
	return nil
}

func (s *Store) getRefreshByHash(hash string) (domain.RefreshToken, error) {
	id, ok := s.refreshByHash[hash]
	if !ok {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return s.refresh[id], nil
}

func (s *Store) revokeRefresh(id string) error {
	t, ok := s.refresh[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Revoked = true
	s.refresh[id] = t
	return nil
}

func (s *Store) revokeAllUserClient(clientID, userID string) error {
	for id, rt := range s.refresh {
		if rt.ClientID != clientID || rt.UserID != userID || rt.Revoked {
			continue
		}
		rt.Revoked = true
		s.refresh[id] = rt

		if at, ok := s.access[rt.AccessTokenID]; ok {
			at.Revoked = true
			s.access[at.ID] = at
		}
	}
	return nil
}
