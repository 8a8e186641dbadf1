package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nimbus-stack/nimbus/internal/app"
	"github.com/nimbus-stack/nimbus/internal/auth"
	"github.com/nimbus-stack/nimbus/internal/identity"
	"github.com/nimbus-stack/nimbus/internal/password"
	"github.com/nimbus-stack/nimbus/internal/shared"
	"github.com/nimbus-stack/nimbus/internal/token"
	_ "github.com/nimbus-stack/nimbus/testing"
)

// memoryRepo is an in-memory identity.RepositoryPort for exercising the full
// HTTP surface without Postgres.
type memoryRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]identity.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[uuid.UUID]identity.User)}
}

func (r *memoryRepo) Create(_ context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return shared.ErrDuplicateEmail
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) UpdateName(_ context.Context, id uuid.UUID, name string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	u.Name = name
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return &u, nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryRepo) List(_ context.Context) ([]identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]identity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

type testApp struct {
	server *httptest.Server
	codec  *token.Codec
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec, err := token.NewCodec(testSecret)
	require.NoError(t, err)
	hasher := password.NewHasher(bcrypt.MinCost)

	identitySvc := identity.NewService(newMemoryRepo(), hasher)
	authSvc := auth.NewService(identitySvc, hasher, codec, nil, logger, 15*time.Minute, 168*time.Hour)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Gate:            auth.NewGate(authSvc, identitySvc, logger),
		AuthHandler:     auth.NewHandler(logger, authSvc, nil, nil),
		IdentityHandler: identity.NewHandler(logger, identitySvc, auth.Guard{}),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testApp{server: srv, codec: codec}
}

func (a *testApp) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignupLoginAndMe(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "Alice@Example.com", "password": "correct horse", "name": "Alice",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	decodeBody(t, resp, &pair)
	require.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	resp = a.do(t, http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	decodeBody(t, resp, &me)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.Equal(t, "USER", me["role"])
	assert.NotContains(t, me, "passwordHash")
}

func TestMeRequiresToken(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, http.MethodGet, "/api/users/me", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredAccessTokenThenRefresh(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "bob@example.com", "password": "correct horse", "name": "Bob",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	decodeBody(t, resp, &pair)

	// A token signed with the right key but already past exp must be turned
	// away at the guard, not the parser.
	expired, err := a.codec.Issue("bob@example.com", -time.Minute, nil)
	require.NoError(t, err)
	resp = a.do(t, http.MethodGet, "/api/users/me", expired, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var renewed auth.TokenPair
	decodeBody(t, resp, &renewed)
	require.NotEmpty(t, renewed.AccessToken)

	resp = a.do(t, http.MethodGet, "/api/users/me", renewed.AccessToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateMe(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "carol@example.com", "password": "correct horse", "name": "Carol",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	decodeBody(t, resp, &pair)

	resp = a.do(t, http.MethodPatch, "/api/users/me", pair.AccessToken, map[string]string{"name": "Caroline"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	decodeBody(t, resp, &me)
	assert.Equal(t, "Caroline", me["name"])
}

func TestAdminRoutesForbiddenForUsers(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "dave@example.com", "password": "correct horse", "name": "Dave",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "dave@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	decodeBody(t, resp, &pair)

	resp = a.do(t, http.MethodGet, "/api/users", pair.AccessToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "eve@example.com", "password": "correct horse", "name": "Eve",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "eve@example.com", "password": "wrong horse",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])
}
