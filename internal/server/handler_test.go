package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/lukasberz/nse/internal/index"
	"github.com/lukasberz/nse/internal/models"
	"github.com/lukasberz/nse/internal/nix"
	"github.com/lukasberz/nse/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAuthenticator maps fixed tokens to user ids.
type testAuthenticator struct {
	tokens map[string]int64
}

func (a *testAuthenticator) Authenticate(raw string) (int64, bool, error) {
	id, ok := a.tokens[raw]
	return id, ok, nil
}

// testAdminStore counts provisioned users.
type testAdminStore struct {
	nextUserID int64
}

func (a *testAdminStore) CreateUser(_ context.Context, username string) (int64, error) {
	a.nextUserID++
	return a.nextUserID, nil
}

func (a *testAdminStore) CreateToken(userID int64, desc string) (string, *index.TokenInfo, error) {
	return "nse_test", &index.TokenInfo{ID: "tok-1", UserID: userID, Desc: desc}, nil
}

type testServer struct {
	handler http.Handler
	mock    *nix.MockClient
	base    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	idx, err := index.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, idx.Initialize())
	t.Cleanup(func() { idx.Close() })

	base := filepath.Join(t.TempDir(), "stores")
	mock := nix.NewMockClient()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(base, idx.Stores(), idx.Packages(), mock, logger)

	auth := &testAuthenticator{tokens: map[string]int64{"token-u1": 1, "token-u2": 2}}
	cfg := DefaultServerConfig()
	cfg.AdminToken = "admin-secret"

	return &testServer{
		handler: Handler(svc, auth, &testAdminStore{}, cfg, logger),
		mock:    mock,
		base:    base,
	}
}

func (s *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) root(ownerID int64, storeName string) string {
	return filepath.Join(s.base, strconv.FormatInt(ownerID, 10), storeName)
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthz_NoAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "GET", "/api/v1/stores", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.request(t, "GET", "/api/v1/stores", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "GET", "/healthz", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAddStore(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var store models.Store
	decodeInto(t, rec, &store)
	assert.Equal(t, "s1", store.Name)
	assert.Equal(t, int64(1), store.OwnerID)
}

func TestAddStore_Duplicate(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestAddStore_PathEscapingName(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "../escape"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid store name")
}

func TestAddStore_MissingName(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStore_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "GET", "/api/v1/stores/ghost", "token-u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStores_ScopedByToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The other user does not see it.
	rec = srv.request(t, "GET", "/api/v1/stores/s1", "token-u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var stores []models.Store
	rec = srv.request(t, "GET", "/api/v1/stores", "token-u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &stores)
	assert.Len(t, stores, 1)
}

func TestDeleteStore(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.request(t, "DELETE", "/api/v1/stores/s1", "token-u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.request(t, "DELETE", "/api/v1/stores/s1", "token-u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddPackage(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	srv.mock.SetClosure(srv.root(1, "s1"), "hello", []string{"/nix/store/abc-hello"})

	rec = srv.request(t, "POST", "/api/v1/stores/s1/packages", "token-u1", map[string]string{"name": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var pkg models.Package
	decodeInto(t, rec, &pkg)
	assert.Equal(t, "hello", pkg.Name)
	assert.Equal(t, []string{"/nix/store/abc-hello"}, pkg.Closure.Paths)
}

func TestAddPackage_Rejected(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	srv.mock.FailWith(srv.root(1, "s1"), "pkg", nix.KindUnfreeLicence, "")

	rec = srv.request(t, "POST", "/api/v1/stores/s1/packages", "token-u1", map[string]string{"name": "pkg"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unfree license")
}

func TestDeletePackage_Conflict(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = srv.request(t, "POST", "/api/v1/stores/s1/packages", "token-u1", map[string]string{"name": "dep"})
	require.Equal(t, http.StatusCreated, rec.Code)

	srv.mock.FailWith(srv.root(1, "s1"), "dep", nix.KindStillAlive, "")

	rec = srv.request(t, "DELETE", "/api/v1/stores/s1/packages/dep", "token-u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPackageMeta_GarbageCollected(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	srv.mock.SetClosure(srv.root(1, "s1"), "hello", []string{"/nix/store/abc-hello"})
	srv.mock.Invalidate(srv.root(1, "s1"), "hello")

	rec = srv.request(t, "GET", "/api/v1/stores/s1/packages/hello/meta", "token-u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var meta models.PackageMeta
	decodeInto(t, rec, &meta)
	assert.False(t, meta.Present)
	assert.Equal(t, int64(0), meta.ClosureSize)
}

func TestPathsDifference(t *testing.T) {
	srv := newTestServer(t)

	for _, name := range []string{"s1", "s2"} {
		rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := srv.request(t, "GET", "/api/v1/stores/s1/paths-difference/s2", "token-u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var difference models.PathsDifference
	decodeInto(t, rec, &difference)
	assert.Empty(t, difference.OnlyInStore1)
	assert.Empty(t, difference.OnlyInStore2)
}

func TestClosuresDifference(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, "POST", "/api/v1/stores", "token-u1", map[string]string{"name": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	srv.mock.SetClosure(srv.root(1, "s1"), "a", []string{"/nix/store/shared", "/nix/store/only-a"})
	srv.mock.SetClosure(srv.root(1, "s1"), "b", []string{"/nix/store/shared", "/nix/store/only-b"})

	rec = srv.request(t, "GET", "/api/v1/stores/s1/packages/a/closures-difference/s1/b", "token-u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var difference models.ClosuresDifference
	decodeInto(t, rec, &difference)
	assert.Equal(t, []string{"/nix/store/only-b"}, difference.AbsentInPackage1)
	assert.Equal(t, []string{"/nix/store/only-a"}, difference.AbsentInPackage2)
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// Wrong token is rejected.
	rec := srv.request(t, "POST", "/admin/users", "wrong", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.request(t, "POST", "/admin/users", "admin-secret", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, rec, &created)

	rec = srv.request(t, "POST", "/admin/tokens", "admin-secret", map[string]any{"user_id": created.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "nse_test")
}
