package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/logging"
	"github.com/dmitrijs2005/walletsync/internal/server/auth"
	"github.com/dmitrijs2005/walletsync/internal/server/config"
	"github.com/dmitrijs2005/walletsync/internal/server/httpapi"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/users"
	"github.com/dmitrijs2005/walletsync/internal/server/services"
)

type fakePresigner struct {
	err error
}

func (f *fakePresigner) PresignPut(ctx context.Context, ownerID string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return "receipts/" + ownerID + "/key", "https://storage.local/put", nil
}

type env struct {
	server *httptest.Server
	cfg    *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"

	us := services.NewUserServiceWithRepos(users.NewInMemoryRepository(), refreshtokens.NewInMemoryRepository(), cfg)
	rs := services.NewRecordServiceWithRepo(records.NewInMemoryRepository())

	router := httpapi.NewRouter(us, rs, &fakePresigner{},
		[]byte(cfg.SecretKey), 1000, 1000, logging.NewJSON(io.Discard))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{server: srv, cfg: cfg}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(common.AccessTokenHeaderName, common.BearerPrefix+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type tokenPair struct {
	OwnerID      string `json:"owner_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (e *env) registerAndLogin(t *testing.T, email string) tokenPair {
	t.Helper()

	creds := map[string]string{"email": email, "password": "password123"}
	resp, _ := e.do(t, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tp tokenPair
	require.NoError(t, json.Unmarshal(body, &tp))
	require.NotEmpty(t, tp.OwnerID)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
	return tp
}

func TestLogin_TokenPairFieldNames(t *testing.T) {
	e := newEnv(t)

	creds := map[string]string{"email": "wire@example.com", "password": "password123"}
	resp, _ := e.do(t, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The remote client decodes these exact keys.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "owner_id")
	assert.Contains(t, raw, "access_token")
	assert.Contains(t, raw, "refresh_token")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t)

	creds := map[string]string{"email": "dup@example.com", "password": "password123"}
	resp, _ := e.do(t, http.MethodPost, "/api/register", "", creds)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/register", "", creds)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"error":"user already exists"}`, string(body))
}

func TestRegister_InvalidCredentials(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "not-an-email", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "ok@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_BadPassword(t *testing.T) {
	e := newEnv(t)
	e.registerAndLogin(t, "user@example.com")

	resp, _ := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "user@example.com", "password": "wrongwrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh_RotatesTokens(t *testing.T) {
	e := newEnv(t)
	tp := e.registerAndLogin(t, "user@example.com")

	resp, body := e.do(t, http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": tp.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var next tokenPair
	require.NoError(t, json.Unmarshal(body, &next))
	assert.NotEqual(t, tp.RefreshToken, next.RefreshToken)

	// The old refresh token is single use.
	resp, _ = e.do(t, http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": tp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPing_RequiresToken(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tp := e.registerAndLogin(t, "user@example.com")
	resp, _ = e.do(t, http.MethodGet, "/api/ping", tp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExpiredToken_Reported(t *testing.T) {
	e := newEnv(t)
	tp := e.registerAndLogin(t, "user@example.com")

	expired, err := auth.GenerateToken(tp.OwnerID, []byte(e.cfg.SecretKey), -time.Minute)
	require.NoError(t, err)

	resp, body := e.do(t, http.MethodGet, "/api/ping", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"token expired"}`, string(body))
}

func TestRecords_PushAndPull(t *testing.T) {
	e := newEnv(t)
	tp := e.registerAndLogin(t, "user@example.com")

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := map[string]any{
		"id":         "exp-1",
		"updated_at": at,
		"doc":        json.RawMessage(`{"amount":1500}`),
	}
	resp, _ := e.do(t, http.MethodPut, "/api/expenses/exp-1", tp.AccessToken, rec)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/api/expenses?since="+time.Time{}.UTC().Format(time.RFC3339Nano), tp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "exp-1", got[0]["id"])

	// since past the record filters it out.
	resp, body = e.do(t, http.MethodGet, "/api/expenses?since="+at.Add(time.Second).Format(time.RFC3339Nano), tp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestRecords_Delete(t *testing.T) {
	e := newEnv(t)
	tp := e.registerAndLogin(t, "user@example.com")

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := map[string]any{"id": "exp-1", "updated_at": at, "doc": json.RawMessage(`{}`)}
	resp, _ := e.do(t, http.MethodPut, "/api/expenses/exp-1", tp.AccessToken, rec)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/expenses/exp-1/delete", tp.AccessToken, map[string]any{"deleted_at": at.Add(time.Hour)})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/api/expenses", tp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, true, got[0]["deleted"])
}

func TestRecords_UnknownCollection(t *testing.T) {
	e := newEnv(t)
	tp := e.registerAndLogin(t, "user@example.com")

	resp, _ := e.do(t, http.MethodGet, "/api/passwords", tp.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecords_ScopedByOwner(t *testing.T) {
	e := newEnv(t)
	alice := e.registerAndLogin(t, "alice@example.com")
	bob := e.registerAndLogin(t, "bob@example.com")

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := map[string]any{"id": "exp-1", "updated_at": at, "doc": json.RawMessage(`{}`)}
	resp, _ := e.do(t, http.MethodPut, "/api/expenses/exp-1", alice.AccessToken, rec)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/api/expenses", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestPresignReceipt(t *testing.T) {
	e := newEnv(t)
	tp := e.registerAndLogin(t, "user@example.com")

	resp, body := e.do(t, http.MethodPost, "/api/receipts/presign", tp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "receipts/"+tp.OwnerID+"/key", out.Key)
	assert.Equal(t, "https://storage.local/put", out.URL)
}

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"

	us := services.NewUserServiceWithRepos(users.NewInMemoryRepository(), refreshtokens.NewInMemoryRepository(), cfg)
	rs := services.NewRecordServiceWithRepo(records.NewInMemoryRepository())
	router := httpapi.NewRouter(us, rs, &fakePresigner{},
		[]byte(cfg.SecretKey), 1, 2, logging.NewJSON(io.Discard))

	srv := httptest.NewServer(router)
	defer srv.Close()

	var lastStatus int
	for i := 0; i < 5; i++ {
		resp, err := http.Post(fmt.Sprintf("%s/api/login", srv.URL), "application/json",
			bytes.NewReader([]byte(`{"email":"a@b.c","password":"password123"}`)))
		require.NoError(t, err)
		resp.Body.Close()
		lastStatus = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, lastStatus)
}
