package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/walletsync/internal/common"
)

func newClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL)
}

func loginHandler(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tokenPair{OwnerID: "u1", AccessToken: "at1", RefreshToken: "rt1"})
	})
}

func TestLogin_StoresSession(t *testing.T) {
	mux := http.NewServeMux()
	loginHandler(mux)
	c := newClient(t, mux)

	require.NoError(t, c.Login(context.Background(), "a@b.c", "pw"))
	assert.True(t, c.LoggedIn())
	assert.Equal(t, "u1", c.OwnerID())

	c.Logout()
	assert.False(t, c.LoggedIn())
}

func TestAuthedCall_WithoutLogin(t *testing.T) {
	c := newClient(t, http.NewServeMux())
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestCall_RefreshesExpiredToken(t *testing.T) {
	mux := http.NewServeMux()
	loginHandler(mux)

	var refreshed bool
	mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshed = true
		_ = json.NewEncoder(w).Encode(tokenPair{AccessToken: "at2", RefreshToken: "rt2"})
	})
	mux.HandleFunc("GET /api/ping", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer at2" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(errorBody{Error: common.ErrTokenExpired.Error()})
	})

	c := newClient(t, mux)
	require.NoError(t, c.Login(context.Background(), "a@b.c", "pw"))
	require.NoError(t, c.Ping(context.Background()))
	assert.True(t, refreshed)
}

func TestCall_RetriesTransientErrors(t *testing.T) {
	mux := http.NewServeMux()
	loginHandler(mux)

	var calls int
	mux.HandleFunc("GET /api/ping", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c := newClient(t, mux)
	require.NoError(t, c.Login(context.Background(), "a@b.c", "pw"))
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestFetchSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	loginHandler(mux)
	mux.HandleFunc("GET /api/expenses", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]Record{
			{ID: "e1", UpdatedAt: now, Doc: json.RawMessage(`{"id":"e1"}`)},
		})
	})

	c := newClient(t, mux)
	require.NoError(t, c.Login(context.Background(), "a@b.c", "pw"))

	recs, err := c.FetchSince(context.Background(), "expenses", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "e1", recs[0].ID)
	assert.True(t, recs[0].UpdatedAt.Equal(now))
}

func TestUpsertAndMarkDeleted(t *testing.T) {
	mux := http.NewServeMux()
	loginHandler(mux)

	var gotUpsert, gotDelete bool
	mux.HandleFunc("PUT /api/expenses/e1", func(w http.ResponseWriter, r *http.Request) {
		var rec Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		assert.Equal(t, "e1", rec.ID)
		gotUpsert = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/expenses/e1/delete", func(w http.ResponseWriter, r *http.Request) {
		gotDelete = true
		w.WriteHeader(http.StatusNoContent)
	})

	c := newClient(t, mux)
	require.NoError(t, c.Login(context.Background(), "a@b.c", "pw"))

	require.NoError(t, c.Upsert(context.Background(), "expenses", Record{ID: "e1", UpdatedAt: time.Now()}))
	require.NoError(t, c.MarkDeleted(context.Background(), "expenses", "e1", time.Now()))
	assert.True(t, gotUpsert)
	assert.True(t, gotDelete)
}
