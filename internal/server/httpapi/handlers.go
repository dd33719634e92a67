package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/server/models"
)

// Presigner issues pre-signed object-storage URLs for receipt uploads.
type Presigner interface {
	PresignPut(ctx context.Context, ownerID string) (key, url string, err error)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type deleteRequest struct {
	DeletedAt time.Time `json:"deleted_at"`
}

type presignResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service-layer errors to HTTP statuses. The 401
// body carries the exact error text so the client can tell an expired
// token from a rejected one.
func (a *api) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, common.ErrNotFound.Error())
	case errors.Is(err, common.ErrUserExists):
		writeError(w, http.StatusConflict, common.ErrUserExists.Error())
	case errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, common.ErrUnauthorized.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, common.ErrInvalidCredentials.Error())
	default:
		a.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := a.users.Register(r.Context(), req.Email, req.Password); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tp, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Bad email and bad password are indistinguishable on purpose.
		if errors.Is(err, common.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, common.ErrInvalidCredentials.Error())
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tp)
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tp, err := a.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tp)
}

func (a *api) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if !models.Collections[collection] {
		writeError(w, http.StatusBadRequest, "unknown collection")
		return
	}

	var rec models.Record
	if !decodeBody(w, r, &rec) {
		return
	}
	rec.OwnerID = OwnerID(r.Context())
	rec.Collection = collection
	rec.ID = chi.URLParam(r, "id")
	if rec.UpdatedAt.IsZero() {
		writeError(w, http.StatusBadRequest, "record updated_at is required")
		return
	}

	if err := a.records.Upsert(r.Context(), &rec); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if !models.Collections[collection] {
		writeError(w, http.StatusBadRequest, "unknown collection")
		return
	}

	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := a.records.MarkDeleted(r.Context(), OwnerID(r.Context()), collection, chi.URLParam(r, "id"), req.DeletedAt)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleListRecords(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if !models.Collections[collection] {
		writeError(w, http.StatusBadRequest, "unknown collection")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
	}

	recs, err := a.records.FetchSince(r.Context(), OwnerID(r.Context()), collection, since)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*models.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *api) handlePresignReceipt(w http.ResponseWriter, r *http.Request) {
	key, url, err := a.receipts.PresignPut(r.Context(), OwnerID(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{Key: key, URL: url})
}
