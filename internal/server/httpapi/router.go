// Package httpapi exposes the sync, auth and receipt endpoints over
// HTTP/JSON.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/walletsync/internal/logging"
	"github.com/dmitrijs2005/walletsync/internal/server/services"
)

type api struct {
	users    *services.UserService
	records  *services.RecordService
	receipts Presigner
	log      logging.Logger
}

// NewRouter assembles the HTTP API. All record and receipt endpoints sit
// behind token auth; register, login and refresh do not.
func NewRouter(users *services.UserService, records *services.RecordService, receipts Presigner,
	jwtSecret []byte, rps float64, burst int, log logging.Logger) http.Handler {

	a := &api{users: users, records: records, receipts: receipts, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(newRateLimiter(rps, burst).middleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/refresh", a.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(jwtSecret))

			r.Get("/ping", a.handlePing)
			r.Post("/receipts/presign", a.handlePresignReceipt)

			r.Put("/{collection}/{id}", a.handleUpsertRecord)
			r.Post("/{collection}/{id}/delete", a.handleDeleteRecord)
			r.Get("/{collection}", a.handleListRecords)
		})
	})

	return r
}
