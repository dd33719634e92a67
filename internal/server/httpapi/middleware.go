package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/server/auth"
)

type ctxKey int

const ownerIDKey ctxKey = iota

// OwnerID returns the authenticated owner id stored by the auth
// middleware.
func OwnerID(ctx context.Context) string {
	id, _ := ctx.Value(ownerIDKey).(string)
	return id
}

// authMiddleware validates the bearer token and stores the owner id in the
// request context. An expired token is reported distinctly so the client
// can refresh instead of failing the session.
func authMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AccessTokenHeaderName)
			if !strings.HasPrefix(header, common.BearerPrefix) {
				writeError(w, http.StatusUnauthorized, common.ErrUnauthorized.Error())
				return
			}
			token := strings.TrimPrefix(header, common.BearerPrefix)

			ownerID, err := auth.OwnerIDFromToken(token, secret)
			if err != nil {
				if errors.Is(err, common.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, common.ErrTokenExpired.Error())
					return
				}
				writeError(w, http.StatusUnauthorized, common.ErrUnauthorized.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID)))
		})
	}
}

// rateLimiter throttles per client address with a token bucket each.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		limiters: map[string]*rate.Limiter{},
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *rateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.limiter(host).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
