package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
	"github.com/thoknuts/nda-sm-platform/internal/shared/token"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	staffKey
)

func newRequestID() string { return "req_" + uuid.NewString() }

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestContext tags the request with an id and a request-scoped logger.
func (h *handler) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := newRequestID()
		reqLog := h.log.With().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = reqLog.WithContext(ctx)
		w.Header().Set("X-Request-ID", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLog.Debug().
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// requireStaff resolves the bearer token to a staff caller.
func (h *handler) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(bearer) == "" {
			writeDomainError(w, r, domain.ErrUnauthenticated)
			return
		}
		st, err := h.identity.Authenticate(r.Context(), strings.TrimSpace(bearer))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), staffKey, st)
		ctx = zerolog.Ctx(ctx).With().Str("staff_id", st.UserID.String()).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func staffFrom(ctx context.Context) *domain.Staff {
	st, _ := ctx.Value(staffKey).(*domain.Staff)
	return st
}

// kioskSession validates the X-Kiosk-Token header against the event the
// request body names.
func (h *handler) kioskSession(r *http.Request, eventID string) (*domain.KioskSession, error) {
	presented := strings.TrimSpace(r.Header.Get(kioskapi.KioskTokenHeader))
	id, err := uuid.Parse(eventID)
	if presented == "" || err != nil {
		return nil, domain.ErrInvalidKioskSession
	}
	return h.sessions.Validate(r.Context(), presented, id)
}

// rateLimited reports whether the caller has used up its lookup budget. The
// budget belongs to the kiosk session; requests without a token share one per
// client address. A limiter failure lets the request through.
func (h *handler) rateLimited(r *http.Request, scope string) bool {
	if h.limiter == nil {
		return false
	}
	ok, err := h.limiter.Allow(r.Context(), scope+":"+limitKey(r))
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Rate limiter unavailable")
		return false
	}
	return !ok
}

func limitKey(r *http.Request) string {
	if presented := strings.TrimSpace(r.Header.Get(kioskapi.KioskTokenHeader)); presented != "" {
		return "session:" + token.Hash(presented)
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return "ip:" + ip
}
