package handlers

import (
	"net/http"
	"strings"

	"github.com/palme-foods/storefront/internal/domain"
	"github.com/palme-foods/storefront/internal/platform/httpx"
	"github.com/palme-foods/storefront/internal/platform/requestctx"
)

const sessionHeader = "X-Session-ID"

// SessionMiddleware requires the session header that keys the shopper's cart
// and places it on the request context.
func SessionMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
			if sessionID == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("session_required", sessionHeader+" header is required", http.StatusBadRequest))
				return
			}
			ctx := requestctx.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionID(r *http.Request) string {
	return requestctx.SessionID(r.Context())
}

// settingsReader is the slice of the settings client the maintenance gate needs.
type settingsReader interface {
	Current() domain.DeliverySettings
}

// MaintenanceMiddleware rejects storefront traffic with 503 while the
// maintenance_mode setting is on. Health endpoints sit outside the gated
// groups and stay reachable.
func MaintenanceMiddleware(settings settingsReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if settings != nil && settings.Current().MaintenanceMode {
				httpx.WriteError(r.Context(), w, httpx.NewError("maintenance", "store is temporarily down for maintenance", http.StatusServiceUnavailable))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
