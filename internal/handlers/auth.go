package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/palme-foods/storefront/internal/gateway"
	"github.com/palme-foods/storefront/internal/platform/httpx"
)

const maxAuthBodySize = 8 * 1024

// AuthHandlers proxies account endpoints to the commerce API and derives the
// checkout contact prefill from a bearer token.
type AuthHandlers struct {
	auth *gateway.AuthClient
}

// NewAuthHandlers constructs the auth handlers.
func NewAuthHandlers(auth *gateway.AuthClient) *AuthHandlers {
	return &AuthHandlers{auth: auth}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Get("/contact-seed", h.contactSeed)
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, maxAuthBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	session, err := h.auth.Login(ctx, body.Email, body.Password)
	if err != nil {
		h.writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(session))
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, maxAuthBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	session, err := h.auth.Register(ctx, body.Name, body.Email, body.Phone, body.Password)
	if err != nil {
		h.writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, sessionPayload(session))
}

// sessionPayload returns the session plus the checkout contact prefill so
// the client lands on checkout with the form already seeded.
func sessionPayload(session gateway.Session) map[string]any {
	return map[string]any{
		"user":    session.User,
		"token":   session.Token,
		"contact": contactPayload(gateway.SeedFromUser(session.User)),
	}
}

func contactPayload(seed gateway.ContactSeed) map[string]string {
	return map[string]string{
		"firstName": seed.FirstName,
		"email":     seed.Email,
		"phone":     seed.Phone,
	}
}

func (h *AuthHandlers) contactSeed(w http.ResponseWriter, r *http.Request) {
	seed, ok := gateway.ContactSeedFromToken(r.Header.Get("Authorization"))
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "a bearer token is required", http.StatusUnauthorized))
		return
	}
	writeJSONResponse(w, http.StatusOK, contactPayload(seed))
}

func (h *AuthHandlers) writeAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrGatewayInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, gateway.ErrAuthRejected):
		httpx.WriteError(ctx, w, httpx.NewError("auth_rejected", err.Error(), http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "authentication failed", http.StatusBadGateway))
	}
}
