package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/palme-foods/storefront/internal/domain"
)

// ErrAuthRejected is returned when the commerce API declines a login or
// registration attempt.
var ErrAuthRejected = errors.New("gateway: auth rejected")

// Session is the authenticated account state returned by the auth endpoints.
type Session struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// AuthClient wraps the commerce API's account endpoints.
type AuthClient struct {
	client *Client
}

// AuthClientDeps bundles dependencies for NewAuthClient.
type AuthClientDeps struct {
	Client *Client
}

// NewAuthClient builds an auth client.
func NewAuthClient(deps AuthClientDeps) (*AuthClient, error) {
	if deps.Client == nil {
		return nil, ErrGatewayInvalidInput
	}
	return &AuthClient{client: deps.Client}, nil
}

// Login exchanges credentials for a session.
func (a *AuthClient) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", ErrGatewayInvalidInput)
	}

	var session Session
	err := a.client.doJSON(ctx, "POST", "/api/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return Session{}, translateAuthError(err)
	}

	a.client.logger(ctx, "gateway.auth.login", map[string]any{
		"userId": session.User.ID,
	})
	return session, nil
}

// Register creates an account and returns the resulting session.
func (a *AuthClient) Register(ctx context.Context, name, email, phone, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: name, email, and password are required", ErrGatewayInvalidInput)
	}

	var session Session
	err := a.client.doJSON(ctx, "POST", "/api/auth/register", nil, map[string]string{
		"name":     name,
		"email":    email,
		"phone":    strings.TrimSpace(phone),
		"password": password,
	}, &session)
	if err != nil {
		return Session{}, translateAuthError(err)
	}

	a.client.logger(ctx, "gateway.auth.registered", map[string]any{
		"userId": session.User.ID,
	})
	return session, nil
}

func translateAuthError(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Message != "" {
			return fmt.Errorf("%w: %s", ErrAuthRejected, statusErr.Message)
		}
		return ErrAuthRejected
	}
	return err
}

type contactClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// ContactSeed holds the contact fields prefilled into checkout for a
// returning shopper. First name only, matching the checkout form.
type ContactSeed struct {
	FirstName string
	Email     string
	Phone     string
}

// ContactSeedFromToken extracts contact fields from a bearer token without
// verifying its signature. The token is trusted only for prefill; the
// commerce API re-authenticates every call that matters.
func ContactSeedFromToken(token string) (ContactSeed, bool) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ContactSeed{}, false
	}

	claims := &contactClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ContactSeed{}, false
	}

	seed := ContactSeed{
		Email: strings.TrimSpace(claims.Email),
		Phone: strings.TrimSpace(claims.Phone),
	}
	if name := strings.TrimSpace(claims.Name); name != "" {
		seed.FirstName = strings.Fields(name)[0]
	}
	if seed.Email == "" && seed.FirstName == "" && seed.Phone == "" {
		return ContactSeed{}, false
	}
	return seed, true
}

// SeedFromUser derives the checkout prefill from a known account record.
func SeedFromUser(user domain.User) ContactSeed {
	seed := ContactSeed{
		Email: strings.TrimSpace(user.Email),
		Phone: strings.TrimSpace(user.Phone),
	}
	if name := strings.TrimSpace(user.Name); name != "" {
		seed.FirstName = strings.Fields(name)[0]
	}
	return seed
}
