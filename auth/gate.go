// Package auth decides whether a request may write to the catalog.
//
// A Gate holds an ordered list of Authorizers and accepts the request as soon
// as one of them does. A failing strategy never aborts the chain: an ID token
// that does not verify is treated as no identity, and the next strategy (the
// shared secret) still gets its turn.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	log "github.com/sirupsen/logrus"

	"storefront/model"
)

// SecretHeader carries the shared admin secret.
const SecretHeader = "x-admin-secret"

// Credentials are the optional proofs a caller can present.
type Credentials struct {
	IDToken string
	Secret  string
}

// CredentialsFromRequest extracts a bearer ID token and the admin secret header.
func CredentialsFromRequest(r *http.Request) Credentials {
	c := Credentials{Secret: r.Header.Get(SecretHeader)}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		c.IDToken = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c
}

type Authorizer interface {
	Authorize(ctx context.Context, c Credentials) bool
}

type AuthorizerFunc func(ctx context.Context, c Credentials) bool

func (f AuthorizerFunc) Authorize(ctx context.Context, c Credentials) bool { return f(ctx, c) }

type Gate struct {
	authorizers []Authorizer
}

func NewGate(authorizers ...Authorizer) *Gate {
	return &Gate{authorizers: authorizers}
}

// Authorize returns nil on the first authorizer that accepts, otherwise
// model.ErrUnauthorized.
func (g *Gate) Authorize(ctx context.Context, c Credentials) error {
	for _, a := range g.authorizers {
		if a.Authorize(ctx, c) {
			return nil
		}
	}
	return model.ErrUnauthorized
}

// TokenVerifier is satisfied by *firebase auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// ClaimAuthorizer accepts a verified ID token whose claim is boolean true.
func ClaimAuthorizer(v TokenVerifier, claim string) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, c Credentials) bool {
		if c.IDToken == "" {
			return false
		}
		tok, err := v.VerifyIDToken(ctx, c.IDToken)
		if err != nil {
			log.WithError(err).Debug("id token rejected, treating caller as anonymous")
			return false
		}
		granted, _ := tok.Claims[claim].(bool)
		return granted
	})
}

// SecretAuthorizer accepts an exact match of a non-empty shared secret.
func SecretAuthorizer(secret string) Authorizer {
	return AuthorizerFunc(func(_ context.Context, c Credentials) bool {
		if secret == "" || c.Secret == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(secret), []byte(c.Secret)) == 1
	})
}
