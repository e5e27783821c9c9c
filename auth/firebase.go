package auth

import (
	"context"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
)

// NewFirebaseAuth builds an ID-token verifying client. An empty projectID
// lets the SDK resolve it from the environment.
func NewFirebaseAuth(ctx context.Context, projectID string) (*fbauth.Client, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init firebase app")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "init firebase auth")
	}
	return client, nil
}

// ClaimsAdmin is the subset of the Firebase auth client used to grant claims.
type ClaimsAdmin interface {
	GetUserByEmail(ctx context.Context, email string) (*fbauth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
}

// GrantClaim sets claim=true on the user with the given email, keeping any
// custom claims already present.
func GrantClaim(ctx context.Context, c ClaimsAdmin, email, claim string) error {
	user, err := c.GetUserByEmail(ctx, email)
	if err != nil {
		return errors.Wrapf(err, "look up %s", email)
	}
	claims := make(map[string]interface{}, len(user.CustomClaims)+1)
	for k, v := range user.CustomClaims {
		claims[k] = v
	}
	claims[claim] = true
	if err := c.SetCustomUserClaims(ctx, user.UID, claims); err != nil {
		return errors.Wrapf(err, "set claims for %s", email)
	}
	return nil
}
