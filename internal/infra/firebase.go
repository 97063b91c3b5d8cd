// README: Firebase ID-token verification resolving the caller uid and platform role.
package infra

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Platform roles carried in the "role" custom claim. Passengers carry no role.
const (
	RoleDriver = "driver"
	RoleAdmin  = "admin"

	roleClaim = "role"
)

var ErrUnknownRole = errors.New("unknown role claim")

// Caller is the identity behind a verified ID token.
type Caller struct {
	UID  string
	Role string
}

type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Caller, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier builds a verifier on the Admin SDK. An empty credentialsFile
// falls back to application-default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Caller, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	role, err := RoleFromClaims(token.Claims)
	if err != nil {
		return nil, fmt.Errorf("token for %s: %w", token.UID, err)
	}
	return &Caller{UID: token.UID, Role: role}, nil
}

// RoleFromClaims reads the role custom claim. A missing claim is a passenger ("");
// anything other than a known role string rejects the token.
func RoleFromClaims(claims map[string]interface{}) (string, error) {
	raw, ok := claims[roleClaim]
	if !ok || raw == nil {
		return "", nil
	}
	role, ok := raw.(string)
	if !ok {
		return "", ErrUnknownRole
	}
	switch role {
	case "", RoleDriver, RoleAdmin:
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
}
