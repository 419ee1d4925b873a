package identity

import (
	"context"
	"errors"
)

var (
	// ErrSignInFailed is returned when the identity provider rejects a sign-in.
	// The caller must not assume any identity is authorized after this error.
	ErrSignInFailed = errors.New("identity provider sign-in failed")

	// ErrSignOutFailed is returned when the provider-side sign-out fails.
	// Callers treat it as best-effort: local state is cleared regardless.
	ErrSignOutFailed = errors.New("identity provider sign-out failed")
)

// Identity is the provider-side view of a signed-in user. The provider knows
// who the user is but not which application role they chose.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Credential is the result of a successful sign-in.
type Credential struct {
	Identity
	Token string `json:"token"`
}

// Provider wraps an external identity provider. Subscribe delivers a nil
// identity when the provider-side session ends. Events are delivered strictly
// ordered per subscription; order relative to other operations is unspecified.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Credential, error)
	SignOut(ctx context.Context) error
	Subscribe(handler func(*Identity)) (cancel func())
}
