// Package view maps the reconciled session to the view the client renders.
package view

import "github.com/sanket-dev/sanket/internal/session"

// View identifies which client surface to render.
type View string

const (
	// LoginView is rendered when no session is in effect.
	LoginView View = "login"
	// AshaView is the field-reporting surface.
	AshaView View = "asha"
	// OfficialView is the privileged analytics dashboard.
	OfficialView View = "official"
)

// Route derives the view to render from the current session. It is total and
// side-effect free: it never touches storage or the identity provider.
//
// The whitelist check here is deliberately independent of the guard's: even if
// an unauthorized official session somehow survived reconciliation, it renders
// as the non-privileged view, never as the official one.
func Route(s *session.Session, whitelist session.Whitelist) View {
	if s == nil {
		return LoginView
	}

	if s.Role == session.RoleOfficial {
		if whitelist.Allows(s.Email) {
			return OfficialView
		}
		return AshaView
	}

	return AshaView
}
