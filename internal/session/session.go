package session

import "strings"

// Role is the application role a user declared when signing in.
type Role string

const (
	// RoleAsha is the non-privileged field-reporting role.
	RoleAsha Role = "asha"
	// RoleOfficial is the privileged analytics role, gated by the whitelist.
	RoleOfficial Role = "official"
)

// Valid reports whether the role is one of the known application roles.
func (r Role) Valid() bool {
	return r == RoleAsha || r == RoleOfficial
}

// Session represents the authenticated identity currently in effect on this client.
type Session struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`

	// ASHA worker attributes
	Village string `json:"village,omitempty"`
	Phone   string `json:"phone,omitempty"`

	// Health official attributes
	District    string `json:"district,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// Whitelist is an immutable set of official email addresses, fixed at construction.
// Membership comparison is case-insensitive on the lower-cased email.
type Whitelist struct {
	emails map[string]struct{}
}

// NewWhitelist builds a whitelist from the given emails. Input is copied and
// lower-cased; the resulting set cannot be mutated afterwards.
func NewWhitelist(emails []string) Whitelist {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return Whitelist{emails: set}
}

// Allows reports whether the email is authorized for the official role.
// An empty or missing email is never a member (fails closed).
func (w Whitelist) Allows(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	_, ok := w.emails[email]
	return ok
}

// Len returns the number of whitelisted emails.
func (w Whitelist) Len() int {
	return len(w.emails)
}
