package view

import (
	"testing"

	"github.com/sanket-dev/sanket/internal/session"
)

func TestRoute(t *testing.T) {
	wl := session.NewWhitelist([]string{"soham.pethkar1710@gmail.com"})

	tests := []struct {
		name string
		s    *session.Session
		want View
	}{
		{
			name: "nil session renders login",
			s:    nil,
			want: LoginView,
		},
		{
			name: "asha session renders asha view",
			s:    &session.Session{Email: "priya@asha.gov.in", Role: session.RoleAsha},
			want: AshaView,
		},
		{
			name: "whitelisted official renders official view",
			s:    &session.Session{Email: "soham.pethkar1710@gmail.com", Role: session.RoleOfficial},
			want: OfficialView,
		},
		{
			name: "whitelist comparison ignores case",
			s:    &session.Session{Email: "Soham.Pethkar1710@Gmail.com", Role: session.RoleOfficial},
			want: OfficialView,
		},
		{
			name: "leaked unauthorized official downgraded to asha view",
			s:    &session.Session{Email: "random@example.com", Role: session.RoleOfficial},
			want: AshaView,
		},
		{
			name: "official with empty email downgraded",
			s:    &session.Session{Role: session.RoleOfficial},
			want: AshaView,
		},
		{
			name: "unknown role renders asha view, never official",
			s:    &session.Session{Email: "soham.pethkar1710@gmail.com", Role: session.Role("admin")},
			want: AshaView,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.s, wl); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoute_EmptyWhitelistFailsClosed(t *testing.T) {
	wl := session.NewWhitelist(nil)
	s := &session.Session{Email: "soham.pethkar1710@gmail.com", Role: session.RoleOfficial}

	if got := Route(s, wl); got != AshaView {
		t.Errorf("Route() = %v with empty whitelist, want asha view", got)
	}
}
