package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sanket-dev/sanket/internal/identity"
	"github.com/sanket-dev/sanket/internal/session"
)

// fakeStore is an in-memory session store for testing
type fakeStore struct {
	s       *session.Session
	warning bool

	loadErr  error
	saveErr  error
	clearErr error
}

func (f *fakeStore) Load() (*session.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.s == nil {
		return nil, nil
	}
	copied := *f.s
	return &copied, nil
}

func (f *fakeStore) Save(s *session.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *s
	f.s = &copied
	return nil
}

func (f *fakeStore) Clear() error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.s = nil
	return nil
}

func (f *fakeStore) SetWarning() error {
	f.warning = true
	return nil
}

func (f *fakeStore) ConsumeWarning() (bool, error) {
	was := f.warning
	f.warning = false
	return was, nil
}

// fakeProvider is a scripted identity provider. Emit delivers events
// synchronously so tests stay deterministic.
type fakeProvider struct {
	cred         *identity.Credential
	signInErr    error
	signOutErr   error
	signOutCalls int
	handlers     []func(*identity.Identity)
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Credential, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	if p.cred != nil {
		return p.cred, nil
	}
	return &identity.Credential{
		Identity: identity.Identity{UID: "uid-" + email, DisplayName: "User", Email: email},
		Token:    "token",
	}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.signOutCalls++
	return p.signOutErr
}

func (p *fakeProvider) Subscribe(handler func(*identity.Identity)) (cancel func()) {
	p.handlers = append(p.handlers, handler)
	return func() {}
}

func (p *fakeProvider) Emit(id *identity.Identity) {
	for _, h := range p.handlers {
		h(id)
	}
}

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) Notify(message string) {
	r.messages = append(r.messages, message)
}

type recordingNavigator struct {
	resets int
}

func (r *recordingNavigator) ResetToLogin() {
	r.resets++
}

var testWhitelist = session.NewWhitelist([]string{"soham.pethkar1710@gmail.com", "dr.mehta@health.gov.in"})

func newTestGuard(store *fakeStore, provider *fakeProvider) (*Guard, *recordingNotifier, *recordingNavigator) {
	notifier := &recordingNotifier{}
	navigator := &recordingNavigator{}
	g := New(store, provider, testWhitelist, notifier, navigator, zerolog.Nop())
	return g, notifier, navigator
}

func TestGuard_UnauthorizedOfficialRejected(t *testing.T) {
	tests := []struct {
		name  string
		login func(g *Guard) (*session.Session, error)
	}{
		{
			name: "form login",
			login: func(g *Guard) (*session.Session, error) {
				return g.LoginLocal(session.RoleOfficial, LocalLogin{
					Name:  "Random Person",
					Email: "random@example.com",
				})
			},
		},
		{
			name: "provider login",
			login: func(g *Guard) (*session.Session, error) {
				return g.LoginWithProvider(context.Background(), session.RoleOfficial, "random@example.com", "pw", Attributes{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			provider := &fakeProvider{}
			g, notifier, navigator := newTestGuard(store, provider)

			s, err := tt.login(g)
			if !errors.Is(err, ErrUnauthorizedRole) {
				t.Fatalf("login error = %v, want ErrUnauthorizedRole", err)
			}
			if s != nil {
				t.Errorf("login returned session %+v, want nil", s)
			}

			if !store.warning {
				t.Error("warning flag not set after unauthorized official attempt")
			}
			if store.s != nil {
				t.Errorf("store still holds session %+v, want empty", store.s)
			}
			if provider.signOutCalls != 1 {
				t.Errorf("provider sign-out called %d times, want 1", provider.signOutCalls)
			}
			if got := g.State(); got != StateUnauthenticated {
				t.Errorf("State() = %v, want unauthenticated", got)
			}
			if g.Session() != nil {
				t.Errorf("Session() = %+v, want nil", g.Session())
			}
			if len(notifier.messages) != 1 {
				t.Errorf("notifier received %d messages, want exactly 1 per incident", len(notifier.messages))
			}
			if navigator.resets != 1 {
				t.Errorf("navigator reset %d times, want 1", navigator.resets)
			}
		})
	}
}

func TestGuard_WhitelistedOfficialAuthorized(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{}
	g, notifier, _ := newTestGuard(store, provider)

	s, err := g.LoginWithProvider(context.Background(), session.RoleOfficial, "soham.pethkar1710@gmail.com", "pw", Attributes{
		District:    "Mumbai",
		Designation: "District Health Officer",
	})
	if err != nil {
		t.Fatalf("LoginWithProvider() error = %v", err)
	}

	if s.Role != session.RoleOfficial {
		t.Errorf("session role = %q, want official", s.Role)
	}
	if s.Email != "soham.pethkar1710@gmail.com" {
		t.Errorf("session email = %q", s.Email)
	}
	if s.District != "Mumbai" {
		t.Errorf("session district = %q, want Mumbai", s.District)
	}
	if g.State() != StateAuthorized {
		t.Errorf("State() = %v, want authorized", g.State())
	}
	if store.s == nil || store.s.Email != s.Email {
		t.Errorf("store session = %+v, want persisted copy of %+v", store.s, s)
	}
	if store.warning {
		t.Error("warning flag set on authorized login")
	}
	if len(notifier.messages) != 0 {
		t.Errorf("notifier received %v on authorized login", notifier.messages)
	}
}

func TestGuard_WhitelistCaseInsensitive(t *testing.T) {
	store := &fakeStore{}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	s, err := g.LoginWithProvider(context.Background(), session.RoleOfficial, "Soham.Pethkar1710@GMAIL.com", "pw", Attributes{})
	if err != nil {
		t.Fatalf("LoginWithProvider() error = %v, whitelist must compare lower-cased", err)
	}
	if s.Role != session.RoleOfficial {
		t.Errorf("session role = %q, want official", s.Role)
	}
}

func TestGuard_AshaLoginNeverWhitelisted(t *testing.T) {
	store := &fakeStore{}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	s, err := g.LoginLocal(session.RoleAsha, LocalLogin{
		Name:  "Priya Sharma",
		Email: "priya@asha.gov.in",
		Attributes: Attributes{
			Village: "Dharavi",
			Phone:   "+91-9000000000",
		},
	})
	if err != nil {
		t.Fatalf("LoginLocal() error = %v", err)
	}
	if s.Role != session.RoleAsha {
		t.Errorf("session role = %q, want asha", s.Role)
	}
	if s.ID == "" {
		t.Error("demo login did not generate a local id")
	}
	if s.Village != "Dharavi" {
		t.Errorf("session village = %q, want Dharavi", s.Village)
	}
}

func TestGuard_BootWithStoredAshaSession(t *testing.T) {
	store := &fakeStore{s: &session.Session{
		ID:      "id-1",
		Name:    "Priya Sharma",
		Email:   "priya@asha.gov.in",
		Role:    session.RoleAsha,
		Village: "Dharavi",
	}}
	g, notifier, _ := newTestGuard(store, &fakeProvider{})

	s := g.Boot()
	if s == nil {
		t.Fatal("Boot() = nil, want stored asha session")
	}
	if s.Email != "priya@asha.gov.in" || s.Role != session.RoleAsha {
		t.Errorf("Boot() = %+v", s)
	}
	if s.Village != "Dharavi" {
		t.Errorf("Boot() lost village attribute: %+v", s)
	}
	if store.warning {
		t.Error("warning flag set on clean asha boot")
	}
	if len(notifier.messages) != 0 {
		t.Errorf("notifier received %v on clean boot", notifier.messages)
	}
}

func TestGuard_BootRejectsStoredUnauthorizedOfficial(t *testing.T) {
	// A persisted session violating the whitelist invariant must be destroyed
	// within one reconciliation step, never rendered.
	store := &fakeStore{s: &session.Session{
		ID:    "id-2",
		Email: "random@example.com",
		Role:  session.RoleOfficial,
	}}
	provider := &fakeProvider{}
	g, _, navigator := newTestGuard(store, provider)

	s := g.Boot()
	if s != nil {
		t.Fatalf("Boot() = %+v, want nil for unauthorized stored official", s)
	}
	if store.s != nil {
		t.Errorf("store still holds session %+v", store.s)
	}
	if !store.warning {
		t.Error("warning flag not set")
	}
	if provider.signOutCalls != 1 {
		t.Errorf("provider sign-out called %d times, want 1", provider.signOutCalls)
	}
	if navigator.resets != 1 {
		t.Errorf("navigator reset %d times, want 1", navigator.resets)
	}
}

func TestGuard_BootWithEmptyStore(t *testing.T) {
	store := &fakeStore{}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	if s := g.Boot(); s != nil {
		t.Errorf("Boot() = %+v, want nil", s)
	}
	if g.State() != StateUnauthenticated {
		t.Errorf("State() = %v, want unauthenticated", g.State())
	}
}

func TestGuard_BootFailsClosedOnStoreError(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("disk gone")}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	if s := g.Boot(); s != nil {
		t.Errorf("Boot() = %+v, want nil on store failure", s)
	}
	if g.State() != StateUnauthenticated {
		t.Errorf("State() = %v, want unauthenticated", g.State())
	}
}

func TestGuard_ProviderEventWithoutSessionDoesNotAuthenticate(t *testing.T) {
	// A stale provider session must not silently grant access before the user
	// has chosen a role in this app.
	store := &fakeStore{}
	provider := &fakeProvider{}
	g, _, _ := newTestGuard(store, provider)
	g.WatchProvider()

	provider.Emit(&identity.Identity{UID: "u1", DisplayName: "Someone", Email: "someone@example.com"})

	if g.Session() != nil {
		t.Errorf("Session() = %+v, want nil", g.Session())
	}
	if g.State() != StateUnauthenticated {
		t.Errorf("State() = %v, want unauthenticated", g.State())
	}
	if store.s != nil {
		t.Errorf("store holds session %+v, want empty", store.s)
	}
}

func TestGuard_ProviderEventUsesStoredRoleAsIntent(t *testing.T) {
	store := &fakeStore{s: &session.Session{
		ID:      "id-3",
		Email:   "priya@asha.gov.in",
		Role:    session.RoleAsha,
		Village: "Kalyan",
	}}
	provider := &fakeProvider{}
	g, _, _ := newTestGuard(store, provider)
	g.WatchProvider()

	provider.Emit(&identity.Identity{UID: "provider-uid", DisplayName: "Priya S", Email: "priya@asha.gov.in"})

	s := g.Session()
	if s == nil {
		t.Fatal("Session() = nil after provider event with stored session")
	}
	if s.Role != session.RoleAsha {
		t.Errorf("session role = %q, want asha (stored intent)", s.Role)
	}
	if s.ID != "provider-uid" {
		t.Errorf("session id = %q, want provider uid", s.ID)
	}
	if s.Village != "Kalyan" {
		t.Errorf("session village = %q, want merged stored attribute", s.Village)
	}
}

func TestGuard_ProviderEventRejectsUnauthorizedStoredOfficialIntent(t *testing.T) {
	store := &fakeStore{s: &session.Session{
		ID:    "id-4",
		Email: "random@example.com",
		Role:  session.RoleOfficial,
	}}
	provider := &fakeProvider{}
	g, _, _ := newTestGuard(store, provider)
	g.WatchProvider()

	provider.Emit(&identity.Identity{UID: "u", Email: "random@example.com"})

	if g.Session() != nil {
		t.Errorf("Session() = %+v, want nil", g.Session())
	}
	if !store.warning {
		t.Error("warning flag not set")
	}
	if store.s != nil {
		t.Errorf("store holds session %+v, want empty", store.s)
	}
}

func TestGuard_OrderIndependence(t *testing.T) {
	stored := &session.Session{
		ID:      "id-5",
		Name:    "Priya Sharma",
		Email:   "priya@asha.gov.in",
		Role:    session.RoleAsha,
		Village: "Thane",
	}
	event := &identity.Identity{UID: "id-5", DisplayName: "Priya Sharma", Email: "priya@asha.gov.in"}

	run := func(eventFirst bool) *session.Session {
		store := &fakeStore{s: stored}
		provider := &fakeProvider{}
		g, _, _ := newTestGuard(store, provider)
		g.WatchProvider()

		if eventFirst {
			provider.Emit(event)
			g.Boot()
		} else {
			g.Boot()
			provider.Emit(event)
		}
		return g.Session()
	}

	a := run(true)
	b := run(false)

	if a == nil || b == nil {
		t.Fatalf("sessions = %+v / %+v, want non-nil in both orders", a, b)
	}
	if *a != *b {
		t.Errorf("event-then-boot = %+v, boot-then-event = %+v, want identical", a, b)
	}
}

func TestGuard_ReconciliationIdempotent(t *testing.T) {
	store := &fakeStore{s: &session.Session{
		ID:    "id-6",
		Email: "priya@asha.gov.in",
		Role:  session.RoleAsha,
	}}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	first := g.Boot()
	second := g.Boot()

	if first == nil || second == nil {
		t.Fatalf("Boot() = %+v then %+v, want non-nil both times", first, second)
	}
	if *first != *second {
		t.Errorf("Boot() diverged across runs: %+v vs %+v", first, second)
	}
}

func TestGuard_RejectionIdempotent(t *testing.T) {
	login := LocalLogin{Name: "R", Email: "random@example.com"}
	store := &fakeStore{}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	if _, err := g.LoginLocal(session.RoleOfficial, login); !errors.Is(err, ErrUnauthorizedRole) {
		t.Fatalf("first attempt error = %v", err)
	}
	if _, err := g.LoginLocal(session.RoleOfficial, login); !errors.Is(err, ErrUnauthorizedRole) {
		t.Fatalf("second attempt error = %v", err)
	}
	if store.s != nil || g.Session() != nil {
		t.Error("rejection left session state behind")
	}
}

func TestGuard_SignInFailureLeavesStateUntouched(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{signInErr: identity.ErrSignInFailed}
	g, notifier, _ := newTestGuard(store, provider)

	_, err := g.LoginWithProvider(context.Background(), session.RoleAsha, "a@b.c", "bad", Attributes{})
	if !errors.Is(err, identity.ErrSignInFailed) {
		t.Fatalf("error = %v, want ErrSignInFailed", err)
	}
	if g.Session() != nil || store.s != nil {
		t.Error("failed sign-in changed session state")
	}
	if store.warning {
		t.Error("failed sign-in set the warning flag")
	}
	if len(notifier.messages) != 0 {
		t.Errorf("notifier received %v on sign-in failure", notifier.messages)
	}
}

func TestGuard_LogoutClearsDespiteSignOutFailure(t *testing.T) {
	store := &fakeStore{s: &session.Session{ID: "id-7", Email: "priya@asha.gov.in", Role: session.RoleAsha}}
	provider := &fakeProvider{signOutErr: identity.ErrSignOutFailed}
	g, _, _ := newTestGuard(store, provider)
	g.Boot()

	g.Logout(context.Background())

	if store.s != nil {
		t.Errorf("store holds session %+v after logout", store.s)
	}
	if g.Session() != nil {
		t.Errorf("Session() = %+v after logout", g.Session())
	}
	if g.State() != StateLoggedOut {
		t.Errorf("State() = %v, want logged_out", g.State())
	}
	if provider.signOutCalls != 1 {
		t.Errorf("provider sign-out called %d times, want 1", provider.signOutCalls)
	}
}

func TestGuard_EmptyEmailOfficialFailsClosed(t *testing.T) {
	store := &fakeStore{}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	_, err := g.LoginLocal(session.RoleOfficial, LocalLogin{Name: "No Email"})
	if !errors.Is(err, ErrUnauthorizedRole) {
		t.Fatalf("error = %v, want ErrUnauthorizedRole for empty email", err)
	}
}

func TestGuard_RejectingStateNeverObservable(t *testing.T) {
	g, _, _ := newTestGuard(&fakeStore{}, &fakeProvider{})
	g.state = StateRejectingUnauthorized

	if got := g.State(); got != StateUnauthenticated {
		t.Errorf("State() = %v, transient rejection state must never be exposed", got)
	}
}

func TestGuard_WarningFlagConsumedOnceAfterRejection(t *testing.T) {
	store := &fakeStore{}
	g, _, _ := newTestGuard(store, &fakeProvider{})

	_, _ = g.LoginLocal(session.RoleOfficial, LocalLogin{Email: "random@example.com"})

	set, err := store.ConsumeWarning()
	if err != nil {
		t.Fatalf("ConsumeWarning() error = %v", err)
	}
	if !set {
		t.Error("warning flag not visible after rejection")
	}

	set, _ = store.ConsumeWarning()
	if set {
		t.Error("warning flag visible twice, must be one-shot")
	}
}
