// Package guard reconciles the three independently-arriving sources of truth
// about who is signed in — the identity provider's event stream, the persisted
// local session, and the role the user declared at sign-in — into a single
// authorization decision. Every ambiguity and error path resolves to the
// unauthenticated state, never to the privileged one.
package guard

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/sanket-dev/sanket/internal/identity"
	"github.com/sanket-dev/sanket/internal/session"
)

// ErrUnauthorizedRole is returned when an official login is attempted with an
// email that is not on the whitelist. The rejection side effects (warning flag,
// cleared store, provider sign-out, reset to login) have already run when the
// caller sees this error.
var ErrUnauthorizedRole = errors.New("email is not authorized for the official role")

// State is the guard's externally observable authorization state.
type State int

const (
	// StateUnauthenticated means no session is in effect.
	StateUnauthenticated State = iota
	// StateAuthorized means a session passed reconciliation.
	StateAuthorized
	// StateRejectingUnauthorized is transient: entered and exited within one
	// reconciliation pass. It is never returned by State() and never routed.
	StateRejectingUnauthorized
	// StateLoggedOut is reached only via an explicit logout action.
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateAuthorized:
		return "authorized"
	case StateRejectingUnauthorized:
		return "rejecting_unauthorized"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unauthenticated"
	}
}

// Notifier delivers a user-visible message at most once per incident.
type Notifier interface {
	Notify(message string)
}

// Navigator returns the client to the login view. It replaces the hard
// page-reload recovery of browser clients with an explicit capability so state
// transitions stay observable in tests.
type Navigator interface {
	ResetToLogin()
}

type noopNotifier struct{}

func (noopNotifier) Notify(string) {}

type noopNavigator struct{}

func (noopNavigator) ResetToLogin() {}

// Attributes carries the role-specific profile fields captured at sign-in.
type Attributes struct {
	Village     string
	Phone       string
	District    string
	Designation string
}

// LocalLogin is a form or demo/offline login: an identity asserted by the user
// rather than resolved by the provider. It receives a locally generated id.
type LocalLogin struct {
	Name  string
	Email string
	Attributes
}

// candidate is the identity under consideration for one reconciliation pass.
type candidate struct {
	uid   string
	name  string
	email string
}

// Guard is the authorization reconciliation state machine. All entry points
// serialize on one mutex: a reconciliation pass runs to completion before the
// next begins, which makes the persisted session single-writer-at-a-time.
type Guard struct {
	store     session.Store
	provider  identity.Provider
	whitelist session.Whitelist
	notifier  Notifier
	navigator Navigator
	logger    zerolog.Logger

	mu      sync.Mutex
	state   State
	current *session.Session
}

// New creates a guard. The whitelist is fixed for the guard's lifetime.
// A nil notifier or navigator falls back to a no-op implementation.
func New(store session.Store, provider identity.Provider, whitelist session.Whitelist, notifier Notifier, navigator Navigator, logger zerolog.Logger) *Guard {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if navigator == nil {
		navigator = noopNavigator{}
	}
	return &Guard{
		store:     store,
		provider:  provider,
		whitelist: whitelist,
		notifier:  notifier,
		navigator: navigator,
		logger:    logger,
		state:     StateUnauthenticated,
	}
}

// Boot reconciles the persisted session before any asynchronous event arrives.
// The stored session's role serves as the declared role intent.
func (g *Guard) Boot() *session.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored, err := g.store.Load()
	if err != nil {
		g.logger.Warn().Err(err).Msg("Session load failed at boot, treating as no session")
		stored = nil
	}
	if stored == nil {
		g.current = nil
		g.state = StateUnauthenticated
		return nil
	}

	return g.reconcile(candidate{uid: stored.ID, name: stored.Name, email: stored.Email}, stored.Role, stored)
}

// WatchProvider subscribes the guard to the provider's session-change events.
func (g *Guard) WatchProvider() (cancel func()) {
	return g.provider.Subscribe(g.HandleProviderEvent)
}

// HandleProviderEvent reconciles one provider session-change event.
//
// An identity arriving without a persisted application session never
// auto-authenticates: the user has not chosen a role in this app, so a stale
// provider session must not silently grant access. An identity arriving with a
// persisted session reconciles using the stored session's declared role.
func (g *Guard) HandleProviderEvent(id *identity.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored, err := g.store.Load()
	if err != nil {
		g.logger.Warn().Err(err).Msg("Session load failed during provider event, treating as no session")
		stored = nil
	}

	if stored == nil {
		if id != nil {
			g.logger.Info().Str("email", id.Email).Msg("Provider identity present without application session, not auto-authenticating")
		}
		g.current = nil
		if g.state != StateLoggedOut {
			g.state = StateUnauthenticated
		}
		return
	}

	if id == nil {
		// Provider-side session ended. The application session remains the
		// local authority; explicit logout is the path that destroys it.
		g.reconcile(candidate{uid: stored.ID, name: stored.Name, email: stored.Email}, stored.Role, stored)
		return
	}

	g.reconcile(candidate{uid: id.UID, name: id.DisplayName, email: id.Email}, stored.Role, stored)
}

// LoginWithProvider signs in through the identity provider and reconciles the
// resulting identity under the declared role intent. A provider failure leaves
// the session state untouched.
func (g *Guard) LoginWithProvider(ctx context.Context, intent session.Role, email, password string, attrs Attributes) (*session.Session, error) {
	cred, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.reconcile(candidate{uid: cred.UID, name: cred.DisplayName, email: cred.Email}, intent, attrs.asSession())
	if s == nil {
		return nil, ErrUnauthorizedRole
	}
	return s, nil
}

// LoginLocal performs a form or demo/offline login with a locally generated id.
func (g *Guard) LoginLocal(intent session.Role, login LocalLogin) (*session.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.reconcile(candidate{uid: ulid.Make().String(), name: login.Name, email: login.Email}, intent, login.Attributes.asSession())
	if s == nil {
		return nil, ErrUnauthorizedRole
	}
	return s, nil
}

// Logout signs out of the provider (best-effort) and unconditionally clears
// the local session. A provider failure never blocks local cleanup.
func (g *Guard) Logout(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.provider.SignOut(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("Provider sign-out failed, clearing local session anyway")
	}

	if err := g.store.Clear(); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to clear session store on logout")
	}

	g.current = nil
	g.state = StateLoggedOut
}

// Session returns the current authorized session, or nil.
func (g *Guard) Session() *session.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// State returns the externally observable state. The transient rejection state
// is never exposed: it always resolves within the pass that entered it.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateRejectingUnauthorized {
		return StateUnauthenticated
	}
	return g.state
}

// reconcile runs one reconciliation pass. Callers hold g.mu.
//
// The pass is idempotent and order-independent: the same candidate, intent and
// previous attributes always produce the same terminal state, whether they
// arrived via boot, a provider event, or an explicit login.
func (g *Guard) reconcile(cand candidate, intent session.Role, prev *session.Session) *session.Session {
	if intent == session.RoleOfficial && !g.whitelist.Allows(cand.email) {
		g.rejectUnauthorized(cand.email)
		return nil
	}

	s := &session.Session{
		ID:    cand.uid,
		Name:  cand.name,
		Email: cand.email,
		Role:  intent,
	}
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}
	if prev != nil {
		s.Village = prev.Village
		s.Phone = prev.Phone
		s.District = prev.District
		s.Designation = prev.Designation
	}

	if err := g.store.Save(s); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to persist session, continuing with in-memory session")
	}

	g.current = s
	g.state = StateAuthorized

	g.logger.Debug().
		Str("email", s.Email).
		Str("role", string(s.Role)).
		Msg("Session reconciled")

	return s
}

// rejectUnauthorized handles a detected unauthorized-official attempt: set the
// one-shot warning, destroy local state, sign out of the provider (result
// ignored), and return to the login view. The transient rejection state is
// entered and exited within this single pass.
func (g *Guard) rejectUnauthorized(email string) {
	g.state = StateRejectingUnauthorized

	g.logger.Warn().Str("email", email).Msg("Unauthorized official role attempt rejected")

	if err := g.store.SetWarning(); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to set unauthorized-role warning flag")
	}
	if err := g.store.Clear(); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to clear session store during rejection")
	}
	if err := g.provider.SignOut(context.Background()); err != nil {
		g.logger.Debug().Err(err).Msg("Provider sign-out failed during rejection, ignored")
	}

	g.current = nil
	g.state = StateUnauthenticated

	g.notifier.Notify("This account is not authorized for the official dashboard. You have been signed out.")
	g.navigator.ResetToLogin()
}

// asSession lifts login attributes into the session shape used for merging.
func (a Attributes) asSession() *session.Session {
	return &session.Session{
		Village:     a.Village,
		Phone:       a.Phone,
		District:    a.District,
		Designation: a.Designation,
	}
}
