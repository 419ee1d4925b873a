package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	cliauth "github.com/sanket-dev/sanket/internal/cli/auth"
	"github.com/sanket-dev/sanket/internal/cli/client"
)

// APIProvider implements Provider against the Sanket gateway's auth endpoints.
// The JWT credential is persisted in the OS keyring so a provider-side session
// survives client restarts independently of the application session.
type APIProvider struct {
	api        *client.Client
	serverAddr string
	tokens     cliauth.TokenStore
	logger     zerolog.Logger

	events    *dispatcher
	probeOnce sync.Once
}

// NewAPIProvider creates a gateway-backed identity provider.
func NewAPIProvider(api *client.Client, serverAddr string, tokens cliauth.TokenStore, logger zerolog.Logger) *APIProvider {
	return &APIProvider{
		api:        api,
		serverAddr: serverAddr,
		tokens:     tokens,
		logger:     logger,
		events:     newDispatcher(),
	}
}

// SignIn authenticates against the gateway and persists the credential.
func (p *APIProvider) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	resp, err := p.api.Login(email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignInFailed, err)
	}

	if err := p.tokens.SaveToken(p.serverAddr, resp.Token); err != nil {
		// The credential is still usable for this run; persistence is advisory.
		p.logger.Warn().Err(err).Msg("Failed to persist provider token")
	}

	cred := &Credential{
		Identity: Identity{
			UID:         resp.User.ID,
			DisplayName: resp.User.Name,
			Email:       resp.User.Email,
		},
		Token: resp.Token,
	}

	p.events.emit(&cred.Identity)

	return cred, nil
}

// SignOut discards the persisted credential and notifies subscribers. The JWT
// itself is stateless, so sign-out is local credential disposal.
func (p *APIProvider) SignOut(ctx context.Context) error {
	err := p.tokens.DeleteToken(p.serverAddr)

	p.events.emit(nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignOutFailed, err)
	}
	return nil
}

// Subscribe registers a session-change handler. If a persisted credential
// already resolves to an identity, that identity is delivered asynchronously
// right after subscription, mirroring a provider-side session surviving restart.
func (p *APIProvider) Subscribe(handler func(*Identity)) (cancel func()) {
	cancel = p.events.subscribe(handler)

	p.probeOnce.Do(func() {
		go p.probeExistingSession()
	})

	return cancel
}

// probeExistingSession resolves a stored token to an identity, if any.
func (p *APIProvider) probeExistingSession() {
	if _, err := p.tokens.LoadToken(p.serverAddr); err != nil {
		return
	}

	user, err := p.api.Me(p.serverAddr)
	if err != nil {
		p.logger.Debug().Err(err).Msg("Stored provider credential did not resolve to an identity")
		return
	}

	p.events.emit(&Identity{
		UID:         user.ID,
		DisplayName: user.Name,
		Email:       user.Email,
	})
}

// Close stops event delivery.
func (p *APIProvider) Close() {
	p.events.close()
}
