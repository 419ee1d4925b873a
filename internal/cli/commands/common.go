package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/sanket-dev/sanket/internal/cli/auth"
	"github.com/sanket-dev/sanket/internal/cli/client"
	"github.com/sanket-dev/sanket/internal/cli/userconfig"
	"github.com/sanket-dev/sanket/internal/guard"
	"github.com/sanket-dev/sanket/internal/identity"
	"github.com/sanket-dev/sanket/internal/session"
)

// cliContext bundles the pieces every command needs: the resolved gateway
// address, an API client, and the authorization guard built over both.
type cliContext struct {
	serverAddr string
	api        *client.Client
	store      *session.FileStore
	provider   *identity.APIProvider
	guard      *guard.Guard
	whitelist  session.Whitelist
}

// newCLIContext wires the guard for one command invocation. The whitelist and
// gateway address come from the user config.
func newCLIContext() (*cliContext, error) {
	serverAddr, err := userconfig.GetServerAddr()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	whitelistEmails, err := userconfig.GetWhitelist()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	store, err := session.NewFileStore(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	api := client.New(serverAddr)
	provider := identity.NewAPIProvider(api, serverAddr, auth.Default, logger)
	whitelist := session.NewWhitelist(whitelistEmails)

	g := guard.New(
		store,
		provider,
		whitelist,
		terminalNotifier{},
		terminalNavigator{},
		logger,
	)

	return &cliContext{
		serverAddr: serverAddr,
		api:        api,
		store:      store,
		provider:   provider,
		guard:      g,
		whitelist:  whitelist,
	}, nil
}

// close releases the provider's event loop
func (c *cliContext) close() {
	c.provider.Close()
}

// printPendingWarning surfaces the one-shot unauthorized-role warning left by
// a previous rejection, then clears it.
func (c *cliContext) printPendingWarning() {
	pending, err := c.store.ConsumeWarning()
	if err != nil || !pending {
		return
	}
	fmt.Fprintln(os.Stderr, "⚠ A previous official login was rejected: the account is not on the authorized list.")
}

// terminalNotifier prints guard notifications to stderr
type terminalNotifier struct{}

func (terminalNotifier) Notify(message string) {
	fmt.Fprintf(os.Stderr, "⚠ %s\n", message)
}

// terminalNavigator is the CLI stand-in for returning to the login view
type terminalNavigator struct{}

func (terminalNavigator) ResetToLogin() {
	fmt.Fprintln(os.Stderr, "You are signed out. Run 'sanket login' to sign in again.")
}
