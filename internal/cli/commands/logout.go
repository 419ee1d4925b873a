package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout()
		},
	}
}

func runLogout() error {
	ctx, err := newCLIContext()
	if err != nil {
		return err
	}
	defer ctx.close()

	// Logout clears local state even when the gateway is unreachable
	ctx.guard.Logout(context.Background())

	fmt.Println("✓ Signed out.")
	return nil
}
