package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check gateway connectivity and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	ctx, err := newCLIContext()
	if err != nil {
		return err
	}
	defer ctx.close()

	fmt.Printf("Gateway: %s\n", ctx.serverAddr)

	health, err := ctx.api.Health()
	if err != nil {
		fmt.Println("  Status: unreachable")
		fmt.Printf("  Error: %v\n", err)
	} else {
		fmt.Printf("  Status: %s (%s)\n", health.Status, health.Service)
	}

	s := ctx.guard.Boot()
	if s == nil {
		fmt.Println("Session: not signed in")
		return nil
	}
	fmt.Printf("Session: %s (%s) as %s\n", s.Name, s.Email, s.Role)

	return nil
}
