package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanket-dev/sanket/internal/session"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami()
		},
	}
}

func runWhoami() error {
	ctx, err := newCLIContext()
	if err != nil {
		return err
	}
	defer ctx.close()

	ctx.printPendingWarning()

	s := ctx.guard.Boot()
	if s == nil {
		fmt.Println("Not signed in. Run 'sanket login' to authenticate.")
		return nil
	}

	fmt.Printf("Signed in as %s (%s)\n", s.Name, s.Email)
	fmt.Printf("  Role: %s\n", s.Role)
	if s.Role == session.RoleAsha && s.Village != "" {
		fmt.Printf("  Village: %s\n", s.Village)
	}
	if s.Role == session.RoleOfficial {
		if s.District != "" {
			fmt.Printf("  District: %s\n", s.District)
		}
		if s.Designation != "" {
			fmt.Printf("  Designation: %s\n", s.Designation)
		}
	}
	if s.Phone != "" {
		fmt.Printf("  Phone: %s\n", s.Phone)
	}

	return nil
}
