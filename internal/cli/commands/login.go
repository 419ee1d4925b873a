package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sanket-dev/sanket/internal/guard"
	"github.com/sanket-dev/sanket/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password, role string
	var village, phone, district, designation string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a Sanket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(email, password, role, guard.Attributes{
				Village:     village,
				Phone:       phone,
				District:    district,
				Designation: designation,
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set SANKET_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set SANKET_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&role, "role", "", "Role to sign in as: asha or official (prompted if not provided)")
	cmd.Flags().StringVar(&village, "village", "", "Village (field workers)")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&district, "district", "", "District (officials)")
	cmd.Flags().StringVar(&designation, "designation", "", "Designation (officials)")

	return cmd
}

func runLogin(email, password, role string, attrs guard.Attributes) error {
	// Check for environment variables (useful for scripting)
	if email == "" {
		email = os.Getenv("SANKET_EMAIL")
	}
	if password == "" {
		password = os.Getenv("SANKET_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or SANKET_EMAIL env var)")
	}

	intent, err := resolveRole(role)
	if err != nil {
		return err
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or SANKET_PASSWORD env var)")
		}
		fmt.Print("Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(bytePassword)
		fmt.Println()
	}

	ctx, err := newCLIContext()
	if err != nil {
		return err
	}
	defer ctx.close()

	ctx.printPendingWarning()

	fmt.Printf("Logging in to %s...\n", ctx.serverAddr)

	s, err := ctx.guard.LoginWithProvider(context.Background(), intent, email, password, attrs)
	if err != nil {
		if errors.Is(err, guard.ErrUnauthorizedRole) {
			return fmt.Errorf("this account is not authorized for the official role")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Println("✓ Login successful!")
	fmt.Printf("  User: %s (%s)\n", s.Name, s.Email)
	fmt.Printf("  Role: %s\n", s.Role)

	return nil
}

// resolveRole turns the --role flag into a role intent, prompting when the
// flag is absent and stdin is a terminal
func resolveRole(role string) (session.Role, error) {
	switch role {
	case "asha":
		return session.RoleAsha, nil
	case "official":
		return session.RoleOfficial, nil
	case "":
	default:
		return "", fmt.Errorf("invalid role %q: must be asha or official", role)
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		// Non-interactive logins default to the field worker role
		return session.RoleAsha, nil
	}

	prompt := promptui.Select{
		Label: "Sign in as",
		Items: []string{"ASHA field worker", "Health official"},
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("role selection cancelled: %w", err)
	}
	if idx == 1 {
		return session.RoleOfficial, nil
	}
	return session.RoleAsha, nil
}
