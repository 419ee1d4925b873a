package commands

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sanket-dev/sanket/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-server [address]",
		Short: "Select the gateway to use for commands",
		Long: `Select the gateway to use for commands.

If no address is provided, an interactive prompt will be shown.

Examples:
  $ sanket select-server                   # Interactive entry
  $ sanket select-server 10.0.0.5:8080     # Select by address`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var addr string
			if len(args) > 0 {
				addr = args[0]
			}
			return runSelectServer(addr)
		},
	}

	return cmd
}

func runSelectServer(addr string) error {
	if addr == "" {
		current, err := userconfig.GetServerAddr()
		if err != nil {
			return fmt.Errorf("failed to load user config: %w", err)
		}

		prompt := promptui.Prompt{
			Label:   "Gateway address (host:port)",
			Default: current,
			Validate: func(input string) error {
				if input == "" {
					return fmt.Errorf("address cannot be empty")
				}
				return nil
			},
		}
		addr, err = prompt.Run()
		if err != nil {
			return fmt.Errorf("selection cancelled: %w", err)
		}
	}

	if err := userconfig.SetServerAddr(addr); err != nil {
		return fmt.Errorf("failed to save gateway address: %w", err)
	}

	fmt.Printf("Selected gateway: %s\n", addr)
	return nil
}
