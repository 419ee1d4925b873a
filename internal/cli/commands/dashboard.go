package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanket-dev/sanket/internal/cli/client"
	"github.com/sanket-dev/sanket/internal/view"
)

// NewDashboardCmd creates the dashboard command
func NewDashboardCmd() *cobra.Command {
	var village string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for your role",
		Long: `Show the dashboard for your role.

Field workers see their recent reports. Whitelisted health officials see the
swarm network status, recent agent communications, and per-village insights.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(village)
		},
	}

	cmd.Flags().StringVar(&village, "village", "", "Village to show insights for (officials)")

	return cmd
}

func runDashboard(village string) error {
	ctx, err := newCLIContext()
	if err != nil {
		return err
	}
	defer ctx.close()

	ctx.printPendingWarning()

	s := ctx.guard.Boot()

	switch view.Route(s, ctx.whitelist) {
	case view.OfficialView:
		return renderOfficialDashboard(ctx, village)
	case view.AshaView:
		return renderAshaDashboard(ctx)
	default:
		fmt.Println("Not signed in. Run 'sanket login' to authenticate.")
		return nil
	}
}

func renderAshaDashboard(ctx *cliContext) error {
	reports, err := ctx.api.ListReports(ctx.serverAddr, "", 10)
	if err != nil {
		return fmt.Errorf("failed to load reports: %w", err)
	}

	fmt.Println("Your recent reports:")
	if len(reports) == 0 {
		fmt.Println("  (none yet - run 'sanket report' to submit one)")
		return nil
	}
	for _, r := range reports {
		fmt.Printf("  %s  %-12s severity %.1f  [%s]\n",
			r.CreatedAt, r.VillageID, r.SeverityScore, r.Status)
		fmt.Printf("    symptoms: %s\n", strings.Join(r.Symptoms, ", "))
	}
	return nil
}

func renderOfficialDashboard(ctx *cliContext, village string) error {
	status, err := ctx.api.GetSwarmStatus(ctx.serverAddr)
	if err != nil {
		return fmt.Errorf("failed to load swarm status: %w", err)
	}

	fmt.Printf("Swarm network: %d agents, %d active alerts\n", status.TotalAgents, status.ActiveAlerts)
	for _, agent := range status.Agents {
		bar := riskBar(agent.RiskScore)
		fmt.Printf("  %-12s %s %.2f  (%d reports, %d neighbors)\n",
			agent.VillageName, bar, agent.RiskScore, agent.ReportCount, agent.Neighbors)
	}

	messages, err := ctx.api.GetCommunications(ctx.serverAddr)
	if err != nil {
		return fmt.Errorf("failed to load communications: %w", err)
	}
	if len(messages) > 0 {
		fmt.Println("\nRecent agent communications:")
		for _, m := range tail(messages, 10) {
			fmt.Printf("  %s -> %s [%s] %s\n", m.From, m.To, m.Type, m.Content)
		}
	}

	if village != "" {
		insight, err := ctx.api.GetInsight(ctx.serverAddr, village)
		if err != nil {
			return fmt.Errorf("failed to load insight: %w", err)
		}
		fmt.Printf("\nInsight for %s (%s):\n", insight.VillageName, insight.VillageID)
		fmt.Printf("  Risk: %s (%.2f)\n", insight.RiskLevel, insight.RiskScore)
		fmt.Printf("  Reports this week: %d (avg severity %.1f)\n", insight.ReportCount, insight.AvgSeverity)
		fmt.Printf("  Active alerts: %d\n", insight.ActiveAlerts)
		for _, sc := range insight.TopSymptoms {
			fmt.Printf("    %-16s x%d\n", sc.Symptom, sc.Count)
		}
	}

	return nil
}

// riskBar renders a ten-segment risk gauge
func riskBar(risk float64) string {
	filled := int(risk * 10)
	if filled > 10 {
		filled = 10
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", 10-filled) + "]"
}

func tail(messages []client.AgentMessage, n int) []client.AgentMessage {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
