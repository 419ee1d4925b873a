package commands

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// commonSymptoms drive the interactive symptom picker
var commonSymptoms = []string{
	"fever", "cough", "headache", "fatigue", "rash",
	"vomiting", "diarrhea", "dehydration", "breathlessness", "bleeding",
	"done",
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var village, notes, voice, image string
	var symptoms, envFactors []string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Submit a symptom report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(village, symptoms, envFactors, notes, voice, image)
		},
	}

	cmd.Flags().StringVar(&village, "village", "", "Village id or name (defaults to your profile village)")
	cmd.Flags().StringSliceVar(&symptoms, "symptom", nil, "Symptom (repeatable; prompted if not provided)")
	cmd.Flags().StringSliceVar(&envFactors, "env", nil, "Environmental factor (repeatable)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	cmd.Flags().StringVar(&voice, "voice", "", "Path to a voice note to attach")
	cmd.Flags().StringVar(&image, "image", "", "Path to a photo to attach")

	return cmd
}

func runReport(village string, symptoms, envFactors []string, notes, voice, image string) error {
	ctx, err := newCLIContext()
	if err != nil {
		return err
	}
	defer ctx.close()

	s := ctx.guard.Boot()
	if s == nil {
		return fmt.Errorf("not signed in: run 'sanket login' first")
	}

	if village == "" {
		village = s.Village
	}
	if village == "" {
		return fmt.Errorf("no village given and none on your profile (use --village)")
	}

	if len(symptoms) == 0 {
		symptoms, err = promptSymptoms()
		if err != nil {
			return err
		}
	}
	if len(symptoms) == 0 {
		return fmt.Errorf("at least one symptom is required")
	}

	report, err := ctx.api.SubmitReport(ctx.serverAddr, village, symptoms, envFactors, notes, voice, image)
	if err != nil {
		return fmt.Errorf("failed to submit report: %w", err)
	}

	fmt.Println("✓ Report submitted.")
	fmt.Printf("  ID: %s\n", report.ID)
	fmt.Printf("  Village: %s\n", report.VillageID)
	fmt.Printf("  Symptoms: %s\n", strings.Join(report.Symptoms, ", "))
	fmt.Printf("  Status: %s\n", report.Status)

	return nil
}

// promptSymptoms collects symptoms interactively until the user picks "done"
func promptSymptoms() ([]string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil, fmt.Errorf("symptoms are required in non-interactive mode (use --symptom)")
	}

	var picked []string
	for {
		prompt := promptui.Select{
			Label: "Add symptom",
			Items: commonSymptoms,
			Size:  len(commonSymptoms),
		}
		_, choice, err := prompt.Run()
		if err != nil {
			return nil, fmt.Errorf("symptom selection cancelled: %w", err)
		}
		if choice == "done" {
			return picked, nil
		}
		picked = append(picked, choice)
	}
}
