// Package workers implements the Asynq task handlers and the periodic
// outbreak sweep scheduler.
package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sanket-dev/sanket/internal/models"
	"github.com/sanket-dev/sanket/internal/swarm"
	"github.com/sanket-dev/sanket/internal/tasks"
)

// HandleAnalyzeReport scores a stored report through the village swarm and
// persists the outcome. Safe to retry: an already-analyzed report is a no-op.
func HandleAnalyzeReport(ctx context.Context, t *asynq.Task, db *gorm.DB, sw *swarm.Service, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return err
	}
	if payload.ReportID == "" {
		return fmt.Errorf("analyze task missing report_id")
	}

	var report models.Report
	if err := models.FindByID(db, payload.ReportID, &report); err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Warn().Str("report_id", payload.ReportID).Msg("Report not found - skipping analysis")
			return nil
		}
		return fmt.Errorf("failed to load report %s: %w", payload.ReportID, err)
	}

	if report.Status != models.ReportStatusReceived {
		logger.Debug().
			Str("report_id", report.ID).
			Str("status", report.Status).
			Msg("Report already analyzed - skipping")
		return nil
	}

	symptoms := splitSymptoms(report.Symptoms)
	analysis, err := sw.ProcessReport(report.VillageID, symptoms)
	if err != nil {
		return fmt.Errorf("swarm analysis failed for report %s: %w", report.ID, err)
	}

	status := models.ReportStatusAnalyzed
	if analysis.SuspectedOutbreak {
		status = models.ReportStatusEscalated
	}

	updates := map[string]any{
		"severity_score": analysis.SeverityScore,
		"status":         status,
	}
	if err := db.Model(&report).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update report %s: %w", report.ID, err)
	}

	if analysis.SuspectedOutbreak {
		alert := models.OutbreakAlert{
			VillageID:  analysis.VillageID,
			RiskScore:  analysis.RiskScore,
			Consensus:  analysis.Consensus,
			VotesFor:   analysis.VotesFor,
			VotesTotal: analysis.VotesTotal,
		}
		if err := db.Create(&alert).Error; err != nil {
			return fmt.Errorf("failed to record outbreak alert: %w", err)
		}
		logger.Warn().
			Str("report_id", report.ID).
			Str("village_id", analysis.VillageID).
			Float64("risk", analysis.RiskScore).
			Bool("consensus", analysis.Consensus).
			Msg("Suspected outbreak recorded")
	}

	logger.Info().
		Str("report_id", report.ID).
		Str("village_id", analysis.VillageID).
		Float64("severity", analysis.SeverityScore).
		Str("status", status).
		Msg("Report analyzed")

	return nil
}

func splitSymptoms(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
