package workers

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sanket-dev/sanket/internal/models"
	"github.com/sanket-dev/sanket/internal/swarm"
	"github.com/sanket-dev/sanket/internal/tasks"
)

// HandleOutbreakSweep re-runs voting across every elevated agent and records
// fresh alerts for any village still above the outbreak threshold.
func HandleOutbreakSweep(ctx context.Context, t *asynq.Task, db *gorm.DB, sw *swarm.Service, logger zerolog.Logger) error {
	alerts := sw.DetectOutbreaks()

	for _, a := range alerts {
		alert := models.OutbreakAlert{
			VillageID:  a.VillageID,
			RiskScore:  a.RiskScore,
			Consensus:  a.Consensus,
			VotesFor:   a.VotesFor,
			VotesTotal: a.VotesTotal,
		}
		if err := db.Create(&alert).Error; err != nil {
			logger.Error().Err(err).Str("village_id", a.VillageID).Msg("Failed to record sweep alert")
			continue
		}
		logger.Warn().
			Str("village_id", a.VillageID).
			Float64("risk", a.RiskScore).
			Bool("consensus", a.Consensus).
			Msg("Sweep confirmed elevated risk")
	}

	now := time.Now()
	var config models.ServerConfig
	if err := db.First(&config).Error; err == nil {
		db.Model(&config).Update("last_sweep_at", &now)
	}

	logger.Info().Int("alerts", len(alerts)).Msg("Outbreak sweep complete")
	return nil
}

// StartSweepScheduler runs a periodic check (every minute) for a due sweep
func StartSweepScheduler(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run immediately on startup, then every minute
	checkAndEnqueueSweep(client, db, logger)

	for range ticker.C {
		checkAndEnqueueSweep(client, db, logger)
	}
}

func checkAndEnqueueSweep(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	// Load the singleton config
	var config models.ServerConfig
	err := db.First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Debug().Msg("No server config found - skipping sweep check")
			return
		}
		logger.Error().Err(err).Msg("Failed to query config for sweep")
		return
	}

	if config.SweepSchedule == "" {
		logger.Debug().Msg("No sweep schedule configured")
		return
	}

	if config.NextSweepAt != nil && config.NextSweepAt.After(time.Now()) {
		logger.Debug().
			Time("next_sweep_at", *config.NextSweepAt).
			Msg("Sweep not due yet")
		return
	}

	task, err := tasks.NewOutbreakSweepTask()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create sweep task")
		return
	}

	if _, err := client.Enqueue(task, asynq.Timeout(10*time.Minute)); err != nil {
		logger.Error().Err(err).Msg("Failed to enqueue sweep task")
		return
	}

	// Update NextSweepAt immediately after scheduling so the ticker does not
	// enqueue a sweep every minute.
	next := calculateNextSweepTime(config.SweepSchedule, time.Now())
	if next != nil {
		if err := db.Model(&config).Update("next_sweep_at", next).Error; err != nil {
			logger.Error().Err(err).Msg("Failed to update next_sweep_at")
		}
	}

	logger.Info().
		Str("sweep_schedule", config.SweepSchedule).
		Msg("Outbreak sweep task enqueued")
}

// calculateNextSweepTime calculates the next sweep from a cron schedule
func calculateNextSweepTime(cronExpr string, from time.Time) *time.Time {
	if cronExpr == "" {
		return nil
	}

	// Standard 5-field format: minute hour day-of-month month day-of-week
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil
	}

	next := schedule.Next(from)
	return &next
}
