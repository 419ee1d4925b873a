package workers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sanket-dev/sanket/internal/models"
	"github.com/sanket-dev/sanket/internal/swarm"
	"github.com/sanket-dev/sanket/internal/tasks"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestHandleAnalyzeReport(t *testing.T) {
	db := newTestDB(t)
	sw := swarm.NewService(swarm.DefaultTopology(), zerolog.Nop())

	report := models.Report{
		VillageID: "v1",
		Symptoms:  "fever, diarrhea",
		Status:    models.ReportStatusReceived,
	}
	if err := db.Create(&report).Error; err != nil {
		t.Fatal(err)
	}

	task, err := tasks.NewAnalyzeReportTask(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := HandleAnalyzeReport(context.Background(), task, db, sw, zerolog.Nop()); err != nil {
		t.Fatalf("HandleAnalyzeReport() error = %v", err)
	}

	var updated models.Report
	if err := models.FindByID(db, report.ID, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.ReportStatusAnalyzed {
		t.Errorf("status = %q, want analyzed", updated.Status)
	}
	if updated.SeverityScore != 5.0 {
		t.Errorf("severity = %v, want 5.0 for fever+diarrhea", updated.SeverityScore)
	}
}

func TestHandleAnalyzeReport_EscalatesAndRecordsAlert(t *testing.T) {
	db := newTestDB(t)
	sw := swarm.NewService(swarm.DefaultTopology(), zerolog.Nop())

	// Sustained severe reporting pushes the village agent over the threshold;
	// the final report should escalate and leave an alert behind.
	var lastID string
	for i := 0; i < 8; i++ {
		report := models.Report{
			VillageID: "v1",
			Symptoms:  "fever,diarrhea,vomiting,dehydration",
			Status:    models.ReportStatusReceived,
		}
		if err := db.Create(&report).Error; err != nil {
			t.Fatal(err)
		}
		lastID = report.ID

		task, err := tasks.NewAnalyzeReportTask(report.ID)
		if err != nil {
			t.Fatal(err)
		}
		if err := HandleAnalyzeReport(context.Background(), task, db, sw, zerolog.Nop()); err != nil {
			t.Fatalf("HandleAnalyzeReport() error = %v", err)
		}
	}

	var last models.Report
	if err := models.FindByID(db, lastID, &last); err != nil {
		t.Fatal(err)
	}
	if last.Status != models.ReportStatusEscalated {
		t.Errorf("final report status = %q, want escalated", last.Status)
	}

	var alerts int64
	if err := db.Model(&models.OutbreakAlert{}).Where("village_id = ?", "v1").Count(&alerts).Error; err != nil {
		t.Fatal(err)
	}
	if alerts == 0 {
		t.Error("no outbreak alert recorded for escalated village")
	}
}

func TestHandleAnalyzeReport_Idempotent(t *testing.T) {
	db := newTestDB(t)
	sw := swarm.NewService(swarm.DefaultTopology(), zerolog.Nop())

	report := models.Report{
		VillageID:     "v1",
		Symptoms:      "fever",
		SeverityScore: 2.0,
		Status:        models.ReportStatusAnalyzed,
	}
	if err := db.Create(&report).Error; err != nil {
		t.Fatal(err)
	}

	task, err := tasks.NewAnalyzeReportTask(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := HandleAnalyzeReport(context.Background(), task, db, sw, zerolog.Nop()); err != nil {
		t.Fatalf("HandleAnalyzeReport() on analyzed report error = %v", err)
	}

	// Retried task must not feed the agent a second time
	if sw.NetworkStatus().Agents[0].ReportCount != 0 {
		t.Error("already-analyzed report was re-fed to the swarm")
	}
}

func TestHandleAnalyzeReport_MissingReport(t *testing.T) {
	db := newTestDB(t)
	sw := swarm.NewService(swarm.DefaultTopology(), zerolog.Nop())

	task, err := tasks.NewAnalyzeReportTask("01J00000000000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if err := HandleAnalyzeReport(context.Background(), task, db, sw, zerolog.Nop()); err != nil {
		t.Errorf("missing report should be dropped, not retried: %v", err)
	}
}

func TestHandleOutbreakSweep(t *testing.T) {
	db := newTestDB(t)
	sw := swarm.NewService(swarm.DefaultTopology(), zerolog.Nop())

	// Elevate v1 directly through the swarm
	for i := 0; i < 10; i++ {
		if _, err := sw.ProcessReport("v1", []string{"fever", "diarrhea", "vomiting", "dehydration"}); err != nil {
			t.Fatal(err)
		}
	}

	task, err := tasks.NewOutbreakSweepTask()
	if err != nil {
		t.Fatal(err)
	}
	if err := HandleOutbreakSweep(context.Background(), task, db, sw, zerolog.Nop()); err != nil {
		t.Fatalf("HandleOutbreakSweep() error = %v", err)
	}

	var alerts int64
	if err := db.Model(&models.OutbreakAlert{}).Where("village_id = ?", "v1").Count(&alerts).Error; err != nil {
		t.Fatal(err)
	}
	if alerts != 1 {
		t.Errorf("sweep recorded %d alerts for v1, want 1", alerts)
	}
}

func TestCalculateNextSweepTime(t *testing.T) {
	from := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want *time.Time
	}{
		{"hourly", "0 * * * *", timePtr(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))},
		{"daily at six", "0 6 * * *", timePtr(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC))},
		{"empty", "", nil},
		{"invalid", "not a cron", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateNextSweepTime(tt.expr, from)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("calculateNextSweepTime(%q) = %v, want %v", tt.expr, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("calculateNextSweepTime(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
