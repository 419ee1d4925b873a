package insights

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sanket-dev/sanket/internal/models"
	"github.com/sanket-dev/sanket/internal/swarm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
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

	sw := swarm.NewService(swarm.DefaultTopology(), zerolog.Nop())
	return NewService(db, sw, zerolog.Nop()), db
}

func seedReport(t *testing.T, db *gorm.DB, villageID, symptoms string, severity float64) {
	t.Helper()
	report := models.Report{
		VillageID:     villageID,
		Symptoms:      symptoms,
		SeverityScore: severity,
		Status:        models.ReportStatusAnalyzed,
	}
	if err := db.Create(&report).Error; err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}
}

func TestService_ForVillageEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	insight, err := svc.ForVillage("v1")
	if err != nil {
		t.Fatalf("ForVillage() error = %v", err)
	}
	if insight.ReportCount != 0 || insight.RiskLevel != "low" {
		t.Errorf("empty village insight = %+v, want zero reports at low risk", insight)
	}
	if insight.LatestReportAt != nil {
		t.Error("LatestReportAt set with no reports")
	}
	if insight.VillageName != "Dharavi" {
		t.Errorf("VillageName = %q, want Dharavi", insight.VillageName)
	}
}

func TestService_ForVillageUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ForVillage("atlantis"); err == nil {
		t.Error("ForVillage() returned nil error for unknown village")
	}
}

func TestService_ForVillageByName(t *testing.T) {
	svc, db := newTestService(t)
	seedReport(t, db, "v2", "fever,cough", 3.0)

	insight, err := svc.ForVillage("Kalyan")
	if err != nil {
		t.Fatalf("ForVillage() error = %v", err)
	}
	if insight.VillageID != "v2" || insight.ReportCount != 1 {
		t.Errorf("insight = %+v, want one report for v2", insight)
	}
}

func TestService_ForVillageAggregates(t *testing.T) {
	svc, db := newTestService(t)

	seedReport(t, db, "v1", "fever,diarrhea", 5.0)
	seedReport(t, db, "v1", "fever,cough", 3.0)
	seedReport(t, db, "v1", "Fever, vomiting", 4.5)
	seedReport(t, db, "v3", "headache", 1.0) // other village, excluded

	insight, err := svc.ForVillage("v1")
	if err != nil {
		t.Fatalf("ForVillage() error = %v", err)
	}

	if insight.ReportCount != 3 {
		t.Errorf("ReportCount = %d, want 3", insight.ReportCount)
	}
	wantAvg := (5.0 + 3.0 + 4.5) / 3
	if diff := insight.AvgSeverity - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AvgSeverity = %v, want %v", insight.AvgSeverity, wantAvg)
	}
	if insight.LatestReportAt == nil {
		t.Error("LatestReportAt not set")
	}
	if len(insight.TopSymptoms) == 0 || insight.TopSymptoms[0].Symptom != "fever" || insight.TopSymptoms[0].Count != 3 {
		t.Errorf("TopSymptoms = %+v, want fever counted 3 times first", insight.TopSymptoms)
	}
}

func TestService_ForVillageCountsActiveAlerts(t *testing.T) {
	svc, db := newTestService(t)

	alerts := []models.OutbreakAlert{
		{VillageID: "v1", RiskScore: 0.7, Resolved: false},
		{VillageID: "v1", RiskScore: 0.8, Resolved: true},
		{VillageID: "v2", RiskScore: 0.9, Resolved: false},
	}
	for i := range alerts {
		if err := db.Create(&alerts[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	insight, err := svc.ForVillage("v1")
	if err != nil {
		t.Fatalf("ForVillage() error = %v", err)
	}
	if insight.ActiveAlerts != 1 {
		t.Errorf("ActiveAlerts = %d, want 1 (resolved and foreign alerts excluded)", insight.ActiveAlerts)
	}
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		risk float64
		want string
	}{
		{0.0, "low"},
		{0.29, "low"},
		{0.3, "moderate"},
		{0.59, "moderate"},
		{0.6, "high"},
		{0.85, "critical"},
		{1.0, "critical"},
	}
	for _, tt := range tests {
		if got := riskLevel(tt.risk); got != tt.want {
			t.Errorf("riskLevel(%v) = %q, want %q", tt.risk, got, tt.want)
		}
	}
}
