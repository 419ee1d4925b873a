// Package insights aggregates stored symptom reports into per-village
// summaries for the official dashboard.
package insights

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sanket-dev/sanket/internal/models"
	"github.com/sanket-dev/sanket/internal/swarm"
)

// reportWindow bounds how far back a summary looks
const reportWindow = 7 * 24 * time.Hour

// SymptomCount is one symptom's frequency within the window
type SymptomCount struct {
	Symptom string `json:"symptom"`
	Count   int    `json:"count"`
}

// VillageInsight summarizes recent reporting activity for one village
type VillageInsight struct {
	VillageID      string         `json:"village_id"`
	VillageName    string         `json:"village_name"`
	ReportCount    int            `json:"report_count"`
	AvgSeverity    float64        `json:"avg_severity"`
	RiskScore      float64        `json:"risk_score"`
	RiskLevel      string         `json:"risk_level"`
	TopSymptoms    []SymptomCount `json:"top_symptoms"`
	ActiveAlerts   int            `json:"active_alerts"`
	LatestReportAt *time.Time     `json:"latest_report_at,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// Service builds insights from the report store and the swarm topology
type Service struct {
	db     *gorm.DB
	swarm  *swarm.Service
	logger zerolog.Logger
}

func NewService(db *gorm.DB, sw *swarm.Service, logger zerolog.Logger) *Service {
	return &Service{db: db, swarm: sw, logger: logger}
}

// ForVillage summarizes the last week of reports for one village. The village
// may be given by id or name; unknown villages are an error.
func (s *Service) ForVillage(village string) (*VillageInsight, error) {
	villageID, ok := s.swarm.ResolveVillage(village)
	if !ok {
		return nil, fmt.Errorf("unknown village %q", village)
	}

	since := time.Now().UTC().Add(-reportWindow)

	var reports []models.Report
	err := s.db.
		Where("village_id = ? AND created_at >= ?", villageID, since).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reports for %s: %w", villageID, err)
	}

	var activeAlerts int64
	err = s.db.Model(&models.OutbreakAlert{}).
		Where("village_id = ? AND resolved = ?", villageID, false).
		Count(&activeAlerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts for %s: %w", villageID, err)
	}

	insight := &VillageInsight{
		VillageID:    villageID,
		VillageName:  s.villageName(villageID),
		ReportCount:  len(reports),
		ActiveAlerts: int(activeAlerts),
		RiskLevel:    "low",
		GeneratedAt:  time.Now().UTC(),
	}

	if len(reports) == 0 {
		return insight, nil
	}

	latest := reports[0].CreatedAt
	insight.LatestReportAt = &latest

	severities := make([]float64, 0, len(reports))
	counts := make(map[string]int)
	var sum float64
	for _, r := range reports {
		severities = append(severities, r.SeverityScore)
		sum += r.SeverityScore
		for _, symptom := range strings.Split(r.Symptoms, ",") {
			symptom = strings.ToLower(strings.TrimSpace(symptom))
			if symptom != "" {
				counts[symptom]++
			}
		}
	}

	insight.AvgSeverity = sum / float64(len(reports))
	insight.RiskScore = swarm.RiskFromSeverities(severities)
	insight.RiskLevel = riskLevel(insight.RiskScore)
	insight.TopSymptoms = topSymptoms(counts, 5)

	s.logger.Debug().
		Str("village_id", villageID).
		Int("reports", insight.ReportCount).
		Float64("risk", insight.RiskScore).
		Msg("Insight generated")

	return insight, nil
}

func (s *Service) villageName(villageID string) string {
	for _, agent := range s.swarm.NetworkStatus().Agents {
		if agent.VillageID == villageID {
			return agent.VillageName
		}
	}
	return villageID
}

func riskLevel(risk float64) string {
	switch {
	case risk >= 0.85:
		return "critical"
	case risk >= 0.6:
		return "high"
	case risk >= 0.3:
		return "moderate"
	default:
		return "low"
	}
}

// topSymptoms returns the n most frequent symptoms, ties broken alphabetically
func topSymptoms(counts map[string]int, n int) []SymptomCount {
	out := make([]SymptomCount, 0, len(counts))
	for symptom, count := range counts {
		out = append(out, SymptomCount{Symptom: symptom, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symptom < out[j].Symptom
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
