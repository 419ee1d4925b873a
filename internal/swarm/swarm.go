// Package swarm coordinates rule-based village agents: symptom scoring,
// neighbor alerting over the network topology, and collective voting.
// No model calls are involved; coordination is pure message passing.
package swarm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// maxCommLog caps the in-memory communication log
	maxCommLog = 100
	// maxRecentReports caps per-agent report history used for risk scoring
	maxRecentReports = 20

	// outbreakThreshold is the risk score at which an agent raises an alert
	outbreakThreshold = 0.6
	// voteThreshold is the own-risk level at which a neighbor confirms an alert
	voteThreshold = 0.2
)

// symptomWeights drive the rule-based severity score for one report
var symptomWeights = map[string]float64{
	"fever":          2.0,
	"cough":          1.0,
	"headache":       1.0,
	"fatigue":        1.0,
	"rash":           2.0,
	"vomiting":       2.5,
	"diarrhea":       3.0,
	"dehydration":    3.0,
	"breathlessness": 3.0,
	"bleeding":       4.0,
}

// unknownSymptomWeight is applied to symptoms outside the rule table
const unknownSymptomWeight = 0.5

// Message is one inter-agent communication log entry
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
}

// Agent is one village's rule-based analysis agent
type Agent struct {
	VillageID   string
	VillageName string
	Neighbors   []string

	recentSeverity []float64
	riskScore      float64
}

// Analysis is the outcome of processing one symptom report
type Analysis struct {
	VillageID         string  `json:"village_id"`
	SeverityScore     float64 `json:"severity_score"`
	RiskScore         float64 `json:"risk_score"`
	SuspectedOutbreak bool    `json:"suspected_outbreak"`
	Consensus         bool    `json:"consensus"`
	VotesFor          int     `json:"votes_for"`
	VotesTotal        int     `json:"votes_total"`
}

// AgentStatus is one agent's entry in the network status
type AgentStatus struct {
	VillageID   string  `json:"village_id"`
	VillageName string  `json:"village_name"`
	RiskScore   float64 `json:"risk_score"`
	ReportCount int     `json:"report_count"`
	Neighbors   int     `json:"neighbors"`
}

// Status describes the whole swarm network
type Status struct {
	TotalAgents int           `json:"total_agents"`
	Agents      []AgentStatus `json:"agents"`
}

// MessageSink receives a copy of every logged message. Sinks run with the
// service mutex held and must not call back into the Service.
type MessageSink func(Message)

// Service coordinates the village agents. All public methods are safe for
// concurrent use; one mutex serializes agent state and the communication log.
type Service struct {
	logger zerolog.Logger

	mu      sync.Mutex
	agents  map[string]*Agent
	order   []string // stable iteration order for status output
	commLog []Message
	sink    MessageSink
}

// SetMessageSink installs a sink for durable message logging
func (s *Service) SetMessageSink(sink MessageSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// NewService builds the swarm from a topology
func NewService(topo Topology, logger zerolog.Logger) *Service {
	s := &Service{
		logger: logger,
		agents: make(map[string]*Agent, len(topo.Villages)),
	}

	for _, v := range topo.Villages {
		s.agents[v.ID] = &Agent{
			VillageID:   v.ID,
			VillageName: v.Name,
			Neighbors:   v.Neighbors,
		}
		s.order = append(s.order, v.ID)
	}

	logger.Info().Int("agents", len(s.agents)).Msg("Swarm initialized")
	return s
}

// ResolveVillage maps a village id or name (case-insensitive) to an agent id
func (s *Service) ResolveVillage(idOrName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveVillage(idOrName)
}

func (s *Service) resolveVillage(idOrName string) (string, bool) {
	if _, ok := s.agents[idOrName]; ok {
		return idOrName, true
	}

	needle := strings.ToLower(strings.ReplaceAll(idOrName, " ", "_"))
	for id, agent := range s.agents {
		name := strings.ToLower(agent.VillageName)
		if name == strings.ToLower(idOrName) || strings.ReplaceAll(name, " ", "_") == needle {
			return id, true
		}
	}

	return "", false
}

// ScoreSymptoms computes the rule-based severity score for a report
func ScoreSymptoms(symptoms []string) float64 {
	var total float64
	for _, symptom := range symptoms {
		symptom = strings.ToLower(strings.TrimSpace(symptom))
		if symptom == "" {
			continue
		}
		if w, ok := symptomWeights[symptom]; ok {
			total += w
		} else {
			total += unknownSymptomWeight
		}
	}
	return total
}

// ProcessReport runs one symptom report through the village agent: score the
// symptoms, update the agent's risk, and on suspected outbreak alert the
// neighbors and collect their votes.
func (s *Service) ProcessReport(villageID string, symptoms []string) (*Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved, ok := s.resolveVillage(villageID)
	if !ok {
		return nil, fmt.Errorf("unknown village %q", villageID)
	}
	agent := s.agents[resolved]

	severity := ScoreSymptoms(symptoms)

	agent.recentSeverity = append(agent.recentSeverity, severity)
	if len(agent.recentSeverity) > maxRecentReports {
		agent.recentSeverity = agent.recentSeverity[len(agent.recentSeverity)-maxRecentReports:]
	}
	agent.riskScore = RiskFromSeverities(agent.recentSeverity)

	s.logMessage("ASHA_Worker", agent.VillageName, "symptom_report",
		fmt.Sprintf("%d symptoms, severity %.1f", len(symptoms), severity))

	analysis := &Analysis{
		VillageID:         resolved,
		SeverityScore:     severity,
		RiskScore:         agent.riskScore,
		SuspectedOutbreak: agent.riskScore >= outbreakThreshold,
	}

	if analysis.SuspectedOutbreak {
		analysis.VotesFor, analysis.VotesTotal, analysis.Consensus = s.alertAndVote(agent)
	}

	s.logger.Debug().
		Str("village_id", resolved).
		Float64("severity", severity).
		Float64("risk", agent.riskScore).
		Bool("suspected_outbreak", analysis.SuspectedOutbreak).
		Msg("Report processed")

	return analysis, nil
}

// alertAndVote notifies the agent's neighbors and collects their votes.
// Callers hold s.mu.
func (s *Service) alertAndVote(agent *Agent) (votesFor, votesTotal int, consensus bool) {
	for _, neighborID := range agent.Neighbors {
		neighbor, ok := s.agents[neighborID]
		if !ok {
			continue
		}
		votesTotal++

		s.logMessage(agent.VillageName, neighbor.VillageName, "neighbor_alert",
			fmt.Sprintf("elevated risk %.2f", agent.riskScore))

		// A neighbor confirms when it has observed elevated activity itself,
		// or when the initiating risk leaves no room for doubt.
		vote := neighbor.riskScore >= voteThreshold || agent.riskScore >= 0.9
		if vote {
			votesFor++
		}

		s.logMessage(neighbor.VillageName, agent.VillageName, "vote",
			fmt.Sprintf("confirm=%v own_risk=%.2f", vote, neighbor.riskScore))
	}

	if votesTotal == 0 {
		// Isolated village: the agent's own signal decides.
		return 0, 0, agent.riskScore >= outbreakThreshold
	}

	consensus = votesFor*2 > votesTotal
	return votesFor, votesTotal, consensus
}

// RiskFromSeverities blends recent average severity with report volume
func RiskFromSeverities(severities []float64) float64 {
	if len(severities) == 0 {
		return 0
	}

	var sum float64
	for _, s := range severities {
		sum += s
	}
	avg := sum / float64(len(severities))

	severityFactor := avg / 8.0
	if severityFactor > 1 {
		severityFactor = 1
	}
	volumeFactor := float64(len(severities)) / 10.0
	if volumeFactor > 1 {
		volumeFactor = 1
	}

	risk := severityFactor*0.7 + volumeFactor*0.3
	if risk > 1 {
		risk = 1
	}
	return risk
}

// NetworkStatus returns the state of every agent in topology order
func (s *Service) NetworkStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{TotalAgents: len(s.agents)}
	for _, id := range s.order {
		agent := s.agents[id]
		status.Agents = append(status.Agents, AgentStatus{
			VillageID:   agent.VillageID,
			VillageName: agent.VillageName,
			RiskScore:   agent.riskScore,
			ReportCount: len(agent.recentSeverity),
			Neighbors:   len(agent.Neighbors),
		})
	}
	return status
}

// Communications returns up to limit recent messages, newest last
func (s *Service) Communications(limit int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.commLog) {
		limit = len(s.commLog)
	}
	out := make([]Message, limit)
	copy(out, s.commLog[len(s.commLog)-limit:])
	return out
}

// DetectOutbreaks sweeps all agents and re-runs voting for any whose risk sits
// above the outbreak threshold. Used by the periodic sweep task.
func (s *Service) DetectOutbreaks() []Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alerts []Analysis
	for _, id := range s.order {
		agent := s.agents[id]
		if agent.riskScore < outbreakThreshold {
			continue
		}

		votesFor, votesTotal, consensus := s.alertAndVote(agent)
		alerts = append(alerts, Analysis{
			VillageID:         agent.VillageID,
			RiskScore:         agent.riskScore,
			SuspectedOutbreak: true,
			Consensus:         consensus,
			VotesFor:          votesFor,
			VotesTotal:        votesTotal,
		})
	}
	return alerts
}

// logMessage appends to the capped communication log. Callers hold s.mu.
func (s *Service) logMessage(from, to, msgType, content string) {
	msg := Message{
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
		Type:      msgType,
		Content:   content,
	}
	s.commLog = append(s.commLog, msg)
	if len(s.commLog) > maxCommLog {
		s.commLog = s.commLog[len(s.commLog)-maxCommLog:]
	}
	if s.sink != nil {
		s.sink(msg)
	}
}
