package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sanket-dev/sanket/internal/models"
)

// SwarmStatusResponse combines live agent state with the active alert count
type SwarmStatusResponse struct {
	TotalAgents  int                `json:"total_agents"`
	ActiveAlerts int                `json:"active_alerts"`
	Agents       []SwarmAgentDetail `json:"agents"`
}

// SwarmAgentDetail represents one village agent in status responses
type SwarmAgentDetail struct {
	VillageID   string  `json:"village_id"`
	VillageName string  `json:"village_name"`
	RiskScore   float64 `json:"risk_score"`
	ReportCount int     `json:"report_count"`
	Neighbors   int     `json:"neighbors"`
}

// @Summary Swarm status
// @Description Live risk state of every village agent
// @Tags swarm
// @Produce json
// @Success 200 {object} SwarmStatusResponse
// @Router /api/v1/swarm/status [get]
func (s *Server) getSwarmStatus(c *gin.Context) {
	status := s.swarmService.NetworkStatus()

	var activeAlerts int64
	if err := s.db.Model(&models.OutbreakAlert{}).Where("resolved = ?", false).Count(&activeAlerts).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count active alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load swarm status"})
		return
	}

	resp := SwarmStatusResponse{
		TotalAgents:  status.TotalAgents,
		ActiveAlerts: int(activeAlerts),
	}
	for _, agent := range status.Agents {
		resp.Agents = append(resp.Agents, SwarmAgentDetail{
			VillageID:   agent.VillageID,
			VillageName: agent.VillageName,
			RiskScore:   agent.RiskScore,
			ReportCount: agent.ReportCount,
			Neighbors:   agent.Neighbors,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Agent communications
// @Description Recent inter-agent messages, newest last
// @Tags swarm
// @Produce json
// @Success 200 {array} swarm.Message
// @Router /api/v1/swarm/communications [get]
func (s *Server) getCommunications(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	c.JSON(http.StatusOK, s.swarmService.Communications(limit))
}

// @Summary Village insight
// @Description Aggregated risk summary for one village
// @Tags insights
// @Produce json
// @Success 200 {object} insights.VillageInsight
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/insights/{village} [get]
func (s *Server) getVillageInsight(c *gin.Context) {
	insight, err := s.insightsService.ForVillage(c.Param("village"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, insight)
}

// AlertDetail represents an outbreak alert in API responses
type AlertDetail struct {
	ID         string  `json:"id"`
	VillageID  string  `json:"village_id"`
	RiskScore  float64 `json:"risk_score"`
	Consensus  bool    `json:"consensus"`
	VotesFor   int     `json:"votes_for"`
	VotesTotal int     `json:"votes_total"`
	Resolved   bool    `json:"resolved"`
	CreatedAt  string  `json:"created_at"`
}

// @Summary List outbreak alerts
// @Tags swarm
// @Produce json
// @Success 200 {array} AlertDetail
// @Router /api/v1/alerts [get]
func (s *Server) listAlerts(c *gin.Context) {
	query := s.db.Order("created_at DESC").Limit(100)
	if c.Query("active") == "true" {
		query = query.Where("resolved = ?", false)
	}

	var alerts []models.OutbreakAlert
	if err := query.Find(&alerts).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	out := make([]AlertDetail, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertDetail{
			ID:         a.ID,
			VillageID:  a.VillageID,
			RiskScore:  a.RiskScore,
			Consensus:  a.Consensus,
			VotesFor:   a.VotesFor,
			VotesTotal: a.VotesTotal,
			Resolved:   a.Resolved,
			CreatedAt:  a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, out)
}
