package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/sanket-dev/sanket/internal/models"
	"github.com/sanket-dev/sanket/internal/tasks"
)

// maxUploadBytes caps a single voice note or photo attachment
const maxUploadBytes = 10 << 20 // 10MB

// ReportDetail represents a report in API responses
type ReportDetail struct {
	ID                   string    `json:"id"`
	VillageID            string    `json:"village_id"`
	Symptoms             []string  `json:"symptoms"`
	EnvironmentalFactors []string  `json:"environmental_factors,omitempty"`
	Notes                string    `json:"notes,omitempty"`
	VoiceFile            string    `json:"voice_file,omitempty"`
	ImageFile            string    `json:"image_file,omitempty"`
	SeverityScore        float64   `json:"severity_score"`
	Status               string    `json:"status"`
	SubmittedByID        string    `json:"submitted_by_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

func reportDetail(r *models.Report) *ReportDetail {
	return &ReportDetail{
		ID:                   r.ID,
		VillageID:            r.VillageID,
		Symptoms:             splitCommaList(r.Symptoms),
		EnvironmentalFactors: splitCommaList(r.EnvironmentalFactors),
		Notes:                r.Notes,
		VoiceFile:            r.VoiceFile,
		ImageFile:            r.ImageFile,
		SeverityScore:        r.SeverityScore,
		Status:               r.Status,
		SubmittedByID:        r.SubmittedByID,
		CreatedAt:            r.CreatedAt,
	}
}

func splitCommaList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinCommaList(values []string) string {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ",")
}

// @Summary Submit report
// @Description Accepts a multipart symptom report with optional voice note and photo
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} ReportDetail
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/reports [post]
func (s *Server) submitReport(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	villageID := c.PostForm("village_id")
	if villageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "village_id is required"})
		return
	}
	resolved, ok := s.swarmService.ResolveVillage(villageID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown village %q", villageID)})
		return
	}

	symptoms := c.PostFormArray("symptoms")
	if joinCommaList(symptoms) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one symptom is required"})
		return
	}

	report := models.Report{
		VillageID:            resolved,
		Symptoms:             joinCommaList(symptoms),
		EnvironmentalFactors: joinCommaList(c.PostFormArray("environmental_factors")),
		Notes:                c.PostForm("notes"),
		Status:               models.ReportStatusReceived,
		SubmittedByID:        sessionData.UserID,
	}

	for field, dest := range map[string]*string{"voice": &report.VoiceFile, "image": &report.ImageFile} {
		file, err := c.FormFile(field)
		if err != nil {
			continue // attachment is optional
		}
		stored, err := s.storeAttachment(c, file, field)
		if err != nil {
			s.logger.Error().Err(err).Str("field", field).Msg("Failed to store attachment")
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to store %s attachment", field)})
			return
		}
		*dest = stored
	}

	if err := s.db.Create(&report).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return
	}

	// Queue swarm analysis; the report stays "received" until the worker runs
	task, err := tasks.NewAnalyzeReportTask(report.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", report.ID).Msg("Failed to create analysis task")
	} else if _, err := s.asynqClient.Enqueue(task); err != nil {
		s.logger.Error().Err(err).Str("report_id", report.ID).Msg("Failed to enqueue analysis task")
	}

	s.logger.Info().
		Str("report_id", report.ID).
		Str("village_id", report.VillageID).
		Str("submitted_by", sessionData.UserID).
		Msg("Report received")

	c.JSON(http.StatusCreated, reportDetail(&report))
}

// storeAttachment writes an uploaded file under the upload dir with a ULID name
func (s *Server) storeAttachment(c *gin.Context, file *multipart.FileHeader, field string) (string, error) {
	if file.Size > maxUploadBytes {
		return "", fmt.Errorf("%s attachment exceeds %d bytes", field, maxUploadBytes)
	}

	dir := filepath.Join(s.config.Storage.UploadDir, field)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := ulid.Make().String() + filepath.Ext(file.Filename)
	dest := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return dest, nil
}

// @Summary List reports
// @Description Field workers see their own reports; officials see all, filterable by village
// @Tags reports
// @Produce json
// @Success 200 {array} ReportDetail
// @Router /api/v1/reports [get]
func (s *Server) listReports(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	query := s.db.Order("created_at DESC")

	if sessionData.Role == "official" {
		if village := c.Query("village"); village != "" {
			resolved, ok := s.swarmService.ResolveVillage(village)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown village %q", village)})
				return
			}
			query = query.Where("village_id = ?", resolved)
		}
	} else {
		query = query.Where("submitted_by_id = ?", sessionData.UserID)
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var reports []models.Report
	if err := query.Limit(limit).Find(&reports).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
		return
	}

	out := make([]*ReportDetail, 0, len(reports))
	for i := range reports {
		out = append(out, reportDetail(&reports[i]))
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Get report
// @Tags reports
// @Produce json
// @Success 200 {object} ReportDetail
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reports/{id} [get]
func (s *Server) getReport(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var report models.Report
	if err := models.FindByID(s.db, c.Param("id"), &report); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	// Field workers can only see their own submissions
	if sessionData.Role != "official" && report.SubmittedByID != sessionData.UserID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	c.JSON(http.StatusOK, reportDetail(&report))
}
