package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sanket-dev/sanket/internal/cli/auth"
)

// Client represents an HTTP client for the Sanket gateway API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client
func New(serverAddr string) *Client {
	baseURL := serverAddr
	if !strings.Contains(baseURL, "://") {
		baseURL = fmt.Sprintf("http://%s", serverAddr)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserDetail represents user information returned by the gateway
type UserDetail struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Village     string `json:"village,omitempty"`
	Phone       string `json:"phone,omitempty"`
	District    string `json:"district,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string     `json:"token"`
	User  UserDetail `json:"user"`
}

// Login authenticates the user and returns a JWT token
func (c *Client) Login(email, password string) (*LoginResponse, error) {
	reqBody := LoginRequest{
		Email:    email,
		Password: password,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.httpClient.Post(
		fmt.Sprintf("%s/api/auth/login", c.baseURL),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed (status %d): %s", resp.StatusCode, string(body))
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &loginResp, nil
}

// RegisterRequest represents the account registration request
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Village     string `json:"village,omitempty"`
	Phone       string `json:"phone,omitempty"`
	District    string `json:"district,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// Register creates a new account on the gateway
func (c *Client) Register(req RegisterRequest) (*UserDetail, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.httpClient.Post(
		fmt.Sprintf("%s/api/auth/register", c.baseURL),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("registration failed (status %d): %s", resp.StatusCode, string(body))
	}

	var user UserDetail
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &user, nil
}

// Me returns the currently authenticated user
func (c *Client) Me(serverAddr string) (*UserDetail, error) {
	token, err := auth.LoadToken(serverAddr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/auth/me", c.baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to fetch current user (status %d): %s", resp.StatusCode, string(body))
	}

	var user UserDetail
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &user, nil
}

// Report represents a submitted symptom report
type Report struct {
	ID                   string   `json:"id"`
	VillageID            string   `json:"village_id"`
	Symptoms             []string `json:"symptoms"`
	EnvironmentalFactors []string `json:"environmental_factors,omitempty"`
	Notes                string   `json:"notes,omitempty"`
	SeverityScore        float64  `json:"severity_score"`
	Status               string   `json:"status"`
	CreatedAt            string   `json:"created_at"`
}

// SubmitReport posts a symptom report, optionally attaching voice/image files
func (c *Client) SubmitReport(serverAddr, villageID string, symptoms, envFactors []string, notes, voicePath, imagePath string) (*Report, error) {
	token, err := auth.LoadToken(serverAddr)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	_ = writer.WriteField("village_id", villageID)
	for _, s := range symptoms {
		_ = writer.WriteField("symptoms", s)
	}
	for _, f := range envFactors {
		_ = writer.WriteField("environmental_factors", f)
	}
	if notes != "" {
		_ = writer.WriteField("notes", notes)
	}

	for field, path := range map[string]string{"voice": voicePath, "image": imagePath} {
		if path == "" {
			continue
		}
		if err := attachFile(writer, field, path); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/v1/reports", c.baseURL), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to submit report (status %d): %s", resp.StatusCode, string(respBody))
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &report, nil
}

func attachFile(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s file: %w", field, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create %s form part: %w", field, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read %s file: %w", field, err)
	}
	return nil
}

// ListReports returns recent reports visible to the caller, optionally
// filtered by village (officials only)
func (c *Client) ListReports(serverAddr, village string, limit int) ([]Report, error) {
	path := fmt.Sprintf("/api/v1/reports?limit=%d", limit)
	if village != "" {
		path += "&village=" + url.QueryEscape(village)
	}

	var reports []Report
	if err := c.getJSON(serverAddr, path, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// SwarmAgent represents one village agent in the swarm status response
type SwarmAgent struct {
	VillageID   string  `json:"village_id"`
	VillageName string  `json:"village_name"`
	RiskScore   float64 `json:"risk_score"`
	ReportCount int     `json:"report_count"`
	Neighbors   int     `json:"neighbors"`
}

// SwarmStatus represents the swarm network status
type SwarmStatus struct {
	TotalAgents  int          `json:"total_agents"`
	ActiveAlerts int          `json:"active_alerts"`
	Agents       []SwarmAgent `json:"agents"`
}

// GetSwarmStatus returns the swarm network status
func (c *Client) GetSwarmStatus(serverAddr string) (*SwarmStatus, error) {
	var status SwarmStatus
	if err := c.getJSON(serverAddr, "/api/v1/swarm/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// AgentMessage represents one inter-agent communication entry
type AgentMessage struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

// GetCommunications returns the recent inter-agent communication log
func (c *Client) GetCommunications(serverAddr string) ([]AgentMessage, error) {
	var messages []AgentMessage
	if err := c.getJSON(serverAddr, "/api/v1/swarm/communications", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SymptomCount is one symptom's frequency in an insight
type SymptomCount struct {
	Symptom string `json:"symptom"`
	Count   int    `json:"count"`
}

// Insight represents the per-village risk summary
type Insight struct {
	VillageID    string         `json:"village_id"`
	VillageName  string         `json:"village_name"`
	RiskLevel    string         `json:"risk_level"`
	RiskScore    float64        `json:"risk_score"`
	AvgSeverity  float64        `json:"avg_severity"`
	ReportCount  int            `json:"report_count"`
	ActiveAlerts int            `json:"active_alerts"`
	TopSymptoms  []SymptomCount `json:"top_symptoms"`
	GeneratedAt  string         `json:"generated_at"`
}

// GetInsight returns the risk summary for a village
func (c *Client) GetInsight(serverAddr, villageID string) (*Insight, error) {
	var insight Insight
	if err := c.getJSON(serverAddr, fmt.Sprintf("/api/v1/insights/%s", villageID), &insight); err != nil {
		return nil, err
	}
	return &insight, nil
}

// HealthResponse represents the gateway health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// Health checks gateway availability (no auth required)
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.httpClient.Get(fmt.Sprintf("%s/health", c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &health, nil
}

// getJSON performs an authenticated GET and decodes the JSON response
func (c *Client) getJSON(serverAddr, path string, out interface{}) error {
	token, err := auth.LoadToken(serverAddr)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("%s%s", c.baseURL, path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request to %s failed (status %d): %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
