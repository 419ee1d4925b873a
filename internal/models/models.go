package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// ServerConfig represents the global configuration for the single-tenant gateway
// This is a singleton model (only one row should exist)
type ServerConfig struct {
	BaseModel
	// Authentication configuration
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first setup (64 hex chars)

	// Sweep configuration (periodic outbreak detection)
	SweepSchedule string     `json:"sweep_schedule"` // Cron expression, empty = no periodic sweep
	LastSweepAt   *time.Time `json:"last_sweep_at"`
	NextSweepAt   *time.Time `json:"next_sweep_at"`
}

// User represents a registered account (ASHA field worker or health official)
type User struct {
	BaseModel
	Email        string    `json:"email" gorm:"unique;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name"`
	Role         string    `json:"role" gorm:"not null;default:'asha'"` // "asha" or "official"
	Village      string    `json:"village,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	District     string    `json:"district,omitempty"`
	Designation  string    `json:"designation,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Report statuses
const (
	ReportStatusReceived = "received"
	ReportStatusAnalyzed = "analyzed"
	ReportStatusEscalated = "escalated"
)

// Report represents a symptom report submitted by a field worker
type Report struct {
	BaseModel
	VillageID            string  `json:"village_id" gorm:"not null;index"`
	Symptoms             string  `json:"symptoms" gorm:"type:text;not null"` // comma-separated
	EnvironmentalFactors string  `json:"environmental_factors" gorm:"type:text"`
	Notes                string  `json:"notes" gorm:"type:text"`
	VoiceFile            string  `json:"voice_file,omitempty"`
	ImageFile            string  `json:"image_file,omitempty"`
	SeverityScore        float64 `json:"severity_score"`
	Status               string  `json:"status" gorm:"not null;default:'received'"`
	SubmittedByID        string  `json:"submitted_by_id" gorm:"index"`

	// Relationships
	SubmittedBy *User `json:"submitted_by,omitempty" gorm:"foreignKey:SubmittedByID;references:ID;constraint:OnDelete:SET NULL"`
}

// AgentMessage represents one inter-agent communication log entry
type AgentMessage struct {
	BaseModel
	FromAgent string `json:"from" gorm:"not null"`
	ToAgent   string `json:"to" gorm:"not null"`
	Type      string `json:"type" gorm:"not null"` // symptom_report, neighbor_alert, vote_request, vote
	Content   string `json:"content" gorm:"type:text"`
}

// OutbreakAlert represents a suspected outbreak raised by the swarm
type OutbreakAlert struct {
	BaseModel
	VillageID  string  `json:"village_id" gorm:"not null;index"`
	RiskScore  float64 `json:"risk_score"`
	Consensus  bool    `json:"consensus"` // true when neighbor agents voted to confirm
	VotesFor   int     `json:"votes_for"`
	VotesTotal int     `json:"votes_total"`
	Resolved   bool    `json:"resolved" gorm:"not null;default:false"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{}, &ServerConfig{}, &Report{}, &AgentMessage{}, &OutbreakAlert{},
	)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
