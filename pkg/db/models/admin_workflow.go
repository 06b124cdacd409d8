package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// AdminWorkflow is a review-queue item handed to agency operators.
type AdminWorkflow struct {
	ID              uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AgencyID        uuid.UUID            `gorm:"column:agency_id;type:uuid;not null"`
	Type            enums.WorkflowType   `gorm:"column:type;not null"`
	Priority        enums.Severity       `gorm:"column:priority;not null"`
	Status          enums.WorkflowStatus `gorm:"column:status;not null;default:'pending'"`
	Title           string               `gorm:"column:title;not null"`
	Description     string               `gorm:"column:description;not null"`
	RelatedEntity   enums.RelatedEntity  `gorm:"column:related_entity_type;not null"`
	RelatedEntityID uuid.UUID            `gorm:"column:related_entity_id;type:uuid;not null"`
	IssueCodes      pq.StringArray       `gorm:"column:issue_codes;type:text[]"`
	AutoCreated     bool                 `gorm:"column:auto_created;not null;default:true"`
	EscalationCount int                  `gorm:"column:escalation_count;not null;default:0"`
	Deadline        *time.Time           `gorm:"column:deadline"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
