package models

import (
	"time"

	"github.com/google/uuid"
)

// SchemaMapping is the plain snapshot of a schema-mapping document.
// It carries no behavior and is what the persistence layer stores.
type SchemaMapping struct {
	ID                  uuid.UUID                  `json:"id"`
	ProjectID           uuid.UUID                  `json:"project_id"`
	Name                string                     `json:"name"`
	TargetKnowledgeBase string                     `json:"target_knowledge_base"`
	ItemID              string                     `json:"item_id,omitempty"` // set once mapped to an existing item
	Labels              map[string]ColumnMapping   `json:"labels"`
	Descriptions        map[string]ColumnMapping   `json:"descriptions"`
	Aliases             map[string][]ColumnMapping `json:"aliases"`
	Statements          []StatementMapping         `json:"statements"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
}
