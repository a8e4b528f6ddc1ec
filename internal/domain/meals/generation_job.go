package meals

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Generation job statuses. Pending and processing are non-terminal;
// completed and failed are terminal and immutable once set.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// TerminalStatuses lists the statuses a job never leaves.
var TerminalStatuses = []string{JobStatusCompleted, JobStatusFailed}

func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// GroupRequest is one entry of the group-request snapshot captured at
// submission time. The snapshot is the authoritative generation input and is
// never re-derived from live group rows, even if the group is edited or
// deleted afterward.
type GroupRequest struct {
	GroupID             uuid.UUID `json:"group_id"`
	GroupName           string    `json:"group_name"`
	Adults              int       `json:"adults"`
	Children            int       `json:"children"`
	Infants             int       `json:"infants"`
	DietaryRestrictions []string  `json:"dietary_restrictions,omitempty"`
	MealCount           int       `json:"meal_count"`
	Notes               string    `json:"notes,omitempty"`
	AdultEquivalent     float64   `json:"adult_equivalent"`
}

// GenerationJob tracks one meal-generation attempt through its lifecycle.
type GenerationJob struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	PlanName  string `gorm:"column:plan_name;not null;index" json:"plan_name"`
	WeekStart string `gorm:"column:week_start;not null" json:"week_start"`
	Notes     string `gorm:"column:notes" json:"notes,omitempty"`

	GroupRequests datatypes.JSON `gorm:"column:group_requests;type:jsonb" json:"group_requests"`

	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	CurrentStep string         `gorm:"column:current_step" json:"current_step,omitempty"`
	ErrorMsg    string         `gorm:"column:error_message" json:"error_message,omitempty"`
	ErrorDetail datatypes.JSON `gorm:"column:error_detail;type:jsonb" json:"error_detail,omitempty"`

	TotalMealsGenerated int   `gorm:"column:total_meals_generated;not null;default:0" json:"total_meals_generated"`
	GenerationCallsMade int   `gorm:"column:generation_calls_made;not null;default:0" json:"generation_calls_made"`
	GenerationMS        int64 `gorm:"column:generation_ms;not null;default:0" json:"generation_ms"`

	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (GenerationJob) TableName() string { return "meal_generation_job" }

// Requests decodes the group-request snapshot.
func (j *GenerationJob) Requests() ([]GroupRequest, error) {
	if len(j.GroupRequests) == 0 {
		return nil, nil
	}
	var out []GroupRequest
	if err := json.Unmarshal(j.GroupRequests, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeRequests sets the group-request snapshot.
func (j *GenerationJob) EncodeRequests(reqs []GroupRequest) error {
	raw, err := json.Marshal(reqs)
	if err != nil {
		return err
	}
	j.GroupRequests = datatypes.JSON(raw)
	return nil
}
