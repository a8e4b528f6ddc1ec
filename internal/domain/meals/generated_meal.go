package meals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GeneratedMeal is one AI-produced recipe, scoped to exactly one generation
// job and the group it was generated for. Selected is the only field that
// changes after the bulk insert.
type GeneratedMeal struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`

	GroupID   uuid.UUID `gorm:"type:uuid;not null;index" json:"group_id"`
	GroupName string    `gorm:"column:group_name;not null" json:"group_name"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description" json:"description,omitempty"`

	PrepMinutes  int `gorm:"column:prep_minutes;not null;default:0" json:"prep_minutes"`
	CookMinutes  int `gorm:"column:cook_minutes;not null;default:0" json:"cook_minutes"`
	TotalMinutes int `gorm:"column:total_minutes;not null;default:0" json:"total_minutes"`
	Servings     int `gorm:"column:servings;not null;default:0" json:"servings"`

	Ingredients  datatypes.JSON `gorm:"column:ingredients;type:jsonb" json:"ingredients"`
	Instructions datatypes.JSON `gorm:"column:instructions;type:jsonb" json:"instructions"`
	Tags         datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`
	DietaryInfo  datatypes.JSON `gorm:"column:dietary_info;type:jsonb" json:"dietary_info,omitempty"`

	Difficulty string `gorm:"column:difficulty" json:"difficulty,omitempty"`
	Selected   bool   `gorm:"column:selected;not null;default:false" json:"selected"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (GeneratedMeal) TableName() string { return "generated_meal" }

// MealSummary is the compact meal shape returned by status queries.
type MealSummary struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	GroupName string    `json:"group_name"`
	Title     string    `json:"title"`
	Selected  bool      `json:"selected"`
}

func (m *GeneratedMeal) Summary() MealSummary {
	return MealSummary{
		ID:        m.ID,
		JobID:     m.JobID,
		GroupName: m.GroupName,
		Title:     m.Title,
		Selected:  m.Selected,
	}
}
