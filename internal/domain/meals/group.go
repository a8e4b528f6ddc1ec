package meals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Group is a household demographic profile. Group CRUD lives outside this
// service; generation only reads active groups to build the submission-time
// snapshot.
type Group struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	Name     string `gorm:"column:name;not null" json:"name"`
	Adults   int    `gorm:"column:adults;not null;default:0" json:"adults"`
	Children int    `gorm:"column:children;not null;default:0" json:"children"`
	Infants  int    `gorm:"column:infants;not null;default:0" json:"infants"`

	DietaryRestrictions datatypes.JSON `gorm:"column:dietary_restrictions;type:jsonb" json:"dietary_restrictions,omitempty"`
	Notes               string         `gorm:"column:notes" json:"notes,omitempty"`
	Active              bool           `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Group) TableName() string { return "household_group" }

// AdultEquivalent sizes portions from the demographic counts. The factor is
// captured into the snapshot at submission and treated as opaque afterward.
func (g *Group) AdultEquivalent() float64 {
	return float64(g.Adults) + 0.7*float64(g.Children) + 0.3*float64(g.Infants)
}
