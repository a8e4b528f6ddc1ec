package db

import (
	types "github.com/mealforge/mealforge-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.Group{},
		&types.GenerationJob{},
		&types.GeneratedMeal{},
	)
}
