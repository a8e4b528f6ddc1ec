package meals

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
)

// GeneratedMealRepo stores the recipe rows produced by a completed job.
// Rows are written once in a single batch; only the selected flag mutates
// afterward.
type GeneratedMealRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.GeneratedMeal) ([]*types.GeneratedMeal, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GeneratedMeal, error)
	GetByJobIDs(dbc dbctx.Context, jobIDs []uuid.UUID) ([]*types.GeneratedMeal, error)
	SetSelected(dbc dbctx.Context, id uuid.UUID, selected bool) (bool, error)
}

type generatedMealRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeneratedMealRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedMealRepo {
	return &generatedMealRepo{
		db:  db,
		log: baseLog.With("repo", "GeneratedMealRepo"),
	}
}

func (r *generatedMealRepo) CreateBatch(dbc dbctx.Context, rows []*types.GeneratedMeal) ([]*types.GeneratedMeal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.GeneratedMeal{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *generatedMealRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GeneratedMeal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.GeneratedMeal
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *generatedMealRepo) GetByJobIDs(dbc dbctx.Context, jobIDs []uuid.UUID) ([]*types.GeneratedMeal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GeneratedMeal
	if len(jobIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("job_id IN ?", jobIDs).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generatedMealRepo) SetSelected(dbc dbctx.Context, id uuid.UUID, selected bool) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.GeneratedMeal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"selected":   selected,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
