package groups

import (
	"gorm.io/gorm"

	"github.com/google/uuid"

	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
)

// GroupRepo is the collaborator store the submission handler resolves groups
// from. Group CRUD itself lives elsewhere; generation only reads.
type GroupRepo interface {
	Create(dbc dbctx.Context, rows []*types.Group) ([]*types.Group, error)
	GetActiveByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Group, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Group, error)
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	return &groupRepo{
		db:  db,
		log: baseLog.With("repo", "GroupRepo"),
	}
}

func (r *groupRepo) Create(dbc dbctx.Context, rows []*types.Group) ([]*types.Group, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Group{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *groupRepo) GetActiveByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Group, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Group
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ? AND active = ?", ownerUserID, true).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *groupRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Group, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Group
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
