package groups

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
)

// memoryGroupRepo backs the development store mode.
type memoryGroupRepo struct {
	mu     sync.Mutex
	groups map[uuid.UUID]*types.Group
}

func NewMemoryGroupRepo() GroupRepo {
	return &memoryGroupRepo{groups: map[uuid.UUID]*types.Group{}}
}

func cloneGroup(g *types.Group) *types.Group {
	if g == nil {
		return nil
	}
	out := *g
	out.DietaryRestrictions = append(datatypes.JSON(nil), g.DietaryRestrictions...)
	return &out
}

func (r *memoryGroupRepo) Create(_ dbctx.Context, rows []*types.Group) ([]*types.Group, error) {
	if len(rows) == 0 {
		return []*types.Group{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range rows {
		r.groups[g.ID] = cloneGroup(g)
	}
	return rows, nil
}

func (r *memoryGroupRepo) GetActiveByOwner(_ dbctx.Context, ownerUserID uuid.UUID) ([]*types.Group, error) {
	var out []*types.Group
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		if g.OwnerUserID == ownerUserID && g.Active {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (r *memoryGroupRepo) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.Group, error) {
	var out []*types.Group
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if g, ok := r.groups[id]; ok {
			out = append(out, cloneGroup(g))
		}
	}
	return out, nil
}
