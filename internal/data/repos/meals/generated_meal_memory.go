package meals

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
)

// memoryGeneratedMealRepo mirrors the durable meal store as a job-id keyed
// map. Development convenience only.
type memoryGeneratedMealRepo struct {
	mu      sync.Mutex
	byJobID map[uuid.UUID][]*types.GeneratedMeal
}

func NewMemoryGeneratedMealRepo() GeneratedMealRepo {
	return &memoryGeneratedMealRepo{byJobID: map[uuid.UUID][]*types.GeneratedMeal{}}
}

func cloneMeal(m *types.GeneratedMeal) *types.GeneratedMeal {
	if m == nil {
		return nil
	}
	out := *m
	out.Ingredients = append(datatypes.JSON(nil), m.Ingredients...)
	out.Instructions = append(datatypes.JSON(nil), m.Instructions...)
	out.Tags = append(datatypes.JSON(nil), m.Tags...)
	out.DietaryInfo = append(datatypes.JSON(nil), m.DietaryInfo...)
	return &out
}

func (r *memoryGeneratedMealRepo) CreateBatch(_ dbctx.Context, rows []*types.GeneratedMeal) ([]*types.GeneratedMeal, error) {
	if len(rows) == 0 {
		return []*types.GeneratedMeal{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range rows {
		r.byJobID[m.JobID] = append(r.byJobID[m.JobID], cloneMeal(m))
	}
	return rows, nil
}

func (r *memoryGeneratedMealRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.GeneratedMeal, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rows := range r.byJobID {
		for _, m := range rows {
			if m.ID == id {
				return cloneMeal(m), nil
			}
		}
	}
	return nil, nil
}

func (r *memoryGeneratedMealRepo) GetByJobIDs(_ dbctx.Context, jobIDs []uuid.UUID) ([]*types.GeneratedMeal, error) {
	var out []*types.GeneratedMeal
	if len(jobIDs) == 0 {
		return out, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, jobID := range jobIDs {
		for _, m := range r.byJobID[jobID] {
			out = append(out, cloneMeal(m))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (r *memoryGeneratedMealRepo) SetSelected(_ dbctx.Context, id uuid.UUID, selected bool) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rows := range r.byJobID {
		for _, m := range rows {
			if m.ID == id {
				m.Selected = selected
				m.UpdatedAt = time.Now()
				return true, nil
			}
		}
	}
	return false, nil
}
