package meals

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
)

// memoryGenerationJobRepo is the development backend: a process-local map
// keyed by job id. Not safe for multi-process deployment; never a production
// code path. Transition semantics match the durable repo exactly.
type memoryGenerationJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*types.GenerationJob
}

func NewMemoryGenerationJobRepo() GenerationJobRepo {
	return &memoryGenerationJobRepo{jobs: map[uuid.UUID]*types.GenerationJob{}}
}

func cloneJob(j *types.GenerationJob) *types.GenerationJob {
	if j == nil {
		return nil
	}
	out := *j
	out.GroupRequests = append(datatypes.JSON(nil), j.GroupRequests...)
	out.ErrorDetail = append(datatypes.JSON(nil), j.ErrorDetail...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func (r *memoryGenerationJobRepo) Create(_ dbctx.Context, job *types.GenerationJob) (*types.GenerationJob, error) {
	if job == nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return nil, fmt.Errorf("duplicate job id %s", job.ID)
	}
	r.jobs[job.ID] = cloneJob(job)
	return job, nil
}

func (r *memoryGenerationJobRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.GenerationJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneJob(r.jobs[id]), nil
}

func (r *memoryGenerationJobRepo) ListByOwner(_ dbctx.Context, ownerUserID uuid.UUID, filter JobFilter) ([]*types.GenerationJob, error) {
	var out []*types.GenerationJob
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.OwnerUserID != ownerUserID {
			continue
		}
		if filter.PlanName != "" && j.PlanName != filter.PlanName {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

func (r *memoryGenerationJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := r.UpdateFieldsUnlessStatus(dbc, id, nil, updates)
	return err
}

func (r *memoryGenerationJobRepo) UpdateFieldsUnlessStatus(_ dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	for _, s := range disallowedStatuses {
		if j.Status == s {
			return false, nil
		}
	}
	for column, value := range updates {
		if err := applyJobUpdate(j, column, value); err != nil {
			return false, err
		}
	}
	if _, ok := updates["updated_at"]; !ok {
		j.UpdatedAt = time.Now()
	}
	return true, nil
}

func applyJobUpdate(j *types.GenerationJob, column string, value interface{}) error {
	switch column {
	case "status":
		j.Status = value.(string)
	case "progress":
		j.Progress = asInt(value)
	case "current_step":
		j.CurrentStep = value.(string)
	case "error_message":
		j.ErrorMsg = value.(string)
	case "error_detail":
		switch v := value.(type) {
		case datatypes.JSON:
			j.ErrorDetail = append(datatypes.JSON(nil), v...)
		case []byte:
			j.ErrorDetail = append(datatypes.JSON(nil), v...)
		case nil:
			j.ErrorDetail = nil
		default:
			return fmt.Errorf("unsupported error_detail value %T", value)
		}
	case "total_meals_generated":
		j.TotalMealsGenerated = asInt(value)
	case "generation_calls_made":
		j.GenerationCallsMade = asInt(value)
	case "generation_ms":
		j.GenerationMS = int64(asInt(value))
	case "started_at":
		j.StartedAt = asTimePtr(value)
	case "completed_at":
		j.CompletedAt = asTimePtr(value)
	case "updated_at":
		if t := asTimePtr(value); t != nil {
			j.UpdatedAt = *t
		}
	default:
		return fmt.Errorf("unknown generation job column %q", column)
	}
	return nil
}

func asInt(value interface{}) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

func asTimePtr(value interface{}) *time.Time {
	switch v := value.(type) {
	case time.Time:
		t := v
		return &t
	case *time.Time:
		if v == nil {
			return nil
		}
		t := *v
		return &t
	default:
		return nil
	}
}
