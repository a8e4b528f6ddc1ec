package meals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mealforge/mealforge-backend/internal/data/repos/testutil"
	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
)

func newTestJob(ownerID uuid.UUID, planName string, createdAt time.Time) *types.GenerationJob {
	job := &types.GenerationJob{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		PlanName:    planName,
		WeekStart:   "2026-08-31",
		Status:      types.JobStatusPending,
		CurrentStep: "Queued",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	_ = job.EncodeRequests([]types.GroupRequest{{
		GroupID:   uuid.New(),
		GroupName: "Family",
		Adults:    2,
		MealCount: 5,
	}})
	return job
}

func TestGenerationJobRepo_CreateAndGet(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewGenerationJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	job := newTestJob(uuid.New(), "Week 36", time.Now())
	if _, err := repo.Create(dbc, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil for existing job")
	}
	if got.Status != types.JobStatusPending || got.Progress != 0 {
		t.Fatalf("fresh job = %s/%d, want pending/0", got.Status, got.Progress)
	}
	reqs, err := got.Requests()
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if len(reqs) != 1 || reqs[0].GroupName != "Family" || reqs[0].MealCount != 5 {
		t.Fatalf("snapshot did not round-trip: %+v", reqs)
	}
}

func TestGenerationJobRepo_GetByID_Missing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewGenerationJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	got, err := repo.GetByID(dbc, uuid.New())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("GetByID for unknown id = %+v, want nil", got)
	}
}

func TestGenerationJobRepo_ListByOwner(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewGenerationJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	owner := uuid.New()
	other := uuid.New()
	base := time.Now().Add(-time.Hour)

	older := newTestJob(owner, "Week 35", base)
	newer := newTestJob(owner, "Week 36", base.Add(30*time.Minute))
	newer.Status = types.JobStatusCompleted
	foreign := newTestJob(other, "Week 36", base.Add(10*time.Minute))

	for _, j := range []*types.GenerationJob{older, newer, foreign} {
		if _, err := repo.Create(dbc, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	t.Run("newest first, owner scoped", func(t *testing.T) {
		jobs, err := repo.ListByOwner(dbc, owner, JobFilter{})
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("got %d jobs, want 2", len(jobs))
		}
		if jobs[0].ID != newer.ID || jobs[1].ID != older.ID {
			t.Fatalf("jobs not ordered newest first: %s, %s", jobs[0].PlanName, jobs[1].PlanName)
		}
	})

	t.Run("plan name filter", func(t *testing.T) {
		jobs, err := repo.ListByOwner(dbc, owner, JobFilter{PlanName: "Week 35"})
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		if len(jobs) != 1 || jobs[0].ID != older.ID {
			t.Fatalf("plan filter returned %d jobs", len(jobs))
		}
	})

	t.Run("status filter", func(t *testing.T) {
		jobs, err := repo.ListByOwner(dbc, owner, JobFilter{Status: types.JobStatusCompleted})
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		if len(jobs) != 1 || jobs[0].ID != newer.ID {
			t.Fatalf("status filter returned %d jobs", len(jobs))
		}
	})
}

func TestGenerationJobRepo_UpdateFieldsUnlessStatus(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewGenerationJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	job := newTestJob(uuid.New(), "Week 36", time.Now())
	if _, err := repo.Create(dbc, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := repo.UpdateFieldsUnlessStatus(dbc, job.ID, types.TerminalStatuses, map[string]interface{}{
		"status":       types.JobStatusProcessing,
		"progress":     30,
		"current_step": "Generating meals",
	})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if !updated {
		t.Fatal("update on non-terminal job reported no rows")
	}

	updated, err = repo.UpdateFieldsUnlessStatus(dbc, job.ID, types.TerminalStatuses, map[string]interface{}{
		"status":       types.JobStatusCompleted,
		"progress":     100,
		"current_step": "Completed",
	})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if !updated {
		t.Fatal("completing a processing job reported no rows")
	}

	// Terminal jobs never change again, whatever the write says.
	updated, err = repo.UpdateFieldsUnlessStatus(dbc, job.ID, types.TerminalStatuses, map[string]interface{}{
		"status":   types.JobStatusFailed,
		"progress": 0,
	})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if updated {
		t.Fatal("write on completed job was applied")
	}

	got, err := repo.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobStatusCompleted || got.Progress != 100 {
		t.Fatalf("terminal job mutated: %s/%d", got.Status, got.Progress)
	}
}

func TestGeneratedMealRepo_BatchAndSelect(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewGeneratedMealRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	jobID := uuid.New()
	groupID := uuid.New()
	now := time.Now()
	rows := []*types.GeneratedMeal{
		{ID: uuid.New(), JobID: jobID, GroupID: groupID, GroupName: "Family", Title: "Pasta", CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), JobID: jobID, GroupID: groupID, GroupName: "Family", Title: "Soup", CreatedAt: now.Add(time.Second), UpdatedAt: now},
	}
	if _, err := repo.CreateBatch(dbc, rows); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	got, err := repo.GetByJobIDs(dbc, []uuid.UUID{jobID})
	if err != nil {
		t.Fatalf("GetByJobIDs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d meals, want 2", len(got))
	}
	if got[0].Title != "Pasta" {
		t.Fatalf("meals not ordered by creation: first is %q", got[0].Title)
	}

	ok, err := repo.SetSelected(dbc, rows[0].ID, true)
	if err != nil {
		t.Fatalf("SetSelected: %v", err)
	}
	if !ok {
		t.Fatal("SetSelected on existing meal reported no rows")
	}
	meal, err := repo.GetByID(dbc, rows[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if meal == nil || !meal.Selected {
		t.Fatal("selected flag not persisted")
	}

	ok, err = repo.SetSelected(dbc, uuid.New(), true)
	if err != nil {
		t.Fatalf("SetSelected: %v", err)
	}
	if ok {
		t.Fatal("SetSelected on unknown meal reported success")
	}
}
