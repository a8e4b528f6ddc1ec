package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	grouprepos "github.com/mealforge/mealforge-backend/internal/data/repos/groups"
	mealrepos "github.com/mealforge/mealforge-backend/internal/data/repos/meals"
	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/apierr"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
	"github.com/mealforge/mealforge-backend/internal/requestdata"
)

// recorderNotifier counts terminal notifications per job.
type recorderNotifier struct {
	mu        sync.Mutex
	completed []uuid.UUID
	failed    []uuid.UUID
}

func (n *recorderNotifier) JobCompleted(_ uuid.UUID, job *types.GenerationJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, job.ID)
}

func (n *recorderNotifier) JobFailed(_ uuid.UUID, job *types.GenerationJob, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, job.ID)
}

func (n *recorderNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.completed), len(n.failed)
}

// waitCounts polls until at least one notification arrived; the notify call
// runs slightly after the terminal status becomes visible.
func (n *recorderNotifier) waitCounts(t *testing.T) (int, int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, f := n.counts(); c+f > 0 {
			time.Sleep(20 * time.Millisecond) // allow a hypothetical duplicate to land
			return n.counts()
		}
		time.Sleep(5 * time.Millisecond)
	}
	return n.counts()
}

// shortGenerator returns fewer recipes than requested for every group.
type shortGenerator struct {
	perGroup int
}

func (g *shortGenerator) GenerateMeals(_ context.Context, req GenerationRequest) (map[string][]GeneratedRecipe, error) {
	out := make(map[string][]GeneratedRecipe, len(req.Groups))
	for _, gr := range req.Groups {
		for i := 0; i < g.perGroup; i++ {
			out[gr.GroupName] = append(out[gr.GroupName], GeneratedRecipe{Title: "dish"})
		}
	}
	return out, nil
}

func (g *shortGenerator) Close() error { return nil }

type failingGenerator struct {
	err error
}

func (g *failingGenerator) GenerateMeals(context.Context, GenerationRequest) (map[string][]GeneratedRecipe, error) {
	return nil, g.err
}

func (g *failingGenerator) Close() error { return nil }

type mealGenFixture struct {
	service  *mealGenerationService
	jobs     mealrepos.GenerationJobRepo
	meals    mealrepos.GeneratedMealRepo
	groups   grouprepos.GroupRepo
	notifier *recorderNotifier
}

func newMealGenFixture(t *testing.T, generator MealGenerator) *mealGenFixture {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if generator == nil {
		generator = NewMockMealGenerator()
	}
	f := &mealGenFixture{
		jobs:     mealrepos.NewMemoryGenerationJobRepo(),
		meals:    mealrepos.NewMemoryGeneratedMealRepo(),
		groups:   grouprepos.NewMemoryGroupRepo(),
		notifier: &recorderNotifier{},
	}
	f.service = NewMealGenerationService(log, f.jobs, f.meals, f.groups, generator, f.notifier).(*mealGenerationService)
	return f
}

func (f *mealGenFixture) seedGroup(t *testing.T, ownerID uuid.UUID, name string, adults int) uuid.UUID {
	t.Helper()
	g := &types.Group{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Name:        name,
		Adults:      adults,
		Active:      true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if _, err := f.groups.Create(dbctx.Context{Ctx: context.Background()}, []*types.Group{g}); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return g.ID
}

func (f *mealGenFixture) waitForTerminal(t *testing.T, jobID uuid.UUID) *types.GenerationJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := f.jobs.GetByID(dbctx.Context{Ctx: context.Background()}, jobID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && types.IsTerminalStatus(job.Status) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func authedCtx(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

func apiErrCode(t *testing.T, err error) *apierr.Error {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("error %v is not an apierr", err)
	}
	return ae
}

func TestSubmitPlan_RequiresAuth(t *testing.T) {
	f := newMealGenFixture(t, nil)
	_, err := f.service.SubmitPlan(context.Background(), SubmitPlanRequest{})
	ae := apiErrCode(t, err)
	if ae.Status != http.StatusUnauthorized || ae.Code != "auth_required" {
		t.Fatalf("got %d/%s, want 401/auth_required", ae.Status, ae.Code)
	}
}

func TestSubmitPlan_Validation(t *testing.T) {
	f := newMealGenFixture(t, nil)
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	tests := []struct {
		name      string
		req       SubmitPlanRequest
		wantField string
	}{
		{
			name: "missing plan name",
			req: SubmitPlanRequest{
				WeekStart:  "2026-08-31",
				GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 3}},
			},
			wantField: "planName",
		},
		{
			name: "bad week start",
			req: SubmitPlanRequest{
				PlanName:   "Week 36",
				WeekStart:  "not-a-date",
				GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 3}},
			},
			wantField: "weekStart",
		},
		{
			name: "no groups",
			req: SubmitPlanRequest{
				PlanName:  "Week 36",
				WeekStart: "2026-08-31",
			},
			wantField: "groupMeals",
		},
		{
			name: "zero meal count",
			req: SubmitPlanRequest{
				PlanName:   "Week 36",
				WeekStart:  "2026-08-31",
				GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 0}},
			},
			wantField: "groupMeals[0].mealCount",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.SubmitPlan(authedCtx(owner), tc.req)
			ae := apiErrCode(t, err)
			if ae.Status != http.StatusBadRequest || ae.Code != "invalid_plan" {
				t.Fatalf("got %d/%s, want 400/invalid_plan", ae.Status, ae.Code)
			}
			if _, ok := ae.Fields[tc.wantField]; !ok {
				t.Fatalf("fields %v missing %q", ae.Fields, tc.wantField)
			}
		})
	}
}

func TestSubmitPlan_NoActiveGroups(t *testing.T) {
	f := newMealGenFixture(t, nil)
	_, err := f.service.SubmitPlan(authedCtx(uuid.New()), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: uuid.New(), MealCount: 3}},
	})
	ae := apiErrCode(t, err)
	if ae.Code != "no_groups_available" {
		t.Fatalf("got code %q, want no_groups_available", ae.Code)
	}
}

func TestSubmitPlan_ForeignGroupCreatesNoJob(t *testing.T) {
	f := newMealGenFixture(t, nil)
	owner := uuid.New()
	f.seedGroup(t, owner, "Family", 2)
	foreignGroup := f.seedGroup(t, uuid.New(), "Other household", 1)

	_, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: foreignGroup, MealCount: 3}},
	})
	ae := apiErrCode(t, err)
	if ae.Code != "plan_not_generable" {
		t.Fatalf("got code %q, want plan_not_generable", ae.Code)
	}

	jobs, err := f.jobs.ListByOwner(dbctx.Context{Ctx: context.Background()}, owner, mealrepos.JobFilter{})
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("rejected submission left %d job records", len(jobs))
	}
}

func TestSubmitPlan_GeneratesBufferedMeals(t *testing.T) {
	f := newMealGenFixture(t, nil)
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	job, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 3}},
	})
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	if job.Status != types.JobStatusPending || job.Progress != 0 || job.CurrentStep != "Queued" {
		t.Fatalf("fresh job = %s/%d/%q, want pending/0/Queued", job.Status, job.Progress, job.CurrentStep)
	}

	reqs, err := job.Requests()
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if len(reqs) != 1 || reqs[0].MealCount != 3+ExtraMealsPerGroup {
		t.Fatalf("snapshot meal count = %d, want %d", reqs[0].MealCount, 3+ExtraMealsPerGroup)
	}

	final := f.waitForTerminal(t, job.ID)
	if final.Status != types.JobStatusCompleted {
		t.Fatalf("job ended %s (%s), want completed", final.Status, final.ErrorMsg)
	}
	if final.Progress != 100 || final.CurrentStep != "Completed" {
		t.Fatalf("completed job = %d/%q", final.Progress, final.CurrentStep)
	}
	if final.TotalMealsGenerated != 5 || final.GenerationCallsMade != 1 {
		t.Fatalf("counters = %d meals / %d calls, want 5 / 1", final.TotalMealsGenerated, final.GenerationCallsMade)
	}
	if final.StartedAt == nil || final.CompletedAt == nil {
		t.Fatal("timestamps not set on completion")
	}

	meals, err := f.meals.GetByJobIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{job.ID})
	if err != nil {
		t.Fatalf("GetByJobIDs: %v", err)
	}
	if len(meals) != 5 {
		t.Fatalf("got %d meal rows, want 5", len(meals))
	}
	for _, m := range meals {
		if m.JobID != job.ID || m.GroupID != groupID || m.GroupName != "Family" {
			t.Fatalf("meal row mis-scoped: %+v", m.Summary())
		}
		if m.Selected {
			t.Fatal("fresh meal row is selected")
		}
	}

	completed, failed := f.notifier.waitCounts(t)
	if completed != 1 || failed != 0 {
		t.Fatalf("notifications = %d completed / %d failed, want 1 / 0", completed, failed)
	}
}

func TestSubmitPlan_UnderDeliveryCountsActualRows(t *testing.T) {
	f := newMealGenFixture(t, &shortGenerator{perGroup: 2})
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	job, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 3}},
	})
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}

	// 5 were requested after the buffer; the generator delivered 2. The
	// counter reports what was actually inserted.
	final := f.waitForTerminal(t, job.ID)
	if final.Status != types.JobStatusCompleted {
		t.Fatalf("job ended %s, want completed", final.Status)
	}
	if final.TotalMealsGenerated != 2 {
		t.Fatalf("total_meals_generated = %d, want 2", final.TotalMealsGenerated)
	}
	meals, _ := f.meals.GetByJobIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{job.ID})
	if len(meals) != 2 {
		t.Fatalf("got %d rows, want 2", len(meals))
	}
}

func TestSubmitPlan_GeneratorFailureMarksJobFailed(t *testing.T) {
	f := newMealGenFixture(t, &failingGenerator{err: errors.New("upstream quota exhausted")})
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	job, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 3}},
	})
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}

	final := f.waitForTerminal(t, job.ID)
	if final.Status != types.JobStatusFailed {
		t.Fatalf("job ended %s, want failed", final.Status)
	}
	if final.ErrorMsg == "" {
		t.Fatal("failed job has no error message")
	}
	if final.CompletedAt == nil {
		t.Fatal("failed job has no completion timestamp")
	}

	meals, err := f.meals.GetByJobIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{job.ID})
	if err != nil {
		t.Fatalf("GetByJobIDs: %v", err)
	}
	if len(meals) != 0 {
		t.Fatalf("failed job persisted %d meal rows", len(meals))
	}

	completed, failed := f.notifier.waitCounts(t)
	if completed != 0 || failed != 1 {
		t.Fatalf("notifications = %d completed / %d failed, want 0 / 1", completed, failed)
	}
}

func TestProcessJob_TerminalJobIsImmutable(t *testing.T) {
	f := newMealGenFixture(t, nil)
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	job, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 2}},
	})
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	final := f.waitForTerminal(t, job.ID)
	if final.Status != types.JobStatusCompleted {
		t.Fatalf("job ended %s, want completed", final.Status)
	}

	// A duplicate executor run must bail at the first guarded write.
	f.service.processJob(context.Background(), job.ID)

	again, err := f.jobs.GetByID(dbctx.Context{Ctx: context.Background()}, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if again.Status != types.JobStatusCompleted || again.Progress != 100 {
		t.Fatalf("terminal job mutated: %s/%d", again.Status, again.Progress)
	}
	meals, _ := f.meals.GetByJobIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{job.ID})
	if len(meals) != 4 {
		t.Fatalf("duplicate run changed meal rows: %d", len(meals))
	}
	completed, failed := f.notifier.waitCounts(t)
	if completed != 1 || failed != 0 {
		t.Fatalf("duplicate run re-notified: %d completed / %d failed", completed, failed)
	}
}

func TestQueryStatus(t *testing.T) {
	f := newMealGenFixture(t, nil)
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	job, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 2}},
	})
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	f.waitForTerminal(t, job.ID)

	t.Run("by job id", func(t *testing.T) {
		res, err := f.service.QueryStatus(authedCtx(owner), StatusFilter{JobID: &job.ID})
		if err != nil {
			t.Fatalf("QueryStatus: %v", err)
		}
		if len(res.Jobs) != 1 || res.Jobs[0].ID != job.ID {
			t.Fatalf("got %d jobs", len(res.Jobs))
		}
		if len(res.Meals) != 4 {
			t.Fatalf("got %d meal summaries, want 4", len(res.Meals))
		}
	})

	t.Run("by plan name", func(t *testing.T) {
		res, err := f.service.QueryStatus(authedCtx(owner), StatusFilter{PlanName: "Week 36"})
		if err != nil {
			t.Fatalf("QueryStatus: %v", err)
		}
		if len(res.Jobs) != 1 {
			t.Fatalf("got %d jobs", len(res.Jobs))
		}
	})

	t.Run("no filter is rejected", func(t *testing.T) {
		_, err := f.service.QueryStatus(authedCtx(owner), StatusFilter{})
		ae := apiErrCode(t, err)
		if ae.Status != http.StatusBadRequest || ae.Code != "invalid_request" {
			t.Fatalf("got %d/%s, want 400/invalid_request", ae.Status, ae.Code)
		}
	})

	t.Run("unknown job id", func(t *testing.T) {
		missing := uuid.New()
		_, err := f.service.QueryStatus(authedCtx(owner), StatusFilter{JobID: &missing})
		ae := apiErrCode(t, err)
		if ae.Status != http.StatusNotFound || ae.Code != "not_found" {
			t.Fatalf("got %d/%s, want 404/not_found", ae.Status, ae.Code)
		}
	})

	t.Run("other user's job looks missing", func(t *testing.T) {
		_, err := f.service.QueryStatus(authedCtx(uuid.New()), StatusFilter{JobID: &job.ID})
		ae := apiErrCode(t, err)
		if ae.Status != http.StatusNotFound || ae.Code != "not_found" {
			t.Fatalf("got %d/%s, want 404/not_found", ae.Status, ae.Code)
		}
	})
}

// Back-to-back status queries for a settled job must return identical
// records; a read must never mutate what it reads.
func TestQueryStatus_ReadIsIdempotent(t *testing.T) {
	f := newMealGenFixture(t, nil)
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	job, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 2}},
	})
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	f.waitForTerminal(t, job.ID)

	first, err := f.service.QueryStatus(authedCtx(owner), StatusFilter{JobID: &job.ID})
	if err != nil {
		t.Fatalf("first QueryStatus: %v", err)
	}
	second, err := f.service.QueryStatus(authedCtx(owner), StatusFilter{JobID: &job.ID})
	if err != nil {
		t.Fatalf("second QueryStatus: %v", err)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first result: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second result: %v", err)
	}
	if !bytes.Equal(firstJSON, secondJSON) {
		t.Fatalf("status query mutated the record:\nfirst:  %s\nsecond: %s", firstJSON, secondJSON)
	}
}

func TestSetMealSelected(t *testing.T) {
	f := newMealGenFixture(t, nil)
	owner := uuid.New()
	groupID := f.seedGroup(t, owner, "Family", 2)

	job, err := f.service.SubmitPlan(authedCtx(owner), SubmitPlanRequest{
		PlanName:   "Week 36",
		WeekStart:  "2026-08-31",
		GroupMeals: []GroupMealRequest{{GroupID: groupID, MealCount: 1}},
	})
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	f.waitForTerminal(t, job.ID)

	meals, _ := f.meals.GetByJobIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{job.ID})
	if len(meals) == 0 {
		t.Fatal("no meals generated")
	}
	mealID := meals[0].ID

	meal, err := f.service.SetMealSelected(authedCtx(owner), mealID, true)
	if err != nil {
		t.Fatalf("SetMealSelected: %v", err)
	}
	if !meal.Selected {
		t.Fatal("returned meal not marked selected")
	}

	t.Run("cross-user selection looks missing", func(t *testing.T) {
		_, err := f.service.SetMealSelected(authedCtx(uuid.New()), mealID, false)
		ae := apiErrCode(t, err)
		if ae.Status != http.StatusNotFound || ae.Code != "not_found" {
			t.Fatalf("got %d/%s, want 404/not_found", ae.Status, ae.Code)
		}
	})

	t.Run("unknown meal", func(t *testing.T) {
		_, err := f.service.SetMealSelected(authedCtx(owner), uuid.New(), true)
		ae := apiErrCode(t, err)
		if ae.Status != http.StatusNotFound || ae.Code != "not_found" {
			t.Fatalf("got %d/%s, want 404/not_found", ae.Status, ae.Code)
		}
	})
}
