package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	grouprepos "github.com/mealforge/mealforge-backend/internal/data/repos/groups"
	mealrepos "github.com/mealforge/mealforge-backend/internal/data/repos/meals"
	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/apierr"
	"github.com/mealforge/mealforge-backend/internal/platform/dbctx"
	"github.com/mealforge/mealforge-backend/internal/platform/errs"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
	"github.com/mealforge/mealforge-backend/internal/requestdata"
)

// ExtraMealsPerGroup is added to every group's requested meal count at
// submission time so users have spares to choose from when selecting.
const ExtraMealsPerGroup = 2

const weekStartLayout = "2006-01-02"

type GroupMealRequest struct {
	GroupID   uuid.UUID `json:"groupId"`
	MealCount int       `json:"mealCount"`
}

type SubmitPlanRequest struct {
	PlanName   string             `json:"planName"`
	WeekStart  string             `json:"weekStart"`
	Notes      string             `json:"notes,omitempty"`
	GroupMeals []GroupMealRequest `json:"groupMeals"`
}

// StatusFilter selects jobs for a status query: either one job by id, or the
// caller's jobs narrowed by plan name and/or status.
type StatusFilter struct {
	JobID    *uuid.UUID
	PlanName string
	Status   string
}

type StatusResult struct {
	Jobs  []*types.GenerationJob `json:"jobs"`
	Meals []types.MealSummary    `json:"meals"`
}

type MealGenerationService interface {
	// SubmitPlan validates the plan, snapshots the referenced groups, creates
	// a pending job and launches generation in the background. It returns as
	// soon as the record exists; generation latency never blocks the caller.
	SubmitPlan(ctx context.Context, req SubmitPlanRequest) (*types.GenerationJob, error)
	// QueryStatus returns the matching job(s) plus meal summaries, owner
	// scoped, newest job first.
	QueryStatus(ctx context.Context, filter StatusFilter) (*StatusResult, error)
	// SetMealSelected toggles the one mutable field of a generated meal.
	SetMealSelected(ctx context.Context, mealID uuid.UUID, selected bool) (*types.GeneratedMeal, error)
}

type mealGenerationService struct {
	log       *logger.Logger
	jobs      mealrepos.GenerationJobRepo
	meals     mealrepos.GeneratedMealRepo
	groups    grouprepos.GroupRepo
	generator MealGenerator
	notify    JobNotifier
}

func NewMealGenerationService(
	baseLog *logger.Logger,
	jobs mealrepos.GenerationJobRepo,
	meals mealrepos.GeneratedMealRepo,
	groups grouprepos.GroupRepo,
	generator MealGenerator,
	notify JobNotifier,
) MealGenerationService {
	return &mealGenerationService{
		log:       baseLog.With("service", "MealGenerationService"),
		jobs:      jobs,
		meals:     meals,
		groups:    groups,
		generator: generator,
		notify:    notify,
	}
}

func (s *mealGenerationService) SubmitPlan(ctx context.Context, req SubmitPlanRequest) (*types.GenerationJob, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "auth_required", errs.ErrUnauthorized)
	}

	planName := strings.TrimSpace(req.PlanName)
	weekStart := strings.TrimSpace(req.WeekStart)

	fields := map[string]string{}
	if planName == "" {
		fields["planName"] = "plan name is required"
	}
	if _, err := time.Parse(weekStartLayout, weekStart); err != nil {
		fields["weekStart"] = "week start must be a YYYY-MM-DD date"
	}
	if len(req.GroupMeals) == 0 {
		fields["groupMeals"] = "at least one group with a meal count is required"
	}
	for i, gm := range req.GroupMeals {
		if gm.GroupID == uuid.Nil {
			fields[fmt.Sprintf("groupMeals[%d].groupId", i)] = "group id is required"
		}
		if gm.MealCount < 1 {
			fields[fmt.Sprintf("groupMeals[%d].mealCount", i)] = "meal count must be at least 1"
		}
	}
	if len(fields) > 0 {
		return nil, apierr.WithFields(http.StatusBadRequest, "invalid_plan", errors.New("plan validation failed"), fields)
	}

	dbc := dbctx.Context{Ctx: ctx}

	active, err := s.groups.GetActiveByOwner(dbc, rd.UserID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("load groups: %w", err))
	}
	if len(active) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "no_groups_available", errors.New("no active groups for this user"))
	}

	byID := make(map[uuid.UUID]*types.Group, len(active))
	for _, g := range active {
		byID[g.ID] = g
	}
	for i, gm := range req.GroupMeals {
		if _, ok := byID[gm.GroupID]; !ok {
			fields[fmt.Sprintf("groupMeals[%d].groupId", i)] = "group does not exist or is not owned by the caller"
		}
	}
	if len(fields) > 0 {
		return nil, apierr.WithFields(http.StatusBadRequest, "plan_not_generable", errors.New("plan references unavailable groups"), fields)
	}

	// Snapshot the groups as they exist right now. Generation runs against
	// this copy even if the groups are edited or deleted afterward.
	snapshot := make([]types.GroupRequest, 0, len(req.GroupMeals))
	for _, gm := range req.GroupMeals {
		g := byID[gm.GroupID]
		var restrictions []string
		if len(g.DietaryRestrictions) > 0 {
			_ = json.Unmarshal(g.DietaryRestrictions, &restrictions)
		}
		snapshot = append(snapshot, types.GroupRequest{
			GroupID:             g.ID,
			GroupName:           g.Name,
			Adults:              g.Adults,
			Children:            g.Children,
			Infants:             g.Infants,
			DietaryRestrictions: restrictions,
			MealCount:           gm.MealCount + ExtraMealsPerGroup,
			Notes:               g.Notes,
			AdultEquivalent:     g.AdultEquivalent(),
		})
	}

	now := time.Now()
	job := &types.GenerationJob{
		ID:          uuid.New(),
		OwnerUserID: rd.UserID,
		PlanName:    planName,
		WeekStart:   weekStart,
		Notes:       strings.TrimSpace(req.Notes),
		Status:      types.JobStatusPending,
		Progress:    0,
		CurrentStep: "Queued",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := job.EncodeRequests(snapshot); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "internal_error", fmt.Errorf("encode snapshot: %w", err))
	}
	if _, err := s.jobs.Create(dbc, job); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("create job: %w", err))
	}

	// Fire and forget: the executor owns the record from here on and runs on
	// a detached context so the HTTP request ending does not cancel it.
	go s.processJob(context.Background(), job.ID)

	return job, nil
}

// processJob drives one job through its lifecycle. All writes go through the
// terminal-status guard, so a job observed as completed or failed can never
// change again. The executor never retries; resubmission creates a new job.
func (s *mealGenerationService) processJob(ctx context.Context, jobID uuid.UUID) {
	log := s.log.With("job_id", jobID)
	dbc := dbctx.Context{Ctx: ctx}
	startedAt := time.Now()

	fail := func(message string, detail map[string]any) {
		now := time.Now()
		updated, err := s.jobs.UpdateFieldsUnlessStatus(dbc, jobID, types.TerminalStatuses, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error_message": message,
			"error_detail":  mustJSON(detail),
			"completed_at":  now,
			"generation_ms": time.Since(startedAt).Milliseconds(),
		})
		if err != nil {
			log.Error("failed to mark job failed", "error", err)
			return
		}
		if !updated {
			return
		}
		log.Warn("meal generation failed", "message", message)
		if job, gerr := s.jobs.GetByID(dbc, jobID); gerr == nil && job != nil {
			s.notify.JobFailed(job.OwnerUserID, job, message)
		}
	}

	advance := func(progress int, step string, extra map[string]interface{}) bool {
		updates := map[string]interface{}{
			"progress":     progress,
			"current_step": step,
		}
		for k, v := range extra {
			updates[k] = v
		}
		updated, err := s.jobs.UpdateFieldsUnlessStatus(dbc, jobID, types.TerminalStatuses, updates)
		if err != nil {
			log.Error("job progress update failed", "step", step, "error", err)
			return false
		}
		return updated
	}

	job, err := s.jobs.GetByID(dbc, jobID)
	if err != nil {
		log.Error("job load failed", "error", err)
		return
	}
	if job == nil {
		log.Error("job disappeared before execution")
		return
	}

	reqs, err := job.Requests()
	if err != nil || len(reqs) == 0 {
		fail("The generation request was invalid.", map[string]any{"step": "validate", "cause": fmt.Sprint(err)})
		return
	}

	if !advance(10, "Preparing request", map[string]interface{}{
		"status":     types.JobStatusProcessing,
		"started_at": startedAt,
	}) {
		return
	}

	genReq := GenerationRequest{
		PlanName:  job.PlanName,
		WeekStart: job.WeekStart,
		Notes:     job.Notes,
		Groups:    reqs,
	}

	if !advance(30, "Generating meals", nil) {
		return
	}

	// One batched call per job; this is the dominant latency.
	results, err := s.generator.GenerateMeals(ctx, genReq)
	if err != nil {
		fail("Meal generation failed. Please try again.", map[string]any{"step": "generate", "cause": err.Error()})
		return
	}

	if !advance(80, "Saving generated meals", nil) {
		return
	}

	now := time.Now()
	rows := make([]*types.GeneratedMeal, 0)
	for _, gr := range reqs {
		for _, rec := range results[gr.GroupName] {
			rows = append(rows, &types.GeneratedMeal{
				ID:           uuid.New(),
				JobID:        jobID,
				GroupID:      gr.GroupID,
				GroupName:    gr.GroupName,
				Title:        rec.Title,
				Description:  rec.Description,
				PrepMinutes:  rec.PrepMinutes,
				CookMinutes:  rec.CookMinutes,
				TotalMinutes: rec.TotalMinutes,
				Servings:     rec.Servings,
				Ingredients:  mustJSON(rec.Ingredients),
				Instructions: mustJSON(rec.Instructions),
				Tags:         mustJSON(rec.Tags),
				DietaryInfo:  mustJSON(rec.DietaryInfo),
				Difficulty:   rec.Difficulty,
				Selected:     false,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
	}
	if _, err := s.meals.CreateBatch(dbc, rows); err != nil {
		fail("Failed to save the generated meals.", map[string]any{"step": "persist", "cause": err.Error()})
		return
	}

	updated, err := s.jobs.UpdateFieldsUnlessStatus(dbc, jobID, types.TerminalStatuses, map[string]interface{}{
		"status":                types.JobStatusCompleted,
		"progress":              100,
		"current_step":          "Completed",
		"completed_at":          time.Now(),
		"total_meals_generated": len(rows),
		"generation_calls_made": 1,
		"generation_ms":         time.Since(startedAt).Milliseconds(),
	})
	if err != nil {
		log.Error("failed to finalize job", "error", err)
		return
	}
	if !updated {
		return
	}
	log.Info("meal generation completed", "total_meals", len(rows))
	if final, gerr := s.jobs.GetByID(dbc, jobID); gerr == nil && final != nil {
		s.notify.JobCompleted(final.OwnerUserID, final)
	}
}

func (s *mealGenerationService) QueryStatus(ctx context.Context, filter StatusFilter) (*StatusResult, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "auth_required", errs.ErrUnauthorized)
	}

	dbc := dbctx.Context{Ctx: ctx}
	var jobs []*types.GenerationJob

	if filter.JobID != nil && *filter.JobID != uuid.Nil {
		job, err := s.jobs.GetByID(dbc, *filter.JobID)
		if err != nil {
			return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("load job: %w", err))
		}
		// Another user's job is indistinguishable from a missing one.
		if job == nil || job.OwnerUserID != rd.UserID {
			return nil, apierr.New(http.StatusNotFound, "not_found", errs.ErrNotFound)
		}
		jobs = []*types.GenerationJob{job}
	} else {
		if filter.PlanName == "" && filter.Status == "" {
			return nil, apierr.New(http.StatusBadRequest, "invalid_request", errors.New("jobId, planName or status is required"))
		}
		var err error
		jobs, err = s.jobs.ListByOwner(dbc, rd.UserID, mealrepos.JobFilter{
			PlanName: filter.PlanName,
			Status:   filter.Status,
		})
		if err != nil {
			return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("list jobs: %w", err))
		}
	}

	jobIDs := make([]uuid.UUID, 0, len(jobs))
	for _, j := range jobs {
		jobIDs = append(jobIDs, j.ID)
	}
	mealRows, err := s.meals.GetByJobIDs(dbc, jobIDs)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("load meals: %w", err))
	}
	summaries := make([]types.MealSummary, 0, len(mealRows))
	for _, m := range mealRows {
		summaries = append(summaries, m.Summary())
	}

	return &StatusResult{Jobs: jobs, Meals: summaries}, nil
}

func (s *mealGenerationService) SetMealSelected(ctx context.Context, mealID uuid.UUID, selected bool) (*types.GeneratedMeal, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "auth_required", errs.ErrUnauthorized)
	}

	dbc := dbctx.Context{Ctx: ctx}
	meal, err := s.meals.GetByID(dbc, mealID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("load meal: %w", err))
	}
	if meal == nil {
		return nil, apierr.New(http.StatusNotFound, "not_found", errs.ErrNotFound)
	}
	job, err := s.jobs.GetByID(dbc, meal.JobID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("load job: %w", err))
	}
	if job == nil || job.OwnerUserID != rd.UserID {
		return nil, apierr.New(http.StatusNotFound, "not_found", errs.ErrNotFound)
	}

	ok, err := s.meals.SetSelected(dbc, mealID, selected)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "store_unavailable", fmt.Errorf("update meal: %w", err))
	}
	if !ok {
		return nil, apierr.New(http.StatusNotFound, "not_found", errs.ErrNotFound)
	}
	meal.Selected = selected
	return meal, nil
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(raw)
}
