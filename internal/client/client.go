package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is the HTTP consumer of the meal-generation API: submission,
// status polling and meal selection. The polling controller sits on top of
// it.
type Options struct {
	BaseURL string
	Token   string

	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	token   string

	timeout    time.Duration
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		timeout:    timeout,
		httpClient: hc,
	}, nil
}

type GroupMeal struct {
	GroupID   uuid.UUID `json:"groupId"`
	MealCount int       `json:"mealCount"`
}

type SubmitPlanRequest struct {
	PlanName   string      `json:"planName"`
	WeekStart  string      `json:"weekStart"`
	Notes      string      `json:"notes,omitempty"`
	GroupMeals []GroupMeal `json:"groupMeals"`
}

type SubmitPlanResult struct {
	JobID   uuid.UUID `json:"jobId"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// GroupRequest is the slice of the server-side snapshot the client needs.
type GroupRequest struct {
	GroupName string `json:"group_name"`
	MealCount int    `json:"meal_count"`
}

type Job struct {
	ID                  uuid.UUID      `json:"id"`
	PlanName            string         `json:"plan_name"`
	WeekStart           string         `json:"week_start"`
	Status              string         `json:"status"`
	Progress            int            `json:"progress"`
	CurrentStep         string         `json:"current_step"`
	ErrorMessage        string         `json:"error_message"`
	TotalMealsGenerated int            `json:"total_meals_generated"`
	GroupRequests       []GroupRequest `json:"group_requests"`
	CreatedAt           time.Time      `json:"created_at"`
}

type MealSummary struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	GroupName string    `json:"group_name"`
	Title     string    `json:"title"`
	Selected  bool      `json:"selected"`
}

type StatusResult struct {
	Jobs  []Job         `json:"jobs"`
	Meals []MealSummary `json:"meals"`
}

// StatusQuery filters the status endpoint: a job id, or plan name and/or
// status.
type StatusQuery struct {
	JobID    *uuid.UUID
	PlanName string
	Status   string
}

func (c *Client) SubmitPlan(ctx context.Context, req SubmitPlanRequest) (*SubmitPlanResult, error) {
	var out SubmitPlanResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/meal-plans/generate", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerationStatus(ctx context.Context, q StatusQuery) (*StatusResult, error) {
	query := url.Values{}
	if q.JobID != nil && *q.JobID != uuid.Nil {
		query.Set("jobId", q.JobID.String())
	}
	if q.PlanName != "" {
		query.Set("planName", q.PlanName)
	}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	var out StatusResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/meal-plans/generation-status", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobStatus fetches a single job with its meal summaries.
func (c *Client) JobStatus(ctx context.Context, jobID uuid.UUID) (*Job, []MealSummary, error) {
	res, err := c.GenerationStatus(ctx, StatusQuery{JobID: &jobID})
	if err != nil {
		return nil, nil, err
	}
	if len(res.Jobs) == 0 {
		return nil, nil, fmt.Errorf("job %s not in status response", jobID)
	}
	job := res.Jobs[0]
	return &job, res.Meals, nil
}

func (c *Client) SelectMeal(ctx context.Context, mealID uuid.UUID, selected bool) error {
	body := map[string]any{"selected": selected}
	path := fmt.Sprintf("/api/meals/%s/select", mealID)
	return c.doJSON(ctx, http.MethodPost, path, nil, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return parseHTTPError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
