package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/mealforge/mealforge-backend/internal/domain"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
)

// Job notification events, addressed to the owning user.
const (
	EventMealGenerationCompleted = "meal_generation_completed"
	EventMealGenerationFailed    = "meal_generation_failed"
)

// JobNotifier delivers job-terminal events. Calls are fire-and-forget:
// delivery failures never change job status.
type JobNotifier interface {
	JobCompleted(userID uuid.UUID, job *types.GenerationJob)
	JobFailed(userID uuid.UUID, job *types.GenerationJob, errorMessage string)
}

// EventPublisher is the transport behind the notifier (Redis pub/sub in
// production wiring).
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event string, data map[string]any) error
}

type busNotifier struct {
	bus EventPublisher
	log *logger.Logger
}

func NewBusNotifier(bus EventPublisher, baseLog *logger.Logger) JobNotifier {
	return &busNotifier{
		bus: bus,
		log: baseLog.With("service", "BusNotifier"),
	}
}

func (n *busNotifier) publish(userID uuid.UUID, event string, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.bus.Publish(ctx, userID.String(), event, data); err != nil {
		n.log.Warn("notification publish failed", "event", event, "error", err)
	}
}

func (n *busNotifier) JobCompleted(userID uuid.UUID, job *types.GenerationJob) {
	n.publish(userID, EventMealGenerationCompleted, map[string]any{
		"job_id":                job.ID,
		"plan_name":             job.PlanName,
		"total_meals_generated": job.TotalMealsGenerated,
	})
}

func (n *busNotifier) JobFailed(userID uuid.UUID, job *types.GenerationJob, errorMessage string) {
	n.publish(userID, EventMealGenerationFailed, map[string]any{
		"job_id":    job.ID,
		"plan_name": job.PlanName,
		"error":     errorMessage,
	})
}

// logNotifier is the development fallback when no bus is configured.
type logNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(baseLog *logger.Logger) JobNotifier {
	return &logNotifier{log: baseLog.With("service", "LogNotifier")}
}

func (n *logNotifier) JobCompleted(userID uuid.UUID, job *types.GenerationJob) {
	n.log.Info("job completed", "user_id", userID, "job_id", job.ID, "total_meals", job.TotalMealsGenerated)
}

func (n *logNotifier) JobFailed(userID uuid.UUID, job *types.GenerationJob, errorMessage string) {
	n.log.Info("job failed", "user_id", userID, "job_id", job.ID, "error", errorMessage)
}
