package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	redisclient "github.com/mealforge/mealforge-backend/internal/clients/redis"
	"github.com/mealforge/mealforge-backend/internal/data/db"
	grouprepos "github.com/mealforge/mealforge-backend/internal/data/repos/groups"
	mealrepos "github.com/mealforge/mealforge-backend/internal/data/repos/meals"
	httpserver "github.com/mealforge/mealforge-backend/internal/http"
	httpH "github.com/mealforge/mealforge-backend/internal/http/handlers"
	httpMW "github.com/mealforge/mealforge-backend/internal/http/middleware"
	"github.com/mealforge/mealforge-backend/internal/observability"
	"github.com/mealforge/mealforge-backend/internal/platform/envutil"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
	"github.com/mealforge/mealforge-backend/internal/services"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	if shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "mealforge",
		Environment: envutil.Str("APP_ENV", "development"),
		Version:     envutil.Str("APP_VERSION", "dev"),
	}); shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	jwtSecretKey := envutil.Str("JWT_SECRET_KEY", "defaultsecret")

	// Store mode selects the job record store backend. "memory" is a
	// development-only convenience: one process, volatile, same transition
	// semantics as the durable store.
	storeMode := strings.ToLower(envutil.Str("STORE_MODE", "postgres"))

	var (
		jobRepo   mealrepos.GenerationJobRepo
		mealRepo  mealrepos.GeneratedMealRepo
		groupRepo grouprepos.GroupRepo
	)
	switch storeMode {
	case "memory":
		log.Info("Using in-memory store (development mode)")
		jobRepo = mealrepos.NewMemoryGenerationJobRepo()
		mealRepo = mealrepos.NewMemoryGeneratedMealRepo()
		groupRepo = grouprepos.NewMemoryGroupRepo()
	default:
		pg, err := db.NewPostgresService(log)
		if err != nil {
			log.Fatal("Postgres init failed", "error", err)
		}
		if err := db.AutoMigrateAll(pg.DB()); err != nil {
			log.Fatal("Postgres auto migration failed", "error", err)
		}
		jobRepo = mealrepos.NewGenerationJobRepo(pg.DB(), log)
		mealRepo = mealrepos.NewGeneratedMealRepo(pg.DB(), log)
		groupRepo = grouprepos.NewGroupRepo(pg.DB(), log)
	}

	// External generator: Gemini when a key is configured, otherwise the
	// deterministic mock (local development without an API key).
	var generator services.MealGenerator
	if apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); apiKey != "" {
		generator, err = services.NewGeminiMealGenerator(ctx, log, apiKey)
		if err != nil {
			log.Fatal("Gemini client init failed", "error", err)
		}
	} else {
		log.Warn("GEMINI_API_KEY not set; using mock meal generator")
		generator = services.NewMockMealGenerator()
	}
	defer func() { _ = generator.Close() }()

	// Notifications ride the Redis bus when available; delivery is best
	// effort either way.
	var notifier services.JobNotifier
	if bus, busErr := redisclient.NewNotifyBus(log); busErr == nil {
		notifier = services.NewBusNotifier(bus, log)
		defer func() { _ = bus.Close() }()
	} else {
		log.Warn("Redis notify bus unavailable; logging notifications", "error", busErr)
		notifier = services.NewLogNotifier(log)
	}

	authService := services.NewAuthService(log, jwtSecretKey)
	mealGenService := services.NewMealGenerationService(log, jobRepo, mealRepo, groupRepo, generator, notifier)

	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:                   log,
		AuthMiddleware:        httpMW.NewAuthMiddleware(log, authService),
		MealGenerationHandler: httpH.NewMealGenerationHandler(log, mealGenService),
		HealthHandler:         httpH.NewHealthHandler(),
	})

	addr := ":" + envutil.Str("PORT", "8080")
	log.Info("Starting server", "addr", addr, "store_mode", storeMode)
	if err := server.Run(addr); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
