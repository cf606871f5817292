package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/auth"
	"github.com/taskradar/taskradar/internal/config"
	"github.com/taskradar/taskradar/internal/dispatch"
	"github.com/taskradar/taskradar/internal/httpapi"
	"github.com/taskradar/taskradar/internal/notify"
	"github.com/taskradar/taskradar/internal/store/postgres"
	"github.com/taskradar/taskradar/internal/tasks"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	st, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	registry := notify.NewRegistry(logger)

	dispatchCfg := dispatch.DefaultConfig()
	dispatchCfg.QuickBookRadiusKm = cfg.QuickBookRadiusKm
	dispatchCfg.StageOneRadiusKm = cfg.StageOneRadiusKm
	dispatchCfg.StageTwoRadiusKm = cfg.StageTwoRadiusKm
	dispatchCfg.StageTwoDelay = cfg.StageTwoDelay
	dispatchCfg.StageThreeDelay = cfg.StageThreeDelay
	dispatchCfg.BiddingWindow = cfg.BiddingWindow

	svc := dispatch.New(st, registry, tasks.NewEnqueuer(asynqClient), dispatchCfg, logger)

	// In-process task worker handles delayed stage escalation and
	// quick-book expiry.
	worker := tasks.NewServer(redisOpt, svc, logger)
	if err := worker.Start(); err != nil {
		logger.Fatal("start task worker", zap.Error(err))
	}
	defer worker.Shutdown()

	secret := []byte(cfg.JWTSecret)
	authHandler := auth.NewHandler(st, secret)
	apiHandler := httpapi.NewHandler(svc, registry, logger)

	e := echo.New()
	e.HideBanner = true
	httpapi.Register(e, apiHandler, authHandler, st, secret)

	if err := e.Start(":" + cfg.Port); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
