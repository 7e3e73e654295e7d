package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/config"
	"github.com/romanzh1/rpsc-study-coach/internal/handler"
	"github.com/romanzh1/rpsc-study-coach/internal/repository"
	"github.com/romanzh1/rpsc-study-coach/internal/scheduler"
	"github.com/romanzh1/rpsc-study-coach/internal/server"
	"github.com/romanzh1/rpsc-study-coach/internal/service"
	"github.com/romanzh1/rpsc-study-coach/internal/service/planner"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func newLogger(loc *time.Location) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	// log timestamps in the coaching timezone
	config.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format("2006-01-02T15:04:05-07:00"))
	}

	return config.Build()
}

func main() {
	cfg, cfgErr := config.Load()

	loc := time.UTC
	if cfgErr == nil {
		loc = cfg.Location
	}

	logger, err := newLogger(loc)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	zap.S().Info("logger initialized")

	if cfgErr != nil {
		zap.S().Errorw("load config", zap.Error(cfgErr))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		zap.S().Errorw("bot exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	plan, err := config.LoadPlan(cfg.PlanFile)
	if err != nil {
		return err
	}

	repo, err := repository.NewDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to database (driver: %s): %w", cfg.DB.Driver, err)
	}
	defer repo.Close()

	if err = repo.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := repository.LoadCatalog(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err = repository.Seed(ctx, repo, catalog); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	qm := quiz.NewManager(quiz.RealClock(), cfg.QuestionTimeout)
	defer qm.Stop()

	svc := service.NewService(
		repo,
		planner.New(plan.Template, rand.New(rand.NewSource(time.Now().UnixNano()))),
		qm,
		plan,
		service.Options{
			Location:   cfg.Location,
			ExamDate:   cfg.ExamDate,
			StreakGoal: cfg.StreakGoalHours,
		},
	)

	bot, err := handler.NewTelegramHandler(cfg.TelegramToken, svc, handler.Options{
		SkipWindow:      cfg.SkipWindow,
		QuestionTimeout: cfg.QuestionTimeout,
	})
	if err != nil {
		return fmt.Errorf("create telegram handler: %w", err)
	}
	svc.SetNotifier(bot)

	sched, err := scheduler.New(svc, bot, scheduler.Options{
		Location:    cfg.Location,
		AdminChatID: cfg.AdminChatID,
		IdleTTL:     cfg.SessionIdleTTL,
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	router := server.NewRouter(server.NewHealthHandler(repo, qm))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return server.Run(ctx, cfg.HTTPAddr, router) })

	zap.S().Infow("coach started", zap.String("http_addr", cfg.HTTPAddr), zap.String("db_driver", repo.Driver()))

	return g.Wait()
}
