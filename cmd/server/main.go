package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/database"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/handler"
	"github.com/stemsi/examhall/internal/logger"
	"github.com/stemsi/examhall/internal/metrics"
	"github.com/stemsi/examhall/internal/repository"
	"github.com/stemsi/examhall/internal/router"
	"github.com/stemsi/examhall/internal/service"
	"github.com/stemsi/examhall/internal/storage"
	"github.com/stemsi/examhall/internal/validator"
	"github.com/stemsi/examhall/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("storage", cfg.StorageDriver).
		Msg("Starting exam hall server")

	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL and Redis ───────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	uploader, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image storage")
	}

	// ─── Repositories ──────────────────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	integrityRepo := repository.NewIntegrityRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)
	examRepo := repository.NewCachedExamRepository(
		repository.NewExamRepository(pool), rdb, cfg.ExamCacheTTL, log,
	)

	// ─── Exam Engine ───────────────────────────────────────────────────
	monitorService := service.NewMonitorService(monitorRepo, rdb, log)
	loader := exam.NewLoader(examRepo, log)
	persister := exam.NewPersister(resultRepo, examRepo, log, monitorService, metrics.ResultObserver{})

	// ─── Services ──────────────────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, studentRepo, adminRepo)
	studentService := service.NewStudentService(studentRepo, cfg.BcryptCost)
	examService := service.NewExamService(examRepo, log)
	sessionService := service.NewExamSessionService(loader, persister, resultRepo, log)
	resultService := service.NewResultService(examRepo, resultRepo)
	mediaService := service.NewMediaService(uploader, cfg.MaxUploadBytes, log)
	questionService := service.NewQuestionService(examRepo, mediaService, log)

	// ─── Handlers ──────────────────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		StudentPortal: handler.NewStudentPortalHandler(sessionService, resultService),
		Admin:         handler.NewAdminHandler(studentService, authService),
		Exam:          handler.NewExamHandler(examService, resultService),
		Question:      handler.NewQuestionHandler(questionService),
		Media:         handler.NewMediaHandler(mediaService),
		WS: handler.NewWSHandler(sessionService, monitorService, log, handler.SocketOptions{
			AllowedOrigins: cfg.AllowedOrigins,
			RatePerSecond:  cfg.SocketRatePerSecond,
			RateBurst:      cfg.SocketRateBurst,
		}),
		Monitor: handler.NewMonitorHandler(rdb, examService, monitorService, log),
		Health:  handler.NewHealthHandler(pool, rdb, log),
	}

	// ─── Background Workers ────────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	integrityWorker := worker.NewIntegrityWorker(integrityRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		integrityWorker.Start(workerCtx)
	}()

	// Load published exams into Redis before accepting traffic.
	if err := examRepo.Prewarm(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	r := router.SetupRouter(ctx, authService, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	// Exam sockets and monitor streams never go idle; ending ctx on
	// shutdown lets them abandon or detach.
	srv.RegisterOnShutdown(cancel)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
