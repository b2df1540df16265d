package server

import (
	"log"
	"net/http"

	"tariff-routing-service/internal/config"
	"tariff-routing-service/internal/events"
	"tariff-routing-service/internal/handler"
	"tariff-routing-service/internal/repository"
	"tariff-routing-service/internal/router"
	"tariff-routing-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	HTTP   *http.Server
	Logger *zap.Logger
}

func NewServer(cfg config.AppConfig) *Server {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	// --- DB connection ---
	db, err := config.ConnectDB()
	if err != nil {
		logger.Fatal("failed to connect to DB", zap.Error(err))
	}

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Repositories ---
	tariffRepo := repository.NewTariffRepo(db)
	partnerRepo := repository.NewPartnerRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	meterStore := repository.NewRedisMeterStore(rdb)

	// --- Usecases ---
	matcher := usecase.NewTariffMatcher(logger)
	fees := usecase.NewFeeCalculator()
	quota := usecase.NewQuotaTracker(meterStore, logger)
	partnerRouter := usecase.NewPartnerRouter(quota, logger)
	publisher := events.NewEventPublisher(rdb, logger)

	resolUC := usecase.NewResolutionUsecase(
		tariffRepo,
		partnerRepo,
		auditRepo,
		matcher,
		fees,
		quota,
		partnerRouter,
		publisher,
		logger,
		cfg.SnapshotTTL,
	)

	approvalUC := usecase.NewApprovalUsecase(tariffRepo, partnerRepo, logger)
	approvalUC.OnConfigChange(resolUC.InvalidateSnapshot)

	// --- Handlers ---
	engineHandler := handler.NewEngineHandler(
		resolUC,
		approvalUC,
		quota,
		tariffRepo,
		partnerRepo,
		logger,
	)

	// --- HTTP router ---
	r := chi.NewRouter()
	r = router.SetupRoutes(r, engineHandler, rdb, logger).(*chi.Mux)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	return &Server{
		HTTP:   httpSrv,
		Logger: logger,
	}
}

// StartHTTP runs the HTTP server
func (s *Server) StartHTTP() error {
	s.Logger.Info("engine HTTP service listening", zap.String("addr", s.HTTP.Addr))
	return s.HTTP.ListenAndServe()
}
