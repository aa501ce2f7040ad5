package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/accounting"
	"github.com/nurpe/cnc-service/internal/activity"
	"github.com/nurpe/cnc-service/internal/auth"
	"github.com/nurpe/cnc-service/internal/config"
	"github.com/nurpe/cnc-service/internal/db"
	"github.com/nurpe/cnc-service/internal/excel"
	httphandler "github.com/nurpe/cnc-service/internal/http"
	"github.com/nurpe/cnc-service/internal/http/middleware"
	"github.com/nurpe/cnc-service/internal/logger"
	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/pdf"
	"github.com/nurpe/cnc-service/internal/repository"
	"github.com/nurpe/cnc-service/internal/repository/memory"
	"github.com/nurpe/cnc-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

// systemPrincipal runs administrative jobs started from the command line.
var systemPrincipal = model.Principal{UserID: "system", Role: model.RoleAdmin, DisplayName: "system"}

type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	repos    service.Repositories
	services httphandler.Services
	profiles *service.ProfileService
	close    func()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Environment), nil
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	repos, closeStorage, err := buildRepositories(cfg, log)
	if err != nil {
		return nil, err
	}
	recorder, err := buildRecorder(ctx, cfg)
	if err != nil {
		closeStorage()
		return nil, err
	}
	repos.Activity = recorder

	documents := service.NewDocumentService(repos, pdf.NewGenerator(""), cfg, log)
	profiles := service.NewProfileService(repos.Profiles)
	services := httphandler.Services{
		WorkOrders: service.NewWorkOrderService(repos, excel.NewGenerator(), log),
		Sessions:   service.NewSessionService(repos, log),
		Documents:  documents,
		Parts:      service.NewPartService(repos.Parts),
		Machines:   service.NewMachineService(repos),
		Profiles:   profiles,
		Portal:     service.NewPortalService(repos, documents, log),
		Accounting: service.NewAccountingService(repos, accounting.NewClient(cfg.Accounting, log), log),
	}

	return &app{
		cfg:      cfg,
		log:      log,
		repos:    repos,
		services: services,
		profiles: profiles,
		close:    closeStorage,
	}, nil
}

func buildRepositories(cfg *config.Config, log zerolog.Logger) (service.Repositories, func(), error) {
	if cfg.DB.Driver == config.StorageDriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return service.Repositories{
			WorkOrders: store.WorkOrders(),
			Sessions:   store.Sessions(),
			Documents:  store.Documents(),
			Parts:      store.Parts(),
			Profiles:   store.Profiles(),
			Machines:   store.Machines(),
		}, func() {}, nil
	}

	database, err := db.New(cfg, log)
	if err != nil {
		return service.Repositories{}, nil, fmt.Errorf("connect database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return service.Repositories{
		WorkOrders: repository.NewWorkOrderRepository(database),
		Sessions:   repository.NewSessionRepository(database),
		Documents:  repository.NewDocumentRepository(database),
		Parts:      repository.NewPartRepository(database),
		Profiles:   repository.NewProfileRepository(database),
		Machines:   repository.NewMachineRepository(database),
	}, closeDB, nil
}

func buildRecorder(ctx context.Context, cfg *config.Config) (service.ActivityRecorder, error) {
	if cfg.Activity.Store != config.ActivityStoreDynamoDB {
		return activity.NewMemoryRecorder(), nil
	}
	client, err := activity.NewDynamoClient(ctx, cfg.Activity)
	if err != nil {
		return nil, err
	}
	return activity.NewDynamoRecorder(client, cfg.Activity.Table), nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tokenParser := auth.NewParser(a.cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(a.services, a.log)
	authMiddleware := middleware.Auth(tokenParser, a.profiles, a.log)
	router := httphandler.NewRouter(handler, authMiddleware, a.cfg, a.log)

	addr := fmt.Sprintf("%s:%d", a.cfg.HTTP.Host, a.cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", addr).Str("storage", a.cfg.DB.Driver).Msg("starting cnc service")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runMigrate() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DB.Driver != config.StorageDriverPostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}
	database, err := db.Open(cfg, log)
	if err != nil {
		return err
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}

func runSyncAccounting(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.services.Accounting.Sync(ctx, systemPrincipal)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "customers: %d synced, %d failed\ninvoices: %d synced, %d failed\n",
		result.Customers.Synced, len(result.Customers.Failed),
		result.Invoices.Synced, len(result.Invoices.Failed))
	return nil
}
