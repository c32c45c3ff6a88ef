package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"bottleswap-server/internal/domain/capture"
	"bottleswap-server/internal/domain/detect"
	domainmorph "bottleswap-server/internal/domain/morph"
	sessionstore "bottleswap-server/internal/domain/session/store"
	platformconfig "bottleswap-server/internal/platform/config"
	platformerrors "bottleswap-server/internal/platform/errors"
	platformlogging "bottleswap-server/internal/platform/logging"
	platformobservability "bottleswap-server/internal/platform/observability"
	platformstorage "bottleswap-server/internal/platform/storage"
	"bottleswap-server/internal/providers/synthesis"
	"bottleswap-server/internal/providers/vision"
	httptransport "bottleswap-server/internal/transport/http"
	httpmorph "bottleswap-server/internal/transport/http/morph"
	httpscan "bottleswap-server/internal/transport/http/scan"
	httpsystem "bottleswap-server/internal/transport/http/system"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config                *platformconfig.Config
	configPath            string
	logProvider           *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	sessions              sessionstore.Store
	detector              *detect.Detector
	morphPipeline         *domainmorph.Pipeline
	capturePipeline       *capture.Pipeline
}

// Run starts the whole service lifecycle: configuration, dependency wiring,
// the HTTP server and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logProvider
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.sessions == nil || state.detector == nil || state.morphPipeline == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"pipeline dependencies not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WarnTag("Bootstrap", "observability shutdown incomplete: %v", err)
			}
		}()
	}

	defer func() {
		if closeErr := state.sessions.Close(context.Background()); closeErr != nil {
			logger.ErrorTag("Session", "session store did not close cleanly: %v", closeErr)
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start HTTP service: %w", err)
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("Bootstrap", "service stopped")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "initialisation order")
	for _, step := range steps {
		logger.InfoTag("Bootstrap", "  %s: %s", step.ID, step.Title)
	}
	logger.InfoTag("Bootstrap", "starting services")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "session:init-store",
			Title:     "Initialise session store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initSessionStoreStep,
		},
		{
			ID:        "detect:init-detector",
			Title:     "Initialise detection stack",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindVision,
			Execute:   initDetectorStep,
		},
		{
			ID:        "morph:init-pipeline",
			Title:     "Initialise morph pipeline",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindSynthesis,
			Execute:   initMorphPipelineStep,
		},
		{
			ID:        "capture:init-pipeline",
			Title:     "Initialise capture pipeline",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initCapturePipelineStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	config, err := platformconfig.NewLoader().Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = config
	state.configPath = ".config.yaml"
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	state.slogger = logProvider.Slog()

	logProvider.InfoTag(
		"Bootstrap",
		"logging ready [%s] %s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logProvider == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

// initDatabaseStep opens sqlite only when the session store needs it.
func initDatabaseStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindStorage,
			"storage:init-database",
			"config not loaded",
		)
	}

	driver := strings.ToLower(strings.TrimSpace(state.config.Session.Store.Type))
	if driver != sessionstore.DriverSQLite && driver != "database" {
		return nil
	}

	dsn := state.config.Session.Store.SQLite.DSN
	db, err := platformstorage.Open(dsn)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&platformstorage.ScanSession{}); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to migrate session schema", err)
	}
	state.db = db

	if state.logProvider != nil {
		state.logProvider.InfoTag("Storage", "sqlite ready at %s", dsn)
	}
	return nil
}

func initSessionStoreStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logProvider == nil {
		return platformerrors.New(
			platformerrors.KindStorage,
			"session:init-store",
			"missing config/logger",
		)
	}

	sessions, err := buildSessionStore(state.config, state.logProvider, state.db)
	if err != nil {
		return err
	}
	state.sessions = sessions
	return nil
}

func buildSessionStore(config *platformconfig.Config, logger *platformlogging.Logger, db *gorm.DB) (sessionstore.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(config.Session.Store.Type))
	storeCfg := sessionstore.Config{
		Driver: driver,
		TTL:    config.Session.Store.Expiry,
	}
	if storeCfg.Driver == "" || storeCfg.Driver == "database" {
		storeCfg.Driver = sessionstore.DriverMemory
	}

	switch storeCfg.Driver {
	case sessionstore.DriverMemory:
		storeCfg.Memory = &sessionstore.MemoryConfig{
			GCInterval: config.Session.Store.Memory.Cleanup,
		}
	case sessionstore.DriverSQLite:
		storeCfg.SQLite = &sessionstore.SQLiteConfig{
			DSN: config.Session.Store.SQLite.DSN,
		}
	case sessionstore.DriverRedis:
		if config.Session.Store.Redis.Addr == "" {
			return nil, platformerrors.New(
				platformerrors.KindStorage,
				"session:init-store",
				"redis store addr is required",
			)
		}
		storeCfg.Redis = &sessionstore.RedisConfig{
			Addr:     config.Session.Store.Redis.Addr,
			Username: config.Session.Store.Redis.Username,
			Password: config.Session.Store.Redis.Password,
			DB:       config.Session.Store.Redis.DB,
			Prefix:   config.Session.Store.Redis.Prefix,
		}
	default:
		logger.WarnTag("Session", "unsupported store type %s, falling back to memory", driver)
		storeCfg.Driver = sessionstore.DriverMemory
		storeCfg.Memory = &sessionstore.MemoryConfig{GCInterval: config.Session.Store.Memory.Cleanup}
	}

	sessions, err := sessionstore.New(storeCfg, sessionstore.Dependencies{SQLiteDB: db})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "session:init-store", "failed to create session store", err)
	}
	return sessions, nil
}

func initDetectorStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logProvider == nil {
		return platformerrors.New(
			platformerrors.KindVision,
			"detect:init-detector",
			"missing config/logger",
		)
	}

	visionClient, err := vision.NewClient(state.config.Vision, state.logProvider)
	if err != nil {
		return err
	}

	detector, err := detect.NewDetector(visionClient, detect.Options{
		BottleMinAspect: state.config.Pipeline.BottleMinAspect,
		CanMaxAspect:    state.config.Pipeline.CanMaxAspect,
	}, state.logProvider)
	if err != nil {
		return err
	}
	state.detector = detector
	return nil
}

func initMorphPipelineStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logProvider == nil {
		return platformerrors.New(
			platformerrors.KindSynthesis,
			"morph:init-pipeline",
			"missing config/logger",
		)
	}

	synthClient, err := synthesis.NewClient(state.config.Synthesis, state.logProvider)
	if err != nil {
		return err
	}

	reference := domainmorph.NewReferenceCache(state.config.Pipeline.ReferenceImage)
	pipeline, err := domainmorph.NewPipeline(state.config.Pipeline, synthClient, reference, nil, state.logProvider)
	if err != nil {
		return err
	}
	state.morphPipeline = pipeline
	return nil
}

func initCapturePipelineStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logProvider == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"capture:init-pipeline",
			"missing config/logger",
		)
	}
	state.capturePipeline = capture.NewPipeline(state.config.Upload, state.logProvider)
	return nil
}

func startHTTPServer(
	state *appState,
	g *errgroup.Group,
	groupCtx context.Context,
) (*http.Server, error) {
	config := state.config
	logger := state.logProvider

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine
	apiGroup := httpRouter.API

	router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api") {
			c.JSON(http.StatusNotFound, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{},
				Message: "api not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.File("./web/index.html")
	})

	scanService, err := httpscan.NewService(config, logger, state.capturePipeline, state.detector, state.sessions)
	if err != nil {
		logger.ErrorTag("Scan", "scan service init failed: %v", err)
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "scan:new-service", "failed to create scan service", err)
	}

	morphService, err := httpmorph.NewService(config, logger, state.morphPipeline, state.sessions, state.capturePipeline)
	if err != nil {
		logger.ErrorTag("Morph", "morph service init failed: %v", err)
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "morph:new-service", "failed to create morph service", err)
	}

	systemService := httpsystem.NewService(logger, state.sessions)

	if err := scanService.Register(groupCtx, apiGroup); err != nil {
		return nil, err
	}
	if err := morphService.Register(groupCtx, apiGroup); err != nil {
		return nil, err
	}
	if err := systemService.Register(groupCtx, apiGroup); err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Server.IP, config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "gin server listening on http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "scan endpoint: http://%s/api/scan", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP server stopped gracefully")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("Bootstrap", "received signal %v, cleaning up", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services stopped")
	case <-time.After(15 * time.Second):
		timeoutErr := errors.New("shutdown timed out")
		logger.ErrorTag("Bootstrap", "shutdown timed out, forcing exit")
		return timeoutErr
	}
	return nil
}

// loadConfigAndLogger runs the minimal front of the init graph, used by tests.
func loadConfigAndLogger() (*platformconfig.Config, *platformlogging.Logger, error) {
	state := &appState{}

	steps := []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
	}

	if err := executeInitSteps(context.Background(), steps, state); err != nil {
		return nil, nil, err
	}

	return state.config, state.logProvider, nil
}
