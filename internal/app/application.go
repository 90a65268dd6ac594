// Package app assembles the service: configuration, logging, the memory
// guard, the classifier binding, the fallback chain, storage and the HTTP
// server, with ordered shutdown across all of them.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ghibli-stylizer/internal/classifier"
	"ghibli-stylizer/internal/config"
	"ghibli-stylizer/internal/events"
	"ghibli-stylizer/internal/logger"
	"ghibli-stylizer/internal/opencv/accel"
	"ghibli-stylizer/internal/opencv/memory"
	"ghibli-stylizer/internal/server"
	"ghibli-stylizer/internal/storage/sqlite"
	"ghibli-stylizer/internal/stylize"
)

const (
	AppName    = "ghibli-stylizer"
	AppVersion = "1.0.0"
)

type shutdownHandler interface {
	Shutdown()
}

type shutdownFunc func()

func (f shutdownFunc) Shutdown() { f() }

type Application struct {
	cfg           *config.Config
	logger        logger.Logger
	memoryManager *memory.Manager
	scorer        classifier.Scorer
	chain         *stylize.Chain
	hub           *events.Hub
	db            *sqlite.DB
	server        *server.Server
	shutdownables []shutdownHandler
	ctx           context.Context
	cancel        context.CancelFunc
	shutdown      chan struct{}
}

func NewApplication() (*Application, error) {
	cfg := config.Load()
	log := logger.NewConsoleLogger(logger.ParseLevel(cfg.LogLevel))

	log.Info("Application", "starting application", map[string]interface{}{
		"name":      AppName,
		"version":   AppVersion,
		"port":      cfg.Port,
		"backend":   cfg.ModelBackend,
		"log_level": cfg.LogLevel,
	})

	ctx, cancel := context.WithCancel(context.Background())

	if err := os.MkdirAll(cfg.UploadDirectory, 0o755); err != nil {
		cancel()
		return nil, err
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			cancel()
			return nil, err
		}
	}

	memoryManager := memory.NewManager(log, cfg.DeviceMemoryLimit)
	scorer := buildScorer(cfg, log)

	groups := stylize.Groups{
		Sky:        cfg.SkyClasses,
		Vegetation: cfg.VegetationClasses,
		Foreground: cfg.ForegroundClasses,
	}

	// Without a classifier the chain starts at the accelerated level.
	var renderers []stylize.Renderer
	if scorer != nil {
		renderers = append(renderers, stylize.NewEngine(scorer, groups, memoryManager, log))
	}
	renderers = append(renderers,
		accel.NewRenderer(memoryManager, log),
		stylize.NewScalarRenderer(log),
		stylize.IdentityRenderer{},
	)
	chain := stylize.NewChain(memoryManager, log, renderers...)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		cancel()
		memoryManager.Shutdown()
		return nil, err
	}
	transforms := sqlite.NewTransformRepository(db)

	hub := events.NewHub(log)
	srv := server.New(cfg, log, chain, transforms, hub)

	application := &Application{
		cfg:           cfg,
		logger:        log,
		memoryManager: memoryManager,
		scorer:        scorer,
		chain:         chain,
		hub:           hub,
		db:            db,
		server:        srv,
		ctx:           ctx,
		cancel:        cancel,
		shutdown:      make(chan struct{}),
	}

	application.shutdownables = []shutdownHandler{
		memoryManager,
		shutdownFunc(func() {
			if scorer != nil {
				scorer.Close()
			}
		}),
		shutdownFunc(func() {
			if err := db.Close(); err != nil {
				log.Error("Application", err, map[string]interface{}{
					"component": "database",
				})
			}
		}),
		shutdownFunc(hub.Stop),
		shutdownFunc(func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("Application", err, map[string]interface{}{
					"component": "http_server",
				})
			}
		}),
	}

	application.setupSignalHandling()
	log.Info("Application", "initialization complete", map[string]interface{}{
		"classifier_loaded": scorer != nil,
	})
	return application, nil
}

// buildScorer loads the configured classifier binding. Any failure leaves
// the full pipeline disabled and the service running on fallback levels.
func buildScorer(cfg *config.Config, log logger.Logger) classifier.Scorer {
	if cfg.ModelBackend == "off" {
		log.Info("Application", "classifier disabled by configuration", nil)
		return nil
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		log.Warning("Application", "Model not available, using fallback transformation", map[string]interface{}{
			"model_path": cfg.ModelPath,
			"error":      err.Error(),
		})
		return nil
	}

	switch cfg.ModelBackend {
	case "onnx":
		scorer, err := classifier.NewOnnxScorer(cfg.ModelPath, cfg.OnnxLibraryPath, cfg.NumClasses, log)
		if err != nil {
			log.Warning("Application", "Model not available, using fallback transformation", map[string]interface{}{
				"backend": "onnx",
				"error":   err.Error(),
			})
			return nil
		}
		return scorer
	case "dnn":
		scorer, err := classifier.NewDNNScorer(cfg.ModelPath, cfg.InferenceTarget, cfg.NumClasses, log)
		if err != nil {
			log.Warning("Application", "Model not available, using fallback transformation", map[string]interface{}{
				"backend": "dnn",
				"error":   err.Error(),
			})
			return nil
		}
		return scorer
	default:
		log.Warning("Application", "unknown model backend, classifier disabled", map[string]interface{}{
			"backend": cfg.ModelBackend,
		})
		return nil
	}
}

func (a *Application) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("Application", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			a.initiateShutdown()
		case <-a.ctx.Done():
			return
		}
	}()
}

// Run starts the event hub and the HTTP server and blocks until shutdown.
func (a *Application) Run() error {
	go a.hub.Run()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.logger.Error("Application", err, map[string]interface{}{
			"component": "http_server",
		})
		a.initiateShutdown()
		return err
	case <-a.shutdown:
		return nil
	}
}

func (a *Application) initiateShutdown() {
	select {
	case <-a.shutdown:
		return
	default:
		close(a.shutdown)
	}

	a.logger.Info("Application", "shutdown sequence initiated", map[string]interface{}{
		"components": len(a.shutdownables),
	})

	a.cancel()

	for i := len(a.shutdownables) - 1; i >= 0; i-- {
		component := a.shutdownables[i]

		done := make(chan struct{})
		go func() {
			defer close(done)
			component.Shutdown()
		}()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			a.logger.Warning("Application", "component shutdown timeout", map[string]interface{}{
				"component_index": i,
			})
		}
	}

	a.logger.Info("Application", "shutdown sequence completed", nil)
}

// Shutdown triggers the ordered shutdown sequence and waits for it within
// the context deadline.
func (a *Application) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.initiateShutdown()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
