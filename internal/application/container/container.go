// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pagecanvas/pagecanvas-go/internal/application/services"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/registry"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/render"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/resolver"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/media"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/messaging"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/persistence/database"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/persistence/kv"
	"github.com/pagecanvas/pagecanvas-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies.
type Container struct {
	Settings *config.Settings
	Logger   *logging.ChanneledLogger

	// Infrastructure
	DB          *database.DB
	KVStore     *kv.Store
	Broadcaster *messaging.MonitorBroadcaster

	// Domain singletons
	Resolver *resolver.Resolver
	Registry *registry.Registry
	Renderer *render.Renderer

	// Application services
	DataSourceService *services.DataSourceService
	TemplateService   *services.TemplateService
	PreviewService    *services.PreviewService
	GraphService      *services.GraphService
	MediaService      *services.MediaService
}

// NewContainer creates and wires all singleton services.
func NewContainer(settings *config.Settings) (*Container, error) {
	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.LogDirectory = settings.LogDir
	loggerConfig.DefaultLevel = parseLevel(settings.LogLevel)
	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewConnectionWithLogger(settings.DBDriver, settings.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	kvStore, err := kv.NewStore(db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create key-value store: %w", err)
	}

	res := resolver.New(&http.Client{Timeout: settings.HTTPTimeout}, logger)
	reg := registry.New(res, kvStore, logger).WithMinInterval(settings.MinRefreshInterval)
	renderer := render.NewRenderer(res, logger)
	broadcaster := messaging.NewMonitorBroadcaster(logger)

	templates := services.NewTemplateService(kvStore, logger)
	processor := media.NewProcessor(settings.MediaPath, logger)

	return &Container{
		Settings:    settings,
		Logger:      logger,
		DB:          db,
		KVStore:     kvStore,
		Broadcaster: broadcaster,
		Resolver:    res,
		Registry:    reg,
		Renderer:    renderer,

		DataSourceService: services.NewDataSourceService(reg, res),
		TemplateService:   templates,
		PreviewService:    services.NewPreviewService(templates, renderer, logger),
		GraphService:      services.NewGraphService(renderer, broadcaster, settings.PropDebounce, logger),
		MediaService:      services.NewMediaService(processor),
	}, nil
}

// Close tears infrastructure down in reverse dependency order.
func (c *Container) Close() {
	c.GraphService.CloseAll()
	c.Broadcaster.Close()
	c.Registry.Close()
	if err := c.DB.Close(); err != nil {
		c.Logger.Shutdown().Error("Error closing database", "error", err.Error())
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
