package container

import (
	"net/http"

	"go-medical-image-analyzer/internal/config"
	"go-medical-image-analyzer/internal/logger"
	"go-medical-image-analyzer/internal/observer"
	"go-medical-image-analyzer/internal/service"
	"go-medical-image-analyzer/internal/storage"
	"go-medical-image-analyzer/internal/transport"
	"go-medical-image-analyzer/internal/validation"
	"go-medical-image-analyzer/internal/vision"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	imageValidator  validation.ImageValidator
	imageFetcher    storage.ImageFetcher
	runner          *vision.Runner
	analysisService service.AnalysisService
	metrics         *observer.MetricsObserver
	handler         http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	imageValidator := validation.NewImageValidator(cfg.MaxUploadSize)

	imageFetcher, err := newImageFetcher(cfg)
	if err != nil {
		return nil, err
	}

	querier := vision.NewGroqClient(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.ModelTimeout)
	var opts []vision.Option
	if cfg.ParallelQueries {
		opts = append(opts, vision.WithParallelQueries())
	}
	runner := vision.NewRunner(querier, cfg.Models, opts...)

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	analysisService := service.NewAnalysisService(imageValidator, runner, imageFetcher, publisher)
	handler := transport.NewHandler(analysisService, metrics, cfg)

	return &Container{
		config:          cfg,
		imageValidator:  imageValidator,
		imageFetcher:    imageFetcher,
		runner:          runner,
		analysisService: analysisService,
		metrics:         metrics,
		handler:         handler,
	}, nil
}

// newImageFetcher picks the configured image source: Azure blob storage
// when credentials are present, plain HTTP otherwise
func newImageFetcher(cfg *config.Config) (storage.ImageFetcher, error) {
	if cfg.HasAzureStorage() {
		return storage.NewBlobImageFetcher(cfg.AzureAccountName, cfg.AzureAccountKey)
	}
	return storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxUploadSize), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}
