package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sitewrap/platform/internal/app/services/analyzer"
	appssvc "github.com/sitewrap/platform/internal/app/services/apps"
	"github.com/sitewrap/platform/internal/app/services/assets"
	"github.com/sitewrap/platform/internal/app/services/builder"
	"github.com/sitewrap/platform/internal/app/services/janitor"
	publishersvc "github.com/sitewrap/platform/internal/app/services/publisher"
	revenuesvc "github.com/sitewrap/platform/internal/app/services/revenue"
	"github.com/sitewrap/platform/internal/app/storage"
	"github.com/sitewrap/platform/internal/app/storage/memory"
	"github.com/sitewrap/platform/internal/app/system"
	"github.com/sitewrap/platform/internal/database"
	"github.com/sitewrap/platform/internal/playstore"
	"github.com/sitewrap/platform/internal/session"
	"github.com/sitewrap/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Apps      storage.AppStore
	Publishes storage.PublishStore
	Revenue   storage.RevenueStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Apps      *appssvc.Service
	Revenue   *revenuesvc.Service
	Publisher *publishersvc.Service
	Assets    assets.Uploader
	Sessions  session.Store
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Apps == nil {
		stores.Apps = mem
	}
	if stores.Publishes == nil {
		stores.Publishes = mem
	}
	if stores.Revenue == nil {
		stores.Revenue = mem
	}

	manager := system.NewManager()
	downloadsDir := os.Getenv("DOWNLOADS_DIR")
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}

	siteAnalyzer, err := buildAnalyzer(log)
	if err != nil {
		return nil, err
	}

	artifactBuilder, err := buildArtifactBuilder(downloadsDir, log)
	if err != nil {
		return nil, err
	}
	builderService := builder.New(artifactBuilder, log)

	appsService := appssvc.New(stores.Apps, siteAnalyzer, log)
	revenueService := revenuesvc.New(stores.Apps, stores.Revenue, log)

	publisherService := publishersvc.New(playClientFactory, builderService, stores.Publishes, log)
	if timeout := strings.TrimSpace(os.Getenv("PUBLISH_TIMEOUT")); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("parse PUBLISH_TIMEOUT: %w", err)
		}
		publisherService.WithTimeout(d)
	}

	if url := strings.TrimSpace(os.Getenv("SUPABASE_URL")); url != "" {
		sink, err := database.NewClient(database.Config{
			URL:        url,
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		})
		if err != nil {
			log.WithError(err).Warn("configure supabase publish sink")
		} else {
			publisherService.WithSink(sink)
		}
	} else {
		log.Warn("SUPABASE_URL not set; publish history mirror disabled")
	}

	uploader, err := buildAssetUploader(downloadsDir, log)
	if err != nil {
		return nil, err
	}

	sessions, sweeper, err := buildSessionStore(log)
	if err != nil {
		return nil, err
	}

	for _, name := range []string{"apps", "revenue", "publisher"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if err := manager.Register(janitor.New(downloadsDir, time.Hour, sweeper, log)); err != nil {
		return nil, fmt.Errorf("register janitor: %w", err)
	}

	return &Application{
		manager:   manager,
		log:       log,
		Apps:      appsService,
		Revenue:   revenueService,
		Publisher: publisherService,
		Assets:    uploader,
		Sessions:  sessions,
	}, nil
}

// playClientFactory builds a platform client from request-scoped credentials.
func playClientFactory(key []byte) (publishersvc.PlatformClient, error) {
	var opts []playstore.Option
	if base := strings.TrimSpace(os.Getenv("PLAY_API_URL")); base != "" {
		opts = append(opts, playstore.WithBaseURL(base), playstore.WithUploadURL(base+"/upload"))
	}
	return playstore.NewClient(key, opts...)
}

func buildAnalyzer(log *logger.Logger) (analyzer.Analyzer, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("ANALYZER_MODE")))
	switch mode {
	case "llm":
		return analyzer.NewHTTPAnalyzer(
			os.Getenv("ANALYZER_API_URL"),
			os.Getenv("ANALYZER_API_KEY"),
			os.Getenv("ANALYZER_MODEL"),
			log,
		)
	case "", "static":
		if mode == "" {
			log.Warn("ANALYZER_MODE not set; using static site analyzer")
		}
		return analyzer.NewStaticAnalyzer(nil), nil
	default:
		return nil, fmt.Errorf("unrecognized ANALYZER_MODE %q", mode)
	}
}

func buildArtifactBuilder(downloadsDir string, log *logger.Logger) (builder.Builder, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("BUILDER_MODE")))
	switch mode {
	case "service":
		return builder.NewHTTPBuilder(
			&http.Client{Timeout: 5 * time.Minute},
			os.Getenv("BUILD_SERVICE_URL"),
			os.Getenv("BUILD_SERVICE_KEY"),
			downloadsDir,
			log,
		)
	case "", "sandbox":
		if mode == "" {
			log.Warn("BUILDER_MODE not set; using sandbox package builder")
		}
		return builder.NewSandboxBuilder(downloadsDir), nil
	default:
		return nil, fmt.Errorf("unrecognized BUILDER_MODE %q", mode)
	}
}

func buildAssetUploader(downloadsDir string, log *logger.Logger) (assets.Uploader, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("ASSETS_MODE")))
	switch mode {
	case "cdn":
		return assets.NewCDNUploader(
			nil,
			os.Getenv("CDN_UPLOAD_URL"),
			os.Getenv("CDN_UPLOAD_KEY"),
			log,
		)
	case "", "local":
		if mode == "" {
			log.Warn("ASSETS_MODE not set; storing assets under the downloads dir")
		}
		return assets.NewLocalUploader(downloadsDir), nil
	default:
		return nil, fmt.Errorf("unrecognized ASSETS_MODE %q", mode)
	}
}

func buildSessionStore(log *logger.Logger) (session.Store, janitor.Sweeper, error) {
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		return session.NewRedisStore(client), nil, nil
	}
	log.Warn("REDIS_ADDR not set; sessions are in-process and restart-losing")
	mem := session.NewMemoryStore()
	return mem, mem, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
