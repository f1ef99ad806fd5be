// Package apps manages converted app records.
package apps

import (
	"context"
	"fmt"
	"strings"

	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/services/analyzer"
	"github.com/sitewrap/platform/internal/app/services/builder"
	"github.com/sitewrap/platform/internal/app/storage"
	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/pkg/logger"
)

// Service manages the app catalogue.
type Service struct {
	store    storage.AppStore
	analyzer analyzer.Analyzer
	log      *logger.Logger
}

// New constructs an apps service. The analyzer may be nil; analysis is
// best-effort enrichment only.
func New(store storage.AppStore, siteAnalyzer analyzer.Analyzer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("apps")
	}
	return &Service{store: store, analyzer: siteAnalyzer, log: log}
}

// Create registers a new app for ownerID. When an analyzer is configured the
// site is classified to pre-fill category and description; analysis failure
// does not block creation.
func (s *Service) Create(ctx context.Context, ownerID, name, sourceURL, description, iconURL string) (appdomain.App, error) {
	ownerID = strings.TrimSpace(ownerID)
	name = strings.TrimSpace(name)
	sourceURL = strings.TrimSpace(sourceURL)

	if ownerID == "" {
		return appdomain.App{}, errors.Validation("owner_id is required")
	}
	if name == "" {
		return appdomain.App{}, errors.Validation("name is required")
	}
	if sourceURL == "" {
		return appdomain.App{}, errors.Validation("source_url is required")
	}

	a := appdomain.App{
		OwnerID:     ownerID,
		Name:        name,
		SourceURL:   sourceURL,
		PackageName: builder.DerivePackageName(name),
		Description: strings.TrimSpace(description),
		IconURL:     strings.TrimSpace(iconURL),
		Status:      appdomain.StatusDraft,
	}

	if s.analyzer != nil {
		report, err := s.analyzer.Analyze(ctx, sourceURL)
		if err != nil {
			s.log.WithError(err).WithField("source_url", sourceURL).Warn("site analysis failed; creating app without classification")
		} else {
			a.Category = report.Category
			if a.Description == "" {
				a.Description = report.Summary
			}
		}
	}

	created, err := s.store.CreateApp(ctx, a)
	if err != nil {
		return appdomain.App{}, err
	}
	s.log.WithField("app_id", created.ID).
		WithField("package_name", created.PackageName).
		Info("app created")
	return created, nil
}

// Get returns one app by ID.
func (s *Service) Get(ctx context.Context, id string) (appdomain.App, error) {
	return s.store.GetApp(ctx, id)
}

// List returns the apps owned by ownerID, or all apps when ownerID is empty.
func (s *Service) List(ctx context.Context, ownerID string) ([]appdomain.App, error) {
	return s.store.ListApps(ctx, ownerID)
}

// Update applies non-nil field changes to an app.
func (s *Service) Update(ctx context.Context, id string, name, description, iconURL, category *string) (appdomain.App, error) {
	a, err := s.store.GetApp(ctx, id)
	if err != nil {
		return appdomain.App{}, err
	}
	if name != nil && strings.TrimSpace(*name) != "" {
		a.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		a.Description = strings.TrimSpace(*description)
	}
	if iconURL != nil {
		a.IconURL = strings.TrimSpace(*iconURL)
	}
	if category != nil {
		a.Category = strings.TrimSpace(*category)
	}
	return s.store.UpdateApp(ctx, a)
}

// SetStatus moves an app through its lifecycle.
func (s *Service) SetStatus(ctx context.Context, id string, status appdomain.Status) (appdomain.App, error) {
	switch status {
	case appdomain.StatusDraft, appdomain.StatusBuilt, appdomain.StatusPublished:
	default:
		return appdomain.App{}, errors.Validation(fmt.Sprintf("unrecognized status %q", status))
	}
	a, err := s.store.GetApp(ctx, id)
	if err != nil {
		return appdomain.App{}, err
	}
	a.Status = status
	return s.store.UpdateApp(ctx, a)
}

// Delete removes an app.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteApp(ctx, id)
}
