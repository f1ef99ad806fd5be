// Package revenue tracks per-app revenue splits and recorded revenue events.
package revenue

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitewrap/platform/internal/app/domain/revenue"
	"github.com/sitewrap/platform/internal/app/storage"
	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/pkg/logger"
)

// shareEpsilon absorbs float drift when checking that shares sum to 100.
const shareEpsilon = 0.001

// Service manages split tables and revenue events.
type Service struct {
	apps  storage.AppStore
	store storage.RevenueStore
	log   *logger.Logger
}

// New constructs a revenue service.
func New(apps storage.AppStore, store storage.RevenueStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("revenue")
	}
	return &Service{apps: apps, store: store, log: log}
}

// SetSplits replaces the split table for an app. Shares must be positive and
// sum to 100.
func (s *Service) SetSplits(ctx context.Context, appID string, parties map[string]float64) ([]revenue.Split, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, errors.Validation("app_id is required")
	}
	if len(parties) == 0 {
		return nil, errors.Validation("at least one party is required")
	}

	total := 0.0
	for party, share := range parties {
		if strings.TrimSpace(party) == "" {
			return nil, errors.Validation("party_id must not be empty")
		}
		if share <= 0 {
			return nil, errors.Validation(fmt.Sprintf("share for %s must be positive", party))
		}
		total += share
	}
	if total < 100-shareEpsilon || total > 100+shareEpsilon {
		return nil, errors.Validation(fmt.Sprintf("shares must sum to 100, got %.2f", total))
	}

	if s.apps != nil {
		if _, err := s.apps.GetApp(ctx, appID); err != nil {
			return nil, fmt.Errorf("app validation failed: %w", err)
		}
	}

	existing, err := s.store.ListSplits(ctx, appID)
	if err != nil {
		return nil, err
	}
	for _, split := range existing {
		if err := s.store.DeleteSplit(ctx, split.ID); err != nil {
			return nil, err
		}
	}

	out := make([]revenue.Split, 0, len(parties))
	for party, share := range parties {
		split, err := s.store.CreateSplit(ctx, revenue.Split{AppID: appID, PartyID: party, Share: share})
		if err != nil {
			return nil, err
		}
		out = append(out, split)
	}

	s.log.WithField("app_id", appID).WithField("parties", len(out)).Info("revenue splits replaced")
	return out, nil
}

// ListSplits returns the current split table for an app.
func (s *Service) ListSplits(ctx context.Context, appID string) ([]revenue.Split, error) {
	return s.store.ListSplits(ctx, appID)
}

// RecordEvent records one revenue amount against an app.
func (s *Service) RecordEvent(ctx context.Context, appID string, amount float64, currency, source string) (revenue.Event, error) {
	if strings.TrimSpace(appID) == "" {
		return revenue.Event{}, errors.Validation("app_id is required")
	}
	if amount <= 0 {
		return revenue.Event{}, errors.Validation("amount must be positive")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}

	if s.apps != nil {
		if _, err := s.apps.GetApp(ctx, appID); err != nil {
			return revenue.Event{}, fmt.Errorf("app validation failed: %w", err)
		}
	}

	return s.store.CreateRevenueEvent(ctx, revenue.Event{
		AppID:    appID,
		Amount:   amount,
		Currency: currency,
		Source:   strings.TrimSpace(source),
	})
}

// Summary aggregates recorded events across the app's split table. Events in
// mixed currencies are rejected; convert upstream before recording.
func (s *Service) Summary(ctx context.Context, appID string) (revenue.Summary, error) {
	events, err := s.store.ListRevenueEvents(ctx, appID)
	if err != nil {
		return revenue.Summary{}, err
	}
	splits, err := s.store.ListSplits(ctx, appID)
	if err != nil {
		return revenue.Summary{}, err
	}

	summary := revenue.Summary{AppID: appID}
	for _, evt := range events {
		if summary.Currency == "" {
			summary.Currency = evt.Currency
		} else if summary.Currency != evt.Currency {
			return revenue.Summary{}, errors.Internal(fmt.Sprintf("mixed currencies %s and %s for app %s", summary.Currency, evt.Currency, appID), nil)
		}
		summary.Total += evt.Amount
	}

	for _, split := range splits {
		summary.Parties = append(summary.Parties, revenue.PartyTotal{
			PartyID: split.PartyID,
			Share:   split.Share,
			Amount:  summary.Total * split.Share / 100,
		})
	}
	return summary, nil
}
