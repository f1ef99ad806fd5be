package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/domain/publish"
	"github.com/sitewrap/platform/internal/app/domain/revenue"
	"github.com/sitewrap/platform/internal/app/storage"
	"github.com/sitewrap/platform/internal/errors"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu             sync.RWMutex
	nextID         int64
	apps           map[string]appdomain.App
	appsByPackage  map[string]string
	publishRecords map[string]publish.Record
	splits         map[string]revenue.Split
	revenueEvents  map[string][]revenue.Event
}

var _ storage.AppStore = (*Store)(nil)
var _ storage.PublishStore = (*Store)(nil)
var _ storage.RevenueStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:         1,
		apps:           make(map[string]appdomain.App),
		appsByPackage:  make(map[string]string),
		publishRecords: make(map[string]publish.Record),
		splits:         make(map[string]revenue.Split),
		revenueEvents:  make(map[string][]revenue.Event),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// --- AppStore ---------------------------------------------------------------

func (s *Store) CreateApp(ctx context.Context, a appdomain.App) (appdomain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.PackageName != "" {
		if _, exists := s.appsByPackage[a.PackageName]; exists {
			return appdomain.App{}, errors.Validation(fmt.Sprintf("package %s already registered", a.PackageName))
		}
	}
	if a.ID == "" {
		a.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.apps[a.ID] = a
	if a.PackageName != "" {
		s.appsByPackage[a.PackageName] = a.ID
	}
	return a, nil
}

func (s *Store) UpdateApp(ctx context.Context, a appdomain.App) (appdomain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.apps[a.ID]
	if !ok {
		return appdomain.App{}, errors.NotFound(fmt.Sprintf("app %s not found", a.ID))
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	if existing.PackageName != a.PackageName {
		delete(s.appsByPackage, existing.PackageName)
		if a.PackageName != "" {
			s.appsByPackage[a.PackageName] = a.ID
		}
	}
	s.apps[a.ID] = a
	return a, nil
}

func (s *Store) GetApp(ctx context.Context, id string) (appdomain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok {
		return appdomain.App{}, errors.NotFound(fmt.Sprintf("app %s not found", id))
	}
	return a, nil
}

func (s *Store) GetAppByPackage(ctx context.Context, packageName string) (appdomain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.appsByPackage[packageName]
	if !ok {
		return appdomain.App{}, errors.NotFound(fmt.Sprintf("package %s not found", packageName))
	}
	return s.apps[id], nil
}

func (s *Store) ListApps(ctx context.Context, ownerID string) ([]appdomain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]appdomain.App, 0, len(s.apps))
	for _, a := range s.apps {
		if ownerID == "" || strings.EqualFold(a.OwnerID, ownerID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteApp(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return errors.NotFound(fmt.Sprintf("app %s not found", id))
	}
	delete(s.apps, id)
	delete(s.appsByPackage, a.PackageName)
	return nil
}

// --- PublishStore -----------------------------------------------------------

func (s *Store) CreatePublishRecord(ctx context.Context, rec publish.Record) (publish.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	s.publishRecords[rec.ID] = rec
	return rec, nil
}

func (s *Store) UpdatePublishRecord(ctx context.Context, rec publish.Record) (publish.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.publishRecords[rec.ID]; !ok {
		return publish.Record{}, errors.NotFound(fmt.Sprintf("publish record %s not found", rec.ID))
	}
	s.publishRecords[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetPublishRecord(ctx context.Context, id string) (publish.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.publishRecords[id]
	if !ok {
		return publish.Record{}, errors.NotFound(fmt.Sprintf("publish record %s not found", id))
	}
	return rec, nil
}

func (s *Store) ListPublishRecords(ctx context.Context, packageName string) ([]publish.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]publish.Record, 0, len(s.publishRecords))
	for _, rec := range s.publishRecords {
		if packageName == "" || rec.PackageName == packageName {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// --- RevenueStore -----------------------------------------------------------

func (s *Store) CreateSplit(ctx context.Context, split revenue.Split) (revenue.Split, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if split.ID == "" {
		split.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	split.CreatedAt = now
	split.UpdatedAt = now
	s.splits[split.ID] = split
	return split, nil
}

func (s *Store) UpdateSplit(ctx context.Context, split revenue.Split) (revenue.Split, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.splits[split.ID]
	if !ok {
		return revenue.Split{}, errors.NotFound(fmt.Sprintf("split %s not found", split.ID))
	}
	split.CreatedAt = existing.CreatedAt
	split.UpdatedAt = time.Now().UTC()
	s.splits[split.ID] = split
	return split, nil
}

func (s *Store) ListSplits(ctx context.Context, appID string) ([]revenue.Split, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]revenue.Split, 0)
	for _, split := range s.splits {
		if split.AppID == appID {
			out = append(out, split)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteSplit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.splits[id]; !ok {
		return errors.NotFound(fmt.Sprintf("split %s not found", id))
	}
	delete(s.splits, id)
	return nil
}

func (s *Store) CreateRevenueEvent(ctx context.Context, evt revenue.Event) (revenue.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.ID == "" {
		evt.ID = s.nextIDLocked()
	}
	evt.CreatedAt = time.Now().UTC()
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = evt.CreatedAt
	}
	s.revenueEvents[evt.AppID] = append(s.revenueEvents[evt.AppID], evt)
	return evt, nil
}

func (s *Store) ListRevenueEvents(ctx context.Context, appID string) ([]revenue.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.revenueEvents[appID]
	out := make([]revenue.Event, len(events))
	copy(out, events)
	return out, nil
}
