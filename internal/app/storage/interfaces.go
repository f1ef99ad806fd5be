package storage

import (
	"context"

	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/domain/publish"
	"github.com/sitewrap/platform/internal/app/domain/revenue"
)

// AppStore persists converted app records.
type AppStore interface {
	CreateApp(ctx context.Context, a appdomain.App) (appdomain.App, error)
	UpdateApp(ctx context.Context, a appdomain.App) (appdomain.App, error)
	GetApp(ctx context.Context, id string) (appdomain.App, error)
	GetAppByPackage(ctx context.Context, packageName string) (appdomain.App, error)
	ListApps(ctx context.Context, ownerID string) ([]appdomain.App, error)
	DeleteApp(ctx context.Context, id string) error
}

// PublishStore persists publish history records.
type PublishStore interface {
	CreatePublishRecord(ctx context.Context, rec publish.Record) (publish.Record, error)
	UpdatePublishRecord(ctx context.Context, rec publish.Record) (publish.Record, error)
	GetPublishRecord(ctx context.Context, id string) (publish.Record, error)
	ListPublishRecords(ctx context.Context, packageName string) ([]publish.Record, error)
}

// RevenueStore persists revenue splits and events.
type RevenueStore interface {
	CreateSplit(ctx context.Context, split revenue.Split) (revenue.Split, error)
	UpdateSplit(ctx context.Context, split revenue.Split) (revenue.Split, error)
	ListSplits(ctx context.Context, appID string) ([]revenue.Split, error)
	DeleteSplit(ctx context.Context, id string) error

	CreateRevenueEvent(ctx context.Context, evt revenue.Event) (revenue.Event, error)
	ListRevenueEvents(ctx context.Context, appID string) ([]revenue.Event, error)
}
