package memory

import (
	"context"
	"testing"

	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/domain/publish"
	"github.com/sitewrap/platform/internal/app/domain/revenue"
	"github.com/sitewrap/platform/internal/errors"
)

func TestAppLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateApp(ctx, appdomain.App{
		OwnerID:     "owner-1",
		Name:        "Demo",
		SourceURL:   "https://example.com",
		PackageName: "com.sitewrap.demo",
		Status:      appdomain.StatusDraft,
	})
	if err != nil {
		t.Fatalf("CreateApp: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("incomplete app: %+v", created)
	}

	byPkg, err := store.GetAppByPackage(ctx, "com.sitewrap.demo")
	if err != nil || byPkg.ID != created.ID {
		t.Fatalf("GetAppByPackage = %+v, %v", byPkg, err)
	}

	created.Status = appdomain.StatusPublished
	updated, err := store.UpdateApp(ctx, created)
	if err != nil {
		t.Fatalf("UpdateApp: %v", err)
	}
	if updated.Status != appdomain.StatusPublished {
		t.Fatalf("status = %s", updated.Status)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("created_at changed on update")
	}

	if err := store.DeleteApp(ctx, created.ID); err != nil {
		t.Fatalf("DeleteApp: %v", err)
	}
	if _, err := store.GetAppByPackage(ctx, "com.sitewrap.demo"); err == nil {
		t.Fatal("package index survived delete")
	}
}

func TestCreateAppRejectsDuplicatePackage(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateApp(ctx, appdomain.App{Name: "A", PackageName: "com.sitewrap.dup"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateApp(ctx, appdomain.App{Name: "B", PackageName: "com.sitewrap.dup"}); err == nil {
		t.Fatal("duplicate package accepted")
	}
}

func TestPublishRecordsFilterAndOrder(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, pkg := range []string{"com.sitewrap.a", "com.sitewrap.b", "com.sitewrap.a"} {
		if _, err := store.CreatePublishRecord(ctx, publish.Record{PackageName: pkg, Status: publish.StatePublished}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListPublishRecords(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %d, %v", len(all), err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartedAt.Before(all[i-1].StartedAt) {
			t.Fatal("records not ordered by start time")
		}
	}

	filtered, err := store.ListPublishRecords(ctx, "com.sitewrap.a")
	if err != nil || len(filtered) != 2 {
		t.Fatalf("filtered = %d, %v", len(filtered), err)
	}

	got, err := store.GetPublishRecord(ctx, filtered[0].ID)
	if err != nil || got.PackageName != "com.sitewrap.a" {
		t.Fatalf("GetPublishRecord = %+v, %v", got, err)
	}
}

func TestRevenueEventsIsolatedPerApp(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateRevenueEvent(ctx, revenue.Event{AppID: "a", Amount: 10, Currency: "USD"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateRevenueEvent(ctx, revenue.Event{AppID: "b", Amount: 20, Currency: "USD"}); err != nil {
		t.Fatal(err)
	}

	events, err := store.ListRevenueEvents(ctx, "a")
	if err != nil || len(events) != 1 || events[0].Amount != 10 {
		t.Fatalf("events = %+v, %v", events, err)
	}
}

func TestMissingRecordsCarryNotFoundCode(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.GetApp(ctx, "ghost"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("GetApp err = %v, want not-found code", err)
	}
	if _, err := store.GetPublishRecord(ctx, "ghost"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("GetPublishRecord err = %v, want not-found code", err)
	}
	if err := store.DeleteApp(ctx, "ghost"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("DeleteApp err = %v, want not-found code", err)
	}
}
