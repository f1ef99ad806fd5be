package revenue

import (
	"context"
	"math"
	"testing"

	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/storage/memory"
	"github.com/sitewrap/platform/internal/errors"
)

func seedApp(t *testing.T, store *memory.Store) appdomain.App {
	t.Helper()
	a, err := store.CreateApp(context.Background(), appdomain.App{
		OwnerID:     "owner-1",
		Name:        "App",
		SourceURL:   "https://example.com",
		PackageName: "com.sitewrap.app",
		Status:      appdomain.StatusDraft,
	})
	if err != nil {
		t.Fatalf("seed app: %v", err)
	}
	return a
}

func TestSetSplitsReplacesTable(t *testing.T) {
	store := memory.New()
	a := seedApp(t, store)
	svc := New(store, store, nil)
	ctx := context.Background()

	first, err := svc.SetSplits(ctx, a.ID, map[string]float64{"dev": 70, "platform": 30})
	if err != nil {
		t.Fatalf("SetSplits: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("splits = %d, want 2", len(first))
	}

	second, err := svc.SetSplits(ctx, a.ID, map[string]float64{"dev": 100})
	if err != nil {
		t.Fatalf("SetSplits replace: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("splits after replace = %d, want 1", len(second))
	}

	current, err := svc.ListSplits(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListSplits: %v", err)
	}
	if len(current) != 1 || current[0].PartyID != "dev" {
		t.Fatalf("current = %+v", current)
	}
}

func TestSetSplitsValidation(t *testing.T) {
	store := memory.New()
	a := seedApp(t, store)
	svc := New(store, store, nil)
	ctx := context.Background()

	cases := []struct {
		name    string
		parties map[string]float64
	}{
		{"empty table", nil},
		{"sum below 100", map[string]float64{"dev": 60, "platform": 30}},
		{"sum above 100", map[string]float64{"dev": 80, "platform": 30}},
		{"negative share", map[string]float64{"dev": 110, "platform": -10}},
		{"zero share", map[string]float64{"dev": 100, "platform": 0}},
		{"blank party", map[string]float64{" ": 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SetSplits(ctx, a.ID, tc.parties); err == nil {
				t.Fatalf("accepted %v", tc.parties)
			}
		})
	}

	if _, err := svc.SetSplits(ctx, "ghost", map[string]float64{"dev": 100}); err == nil {
		t.Fatal("accepted unknown app")
	}

	// Float drift within epsilon is accepted.
	if _, err := svc.SetSplits(ctx, a.ID, map[string]float64{"a": 33.3334, "b": 33.3333, "c": 33.3333}); err != nil {
		t.Fatalf("epsilon sum rejected: %v", err)
	}
}

func TestRecordEventDefaultsCurrency(t *testing.T) {
	store := memory.New()
	a := seedApp(t, store)
	svc := New(store, store, nil)

	evt, err := svc.RecordEvent(context.Background(), a.ID, 49.99, "", "subscription")
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if evt.Currency != "USD" {
		t.Fatalf("currency = %s, want USD", evt.Currency)
	}
	if evt.OccurredAt.IsZero() {
		t.Fatal("missing occurrence time")
	}

	if _, err := svc.RecordEvent(context.Background(), a.ID, 0, "USD", ""); err == nil {
		t.Fatal("zero amount accepted")
	}
}

func TestSummaryAllocatesByShare(t *testing.T) {
	store := memory.New()
	a := seedApp(t, store)
	svc := New(store, store, nil)
	ctx := context.Background()

	if _, err := svc.SetSplits(ctx, a.ID, map[string]float64{"dev": 70, "platform": 30}); err != nil {
		t.Fatalf("SetSplits: %v", err)
	}
	if _, err := svc.RecordEvent(ctx, a.ID, 60, "USD", "subscription"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordEvent(ctx, a.ID, 40, "usd", "one-time"); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Summary(ctx, a.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Total != 100 {
		t.Fatalf("total = %f", summary.Total)
	}
	if summary.Currency != "USD" {
		t.Fatalf("currency = %s", summary.Currency)
	}
	got := map[string]float64{}
	for _, p := range summary.Parties {
		got[p.PartyID] = p.Amount
	}
	if math.Abs(got["dev"]-70) > 1e-9 || math.Abs(got["platform"]-30) > 1e-9 {
		t.Fatalf("parties = %+v", summary.Parties)
	}
}

func TestSummaryRejectsMixedCurrencies(t *testing.T) {
	store := memory.New()
	a := seedApp(t, store)
	svc := New(store, store, nil)
	ctx := context.Background()

	if _, err := svc.RecordEvent(ctx, a.ID, 10, "USD", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordEvent(ctx, a.ID, 10, "EUR", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Summary(ctx, a.ID); err == nil {
		t.Fatal("mixed currencies accepted")
	}
}

func TestSplitValidationCarriesCode(t *testing.T) {
	store := memory.New()
	a := seedApp(t, store)
	svc := New(store, store, nil)

	_, err := svc.SetSplits(context.Background(), a.ID, map[string]float64{"developer": 50, "platform": 30})
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("err = %v, want validation code", err)
	}
}
