package apps

import (
	"context"
	"fmt"
	"testing"

	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/domain/analysis"
	"github.com/sitewrap/platform/internal/app/services/analyzer"
	"github.com/sitewrap/platform/internal/app/storage/memory"
	"github.com/sitewrap/platform/internal/errors"
)

func TestCreateDerivesPackageName(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	created, err := svc.Create(context.Background(), "owner-1", "My Cool App", "https://example.com", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.PackageName != "com.sitewrap.mycoolapp" {
		t.Fatalf("package name = %s", created.PackageName)
	}
	if created.Status != appdomain.StatusDraft {
		t.Fatalf("status = %s, want draft", created.Status)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("incomplete app: %+v", created)
	}
}

func TestCreateRequiredFields(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", "App", "https://example.com", "", ""); err == nil {
		t.Fatal("missing owner accepted")
	}
	if _, err := svc.Create(ctx, "owner", " ", "https://example.com", "", ""); err == nil {
		t.Fatal("blank name accepted")
	}
	if _, err := svc.Create(ctx, "owner", "App", "", "", ""); err == nil {
		t.Fatal("missing source url accepted")
	}
}

func TestCreateEnrichesFromAnalyzer(t *testing.T) {
	classify := analyzer.AnalyzerFunc(func(ctx context.Context, sourceURL string) (analysis.Report, error) {
		return analysis.Report{Category: "finance", Summary: "Invoicing tool."}, nil
	})
	svc := New(memory.New(), classify, nil)

	created, err := svc.Create(context.Background(), "owner-1", "LedgerLite", "https://ledger.example", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Category != "finance" {
		t.Fatalf("category = %s", created.Category)
	}
	if created.Description != "Invoicing tool." {
		t.Fatalf("description = %s", created.Description)
	}
}

func TestCreateSurvivesAnalyzerFailure(t *testing.T) {
	failing := analyzer.AnalyzerFunc(func(ctx context.Context, sourceURL string) (analysis.Report, error) {
		return analysis.Report{}, fmt.Errorf("analysis backend down")
	})
	svc := New(memory.New(), failing, nil)

	created, err := svc.Create(context.Background(), "owner-1", "App", "https://example.com", "manual description", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Category != "" {
		t.Fatalf("category = %s, want empty", created.Category)
	}
	if created.Description != "manual description" {
		t.Fatalf("description = %s", created.Description)
	}
}

func TestUpdateAppliesPointerFields(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-1", "App", "https://example.com", "old", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newDesc := "new description"
	updated, err := svc.Update(ctx, created.ID, nil, &newDesc, nil, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Description != newDesc {
		t.Fatalf("description = %s", updated.Description)
	}
	if updated.Name != "App" {
		t.Fatalf("name changed unexpectedly: %s", updated.Name)
	}
}

func TestSetStatus(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-1", "App", "https://example.com", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.SetStatus(ctx, created.ID, appdomain.StatusPublished)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != appdomain.StatusPublished {
		t.Fatalf("status = %s", updated.Status)
	}

	if _, err := svc.SetStatus(ctx, created.ID, "archived"); err == nil {
		t.Fatal("unrecognized status accepted")
	}
}

func TestListFiltersByOwner(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "alice", "App One", "https://one.example", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, "bob", "App Two", "https://two.example", "", ""); err != nil {
		t.Fatal(err)
	}

	mine, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 1 || mine[0].OwnerID != "alice" {
		t.Fatalf("apps = %+v", mine)
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}
}

func TestDelete(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-1", "App", "https://example.com", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); err == nil {
		t.Fatal("deleted app still retrievable")
	}
}

func TestCreateValidationCarriesCode(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	_, err := svc.Create(context.Background(), "owner-1", "", "https://x.example.com", "", "")
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("err = %v, want validation code", err)
	}
	_, err = svc.SetStatus(context.Background(), "ghost", "archived")
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("bad status err = %v, want validation code", err)
	}
}
