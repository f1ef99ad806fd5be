package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPAnalyzerParsesCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer llm-key" {
			t.Errorf("authorization = %s", got)
		}
		content := `{"category":"finance","summary":"Invoicing tool.","suggestedName":"InvoiceHub"}`
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)

	a, err := NewHTTPAnalyzer(server.URL, "llm-key", "", nil)
	if err != nil {
		t.Fatalf("NewHTTPAnalyzer: %v", err)
	}

	report, err := a.Analyze(context.Background(), "https://invoicehub.example")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Category != "finance" {
		t.Fatalf("category = %s", report.Category)
	}
	if report.SuggestedName != "InvoiceHub" {
		t.Fatalf("suggested name = %s", report.SuggestedName)
	}
	if report.Summary == "" || report.AnalyzedAt.IsZero() {
		t.Fatalf("incomplete report: %+v", report)
	}
}

func TestHTTPAnalyzerDefaultsCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"summary":"Something."}`}},
			},
		})
	}))
	t.Cleanup(server.Close)

	a, err := NewHTTPAnalyzer(server.URL, "", "", nil)
	if err != nil {
		t.Fatalf("NewHTTPAnalyzer: %v", err)
	}
	report, err := a.Analyze(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Category != "productivity" {
		t.Fatalf("category = %s, want productivity default", report.Category)
	}
}

func TestHTTPAnalyzerMissingContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(server.Close)

	a, err := NewHTTPAnalyzer(server.URL, "", "", nil)
	if err != nil {
		t.Fatalf("NewHTTPAnalyzer: %v", err)
	}
	if _, err := a.Analyze(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestStaticAnalyzerClassifiesByKeywords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title> LedgerLite </title></head>
<body>Send an invoice, collect a payment, reconcile your bank billing.</body></html>`))
	}))
	t.Cleanup(server.Close)

	a := NewStaticAnalyzer(server.Client())
	report, err := a.Analyze(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Category != "finance" {
		t.Fatalf("category = %s, want finance", report.Category)
	}
	if report.SuggestedName != "LedgerLite" {
		t.Fatalf("suggested name = %q", report.SuggestedName)
	}
}

func TestStaticAnalyzerUnreachablePage(t *testing.T) {
	a := NewStaticAnalyzer(nil)
	if _, err := a.Analyze(context.Background(), "http://127.0.0.1:1"); err == nil {
		t.Fatal("expected error for unreachable page")
	}
}
