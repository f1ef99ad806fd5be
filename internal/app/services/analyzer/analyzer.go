// Package analyzer classifies a source website so app records can be
// pre-filled with a category and description.
package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sitewrap/platform/internal/app/domain/analysis"
	"github.com/sitewrap/platform/internal/app/metrics"
	"github.com/sitewrap/platform/internal/httputil"
	"github.com/sitewrap/platform/pkg/logger"
)

// Analyzer classifies a source website.
type Analyzer interface {
	Analyze(ctx context.Context, sourceURL string) (analysis.Report, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, sourceURL string) (analysis.Report, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, sourceURL string) (analysis.Report, error) {
	return f(ctx, sourceURL)
}

// HTTPAnalyzer sends the page to the text-generation API and reads the
// classification out of its JSON response.
type HTTPAnalyzer struct {
	client *httputil.JSONClient
	model  string
	log    *logger.Logger
}

// NewHTTPAnalyzer constructs an analyzer against the generation endpoint.
func NewHTTPAnalyzer(baseURL, apiKey, model string, log *logger.Logger) (*HTTPAnalyzer, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("analyzer endpoint required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if log == nil {
		log = logger.NewDefault("analyzer-http")
	}
	return &HTTPAnalyzer{
		client: httputil.NewJSONClient(httputil.JSONClientConfig{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Timeout: 60 * time.Second,
		}),
		model: model,
		log:   log,
	}, nil
}

const classifyPrompt = `Classify the website at %s for an app store listing.
Respond with JSON: {"category": "...", "summary": "...", "suggestedName": "..."}.`

// Analyze asks the model to classify sourceURL.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, sourceURL string) (analysis.Report, error) {
	body := map[string]interface{}{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(classifyPrompt, sourceURL)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	resp, err := a.client.Post(ctx, "/v1/chat/completions", body)
	if err != nil {
		metrics.RecordAnalysis(false)
		return analysis.Report{}, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.RecordAnalysis(false)
		return analysis.Report{}, fmt.Errorf("analysis endpoint status %d", resp.StatusCode)
	}

	raw, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		metrics.RecordAnalysis(false)
		return analysis.Report{}, fmt.Errorf("read analysis response: %w", err)
	}

	content := gjson.GetBytes(raw, "choices.0.message.content").String()
	if content == "" {
		metrics.RecordAnalysis(false)
		return analysis.Report{}, fmt.Errorf("analysis response missing content")
	}

	report := analysis.Report{
		SourceURL:     sourceURL,
		Category:      gjson.Get(content, "category").String(),
		Summary:       gjson.Get(content, "summary").String(),
		SuggestedName: gjson.Get(content, "suggestedName").String(),
		AnalyzedAt:    time.Now().UTC(),
	}
	if report.Category == "" {
		report.Category = "productivity"
	}
	metrics.RecordAnalysis(true)
	return report, nil
}

// StaticAnalyzer is the sandbox implementation: it fetches the page and
// classifies by keyword, with no third-party calls beyond the site itself.
type StaticAnalyzer struct {
	client *http.Client
}

// NewStaticAnalyzer constructs the keyword-based analyzer.
func NewStaticAnalyzer(client *http.Client) *StaticAnalyzer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &StaticAnalyzer{client: client}
}

var categoryKeywords = map[string][]string{
	"finance":      {"invoice", "payment", "billing", "accounting", "bank"},
	"productivity": {"task", "project", "workflow", "calendar", "notes"},
	"commerce":     {"shop", "store", "cart", "checkout", "product"},
	"social":       {"chat", "message", "community", "friend", "follow"},
	"analytics":    {"dashboard", "metric", "report", "insight", "chart"},
}

func (a *StaticAnalyzer) Analyze(ctx context.Context, sourceURL string) (analysis.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return analysis.Report{}, fmt.Errorf("create page request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return analysis.Report{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return analysis.Report{}, fmt.Errorf("page status %d", resp.StatusCode)
	}

	page, _, err := httputil.ReadAllWithLimit(resp.Body, 256<<10)
	if err != nil {
		return analysis.Report{}, fmt.Errorf("read page: %w", err)
	}
	text := strings.ToLower(string(page))

	category := "productivity"
	best := 0
	for cat, words := range categoryKeywords {
		hits := 0
		for _, w := range words {
			hits += strings.Count(text, w)
		}
		if hits > best {
			best = hits
			category = cat
		}
	}

	report := analysis.Report{
		SourceURL:  sourceURL,
		Category:   category,
		Summary:    fmt.Sprintf("Web application classified as %s.", category),
		AnalyzedAt: time.Now().UTC(),
	}
	if title := extractTitle(string(page)); title != "" {
		report.SuggestedName = title
	}
	metrics.RecordAnalysis(true)
	return report, nil
}

func extractTitle(page string) string {
	lower := strings.ToLower(page)
	start := strings.Index(lower, "<title>")
	if start == -1 {
		return ""
	}
	start += len("<title>")
	end := strings.Index(lower[start:], "</title>")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(page[start : start+end])
}
