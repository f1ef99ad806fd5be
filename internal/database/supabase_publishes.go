package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/sitewrap/platform/internal/app/domain/publish"
)

const publishTable = "publish_records"

type publishRow struct {
	ID          string          `json:"id"`
	AppID       string          `json:"app_id,omitempty"`
	PackageName string          `json:"package_name"`
	VersionCode int64           `json:"version_code"`
	Track       string          `json:"track"`
	Status      string          `json:"status"`
	FailedState string          `json:"failed_state,omitempty"`
	Error       string          `json:"error,omitempty"`
	Timeline    json.RawMessage `json:"timeline,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

func toPublishRow(rec publish.Record) (publishRow, error) {
	timeline, err := json.Marshal(rec.Timeline)
	if err != nil {
		return publishRow{}, fmt.Errorf("marshal timeline: %w", err)
	}
	row := publishRow{
		ID:          rec.ID,
		AppID:       rec.AppID,
		PackageName: rec.PackageName,
		VersionCode: rec.VersionCode,
		Track:       string(rec.Track),
		Status:      string(rec.Status),
		FailedState: string(rec.FailedState),
		Error:       rec.Error,
		Timeline:    timeline,
		StartedAt:   rec.StartedAt,
	}
	if !rec.FinishedAt.IsZero() {
		finished := rec.FinishedAt
		row.FinishedAt = &finished
	}
	return row, nil
}

// WritePublishRecord mirrors a publish history record into Supabase. The
// orchestrator treats this as fire-and-forget; errors are returned for
// logging only.
func (c *Client) WritePublishRecord(ctx context.Context, rec publish.Record) error {
	row, err := toPublishRow(rec)
	if err != nil {
		return err
	}
	_, err = c.request(ctx, http.MethodPost, publishTable, row, "")
	return err
}

// ListPublishRecords returns mirrored history rows for a package.
func (c *Client) ListPublishRecords(ctx context.Context, packageName string) ([]publish.Record, error) {
	query := "order=started_at.asc"
	if packageName != "" {
		query = "package_name=eq." + neturl.QueryEscape(packageName) + "&" + query
	}

	body, err := c.request(ctx, http.MethodGet, publishTable, nil, query)
	if err != nil {
		return nil, err
	}

	var rows []publishRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode publish records: %w", err)
	}

	out := make([]publish.Record, 0, len(rows))
	for _, row := range rows {
		rec := publish.Record{
			ID:          row.ID,
			AppID:       row.AppID,
			PackageName: row.PackageName,
			VersionCode: row.VersionCode,
			Track:       publish.Track(row.Track),
			Status:      publish.State(row.Status),
			FailedState: publish.State(row.FailedState),
			Error:       row.Error,
			StartedAt:   row.StartedAt,
		}
		if row.FinishedAt != nil {
			rec.FinishedAt = *row.FinishedAt
		}
		if len(row.Timeline) > 0 {
			_ = json.Unmarshal(row.Timeline, &rec.Timeline)
		}
		out = append(out, rec)
	}
	return out, nil
}
