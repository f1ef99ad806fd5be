// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/domain/publish"
	"github.com/sitewrap/platform/internal/app/domain/revenue"
	"github.com/sitewrap/platform/internal/app/storage"
	"github.com/sitewrap/platform/internal/errors"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.AppStore = (*Store)(nil)
var _ storage.PublishStore = (*Store)(nil)
var _ storage.RevenueStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS sitewrap_apps (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	name          TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	package_name  TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	icon_url      TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sitewrap_publishes (
	id            TEXT PRIMARY KEY,
	app_id        TEXT NOT NULL DEFAULT '',
	package_name  TEXT NOT NULL,
	version_code  BIGINT NOT NULL DEFAULT 0,
	track         TEXT NOT NULL,
	status        TEXT NOT NULL,
	failed_state  TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	timeline      JSONB NOT NULL DEFAULT '[]',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sitewrap_revenue_splits (
	id          TEXT PRIMARY KEY,
	app_id      TEXT NOT NULL,
	party_id    TEXT NOT NULL,
	share       DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sitewrap_revenue_events (
	id           TEXT PRIMARY KEY,
	app_id       TEXT NOT NULL,
	amount       DOUBLE PRECISION NOT NULL,
	currency     TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the platform tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// --- AppStore ---------------------------------------------------------------

func (s *Store) CreateApp(ctx context.Context, a appdomain.App) (appdomain.App, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sitewrap_apps (id, owner_id, name, source_url, package_name, description, icon_url, category, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.OwnerID, a.Name, a.SourceURL, a.PackageName, a.Description, a.IconURL, a.Category, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return appdomain.App{}, err
	}
	return a, nil
}

func (s *Store) UpdateApp(ctx context.Context, a appdomain.App) (appdomain.App, error) {
	existing, err := s.GetApp(ctx, a.ID)
	if err != nil {
		return appdomain.App{}, err
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE sitewrap_apps
		SET owner_id = $2, name = $3, source_url = $4, package_name = $5, description = $6,
		    icon_url = $7, category = $8, status = $9, updated_at = $10
		WHERE id = $1
	`, a.ID, a.OwnerID, a.Name, a.SourceURL, a.PackageName, a.Description, a.IconURL, a.Category, string(a.Status), a.UpdatedAt)
	if err != nil {
		return appdomain.App{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appdomain.App{}, errors.NotFound(fmt.Sprintf("app %s not found", a.ID))
	}
	return a, nil
}

func (s *Store) GetApp(ctx context.Context, id string) (appdomain.App, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, source_url, package_name, description, icon_url, category, status, created_at, updated_at
		FROM sitewrap_apps WHERE id = $1
	`, id)
	return scanApp(row)
}

func (s *Store) GetAppByPackage(ctx context.Context, packageName string) (appdomain.App, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, source_url, package_name, description, icon_url, category, status, created_at, updated_at
		FROM sitewrap_apps WHERE package_name = $1
	`, packageName)
	return scanApp(row)
}

func (s *Store) ListApps(ctx context.Context, ownerID string) ([]appdomain.App, error) {
	query := `
		SELECT id, owner_id, name, source_url, package_name, description, icon_url, category, status, created_at, updated_at
		FROM sitewrap_apps`
	args := []interface{}{}
	if ownerID != "" {
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []appdomain.App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteApp(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sitewrap_apps WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound(fmt.Sprintf("app %s not found", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApp(row rowScanner) (appdomain.App, error) {
	var a appdomain.App
	var status string
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.SourceURL, &a.PackageName, &a.Description, &a.IconURL, &a.Category, &status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return appdomain.App{}, errors.NotFound("app not found")
	}
	if err != nil {
		return appdomain.App{}, err
	}
	a.Status = appdomain.Status(status)
	return a, nil
}

// --- PublishStore -----------------------------------------------------------

func (s *Store) CreatePublishRecord(ctx context.Context, rec publish.Record) (publish.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	timelineJSON, err := json.Marshal(rec.Timeline)
	if err != nil {
		return publish.Record{}, err
	}

	var finished interface{}
	if !rec.FinishedAt.IsZero() {
		finished = rec.FinishedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sitewrap_publishes (id, app_id, package_name, version_code, track, status, failed_state, error, timeline, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.AppID, rec.PackageName, rec.VersionCode, string(rec.Track), string(rec.Status), string(rec.FailedState), rec.Error, timelineJSON, rec.StartedAt, finished)
	if err != nil {
		return publish.Record{}, err
	}
	return rec, nil
}

func (s *Store) UpdatePublishRecord(ctx context.Context, rec publish.Record) (publish.Record, error) {
	timelineJSON, err := json.Marshal(rec.Timeline)
	if err != nil {
		return publish.Record{}, err
	}

	var finished interface{}
	if !rec.FinishedAt.IsZero() {
		finished = rec.FinishedAt
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sitewrap_publishes
		SET version_code = $2, track = $3, status = $4, failed_state = $5, error = $6, timeline = $7, finished_at = $8
		WHERE id = $1
	`, rec.ID, rec.VersionCode, string(rec.Track), string(rec.Status), string(rec.FailedState), rec.Error, timelineJSON, finished)
	if err != nil {
		return publish.Record{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return publish.Record{}, errors.NotFound(fmt.Sprintf("publish record %s not found", rec.ID))
	}
	return rec, nil
}

func (s *Store) GetPublishRecord(ctx context.Context, id string) (publish.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app_id, package_name, version_code, track, status, failed_state, error, timeline, started_at, finished_at
		FROM sitewrap_publishes WHERE id = $1
	`, id)
	return scanPublishRecord(row)
}

func (s *Store) ListPublishRecords(ctx context.Context, packageName string) ([]publish.Record, error) {
	query := `
		SELECT id, app_id, package_name, version_code, track, status, failed_state, error, timeline, started_at, finished_at
		FROM sitewrap_publishes`
	args := []interface{}{}
	if packageName != "" {
		query += ` WHERE package_name = $1`
		args = append(args, packageName)
	}
	query += ` ORDER BY started_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []publish.Record
	for rows.Next() {
		rec, err := scanPublishRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPublishRecord(row rowScanner) (publish.Record, error) {
	var rec publish.Record
	var track, status, failedState string
	var timelineJSON []byte
	var finished sql.NullTime
	err := row.Scan(&rec.ID, &rec.AppID, &rec.PackageName, &rec.VersionCode, &track, &status, &failedState, &rec.Error, &timelineJSON, &rec.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return publish.Record{}, errors.NotFound("publish record not found")
	}
	if err != nil {
		return publish.Record{}, err
	}
	rec.Track = publish.Track(track)
	rec.Status = publish.State(status)
	rec.FailedState = publish.State(failedState)
	if finished.Valid {
		rec.FinishedAt = finished.Time
	}
	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &rec.Timeline); err != nil {
			return publish.Record{}, err
		}
	}
	return rec, nil
}

// --- RevenueStore -----------------------------------------------------------

func (s *Store) CreateSplit(ctx context.Context, split revenue.Split) (revenue.Split, error) {
	if split.ID == "" {
		split.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	split.CreatedAt = now
	split.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sitewrap_revenue_splits (id, app_id, party_id, share, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, split.ID, split.AppID, split.PartyID, split.Share, split.CreatedAt, split.UpdatedAt)
	if err != nil {
		return revenue.Split{}, err
	}
	return split, nil
}

func (s *Store) UpdateSplit(ctx context.Context, split revenue.Split) (revenue.Split, error) {
	split.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE sitewrap_revenue_splits SET party_id = $2, share = $3, updated_at = $4 WHERE id = $1
	`, split.ID, split.PartyID, split.Share, split.UpdatedAt)
	if err != nil {
		return revenue.Split{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return revenue.Split{}, errors.NotFound(fmt.Sprintf("split %s not found", split.ID))
	}
	return split, nil
}

func (s *Store) ListSplits(ctx context.Context, appID string) ([]revenue.Split, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, party_id, share, created_at, updated_at
		FROM sitewrap_revenue_splits WHERE app_id = $1 ORDER BY created_at
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []revenue.Split
	for rows.Next() {
		var split revenue.Split
		if err := rows.Scan(&split.ID, &split.AppID, &split.PartyID, &split.Share, &split.CreatedAt, &split.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, split)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSplit(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sitewrap_revenue_splits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound(fmt.Sprintf("split %s not found", id))
	}
	return nil
}

func (s *Store) CreateRevenueEvent(ctx context.Context, evt revenue.Event) (revenue.Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	evt.CreatedAt = time.Now().UTC()
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = evt.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sitewrap_revenue_events (id, app_id, amount, currency, source, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evt.ID, evt.AppID, evt.Amount, evt.Currency, evt.Source, evt.OccurredAt, evt.CreatedAt)
	if err != nil {
		return revenue.Event{}, err
	}
	return evt, nil
}

func (s *Store) ListRevenueEvents(ctx context.Context, appID string) ([]revenue.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, amount, currency, source, occurred_at, created_at
		FROM sitewrap_revenue_events WHERE app_id = $1 ORDER BY occurred_at
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []revenue.Event
	for rows.Next() {
		var evt revenue.Event
		if err := rows.Scan(&evt.ID, &evt.AppID, &evt.Amount, &evt.Currency, &evt.Source, &evt.OccurredAt, &evt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
