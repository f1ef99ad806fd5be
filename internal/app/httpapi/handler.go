package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	app "github.com/sitewrap/platform/internal/app"
	appdomain "github.com/sitewrap/platform/internal/app/domain/app"
	"github.com/sitewrap/platform/internal/app/domain/publish"
	svcerrors "github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/internal/session"
)

// maxRequestBody bounds inbound JSON bodies; service account keys and
// listings fit comfortably under this.
const maxRequestBody = 1 << 20

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *AuditLog
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	return NewHandlerWithAudit(application, nil)
}

// NewHandlerWithAudit additionally records requests into the given audit log.
func NewHandlerWithAudit(application *app.Application, audit *AuditLog) http.Handler {
	h := &handler{app: application, audit: audit}
	mux := http.NewServeMux()
	mux.HandleFunc("/publish-to-play-store", h.publish)
	mux.HandleFunc("/publish-sessions", h.publishSessions)
	mux.HandleFunc("/publish-sessions/", h.publishSessionResource)
	mux.HandleFunc("/apps", h.apps)
	mux.HandleFunc("/apps/", h.appResources)
	mux.HandleFunc("/publishes", h.publishes)
	mux.HandleFunc("/publishes/", h.publishResource)
	mux.HandleFunc("/audit", h.auditEntries)
	if audit == nil {
		return mux
	}
	return auditMiddleware(audit, mux)
}

type publishPayload struct {
	URL               string          `json:"url"`
	AppName           string          `json:"appName"`
	Description       string          `json:"description"`
	FullDescription   string          `json:"fullDescription"`
	ServiceAccountKey json.RawMessage `json:"serviceAccountKey"`
	SessionID         string          `json:"sessionId"`
	PackageName       string          `json:"packageName"`
	Track             string          `json:"track"`
	Category          string          `json:"category"`
	Language          string          `json:"language"`
	IconURL           string          `json:"iconUrl"`
	AppID             string          `json:"appId"`
}

type publishResponse struct {
	Success     bool           `json:"success"`
	PublishID   string         `json:"publishId"`
	VersionCode int64          `json:"versionCode"`
	Track       string         `json:"track"`
	Status      string         `json:"status"`
	ConsoleURL  string         `json:"consoleUrl"`
	Timeline    []publish.Step `json:"timeline"`
}

func (h *handler) publish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var payload publishPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writePublishError(w, svcerrors.Validation("invalid request body"))
		return
	}

	key, err := h.publishCredentials(r.Context(), payload)
	if err != nil {
		writePublishError(w, err)
		return
	}

	result, err := h.app.Publisher.Publish(r.Context(), publish.Request{
		AppID:             strings.TrimSpace(payload.AppID),
		SourceURL:         payload.URL,
		AppTitle:          payload.AppName,
		ShortDescription:  payload.Description,
		FullDescription:   payload.FullDescription,
		PackageName:       payload.PackageName,
		ServiceAccountKey: key,
		Track:             publish.Track(payload.Track),
		Language:          payload.Language,
		Category:          payload.Category,
		IconURL:           payload.IconURL,
	})
	if err != nil {
		writePublishError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{
		Success:     true,
		PublishID:   result.PublishID,
		VersionCode: result.VersionCode,
		Track:       string(result.Track),
		Status:      string(result.Status),
		ConsoleURL:  result.ConsoleURL,
		Timeline:    result.Timeline,
	})
}

// publishCredentials resolves the service account key from the request body
// or from a previously opened publish session.
func (h *handler) publishCredentials(ctx context.Context, payload publishPayload) ([]byte, error) {
	if payload.SessionID == "" {
		return serviceAccountKeyBytes(payload.ServiceAccountKey)
	}
	if len(payload.ServiceAccountKey) > 0 && string(payload.ServiceAccountKey) != "null" {
		return nil, svcerrors.Validation("provide either serviceAccountKey or sessionId, not both")
	}
	if h.app.Sessions == nil {
		return nil, svcerrors.Internal("session store not configured", nil)
	}
	sess, ok, err := h.app.Sessions.Get(ctx, payload.SessionID)
	if err != nil {
		return nil, svcerrors.Internal("read publish session", err)
	}
	if !ok {
		return nil, svcerrors.Validation("publish session is unknown or expired")
	}
	return []byte(sess.Token), nil
}

// publishSessionTTL bounds how long stored credentials stay usable.
const publishSessionTTL = 30 * time.Minute

func (h *handler) publishSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.app.Sessions == nil {
		writeServiceError(w, svcerrors.Internal("session store not configured", nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var payload struct {
		ServiceAccountKey json.RawMessage `json:"serviceAccountKey"`
		UserID            string          `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key, err := serviceAccountKeyBytes(payload.ServiceAccountKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sess := session.Session{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(payload.UserID),
		Token:     string(key),
		ExpiresAt: time.Now().UTC().Add(publishSessionTTL),
	}
	if err := h.app.Sessions.Put(r.Context(), sess, publishSessionTTL); err != nil {
		writeServiceError(w, svcerrors.Internal("store publish session", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sessionId": sess.ID,
		"expiresAt": sess.ExpiresAt,
	})
}

func (h *handler) publishSessionResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/publish-sessions"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.app.Sessions == nil {
		writeServiceError(w, svcerrors.Internal("session store not configured", nil))
		return
	}
	if err := h.app.Sessions.Delete(r.Context(), id); err != nil {
		writeServiceError(w, svcerrors.Internal("delete publish session", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serviceAccountKeyBytes accepts the credential either as an embedded JSON
// object or as a JSON string containing the key document.
func serviceAccountKeyBytes(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, svcerrors.Validation("serviceAccountKey is required")
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, svcerrors.Validation("serviceAccountKey is not valid JSON")
		}
		return []byte(s), nil
	}
	return []byte(trimmed), nil
}

func (h *handler) apps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			OwnerID     string `json:"owner_id"`
			Name        string `json:"name"`
			SourceURL   string `json:"source_url"`
			Description string `json:"description"`
			IconURL     string `json:"icon_url"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Apps.Create(r.Context(), payload.OwnerID, payload.Name, payload.SourceURL, payload.Description, payload.IconURL)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		apps, err := h.app.Apps.List(r.Context(), r.URL.Query().Get("owner_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apps)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) appResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/apps"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	appID := parts[0]

	if len(parts) == 1 {
		h.appByID(w, r, appID)
		return
	}

	switch parts[1] {
	case "status":
		if len(parts) != 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.appStatus(w, r, appID)
	case "revenue":
		h.appRevenue(w, r, appID, parts[2:])
	case "publishes":
		if len(parts) != 2 || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.appPublishes(w, r, appID)
	case "icon":
		if len(parts) != 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.appIcon(w, r, appID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) appByID(w http.ResponseWriter, r *http.Request, appID string) {
	switch r.Method {
	case http.MethodGet:
		found, err := h.app.Apps.Get(r.Context(), appID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)

	case http.MethodPatch:
		var payload struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			IconURL     *string `json:"icon_url"`
			Category    *string `json:"category"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Apps.Update(r.Context(), appID, payload.Name, payload.Description, payload.IconURL, payload.Category)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := h.app.Apps.Delete(r.Context(), appID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) appStatus(w http.ResponseWriter, r *http.Request, appID string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Apps.SetStatus(r.Context(), appID, appdomain.Status(payload.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) appRevenue(w http.ResponseWriter, r *http.Request, appID string, rest []string) {
	if len(rest) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch rest[0] {
	case "splits":
		switch r.Method {
		case http.MethodPut:
			var payload struct {
				Parties map[string]float64 `json:"parties"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			splits, err := h.app.Revenue.SetSplits(r.Context(), appID, payload.Parties)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, splits)
		case http.MethodGet:
			splits, err := h.app.Revenue.ListSplits(r.Context(), appID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, splits)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case "events":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
			Source   string  `json:"source"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		event, err := h.app.Revenue.RecordEvent(r.Context(), appID, payload.Amount, payload.Currency, payload.Source)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, event)

	case "summary":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		summary, err := h.app.Revenue.Summary(r.Context(), appID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) appIcon(w http.ResponseWriter, r *http.Request, appID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.app.Assets == nil {
		writeServiceError(w, svcerrors.Upload("asset uploads are not configured", nil))
		return
	}
	if _, err := h.app.Apps.Get(r.Context(), appID); err != nil {
		writeServiceError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeServiceError(w, svcerrors.Validation("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	hosted, err := h.app.Assets.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := h.app.Apps.Update(r.Context(), appID, nil, nil, &hosted, nil)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) appPublishes(w http.ResponseWriter, r *http.Request, appID string) {
	found, err := h.app.Apps.Get(r.Context(), appID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	records, err := h.app.Publisher.History(r.Context(), found.PackageName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) publishes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := h.app.Publisher.History(r.Context(), r.URL.Query().Get("package_name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) publishResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/publishes"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	record, err := h.app.Publisher.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.audit == nil {
		writeJSON(w, http.StatusOK, []AuditEntry{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeServiceError maps taxonomy errors to their HTTP status; anything
// unclassified is a 500 with a generic message.
func writeServiceError(w http.ResponseWriter, err error) {
	if svcErr := svcerrors.GetServiceError(err); svcErr != nil {
		writeError(w, svcErr.HTTPStatus, svcErr)
		return
	}
	writeError(w, http.StatusInternalServerError, fmt.Errorf("internal server error"))
}

// writePublishError renders the publish endpoint's envelope. Internal detail
// never leaks past the taxonomy message.
func writePublishError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	if svcErr := svcerrors.GetServiceError(err); svcErr != nil {
		status = svcErr.HTTPStatus
		message = svcErr.Message
		// Rejected publishing credentials are caller input on this endpoint,
		// not a failed bearer token.
		if svcErr.Code == svcerrors.CodeAuthorization {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
