// Package publisher sequences the publish pipeline: validate credentials,
// build the artifact, then mutate one platform edit session and commit it.
// Transitions are strictly forward with no retries; the platform's own
// edit-session transactionality provides atomicity at commit.
package publisher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitewrap/platform/internal/app/domain/publish"
	"github.com/sitewrap/platform/internal/app/metrics"
	"github.com/sitewrap/platform/internal/app/services/builder"
	"github.com/sitewrap/platform/internal/app/storage"
	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/internal/playstore"
	"github.com/sitewrap/platform/pkg/logger"
)

// PlatformClient is the subset of the publishing API one publish call needs.
type PlatformClient interface {
	ValidateCredentials(ctx context.Context, packageName string) (playstore.ValidationResult, error)
	InsertEdit(ctx context.Context, packageName string) (playstore.Edit, error)
	UploadAPK(ctx context.Context, packageName, editID, path string) (playstore.Artifact, error)
	UpdateListing(ctx context.Context, packageName, editID string, listing playstore.Listing) error
	AssignTrack(ctx context.Context, packageName, editID string, track publish.Track, versionCode int64) error
	CommitEdit(ctx context.Context, packageName, editID string) error
}

// ClientFactory builds a platform client from request-scoped credentials.
type ClientFactory func(serviceAccountKey []byte) (PlatformClient, error)

// PackageBuilder produces the installable artifact.
type PackageBuilder interface {
	Build(ctx context.Context, req builder.Request) (builder.Result, error)
}

// RecordSink receives finished publish records. Failures are logged only;
// history is best-effort and never blocks the pipeline result.
type RecordSink interface {
	WritePublishRecord(ctx context.Context, rec publish.Record) error
}

// DefaultTimeout bounds one whole publish call. Per-step network timeouts
// still apply underneath.
const DefaultTimeout = 10 * time.Minute

// Service orchestrates publish calls.
type Service struct {
	clients ClientFactory
	builder PackageBuilder
	store   storage.PublishStore
	sink    RecordSink
	timeout time.Duration
	log     *logger.Logger
}

// New constructs a publish orchestrator.
func New(clients ClientFactory, pkgBuilder PackageBuilder, store storage.PublishStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("publisher")
	}
	return &Service{
		clients: clients,
		builder: pkgBuilder,
		store:   store,
		timeout: DefaultTimeout,
		log:     log,
	}
}

// WithSink attaches a fire-and-forget history sink. Call before Publish.
func (s *Service) WithSink(sink RecordSink) *Service {
	s.sink = sink
	return s
}

// WithTimeout overrides the whole-pipeline timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// run tracks one publish call's progression through the pipeline states.
type run struct {
	id       string
	state    publish.State
	timeline []publish.Step
	started  time.Time
}

func (r *run) enter(state publish.State) {
	r.state = state
	r.timeline = append(r.timeline, publish.Step{State: state, StartedAt: time.Now().UTC()})
}

func (r *run) finish(stepErr error) {
	if len(r.timeline) == 0 {
		return
	}
	step := &r.timeline[len(r.timeline)-1]
	step.FinishedAt = time.Now().UTC()
	if stepErr != nil {
		step.Error = userMessage(stepErr)
	}
}

// Publish executes the pipeline for req. On any step failure (listing
// excepted) it transitions to failed and returns the step's error; the built
// artifact is removed on every exit path.
func (s *Service) Publish(ctx context.Context, req publish.Request) (publish.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := validateRequest(&req); err != nil {
		return publish.Result{}, err
	}

	client, err := s.clients(req.ServiceAccountKey)
	if err != nil {
		return publish.Result{}, err
	}

	r := &run{id: uuid.NewString(), started: time.Now().UTC()}
	result, err := s.execute(ctx, client, req, r)

	status := publish.StatePublished
	failedState := publish.State("")
	errMsg := ""
	if err != nil {
		status = publish.StateFailed
		failedState = r.state
		errMsg = userMessage(err)
		s.log.WithError(err).
			WithField("publish_id", r.id).
			WithField("package_name", req.PackageName).
			WithField("state", string(r.state)).
			Warn("publish failed")
	}
	metrics.RecordPublish(string(status), string(failedState), time.Since(r.started))

	rec := publish.Record{
		ID:          r.id,
		AppID:       req.AppID,
		PackageName: req.PackageName,
		VersionCode: result.VersionCode,
		Track:       req.Track,
		Status:      status,
		FailedState: failedState,
		Error:       errMsg,
		StartedAt:   r.started,
		FinishedAt:  time.Now().UTC(),
		Timeline:    r.timeline,
	}
	s.record(ctx, rec)

	if err != nil {
		return publish.Result{}, err
	}
	result.PublishID = r.id
	result.Timeline = r.timeline
	return result, nil
}

func (s *Service) execute(ctx context.Context, client PlatformClient, req publish.Request, r *run) (publish.Result, error) {
	// validating
	r.enter(publish.StateValidating)
	validation, err := client.ValidateCredentials(ctx, req.PackageName)
	if err == nil && !validation.Valid {
		err = errors.Unauthorized(validation.Reason)
	}
	r.finish(err)
	if err != nil {
		return publish.Result{}, err
	}

	// building
	r.enter(publish.StateBuilding)
	built, err := s.builder.Build(ctx, builder.Request{
		SourceURL:   req.SourceURL,
		AppName:     req.AppTitle,
		Description: req.FullDescription,
		IconURL:     req.IconURL,
		PackageName: req.PackageName,
	})
	r.finish(err)
	if err != nil {
		return publish.Result{}, err
	}
	defer func() {
		if cleanupErr := builder.Cleanup(built.BinaryPath); cleanupErr != nil {
			s.log.WithError(cleanupErr).WithField("path", built.BinaryPath).Warn("temp artifact cleanup failed")
		}
	}()

	// editing
	r.enter(publish.StateEditing)
	edit, err := client.InsertEdit(ctx, req.PackageName)
	r.finish(err)
	if err != nil {
		return publish.Result{}, err
	}

	// uploading
	r.enter(publish.StateUploading)
	artifact, err := client.UploadAPK(ctx, req.PackageName, edit.ID, built.BinaryPath)
	r.finish(err)
	if err != nil {
		return publish.Result{}, err
	}

	// listing: best-effort, a failure does not abort the publish
	r.enter(publish.StateListing)
	listingErr := client.UpdateListing(ctx, req.PackageName, edit.ID, playstore.Listing{
		Language:         req.Language,
		Title:            req.AppTitle,
		ShortDescription: req.ShortDescription,
		FullDescription:  req.FullDescription,
	})
	r.finish(listingErr)
	if listingErr != nil {
		s.log.WithError(listingErr).
			WithField("package_name", req.PackageName).
			Warn("listing update failed; continuing without localized copy")
	}

	// assigning
	r.enter(publish.StateAssigning)
	err = client.AssignTrack(ctx, req.PackageName, edit.ID, req.Track, artifact.VersionCode)
	r.finish(err)
	if err != nil {
		return publish.Result{}, err
	}

	// committing: the single point where prior steps become visible
	r.enter(publish.StateCommitting)
	err = client.CommitEdit(ctx, req.PackageName, edit.ID)
	r.finish(err)
	if err != nil {
		return publish.Result{}, err
	}

	r.enter(publish.StatePublished)
	r.finish(nil)

	s.log.WithField("publish_id", r.id).
		WithField("package_name", req.PackageName).
		WithField("version_code", artifact.VersionCode).
		WithField("track", string(req.Track)).
		Info("publish committed")

	return publish.Result{
		PackageName: req.PackageName,
		VersionCode: artifact.VersionCode,
		Track:       req.Track,
		Status:      publish.StatePublished,
		ConsoleURL:  fmt.Sprintf("https://play.google.com/console/developers?packageName=%s", req.PackageName),
	}, nil
}

func (s *Service) record(ctx context.Context, rec publish.Record) {
	if s.store != nil {
		if _, err := s.store.CreatePublishRecord(ctx, rec); err != nil {
			s.log.WithError(err).WithField("publish_id", rec.ID).Warn("persist publish record failed")
		}
	}
	if s.sink != nil {
		if err := s.sink.WritePublishRecord(ctx, rec); err != nil {
			s.log.WithError(err).WithField("publish_id", rec.ID).Warn("publish record sink write failed")
		}
	}
}

func validateRequest(req *publish.Request) error {
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	req.AppTitle = strings.TrimSpace(req.AppTitle)
	req.PackageName = strings.TrimSpace(req.PackageName)

	if req.SourceURL == "" {
		return errors.Validation("url is required")
	}
	if req.AppTitle == "" {
		return errors.Validation("appName is required")
	}
	if len(req.ServiceAccountKey) == 0 {
		return errors.Validation("serviceAccountKey is required")
	}
	if req.PackageName == "" {
		req.PackageName = builder.DerivePackageName(req.AppTitle)
	}
	if req.Track == "" {
		req.Track = publish.TrackInternal
	}
	if !publish.ValidTrack(req.Track) {
		return errors.Validation(fmt.Sprintf("unrecognized track %q; expected internal, alpha, beta or production", req.Track))
	}
	if req.Language == "" {
		req.Language = "en-US"
	}
	return nil
}

// userMessage strips internal detail, keeping only the classified message.
func userMessage(err error) string {
	if svcErr := errors.GetServiceError(err); svcErr != nil {
		return svcErr.Message
	}
	return "internal error"
}

// History lists publish records, optionally filtered by package name.
func (s *Service) History(ctx context.Context, packageName string) ([]publish.Record, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListPublishRecords(ctx, strings.TrimSpace(packageName))
}

// GetRecord fetches one publish record by ID.
func (s *Service) GetRecord(ctx context.Context, id string) (publish.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return publish.Record{}, errors.Validation("publish id is required")
	}
	if s.store == nil {
		return publish.Record{}, errors.NotFound("publish record not found")
	}
	return s.store.GetPublishRecord(ctx, id)
}
