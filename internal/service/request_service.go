package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/facultydesk/substitute-api/internal/dto"
	"github.com/facultydesk/substitute-api/internal/models"
	"github.com/facultydesk/substitute-api/internal/repository"
	appErrors "github.com/facultydesk/substitute-api/pkg/errors"
	"github.com/facultydesk/substitute-api/pkg/export"
)

type requestStore interface {
	Create(ctx context.Context, request *models.SubstituteRequest) error
	GetByID(ctx context.Context, id string) (*models.SubstituteRequest, error)
	Transition(ctx context.Context, params repository.TransitionParams) (bool, error)
	ListPending(ctx context.Context, excludeRequester string) ([]models.SubstituteRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]models.SubstituteRequest, error)
	ListByAcceptor(ctx context.Context, acceptorID string) ([]models.SubstituteRequest, error)
	Delete(ctx context.Context, id, requesterID string) (bool, error)
}

// lifecycleMetrics counts state transitions; satisfied by MetricsService.
type lifecycleMetrics interface {
	RequestCreated()
	RequestAccepted()
	RequestCancelled()
	RequestCompleted()
	AcceptConflict()
}

// exportArchive stores a copy of each generated export; satisfied by
// storage.Archive.
type exportArchive interface {
	Save(ownerID, ext string, data []byte) (string, error)
}

type nopLifecycleMetrics struct{}

func (nopLifecycleMetrics) RequestCreated()   {}
func (nopLifecycleMetrics) RequestAccepted()  {}
func (nopLifecycleMetrics) RequestCancelled() {}
func (nopLifecycleMetrics) RequestCompleted() {}
func (nopLifecycleMetrics) AcceptConflict()   {}

// RequestService owns the substitute-request lifecycle: creation, the
// pending/accepted/completed/cancelled state machine, and the notification
// trigger points around each transition.
type RequestService struct {
	repo       requestStore
	dispatcher Dispatcher
	metrics    lifecycleMetrics
	archive    exportArchive
	validator  *validator.Validate
	logger     *zap.Logger
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithLifecycleMetrics attaches transition counters.
func WithLifecycleMetrics(m lifecycleMetrics) RequestServiceOption {
	return func(s *RequestService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithExportArchive keeps an on-disk copy of every generated export.
func WithExportArchive(a exportArchive) RequestServiceOption {
	return func(s *RequestService) {
		s.archive = a
	}
}

// NewRequestService constructs the service with defaults.
func NewRequestService(repo requestStore, dispatcher Dispatcher, logger *zap.Logger, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	svc := &RequestService{
		repo:       repo,
		dispatcher: dispatcher,
		metrics:    nopLifecycleMetrics{},
		validator:  validator.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// timeOfDayLayouts covers the clock formats the mobile client submits.
var timeOfDayLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04 pm"}

func parseTimeOfDay(raw string) error {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timeOfDayLayouts {
		if _, err := time.Parse(layout, trimmed); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid time of day %q", raw)
}

// Create validates the payload and stores a new pending request.
func (s *RequestService) Create(ctx context.Context, requesterID string, payload dto.CreateRequestPayload) (*models.SubstituteRequest, error) {
	if requesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requester is required")
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "missing or invalid request fields")
	}
	if payload.DurationMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "durationMinutes must be a positive integer")
	}
	date, err := models.ParseDate(strings.TrimSpace(payload.Date))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be a calendar date in YYYY-MM-DD form")
	}
	if err := parseTimeOfDay(payload.Time); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time must be a valid time of day")
	}

	request := &models.SubstituteRequest{
		RequesterID:     requesterID,
		Subject:         strings.TrimSpace(payload.Subject),
		Date:            date,
		Time:            strings.TrimSpace(payload.Time),
		DurationMinutes: payload.DurationMinutes,
		Classroom:       strings.TrimSpace(payload.Classroom),
		Notes:           payload.Notes,
		Status:          models.StatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.metrics.RequestCreated()

	created, err := s.repo.GetByID(ctx, request.ID)
	if err != nil {
		// The row is in; fall back to the locally built entity.
		s.logger.Warn("reload after create failed", zap.String("request_id", request.ID), zap.Error(err))
		created = request
	}

	s.notify(models.NotificationEvent{
		Type:          models.EventRequestCreated,
		ExcludeUserID: requesterID,
		Title:         "New Substitute Request",
		Body: fmt.Sprintf("%s needs a substitute for %s on %s at %s",
			displayName(created.RequesterName), created.Subject, created.Date, created.Time),
		Data: eventData(models.EventRequestCreated, created),
	})
	return created, nil
}

// Accept claims a pending request for acceptorID. The status check and the
// write happen in one guarded update; the loser of a race gets a conflict,
// never a partially updated row.
func (s *RequestService) Accept(ctx context.Context, requestID, acceptorID string) (*models.SubstituteRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID == acceptorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot accept own request")
	}
	if request.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer available")
	}

	ok, err := s.repo.Transition(ctx, repository.TransitionParams{
		ID:         requestID,
		From:       []models.RequestStatus{models.StatusPending},
		To:         models.StatusAccepted,
		AcceptedBy: &acceptorID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept request")
	}
	if !ok {
		s.metrics.AcceptConflict()
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer available")
	}
	s.metrics.RequestAccepted()

	accepted, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notify(models.NotificationEvent{
		Type:         models.EventRequestAccepted,
		TargetUserID: accepted.RequesterID,
		Title:        "Request Accepted",
		Body: fmt.Sprintf("%s will cover your %s class on %s at %s",
			displayName(accepted.AcceptorName), accepted.Subject, accepted.Date, accepted.Time),
		Data: eventData(models.EventRequestAccepted, accepted),
	})
	return accepted, nil
}

// Cancel moves a request to cancelled on behalf of its requester. Cancelling
// an already accepted request is allowed; the acceptor is released and
// notified but not otherwise compensated.
func (s *RequestService) Cancel(ctx context.Context, requestID, requesterID string) (*models.SubstituteRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found or unauthorized")
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request already cancelled or completed")
	}

	ok, err := s.repo.Transition(ctx, repository.TransitionParams{
		ID:              requestID,
		From:            []models.RequestStatus{models.StatusPending, models.StatusAccepted},
		To:              models.StatusCancelled,
		ClearAcceptedBy: true,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request already cancelled or completed")
	}
	s.metrics.RequestCancelled()

	cancelled, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// The guarded update already released the acceptor; the pre-read copy
	// still knows who to tell.
	if request.AcceptedBy != nil {
		s.notify(models.NotificationEvent{
			Type:         models.EventRequestCancelled,
			TargetUserID: *request.AcceptedBy,
			Title:        "Request Cancelled",
			Body: fmt.Sprintf("The substitute request for %s on %s has been cancelled",
				cancelled.Subject, cancelled.Date),
			Data: eventData(models.EventRequestCancelled, cancelled),
		})
	}
	return cancelled, nil
}

// Complete marks an accepted request as done, requester-only.
func (s *RequestService) Complete(ctx context.Context, requestID, requesterID string) (*models.SubstituteRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found or unauthorized")
	}
	if request.Status != models.StatusAccepted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only accepted requests can be completed")
	}

	ok, err := s.repo.Transition(ctx, repository.TransitionParams{
		ID:   requestID,
		From: []models.RequestStatus{models.StatusAccepted},
		To:   models.StatusCompleted,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only accepted requests can be completed")
	}
	s.metrics.RequestCompleted()

	return s.loadRequest(ctx, requestID)
}

// Remove hard-deletes a request owned by requesterID, regardless of status.
func (s *RequestService) Remove(ctx context.Context, requestID, requesterID string) error {
	ok, err := s.repo.Delete(ctx, requestID, requesterID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "request not found or unauthorized")
	}
	return nil
}

// Get returns a single request by id.
func (s *RequestService) Get(ctx context.Context, requestID string) (*models.SubstituteRequest, error) {
	return s.loadRequest(ctx, requestID)
}

// ListPending returns the open queue, earliest class first. A non-empty
// excludeRequester hides the caller's own requests from the view.
func (s *RequestService) ListPending(ctx context.Context, excludeRequester string) ([]models.SubstituteRequest, error) {
	requests, err := s.repo.ListPending(ctx, excludeRequester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return requests, nil
}

// ListForRequester returns every request a user created, newest first.
func (s *RequestService) ListForRequester(ctx context.Context, requesterID string) ([]models.SubstituteRequest, error) {
	requests, err := s.repo.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// ListAcceptedBy returns the requests a user has claimed.
func (s *RequestService) ListAcceptedBy(ctx context.Context, acceptorID string) ([]models.SubstituteRequest, error) {
	requests, err := s.repo.ListByAcceptor(ctx, acceptorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accepted requests")
	}
	return requests, nil
}

// Export renders a requester's full history as CSV or PDF.
func (s *RequestService) Export(ctx context.Context, requesterID, format string) ([]byte, string, error) {
	requests, err := s.ListForRequester(ctx, requesterID)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Title:   "Substitute Request History",
		Headers: []string{"Subject", "Date", "Time", "Duration (min)", "Classroom", "Status", "Covered By"},
	}
	for _, req := range requests {
		dataset.Rows = append(dataset.Rows, []string{
			req.Subject,
			req.Date.String(),
			req.Time,
			fmt.Sprintf("%d", req.DurationMinutes),
			req.Classroom,
			string(req.Status),
			displayName(req.AcceptorName),
		})
	}

	switch strings.ToLower(format) {
	case "", "csv":
		data, err := export.CSV(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		s.archiveExport(requesterID, "csv", data)
		return data, "text/csv", nil
	case "pdf":
		data, err := export.PDF(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		s.archiveExport(requesterID, "pdf", data)
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// archiveExport is best effort; the caller still gets the rendered bytes
// when the archive write fails.
func (s *RequestService) archiveExport(requesterID, ext string, data []byte) {
	if s.archive == nil {
		return
	}
	name, err := s.archive.Save(requesterID, ext, data)
	if err != nil {
		s.logger.Warn("export archive failed", zap.String("requester_id", requesterID), zap.Error(err))
		return
	}
	s.logger.Debug("export archived", zap.String("file", name))
}

func (s *RequestService) loadRequest(ctx context.Context, requestID string) (*models.SubstituteRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// notify hands the event to the dispatcher. Dispatch failures are logged and
// dropped; a delivered state transition never turns into a reported error.
func (s *RequestService) notify(event models.NotificationEvent) {
	if err := s.dispatcher.Dispatch(context.WithoutCancel(context.Background()), event); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("event", string(event.Type)),
			zap.Error(err),
		)
	}
}

func eventData(eventType models.NotificationEventType, request *models.SubstituteRequest) map[string]string {
	return map[string]string{
		"type":      string(eventType),
		"requestId": request.ID,
		"subject":   request.Subject,
	}
}

func displayName(name *string) string {
	if name == nil || *name == "" {
		return "A colleague"
	}
	return *name
}
