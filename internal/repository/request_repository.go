package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/facultydesk/substitute-api/internal/models"
)

// requestColumns joins the requester and, when present, the acceptor display
// names so list views never need a second round trip.
const requestColumns = `sr.id, sr.requester_id, sr.subject, sr.date, sr.time, sr.duration_minutes,
       sr.classroom, sr.notes, sr.status, sr.accepted_by, sr.created_at, sr.updated_at,
       req.name AS requester_name, acc.name AS acceptor_name
	FROM substitute_requests sr
	JOIN users req ON req.id = sr.requester_id
	LEFT JOIN users acc ON acc.id = sr.accepted_by`

// RequestRepository persists substitute requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.SubstituteRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = now
	}
	const query = `INSERT INTO substitute_requests
	(id, requester_id, subject, date, time, duration_minutes, classroom, notes, status, accepted_by, created_at, updated_at)
	VALUES (:id, :requester_id, :subject, :date, :time, :duration_minutes, :classroom, :notes, :status, :accepted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create substitute request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.SubstituteRequest, error) {
	query := "SELECT " + requestColumns + " WHERE sr.id = $1"
	var request models.SubstituteRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// TransitionParams describes a guarded status change. The update only lands
// when the row still carries one of the expected statuses; this single
// statement is the concurrency guard that serializes racing accepts.
type TransitionParams struct {
	ID         string
	From       []models.RequestStatus
	To         models.RequestStatus
	AcceptedBy *string
	// ClearAcceptedBy nulls accepted_by in the same statement. Used when a
	// cancellation releases the acceptor, keeping accepted_by meaningful
	// only on accepted and completed rows.
	ClearAcceptedBy bool
	UpdatedAt       time.Time
}

// Transition performs the compare-and-swap status update. It returns false
// when the guard did not match, meaning the request moved on concurrently.
func (r *RequestRepository) Transition(ctx context.Context, params TransitionParams) (bool, error) {
	if len(params.From) == 0 {
		return false, fmt.Errorf("transition requires at least one expected status")
	}
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now().UTC()
	}

	setParts := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{params.To, params.UpdatedAt}
	switch {
	case params.AcceptedBy != nil:
		args = append(args, *params.AcceptedBy)
		setParts = append(setParts, fmt.Sprintf("accepted_by = $%d", len(args)))
	case params.ClearAcceptedBy:
		setParts = append(setParts, "accepted_by = NULL")
	}

	args = append(args, params.ID)
	idPos := len(args)

	placeholders := make([]string, len(params.From))
	for i, status := range params.From {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf("UPDATE substitute_requests SET %s WHERE id = $%d AND status IN (%s)",
		strings.Join(setParts, ", "), idPos, strings.Join(placeholders, ","))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition request %s to %s: %w", params.ID, params.To, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListPending returns pending requests in chronological urgency order. A
// non-empty excludeRequester removes the caller's own requests from the view.
func (r *RequestRepository) ListPending(ctx context.Context, excludeRequester string) ([]models.SubstituteRequest, error) {
	query := "SELECT " + requestColumns + " WHERE sr.status = $1"
	args := []interface{}{models.StatusPending}
	if excludeRequester != "" {
		args = append(args, excludeRequester)
		query += fmt.Sprintf(" AND sr.requester_id <> $%d", len(args))
	}
	query += " ORDER BY sr.date ASC, sr.time ASC"

	requests := []models.SubstituteRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// ListByRequester returns every request a user created, newest first.
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID string) ([]models.SubstituteRequest, error) {
	query := "SELECT " + requestColumns + " WHERE sr.requester_id = $1 ORDER BY sr.created_at DESC"
	requests := []models.SubstituteRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, requesterID); err != nil {
		return nil, fmt.Errorf("list requests by requester: %w", err)
	}
	return requests, nil
}

// ListByAcceptor returns requests a user claimed, soonest class first.
// Only accepted and completed rows carry an acceptor; the status filter
// keeps the contract explicit.
func (r *RequestRepository) ListByAcceptor(ctx context.Context, acceptorID string) ([]models.SubstituteRequest, error) {
	query := "SELECT " + requestColumns +
		" WHERE sr.accepted_by = $1 AND sr.status IN ('accepted', 'completed') ORDER BY sr.date ASC, sr.time ASC"
	requests := []models.SubstituteRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, acceptorID); err != nil {
		return nil, fmt.Errorf("list requests by acceptor: %w", err)
	}
	return requests, nil
}

// Delete hard-removes a request owned by requesterID. Returns false when no
// row matched, which covers both unknown ids and foreign ownership.
func (r *RequestRepository) Delete(ctx context.Context, id, requesterID string) (bool, error) {
	const query = `DELETE FROM substitute_requests WHERE id = $1 AND requester_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, requesterID)
	if err != nil {
		return false, fmt.Errorf("delete request %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	return affected > 0, nil
}
