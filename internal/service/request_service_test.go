package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facultydesk/substitute-api/internal/dto"
	"github.com/facultydesk/substitute-api/internal/models"
	"github.com/facultydesk/substitute-api/internal/repository"
	appErrors "github.com/facultydesk/substitute-api/pkg/errors"
)

// requestRepoStub mirrors the repository contract in memory. Transition is a
// real compare-and-swap under a mutex, so the concurrency tests below
// exercise the same winner-takes-all behaviour the SQL guard provides.
type requestRepoStub struct {
	mu       sync.Mutex
	requests map[string]*models.SubstituteRequest
}

func newRequestRepoStub() *requestRepoStub {
	return &requestRepoStub{requests: make(map[string]*models.SubstituteRequest)}
}

func (r *requestRepoStub) Create(ctx context.Context, request *models.SubstituteRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.StatusPending
	}
	stored := *request
	r.requests[request.ID] = &stored
	return nil
}

func (r *requestRepoStub) GetByID(ctx context.Context, id string) (*models.SubstituteRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request, ok := r.requests[id]; ok {
		copied := *request
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *requestRepoStub) Transition(ctx context.Context, params repository.TransitionParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[params.ID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range params.From {
		if request.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	request.Status = params.To
	switch {
	case params.AcceptedBy != nil:
		acceptor := *params.AcceptedBy
		request.AcceptedBy = &acceptor
	case params.ClearAcceptedBy:
		request.AcceptedBy = nil
	}
	return true, nil
}

func (r *requestRepoStub) ListPending(ctx context.Context, excludeRequester string) ([]models.SubstituteRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]models.SubstituteRequest, 0, len(r.requests))
	for _, request := range r.requests {
		if request.Status != models.StatusPending {
			continue
		}
		if excludeRequester != "" && request.RequesterID == excludeRequester {
			continue
		}
		result = append(result, *request)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date.Time) {
			return result[i].Date.Before(result[j].Date.Time)
		}
		return result[i].Time < result[j].Time
	})
	return result, nil
}

func (r *requestRepoStub) ListByRequester(ctx context.Context, requesterID string) ([]models.SubstituteRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []models.SubstituteRequest{}
	for _, request := range r.requests {
		if request.RequesterID == requesterID {
			result = append(result, *request)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *requestRepoStub) ListByAcceptor(ctx context.Context, acceptorID string) ([]models.SubstituteRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []models.SubstituteRequest{}
	for _, request := range r.requests {
		if request.AcceptedBy == nil || *request.AcceptedBy != acceptorID {
			continue
		}
		if request.Status == models.StatusAccepted || request.Status == models.StatusCompleted {
			result = append(result, *request)
		}
	}
	return result, nil
}

func (r *requestRepoStub) Delete(ctx context.Context, id, requesterID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok || request.RequesterID != requesterID {
		return false, nil
	}
	delete(r.requests, id)
	return true, nil
}

// recordingDispatcher captures events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event models.NotificationEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) recorded() []models.NotificationEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.NotificationEvent(nil), d.events...)
}

func validPayload() dto.CreateRequestPayload {
	return dto.CreateRequestPayload{
		Subject:         "CS101",
		Date:            "2026-03-01",
		Time:            "10:00 AM",
		DurationMinutes: 60,
		Classroom:       "C-105",
	}
}

func newTestService() (*RequestService, *requestRepoStub, *recordingDispatcher) {
	repo := newRequestRepoStub()
	dispatcher := &recordingDispatcher{}
	return NewRequestService(repo, dispatcher, nil), repo, dispatcher
}

func TestRequestServiceCreate(t *testing.T) {
	svc, _, dispatcher := newTestService()

	request, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, request.Status)
	assert.Nil(t, request.AcceptedBy)
	assert.Equal(t, "user-1", request.RequesterID)
	assert.Equal(t, "2026-03-01", request.Date.String())

	events := dispatcher.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventRequestCreated, events[0].Type)
	assert.Equal(t, "user-1", events[0].ExcludeUserID)
	assert.Empty(t, events[0].TargetUserID)
}

func TestRequestServiceCreateValidation(t *testing.T) {
	svc, repo, _ := newTestService()

	cases := map[string]dto.CreateRequestPayload{
		"missing subject": func() dto.CreateRequestPayload {
			p := validPayload()
			p.Subject = ""
			return p
		}(),
		"zero duration": func() dto.CreateRequestPayload {
			p := validPayload()
			p.DurationMinutes = 0
			return p
		}(),
		"negative duration": func() dto.CreateRequestPayload {
			p := validPayload()
			p.DurationMinutes = -30
			return p
		}(),
		"malformed date": func() dto.CreateRequestPayload {
			p := validPayload()
			p.Date = "01/03/2026"
			return p
		}(),
		"malformed time": func() dto.CreateRequestPayload {
			p := validPayload()
			p.Time = "half past ten"
			return p
		}(),
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", payload)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
		})
	}
	assert.Empty(t, repo.requests)
}

func TestRequestServiceCreateSurvivesDispatchFailure(t *testing.T) {
	repo := newRequestRepoStub()
	svc := NewRequestService(repo, failingDispatcher{}, nil)

	request, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, request.Status)
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, models.NotificationEvent) error {
	return assert.AnError
}

func TestRequestServiceAccept(t *testing.T) {
	svc, _, dispatcher := newTestService()

	created, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)

	accepted, err := svc.Accept(context.Background(), created.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedBy)
	assert.Equal(t, "user-2", *accepted.AcceptedBy)

	// The loser of a second attempt sees a conflict, not a silent overwrite.
	_, err = svc.Accept(context.Background(), created.ID, "user-3")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	final, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, final.AcceptedBy)
	assert.Equal(t, "user-2", *final.AcceptedBy)

	events := dispatcher.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventRequestAccepted, events[1].Type)
	assert.Equal(t, "user-1", events[1].TargetUserID)
}

func TestRequestServiceAcceptOwnRequest(t *testing.T) {
	svc, _, _ := newTestService()

	created, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), created.ID, "user-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	unchanged, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, unchanged.Status)
	assert.Nil(t, unchanged.AcceptedBy)
}

func TestRequestServiceAcceptNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Accept(context.Background(), "missing", "user-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRequestServiceConcurrentAccept(t *testing.T) {
	svc, _, _ := newTestService()

	created, err := svc.Create(context.Background(), "user-0", validPayload())
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.Accept(context.Background(), created.ID, uuid.NewString())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	}
	assert.Equal(t, 1, winners)

	final, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, final.Status)
	require.NotNil(t, final.AcceptedBy)
}

func TestRequestServiceCancelAccepted(t *testing.T) {
	svc, _, dispatcher := newTestService()

	created, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), created.ID, "user-2")
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AcceptedBy)

	// Terminal: no further accepts or cancels.
	_, err = svc.Accept(context.Background(), created.ID, "user-3")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	_, err = svc.Cancel(context.Background(), created.ID, "user-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	events := dispatcher.recorded()
	require.Len(t, events, 3)
	assert.Equal(t, models.EventRequestCancelled, events[2].Type)
	assert.Equal(t, "user-2", events[2].TargetUserID)
}

func TestRequestServiceCancelUnauthorized(t *testing.T) {
	svc, _, _ := newTestService()

	created, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), created.ID, "user-99")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	unchanged, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, unchanged.Status)
}

func TestRequestServiceComplete(t *testing.T) {
	svc, _, _ := newTestService()

	created, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)

	// Only accepted requests can complete.
	_, err = svc.Complete(context.Background(), created.ID, "user-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Accept(context.Background(), created.ID, "user-2")
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), created.ID, "user-2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	completed, err := svc.Complete(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.AcceptedBy)
	assert.Equal(t, "user-2", *completed.AcceptedBy)

	_, err = svc.Cancel(context.Background(), created.ID, "user-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRequestServiceRemove(t *testing.T) {
	svc, repo, _ := newTestService()

	created, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)

	err = svc.Remove(context.Background(), created.ID, "user-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.Remove(context.Background(), created.ID, "user-1"))
	assert.Empty(t, repo.requests)
}

func TestRequestServiceListPendingOrderingAndExclusion(t *testing.T) {
	svc, _, _ := newTestService()

	later := validPayload()
	later.Date = "2026-01-10"
	later.Time = "10:00"
	_, err := svc.Create(context.Background(), "user-1", later)
	require.NoError(t, err)

	earlier := validPayload()
	earlier.Date = "2026-01-08"
	earlier.Time = "09:00"
	first, err := svc.Create(context.Background(), "user-2", earlier)
	require.NoError(t, err)

	all, err := svc.ListPending(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	// A faculty member never sees their own request in the open queue.
	forUser2, err := svc.ListPending(context.Background(), "user-2")
	require.NoError(t, err)
	require.Len(t, forUser2, 1)
	assert.NotEqual(t, "user-2", forUser2[0].RequesterID)
}

type archiveStub struct {
	saved []string
}

func (a *archiveStub) Save(ownerID, ext string, data []byte) (string, error) {
	name := ownerID + "." + ext
	a.saved = append(a.saved, name)
	return name, nil
}

func TestRequestServiceExportCSV(t *testing.T) {
	repo := newRequestRepoStub()
	archive := &archiveStub{}
	svc := NewRequestService(repo, nil, nil, WithExportArchive(archive))

	_, err := svc.Create(context.Background(), "user-1", validPayload())
	require.NoError(t, err)

	data, contentType, err := svc.Export(context.Background(), "user-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "CS101")
	require.Len(t, archive.saved, 1)
	assert.Equal(t, "user-1.csv", archive.saved[0])

	_, _, err = svc.Export(context.Background(), "user-1", "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Len(t, archive.saved, 1)
}
