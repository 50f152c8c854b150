package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facultydesk/substitute-api/internal/dto"
	"github.com/facultydesk/substitute-api/internal/middleware"
	"github.com/facultydesk/substitute-api/internal/models"
	appErrors "github.com/facultydesk/substitute-api/pkg/errors"
)

type requestServiceStub struct {
	createFn func(ctx context.Context, requesterID string, payload dto.CreateRequestPayload) (*models.SubstituteRequest, error)
	acceptFn func(ctx context.Context, requestID, acceptorID string) (*models.SubstituteRequest, error)
	cancelFn func(ctx context.Context, requestID, requesterID string) (*models.SubstituteRequest, error)
	exportFn func(ctx context.Context, requesterID, format string) ([]byte, string, error)
}

func (s *requestServiceStub) Create(ctx context.Context, requesterID string, payload dto.CreateRequestPayload) (*models.SubstituteRequest, error) {
	return s.createFn(ctx, requesterID, payload)
}

func (s *requestServiceStub) Accept(ctx context.Context, requestID, acceptorID string) (*models.SubstituteRequest, error) {
	return s.acceptFn(ctx, requestID, acceptorID)
}

func (s *requestServiceStub) Cancel(ctx context.Context, requestID, requesterID string) (*models.SubstituteRequest, error) {
	return s.cancelFn(ctx, requestID, requesterID)
}

func (s *requestServiceStub) Complete(ctx context.Context, requestID, requesterID string) (*models.SubstituteRequest, error) {
	return nil, nil
}

func (s *requestServiceStub) Remove(ctx context.Context, requestID, requesterID string) error {
	return nil
}

func (s *requestServiceStub) Get(ctx context.Context, requestID string) (*models.SubstituteRequest, error) {
	return nil, nil
}

func (s *requestServiceStub) ListPending(ctx context.Context, excludeRequester string) ([]models.SubstituteRequest, error) {
	return nil, nil
}

func (s *requestServiceStub) ListForRequester(ctx context.Context, requesterID string) ([]models.SubstituteRequest, error) {
	return nil, nil
}

func (s *requestServiceStub) ListAcceptedBy(ctx context.Context, acceptorID string) ([]models.SubstituteRequest, error) {
	return nil, nil
}

func (s *requestServiceStub) Export(ctx context.Context, requesterID, format string) ([]byte, string, error) {
	return s.exportFn(ctx, requesterID, format)
}

func newHandlerContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope
}

func TestRequestHandlerCreate(t *testing.T) {
	svc := &requestServiceStub{
		createFn: func(ctx context.Context, requesterID string, payload dto.CreateRequestPayload) (*models.SubstituteRequest, error) {
			assert.Equal(t, "user-1", requesterID)
			assert.Equal(t, "CS101", payload.Subject)
			date, _ := models.ParseDate(payload.Date)
			return &models.SubstituteRequest{
				ID:              "req-1",
				RequesterID:     requesterID,
				Subject:         payload.Subject,
				Date:            date,
				Time:            payload.Time,
				DurationMinutes: payload.DurationMinutes,
				Classroom:       payload.Classroom,
				Status:          models.StatusPending,
			}, nil
		},
	}
	handler := NewRequestHandler(svc)

	body, _ := json.Marshal(dto.CreateRequestPayload{
		Subject:         "CS101",
		Date:            "2026-03-01",
		Time:            "10:00 AM",
		DurationMinutes: 60,
		Classroom:       "C-105",
	})
	c, recorder := newHandlerContext(t, http.MethodPost, "/api/requests", body, &models.JWTClaims{UserID: "user-1"})

	handler.Create(c)

	require.Equal(t, http.StatusCreated, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope["data"], &data))
	assert.Equal(t, "req-1", data["id"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "2026-03-01", data["date"])
}

func TestRequestHandlerCreateWithoutIdentity(t *testing.T) {
	handler := NewRequestHandler(&requestServiceStub{})

	c, recorder := newHandlerContext(t, http.MethodPost, "/api/requests", []byte(`{}`), nil)
	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequestHandlerCreateMalformedBody(t *testing.T) {
	handler := NewRequestHandler(&requestServiceStub{})

	c, recorder := newHandlerContext(t, http.MethodPost, "/api/requests", []byte(`{not json`), &models.JWTClaims{UserID: "user-1"})
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRequestHandlerAcceptConflict(t *testing.T) {
	svc := &requestServiceStub{
		acceptFn: func(ctx context.Context, requestID, acceptorID string) (*models.SubstituteRequest, error) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer available")
		},
	}
	handler := NewRequestHandler(svc)

	c, recorder := newHandlerContext(t, http.MethodPut, "/api/requests/req-1/accept", nil, &models.JWTClaims{UserID: "user-2"})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Accept(c)

	require.Equal(t, http.StatusConflict, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	var apiErr appErrors.Error
	require.NoError(t, json.Unmarshal(envelope["error"], &apiErr))
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Equal(t, "request is no longer available", apiErr.Message)
}

func TestRequestHandlerCancelNotFound(t *testing.T) {
	svc := &requestServiceStub{
		cancelFn: func(ctx context.Context, requestID, requesterID string) (*models.SubstituteRequest, error) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found or unauthorized")
		},
	}
	handler := NewRequestHandler(svc)

	c, recorder := newHandlerContext(t, http.MethodPut, "/api/requests/req-9/cancel", nil, &models.JWTClaims{UserID: "user-2"})
	c.Params = gin.Params{{Key: "id", Value: "req-9"}}
	handler.Cancel(c)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRequestHandlerExport(t *testing.T) {
	svc := &requestServiceStub{
		exportFn: func(ctx context.Context, requesterID, format string) ([]byte, string, error) {
			assert.Equal(t, "csv", format)
			return []byte("subject,date\n"), "text/csv", nil
		},
	}
	handler := NewRequestHandler(svc)

	c, recorder := newHandlerContext(t, http.MethodGet, "/api/requests/mine/export", nil, &models.JWTClaims{UserID: "user-1"})
	handler.Export(c)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/csv", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "substitute-requests.csv")
	assert.Equal(t, "subject,date\n", recorder.Body.String())
}
