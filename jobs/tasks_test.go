package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/stocksaas/stocksaas/internal/jobs"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

type ping struct {
	Note string `json:"note"`
}

func TestTenantScopedBindsTenant(t *testing.T) {
	tenantID := uuid.New()
	task, err := NewTenantTask(TaskEventPublish, tenantID, ping{Note: "hello"})
	require.NoError(t, err)

	var seenTenant uuid.UUID
	var seenBody ping
	var inner context.Context
	h := TenantScoped(asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		inner = ctx
		id, err := tenant.Get(ctx)
		if err != nil {
			return err
		}
		seenTenant = id
		return json.Unmarshal(t.Payload(), &seenBody)
	}), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Equal(t, tenantID, seenTenant)
	require.Equal(t, "hello", seenBody.Note)
	require.False(t, tenant.IsSet(inner), "binding ends with the task")
}

func TestTenantScopedRejectsTasksWithoutTenant(t *testing.T) {
	called := false
	h := TenantScoped(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		called = true
		return nil
	}), nil)

	raw, _ := json.Marshal(TenantPayload{Body: json.RawMessage(`{}`)})
	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskEventPublish, raw))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TaskEventPublish, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.False(t, called)

	_, err = NewTenantTask(TaskEventPublish, uuid.Nil, ping{})
	require.Error(t, err)
}

func TestTenantScopedPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	task, err := NewTenantTask(TaskEventPublish, uuid.New(), ping{})
	require.NoError(t, err)
	h := TenantScoped(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return boom }), nil)
	require.ErrorIs(t, h.ProcessTask(context.Background(), task), boom)
}

func TestServeMuxWrapsTenantScopedHandlers(t *testing.T) {
	var bound bool
	mux := NewServeMux([]TaskHandler{{
		Type:         TaskEventPublish,
		TenantScoped: true,
		Handler: asynq.HandlerFunc(func(ctx context.Context, _ *asynq.Task) error {
			bound = tenant.IsSet(ctx)
			return nil
		}),
	}}, nil)
	task, err := NewTenantTask(TaskEventPublish, uuid.New(), ping{})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.True(t, bound)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthHandler(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3}}, slog.Default()).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"pending":3`)

	r = chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("redis down")}, slog.Default()).MountRoutes(r)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
