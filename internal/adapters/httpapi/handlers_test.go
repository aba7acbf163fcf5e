package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-silliman/svc-queue-monitor/internal/adapters/export"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/memdriver"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/rendercache"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/service"
	"github.com/m-silliman/svc-queue-monitor/internal/supervisor"
)

const (
	testEndpoint = "host-a"
	ordersQueue  = `host-a\private$\orders`
	retriesQueue = `host-a\private$\retries`
)

type apiFixture struct {
	driver *memdriver.Driver
	sup    *supervisor.Supervisor
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	driver := memdriver.New()
	driver.AddQueue(testEndpoint, domain.QueueDescriptor{Path: ordersQueue, Category: domain.QueueCategoryPrivate})
	driver.AddQueue(testEndpoint, domain.QueueDescriptor{Path: retriesQueue, Category: domain.QueueCategoryPrivate})

	logger := infrastructure.NopLogger()

	sup := supervisor.New(config.SupervisorConfig{
		DefaultRefreshInterval: config.MinRefreshInterval,
		ConnectTimeout:         config.MinRefreshInterval,
		EventBufferSize:        16,
	}, driver, logger)
	t.Cleanup(sup.Stop)

	exporter := export.NewFileExporter(config.ExportConfig{
		Directory:    t.TempDir(),
		MaxBatchSize: 1000,
	}, logger)

	ops := service.NewOperationsService(
		driver,
		exporter,
		rendercache.NewMemoryCache(),
		config.CodecConfig{MaxRenderSize: 1 << 20, PageSize: 10, CacheRenders: true},
		logger,
		nil,
	)

	cfg := &config.ServiceConfig{}
	cfg.AppConfig.ServiceName = "svc-queue-monitor"
	cfg.AppConfig.APIVersion = "v1"
	cfg.HTTPServer.WriteTimeout = config.MaxRefreshInterval

	handler := NewRequestHandler(sup, ops, cfg.AppConfig, logger)

	router, err := NewRouter(handler, cfg, logger, infrastructure.NewPrometheusMetrics())
	require.NoError(t, err)

	return &apiFixture{driver: driver, sup: sup, router: router}
}

func (f *apiFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	return recorder
}

func (f *apiFixture) connect(t *testing.T) domain.EndpointConnection {
	t.Helper()

	recorder := f.do(t, http.MethodPost, "/v1/connections", map[string]string{
		"endpoint":     testEndpoint,
		"display_name": "Host A",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var conn domain.EndpointConnection
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &conn))

	return conn
}

func (f *apiFixture) seed(t *testing.T, queuePath string, bodies ...string) []domain.MessageRecord {
	t.Helper()

	for _, body := range bodies {
		require.NoError(t, f.driver.Send(context.Background(), queuePath, domain.MessageRecord{
			Payload: domain.NewPayload([]byte(body)),
		}))
	}

	records, err := f.driver.PeekOrReceive(context.Background(), queuePath, 0, true)
	require.NoError(t, err)

	return records
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	recorder := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "v1", recorder.Header().Get("API-Version"))
	assert.Contains(t, recorder.Body.String(), "svc-queue-monitor")
}

func TestConnectionLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	conn := f.connect(t)
	assert.Equal(t, domain.StateConnected, conn.State)
	assert.Equal(t, "Host A", conn.DisplayName)

	recorder := f.do(t, http.MethodGet, "/v1/connections/"+conn.ID, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = f.do(t, http.MethodGet, "/v1/connections/"+conn.ID+"/queues", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var queues []domain.QueueDescriptor
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &queues))
	assert.Len(t, queues, 2)

	recorder = f.do(t, http.MethodDelete, "/v1/connections/"+conn.ID, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = f.do(t, http.MethodGet, "/v1/connections/"+conn.ID, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestConnectRejectsEmptyEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	recorder := f.do(t, http.MethodPost, "/v1/connections", map[string]string{"endpoint": ""})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUnknownConnectionReturnsNotFound(t *testing.T) {
	f := newAPIFixture(t)

	recorder := f.do(t, http.MethodPost, "/v1/connections/missing/refresh", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestSetRefreshIntervalClampsThroughAPI(t *testing.T) {
	f := newAPIFixture(t)
	conn := f.connect(t)

	recorder := f.do(t, http.MethodPut, "/v1/connections/"+conn.ID+"/refresh-interval", map[string]string{
		"interval": "100ms",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var updated domain.EndpointConnection
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &updated))
	assert.Equal(t, config.MinRefreshInterval, updated.RefreshInterval)
}

func TestListAndInspectMessages(t *testing.T) {
	f := newAPIFixture(t)
	f.connect(t)
	records := f.seed(t, ordersQueue, `{"order":42}`)

	recorder := f.do(t, http.MethodGet, "/v1/messages?queue="+ordersQueue, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var messages []domain.MessageRecord
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, domain.FormatJSON, messages[0].Payload.Format)

	recorder = f.do(t, http.MethodGet, "/v1/messages/"+records[0].LookupID+"?queue="+ordersQueue, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "order")
}

func TestListMessagesRequiresQueueParameter(t *testing.T) {
	f := newAPIFixture(t)

	recorder := f.do(t, http.MethodGet, "/v1/messages", nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMoveMessage(t *testing.T) {
	f := newAPIFixture(t)
	f.connect(t)
	records := f.seed(t, ordersQueue, `{"order":1}`)

	recorder := f.do(t, http.MethodPost, "/v1/messages/move", map[string]string{
		"source_path": ordersQueue,
		"target_path": retriesQueue,
		"message_id":  records[0].ID,
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), string(domain.MovedCleanly))

	count, err := f.driver.CountMessages(context.Background(), retriesQueue)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDeleteMessageRequiresConfirmation(t *testing.T) {
	f := newAPIFixture(t)
	f.connect(t)
	records := f.seed(t, ordersQueue, `{"order":1}`)

	recorder := f.do(t, http.MethodDelete, "/v1/messages/"+records[0].ID+"?queue="+ordersQueue, nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "CONFIRMATION_REQUIRED")

	recorder = f.do(t, http.MethodDelete, "/v1/messages/"+records[0].ID+"?queue="+ordersQueue+"&confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestBulkDeleteReportsPerMessageOutcome(t *testing.T) {
	f := newAPIFixture(t)
	f.connect(t)
	records := f.seed(t, ordersQueue, `{"a":1}`, `{"b":2}`)

	recorder := f.do(t, http.MethodPost, "/v1/messages/bulk-delete", map[string]any{
		"queue_path":  ordersQueue,
		"message_ids": []string{records[0].ID, "missing"},
		"confirm":     true,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result domain.BulkResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestPurgePreviewAndPurge(t *testing.T) {
	f := newAPIFixture(t)
	f.connect(t)
	f.seed(t, ordersQueue, `{"a":1}`, `{"b":2}`, `{"c":3}`)

	recorder := f.do(t, http.MethodGet, "/v1/purge/preview?queue="+ordersQueue, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "3")

	recorder = f.do(t, http.MethodPost, "/v1/purge", map[string]any{
		"queue_path": ordersQueue,
	})
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder = f.do(t, http.MethodPost, "/v1/purge", map[string]any{
		"queue_path": ordersQueue,
		"confirm":    true,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	count, err := f.driver.CountMessages(context.Background(), ordersQueue)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExportMessages(t *testing.T) {
	f := newAPIFixture(t)
	f.connect(t)
	f.seed(t, ordersQueue, `{"a":1}`)

	recorder := f.do(t, http.MethodPost, "/v1/messages/export", map[string]any{
		"queue_path": ordersQueue,
		"format":     "json",
	})

	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Contains(t, recorder.Body.String(), ".json")
}
