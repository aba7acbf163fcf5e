package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-silliman/svc-queue-monitor/internal/adapters/export"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/memdriver"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/rendercache"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

const (
	sourcePath = `host-a\private$\orders`
	targetPath = `host-a\private$\retries`
)

type fixture struct {
	driver *memdriver.Driver
	ops    OperationsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	driver := memdriver.New()
	driver.AddQueue("host-a", domain.QueueDescriptor{Path: sourcePath, Category: domain.QueueCategoryPrivate})
	driver.AddQueue("host-a", domain.QueueDescriptor{Path: targetPath, Category: domain.QueueCategoryPrivate})

	exporter := export.NewFileExporter(config.ExportConfig{
		Directory:    t.TempDir(),
		MaxBatchSize: 1000,
	}, infrastructure.NopLogger())

	ops := NewOperationsService(
		driver,
		exporter,
		rendercache.NewMemoryCache(),
		config.CodecConfig{MaxRenderSize: 1 << 20, PageSize: 10, CacheRenders: true},
		infrastructure.NopLogger(),
		nil,
	)

	return &fixture{driver: driver, ops: ops}
}

func (f *fixture) seed(t *testing.T, queuePath string, bodies ...string) []domain.MessageRecord {
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

func TestListMessagesPagesAndClassifies(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sourcePath, `{"n":1}`, `{"n":2}`, `{"n":3}`)

	page, err := f.ops.ListMessages(context.Background(), sourcePath, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, domain.FormatJSON, page[0].Payload.Format)

	second, err := f.ops.ListMessages(context.Background(), sourcePath, 2, 2)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	empty, err := f.ops.ListMessages(context.Background(), sourcePath, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInspectMessageRendersAndCaches(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, `{"a":1}`)

	rendering, err := f.ops.InspectMessage(context.Background(), sourcePath, records[0].LookupID)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJSON, rendering.Format)
	assert.Equal(t, "{\n  \"a\": 1\n}", rendering.Content)

	// Second inspection hits the cache; mutate the queue to prove it.
	require.NoError(t, f.driver.Delete(context.Background(), sourcePath, records[0].ID))

	cached, err := f.ops.InspectMessage(context.Background(), sourcePath, records[0].LookupID)
	require.NoError(t, err)
	assert.Equal(t, rendering.Content, cached.Content)
}

// A confirmed delete must drop the cached rendering; otherwise a removed
// message keeps being served from the cache indefinitely.
func TestDeleteMessageInvalidatesCachedRendering(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, `{"a":1}`)

	_, err := f.ops.InspectMessage(context.Background(), sourcePath, records[0].LookupID)
	require.NoError(t, err)

	require.NoError(t, f.ops.DeleteMessage(context.Background(), sourcePath, records[0].ID, true))

	_, err = f.ops.InspectMessage(context.Background(), sourcePath, records[0].LookupID)
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestBulkDeleteInvalidatesCachedRenderings(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, `{"a":1}`, `{"b":2}`)

	for _, record := range records {
		_, err := f.ops.InspectMessage(context.Background(), sourcePath, record.LookupID)
		require.NoError(t, err)
	}

	result, err := f.ops.DeleteMessages(context.Background(), sourcePath,
		[]string{records[0].ID, records[1].ID}, true)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)

	for _, record := range records {
		_, err := f.ops.InspectMessage(context.Background(), sourcePath, record.LookupID)
		require.ErrorIs(t, err, domain.ErrMessageNotFound)
	}
}

func TestInspectMissingMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.ops.InspectMessage(context.Background(), sourcePath, "nope")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestMoveMessageCleanly(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, "payload")

	result, err := f.ops.MoveMessage(context.Background(), sourcePath, targetPath, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovedCleanly, result.Outcome)

	sourceCount, _ := f.driver.CountMessages(context.Background(), sourcePath)
	targetCount, _ := f.driver.CountMessages(context.Background(), targetPath)
	assert.Zero(t, sourceCount)
	assert.EqualValues(t, 1, targetCount)
}

func TestMoveMessageMissingSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.ops.MoveMessage(context.Background(), sourcePath, targetPath, "ghost")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestMoveMessageCopyFailure(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, "payload")

	result, err := f.ops.MoveMessage(context.Background(), sourcePath, `host-a\private$\missing`, records[0].ID)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.MoveFailed, result.Outcome)

	// Source untouched on copy failure.
	count, _ := f.driver.CountMessages(context.Background(), sourcePath)
	assert.EqualValues(t, 1, count)
}

func TestResendMessageKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, "payload")

	require.NoError(t, f.ops.ResendMessage(context.Background(), sourcePath, records[0].ID, targetPath))

	sourceCount, _ := f.driver.CountMessages(context.Background(), sourcePath)
	targetCount, _ := f.driver.CountMessages(context.Background(), targetPath)
	assert.EqualValues(t, 1, sourceCount)
	assert.EqualValues(t, 1, targetCount)

	copies, err := f.driver.PeekOrReceive(context.Background(), targetPath, 0, true)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.NotEqual(t, records[0].ID, copies[0].ID, "resend mints a new message identity")
	assert.Equal(t, "payload", string(copies[0].Payload.Raw))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, "payload")

	err := f.ops.DeleteMessage(context.Background(), sourcePath, records[0].ID, false)
	require.ErrorIs(t, err, domain.ErrConfirmationRequired)

	_, err = f.ops.DeleteMessages(context.Background(), sourcePath, []string{records[0].ID}, false)
	require.ErrorIs(t, err, domain.ErrConfirmationRequired)

	_, err = f.ops.Purge(context.Background(), sourcePath, false)
	require.ErrorIs(t, err, domain.ErrConfirmationRequired)

	count, _ := f.driver.CountMessages(context.Background(), sourcePath)
	assert.EqualValues(t, 1, count)
}

func TestBulkDeleteReportsPerItemOutcomes(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, "one", "two")

	result, err := f.ops.DeleteMessages(context.Background(), sourcePath,
		[]string{records[0].ID, "ghost", records[1].ID}, true)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 3)
	assert.True(t, result.Items[0].Success)
	assert.False(t, result.Items[1].Success)
	assert.Contains(t, result.Items[1].Error, "message not found")
}

func TestPurgePreviewAndPurge(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sourcePath, "a", "b", "c")

	preview, err := f.ops.PurgePreview(context.Background(), sourcePath)
	require.NoError(t, err)
	assert.EqualValues(t, 3, preview.MessageCount)

	result, err := f.ops.Purge(context.Background(), sourcePath, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Purged)

	count, _ := f.driver.CountMessages(context.Background(), sourcePath)
	assert.Zero(t, count)
}

func TestExportSelectedMessages(t *testing.T) {
	f := newFixture(t)
	records := f.seed(t, sourcePath, `{"a":1}`, `{"b":2}`)

	result, err := f.ops.ExportMessages(context.Background(), sourcePath,
		[]string{records[0].ID}, ports.ExportJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Exported)
	assert.Equal(t, "json", result.Format)
}

func TestExportWholeQueue(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sourcePath, "a", "b", "c")

	result, err := f.ops.ExportMessages(context.Background(), sourcePath, nil, ports.ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Exported)
}

func TestExportMissingMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.ops.ExportMessages(context.Background(), sourcePath, []string{"ghost"}, ports.ExportJSON)
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}
