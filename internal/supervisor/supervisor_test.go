package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
)

type fakeDriver struct {
	mu sync.Mutex

	queues       []domain.QueueDescriptor
	enumerateErr error
	failuresLeft int
	testErr      error

	journalCounts map[string]int64
	journalErrs   map[string]error

	enumerateCalls int
}

func (d *fakeDriver) EnumerateQueues(_ context.Context, _ string, _ bool) ([]domain.QueueDescriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.enumerateCalls++

	if d.failuresLeft > 0 {
		d.failuresLeft--
		return nil, errors.New("endpoint unreachable")
	}
	if d.enumerateErr != nil {
		return nil, d.enumerateErr
	}

	queues := make([]domain.QueueDescriptor, len(d.queues))
	copy(queues, d.queues)

	return queues, nil
}

func (d *fakeDriver) CountMessages(_ context.Context, queuePath string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.journalErrs[queuePath]; ok {
		return 0, err
	}

	return d.journalCounts[queuePath], nil
}

func (d *fakeDriver) TestConnection(_ context.Context, _ string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.testErr
}

func (d *fakeDriver) PeekOrReceive(context.Context, string, int, bool) ([]domain.MessageRecord, error) {
	return nil, nil
}

func (d *fakeDriver) GetByID(context.Context, string, string) (*domain.MessageRecord, error) {
	return nil, domain.ErrMessageNotFound
}

func (d *fakeDriver) GetByLookupID(context.Context, string, string) (*domain.MessageRecord, error) {
	return nil, domain.ErrMessageNotFound
}

func (d *fakeDriver) Send(context.Context, string, domain.MessageRecord) error { return nil }

func (d *fakeDriver) Delete(context.Context, string, string) error { return nil }

func (d *fakeDriver) Purge(context.Context, string) (int64, error) { return 0, nil }

func (d *fakeDriver) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.enumerateCalls
}

func (d *fakeDriver) setEnumerateErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.enumerateErr = err
}

func (d *fakeDriver) setQueues(queues []domain.QueueDescriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.queues = queues
}

type fixedBackoff struct{ delay time.Duration }

func (b fixedBackoff) Backoff(int) time.Duration { return b.delay }

type memoryStore struct {
	mu    sync.Mutex
	saved []domain.SavedConnection
}

func (s *memoryStore) SaveConnections(_ context.Context, connections []domain.SavedConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = append([]domain.SavedConnection(nil), connections...)

	return nil
}

func (s *memoryStore) LoadConnections(context.Context) ([]domain.SavedConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.SavedConnection(nil), s.saved...), nil
}

func (s *memoryStore) ClearSavedConnections(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = nil

	return nil
}

func testConfig() config.SupervisorConfig {
	return config.SupervisorConfig{
		DefaultRefreshInterval: 5 * time.Second,
		ConnectTimeout:         2 * time.Second,
		AutoReconnect:          false,
		EventBufferSize:        64,
	}
}

func newTestSupervisor(cfg config.SupervisorConfig, driver *fakeDriver, opts ...supervisorOption) *Supervisor {
	return New(cfg, driver, infrastructure.NopLogger(), opts...)
}

func twoQueues() []domain.QueueDescriptor {
	return []domain.QueueDescriptor{
		{Path: "host\\private$\\orders", DisplayName: "orders", MessageCount: 3},
		{Path: "host\\private$\\billing", DisplayName: "billing", MessageCount: 1},
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	first, err := s.Connect(context.Background(), "host-a", "Host A")
	require.NoError(t, err)
	require.Equal(t, domain.StateConnected, first.State)

	second, err := s.Connect(context.Background(), "host-a", "different name")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.Connections(), 1)
}

func TestConnectFailureSchedulesNothingWhenReconnectDisabled(t *testing.T) {
	driver := &fakeDriver{enumerateErr: errors.New("boom")}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "TRANSIENT_CONNECTIVITY", domainErr.Code)

	assert.Equal(t, domain.StateFailed, conn.State)
	assert.NotEmpty(t, conn.LastError)
}

func TestConnectRejectsEmptyEndpoint(t *testing.T) {
	s := newTestSupervisor(testConfig(), &fakeDriver{})

	_, err := s.Connect(context.Background(), "   ", "")
	require.Error(t, err)
}

func TestRefreshReplacesCacheWholesale(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)
	require.Len(t, conn.Queues, 2)

	driver.setQueues([]domain.QueueDescriptor{
		{Path: "host\\private$\\orders", DisplayName: "orders", MessageCount: 9},
	})

	require.NoError(t, s.RefreshConnection(context.Background(), conn.ID, false))

	refreshed, err := s.Connection(conn.ID)
	require.NoError(t, err)
	require.Len(t, refreshed.Queues, 1)
	assert.EqualValues(t, 9, refreshed.Queues[0].MessageCount)
	assert.False(t, refreshed.LastRefreshedAt.IsZero())
}

func TestRefreshFailureKeepsPreviousCache(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)

	driver.setEnumerateErr(errors.New("enumeration blew up"))

	err = s.RefreshConnection(context.Background(), conn.ID, false)
	require.Error(t, err)

	after, err := s.Connection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, after.State)
	assert.Len(t, after.Queues, 2, "failed refresh must not clobber the cached queue list")
}

func TestRefreshCancellationLeavesStateIntact(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	driver.setEnumerateErr(context.Canceled)

	err = s.RefreshConnection(ctx, conn.ID, false)
	require.ErrorIs(t, err, context.Canceled)

	after, err := s.Connection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnected, after.State)
	assert.Len(t, after.Queues, 2)
}

func TestRefreshJournalFailureIsIsolated(t *testing.T) {
	queues := []domain.QueueDescriptor{
		{Path: "host\\private$\\orders", HasJournal: true},
		{Path: "host\\private$\\billing", HasJournal: true},
		{Path: "host\\private$\\audit", HasJournal: true},
	}
	driver := &fakeDriver{
		queues: queues,
		journalCounts: map[string]int64{
			"host\\private$\\orders;journal": 4,
			"host\\private$\\audit;journal":  7,
		},
		journalErrs: map[string]error{
			"host\\private$\\billing;journal": errors.New("access denied"),
		},
	}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)
	require.Equal(t, domain.StateConnected, conn.State)
	require.Len(t, conn.Queues, 3)

	assert.EqualValues(t, 4, conn.Queues[0].JournalCount)
	assert.Contains(t, conn.Queues[1].LastError, "journal count unavailable")
	assert.EqualValues(t, 7, conn.Queues[2].JournalCount)
}

func TestDisconnectRemovesConnection(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)

	require.NoError(t, s.Disconnect(conn.ID))

	_, err = s.Connection(conn.ID)
	require.ErrorIs(t, err, domain.ErrConnectionNotFound)
	assert.Empty(t, s.Connections())
	assert.ErrorIs(t, s.Disconnect(conn.ID), domain.ErrConnectionNotFound)
}

func TestDisconnectEmitsDisconnectedState(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)
	drainEvents(s)

	require.NoError(t, s.Disconnect(conn.ID))

	events := drainEvents(s)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventStateChanged, last.Kind)
	assert.Equal(t, domain.StateDisconnected, last.State)
	assert.Equal(t, domain.StateConnected, last.PrevState)
	assert.Equal(t, conn.ID, last.ConnectionID)
}

func TestConnectEmitsLifecycleEvents(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)

	kinds := drainEvents(s)
	require.GreaterOrEqual(t, len(kinds), 3)

	assert.Equal(t, domain.EventStateChanged, kinds[0].Kind)
	assert.Equal(t, domain.StateConnecting, kinds[0].State)

	var refreshed, connected bool
	for _, ev := range kinds {
		assert.Equal(t, conn.ID, ev.ConnectionID)
		if ev.Kind == domain.EventRefreshed {
			refreshed = true
			assert.Equal(t, 2, ev.QueueCount)
		}
		if ev.Kind == domain.EventStateChanged && ev.State == domain.StateConnected {
			connected = true
		}
	}
	assert.True(t, refreshed)
	assert.True(t, connected)
}

func TestHealthCheckFailureIncrementsRetryCounter(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)
	assert.Zero(t, conn.RetryCount)

	driver.mu.Lock()
	driver.testErr = errors.New("probe refused")
	driver.mu.Unlock()

	require.Error(t, s.TestConnectionHealth(context.Background(), conn.ID))
	require.Error(t, s.TestConnectionHealth(context.Background(), conn.ID))

	after, err := s.Connection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, after.State)
	assert.Equal(t, 2, after.RetryCount)
}

func TestAutoReconnectRecovers(t *testing.T) {
	cfg := testConfig()
	cfg.AutoReconnect = true

	driver := &fakeDriver{queues: twoQueues(), failuresLeft: 2}
	s := newTestSupervisor(cfg, driver, WithBackoffStrategy(fixedBackoff{delay: time.Millisecond}))

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.Error(t, err)
	require.Equal(t, domain.StateFailed, conn.State)

	require.Eventually(t, func() bool {
		current, err := s.Connection(conn.ID)
		return err == nil && current.State == domain.StateConnected
	}, 2*time.Second, 10*time.Millisecond, "reconnect attempts should eventually succeed")

	recovered, err := s.Connection(conn.ID)
	require.NoError(t, err)
	assert.Zero(t, recovered.RetryCount, "retry counter resets on successful refresh")
	assert.Len(t, recovered.Queues, 2)
}

func TestSuccessfulRefreshPromotesFailedConnection(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)

	driver.setEnumerateErr(errors.New("hiccup"))
	require.Error(t, s.RefreshConnection(context.Background(), conn.ID, false))

	driver.setEnumerateErr(nil)
	require.NoError(t, s.RefreshConnection(context.Background(), conn.ID, false))

	after, err := s.Connection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnected, after.State)
}

func TestSetRefreshIntervalClamps(t *testing.T) {
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver)

	conn, err := s.Connect(context.Background(), "host-a", "")
	require.NoError(t, err)

	require.NoError(t, s.SetRefreshInterval(conn.ID, 200*time.Millisecond))
	current, _ := s.Connection(conn.ID)
	assert.Equal(t, config.MinRefreshInterval, current.RefreshInterval)

	require.NoError(t, s.SetRefreshInterval(conn.ID, 5*time.Minute))
	current, _ = s.Connection(conn.ID)
	assert.Equal(t, config.MaxRefreshInterval, current.RefreshInterval)

	require.ErrorIs(t, s.SetRefreshInterval("missing", time.Second), domain.ErrConnectionNotFound)
}

func TestSchedulerPollsPerConnection(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultRefreshInterval = time.Second

	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(cfg, driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	_, err := s.Connect(ctx, "host-a", "")
	require.NoError(t, err)

	baseline := driver.calls()
	require.Eventually(t, func() bool {
		return driver.calls() > baseline
	}, 3*time.Second, 50*time.Millisecond, "scheduler should trigger periodic refreshes")
}

func TestPauseStopsScheduledRefreshes(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultRefreshInterval = time.Second

	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(cfg, driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	conn, err := s.Connect(ctx, "host-a", "")
	require.NoError(t, err)

	require.NoError(t, s.PauseAutoRefresh(conn.ID))
	baseline := driver.calls()

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, baseline, driver.calls(), "paused connection must not refresh")

	require.NoError(t, s.ResumeAutoRefresh(conn.ID))
	require.Eventually(t, func() bool {
		return driver.calls() > baseline
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSaveAndRestoreConnections(t *testing.T) {
	store := &memoryStore{}
	driver := &fakeDriver{queues: twoQueues()}
	s := newTestSupervisor(testConfig(), driver, WithConnectionStore(store))

	conn, err := s.Connect(context.Background(), "host-a", "Host A")
	require.NoError(t, err)
	require.NoError(t, s.SetRefreshInterval(conn.ID, 10*time.Second))

	require.NoError(t, s.SaveConnections(context.Background()))
	require.Len(t, store.saved, 1)
	assert.Equal(t, "host-a", store.saved[0].Endpoint)
	assert.Equal(t, 10*time.Second, store.saved[0].RefreshInterval)

	restored := newTestSupervisor(testConfig(), driver, WithConnectionStore(store))
	saved, err := restored.LoadConnections(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, saved, 1)

	connections := restored.Connections()
	require.Len(t, connections, 1)
	assert.Equal(t, "Host A", connections[0].DisplayName)
	assert.Equal(t, 10*time.Second, connections[0].RefreshInterval)
	assert.Equal(t, domain.StateConnected, connections[0].State)

	require.NoError(t, restored.ClearSavedConnections(context.Background()))
	cleared, err := restored.LoadConnections(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, cleared)
}

func drainEvents(s *Supervisor) []domain.SupervisorEvent {
	var events []domain.SupervisorEvent
	for {
		select {
		case ev := <-s.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}
