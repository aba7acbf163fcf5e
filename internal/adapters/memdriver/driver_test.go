package memdriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()

	d := New()
	d.AddQueue("host-a", domain.QueueDescriptor{
		Path:       `host-a\private$\orders`,
		Category:   domain.QueueCategoryPrivate,
		HasJournal: true,
	})
	d.AddQueue("host-a", domain.QueueDescriptor{
		Path:     `host-a\private$\billing`,
		Category: domain.QueueCategoryPrivate,
	})
	d.AddQueue("host-a", domain.QueueDescriptor{
		Path:     `host-a\system$\deadletter`,
		Category: domain.QueueCategoryDeadLetter,
	})

	return d
}

func TestEnumerateQueuesFiltersSystem(t *testing.T) {
	d := newTestDriver(t)

	visible, err := d.EnumerateQueues(context.Background(), "host-a", false)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	all, err := d.EnumerateQueues(context.Background(), "host-a", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEnumerateUnknownEndpoint(t *testing.T) {
	d := newTestDriver(t)

	_, err := d.EnumerateQueues(context.Background(), "nope", true)
	require.ErrorIs(t, err, domain.ErrEndpointUnreachable)
}

func TestSendAssignsIdentifiers(t *testing.T) {
	d := newTestDriver(t)
	path := `host-a\private$\orders`

	require.NoError(t, d.Send(context.Background(), path, domain.MessageRecord{
		Payload: domain.NewPayload([]byte("first")),
	}))
	require.NoError(t, d.Send(context.Background(), path, domain.MessageRecord{
		Payload: domain.NewPayload([]byte("second")),
	}))

	messages, err := d.PeekOrReceive(context.Background(), path, 0, true)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.NotEmpty(t, messages[0].ID)
	assert.NotEmpty(t, messages[0].LookupID)
	assert.NotEqual(t, messages[0].LookupID, messages[1].LookupID)
	assert.True(t, messages[0].HasField(domain.FieldArrivedAt))
}

func TestReceiveHonorsPriorityOrder(t *testing.T) {
	d := newTestDriver(t)
	path := `host-a\private$\billing`

	for _, m := range []struct {
		body     string
		priority uint8
	}{
		{"low", 1},
		{"urgent", 7},
		{"mid", 3},
	} {
		require.NoError(t, d.Send(context.Background(), path, domain.MessageRecord{
			Priority: m.priority,
			Payload:  domain.NewPayload([]byte(m.body)),
		}))
	}

	received, err := d.PeekOrReceive(context.Background(), path, 2, false)
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.Equal(t, "urgent", string(received[0].Payload.Raw))
	assert.Equal(t, "mid", string(received[1].Payload.Raw))

	count, err := d.CountMessages(context.Background(), path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRemovalCopiesToJournal(t *testing.T) {
	d := newTestDriver(t)
	path := `host-a\private$\orders`

	require.NoError(t, d.Send(context.Background(), path, domain.MessageRecord{
		Payload: domain.NewPayload([]byte("journal me")),
	}))

	received, err := d.PeekOrReceive(context.Background(), path, 1, false)
	require.NoError(t, err)
	require.Len(t, received, 1)

	journalCount, err := d.CountMessages(context.Background(), path+";journal")
	require.NoError(t, err)
	assert.EqualValues(t, 1, journalCount)

	journaled, err := d.GetByID(context.Background(), path+";journal", received[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "journal me", string(journaled.Payload.Raw))
}

func TestJournalOfUnjournaledQueue(t *testing.T) {
	d := newTestDriver(t)

	_, err := d.CountMessages(context.Background(), `host-a\private$\billing;journal`)
	require.ErrorIs(t, err, domain.ErrQueueNotFound)
}

func TestDeleteFromJournalDoesNotRecurse(t *testing.T) {
	d := newTestDriver(t)
	path := `host-a\private$\orders`

	require.NoError(t, d.Send(context.Background(), path, domain.MessageRecord{
		Payload: domain.NewPayload([]byte("x")),
	}))
	received, err := d.PeekOrReceive(context.Background(), path, 1, false)
	require.NoError(t, err)

	require.NoError(t, d.Delete(context.Background(), path+";journal", received[0].ID))

	count, err := d.CountMessages(context.Background(), path+";journal")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPurgeReportsCount(t *testing.T) {
	d := newTestDriver(t)
	path := `host-a\private$\billing`

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Send(context.Background(), path, domain.MessageRecord{
			Payload: domain.NewPayload([]byte("m")),
		}))
	}

	purged, err := d.Purge(context.Background(), path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, purged)

	count, err := d.CountMessages(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetByLookupID(t *testing.T) {
	d := newTestDriver(t)
	path := `host-a\private$\billing`

	require.NoError(t, d.Send(context.Background(), path, domain.MessageRecord{
		Payload: domain.NewPayload([]byte("target")),
	}))

	all, err := d.PeekOrReceive(context.Background(), path, 0, true)
	require.NoError(t, err)
	require.Len(t, all, 1)

	found, err := d.GetByLookupID(context.Background(), path, all[0].LookupID)
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, found.ID)

	_, err = d.GetByLookupID(context.Background(), path, "999999")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestDownEndpointRefusesEverything(t *testing.T) {
	d := newTestDriver(t)
	d.SetEndpointDown("host-a", true)

	require.Error(t, d.TestConnection(context.Background(), "host-a", 0))
	_, err := d.EnumerateQueues(context.Background(), "host-a", true)
	require.Error(t, err)
	_, err = d.CountMessages(context.Background(), `host-a\private$\orders`)
	require.Error(t, err)
}
