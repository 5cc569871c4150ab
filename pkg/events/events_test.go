package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(New(EventChainCreated, "chain net1 created", map[string]string{"chain_id": "c1"}))

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventChainCreated, ev.Type)
			assert.Equal(t, "c1", ev.Metadata["chain_id"])
			assert.NotEmpty(t, ev.ID)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	b.Unsubscribe(sub1)
	b.Unsubscribe(sub1)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestSubscribeFiltersTypes(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	orphans := b.Subscribe(EventInstancesOrphaned)
	b.Publish(New(EventNodeCreated, "node created", nil))
	b.Publish(New(EventInstancesOrphaned, "instances orphaned", map[string]string{"instances": "vm-2"}))

	select {
	case ev := <-orphans:
		assert.Equal(t, EventInstancesOrphaned, ev.Type)
		assert.Equal(t, "vm-2", ev.Metadata["instances"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case ev := <-orphans:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishAfterStop(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(New(EventNodeCreated, "", nil))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stopped broker")
	}
}

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func (c *fakeConn) IsConnected() bool { return true }

func TestNATSForwarder(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	nc := &fakeConn{}
	f := newNATSForwarder(b, nc)
	require.NoError(t, f.Healthy())

	b.Publish(New(EventNodeDeleted, "node vm-2 deleted", map[string]string{"node_id": "vm-2"}))

	require.Eventually(t, func() bool {
		nc.mu.Lock()
		defer nc.mu.Unlock()
		return len(nc.subjects) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.Stop())
	assert.True(t, nc.drained)
	assert.Equal(t, "catena.events.node.deleted", nc.subjects[0])

	var ev Event
	require.NoError(t, json.Unmarshal(nc.payloads[0], &ev))
	assert.Equal(t, "vm-2", ev.Metadata["node_id"])
}
