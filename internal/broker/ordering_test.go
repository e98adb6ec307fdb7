package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshbroker/pkg/broker"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

func requireAscending(t *testing.T, ids []uint64) {
	t.Helper()
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i], "out of order delivery at %d", i)
	}
}

func TestBroker_ConcurrentPublishersDeliverInLogOrder(t *testing.T) {
	b := newTestBroker(t, nil)
	ctx := context.Background()

	const publishers, perPublisher = 8, 200
	direct := NewRecordingConsumer("direct", publishers*perPublisher)
	_, err := b.Subscribe(ctx, direct, routingtable.NewSubscriptionContext("orders/x"))
	require.NoError(t, err)
	member := NewRecordingConsumer("member", publishers*perPublisher)
	_, err = b.Subscribe(ctx, member, routingtable.NewSubscriptionContext("$share/grp/orders/+"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perPublisher {
				_, err := b.Publish(ctx, "orders/x", record(nil))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for _, c := range []*ChannelConsumer{direct, member} {
		ids := c.ReceivedIDs()
		require.Len(t, ids, publishers*perPublisher, c.ID())
		requireAscending(t, ids)
	}

	records, err := b.GetEventLog().Read(ctx, "orders/x", 0, publishers*perPublisher)
	require.NoError(t, err)
	for i, rec := range records {
		assert.Equal(t, rec.ID(), direct.ReceivedIDs()[i], "delivery %d follows the log", i)
	}
}

func TestBroker_SubscriptionChurnDuringPublish(t *testing.T) {
	b := newTestBroker(t, nil)
	ctx := context.Background()

	steady := NewRecordingConsumer("steady", 1000)
	_, err := b.Subscribe(ctx, steady, routingtable.NewSubscriptionContext("churn/+"))
	require.NoError(t, err)

	stop := make(chan struct{})
	var published atomic.Int64
	var wg sync.WaitGroup
	for w := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, err := b.Publish(ctx, fmt.Sprintf("churn/%d", w), record(nil))
				assert.NoError(t, err)
				published.Add(1)
			}
		}()
	}

	churned := make(chan struct{})
	go func() {
		defer close(churned)
		for i := range 50 {
			filter := "churn/+"
			if i%2 == 1 {
				filter = "$share/churners/churn/+"
			}
			h, err := b.Subscribe(ctx, NewChannelConsumer(fmt.Sprintf("c%d", i), 4), routingtable.NewSubscriptionContext(filter))
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, b.Unsubscribe(ctx, h))
		}
		_, err := b.RemoveShare(ctx, "churners")
		assert.NoError(t, err)
	}()

	select {
	case <-churned:
	case <-time.After(10 * time.Second):
		t.Fatal("subscription changes stalled behind publishing")
	}
	close(stop)
	wg.Wait()

	health, err := b.GetHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, health.Subscriptions)
	assert.Positive(t, published.Load())
	requireAscending(t, steady.ReceivedIDs())
}

// ackingConsumer acknowledges every delivery through the broker from
// inside Deliver.
type ackingConsumer struct {
	*ChannelConsumer
	b      *Broker
	handle atomic.Pointer[broker.Handle]
}

func (c *ackingConsumer) Deliver(d broker.Delivery) bool {
	if !c.ChannelConsumer.Deliver(d) {
		return false
	}
	return c.b.Ack(context.Background(), c.handle.Load(), d.ID) == nil
}

func TestBroker_AckInsideDeliver(t *testing.T) {
	b := newTestBroker(t, nil)
	ctx := context.Background()

	c := &ackingConsumer{ChannelConsumer: NewRecordingConsumer("acker", 100), b: b}
	sctx := routingtable.NewSubscriptionContext("jobs/+").
		WithQoS(routingtable.AtLeastOnce).
		WithReceiveMaximum(1)
	h, err := b.Subscribe(ctx, c, sctx)
	require.NoError(t, err)
	c.handle.Store(h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			_, err := b.Publish(ctx, "jobs/a", record(nil))
			assert.NoError(t, err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked while the consumer acked inside Deliver")
	}

	assert.Len(t, c.ReceivedIDs(), 10)
	st, err := b.Stats(h)
	require.NoError(t, err)
	assert.Zero(t, st.InFlight)
	assert.Zero(t, st.CreditOutstanding)
}

func TestBroker_BrowserSubscribeDuringPublish(t *testing.T) {
	b := newTestBroker(t, nil)
	ctx := context.Background()

	for range 20 {
		_, err := b.Publish(ctx, "audit/a", record(nil))
		require.NoError(t, err)
	}

	const live = 300
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range live {
			_, err := b.Publish(ctx, "audit/a", record(nil))
			assert.NoError(t, err)
		}
	}()

	c := NewRecordingConsumer("browser", 1000)
	_, err := b.Subscribe(ctx, c, routingtable.NewSubscriptionContext("audit/#").AsBrowser())
	require.NoError(t, err)
	wg.Wait()

	ids := c.ReceivedIDs()
	require.Len(t, ids, 20+live, "every message is either replayed or routed live, once")
	requireAscending(t, ids)
}
