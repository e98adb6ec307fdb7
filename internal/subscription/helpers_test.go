package subscription

import (
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

type testConsumer struct {
	id string

	mu     sync.Mutex
	got    []Message
	refuse bool
}

func newConsumer(id string) *testConsumer {
	return &testConsumer{id: id}
}

func (c *testConsumer) ID() string { return c.id }

func (c *testConsumer) Deliver(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse {
		return false
	}
	c.got = append(c.got, msg)
	return true
}

func (c *testConsumer) setRefuse(refuse bool) {
	c.mu.Lock()
	c.refuse = refuse
	c.mu.Unlock()
}

func (c *testConsumer) ids() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.got))
	for i, m := range c.got {
		out[i] = m.ID
	}
	return out
}

func (c *testConsumer) last() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.got[len(c.got)-1]
}

func msg(id uint64) Message {
	return Message{
		ID:          id,
		Destination: "orders/created",
		Priority:    4,
		Properties:  selector.MapResolver{"id": int64(id)},
	}
}

func shared(share string) routingtable.SubscriptionContext {
	return routingtable.NewSubscriptionContext("$share/" + share + "/orders/+").WithQoS(routingtable.AtLeastOnce)
}
