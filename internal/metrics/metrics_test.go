package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	// None of these may panic
	m.MessagePublished(0.1)
	m.MessageDelivered("direct")
	m.SelectorRejection()
	m.SelectorParseError()
	m.NoCredit()
	m.Redelivery(3)
	m.Eviction(1)
	m.DestinationCount(4)
	m.SubscriptionDelta(1)
	m.GroupCreated()
	m.GroupRemoved()
	m.MemberJoined()
	m.MemberLeft()
	m.NamespaceReloaded(2, 1)
	m.BridgeForwarded("grpc")
	m.BridgeFailed("grpc")
	m.BridgeSkip("depth")

	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Record(t *testing.T) {
	m := New("")

	m.MessagePublished(0.001)
	m.MessagePublished(0.002)
	m.MessageDelivered("shared")
	m.Redelivery(2)
	m.Redelivery(0)
	m.NamespaceReloaded(5, 2)
	m.BridgeForwarded("nats")
	m.BridgeSkip("selector")
	m.GroupCreated()
	m.GroupCreated()
	m.GroupRemoved()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Published))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Delivered.WithLabelValues("shared")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Redelivered))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.NamespaceEntries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NamespaceDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeForwards.WithLabelValues("nats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeSkipped.WithLabelValues("selector")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SharedGroups))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("test")
	m.MessagePublished(0.01)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_messages_published_total 1")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New("a")
	b := New("b")
	a.MessagePublished(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Published))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Published))
}
