package routingtable

import (
	"context"
	"testing"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

// TestInMemoryRoutingTable_OverlappingFilters tests that a topic reaches every overlapping filter once
func TestInMemoryRoutingTable_OverlappingFilters(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	filters := map[string]string{
		"orders/created": "exact-client",
		"orders/+":       "level-client",
		"orders/#":       "tail-client",
		"#":              "all-client",
		"inventory/+":    "other-client",
	}
	for filter, id := range filters {
		if err := rt.Subscribe(ctx, subscription(filter, routingtable.NewDirectSubscriber(id))); err != nil {
			t.Fatalf("Subscribe to %s failed: %v", filter, err)
		}
	}

	subscribers, err := rt.GetSubscribers(ctx, "orders/created")
	if err != nil {
		t.Fatalf("GetSubscribers failed: %v", err)
	}
	got := make(map[string]int)
	for _, sub := range subscribers {
		got[sub.ID()]++
	}
	for _, id := range []string{"exact-client", "level-client", "tail-client", "all-client"} {
		if got[id] != 1 {
			t.Errorf("Expected %s exactly once, got %d", id, got[id])
		}
	}
	if got["other-client"] != 0 {
		t.Error("inventory/+ must not match orders/created")
	}

	// System topics are only reachable from filters that name them
	subscribers, err = rt.GetSubscribers(ctx, "$SYS/orders/created")
	if err != nil {
		t.Fatalf("GetSubscribers failed: %v", err)
	}
	if len(subscribers) != 0 {
		t.Errorf("Expected no subscribers for a $ topic, got %d", len(subscribers))
	}
}

// TestInMemoryRoutingTable_ComplexWildcardPatterns tests various wildcard patterns
func TestInMemoryRoutingTable_ComplexWildcardPatterns(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	subscriber := routingtable.NewDirectSubscriber("client-1")

	testCases := []struct {
		pattern        string
		shouldMatch    []string
		shouldNotMatch []string
	}{
		{
			pattern:        "+/created",
			shouldMatch:    []string{"orders/created", "user/created", "inventory/created"},
			shouldNotMatch: []string{"orders/updated", "created", "$SYS/created"},
		},
		{
			pattern:        "orders/+/event",
			shouldMatch:    []string{"orders/payment/event", "orders/shipping/event"},
			shouldNotMatch: []string{"orders/created", "inventory/payment/event", "orders/payment/other"},
		},
		{
			pattern:        "+",
			shouldMatch:    []string{"orders", "users", "inventory"},
			shouldNotMatch: []string{"orders/created", "users/updated"},
		},
		{
			pattern:        "orders/#",
			shouldMatch:    []string{"orders/created", "orders/eu/created", "orders/eu/west/created"},
			shouldNotMatch: []string{"inventory/created", "$SYS/orders/created"},
		},
	}

	for _, tc := range testCases {
		// Subscribe to the pattern
		err := rt.Subscribe(ctx, subscription(tc.pattern, subscriber))
		if err != nil {
			t.Fatalf("Subscribe to pattern '%s' failed: %v", tc.pattern, err)
		}

		// Test topics that should match
		for _, topic := range tc.shouldMatch {
			subscribers, err := rt.GetSubscribers(ctx, topic)
			if err != nil {
				t.Fatalf("GetSubscribers for '%s' failed: %v", topic, err)
			}
			if len(subscribers) == 0 {
				t.Errorf("Pattern '%s' should match topic '%s' but found no subscribers", tc.pattern, topic)
			}
		}

		// Test topics that should NOT match
		for _, topic := range tc.shouldNotMatch {
			subscribers, err := rt.GetSubscribers(ctx, topic)
			if err != nil {
				t.Fatalf("GetSubscribers for '%s' failed: %v", topic, err)
			}
			if len(subscribers) > 0 {
				t.Errorf("Pattern '%s' should NOT match topic '%s' but found %d subscribers", tc.pattern, topic, len(subscribers))
			}
		}

		// Clean up for next test case
		err = rt.Unsubscribe(ctx, tc.pattern, subscriber.ID())
		if err != nil {
			t.Fatalf("Unsubscribe from pattern '%s' failed: %v", tc.pattern, err)
		}
	}
}
