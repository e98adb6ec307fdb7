package routingtable

import (
	"context"
	"testing"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

// TestInMemoryRoutingTable_SnapshotRestore tests copying one table into another through
// GetAllSubscriptions and Rebuild
func TestInMemoryRoutingTable_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	src := NewInMemoryRoutingTable()
	defer src.Close()

	local1 := routingtable.NewDirectSubscriber("client-1")
	local2 := routingtable.NewDirectSubscriber("client-2")
	group1 := routingtable.NewGroupSubscriber("grp-audit", "grp")

	for _, s := range []routingtable.Subscription{
		subscription("orders/+/created", local1),
		subscription("orders/#", local1),
		subscription("orders/+/created", local2),
		subscription("inventory/#", group1),
	} {
		if err := src.Subscribe(ctx, s); err != nil {
			t.Fatalf("Subscribe %s failed: %v", s.Filter(), err)
		}
	}

	snapshot, err := src.GetAllSubscriptions(ctx)
	if err != nil {
		t.Fatalf("GetAllSubscriptions failed: %v", err)
	}
	if len(snapshot) != 4 {
		t.Fatalf("Expected 4 subscriptions, got %d", len(snapshot))
	}

	filterCounts := make(map[string]int)
	for _, sub := range snapshot {
		filterCounts[sub.Filter()]++
	}
	if filterCounts["orders/+/created"] != 2 {
		t.Errorf("Expected 2 subscribers for orders/+/created, got %d", filterCounts["orders/+/created"])
	}

	dst := NewInMemoryRoutingTable()
	defer dst.Close()
	for _, name := range []string{"orders/eu/created", "orders/eu/shipped", "inventory/widgets"} {
		if err := dst.OnCreate(ctx, routingtable.NamedDestination(name)); err != nil {
			t.Fatalf("OnCreate %s failed: %v", name, err)
		}
	}
	if err := dst.Rebuild(ctx, snapshot); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	filters, err := dst.GetFilterCount(ctx)
	if err != nil {
		t.Fatalf("GetFilterCount failed: %v", err)
	}
	if filters != 3 {
		t.Errorf("Expected 3 filters after restore, got %d", filters)
	}
	count, err := dst.GetSubscriberCount(ctx)
	if err != nil {
		t.Fatalf("GetSubscriberCount failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 subscriptions after restore, got %d", count)
	}

	// Destination sets are rebuilt against the target's destinations
	tests := []struct {
		filter     string
		subscriber string
		want       []string
	}{
		{"orders/+/created", "client-2", []string{"orders/eu/created"}},
		{"orders/#", "client-1", []string{"orders/eu/created", "orders/eu/shipped"}},
		{"inventory/#", "grp-audit", []string{"inventory/widgets"}},
	}
	for _, tt := range tests {
		set, err := dst.GetDestinationSet(ctx, tt.filter, tt.subscriber)
		if err != nil {
			t.Fatalf("GetDestinationSet(%s, %s) failed: %v", tt.filter, tt.subscriber, err)
		}
		if set.Size() != len(tt.want) {
			t.Errorf("%s: expected %d destinations, got %d", tt.filter, len(tt.want), set.Size())
		}
		for _, name := range tt.want {
			if !set.Contains(name) {
				t.Errorf("%s: expected destination %s", tt.filter, name)
			}
		}
	}
}

// TestInMemoryRoutingTable_DestinationLifecycleWithCounts tests that subscriber and destination
// counts move independently
func TestInMemoryRoutingTable_DestinationLifecycleWithCounts(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	if err := rt.Subscribe(ctx, subscription("sensor/#", routingtable.NewDirectSubscriber("client-1"))); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for _, name := range []string{"sensor/a/temp", "sensor/b/temp", "metrics/cpu"} {
		if err := rt.OnCreate(ctx, routingtable.NamedDestination(name)); err != nil {
			t.Fatalf("OnCreate %s failed: %v", name, err)
		}
	}

	set, err := rt.GetDestinationSet(ctx, "sensor/#", "client-1")
	if err != nil {
		t.Fatalf("GetDestinationSet failed: %v", err)
	}
	if set.Size() != 2 {
		t.Fatalf("Expected 2 matching destinations, got %d", set.Size())
	}

	if err := rt.OnDelete(ctx, "sensor/a/temp"); err != nil {
		t.Fatalf("OnDelete failed: %v", err)
	}
	// Deleting an unknown destination is harmless
	if err := rt.OnDelete(ctx, "sensor/zz/temp"); err != nil {
		t.Fatalf("OnDelete of unknown destination failed: %v", err)
	}
	if set.Contains("sensor/a/temp") || set.Size() != 1 {
		t.Errorf("Expected only sensor/b/temp to remain, got %d destinations", set.Size())
	}

	destinations, err := rt.GetDestinationCount(ctx)
	if err != nil {
		t.Fatalf("GetDestinationCount failed: %v", err)
	}
	if destinations != 2 {
		t.Errorf("Expected 2 known destinations, got %d", destinations)
	}
	subscribers, err := rt.GetSubscriberCount(ctx)
	if err != nil {
		t.Fatalf("GetSubscriberCount failed: %v", err)
	}
	if subscribers != 1 {
		t.Errorf("Expected 1 subscription, got %d", subscribers)
	}
}

func TestInMemoryRoutingTable_InterfaceCompliance(t *testing.T) {
	var _ routingtable.RoutingTable = (*InMemoryRoutingTable)(nil)
}
