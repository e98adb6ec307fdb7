package routingtable

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

func destinations(names ...string) []routingtable.Destination {
	out := make([]routingtable.Destination, len(names))
	for i, n := range names {
		out[i] = routingtable.NamedDestination(n)
	}
	return out
}

func TestDestinationSet_SeedsOnlyMatching(t *testing.T) {
	set := NewDestinationSet(
		routingtable.NewSubscriptionContext("sensor/+/temp"),
		destinations("sensor/room1/temp", "sensor/room1/humidity", "sensor/room2/temp", "$sys/temp"),
	)

	assert.Equal(t, 2, set.Size())
	assert.True(t, set.Contains("sensor/room1/temp"))
	assert.True(t, set.Contains("sensor/room2/temp"))
	assert.False(t, set.Contains("sensor/room1/humidity"))

	for _, d := range set.Destinations() {
		assert.True(t, Matches("sensor/+/temp", d.Name()), "%s should satisfy the filter", d.Name())
	}
}

func TestDestinationSet_AddRemove(t *testing.T) {
	set := NewDestinationSet(routingtable.NewSubscriptionContext("a/#"), nil)
	require.True(t, set.IsEmpty())

	assert.True(t, set.Add(routingtable.NamedDestination("a/b")))
	assert.False(t, set.Add(routingtable.NamedDestination("b/a")), "non-matching destination is rejected")
	assert.False(t, set.Add(nil))

	assert.True(t, set.AddAll(destinations("a/c", "x/y")))
	assert.False(t, set.AddAll(destinations("x/y", "z")))
	assert.Equal(t, 2, set.Size())

	d, ok := set.Get("a/c")
	require.True(t, ok)
	assert.Equal(t, "a/c", d.Name())

	assert.True(t, set.Remove("a/b"))
	assert.False(t, set.Remove("a/b"))
	assert.True(t, set.RemoveAll([]string{"a/c", "missing"}))
	assert.True(t, set.IsEmpty())
}

func TestDestinationSet_RemoveIfAndRange(t *testing.T) {
	set := NewDestinationSet(routingtable.NewSubscriptionContext("#"),
		destinations("a/tmp1", "a/keep", "b/tmp2"))

	removed := set.RemoveIf(func(d routingtable.Destination) bool {
		return strings.Contains(d.Name(), "tmp")
	})
	assert.Equal(t, 2, removed)

	var names []string
	set.Range(func(d routingtable.Destination) bool {
		names = append(names, d.Name())
		return true
	})
	assert.Equal(t, []string{"a/keep"}, names)

	set.Clear()
	assert.Equal(t, 0, set.Size())
}

func TestDestinationSet_ExactFilter(t *testing.T) {
	set := NewDestinationSet(routingtable.NewSubscriptionContext("a/b"), destinations("a/b", "a/b/c"))
	assert.Equal(t, 1, set.Size())
	assert.True(t, set.Interest("a/b"))
	assert.False(t, set.Interest("a/b/c"))
}

func TestDestinationSet_ConcurrentUpdates(t *testing.T) {
	set := NewDestinationSet(routingtable.NewSubscriptionContext("load/+"), nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				name := "load/" + string(rune('a'+w)) + string(rune('a'+i%26))
				set.Add(routingtable.NamedDestination(name))
				set.Contains(name)
				if i%3 == 0 {
					set.Remove(name)
				}
			}
		}(w)
	}
	wg.Wait()

	for _, d := range set.Destinations() {
		assert.True(t, set.Interest(d.Name()))
	}
}
