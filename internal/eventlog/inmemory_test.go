package eventlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
)

func newRecord(payload string) *eventlog.Record {
	return eventlog.NewRecord([]byte(payload), map[string]any{"body": payload})
}

func TestInMemoryEventLog_Append(t *testing.T) {
	t.Run("assigns per-destination offsets and global ids", func(t *testing.T) {
		log := NewInMemoryEventLog()
		defer log.Close()
		ctx := context.Background()

		a1, err := log.Append(ctx, "orders", newRecord("o1"))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		u1, _ := log.Append(ctx, "users", newRecord("u1"))
		a2, _ := log.Append(ctx, "orders", newRecord("o2"))

		if a1.Offset() != 0 || a2.Offset() != 1 || u1.Offset() != 0 {
			t.Errorf("Unexpected offsets %d %d %d", a1.Offset(), a2.Offset(), u1.Offset())
		}
		if a1.ID() != 1 || u1.ID() != 2 || a2.ID() != 3 {
			t.Errorf("Unexpected ids %d %d %d", a1.ID(), u1.ID(), a2.ID())
		}
		if a2.Destination() != "orders" {
			t.Errorf("Expected destination orders, got %s", a2.Destination())
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		log := NewInMemoryEventLog()
		defer log.Close()
		ctx := context.Background()

		if _, err := log.Append(ctx, "orders", nil); !errors.Is(err, ErrNilRecord) {
			t.Errorf("Expected ErrNilRecord, got %v", err)
		}
		if _, err := log.Append(ctx, "", newRecord("x")); !errors.Is(err, ErrEmptyDestination) {
			t.Errorf("Expected ErrEmptyDestination, got %v", err)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := log.Append(cancelled, "orders", newRecord("x")); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})

	t.Run("ids are unique under concurrency", func(t *testing.T) {
		log := NewInMemoryEventLog()
		defer log.Close()
		ctx := context.Background()

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[uint64]bool)
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(dest string) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					r, err := log.Append(ctx, dest, newRecord("x"))
					if err != nil {
						t.Errorf("Append failed: %v", err)
						return
					}
					mu.Lock()
					ids[r.ID()] = true
					mu.Unlock()
				}
			}([]string{"a", "b"}[i%2])
		}
		wg.Wait()

		if len(ids) != 400 {
			t.Errorf("Expected 400 unique ids, got %d", len(ids))
		}
		end, _ := log.EndOffset(ctx, "a")
		if end != 200 {
			t.Errorf("Expected end offset 200, got %d", end)
		}
	})
}

func TestInMemoryEventLog_Read(t *testing.T) {
	log := NewInMemoryEventLog()
	defer log.Close()
	ctx := context.Background()

	for _, p := range []string{"a", "b", "c", "d"} {
		if _, err := log.Append(ctx, "orders", newRecord(p)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	tests := []struct {
		name     string
		start    int64
		max      int
		expected []string
	}{
		{"from start", 0, 10, []string{"a", "b", "c", "d"}},
		{"limited", 1, 2, []string{"b", "c"}},
		{"past end", 10, 5, nil},
		{"zero count", 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := log.Read(ctx, "orders", tt.start, tt.max)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if len(records) != len(tt.expected) {
				t.Fatalf("Expected %d records, got %d", len(tt.expected), len(records))
			}
			for i, r := range records {
				if string(r.Payload()) != tt.expected[i] {
					t.Errorf("Record %d: expected %s, got %s", i, tt.expected[i], r.Payload())
				}
			}
		})
	}

	t.Run("unknown destination is empty", func(t *testing.T) {
		records, err := log.Read(ctx, "nope", 0, 10)
		if err != nil || len(records) != 0 {
			t.Errorf("Expected empty result, got %d records, err %v", len(records), err)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		if _, err := log.Read(ctx, "orders", -1, 1); !errors.Is(err, ErrNegativeOffset) {
			t.Errorf("Expected ErrNegativeOffset, got %v", err)
		}
		if _, err := log.Read(ctx, "orders", 0, -1); !errors.Is(err, ErrNegativeMaxCount) {
			t.Errorf("Expected ErrNegativeMaxCount, got %v", err)
		}
	})
}

func TestInMemoryEventLog_Replay(t *testing.T) {
	log := NewInMemoryEventLog()
	defer log.Close()
	ctx := context.Background()

	for _, p := range []string{"a", "b", "c"} {
		log.Append(ctx, "orders", newRecord(p))
	}

	t.Run("streams from offset", func(t *testing.T) {
		records, errs := log.Replay(ctx, "orders", 1)
		var got []string
		for r := range records {
			got = append(got, string(r.Payload()))
		}
		if err := <-errs; err != nil {
			t.Fatalf("Replay failed: %v", err)
		}
		if len(got) != 2 || got[0] != "b" || got[1] != "c" {
			t.Errorf("Unexpected replay %v", got)
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		records, errs := log.Replay(ctx, "orders", -1)
		for range records {
		}
		if err := <-errs; !errors.Is(err, ErrNegativeOffset) {
			t.Errorf("Expected ErrNegativeOffset, got %v", err)
		}
	})

	t.Run("cancellation stops the stream", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		records, errs := log.Replay(cctx, "orders", 0)
		<-records
		cancel()

		deadline := time.After(time.Second)
		for {
			select {
			case _, ok := <-records:
				if !ok {
					if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
						t.Errorf("Expected context.Canceled, got %v", err)
					}
					return
				}
			case <-deadline:
				t.Fatal("Replay did not stop")
			}
		}
	})
}

func TestInMemoryEventLog_CompactAndDelete(t *testing.T) {
	log := NewInMemoryEventLog(WithRetention(2))
	defer log.Close()
	ctx := context.Background()

	for _, p := range []string{"a", "b", "c", "d"} {
		log.Append(ctx, "orders", newRecord(p))
	}
	log.Append(ctx, "users", newRecord("u"))

	if err := log.Compact(ctx); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	records, _ := log.Read(ctx, "orders", 0, 10)
	if len(records) != 2 || records[0].Offset() != 2 {
		t.Fatalf("Expected records from offset 2, got %d records", len(records))
	}
	records, _ = log.Read(ctx, "orders", 3, 10)
	if len(records) != 1 || string(records[0].Payload()) != "d" {
		t.Errorf("Expected only d from offset 3")
	}
	end, _ := log.EndOffset(ctx, "orders")
	if end != 4 {
		t.Errorf("Compaction must not move the end offset, got %d", end)
	}

	stats, err := log.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.TotalRecords != 3 || stats.DestinationCount != 2 || stats.DestinationCounts["orders"] != 2 {
		t.Errorf("Unexpected statistics %+v", stats)
	}
	if stats.LastMessageID != 5 {
		t.Errorf("Expected last id 5, got %d", stats.LastMessageID)
	}

	if err := log.Delete(ctx, "orders"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	end, _ = log.EndOffset(ctx, "orders")
	if end != 0 {
		t.Errorf("Expected deleted destination to restart at 0, got %d", end)
	}
	r, _ := log.Append(ctx, "orders", newRecord("e"))
	if r.ID() != 6 {
		t.Errorf("Message ids continue across delete, got %d", r.ID())
	}
}

func TestInMemoryEventLog_Close(t *testing.T) {
	log := NewInMemoryEventLog()
	ctx := context.Background()
	log.Append(ctx, "orders", newRecord("a"))

	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Errorf("Close should be idempotent, got %v", err)
	}

	if _, err := log.Append(ctx, "orders", newRecord("b")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := log.GetStatistics(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
