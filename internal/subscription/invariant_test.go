package subscription

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

func itoa(v uint64) string { return strconv.FormatUint(v, 10) }

// TestGroup_CreditInvariant drives random join, offer, ack, reject, leave
// and flush sequences and checks after every step that outstanding
// deliveries never exceed capacity and that no message is outstanding at
// two members.
func TestGroup_CreditInvariant(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run("seed"+itoa(seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			capacity := 1 + rng.IntN(8)
			g := NewGroup("grp_normal", "grp", "orders/+", nil, NewConfig().WithCapacity(capacity).WithWindow(32))

			var (
				members []*Member
				nextID  uint64
				joined  int
			)
			for step := 0; step < 400; step++ {
				switch op := rng.IntN(10); {
				case op < 2 || len(members) == 0:
					joined++
					c := newConsumer("c" + strconv.Itoa(joined))
					c.setRefuse(rng.IntN(6) == 0)
					sctx := shared("grp").WithReceiveMaximum(rng.IntN(3))
					if rng.IntN(4) == 0 {
						sctx = sctx.WithQoS(routingtable.AtMostOnce)
					}
					m, err := g.Join(c, sctx)
					if err != nil {
						t.Fatalf("join: %v", err)
					}
					members = append(members, m)
				case op < 5:
					nextID++
					if err := g.Offer(msg(nextID)); err != nil {
						t.Fatalf("offer: %v", err)
					}
				case op < 7:
					m := members[rng.IntN(len(members))]
					if out := m.Outstanding(); len(out) > 0 {
						_ = m.Ack(out[rng.IntN(len(out))])
					}
				case op < 8:
					m := members[rng.IntN(len(members))]
					if out := m.Outstanding(); len(out) > 0 {
						_, _ = m.AckRange(out[0], out[len(out)-1])
					}
				case op < 9:
					m := members[rng.IntN(len(members))]
					if out := m.Outstanding(); len(out) > 0 {
						_ = m.Reject(out[0])
					}
				default:
					i := rng.IntN(len(members))
					if err := members[i].Leave(); err != nil {
						t.Fatalf("leave: %v", err)
					}
					members = append(members[:i], members[i+1:]...)
				}
				checkInvariant(t, g, members, capacity)
			}
		})
	}
}

func checkInvariant(t *testing.T, g *Group, members []*Member, capacity int) {
	t.Helper()
	st := g.Stats()
	if st.CreditOutstanding > capacity {
		t.Fatalf("outstanding credit %d exceeds capacity %d", st.CreditOutstanding, capacity)
	}

	owner := make(map[uint64]string)
	total := 0
	for _, m := range members {
		out := m.Outstanding()
		total += len(out)
		if limit := m.Context().ReceiveMaximum; limit > 0 && len(out) > limit {
			t.Fatalf("member %s has %d outstanding, receive maximum %d", m.ID(), len(out), limit)
		}
		for _, id := range out {
			if prev, dup := owner[id]; dup {
				t.Fatalf("message %d outstanding at %s and %s", id, prev, m.ID())
			}
			owner[id] = m.ID()
		}
	}
	if total != st.CreditOutstanding {
		t.Fatalf("members hold %d outstanding, pool says %d", total, st.CreditOutstanding)
	}
	if st.InFlight != total {
		t.Fatalf("cursor has %d in flight, members hold %d", st.InFlight, total)
	}
}
