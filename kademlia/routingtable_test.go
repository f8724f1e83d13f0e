package kademlia

import (
	"testing"
	"time"
)

func contactAtBucket(me Contact, idx int) Contact {
	rt := &RoutingTable{me: me}
	id := rt.randomIDInBucket(idx)
	return NewContact(id, "localhost:0")
}

func TestRoutingTable_ObserveNewContactAddsIt(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)
	c := contactAtBucket(me, 10)

	if added := rt.Observe(c); !added {
		t.Fatal("expected the first observation of a new contact to add it")
	}
	if len(rt.AllContacts()) != 1 {
		t.Fatalf("AllContacts() = %d, want 1", len(rt.AllContacts()))
	}
}

func TestRoutingTable_NeverAddsOwnID(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)
	if added := rt.Observe(me); added {
		t.Fatal("a table must never insert its own id")
	}
	if len(rt.AllContacts()) != 0 {
		t.Fatal("expected no contacts after observing self")
	}
}

func TestRoutingTable_EvictsDeadLRUAndInsertsNew(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)
	rt.SetPingFunc(func(Contact) bool { return false })

	const idx = 5
	for i := 0; i < defaultK; i++ {
		rt.Observe(contactAtBucket(me, idx))
	}
	fresh := contactAtBucket(me, idx)
	if added := rt.Observe(fresh); !added {
		t.Fatal("expected a dead LRU head to be evicted and the new contact inserted")
	}
}

func TestRoutingTable_KeepsAliveLRUAndDropsNewToReplacement(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)
	rt.SetPingFunc(func(Contact) bool { return true })

	const idx = 5
	for i := 0; i < defaultK; i++ {
		rt.Observe(contactAtBucket(me, idx))
	}
	occBefore := rt.BucketOccupancy()[idx]

	fresh := contactAtBucket(me, idx)
	if added := rt.Observe(fresh); added {
		t.Fatal("expected the new contact to be rejected when the LRU head is alive")
	}
	if occBefore != rt.BucketOccupancy()[idx] {
		t.Fatal("bucket occupancy must not change when the new contact is only cached as a replacement")
	}
}

func TestRoutingTable_MoveToBackOnSeenAgain(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)

	const idx = 5
	first := contactAtBucket(me, idx)
	rt.Observe(first)
	for i := 0; i < 3; i++ {
		rt.Observe(contactAtBucket(me, idx))
	}
	// Re-observing first must move it to the back (most-recently-seen),
	// so a later full-bucket probe targets a different contact's head.
	if present := rt.Observe(first); !present {
		t.Fatal("re-observing an existing contact must report it as present")
	}
	contacts := rt.buckets[idx].contacts()
	if !contacts[len(contacts)-1].ID.Equal(first.ID) {
		t.Fatal("expected the re-observed contact to move to the back of its bucket")
	}
}

func TestRoutingTable_ClosestOrdersByDistance(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)

	var cs []Contact
	for _, idx := range []int{3, 50, 120, 200} {
		c := contactAtBucket(me, idx)
		rt.Observe(c)
		cs = append(cs, c)
	}

	got := rt.Closest(me.ID, 4)
	if len(got) != 4 {
		t.Fatalf("Closest returned %d contacts, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !Closer(me.ID, got[i-1].ID, got[i].ID) && !got[i-1].ID.Equal(got[i].ID) {
			t.Fatalf("Closest result not sorted by ascending distance at index %d", i)
		}
	}
}

func TestRoutingTable_RemoveDropsContact(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)
	c := contactAtBucket(me, 10)
	rt.Observe(c)

	rt.Remove(c.ID)
	for _, got := range rt.AllContacts() {
		if got.ID.Equal(c.ID) {
			t.Fatal("expected Remove to drop the contact")
		}
	}
}

func TestRoutingTable_StaleBucketsReportsOnlyNonEmptyStale(t *testing.T) {
	me := NewContact(RandomID(), "localhost:8000")
	rt := NewRoutingTable(me, defaultK)
	rt.Observe(contactAtBucket(me, 7))

	if stale := rt.staleBuckets(time.Hour); len(stale) != 0 {
		t.Fatalf("freshly observed bucket reported stale under a 1h threshold: %v", stale)
	}
	if stale := rt.staleBuckets(0); len(stale) != 1 || stale[0] != 7 {
		t.Fatalf("staleBuckets(0) = %v, want [7]", stale)
	}
}
