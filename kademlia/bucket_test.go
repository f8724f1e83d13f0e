package kademlia

import "testing"

func TestBucket_InsertAndFind(t *testing.T) {
	b := newBucket(defaultK)
	c := NewContact(RandomID(), "localhost:9000")
	b.insert(c)

	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	if e := b.find(c.ID); e == nil {
		t.Fatal("expected to find the inserted contact")
	}
}

func TestBucket_TouchMovesToBack(t *testing.T) {
	b := newBucket(defaultK)
	first := NewContact(RandomID(), "localhost:9000")
	second := NewContact(RandomID(), "localhost:9001")
	b.insert(first)
	b.insert(second)

	b.touch(first)
	front, _ := b.front()
	if front.ID.Equal(first.ID) {
		t.Fatal("expected touch to move the contact away from the front")
	}
}

func TestBucket_TouchReportsMissingContact(t *testing.T) {
	b := newBucket(defaultK)
	if b.touch(NewContact(RandomID(), "localhost:9000")) {
		t.Fatal("touch on an empty bucket must report false")
	}
}

func TestBucket_EvictFrontRemovesLRU(t *testing.T) {
	b := newBucket(defaultK)
	first := NewContact(RandomID(), "localhost:9000")
	second := NewContact(RandomID(), "localhost:9001")
	b.insert(first)
	b.insert(second)

	b.evictFront()
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	front, _ := b.front()
	if !front.ID.Equal(second.ID) {
		t.Fatal("expected the remaining contact to be the one inserted second")
	}
}

func TestBucket_PromoteReplacementFillsFreedSlot(t *testing.T) {
	b := newBucket(defaultK)
	c := NewContact(RandomID(), "localhost:9000")
	b.insert(c)

	repl := NewContact(RandomID(), "localhost:9001")
	b.addReplacement(repl)

	b.remove(c.ID)
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after promoting the cached replacement", b.Len())
	}
	if e := b.find(repl.ID); e == nil {
		t.Fatal("expected the replacement to be promoted into the main list")
	}
}

func TestBucket_StaleReflectsActivity(t *testing.T) {
	b := newBucket(defaultK)
	if b.stale(0) == false {
		t.Fatal("a bucket with threshold 0 must always report stale")
	}
	b.insert(NewContact(RandomID(), "localhost:9000"))
	if b.stale(1_000_000_000_000) { // absurdly long threshold in nanoseconds
		t.Fatal("a freshly touched bucket must not be stale under a huge threshold")
	}
}
