package kademlia

import (
	"container/list"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// replacementCacheSize bounds the number of "almost fit" contacts a bucket
// remembers while its main list is full and its LRU contact is still alive.
const replacementCacheSize = 32

// bucket holds up to capacity contacts ordered least-recently-seen (front)
// to most-recently-seen (back), plus a bounded replacement cache of
// contacts that arrived while the bucket was full and its head was still
// alive. capacity is the routing table's configured K, not a fixed constant.
type bucket struct {
	list         *list.List // of Contact, front = LRU, back = MRU
	repl         *lru.Cache // ID -> Contact, evicts oldest-inserted when full
	lastActivity time.Time
	capacity     int
}

func newBucket(capacity int) *bucket {
	repl, err := lru.New(replacementCacheSize)
	if err != nil {
		// lru.New only errors on size <= 0, which replacementCacheSize never is.
		panic("kademlia: bucket replacement cache: " + err.Error())
	}
	return &bucket{list: list.New(), repl: repl, lastActivity: time.Now(), capacity: capacity}
}

func (b *bucket) Len() int { return b.list.Len() }

// find returns the list element holding id, or nil.
func (b *bucket) find(id ID) *list.Element {
	for e := b.list.Front(); e != nil; e = e.Next() {
		if e.Value.(Contact).ID.Equal(id) {
			return e
		}
	}
	return nil
}

// touch moves an existing contact to the back (most-recently-seen) and
// refreshes its recorded address. Returns false if id isn't present.
func (b *bucket) touch(c Contact) bool {
	e := b.find(c.ID)
	if e == nil {
		return false
	}
	e.Value = c
	b.list.MoveToBack(e)
	b.lastActivity = time.Now()
	return true
}

// insert appends c unconditionally; the caller must check capacity first.
func (b *bucket) insert(c Contact) {
	b.list.PushBack(c)
	b.repl.Remove(c.ID)
	b.lastActivity = time.Now()
}

// front returns the least-recently-seen contact, or false if empty.
func (b *bucket) front() (Contact, bool) {
	e := b.list.Front()
	if e == nil {
		return Contact{}, false
	}
	return e.Value.(Contact), true
}

// evictFront removes the least-recently-seen contact.
func (b *bucket) evictFront() {
	if e := b.list.Front(); e != nil {
		b.list.Remove(e)
	}
}

// moveFrontToBack marks the LRU contact as freshly seen, used when its
// liveness probe succeeds.
func (b *bucket) moveFrontToBack() {
	if e := b.list.Front(); e != nil {
		b.list.MoveToBack(e)
		b.lastActivity = time.Now()
	}
}

// stale reports whether this bucket hasn't seen activity within d.
func (b *bucket) stale(d time.Duration) bool {
	return time.Since(b.lastActivity) >= d
}

// remove drops the contact with the given id, if present, promoting a
// replacement into the freed slot. Returns true if a contact was removed.
func (b *bucket) remove(id ID) bool {
	e := b.find(id)
	if e == nil {
		return false
	}
	b.list.Remove(e)
	b.promoteReplacement()
	return true
}

// addReplacement records c in the bounded replacement cache.
func (b *bucket) addReplacement(c Contact) {
	b.repl.Add(c.ID, c)
}

// promoteReplacement pulls the most recently added replacement (if any)
// into the main list when a slot has opened up.
func (b *bucket) promoteReplacement() {
	if b.list.Len() >= b.capacity {
		return
	}
	keys := b.repl.Keys()
	if len(keys) == 0 {
		return
	}
	key := keys[len(keys)-1]
	v, ok := b.repl.Get(key)
	if !ok {
		return
	}
	b.repl.Remove(key)
	b.list.PushBack(v.(Contact))
}

// contacts returns every contact currently in the bucket's main list, least
// to most recently seen.
func (b *bucket) contacts() []Contact {
	out := make([]Contact, 0, b.list.Len())
	for e := b.list.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Contact))
	}
	return out
}
