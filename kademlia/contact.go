package kademlia

import (
	"fmt"
	"sort"
)

// Contact is an immutable (id, address) pair identifying a peer. Two
// contacts are equal iff their ids are equal; the address is informational
// and the latest observed value wins on update (see RoutingTable.Observe).
type Contact struct {
	ID      ID
	Address string
}

// NewContact builds a Contact from an id and a "host:port" address.
func NewContact(id ID, address string) Contact {
	return Contact{ID: id, Address: address}
}

// String renders the contact for logs and CLI output.
func (c Contact) String() string {
	return fmt.Sprintf("%s@%s", c.ID.String(), c.Address)
}

// candidate pairs a contact with its precomputed distance to a lookup
// target, so repeated sorts don't recompute XOR distance per comparison.
type candidate struct {
	contact  Contact
	distance ID
}

// candidateList is a sortable collection of contacts at known distance from
// a shared target, used by RoutingTable.Closest and by the iterative
// lookups in node.go to maintain a result set ordered by proximity.
type candidateList struct {
	target ID
	items  []candidate
	seen   map[ID]struct{}
}

func newCandidateList(target ID) *candidateList {
	return &candidateList{target: target, seen: make(map[ID]struct{})}
}

// Add inserts a contact if not already present (by id). Returns true if
// added.
func (l *candidateList) Add(c Contact) bool {
	if _, ok := l.seen[c.ID]; ok {
		return false
	}
	l.seen[c.ID] = struct{}{}
	l.items = append(l.items, candidate{contact: c, distance: l.target.Xor(c.ID)})
	return true
}

// AddAll inserts every contact in cs that isn't already present.
func (l *candidateList) AddAll(cs []Contact) {
	for _, c := range cs {
		l.Add(c)
	}
}

func (l *candidateList) Len() int { return len(l.items) }

// Sort orders items by ascending XOR distance to the target, tie-broken
// lexicographically on the raw id bytes.
func (l *candidateList) Sort() {
	sort.Slice(l.items, func(i, j int) bool {
		a, b := l.items[i], l.items[j]
		for k := 0; k < IDLength; k++ {
			if a.distance[k] != b.distance[k] {
				return a.distance[k] < b.distance[k]
			}
		}
		return a.contact.ID.Less(b.contact.ID)
	})
}

// Contacts returns up to n contacts, in the list's current order.
func (l *candidateList) Contacts(n int) []Contact {
	if n > len(l.items) {
		n = len(l.items)
	}
	out := make([]Contact, n)
	for i := 0; i < n; i++ {
		out[i] = l.items[i].contact
	}
	return out
}

// Closest returns the single closest contact, or false if the list is empty.
func (l *candidateList) Closest() (Contact, bool) {
	if len(l.items) == 0 {
		return Contact{}, false
	}
	return l.items[0].contact, true
}
