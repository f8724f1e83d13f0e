package kademlia

// node.go is the algorithmic heart: bootstrap, the iterative node/value
// lookups, and the public Store/FindValue API (spec.md §4.7).

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Node is the orchestrator: it owns a routing table, local storage, an RPC
// client and server, and the maintenance timers, and exposes Bootstrap,
// Store, and FindValue.
type Node struct {
	self    Contact
	cfg     Config
	routing *RoutingTable
	storage *Storage
	client  *Client
	server  *Server
	log     *logrus.Entry

	originMu   sync.Mutex
	originKeys map[ID]struct{}

	startedAt time.Time

	maintCancel context.CancelFunc
	maintWG     sync.WaitGroup
}

// NewNode constructs a node identified by self, but does not yet bind a
// listener; call Listen to start serving and Close to shut everything
// down.
func NewNode(self Contact, cfg Config, log *logrus.Entry) *Node {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("node", self.ID.String())

	routing := NewRoutingTable(self, cfg.K)
	storage := NewStorage()
	client := NewClient(self)

	n := &Node{
		self:       self,
		cfg:        cfg,
		routing:    routing,
		storage:    storage,
		client:     client,
		log:        log,
		originKeys: make(map[ID]struct{}),
	}
	n.server = NewServer(self, routing, storage, cfg.K, cfg.DefaultTTL, log)

	// Wire the eviction-policy liveness probe: a full bucket's head is
	// only evicted after failing to respond to a direct ping.
	routing.SetPingFunc(func(c Contact) bool {
		return client.Ping(c.Address, cfg.RPCTimeout)
	})

	return n
}

// Listen binds the RPC server to addr and starts accepting connections
// and running maintenance in the background. It returns once the bind
// has either succeeded or failed, so startup configuration/bind errors
// can be surfaced synchronously (spec.md §6, §7).
func (n *Node) Listen(addr string) error {
	if err := n.server.Listen(addr); err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	n.startedAt = time.Now()
	go func() {
		if err := n.server.Serve(); err != nil {
			n.log.WithError(err).Debug("server stopped accepting")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	n.maintCancel = cancel
	n.maintWG.Add(1)
	go n.maintenanceLoop(ctx)

	return nil
}

// Close stops the server and maintenance loops.
func (n *Node) Close() error {
	if n.maintCancel != nil {
		n.maintCancel()
		n.maintWG.Wait()
	}
	return n.server.Close()
}

// Self returns this node's own contact.
func (n *Node) Self() Contact { return n.self }

// RoutingTable exposes the table for the status endpoint and tests.
func (n *Node) RoutingTable() *RoutingTable { return n.routing }

// Storage exposes the store for the status endpoint and tests.
func (n *Node) Storage() *Storage { return n.storage }

// Uptime reports how long this node has been listening. It is zero until
// Listen has been called.
func (n *Node) Uptime() time.Duration {
	if n.startedAt.IsZero() {
		return 0
	}
	return time.Since(n.startedAt)
}

// ---- Bootstrap ----

// Bootstrap joins the network through a peer at addr whose id is not yet
// known. It issues FindNode(self) to that peer and incorporates every
// returned contact into the routing table (spec.md §4.7).
func (n *Node) Bootstrap(addr string) error {
	resp, err := n.client.Send(addr, Request{Kind: KindFindNode, Target: n.self.ID.String()}, n.cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if from, err := resp.From.toContact(); err == nil {
		n.routing.Observe(from)
	}
	for _, wc := range resp.Nodes {
		if c, err := wc.toContact(); err == nil {
			n.routing.Observe(c)
		}
	}
	n.log.WithField("bootstrap", addr).Info("bootstrap complete")
	return nil
}

// ---- iterative lookups ----

// lookupOutcome is one query's result, dispatched and collected in
// parallel by dispatchBatch.
type lookupOutcome struct {
	contact    Contact
	discovered []Contact
	value      []byte
	ok         bool
}

// failed reports whether the contact should be treated as unreachable:
// the query function returns a nil discovered slice (distinct from a
// successful response naming zero contacts) only on transport failure.
func (o lookupOutcome) failed() bool {
	return o.discovered == nil && o.value == nil && !o.ok
}

// dispatchBatch queries every contact in batch concurrently, folds
// newly-discovered contacts into results, evicts contacts whose query
// failed, and returns the first value found (if any).
func (n *Node) dispatchBatch(batch []Contact, results *candidateList, query func(Contact) (discovered []Contact, value []byte, ok bool)) (value []byte, found bool) {
	ch := make(chan lookupOutcome, len(batch))
	for _, c := range batch {
		c := c
		go func() {
			discovered, value, ok := query(c)
			ch <- lookupOutcome{contact: c, discovered: discovered, value: value, ok: ok}
		}()
	}
	for i := 0; i < len(batch); i++ {
		o := <-ch
		switch {
		case o.ok:
			value, found = o.value, true
		case o.failed():
			n.routing.Remove(o.contact.ID)
		default:
			results.AddAll(o.discovered)
		}
	}
	return value, found
}

// lookupRound implements the iterative lookup shared by LookupNode and
// FindValue (spec.md §4.7): seed α closest known contacts, query them in
// parallel, absorb results, and repeat until the closest known contact
// stops improving, at which point one final round queries every
// unqueried contact among the K closest before terminating. query is
// invoked once per contact per round; returning ok=true short-circuits
// the whole lookup with that value (used by FindValue).
func (n *Node) lookupRound(target ID, query func(Contact) (discovered []Contact, value []byte, ok bool)) (*candidateList, []byte) {
	results := newCandidateList(target)
	results.AddAll(n.routing.Closest(target, n.cfg.Alpha))

	queried := make(map[ID]struct{})
	var best Contact
	haveBest := false

	nextBatch := func() []Contact {
		results.Sort()
		batch := make([]Contact, 0, n.cfg.Alpha)
		for _, c := range results.Contacts(results.Len()) {
			if len(batch) >= n.cfg.Alpha {
				break
			}
			if _, seen := queried[c.ID]; seen {
				continue
			}
			queried[c.ID] = struct{}{}
			batch = append(batch, c)
		}
		return batch
	}

	for {
		batch := nextBatch()
		if len(batch) == 0 {
			break
		}
		if value, found := n.dispatchBatch(batch, results, query); found {
			return results, value
		}

		results.Sort()
		newBest, ok := results.Closest()
		if !ok {
			break
		}
		if haveBest && !Closer(target, newBest.ID, best.ID) {
			// No improvement this round: query every unqueried contact
			// among the current K closest, once, then stop regardless.
			var final []Contact
			for _, c := range results.Contacts(n.cfg.K) {
				if _, seen := queried[c.ID]; !seen {
					queried[c.ID] = struct{}{}
					final = append(final, c)
				}
			}
			if len(final) > 0 {
				if value, found := n.dispatchBatch(final, results, query); found {
					return results, value
				}
			}
			break
		}
		best = newBest
		haveBest = true
	}

	results.Sort()
	return results, nil
}

// LookupNode runs the iterative FindNode lookup described in spec.md
// §4.7 and returns up to K contacts sorted by distance to target. Each
// call is tagged with a random correlation id so its RPC fan-out can be
// told apart from concurrent lookups in the logs.
func (n *Node) LookupNode(target ID) []Contact {
	lookupID := uuid.NewString()
	log := n.log.WithFields(logrus.Fields{"lookup_id": lookupID, "target": target.String()})
	log.Debug("node lookup started")

	deadline := time.Now().Add(n.cfg.LookupTimeout)
	results, _ := n.withDeadline(deadline, func() (*candidateList, []byte) {
		return n.lookupRound(target, func(c Contact) ([]Contact, []byte, bool) {
			resp, err := n.client.Send(c.Address, Request{Kind: KindFindNode, Target: target.String()}, n.cfg.RPCTimeout)
			if err != nil {
				return nil, nil, false
			}
			n.learnFrom(resp)
			return contactsFromWire(resp.Nodes), nil, false
		})
	})

	out := results.Contacts(n.cfg.K)
	log.WithField("found", len(out)).Debug("node lookup finished")
	return out
}

// withDeadline runs fn and returns its result if it finishes before
// deadline. Once deadline passes it returns an empty result set and no
// value; contacts gathered by fn up to that point are not returned, and fn
// itself keeps running in the background until it finishes.
func (n *Node) withDeadline(deadline time.Time, fn func() (*candidateList, []byte)) (*candidateList, []byte) {
	type out struct {
		results *candidateList
		value   []byte
	}
	ch := make(chan out, 1)
	go func() {
		r, v := fn()
		ch <- out{results: r, value: v}
	}()
	select {
	case o := <-ch:
		return o.results, o.value
	case <-time.After(time.Until(deadline)):
		return newCandidateList(ID{}), nil
	}
}

func (n *Node) learnFrom(resp Response) {
	if from, err := resp.From.toContact(); err == nil {
		n.routing.Observe(from)
	}
	for _, wc := range resp.Nodes {
		if c, err := wc.toContact(); err == nil {
			n.routing.Observe(c)
		}
	}
}

func contactsFromWire(nodes []wireNode) []Contact {
	out := make([]Contact, 0, len(nodes))
	for _, wc := range nodes {
		if c, err := wc.toContact(); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// ---- Store / FindValue ----

// Store replicates value under key_id to the K closest contacts found by
// an iterative node lookup, and locally if this node is itself among the
// K closest. It reports how many of those K targets (local store
// counting as one) actually accepted the value.
func (n *Node) Store(key ID, value []byte) (replicas int, err error) {
	targets := n.LookupNode(key)

	storedLocally := false
	for _, c := range targets {
		if c.ID.Equal(n.self.ID) {
			storedLocally = true
			break
		}
	}
	// Also count ourselves if we're simply the closest node anyone knows
	// of and the table returned nothing closer (small or empty network).
	if !storedLocally && (len(targets) < n.cfg.K) {
		storedLocally = true
	}
	if storedLocally {
		n.storage.Put(key, value, n.cfg.DefaultTTL)
		replicas++
	}

	n.markOrigin(key)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range targets {
		if c.ID.Equal(n.self.ID) {
			continue
		}
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := n.client.Send(c.Address, Request{Kind: KindStore, Target: key.String(), Value: value}, n.cfg.RPCTimeout)
			if err != nil {
				n.routing.Remove(c.ID)
				return
			}
			n.learnFrom(resp)
			mu.Lock()
			replicas++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if replicas == 0 {
		n.log.WithField("key", key.String()).Warn("store reached 0 replicas")
	}
	return replicas, nil
}

// FindValue returns the bytes stored under key, checking local storage
// first and otherwise running the iterative FindValue lookup (spec.md
// §4.7). The second return value reports whether a value was found.
func (n *Node) FindValue(key ID) ([]byte, bool) {
	if v, ok := n.storage.Get(key); ok {
		return v, true
	}

	lookupID := uuid.NewString()
	log := n.log.WithFields(logrus.Fields{"lookup_id": lookupID, "key": key.String()})
	log.Debug("value lookup started")

	deadline := time.Now().Add(n.cfg.LookupTimeout)
	var cachePath []Contact
	var mu sync.Mutex

	_, value := n.withDeadline(deadline, func() (*candidateList, []byte) {
		return n.lookupRound(key, func(c Contact) ([]Contact, []byte, bool) {
			resp, err := n.client.Send(c.Address, Request{Kind: KindFindValue, Target: key.String()}, n.cfg.RPCTimeout)
			if err != nil {
				return nil, nil, false
			}
			n.learnFrom(resp)
			mu.Lock()
			cachePath = append(cachePath, c)
			mu.Unlock()
			if resp.Kind == KindValue && len(resp.Value) > 0 {
				return nil, resp.Value, true
			}
			return contactsFromWire(resp.Nodes), nil, false
		})
	})

	if value == nil {
		log.Debug("value lookup found nothing")
		return nil, false
	}

	log.Debug("value lookup succeeded")
	n.storage.Put(key, value, n.cfg.DefaultTTL)
	n.cacheAlongPath(key, value, cachePath)
	return value, true
}

// cacheAlongPath republishes value to the queried contact closest to key,
// the canonical Kademlia "caching" step (spec.md §4.7 step 2).
func (n *Node) cacheAlongPath(key ID, value []byte, queried []Contact) {
	if len(queried) == 0 {
		return
	}
	sort.SliceStable(queried, func(i, j int) bool {
		return Closer(key, queried[i].ID, queried[j].ID)
	})
	target := queried[0]
	if target.ID.Equal(n.self.ID) {
		return
	}
	_, _ = n.client.Send(target.Address, Request{Kind: KindStore, Target: key.String(), Value: value}, n.cfg.RPCTimeout)
}

func (n *Node) markOrigin(key ID) {
	n.originMu.Lock()
	n.originKeys[key] = struct{}{}
	n.originMu.Unlock()
}

func (n *Node) originKeyList() []ID {
	n.originMu.Lock()
	defer n.originMu.Unlock()
	out := make([]ID, 0, len(n.originKeys))
	for k := range n.originKeys {
		out = append(out, k)
	}
	return out
}
