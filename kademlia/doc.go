// Package kademlia implements a 256-bit Kademlia distributed hash table:
// identifier/XOR metric, k-bucket routing table with liveness-checked
// eviction, iterative node and value lookups, replicated TTL'd key/value
// storage, and a newline-delimited JSON request/response protocol over
// TCP.
//
// Layout
//
//	id.go            256-bit ID, XOR distance, distance class
//	contact.go       Contact, and the candidateList used to build
//	                 distance-ordered result sets
//	bucket.go        a single k-bucket: LRU ordering plus a bounded
//	                 replacement cache
//	routingtable.go  the 256-bucket table, eviction policy, stale-bucket
//	                 detection, random-id-in-bucket generation
//	storage.go       in-memory key/value store with per-entry TTL
//	protocol.go      wire request/response types and line framing
//	client.go        single-shot request/response RPC client
//	server.go        TCP accept loop and request dispatch
//	node.go          orchestrator: Bootstrap, the iterative lookups shared
//	                 by LookupNode/FindValue, Store/FindValue
//	maintenance.go   background timers: storage sweep, bucket refresh,
//	                 origin-key republish
//	status.go        read-only HTTP introspection endpoint
//	cli.go           interactive REPL over a running node
//
// A node is built with NewNode, bound with Listen, and shut down with
// Close. Listen starts both the RPC accept loop and the maintenance
// timers; Close stops both.
//
//	cfg := kademlia.DefaultConfig()
//	self := kademlia.NewContact(kademlia.RandomID(), "127.0.0.1:9000")
//	n := kademlia.NewNode(self, cfg, nil)
//	if err := n.Listen(self.Address); err != nil {
//		log.Fatal(err)
//	}
//	defer n.Close()
//	if err := n.Bootstrap("127.0.0.1:9001"); err != nil {
//		log.Print(err)
//	}
//	key := kademlia.IDFromKey("hello")
//	n.Store(key, []byte("hello"))
//	value, ok := n.FindValue(key)
package kademlia
