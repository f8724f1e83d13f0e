package kademlia

import "time"

// Config holds the tunables spec.md §6 requires a process to expose: K,
// alpha, default TTL, and the two timeout budgets.
type Config struct {
	// K is both the bucket capacity and the replication factor.
	K int
	// Alpha is the iterative-lookup parallelism.
	Alpha int
	// DefaultTTL is applied to every value the node keeps: values accepted
	// via an inbound Store RPC, local copies written by Node.Store, and
	// values cached after a FindValue hit.
	DefaultTTL time.Duration
	// RPCTimeout bounds a single request/response round trip.
	RPCTimeout time.Duration
	// LookupTimeout bounds an entire iterative lookup (node or value).
	LookupTimeout time.Duration
	// BucketRefreshInterval is the cadence of the stale-bucket refresh
	// maintenance timer.
	BucketRefreshInterval time.Duration
	// BucketStaleAfter is how long a bucket may go without activity
	// before the maintenance loop refreshes it.
	BucketStaleAfter time.Duration
	// StorageSweepInterval is the cadence of the expired-value sweep.
	StorageSweepInterval time.Duration
	// RepublishInterval is the cadence at which locally originated keys
	// are re-replicated to the current K closest peers.
	RepublishInterval time.Duration
}

// DefaultConfig returns the defaults named in spec.md §6: K=20, alpha=3,
// TTL=1h, lookup timeout=10s, RPC timeout=2s; plus the maintenance
// cadences spec.md §9 leaves as "plausible defaults... may need tuning".
func DefaultConfig() Config {
	return Config{
		K:                     defaultK,
		Alpha:                 3,
		DefaultTTL:            time.Hour,
		RPCTimeout:            2 * time.Second,
		LookupTimeout:         10 * time.Second,
		BucketRefreshInterval: 5 * time.Minute,
		BucketStaleAfter:      time.Hour,
		StorageSweepInterval:  time.Minute,
		RepublishInterval:     15 * time.Minute,
	}
}
