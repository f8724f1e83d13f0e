package kademlia

import (
	"context"
	"sync/atomic"
	"time"
)

// maintenance.go runs the three background timers spec.md §9 calls for:
// expired-value sweep, stale-bucket refresh, and origin-key republish.

// maintenanceLoop runs until ctx is cancelled. It is started once by
// Listen and stopped by Close.
//
// refresh and republish each do network I/O (iterative lookups, Store
// RPCs) that can run long when many buckets are stale or many keys are
// owned, so each runs on its own goroutine rather than the select loop
// itself: a slow refresh round must never delay the storage sweep tick.
// refreshBusy/republishBusy skip a tick if the previous round is still
// running, instead of piling up overlapping rounds.
func (n *Node) maintenanceLoop(ctx context.Context) {
	defer n.maintWG.Done()

	sweep := time.NewTicker(n.cfg.StorageSweepInterval)
	refresh := time.NewTicker(n.cfg.BucketRefreshInterval)
	republish := time.NewTicker(n.cfg.RepublishInterval)
	defer sweep.Stop()
	defer refresh.Stop()
	defer republish.Stop()

	var refreshBusy, republishBusy atomic.Bool

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			n.sweepStorage()
		case <-refresh.C:
			if refreshBusy.CompareAndSwap(false, true) {
				n.maintWG.Add(1)
				go func() {
					defer n.maintWG.Done()
					defer refreshBusy.Store(false)
					n.refreshStaleBuckets()
				}()
			}
		case <-republish.C:
			if republishBusy.CompareAndSwap(false, true) {
				n.maintWG.Add(1)
				go func() {
					defer n.maintWG.Done()
					defer republishBusy.Store(false)
					n.republishOriginKeys()
				}()
			}
		}
	}
}

// sweepStorage evicts expired key/value pairs from local storage (spec.md
// §4.3: "expired entries are purged by a periodic sweep").
func (n *Node) sweepStorage() {
	removed := n.storage.Sweep()
	if removed > 0 {
		n.log.WithField("removed", removed).Debug("storage sweep")
	}
}

// refreshStaleBuckets looks up a random id within each bucket that has
// seen no activity for BucketStaleAfter, pulling fresh contacts into
// buckets the routing table would otherwise stop improving (spec.md
// §4.2: "a bucket that has not been touched recently is refreshed by
// performing a lookup for a random id in its range").
func (n *Node) refreshStaleBuckets() {
	stale := n.routing.staleBuckets(n.cfg.BucketStaleAfter)
	for _, idx := range stale {
		target := n.routing.randomIDInBucket(idx)
		n.log.WithField("bucket", idx).Debug("refreshing stale bucket")
		n.LookupNode(target)
	}
}

// republishOriginKeys re-replicates every locally originated key to the
// current K closest contacts, so a key survives routing-table churn even
// after the original Store call's replica set has moved on (spec.md
// §4.3: "the node that accepted a Store call... is responsible for
// periodically re-replicating it").
func (n *Node) republishOriginKeys() {
	for _, key := range n.originKeyList() {
		value, ok := n.storage.Get(key)
		if !ok {
			// Our own copy expired; nothing left to republish for this key.
			continue
		}
		if _, err := n.Store(key, value); err != nil {
			n.log.WithError(err).WithField("key", key.String()).Debug("republish failed")
		}
	}
}
