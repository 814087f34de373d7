package allocator

import (
	"sort"
	"time"

	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/resources"
)

// DefaultRefuseSeconds is the bounded duration a declined offer's shape is
// suppressed from reoffer on the same slave when the framework supplies
// no explicit filter (spec §4.2 default allocator).
const DefaultRefuseSeconds = 5 * time.Second

// clusterTotals tracks, per resource name, the sum of the free resources
// every SlaveAdded call reported — the denominator of the dominant-share
// ratio. SlaveRemoved does not reduce it.
type clusterTotals = resources.Resources

// filterKey identifies one (slave, resource shape) pair suppressed from
// reoffer until a deadline.
type filterKey struct {
	slaveID ids.SlaveID
	shape   string // resources.Resources.String() of the declined amount
}

var _ Allocator = (*DominantShareAllocator)(nil)

// DominantShareAllocator is the spec §4.2 "default allocator": among
// active, unfiltered frameworks, offer a slave's entire free pool to
// whichever framework currently minimizes its dominant share (largest
// allocated-resource-over-cluster-total ratio), tie-breaking by earliest
// registration.
//
// Grounded on the teacher's servermaster/scheduler.Scheduler filter-chain
// shape (infoProvider + ordered candidate narrowing) and
// servermaster/scheduler/model.ExecutorResourceStatus.Remaining, adapted
// from "rank executors for one task" to "rank frameworks for one slave's
// whole free pool".
type DominantShareAllocator struct {
	frameworks map[ids.FrameworkID]*frameworkState
	slaves     map[ids.SlaveID]SlaveSummary
	totals     clusterTotals

	filters map[filterKey]time.Time

	now func() time.Time
}

type frameworkState struct {
	summary FrameworkSummary
}

// NewDominantShareAllocator creates an allocator with no frameworks or
// slaves yet. now lets tests supply a deterministic clock; nil defaults to
// time.Now.
func NewDominantShareAllocator(now func() time.Time) *DominantShareAllocator {
	if now == nil {
		now = time.Now
	}
	return &DominantShareAllocator{
		frameworks: make(map[ids.FrameworkID]*frameworkState),
		slaves:     make(map[ids.SlaveID]SlaveSummary),
		totals:     resources.New(),
		filters:    make(map[filterKey]time.Time),
		now:        now,
	}
}

func (a *DominantShareAllocator) FrameworkAdded(fw FrameworkSummary) {
	a.frameworks[fw.ID] = &frameworkState{summary: fw}
}

func (a *DominantShareAllocator) FrameworkRemoved(id ids.FrameworkID) {
	delete(a.frameworks, id)
}

func (a *DominantShareAllocator) FrameworkResourcesChanged(id ids.FrameworkID, allocated resources.Resources) {
	if fs, ok := a.frameworks[id]; ok {
		fs.summary.Allocated = allocated
	}
}

func (a *DominantShareAllocator) SlaveAdded(s SlaveSummary) {
	a.slaves[s.ID] = s
	a.totals = resources.Add(a.totals, s.Free)
}

func (a *DominantShareAllocator) SlaveRemoved(id ids.SlaveID) {
	delete(a.slaves, id)
	// Cluster totals are an informative denominator only and are not
	// reduced here: they keep counting the departed slave's capacity, so
	// every framework's dominant share is computed against a larger total
	// than the remaining slaves provide.
}

func (a *DominantShareAllocator) ResourcesRecovered(slaveID ids.SlaveID, recovered resources.Resources, filters *Filters) {
	s, ok := a.slaves[slaveID]
	if !ok {
		return
	}
	s.Free = resources.Add(s.Free, recovered)
	a.slaves[slaveID] = s

	if filters != nil {
		a.filters[filterKey{slaveID: slaveID, shape: recovered.String()}] = filters.RefuseUntil
	}
}

func (a *DominantShareAllocator) ResourceRequest(ids.FrameworkID, resources.Resources) {
	// The default allocator treats resource_request as a pure hint and
	// does not act on it (spec §4.2 step 6).
}

func (a *DominantShareAllocator) OffersRevived(frameworkID ids.FrameworkID) {
	// Revive clears filters this framework specifically installed. Since
	// filters here are keyed by (slave, shape) without a framework
	// component — matching spec §4.2's "identical resource shape on the
	// same slave" — a full revive conservatively clears every filter
	// rather than risk leaving a stale one in place.
	for k := range a.filters {
		delete(a.filters, k)
	}
}

// MakeOffers implements the allocation round described in spec §4.2: for
// every slave with non-empty free resources, find the active, unfiltered
// framework minimizing dominant share and offer it that slave's entire
// free pool.
func (a *DominantShareAllocator) MakeOffers() []Offer {
	now := a.now()

	active := make([]*frameworkState, 0, len(a.frameworks))
	for _, fs := range a.frameworks {
		if fs.summary.Active {
			active = append(active, fs)
		}
	}
	if len(active) == 0 {
		return nil
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].summary.RegisteredAt.Before(active[j].summary.RegisteredAt)
	})

	var offers []Offer
	for slaveID, slave := range a.slaves {
		if slave.Free.IsEmpty() {
			continue
		}
		if a.filtered(slaveID, slave.Free, now) {
			continue
		}
		winner := a.pickMinDominantShare(active)
		if winner == nil {
			continue
		}
		offers = append(offers, Offer{
			FrameworkID: winner.summary.ID,
			SlaveID:     slaveID,
			Resources:   slave.Free,
		})
		// The offered pool is no longer free until ResourcesRecovered
		// returns it (declined, rescinded or lost offer, finished task).
		slave.Free = resources.New()
		a.slaves[slaveID] = slave
	}
	return offers
}

func (a *DominantShareAllocator) filtered(slaveID ids.SlaveID, free resources.Resources, now time.Time) bool {
	until, ok := a.filters[filterKey{slaveID: slaveID, shape: free.String()}]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(a.filters, filterKey{slaveID: slaveID, shape: free.String()})
		return false
	}
	return true
}

// pickMinDominantShare returns the active framework with the smallest
// dominant share of the cluster total, tie-breaking by earliest
// registration (active is already sorted that way).
func (a *DominantShareAllocator) pickMinDominantShare(active []*frameworkState) *frameworkState {
	var best *frameworkState
	bestShare := -1.0
	for _, fs := range active {
		_, share := fs.summary.Allocated.Dominant(a.totals)
		if best == nil || share < bestShare {
			best = fs
			bestShare = share
		}
	}
	return best
}
