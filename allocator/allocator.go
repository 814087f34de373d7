// Package allocator defines the pluggable decision module consulted by the
// master (spec §4.2, §4.3): it turns "framework added/removed/changed" and
// "slave added/removed/resources recovered" events into offer decisions.
// The allocator never mutates master state directly — every decision is
// applied transactionally by the master.
//
// Grounded on the teacher's servermaster/scheduler.Scheduler (filter-chain
// candidate selection over an executorInfoProvider) and cost_scheduler.go
// (a second, cost-based strategy behind the same interface), generalized
// from "pick one executor for one task" to "partition every slave's free
// resources among frameworks" per spec §4.2's dominant-share default.
package allocator

import (
	"time"

	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/resources"
)

// FrameworkSummary is what the allocator needs to know about one
// framework to make a decision.
type FrameworkSummary struct {
	ID           ids.FrameworkID
	Active       bool
	RegisteredAt time.Time
	Allocated    resources.Resources // total resources in use across all slaves
}

// SlaveSummary is what the allocator needs to know about one slave.
type SlaveSummary struct {
	ID   ids.SlaveID
	Free resources.Resources
}

// Offer is one decision: offer Resources on Slave to Framework. The
// master applies it by creating an Offer entity and debiting the slave's
// free pool (spec §4.2 "Allocator protocol").
type Offer struct {
	FrameworkID ids.FrameworkID
	SlaveID     ids.SlaveID
	Resources   resources.Resources
}

// Allocator is the decision module the master drives. Every method may be
// called concurrently with the others only in the sense that the master
// serializes all calls through its own single-threaded actor loop (spec
// §5): an Allocator implementation needs no internal locking of its own
// as long as it is only ever driven by one master.
type Allocator interface {
	// FrameworkAdded registers a newly active framework.
	FrameworkAdded(fw FrameworkSummary)
	// FrameworkRemoved drops a framework (unregistered, or failover grace
	// period elapsed).
	FrameworkRemoved(id ids.FrameworkID)
	// FrameworkResourcesChanged updates a framework's allocated total,
	// e.g. after a task's resources are debited or credited.
	FrameworkResourcesChanged(id ids.FrameworkID, allocated resources.Resources)
	// SlaveAdded registers a newly connected slave.
	SlaveAdded(s SlaveSummary)
	// SlaveRemoved drops a slave that disconnected or was lost.
	SlaveRemoved(id ids.SlaveID)
	// ResourcesRecovered is called when resources return to a slave's
	// free pool (terminal task, declined/rescinded/lost offer), carrying
	// any filters the framework attached when it declined them.
	ResourcesRecovered(slaveID ids.SlaveID, recovered resources.Resources, filters *Filters)
	// ResourceRequest forwards a framework's resource_request hint
	// (spec §4.2 step 6); the default allocator ignores it.
	ResourceRequest(frameworkID ids.FrameworkID, requested resources.Resources)
	// OffersRevived clears any filters a framework previously installed,
	// making it eligible for offers again immediately.
	OffersRevived(frameworkID ids.FrameworkID)
	// MakeOffers asks the allocator to decide, given its current view of
	// frameworks and slaves, which frameworks should be offered which
	// slaves' free resources right now. It returns one Offer per
	// (framework, slave) pair that should receive an offer this round.
	MakeOffers() []Offer
}

// Filters suppresses reoffering of a declined shape on the same slave for
// a bounded duration, attached by a framework's reply_to_offer (spec
// §4.2, §8 scenario 6).
type Filters struct {
	RefuseUntil time.Time
}
