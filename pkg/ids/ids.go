// Package ids defines the opaque identifier types used throughout the
// resource manager core (spec §3) and the generator the master uses to
// mint them.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FrameworkID, SlaveID, OfferID, TaskID, ExecutorID and MasterID are
// distinct types even though they share a representation, so a value of
// one can never be passed where another is expected by mistake.
type (
	FrameworkID string
	SlaveID     string
	OfferID     string
	TaskID      string
	ExecutorID  string
	MasterID    string
)

// Generator mints <master-epoch>-<monotonic-counter> identifiers from a
// single counter shared by every id kind, all sharing the same epoch. A master mints a new
// epoch (and therefore a disjoint id space) every time it starts, which is
// how ids stay globally unique within a master incarnation without any
// persisted counter (spec §3, §1 non-goals: no disk persistence).
//
// Grounded on the teacher's engine/pkg/autoid.iDAllocator: a mutex-guarded
// monotonic counter, plus a UUID-backed allocator for the epoch itself.
type Generator struct {
	epoch string

	mu      sync.Mutex
	counter uint64
}

// NewGenerator creates a Generator with a fresh, random epoch. Two
// Generators never collide even if started in the same process clock tick.
func NewGenerator() *Generator {
	return &Generator{epoch: uuid.New().String()[:8]}
}

// NewGeneratorWithEpoch creates a Generator with a caller-supplied epoch,
// primarily for deterministic tests.
func NewGeneratorWithEpoch(epoch string) *Generator {
	return &Generator{epoch: epoch}
}

func (g *Generator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.epoch, g.counter)
}

// NextFrameworkID mints a fresh FrameworkID.
func (g *Generator) NextFrameworkID() FrameworkID { return FrameworkID(g.next()) }

// NextSlaveID mints a fresh SlaveID.
func (g *Generator) NextSlaveID() SlaveID { return SlaveID(g.next()) }

// NextOfferID mints a fresh OfferID.
func (g *Generator) NextOfferID() OfferID { return OfferID(g.next()) }

// NextTaskID mints a fresh TaskID. Frameworks usually supply their own
// task id instead; this exists for internally synthesised tasks.
func (g *Generator) NextTaskID() TaskID { return TaskID(g.next()) }

// NextExecutorID mints a fresh ExecutorID.
func (g *Generator) NextExecutorID() ExecutorID { return ExecutorID(g.next()) }

// NextMasterID mints the MasterID for this incarnation; called once at
// startup.
func (g *Generator) NextMasterID() MasterID { return MasterID(g.next()) }
