package actor

import (
	"sync"

	"github.com/edwingeng/deque"
)

// TerminateMsg is injected at the front of a mailbox to force an actor to
// stop (spec §4.1 mailbox discipline).
const TerminateMsg = "TERMINATE"

// ExitedMsg is the name carried on EXITED notifications delivered to
// linked actors (spec §4.1 linking).
const ExitedMsg = "EXITED"

// TimeoutMsg is the canonical name of messages delivered by after()
// (spec §4.1 timers).
const TimeoutMsg = "TIMEOUT"

// Message is one frame dispatched to an actor's mailbox: a name, the
// sender's address, and an arbitrary structured payload (spec §6).
type Message struct {
	Name string
	From Address
	Body interface{}
}

// mailbox is a single actor's FIFO inbox. The spec requires FIFO ordering
// per sender while permitting arbitrary interleaving across senders; since
// every sender (an actor, or the transport on an actor's behalf) only ever
// enqueues its own messages in the order it sent them, a single shared
// queue already preserves per-sender order as a special case of that rule,
// without the bookkeeping of one sub-queue per peer.
//
// Grounded on the teacher's engine/pkg/containers.Deque[T], a thin
// goroutine-safe wrapper over github.com/edwingeng/deque.
type mailbox struct {
	mu sync.Mutex
	dq deque.Deque
}

func newMailbox() *mailbox {
	return &mailbox{dq: deque.NewDeque()}
}

// push appends to the back of the queue: the default for ordinary
// messages.
func (m *mailbox) push(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dq.PushBack(msg)
}

// pushFront injects at the head of the queue: reserved for TERMINATE and
// EXITED (spec §4.1).
func (m *mailbox) pushFront(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dq.PushFront(msg)
}

// pop removes and returns the next message, if any.
func (m *mailbox) pop() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dq.Empty() {
		return Message{}, false
	}
	return m.dq.PopFront().(Message), true
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dq.Len()
}
