// Package eventbus implements a topic-addressed publish/subscribe bus with
// a single worker goroutine delivering messages in posted order per topic.
package eventbus

import (
	"errors"
	"sync"
)

// MaxTopics bounds the topic table, mirroring the original's fixed
// MAX_TOPICS allocation.
const MaxTopics = 1024

// ErrTopicTableFull is returned by RegisterTopic once MaxTopics distinct
// topics have been registered.
var ErrTopicTableFull = errors.New("eventbus: topic table full")

// ErrTopicNotFound is returned by ResolveTopic for an unregistered topic.
var ErrTopicNotFound = errors.New("eventbus: topic not found")

// Payload is an arbitrary, polymorphic message payload.
type Payload any

// Message is a single queued notification.
type Message struct {
	TopicID      int
	Payload      Payload
	AutoCleanup  bool
}

// Handler receives a dispatched message. topicID lets one handler
// disambiguate if subscribed to several topics via separate calls.
type Handler func(topicID int, msg *Message)

// SubscriptionID is an opaque handle returned by AddObserver, used to
// unsubscribe without comparing closures by captured-state address (see
// spec.md §9 Open Question 2).
type SubscriptionID uint64

type subscriber struct {
	id SubscriptionID
	fn Handler
}

// Bus is an injected event-bus instance with explicit Start/Stop lifecycle
// (spec.md §9: prefer an injected instance over a process-wide singleton).
type Bus struct {
	mu           sync.Mutex
	topicIDs     map[string]int
	topicNames   []string
	subscribers  map[int][]subscriber
	nextSubID    SubscriptionID

	queueMu sync.Mutex
	queueCV *sync.Cond
	queue   []*Message
	stopping bool

	wg      sync.WaitGroup
	started bool
}

// New creates a Bus. Call Start to spawn the worker goroutine.
func New() *Bus {
	b := &Bus{
		topicIDs:    make(map[string]int),
		subscribers: make(map[int][]subscriber),
	}
	b.queueCV = sync.NewCond(&b.queueMu)
	return b
}

// RegisterTopic assigns (or returns the existing) integer id for name.
func (b *Bus) RegisterTopic(name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registerTopicLocked(name)
}

func (b *Bus) registerTopicLocked(name string) (int, error) {
	if id, ok := b.topicIDs[name]; ok {
		return id, nil
	}
	if len(b.topicNames) >= MaxTopics {
		return -1, ErrTopicTableFull
	}
	id := len(b.topicNames)
	b.topicNames = append(b.topicNames, name)
	b.topicIDs[name] = id
	return id, nil
}

// ResolveTopic returns the id of an already-registered topic.
func (b *Bus) ResolveTopic(name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.topicIDs[name]
	if !ok {
		return -1, ErrTopicNotFound
	}
	return id, nil
}

// AddObserver registers the topic on demand and subscribes fn to it,
// returning a SubscriptionID usable with RemoveObserver.
func (b *Bus) AddObserver(topic string, fn Handler) (SubscriptionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.registerTopicLocked(topic)
	if err != nil {
		return 0, err
	}

	b.nextSubID++
	subID := b.nextSubID
	b.subscribers[id] = append(b.subscribers[id], subscriber{id: subID, fn: fn})
	return subID, nil
}

// RemoveObserver removes the subscription identified by subID, wherever it
// is registered. A subscriber removing itself mid-dispatch is supported:
// Dispatch iterates a snapshot slice taken under the lock.
func (b *Bus) RemoveObserver(subID SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topicID, subs := range b.subscribers {
		for i, s := range subs {
			if s.id == subID {
				b.subscribers[topicID] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Post enqueues a message for topic and wakes the worker. If autoCleanup is
// true the bus is the sole owner of payload and "frees" it (drops the
// reference) once every subscriber for this message has been invoked;
// Go's GC makes this bookkeeping-only, but the flag is preserved for
// parity with callers that reason about payload ownership.
func (b *Bus) Post(topic string, payload Payload, autoCleanup bool) error {
	b.mu.Lock()
	id, err := b.registerTopicLocked(topic)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	b.postByID(id, payload, autoCleanup)
	return nil
}

// PostByID enqueues a message directly by an already-resolved topic id.
func (b *Bus) PostByID(topicID int, payload Payload, autoCleanup bool) {
	b.postByID(topicID, payload, autoCleanup)
}

func (b *Bus) postByID(topicID int, payload Payload, autoCleanup bool) {
	b.queueMu.Lock()
	b.queue = append(b.queue, &Message{TopicID: topicID, Payload: payload, AutoCleanup: autoCleanup})
	b.queueCV.Signal()
	b.queueMu.Unlock()
}

// Start spawns the worker goroutine. Calling Start twice is a no-op.
func (b *Bus) Start() {
	b.queueMu.Lock()
	if b.started {
		b.queueMu.Unlock()
		return
	}
	b.started = true
	b.stopping = false
	b.queueMu.Unlock()

	b.wg.Add(1)
	go b.workerLoop()
}

// Stop sets a stop flag, wakes the worker, joins it, and drains any
// remaining queued messages to disposal without dispatching them.
func (b *Bus) Stop() {
	b.queueMu.Lock()
	if !b.started {
		b.queueMu.Unlock()
		return
	}
	b.stopping = true
	b.queueCV.Broadcast()
	b.queueMu.Unlock()

	b.wg.Wait()

	b.queueMu.Lock()
	b.queue = nil
	b.started = false
	b.queueMu.Unlock()
}

func (b *Bus) workerLoop() {
	defer b.wg.Done()

	for {
		msg := b.popMessage()
		if msg == nil {
			return // stopping
		}
		b.dispatch(msg)
	}
}

// popMessage blocks until a message is available or the bus is stopping.
// Once stopping it returns nil, leaving any still-queued messages for Stop
// to discard.
func (b *Bus) popMessage() *Message {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()

	for len(b.queue) == 0 && !b.stopping {
		b.queueCV.Wait()
	}
	if b.stopping {
		return nil
	}

	msg := b.queue[0]
	b.queue = b.queue[1:]
	return msg
}

// dispatch iterates a snapshot of subscribers for msg's topic so that a
// subscriber may unsubscribe itself during dispatch.
func (b *Bus) dispatch(msg *Message) {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subscribers[msg.TopicID]...)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(msg.TopicID, msg)
	}
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns a lazily-created, process-wide Bus instance, already
// started. Prefer an explicitly injected Bus per emulator instance;
// Default exists only as a thin convenience accessor (spec.md §9).
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New()
		defaultBus.Start()
	})
	return defaultBus
}
