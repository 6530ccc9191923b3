package events

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"assetforge/internal/domain"
)

// CommandKind enumerates operator control commands.
type CommandKind string

const (
	CommandPause  CommandKind = "pause"
	CommandResume CommandKind = "resume"
	CommandAbort  CommandKind = "abort"
	CommandSkip   CommandKind = "skip"
)

// Command is an inbound control instruction. Commands are consumed by
// the pipeline dispatcher between job starts only, so pause and abort
// never interrupt a call to an external backend.
type Command struct {
	Kind    CommandKind `json:"kind"`
	AssetID string      `json:"asset_id,omitempty"`
}

var ErrControlQueueFull = errors.New("events: control queue full")

type subscriber struct {
	ch   chan domain.PipelineEvent
	quit chan struct{}
}

// Broadcaster distributes pipeline events to any number of subscribers
// with a single global total order, and funnels control commands into
// one bounded queue. A single goroutine owns fan-out; producers only
// append, so every subscriber observes the identical event sequence.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool

	// seq is owned by the fan-out goroutine, so the number an event is
	// delivered with always matches its delivery position.
	seq uint64

	queue   chan domain.PipelineEvent
	control chan Command
	done    chan struct{}
	logger  zerolog.Logger
}

func NewBroadcaster(buffer int, logger zerolog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 256
	}
	b := &Broadcaster{
		subs:    make(map[int]*subscriber),
		queue:   make(chan domain.PipelineEvent, buffer),
		control: make(chan Command, 16),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go b.fanOut()
	return b
}

// Publish queues an event for delivery. The sequence number is stamped
// at fan-out time, so Seq order and delivery order can never disagree
// even with concurrent publishers.
func (b *Broadcaster) Publish(t domain.EventType, assetID string, payload map[string]any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	evt := domain.PipelineEvent{
		Type:    t,
		AssetID: assetID,
		Payload: payload,
		At:      time.Now().UTC(),
	}
	select {
	case b.queue <- evt:
	case <-b.done:
	}
}

// Subscribe registers a new observer. The returned cancel function must
// be called when the observer goes away; the event channel is closed by
// the broadcaster afterwards.
func (b *Broadcaster) Subscribe() (<-chan domain.PipelineEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:   make(chan domain.PipelineEvent, 64),
		quit: make(chan struct{}),
	}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() { close(sub.quit) })
	}
	return sub.ch, cancel
}

// SendControl enqueues an operator command. The queue is bounded; a
// full queue is surfaced to the caller instead of blocking the
// transport.
func (b *Broadcaster) SendControl(cmd Command) error {
	select {
	case b.control <- cmd:
		return nil
	default:
		return ErrControlQueueFull
	}
}

// Control exposes the command queue to the pipeline dispatcher.
func (b *Broadcaster) Control() <-chan Command {
	return b.control
}

// Close stops fan-out and closes every subscriber channel after queued
// events are delivered.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	close(b.done)
}

// fanOut is the only goroutine that sends on or closes subscriber
// channels, which keeps delivery totally ordered and close safe.
func (b *Broadcaster) fanOut() {
	for {
		select {
		case evt := <-b.queue:
			b.deliver(evt)
		case <-b.done:
			for {
				select {
				case evt := <-b.queue:
					b.deliver(evt)
				default:
					b.mu.Lock()
					for id, sub := range b.subs {
						delete(b.subs, id)
						close(sub.ch)
					}
					b.mu.Unlock()
					return
				}
			}
		}
	}
}

func (b *Broadcaster) deliver(evt domain.PipelineEvent) {
	b.seq++
	evt.Seq = b.seq

	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	sort.Ints(ids)

	for _, id := range ids {
		b.mu.Lock()
		sub, ok := b.subs[id]
		b.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case <-sub.quit:
			b.remove(id)
			continue
		default:
		}
		select {
		case sub.ch <- evt:
		case <-sub.quit:
			b.remove(id)
		case <-time.After(2 * time.Second):
			// A subscriber that cannot keep up is dropped rather than
			// stalling every other observer.
			b.logger.Warn().Int("subscriber", id).Uint64("seq", evt.Seq).Msg("events: dropping slow subscriber")
			b.remove(id)
		}
	}
}

func (b *Broadcaster) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}
