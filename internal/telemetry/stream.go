// Package telemetry fans world-model snapshots and the command log out to
// websocket subscribers, an ambient observability surface for operational
// tooling rather than a control-path dependency: a retained,
// sequence-numbered log with per-subscriber buffered channels, best-effort
// fan-out (a slow or disconnected subscriber never holds up the reactor).
package telemetry

import (
	"errors"
	"sync"

	"wheelly/internal/clock"
	"wheelly/internal/world"
)

// ErrClosed is returned by Publish/Subscribe once the stream has been closed.
var ErrClosed = errors.New("telemetry: stream closed")

const defaultRetention = 64

// Snapshot is one published telemetry frame.
type Snapshot struct {
	Sequence uint64
	Time     clock.Time
	Model    world.Model
	Commands []string // command kinds emitted this tick, for the activity log
}

// Config controls the stream's retained backlog size.
type Config struct {
	Retain int
}

// Stream is a retained, sequence-numbered log of snapshots fanned out to
// any number of websocket subscribers.
type Stream struct {
	mu          sync.Mutex
	closed      bool
	retention   int
	nextSeq     uint64
	backlog     []Snapshot
	subscribers map[uint64]chan Snapshot
	nextSubID   uint64
}

// NewStream constructs a telemetry stream with the given retention policy.
func NewStream(cfg Config) *Stream {
	retention := cfg.Retain
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Stream{retention: retention, subscribers: make(map[uint64]chan Snapshot)}
}

// Publish appends a snapshot to the backlog and fans it out to every
// subscriber's buffered channel, dropping the delivery (not the publish)
// for any subscriber whose channel is full.
func (s *Stream) Publish(model world.Model, now clock.Time, commands []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	snap := Snapshot{Sequence: s.nextSeq, Time: now, Model: model, Commands: commands}
	s.nextSeq++

	s.backlog = append(s.backlog, snap)
	if len(s.backlog) > s.retention {
		s.backlog = s.backlog[len(s.backlog)-s.retention:]
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			//1.- A slow subscriber drops this frame rather than stall the
			// publisher; the next snapshot supersedes it anyway.
		}
	}
}

// Subscription is a live handle to the stream's fan-out channel.
type Subscription struct {
	id     uint64
	ch     chan Snapshot
	stream *Stream
}

// Events exposes the subscription's delivery channel.
func (sub *Subscription) Events() <-chan Snapshot { return sub.ch }

// Close detaches the subscription from the stream.
func (sub *Subscription) Close() {
	sub.stream.mu.Lock()
	defer sub.stream.mu.Unlock()
	if ch, ok := sub.stream.subscribers[sub.id]; ok {
		delete(sub.stream.subscribers, sub.id)
		close(ch)
	}
}

// Subscribe attaches a new subscriber, replaying the retained backlog
// before live snapshots start flowing.
func (s *Stream) Subscribe(buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = 32
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Snapshot, buffer)
	s.subscribers[id] = ch
	//1.- Replay under the lock so no live Publish can overtake it; frames
	// beyond the buffer's capacity are dropped.
	for _, snap := range s.backlog {
		select {
		case ch <- snap:
		default:
		}
	}
	s.mu.Unlock()

	return &Subscription{id: id, ch: ch, stream: s}, nil
}

// Close shuts down the stream and every live subscription.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}
