// Package realtime pushes full topic snapshots to subscribers after every change.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TopicPages    = "pages"
	TopicResume   = "resume"
	TopicMessages = "messages"
)

var ErrUnknownTopic = errors.New("unknown topic")

// BlocksTopic names the block stream of one page.
func BlocksTopic(pageID string) string {
	return "pages/" + pageID + "/blocks"
}

// ParseTopic validates a topic name received from a client.
func ParseTopic(raw string) (string, error) {
	topic := strings.Trim(strings.TrimSpace(raw), "/")
	switch topic {
	case TopicPages, TopicResume, TopicMessages:
		return topic, nil
	}
	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[0] == "pages" && parts[1] != "" && parts[2] == "blocks" {
		return topic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTopic, raw)
}

// PageIDOf returns the page of a blocks topic.
func PageIDOf(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[0] == "pages" && parts[2] == "blocks" {
		return parts[1], true
	}
	return "", false
}

// Loader reads the current snapshot of a topic.
type Loader func(ctx context.Context, topic string) (any, error)

// Notifier is told which topics changed after a successful write.
type Notifier interface {
	Changed(ctx context.Context, topics ...string)
}

// Snapshot is one delivery. A non-nil Err is terminal.
type Snapshot struct {
	Topic string
	Data  any
	Err   error
}

// Hub tags every load with a sequence number taken before the load starts. A
// subscriber only accepts a snapshot newer than the last one it was given, so a
// slow load finishing late never replaces a fresher one.
type Hub struct {
	load        Loader
	logger      *zap.Logger
	loadTimeout time.Duration

	mu   sync.Mutex
	seq  uint64
	subs map[string]map[*Subscription]struct{}
}

func NewHub(load Loader, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		load:        load,
		logger:      logger,
		loadTimeout: 10 * time.Second,
		subs:        make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a stream, then loads its initial snapshot. The stream
// ends when ctx is cancelled or Close is called. A change committed while the
// initial load runs is still delivered.
func (h *Hub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	sub := &Subscription{topic: topic, hub: h, ch: make(chan Snapshot, 1)}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	data, err := h.load(ctx, topic)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("load %s: %w", topic, err)
	}
	sub.offer(seq, Snapshot{Topic: topic, Data: data})

	sub.mu.Lock()
	if !sub.closed {
		sub.stop = context.AfterFunc(ctx, sub.Close)
	}
	sub.mu.Unlock()
	return sub, nil
}

// Changed reloads each topic once and offers the result to its subscribers.
// Topics nobody listens to are not loaded.
func (h *Hub) Changed(ctx context.Context, topics ...string) {
	ctx = context.WithoutCancel(ctx)
	seen := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}

		subs, seq := h.begin(topic)
		if len(subs) == 0 {
			continue
		}
		loadCtx, cancel := context.WithTimeout(ctx, h.loadTimeout)
		data, err := h.load(loadCtx, topic)
		cancel()
		if err != nil {
			h.logger.Warn("snapshot load failed", zap.String("topic", topic), zap.Error(err))
			for _, sub := range subs {
				sub.fail(seq, err)
			}
			continue
		}
		for _, sub := range subs {
			sub.offer(seq, Snapshot{Topic: topic, Data: data})
		}
	}
}

// begin lists the subscribers of topic and numbers the load about to run.
func (h *Hub) begin(topic string) ([]*Subscription, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	items := make([]*Subscription, 0, len(h.subs[topic]))
	for sub := range h.subs[topic] {
		items = append(items, sub)
	}
	if len(items) == 0 {
		return nil, 0
	}
	h.seq++
	return items, h.seq
}

// Subscribers reports how many streams are open on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sub.topic], sub)
	if len(h.subs[sub.topic]) == 0 {
		delete(h.subs, sub.topic)
	}
}

// Subscription holds at most one undelivered snapshot; a newer one replaces it.
type Subscription struct {
	topic string
	hub   *Hub
	stop  func() bool

	mu     sync.Mutex
	ch     chan Snapshot
	seq    uint64
	closed bool
}

func (s *Subscription) Topic() string {
	return s.topic
}

// C is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.end()
}

func (s *Subscription) offer(seq uint64, snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq <= s.seq {
		return
	}
	s.seq = seq
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snapshot
}

func (s *Subscription) fail(seq uint64, err error) {
	s.mu.Lock()
	if s.closed || seq <= s.seq {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- Snapshot{Topic: s.topic, Err: err}
	s.end()
}

// end closes the stream; s.mu must be held and is released.
func (s *Subscription) end() {
	s.closed = true
	close(s.ch)
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.hub.remove(s)
}
