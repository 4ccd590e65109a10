package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/tusharrohilla/streamwindow/internal/cluster"
	"github.com/tusharrohilla/streamwindow/internal/window"
)

var (
	ErrStreamExists     = errors.New("stream already exists")
	ErrStreamNotFound   = errors.New("stream not found")
	ErrSubscriberAbsent = errors.New("subscriber not found")
)

type StreamsManager struct {
	mu              sync.RWMutex
	streams         map[string]*Topic
	start           time.Time
	defaultCapacity int
	queueSize       int
}

// Topic is one named stream. mu guards the stream, its views and the
// cluster counts, which do no locking of their own.
type Topic struct {
	name        string
	mu          sync.RWMutex
	stream      *window.Stream[Record]
	clusters    *cluster.Aggregate
	selection   cluster.Selection
	subscribers map[string]*Subscriber
	msgCount    int64
}

// Subscriber is a view over a topic pushed to a client after every publish.
type Subscriber struct {
	id        string
	view      *window.View[Record] // guarded by the topic's mu
	send      chan WindowUpdate    // bounded channel for backpressure
	conn      eventSink
	closed    chan struct{}
	closeOnce sync.Once
}

// eventSink abstracts where a subscriber's frames go (websocket or SSE).
type eventSink interface {
	Write(ctx context.Context, msg ServerToClient) error
	Close(status websocket.StatusCode, reason string) error
}

type ClusterState struct {
	Hierarchy cluster.Node `json:"hierarchy"`
	Selected  string       `json:"selected"`
}

func NewStreamsManager(defaultCapacity, queueSize int) *StreamsManager {
	return &StreamsManager{
		streams:         make(map[string]*Topic),
		start:           time.Now(),
		defaultCapacity: defaultCapacity,
		queueSize:       queueSize,
	}
}

// CreateStream registers an empty stream. A zero capacity picks the manager default.
func (sm *StreamsManager) CreateStream(name string, capacity int) error {
	if capacity == 0 {
		capacity = sm.defaultCapacity
	}
	s, err := window.NewStream(window.StreamOptions[Record]{Capacity: capacity})
	if err != nil {
		return err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.streams[name]; ok {
		return ErrStreamExists
	}
	t := &Topic{
		name:        name,
		stream:      s,
		clusters:    cluster.NewAggregate(),
		subscribers: make(map[string]*Subscriber),
	}
	s.Observe(t.track)
	sm.streams[name] = t
	return nil
}

// track keeps the cluster counts in step with what the stream holds.
func (t *Topic) track(c window.Change[Record]) {
	switch c.Kind {
	case window.Added:
		t.clusters.Add(c.Record.Anomalous, c.Record.Cluster)
		recordsAppended.WithLabelValues(t.name).Inc()
	case window.Evicted:
		t.clusters.Remove(c.Record.Anomalous, c.Record.Cluster)
		recordsEvicted.WithLabelValues(t.name).Inc()
	}
}

func (sm *StreamsManager) GetStream(name string) (*Topic, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	t, ok := sm.streams[name]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return t, nil
}

func (sm *StreamsManager) DeleteStream(name string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	t, ok := sm.streams[name]
	if !ok {
		return ErrStreamNotFound
	}
	// disconnect all subscribers
	t.mu.Lock()
	for id, sub := range t.subscribers {
		go sub.Disconnect("STREAM_DELETED", "stream deleted")
		delete(t.subscribers, id)
		subscribersGauge.Dec()
	}
	t.mu.Unlock()
	delete(sm.streams, name)
	forgetStreamMetrics(name)
	return nil
}

// Publish appends recs in order and pushes one fresh snapshot to every
// subscriber. Records without an ID get a random one.
func (sm *StreamsManager) Publish(name string, recs ...Record) ([]Record, error) {
	t, err := sm.GetStream(name)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		t.stream.Append(rec)
		t.msgCount++
		out = append(out, rec)
	}
	t.fanOut()
	return out, nil
}

// fanOut must be called with t.mu held for writing.
func (t *Topic) fanOut() {
	for id, s := range t.subscribers {
		if s.push(s.view.Snapshot()) {
			continue
		}
		// backpressure overflow: disconnect slow consumer
		log.Printf("disconnecting slow consumer %s on stream %s", id, t.name)
		slowConsumers.Inc()
		subscribersGauge.Dec()
		delete(t.subscribers, id)
		go s.Disconnect("SLOW_CONSUMER", "subscriber queue overflow")
	}
}

// Subscribe attaches a new view to the stream and queues its first snapshot.
// An existing subscriber with the same id is replaced.
func (sm *StreamsManager) Subscribe(name, id string, opts window.ViewOptions, conn eventSink) (*Subscriber, error) {
	t, err := sm.GetStream(name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	view, err := window.NewView(t.stream, opts)
	if err != nil {
		return nil, err
	}
	sub := &Subscriber{
		id:     id,
		view:   view,
		send:   make(chan WindowUpdate, sm.queueSize),
		conn:   conn,
		closed: make(chan struct{}),
	}
	if old, ok := t.subscribers[id]; ok {
		old.Close()
	} else {
		subscribersGauge.Inc()
	}
	t.subscribers[id] = sub
	sub.push(view.Snapshot())
	return sub, nil
}

func (sm *StreamsManager) Unsubscribe(name, id string) error {
	t, err := sm.GetStream(name)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subscribers[id]
	if !ok {
		return ErrSubscriberAbsent
	}
	sub.Close()
	delete(t.subscribers, id)
	subscribersGauge.Dec()
	return nil
}

// detach removes sub only if it is still the registered subscriber for its id.
func (sm *StreamsManager) detach(name string, sub *Subscriber) {
	t, err := sm.GetStream(name)
	if err != nil {
		sub.Close()
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sub.Close()
	if cur, ok := t.subscribers[sub.id]; ok && cur == sub {
		delete(t.subscribers, sub.id)
		subscribersGauge.Dec()
	}
}

// Resize changes a subscriber's window size and pushes the result.
func (sm *StreamsManager) Resize(name, id string, size int) error {
	return sm.updateView(name, id, func(v *window.View[Record]) error {
		return v.SetSize(size)
	})
}

// Reposition anchors a subscriber's window at start and pushes the result.
func (sm *StreamsManager) Reposition(name, id string, start int) error {
	return sm.updateView(name, id, func(v *window.View[Record]) error {
		return v.SetStart(start)
	})
}

func (sm *StreamsManager) updateView(name, id string, fn func(*window.View[Record]) error) error {
	t, err := sm.GetStream(name)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subscribers[id]
	if !ok {
		return ErrSubscriberAbsent
	}
	if err := fn(sub.view); err != nil {
		return err
	}
	sub.push(sub.view.Snapshot())
	return nil
}

// Window materializes a one-off view without registering it.
func (sm *StreamsManager) Window(name string, opts window.ViewOptions) (WindowUpdate, error) {
	t, err := sm.GetStream(name)
	if err != nil {
		return WindowUpdate{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	view, err := window.NewView(t.stream, opts)
	if err != nil {
		return WindowUpdate{}, err
	}
	return view.Snapshot(), nil
}

func (sm *StreamsManager) Clusters(name string) (ClusterState, error) {
	t, err := sm.GetStream(name)
	if err != nil {
		return ClusterState{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ClusterState{Hierarchy: t.clusters.Hierarchy(), Selected: t.selection.Current()}, nil
}

// Select toggles the selected cluster on a stream; an empty name clears it.
func (sm *StreamsManager) Select(name, clusterName string) (string, error) {
	t, err := sm.GetStream(name)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if clusterName == "" {
		t.selection.Unselect()
		return "", nil
	}
	return t.selection.Select(clusterName), nil
}

func (sm *StreamsManager) ListStreams() []map[string]any {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]map[string]any, 0, len(sm.streams))
	for _, t := range sm.streams {
		t.mu.RLock()
		out = append(out, map[string]any{
			"name":        t.name,
			"capacity":    t.stream.Cap(),
			"length":      t.stream.Len(),
			"subscribers": len(t.subscribers),
		})
		t.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}

func (sm *StreamsManager) Health() map[string]any {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	subs := 0
	for _, t := range sm.streams {
		t.mu.RLock()
		subs += len(t.subscribers)
		t.mu.RUnlock()
	}
	return map[string]any{
		"uptime_sec":  int(time.Since(sm.start).Seconds()),
		"streams":     len(sm.streams),
		"subscribers": subs,
	}
}

func (sm *StreamsManager) Stats() map[string]any {
	stats := map[string]any{"streams": map[string]any{}}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	streams := stats["streams"].(map[string]any)
	for _, t := range sm.streams {
		t.mu.RLock()
		streams[t.name] = map[string]any{
			"messages":    t.msgCount,
			"total":       t.stream.Total(),
			"length":      t.stream.Len(),
			"capacity":    t.stream.Cap(),
			"subscribers": len(t.subscribers),
		}
		t.mu.RUnlock()
	}
	return stats
}

// CloseAll disconnects every subscriber, used on shutdown. Disconnects run
// after the locks are released and CloseAll waits for them.
func (sm *StreamsManager) CloseAll() {
	var subs []*Subscriber
	sm.mu.RLock()
	for _, t := range sm.streams {
		t.mu.Lock()
		for id, s := range t.subscribers {
			subs = append(subs, s)
			delete(t.subscribers, id)
			subscribersGauge.Dec()
		}
		t.mu.Unlock()
	}
	sm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *Subscriber) {
			defer wg.Done()
			s.Disconnect("SHUTDOWN", "server shutting down")
		}(s)
	}
	wg.Wait()
}

// push queues u without blocking and reports whether it fit.
func (s *Subscriber) push(u WindowUpdate) bool {
	select {
	case s.send <- u:
		return true
	default:
		return false
	}
}

func (s *Subscriber) ID() string { return s.id }

// Close stops the subscriber's writer loop. The connection stays open.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Disconnect reports code to the client and closes its connection.
func (s *Subscriber) Disconnect(code, reason string) {
	s.Close()
	if s.conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.conn.Write(ctx, ServerToClient{
		Type:  "error",
		Error: &ErrObj{Code: code, Message: reason},
		TS:    time.Now().UTC(),
	})
	_ = s.conn.Close(websocket.StatusPolicyViolation, fmt.Sprintf("%s: %s", code, reason))
}

// writeLoop sends queued snapshots as "window" frames until the subscriber
// closes or ctx ends. It returns the first write error.
func (s *Subscriber) writeLoop(ctx context.Context, streamName string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		case u := <-s.send:
			err := s.conn.Write(ctx, ServerToClient{
				Type:     "window",
				Stream:   streamName,
				ClientID: s.id,
				Window:   &u,
				TS:       time.Now().UTC(),
			})
			if err != nil {
				s.Close()
				return err
			}
			windowReads.WithLabelValues("push").Inc()
		}
	}
}
