package world

import (
	"encoding/json"
	"sync"
)

// Event is one line of the per-tick event stream.
type Event struct {
	Tick  uint64 `json:"t"`
	World string `json:"world"`
	Kind  string `json:"type"`
	Pos   [3]int `json:"pos"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Agent string `json:"agent,omitempty"`
}

// TickLogEntry is written once per tick to the event sink.
type TickLogEntry struct {
	Tick   uint64  `json:"tick"`
	World  string  `json:"world"`
	Digest string  `json:"digest"`
	Taint  int     `json:"taint"`
	Agents int     `json:"agents"`
	Events []Event `json:"events,omitempty"`
}

type EventSink interface {
	WriteTick(entry TickLogEntry) error
}

type multiSink []EventSink

func (m multiSink) WriteTick(e TickLogEntry) error {
	var first error
	for _, s := range m {
		if err := s.WriteTick(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Sinks fans a tick entry out to every non-nil sink.
func Sinks(sinks ...EventSink) EventSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Hub fans tick entries out to observer connections. Slow subscribers lose
// older messages, never the newest one.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan []byte
}

func NewHub() *Hub {
	return &Hub{subs: map[uint64]chan []byte{}}
}

func (h *Hub) Subscribe(buf int) (uint64, <-chan []byte) {
	if buf <= 0 {
		buf = 16
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan []byte, buf)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) publish(e TickLogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	for _, ch := range h.subs {
		sendLatest(ch, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
