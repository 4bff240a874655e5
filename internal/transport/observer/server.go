package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"taintcraft.ai/internal/observerproto"
	"taintcraft.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	sessions atomic.Int64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
	}
}

// Sessions is the number of connected observers.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		res, err := s.world.Submit(ctx, world.Command{Kind: world.CmdAgents})
		if err != nil {
			http.Error(rw, "world unavailable", http.StatusServiceUnavailable)
			return
		}

		cfg := s.world.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:        cfg.TickRateHz,
				ChunkSize:         [3]int{16, 16, 16},
				FloorY:            cfg.FloorY,
				Seed:              cfg.Seed,
				SimDistanceChunks: cfg.SimDistanceChunks,
				AuraBase:          cfg.AuraBase,
			},
			MaterialPalette: s.world.MaterialPalette(),
			TaintCells:      s.world.LastStats().Taint,
			Agents:          make([]observerproto.Agent, 0, len(res.Agents)),
		}
		for _, a := range res.Agents {
			resp.Agents = append(resp.Agents, observerproto.Agent{ID: a.ID, Kind: a.Kind, Pos: a.Pos, Status: a.Status})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		var filter atomic.Pointer[eventFilter]
		filter.Store(newEventFilter(sub.EventTypes))

		hub := s.world.Hub()
		id, ticks := hub.Subscribe(16)
		defer hub.Unsubscribe(id)
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		if s.log != nil {
			s.log.Printf("observer %d connected from %s", id, r.RemoteAddr)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-ticks:
					if !ok {
						writeErr <- nil
						return
					}
					out, send := filter.Load().apply(b)
					if !send {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				filter.Store(newEventFilter(sub.EventTypes))
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	return sub, true
}

// eventFilter turns hub payloads into TickMsg frames. A nil set forwards
// every tick.
type eventFilter struct {
	types map[string]bool
}

func newEventFilter(types []string) *eventFilter {
	f := &eventFilter{}
	if len(types) == 0 {
		return f
	}
	f.types = make(map[string]bool, len(types))
	for _, t := range types {
		f.types[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	return f
}

func (f *eventFilter) apply(raw []byte) ([]byte, bool) {
	var e world.TickLogEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	msg := observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		WorldID:         e.World,
		Tick:            e.Tick,
		Digest:          e.Digest,
		TaintCells:      e.Taint,
		Agents:          e.Agents,
	}
	for _, ev := range e.Events {
		if f.types != nil && !f.types[ev.Kind] {
			continue
		}
		msg.Events = append(msg.Events, observerproto.Event{Type: ev.Kind, Pos: ev.Pos, From: ev.From, To: ev.To, Agent: ev.Agent})
	}
	if f.types != nil && len(msg.Events) == 0 {
		return nil, false
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return b, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
