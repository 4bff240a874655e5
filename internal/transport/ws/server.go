package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"taintcraft.ai/internal/protocol"
	"taintcraft.ai/internal/sim/voxel"
	"taintcraft.ai/internal/sim/world"
)

const (
	submitTimeout = 2 * time.Second
	// Commands per session per second.
	defaultRateLimit = 20
)

// Server is the control channel: every connection joins the world as a
// player and may send commands that act at that player's behest.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader  websocket.Upgrader
	rateLimit int
	sessions  atomic.Int64
	now       func() time.Time
	write     func(*websocket.Conn, any) error
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		rateLimit: defaultRateLimit,
		now:       time.Now,
		write:     writeJSON,
	}
}

// SetRateLimit caps commands per session per second; n <= 0 disables it.
func (s *Server) SetRateLimit(n int) { s.rateLimit = n }

func (s *Server) Sessions() int { return int(s.sessions.Load()) }

type session struct {
	agentID string
	planted map[string]struct{}

	windowStart time.Time
	windowCount int
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, out := s.handshake(conn)
		if sess == nil {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			res := s.handle(ctx, sess, msg)
			b, err := json.Marshal(res)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}

		// Cleanup. Seeds planted by the session stay in the world.
		s.removeAgent(sess.agentID)
	}
}

func (s *Server) removeAgent(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if _, err := s.world.Submit(ctx, world.Command{Kind: world.CmdRemoveAgent, AgentID: id}); err != nil && !errors.Is(err, world.ErrStopped) {
		s.log.Printf("remove %s: %v", id, err)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*session, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return nil, nil
	}
	if base.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return nil, nil
	}
	hello, err := protocol.DecodeHello(msg)
	if err != nil {
		closePolicy(conn, "bad HELLO")
		return nil, nil
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	res, err := s.world.Submit(ctx, world.Command{Kind: world.CmdAddPlayer, Pos: voxel.FromArray(hello.Spawn)})
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "world unavailable"), time.Now().Add(time.Second))
		return nil, nil
	}

	cfg := s.world.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         res.AgentID,
		WorldID:         cfg.ID,
		Tick:            s.world.CurrentTick(),
		WorldParams: protocol.WorldParams{
			TickRateHz:        cfg.TickRateHz,
			FloorY:            cfg.FloorY,
			Seed:              cfg.Seed,
			SimDistanceChunks: cfg.SimDistanceChunks,
		},
		PaletteDigest: s.world.Catalogs().Materials.PaletteDigest,
	}
	if err := s.write(conn, welcome); err != nil {
		s.removeAgent(res.AgentID)
		return nil, nil
	}
	s.log.Printf("session %s joined as %s at %v", hello.AgentName, res.AgentID, hello.Spawn)
	return &session{agentID: res.AgentID, planted: map[string]struct{}{}}, make(chan []byte, maxQ)
}

func (s *Server) handle(ctx context.Context, sess *session, msg []byte) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version}
	fail := func(code, text string) protocol.ResultMsg {
		res.Code, res.Message = code, text
		res.Tick = s.world.CurrentTick()
		return res
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeCmd {
		return fail(protocol.ErrProtoBadRequest, "expected CMD")
	}
	cmd, err := protocol.DecodeCmd(msg)
	res.ID = cmd.ID
	if err != nil {
		var probe struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(msg, &probe)
		res.ID = probe.ID
		return fail(protocol.ErrProtoBadRequest, err.Error())
	}
	if cmd.ProtocolVersion != protocol.Version {
		return fail(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if !s.allow(sess) {
		return fail(protocol.ErrRateLimit, "too many commands")
	}

	pos := voxel.FromArray(cmd.Pos)
	wc := world.Command{Pos: pos}
	switch cmd.Kind {
	case protocol.CmdMove:
		wc.Kind, wc.AgentID = world.CmdMoveAgent, sess.agentID
	case protocol.CmdPlantSeed:
		wc.Kind = world.CmdAddSeed
	case protocol.CmdUprootSeed:
		if _, ok := sess.planted[cmd.AgentID]; !ok {
			return fail(protocol.ErrNoPermission, "seed not planted by this session")
		}
		wc.Kind, wc.AgentID = world.CmdRemoveAgent, cmd.AgentID
	case protocol.CmdHarvest:
		wc.Kind = world.CmdHarvest
	case protocol.CmdSpread:
		wc.Kind = world.CmdForceSpread
	case protocol.CmdPlace:
		m, ok := s.world.Catalogs().Materials.ID(strings.ToUpper(strings.TrimSpace(cmd.Material)))
		if !ok || m == voxel.Air {
			return fail(protocol.ErrBadRequest, "unknown material "+cmd.Material)
		}
		wc.Kind, wc.Cell = world.CmdSetCell, voxel.Solid(m)
	case protocol.CmdBreak:
		wc.Kind, wc.Cell = world.CmdSetCell, voxel.Empty()
	default:
		return fail(protocol.ErrBadRequest, "unknown kind "+cmd.Kind)
	}

	sctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	out, err := s.world.Submit(sctx, wc)
	switch {
	case errors.Is(err, world.ErrStopped):
		return fail(protocol.ErrWorldNotFound, "world stopped")
	case err != nil:
		return fail(protocol.ErrWorldBusy, err.Error())
	case out.Err != nil:
		return fail(protocol.ErrInternal, out.Err.Error())
	}

	res.Tick = s.world.CurrentTick()
	res.OK = out.OK
	switch cmd.Kind {
	case protocol.CmdPlantSeed:
		sess.planted[out.AgentID] = struct{}{}
		res.AgentID = out.AgentID
	case protocol.CmdUprootSeed:
		delete(sess.planted, cmd.AgentID)
	case protocol.CmdHarvest:
		if !out.OK {
			return fail(protocol.ErrInvalidTarget, "not contaminated")
		}
		for _, d := range out.Drops {
			res.Drops = append(res.Drops, protocol.Drop{Item: d.Item, Count: d.Count})
		}
	case protocol.CmdSpread:
		// A spread that converts nothing is still a successful command.
		res.OK = true
		res.Spread = &protocol.SpreadResult{
			Converted: out.Spread.Converted,
			Target:    out.Spread.Target.ToArray(),
			Reason:    string(out.Spread.Reason),
		}
		if out.Spread.Converted {
			res.Spread.Path = out.Spread.Path.String()
			res.Spread.Cell = out.Spread.Cell.String()
		}
	}
	if !res.OK && res.Code == "" {
		res.Code = protocol.ErrInvalidTarget
	}
	return res
}

func (s *Server) allow(sess *session) bool {
	if s.rateLimit <= 0 {
		return true
	}
	now := s.now()
	if now.Sub(sess.windowStart) >= time.Second {
		sess.windowStart = now
		sess.windowCount = 0
	}
	sess.windowCount++
	return sess.windowCount <= s.rateLimit
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
