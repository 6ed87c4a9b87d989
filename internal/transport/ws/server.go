package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/protocol"
	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world"
	"spancraft.ai/internal/sim/world/logic/rates"
)

const (
	cmdTimeout   = 5 * time.Second
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

type Server struct {
	world *world.World
	log   zerolog.Logger

	upgrader websocket.Upgrader
	nextConn atomic.Uint64
}

func NewServer(w *world.World, logger zerolog.Logger) *Server {
	return &Server{
		world: w,
		log:   logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		connID := s.nextConn.Add(1)
		log := s.log.With().Uint64("conn", connID).Logger()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		welcome, limit, err := s.welcome(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("welcome failed")
			return
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}
		log.Info().Str("remote", r.RemoteAddr).Msg("client connected")

		subID, views := s.world.Subscribe()
		defer s.world.Unsubscribe(subID)

		out := make(chan []byte, 32)

		// Writer goroutine.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case v, ok := <-views:
					if !ok {
						cancel()
						return
					}
					b, _ = json.Marshal(StateMsg(v))
				case b = <-out:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			reply := s.handle(ctx, msg, &limit)
			b, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		log.Info().Msg("client disconnected")
	}
}

func (s *Server) welcome(ctx context.Context) (protocol.WelcomeMsg, rates.Window, error) {
	msg := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PaletteDigest:   catalogs.PaletteDigest(),
	}
	for _, b := range catalogs.Palette() {
		msg.Palette = append(msg.Palette, b.String())
	}
	var limit rates.Window
	qctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()
	err := s.world.Query(qctx, func(w *world.World) {
		cfg := w.Tuning()
		limit = rates.Window{Size: cfg.RateLimits.CmdWindowTicks, Max: cfg.RateLimits.CmdMax}
		msg.Tick = w.CurrentTick()
		msg.WorldParams = protocol.WorldParams{
			TickRateHz: cfg.TickRateHz,
			SizeX:      cfg.World.SizeX,
			SizeZ:      cfg.World.SizeZ,
			Seed:       cfg.Seed,
			CurveMode:  cfg.Conductor.CurveMode,
			SagRatio:   cfg.Conductor.SagRatio,
		}
	})
	return msg, limit, err
}

// handle turns one inbound frame into the message sent back for it.
func (s *Server) handle(ctx context.Context, raw []byte, limit *rates.Window) any {
	base, err := protocol.DecodeBase(raw)
	if err != nil || base.Type != protocol.TypeCmd {
		return errorMsg(protocol.ErrProtoBadRequest, "expected CMD")
	}
	if base.ProtocolVersion != protocol.Version {
		return errorMsg(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	var msg protocol.CmdMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errorMsg(protocol.ErrProtoBadRequest, err.Error())
	}

	if ok, cool := limit.Allow(s.world.CurrentTick()); !ok {
		a := s.ack(msg.ID, nil)
		a.Accepted = false
		a.Code = protocol.ErrRateLimit
		a.Message = fmt.Sprintf("rate limited; retry in %d ticks", cool)
		return a
	}

	cctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()

	if msg.Kind == protocol.KindExportScene {
		var scene snapshot.SceneV1
		if err := s.world.Query(cctx, func(w *world.World) { scene = w.Export() }); err != nil {
			return s.ack(msg.ID, err)
		}
		body, err := snapshot.EncodeJSON(scene)
		if err != nil {
			return s.ack(msg.ID, err)
		}
		return protocol.SceneMsg{Type: protocol.TypeScene, ProtocolVersion: protocol.Version, AckFor: msg.ID, Scene: body}
	}

	cmd, err := ToCommand(msg)
	if err != nil {
		return s.ack(msg.ID, err)
	}
	return s.ack(msg.ID, s.world.Submit(cctx, cmd))
}

func (s *Server) ack(id string, err error) protocol.AckMsg {
	a := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          id,
		Accepted:        err == nil,
		ServerTick:      s.world.CurrentTick(),
	}
	if err != nil {
		a.Code = CodeFor(err)
		a.Message = err.Error()
		if a.Code == protocol.ErrInternal {
			s.log.Error().Err(err).Str("ack_for", id).Msg("command failed")
		}
	}
	return a
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code, Message: message}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
