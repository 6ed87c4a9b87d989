package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/protocol"
	"spancraft.ai/internal/sim/tuning"
	"spancraft.ai/internal/sim/world"
)

func flatTuning() tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.World.RandomTerrain = false
	cfg.Poles.RandomCount = 0
	return cfg
}

func startWorld(t *testing.T, cfg tuning.Tuning) *world.World {
	t.Helper()
	w, err := world.New(cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func dial(t *testing.T, w *world.World) *gws.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(w, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// next reads frames until one of the wanted type arrives.
func next(t *testing.T, conn *gws.Conn, typ string) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		base, err := protocol.DecodeBase(msg)
		require.NoError(t, err)
		if base.Type == typ {
			return msg
		}
	}
}

func send(t *testing.T, conn *gws.Conn, m protocol.CmdMsg) {
	t.Helper()
	m.Type = protocol.TypeCmd
	m.ProtocolVersion = protocol.Version
	require.NoError(t, conn.WriteJSON(m))
}

func ack(t *testing.T, conn *gws.Conn) protocol.AckMsg {
	t.Helper()
	var a protocol.AckMsg
	require.NoError(t, json.Unmarshal(next(t, conn, protocol.TypeAck), &a))
	return a
}

func TestServer_WelcomeAndCommands(t *testing.T) {
	w := startWorld(t, flatTuning())
	conn := dial(t, w)

	var welcome protocol.WelcomeMsg
	require.NoError(t, json.Unmarshal(next(t, conn, protocol.TypeWelcome), &welcome))
	assert.Equal(t, 40, welcome.WorldParams.SizeX)
	assert.Equal(t, "parabolic", welcome.WorldParams.CurveMode)
	assert.Contains(t, welcome.Palette, "pole")

	a, b := [3]int{0, 1, 0}, [3]int{5, 1, 0}
	send(t, conn, protocol.CmdMsg{ID: "1", Kind: "place_block", Pos: &a, Block: "pole"})
	assert.True(t, ack(t, conn).Accepted)
	send(t, conn, protocol.CmdMsg{ID: "2", Kind: "place_block", Pos: &b, Block: "pole"})
	assert.True(t, ack(t, conn).Accepted)
	send(t, conn, protocol.CmdMsg{ID: "3", Kind: "place_conductor", From: &a, To: &b})
	assert.True(t, ack(t, conn).Accepted)

	send(t, conn, protocol.CmdMsg{ID: "4", Kind: "place_block", Pos: &a, Block: "brick"})
	got := ack(t, conn)
	assert.False(t, got.Accepted)
	assert.Equal(t, "4", got.AckFor)
	assert.Equal(t, protocol.ErrOccupied, got.Code)

	// The first STATE frames may predate the conductor.
	var state protocol.StateMsg
	for i := 0; i < 50 && len(state.Conductors) == 0; i++ {
		require.NoError(t, json.Unmarshal(next(t, conn, protocol.TypeState), &state))
	}
	require.Len(t, state.Conductors, 1)
	assert.Equal(t, 2, state.Poles)
	assert.False(t, state.Conductors[0].Faulted)
	assert.Equal(t, "inactive", state.Challenge.State)
}

func TestServer_SceneExportImport(t *testing.T) {
	w := startWorld(t, flatTuning())
	conn := dial(t, w)
	next(t, conn, protocol.TypeWelcome)

	p := [3]int{3, 1, 3}
	send(t, conn, protocol.CmdMsg{ID: "a", Kind: "place_block", Pos: &p, Block: "metal-pole"})
	require.True(t, ack(t, conn).Accepted)

	send(t, conn, protocol.CmdMsg{ID: "x", Kind: protocol.KindExportScene})
	var sm protocol.SceneMsg
	require.NoError(t, json.Unmarshal(next(t, conn, protocol.TypeScene), &sm))
	assert.Equal(t, "x", sm.AckFor)
	scene, err := snapshot.DecodeJSON(sm.Scene)
	require.NoError(t, err)
	require.Len(t, scene.Poles, 1)

	send(t, conn, protocol.CmdMsg{ID: "r", Kind: "reset"})
	require.True(t, ack(t, conn).Accepted)
	send(t, conn, protocol.CmdMsg{ID: "i", Kind: "import_scene", Scene: sm.Scene})
	require.True(t, ack(t, conn).Accepted)

	send(t, conn, protocol.CmdMsg{ID: "bad", Kind: "import_scene", Scene: json.RawMessage(`{"blocks":[]}`)})
	got := ack(t, conn)
	assert.False(t, got.Accepted)
	assert.Equal(t, protocol.ErrInvalidScene, got.Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := flatTuning()
	cfg.RateLimits = tuning.RateLimitTuning{CmdWindowTicks: 1 << 20, CmdMax: 2}
	w := startWorld(t, cfg)
	conn := dial(t, w)
	next(t, conn, protocol.TypeWelcome)
	for i := 0; i < 2; i++ {
		send(t, conn, protocol.CmdMsg{ID: "u", Kind: "undo"})
		assert.Equal(t, protocol.ErrStale, ack(t, conn).Code)
	}
	send(t, conn, protocol.CmdMsg{ID: "u", Kind: "undo"})
	got := ack(t, conn)
	assert.False(t, got.Accepted)
	assert.Equal(t, protocol.ErrRateLimit, got.Code)
}

func TestServer_RejectsNonCmd(t *testing.T) {
	w := startWorld(t, flatTuning())
	conn := dial(t, w)
	next(t, conn, protocol.TypeWelcome)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"type":"HELLO","protocol_version":"1.0"}`)))
	var em protocol.ErrorMsg
	require.NoError(t, json.Unmarshal(next(t, conn, protocol.TypeError), &em))
	assert.Equal(t, protocol.ErrProtoBadRequest, em.Code)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"type":"CMD","protocol_version":"0.1","id":"z","kind":"undo"}`)))
	require.NoError(t, json.Unmarshal(next(t, conn, protocol.TypeError), &em))
	assert.Equal(t, protocol.ErrProtoBadRequest, em.Code)
}
