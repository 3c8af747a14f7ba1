package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/poke-battle-backend/internal/hub"
	"github.com/DoyleJ11/poke-battle-backend/internal/types"
	wire "github.com/DoyleJ11/poke-battle-backend/pkg/types"
)

// recordingHub keeps every message and echoes a status on FindMatch.
type recordingHub struct {
	mu     sync.Mutex
	msgs   []hub.HubMsg
	outbox chan<- types.ServerMessage
}

func (f *recordingHub) Send(m hub.HubMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	switch msg := m.(type) {
	case hub.Connect:
		f.outbox = msg.Outbox
	case hub.FindMatch:
		f.outbox <- types.ServerMessage{Type: wire.MatchStatus, Data: types.MatchStatus{Status: wire.StatusSearching}}
	}
	return nil
}

func (f *recordingHub) received() []hub.HubMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hub.HubMsg(nil), f.msgs...)
}

type frame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func dial(t *testing.T, h *recordingHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(Handler(h, Options{}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var f frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func TestHandler_RoutesClientMessages(t *testing.T) {
	h := &recordingHub{}
	conn := dial(t, h)
	ctx := context.Background()

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "findMatch", "name": "Ash"}))
	f := read(t, conn)
	assert.Equal(t, wire.MatchStatus, f.Type)
	assert.Equal(t, "searching", f.Data["status"])

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "pokemonChosen", "pokemon": map[string]any{"id": 25}}))
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "playerMove", "moveIndex": 2}))
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "exitGame"}))
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	require.Eventually(t, func() bool { return len(h.received()) == 6 }, time.Second, 10*time.Millisecond)
	msgs := h.received()

	connect := msgs[0].(hub.Connect)
	id := connect.PlayerID
	assert.NotEmpty(t, id)
	assert.Equal(t, hub.FindMatch{PlayerID: id, Name: "Ash"}, msgs[1])
	assert.Equal(t, hub.ChoosePokemon{PlayerID: id, PokemonID: 25}, msgs[2])
	assert.Equal(t, hub.PlayerMove{PlayerID: id, MoveIndex: 2}, msgs[3])
	assert.Equal(t, hub.ExitGame{PlayerID: id}, msgs[4])
	assert.Equal(t, hub.Disconnect{PlayerID: id}, msgs[5])
}

func TestHandler_RejectsBadFrames(t *testing.T) {
	h := &recordingHub{}
	conn := dial(t, h)
	defer conn.CloseNow()
	ctx := context.Background()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	f := read(t, conn)
	assert.Equal(t, wire.Error, f.Type)
	assert.Equal(t, "bad json", f.Data["message"])

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "dance"}))
	f = read(t, conn)
	assert.Equal(t, "unknown type", f.Data["message"])

	assert.Len(t, h.received(), 1)
}
