package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/poke-battle-backend/internal/hub"
	"github.com/DoyleJ11/poke-battle-backend/internal/types"
	wire "github.com/DoyleJ11/poke-battle-backend/pkg/types"
)

const outboxSize = 16

// Sender is the part of the hub a connection talks to.
type Sender interface {
	Send(m hub.HubMsg) error
}

type Options struct {
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
	Logger         *zap.Logger
}

func Handler(h Sender, opts Options) http.HandlerFunc {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		playerID := uuid.NewString()
		logger := opts.Logger.With(zap.String("player_id", playerID))

		out := make(chan types.ServerMessage, outboxSize)
		if err := h.Send(hub.Connect{PlayerID: playerID, Outbox: out}); err != nil {
			conn.Close(websocket.StatusTryAgainLater, "server shutting down")
			return
		}
		logger.Info("player connected", zap.String("remote", r.RemoteAddr))
		defer func() { _ = h.Send(hub.Disconnect{PlayerID: playerID}) }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case m := <-out:
					ctx, cancel := context.WithTimeout(writeCtx, opts.WriteTimeout)
					err := wsjson.Write(ctx, conn, m)
					cancel()
					if err != nil {
						logger.Debug("write failed", zap.String("type", m.Type), zap.Error(err))
						conn.CloseNow()
						return
					}
				}
			}
		}()

		reply := func(m types.ServerMessage) {
			select {
			case out <- m:
			default:
			}
		}

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), opts.IdleTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						logger.Debug("read ended", zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reply(types.Error("bad json"))
				continue
			}

			msg, ok := toHubMsg(playerID, cm)
			if !ok {
				reply(types.Error("unknown type"))
				continue
			}
			if err := h.Send(msg); err != nil {
				return
			}
		}
	}
}

func toHubMsg(playerID string, m types.ClientMessage) (hub.HubMsg, bool) {
	switch m.Type {
	case wire.FindMatch:
		// "find" and "rematch" both re-enter the queue
		return hub.FindMatch{PlayerID: playerID, Name: m.Name}, true
	case wire.PokemonChosen:
		return hub.ChoosePokemon{PlayerID: playerID, PokemonID: m.ChosenID()}, true
	case wire.PlayerMove:
		return hub.PlayerMove{PlayerID: playerID, MoveIndex: m.MoveIndex}, true
	case wire.ExitGame:
		return hub.ExitGame{PlayerID: playerID}, true
	default:
		return nil, false
	}
}
