// Package room runs one goroutine per live battle. Every move for a room id
// goes through that goroutine, so two submissions can never both be accepted
// as the current turn.
package room

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/DoyleJ11/poke-battle-backend/internal/engine"
	"github.com/DoyleJ11/poke-battle-backend/internal/types"
)

var (
	ErrClosed = errors.New("room closed")
	ErrBusy   = errors.New("room busy")
)

type Msg interface{ isRoomMsg() }

type Move struct {
	PlayerID  string
	MoveIndex int
}

func (Move) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	Status engine.Status
	Turns  int
	State  engine.TurnResult
}

// Finished is reported once, from the room goroutine, when a battle ends by faint.
type Finished struct {
	RoomID string
	Winner string
	Turns  int
}

type Config struct {
	RoomID     string
	Players    [2]engine.Player
	Outboxes   [2]chan<- types.ServerMessage
	Combatants [2]engine.Combatant
	Lookup     engine.MoveLookup
	Roller     engine.Roller
	OnFinish   func(Finished)
	Logger     *zap.Logger
}

type Room struct {
	id       string
	inbox    chan Msg
	battle   *engine.Battle
	opening  engine.TurnResult
	outboxes map[string]chan<- types.ServerMessage
	onFinish func(Finished)
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	turns    atomic.Int64
	winner   atomic.Pointer[string]
}

func New(parent context.Context, cfg Config) *Room {
	ctx, cancel := context.WithCancel(parent)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("room_id", cfg.RoomID))

	b := engine.NewBattle(cfg.RoomID, cfg.Players[0], cfg.Players[1], cfg.Combatants[0], cfg.Combatants[1],
		engine.Deps{Lookup: cfg.Lookup, Roller: cfg.Roller})

	r := &Room{
		id:      cfg.RoomID,
		inbox:   make(chan Msg, 64),
		battle:  b,
		opening: b.Snapshot(),
		outboxes: map[string]chan<- types.ServerMessage{
			cfg.Players[0].ID: cfg.Outboxes[0],
			cfg.Players[1].ID: cfg.Outboxes[1],
		},
		onFinish: cfg.OnFinish,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Opening is the battle state before the first move.
func (r *Room) Opening() engine.TurnResult { return r.opening }

// Submit queues m without blocking the caller.
func (r *Room) Submit(m Msg) error {
	if r.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case r.inbox <- m:
		return nil
	default:
		return ErrBusy
	}
}

// Turns is the number of resolved moves so far. Safe from any goroutine.
func (r *Room) Turns() int { return int(r.turns.Load()) }

// Winner is the player who won by faint, or "" while the battle is open.
// It is set before the final update is broadcast. Safe from any goroutine.
func (r *Room) Winner() string {
	if w := r.winner.Load(); w != nil {
		return *w
	}
	return ""
}

// Close ends the room immediately. A lookup in flight is abandoned and its
// turn discarded.
func (r *Room) Close() { r.cancel() }

// Done is closed once the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Move:
				r.handleMove(msg)

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Status: r.battle.Status,
					Turns:  r.battle.Turns,
					State:  r.battle.Snapshot(),
				}
			}
		}
	}
}

func (r *Room) handleMove(msg Move) {
	res, err := r.battle.ProcessMove(r.ctx, msg.PlayerID, msg.MoveIndex)
	if err != nil {
		if r.ctx.Err() != nil {
			r.logger.Debug("discarding turn for closed room", zap.String("player_id", msg.PlayerID))
			return
		}
		r.logger.Debug("move rejected", zap.String("player_id", msg.PlayerID), zap.Error(err))
		reply := types.Error(err.Error())
		if errors.Is(err, engine.ErrNotYourTurn) {
			reply.Data = types.ErrorPayload{Message: err.Error(), CurrentTurn: r.battle.CurrentTurn}
		}
		r.send(msg.PlayerID, reply)
		return
	}

	r.turns.Store(int64(r.battle.Turns))
	if res.GameOver {
		winner := res.Winner
		r.winner.Store(&winner)
	}
	r.broadcast(types.Update(res))

	if res.GameOver {
		r.logger.Info("battle finished", zap.String("winner", res.Winner), zap.Int("turns", r.battle.Turns))
		if r.onFinish != nil {
			r.onFinish(Finished{RoomID: r.id, Winner: res.Winner, Turns: r.battle.Turns})
		}
	}
}

func (r *Room) broadcast(m types.ServerMessage) {
	for id := range r.outboxes {
		r.send(id, m)
	}
}

// send never blocks the room; a full outbox loses the message.
func (r *Room) send(playerID string, m types.ServerMessage) {
	ch := r.outboxes[playerID]
	if ch == nil {
		return
	}
	select {
	case ch <- m:
	default:
		r.logger.Warn("outbox full, dropping message", zap.String("player_id", playerID), zap.String("type", m.Type))
	}
}
