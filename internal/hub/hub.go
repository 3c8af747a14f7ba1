// Package hub is the matchmaking coordinator. A single goroutine owns the
// waiting queue, the pick-phase selections and the table of live rooms;
// everything else talks to it through its inbox.
package hub

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/poke-battle-backend/internal/engine"
	"github.com/DoyleJ11/poke-battle-backend/internal/history"
	"github.com/DoyleJ11/poke-battle-backend/internal/room"
	"github.com/DoyleJ11/poke-battle-backend/internal/roster"
	"github.com/DoyleJ11/poke-battle-backend/internal/types"
	wire "github.com/DoyleJ11/poke-battle-backend/pkg/types"
)

var ErrStopped = errors.New("hub stopped")

const (
	msgNotInBattle      = "not in a battle"
	msgAlreadyQueued    = "already in matchmaking or battle"
	msgNoSelection      = "no selection in progress"
	msgFailedToStart    = "Failed to start battle"
	msgBattleBusy       = "battle busy, try again"
	defaultDisplayName  = "Trainer"
	defaultOptionsCount = 3
	defaultFetchTimeout = 10 * time.Second
	recordTimeout       = 5 * time.Second
)

type HubMsg interface{ isHubMsg() }

// Connect registers where a player's outbound messages go.
type Connect struct {
	PlayerID string
	Outbox   chan<- types.ServerMessage
}

type FindMatch struct {
	PlayerID string
	Name     string
}

type ChoosePokemon struct {
	PlayerID  string
	PokemonID int
}

type PlayerMove struct {
	PlayerID  string
	MoveIndex int
}

type Disconnect struct{ PlayerID string }

type ExitGame struct{ PlayerID string }

type GetView struct {
	Reply chan View
}

type ShutdownHub struct{}

type optionsReady struct {
	pairID  string
	options [2][]engine.Combatant
	err     error
}

type roomFinished struct{ fin room.Finished }

func (Connect) isHubMsg()       {}
func (FindMatch) isHubMsg()     {}
func (ChoosePokemon) isHubMsg() {}
func (PlayerMove) isHubMsg()    {}
func (Disconnect) isHubMsg()    {}
func (ExitGame) isHubMsg()      {}
func (GetView) isHubMsg()       {}
func (ShutdownHub) isHubMsg()   {}
func (optionsReady) isHubMsg()  {}
func (roomFinished) isHubMsg()  {}

// View is a read-only copy of the hub's bookkeeping.
type View struct {
	Waiting  []string          // player ids in queue order
	Pairings int               // pairs still in the pick phase
	Rooms    []string          // live room ids
	InRoom   map[string]string // player id -> room id
	Players  int
}

type Deps struct {
	Roster           roster.Provider
	Recorder         history.Recorder // optional
	Logger           *zap.Logger
	OptionsPerPlayer int
	FetchTimeout     time.Duration
	// NewRoomID and NewRoller exist so tests can pin ids and dice.
	NewRoomID func() string
	NewRoller func() engine.Roller
}

type phase int

const (
	phaseIdle phase = iota
	phaseWaiting
	phasePicking
	phaseBattling
)

type player struct {
	id       string
	name     string
	outbox   chan<- types.ServerMessage
	phase    phase
	opponent string
	pairID   string
	roomID   string
}

type waitingEntry struct {
	playerID string
	name     string
}

// selection is one player's pick-phase record. selecting is true only while
// an offer is outstanding, so a duplicate choice is dropped.
type selection struct {
	playerID  string
	options   []engine.Combatant
	selecting bool
	chosen    *engine.Combatant
}

type pairing struct {
	id    string
	sides [2]*selection
}

func (p *pairing) side(playerID string) *selection {
	for _, s := range p.sides {
		if s.playerID == playerID {
			return s
		}
	}
	return nil
}

type liveRoom struct {
	room    *room.Room
	players [2]engine.Player
	pokemon [2]string
}

type Hub struct {
	inbox   chan HubMsg
	players map[string]*player
	queue   []waitingEntry
	pairs   map[string]*pairing
	rooms   map[string]*liveRoom
	deps    Deps
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.OptionsPerPlayer <= 0 {
		deps.OptionsPerPlayer = defaultOptionsCount
	}
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = defaultFetchTimeout
	}
	if deps.NewRoomID == nil {
		deps.NewRoomID = func() string { return "battle_" + uuid.NewString() }
	}
	if deps.NewRoller == nil {
		deps.NewRoller = func() engine.Roller { return engine.NewRoller(0) }
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		players: make(map[string]*player),
		pairs:   make(map[string]*pairing),
		rooms:   make(map[string]*liveRoom),
		deps:    deps,
		logger:  deps.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

// Send delivers m to the hub, or returns ErrStopped once it has shut down.
func (h *Hub) Send(m HubMsg) error {
	if h.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrStopped
	}
}

// Snapshot asks the hub loop for a View.
func (h *Hub) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := h.Send(GetView{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-h.ctx.Done():
		return View{}, ErrStopped
	}
}

// post is used by goroutines the hub itself started.
func (h *Hub) post(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				p := h.player(msg.PlayerID)
				p.outbox = msg.Outbox

			case FindMatch:
				h.enqueue(msg.PlayerID, msg.Name)

			case ChoosePokemon:
				h.onPlayerChosen(msg.PlayerID, msg.PokemonID)

			case PlayerMove:
				h.routeMove(msg.PlayerID, msg.MoveIndex)

			case Disconnect:
				h.handleDisconnect(msg.PlayerID)

			case ExitGame:
				h.handleExit(msg.PlayerID)

			case optionsReady:
				h.deliverOptions(msg)

			case roomFinished:
				h.closeFinished(msg.fin)

			case GetView:
				msg.Reply <- h.view()

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) player(id string) *player {
	p := h.players[id]
	if p == nil {
		p = &player{id: id}
		h.players[id] = p
	}
	return p
}

func (h *Hub) send(playerID string, m types.ServerMessage) {
	p := h.players[playerID]
	if p == nil || p.outbox == nil {
		return
	}
	select {
	case p.outbox <- m:
	default:
		h.logger.Warn("outbox full, dropping message", zap.String("player_id", playerID), zap.String("type", m.Type))
	}
}

func (h *Hub) enqueue(playerID, name string) {
	p := h.player(playerID)
	if p.phase != phaseIdle {
		h.send(playerID, types.Error(msgAlreadyQueued))
		return
	}
	if name == "" {
		name = defaultDisplayName
	}
	p.name = name
	p.phase = phaseWaiting
	h.queue = append(h.queue, waitingEntry{playerID: playerID, name: name})
	h.logger.Info("player searching", zap.String("player_id", playerID), zap.String("name", name))

	h.send(playerID, types.ServerMessage{Type: wire.MatchStatus, Data: types.MatchStatus{Status: wire.StatusSearching}})
	h.tryPairAll()
}

// tryPairAll pairs the two oldest waiting entries until fewer than two remain.
func (h *Hub) tryPairAll() {
	for len(h.queue) >= 2 {
		a, b := h.queue[0], h.queue[1]
		h.queue = h.queue[2:]

		h.send(a.playerID, types.ServerMessage{Type: wire.MatchStatus, Data: types.MatchStatus{Status: wire.StatusFound, Opponent: b.name}})
		h.send(b.playerID, types.ServerMessage{Type: wire.MatchStatus, Data: types.MatchStatus{Status: wire.StatusFound, Opponent: a.name}})
		h.beginPickPhase(a.playerID, b.playerID)
	}
}

// beginPickPhase fetches both option sets off the hub goroutine; the result
// comes back as optionsReady.
func (h *Hub) beginPickPhase(p1, p2 string) {
	pr := &pairing{
		id:    uuid.NewString(),
		sides: [2]*selection{{playerID: p1}, {playerID: p2}},
	}
	h.pairs[pr.id] = pr
	for i, id := range []string{p1, p2} {
		p := h.players[id]
		p.phase = phasePicking
		p.pairID = pr.id
		p.opponent = pr.sides[1-i].playerID
	}
	h.logger.Info("match found", zap.String("pair_id", pr.id), zap.String("player1", p1), zap.String("player2", p2))

	n := h.deps.OptionsPerPlayer
	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, h.deps.FetchTimeout)
		defer cancel()

		res := optionsReady{pairID: pr.id}
		g, gctx := errgroup.WithContext(ctx)
		for i := range res.options {
			g.Go(func() error {
				opts, err := h.deps.Roster.FetchOptions(gctx, n)
				res.options[i] = opts
				return err
			})
		}
		res.err = g.Wait()
		h.post(res)
	}()
}

func (h *Hub) deliverOptions(msg optionsReady) {
	pr := h.pairs[msg.pairID]
	if pr == nil {
		// a player left while options were being fetched
		return
	}
	if msg.err != nil {
		h.logger.Warn("option generation failed", zap.String("pair_id", pr.id), zap.Error(msg.err))
		delete(h.pairs, pr.id)
		for _, s := range pr.sides {
			h.send(s.playerID, types.Error(msgFailedToStart))
			h.reset(s.playerID)
		}
		return
	}
	for i, s := range pr.sides {
		s.options = msg.options[i]
		s.selecting = true
		h.offer(s, wire.PromptChoose)
	}
}

func (h *Hub) offer(s *selection, prompt string) {
	h.send(s.playerID, types.ServerMessage{
		Type: wire.PokemonSelection,
		Data: types.SelectionOffer{Options: s.options, Message: prompt},
	})
}

func (h *Hub) onPlayerChosen(playerID string, pokemonID int) {
	p := h.players[playerID]
	if p == nil {
		return
	}
	switch p.phase {
	case phaseBattling:
		return
	case phasePicking:
	default:
		h.send(playerID, types.Error(msgNoSelection))
		return
	}

	pr := h.pairs[p.pairID]
	s := pr.side(playerID)
	if !s.selecting {
		h.logger.Debug("ignoring duplicate selection", zap.String("player_id", playerID))
		return
	}

	idx := slices.IndexFunc(s.options, func(c engine.Combatant) bool { return c.ID == pokemonID })
	if idx < 0 {
		h.offer(s, wire.PromptInvalidSelection)
		return
	}
	chosen := s.options[idx].Clone()
	s.chosen = &chosen
	s.selecting = false
	h.send(p.opponent, types.Notice(wire.OpponentChosePokemon))

	if pr.sides[0].chosen != nil && pr.sides[1].chosen != nil {
		h.createSession(pr)
	}
}

func (h *Hub) createSession(pr *pairing) {
	delete(h.pairs, pr.id)

	p1, p2 := h.players[pr.sides[0].playerID], h.players[pr.sides[1].playerID]
	roomID := h.deps.NewRoomID()
	players := [2]engine.Player{{ID: p1.id, Name: p1.name}, {ID: p2.id, Name: p2.name}}

	r := room.New(h.ctx, room.Config{
		RoomID:     roomID,
		Players:    players,
		Outboxes:   [2]chan<- types.ServerMessage{p1.outbox, p2.outbox},
		Combatants: [2]engine.Combatant{*pr.sides[0].chosen, *pr.sides[1].chosen},
		Lookup:     h.moveLookup(roomID),
		Roller:     h.deps.NewRoller(),
		OnFinish:   func(fin room.Finished) { go h.post(roomFinished{fin: fin}) },
		Logger:     h.logger,
	})
	h.rooms[roomID] = &liveRoom{
		room:    r,
		players: players,
		pokemon: [2]string{pr.sides[0].chosen.Name, pr.sides[1].chosen.Name},
	}
	for _, p := range []*player{p1, p2} {
		p.phase = phaseBattling
		p.pairID = ""
		p.roomID = roomID
	}

	opening := r.Opening()
	h.send(p1.id, types.ServerMessage{Type: wire.BattleStart, Data: types.BattleStart{
		RoomID:          roomID,
		YourPokemon:     opening.Pokemon1,
		OpponentPokemon: opening.Pokemon2,
		CurrentTurn:     opening.CurrentTurn == p1.id,
		OpponentName:    p2.name,
	}})
	h.send(p2.id, types.ServerMessage{Type: wire.BattleStart, Data: types.BattleStart{
		RoomID:          roomID,
		YourPokemon:     opening.Pokemon2,
		OpponentPokemon: opening.Pokemon1,
		CurrentTurn:     opening.CurrentTurn == p2.id,
		OpponentName:    p1.name,
	}})
	h.logger.Info("battle started", zap.String("room_id", roomID), zap.String("first_turn", opening.CurrentTurn))
}

func (h *Hub) moveLookup(roomID string) engine.MoveLookup {
	logger := h.logger.With(zap.String("room_id", roomID))
	return func(ctx context.Context, key string) (engine.MoveDetail, error) {
		d, err := h.deps.Roster.FetchMoveDetail(ctx, key)
		if err != nil && ctx.Err() == nil {
			logger.Warn("move lookup failed, using fallback", zap.String("key", key), zap.Error(err))
		}
		return d, err
	}
}

func (h *Hub) routeMove(playerID string, moveIndex int) {
	p := h.players[playerID]
	if p == nil || p.phase != phaseBattling {
		h.send(playerID, types.Error(msgNotInBattle))
		return
	}
	lr := h.rooms[p.roomID]
	if lr == nil {
		h.send(playerID, types.Error(msgNotInBattle))
		return
	}
	switch err := lr.room.Submit(room.Move{PlayerID: playerID, MoveIndex: moveIndex}); {
	case errors.Is(err, room.ErrBusy):
		h.send(playerID, types.Error(msgBattleBusy))
	case err != nil:
		h.send(playerID, types.Error(msgNotInBattle))
	}
}

func (h *Hub) closeFinished(fin room.Finished) {
	lr := h.rooms[fin.RoomID]
	if lr == nil {
		return
	}
	delete(h.rooms, fin.RoomID)
	lr.room.Close()
	for _, pl := range lr.players {
		h.reset(pl.ID)
	}
	h.record(lr, fin.Winner, history.ReasonFainted, fin.Turns)
}

func (h *Hub) handleDisconnect(playerID string) {
	if _, ok := h.players[playerID]; !ok {
		return
	}
	h.leave(playerID, history.ReasonDisconnected, wire.OpponentDisconnected)
	delete(h.players, playerID)
	h.logger.Info("player disconnected", zap.String("player_id", playerID))
}

func (h *Hub) handleExit(playerID string) {
	if _, ok := h.players[playerID]; !ok {
		return
	}
	h.leave(playerID, history.ReasonExited, wire.OpponentLeftGame)
	h.send(playerID, types.Notice(wire.ExitConfirmed))
}

// leave purges playerID from the queue, pick phase or room. The opponent, if
// any, is told with notice and wins by default.
func (h *Hub) leave(playerID string, reason history.Reason, notice string) {
	p := h.players[playerID]
	switch p.phase {
	case phaseWaiting:
		h.queue = slices.DeleteFunc(h.queue, func(e waitingEntry) bool { return e.playerID == playerID })

	case phasePicking:
		delete(h.pairs, p.pairID)
		h.send(p.opponent, types.Notice(notice))
		h.reset(p.opponent)

	case phaseBattling:
		if lr := h.rooms[p.roomID]; lr != nil {
			delete(h.rooms, p.roomID)
			lr.room.Close()
			// The battle may have ended by faint before its finish report
			// reached the hub; that result stands.
			if w := lr.room.Winner(); w != "" {
				h.record(lr, w, history.ReasonFainted, lr.room.Turns())
				h.reset(p.opponent)
				break
			}
			h.record(lr, p.opponent, reason, lr.room.Turns())
		}
		h.send(p.opponent, types.Notice(notice))
		h.reset(p.opponent)
	}
	h.reset(playerID)
}

func (h *Hub) reset(playerID string) {
	p := h.players[playerID]
	if p == nil {
		return
	}
	p.phase = phaseIdle
	p.opponent = ""
	p.pairID = ""
	p.roomID = ""
}

func (h *Hub) record(lr *liveRoom, winner string, reason history.Reason, turns int) {
	if h.deps.Recorder == nil {
		return
	}
	rec := history.Record{
		RoomID:      lr.room.ID(),
		Player1ID:   lr.players[0].ID,
		Player1Name: lr.players[0].Name,
		Pokemon1:    lr.pokemon[0],
		Player2ID:   lr.players[1].ID,
		Player2Name: lr.players[1].Name,
		Pokemon2:    lr.pokemon[1],
		WinnerID:    winner,
		Reason:      reason,
		Turns:       turns,
		EndedAt:     time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := h.deps.Recorder.Record(ctx, rec); err != nil {
			h.logger.Warn("history write failed", zap.String("room_id", rec.RoomID), zap.Error(err))
		}
	}()
}

func (h *Hub) view() View {
	v := View{
		Pairings: len(h.pairs),
		InRoom:   make(map[string]string),
		Players:  len(h.players),
	}
	for _, e := range h.queue {
		v.Waiting = append(v.Waiting, e.playerID)
	}
	for id, lr := range h.rooms {
		v.Rooms = append(v.Rooms, id)
		for _, pl := range lr.players {
			v.InRoom[pl.ID] = id
		}
	}
	slices.Sort(v.Rooms)
	return v
}

func (h *Hub) shutdown() {
	for id, lr := range h.rooms {
		lr.room.Close()
		delete(h.rooms, id)
	}
	clear(h.pairs)
	h.queue = nil
}
