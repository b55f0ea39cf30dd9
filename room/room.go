// room/room.go
package room

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/robots/broadcast"
	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/protocol"
	"github.com/wfunc/robots/state"
	"github.com/wfunc/robots/timer"
)

// ErrClosed is returned for requests made after the room loop has stopped.
var ErrClosed = errors.New("room: closed")

const commandQueueSize = 256

// Participant is one connection attached to the room.
type Participant = broadcast.Participant

// Observer receives room lifecycle notifications, e.g. for metrics.
type Observer interface {
	RoundStarted()
	RoundEnded()
	TurnResolved(events int, elapsed time.Duration)
	BombsExploded(n int)
}

type nopObserver struct{}

func (nopObserver) RoundStarted()                   {}
func (nopObserver) RoundEnded()                     {}
func (nopObserver) TurnResolved(int, time.Duration) {}
func (nopObserver) BombsExploded(int)               {}

// pendingMove is the one intent a player has registered for the next tick.
type pendingMove struct {
	participant string
	player      game.PlayerID
	intent      protocol.ClientMessage
}

// Summary is a point-in-time description of the room.
type Summary struct {
	Phase       string
	Turn        uint16
	Players     int
	Connections int
	Bombs       int
}

// Room is the authoritative game. Every handler runs on the goroutine that
// calls Run, one at a time, so none of the fields below need locking.
// Other goroutines reach the room only through the exported request methods.
type Room struct {
	params   game.Params
	clock    timer.Clock
	observer Observer
	cmds     chan func()
	done     chan struct{}

	machine *state.Machine
	lobby   *lobbyState
	round   *roundState
	ending  *endingState

	group    *broadcast.Group
	players  map[string]game.PlayerID // participant id -> player id
	gone     map[game.PlayerID]struct{} // left mid-round; still on the board, never hit
	pending  []pendingMove
	status   *game.Status
	rng      *game.Random
	nextID   game.PlayerID
	nextBomb game.BombID
}

// NewRoom builds a room in the Lobby phase. A nil observer is allowed.
func NewRoom(params game.Params, clock timer.Clock, observer Observer) *Room {
	if observer == nil {
		observer = nopObserver{}
	}
	r := &Room{
		params:   params,
		clock:    clock,
		observer: observer,
		cmds:     make(chan func(), commandQueueSize),
		done:     make(chan struct{}),
		group:    broadcast.NewGroup(),
		status:   game.NewStatus(),
	}

	r.lobby = &lobbyState{Base: state.Base{Name: PhaseLobby}, room: r}
	r.round = &roundState{Base: state.Base{Name: PhaseInProgress}, room: r}
	r.ending = &endingState{Base: state.Base{Name: PhaseEnding}, room: r}

	r.machine = state.NewMachine(r.lobby)
	r.machine.AddTransition(r.lobby, r.round, func() bool {
		return len(r.status.Players) == int(r.params.PlayersCount)
	})
	r.machine.AddTransition(r.round, r.ending, func() bool {
		return r.status.Turn == r.params.GameLength
	})
	r.machine.AddTransition(r.ending, r.lobby, nil)
	return r
}

// Run services requests and turn ticks until ctx is done or the clock breaks.
func (r *Room) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.clock.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-r.cmds:
			fn()
		case _, ok := <-r.clock.C():
			if !ok {
				logger.Log.Errorf("Turn clock stopped in phase %s", r.Phase())
				return timer.ErrClockStopped
			}
			r.machine.Update()
		}
	}
}

func (r *Room) do(fn func()) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.cmds <- fn:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

// Join attaches a connection. It receives Hello and enough history to render
// the current phase.
func (r *Room) Join(p Participant) error {
	return r.do(func() { r.handleJoin(p) })
}

// ResolveJoin turns a connection into a player. Ignored outside the Lobby.
func (r *Room) ResolveJoin(p Participant, player game.Player) error {
	return r.do(func() { r.handleResolveJoin(p, player) })
}

// RegisterMove records the player's intent for the next tick, replacing any
// earlier intent from the same connection.
func (r *Room) RegisterMove(p Participant, intent protocol.ClientMessage) error {
	return r.do(func() { r.handleMove(p, intent) })
}

// Leave detaches a connection. It is safe to call more than once.
func (r *Room) Leave(p Participant) error {
	return r.do(func() { r.handleLeave(p) })
}

// Describe returns a summary computed on the room goroutine.
func (r *Room) Describe(ctx context.Context) (Summary, error) {
	reply := make(chan Summary, 1)
	if err := r.do(func() { reply <- r.summary() }); err != nil {
		return Summary{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-r.done:
		return Summary{}, ErrClosed
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

// Phase is only meaningful on the room goroutine or in tests.
func (r *Room) Phase() string {
	return r.machine.Current().ID()
}

func (r *Room) summary() Summary {
	return Summary{
		Phase:       r.Phase(),
		Turn:        r.status.Turn,
		Players:     len(r.status.Players),
		Connections: r.group.Len(),
		Bombs:       len(r.status.Bombs),
	}
}

func (r *Room) inRound() bool {
	return r.machine.Current() == r.round
}

func (r *Room) handleJoin(p Participant) {
	if !r.group.Add(p) {
		return
	}
	catchUp := []protocol.ServerMessage{protocol.NewHello(r.params)}

	if r.inRound() {
		catchUp = append(catchUp, protocol.GameStarted{Players: r.status.Players})
		for _, t := range r.status.Turns {
			catchUp = append(catchUp, protocol.Turn{Turn: t.Turn, Events: t.Events})
		}
	} else {
		for _, id := range r.status.PlayerIDs() {
			catchUp = append(catchUp, protocol.AcceptedPlayer{ID: id, Player: r.status.Players[id]})
		}
	}
	r.sendBatch(p, catchUp)
}

func (r *Room) handleResolveJoin(p Participant, player game.Player) {
	if r.machine.Current() != r.lobby || !r.group.Has(p.ID()) {
		return
	}
	if _, already := r.players[p.ID()]; already {
		return
	}

	id := r.nextID
	r.nextID++
	r.players[p.ID()] = id
	r.status.Players[id] = player
	logger.Log.Infof("Player %d (%s) joined from %s", id, player.Name, player.Address)
	r.broadcast(protocol.AcceptedPlayer{ID: id, Player: player})

	if len(r.status.Players) == int(r.params.PlayersCount) {
		if err := r.machine.ChangeState(r.round); err != nil {
			logger.Log.Errorf("Failed to start round: %v", err)
		}
	}
}

func (r *Room) handleMove(p Participant, intent protocol.ClientMessage) {
	if !r.inRound() {
		return
	}
	id, ok := r.players[p.ID()]
	if !ok {
		return
	}
	for i := range r.pending {
		if r.pending[i].participant == p.ID() {
			r.pending[i].intent = intent
			return
		}
	}
	r.pending = append(r.pending, pendingMove{participant: p.ID(), player: id, intent: intent})
}

func (r *Room) handleLeave(p Participant) {
	if !r.group.Remove(p.ID()) {
		return
	}
	for i := range r.pending {
		if r.pending[i].participant == p.ID() {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			break
		}
	}

	id, ok := r.players[p.ID()]
	if !ok {
		return
	}
	delete(r.players, p.ID())
	r.gone[id] = struct{}{}
	logger.Log.Infof("Player %d left in phase %s", id, r.Phase())
}

// sendBatch packs msgs back to back into a single frame. Messages are
// self-delimiting, so the peer reads them one by one, and a long turn log
// takes one slot of the participant's queue instead of one per turn.
func (r *Room) sendBatch(p Participant, msgs []protocol.ServerMessage) {
	var frame []byte
	for _, m := range msgs {
		data, err := protocol.EncodeServer(m)
		if err != nil {
			logger.Log.Errorf("Dropping message for %s: %v", p.ID(), err)
			return
		}
		frame = append(frame, data...)
	}
	p.Send(frame)
}

func (r *Room) broadcast(m protocol.ServerMessage) {
	frame, err := protocol.EncodeServer(m)
	if err != nil {
		logger.Log.Errorf("Dropping broadcast: %v", err)
		return
	}
	r.group.Broadcast(frame)
}
