package room

import (
	"slices"
	"time"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/protocol"
	"github.com/wfunc/robots/state"
)

const (
	PhaseLobby      = "lobby"
	PhaseInProgress = "in_progress"
	PhaseEnding     = "ending"
)

// spawnAttempts bounds random probing per board cell before falling back to a scan.
const spawnAttempts = 64

type lobbyState struct {
	state.Base
	room *Room
}

// OnEnter wipes everything a round leaves behind.
func (s *lobbyState) OnEnter() {
	r := s.room
	r.clock.Stop()
	r.status.Reset()
	r.players = make(map[string]game.PlayerID)
	r.gone = make(map[game.PlayerID]struct{})
	r.pending = r.pending[:0]
	r.nextID = 0
	r.nextBomb = 0
	r.rng = game.NewRandom(r.params.Seed)
}

type roundState struct {
	state.Base
	room *Room
}

func (s *roundState) OnEnter()  { s.room.startRound() }
func (s *roundState) OnUpdate() { s.room.tick() }
func (s *roundState) OnExit()   { s.room.clock.Stop() }

type endingState struct {
	state.Base
	room *Room
}

func (s *endingState) OnEnter() {
	r := s.room
	logger.Log.Infof("Round ended after %d turns, scores %v", r.status.Turn, r.status.Scores)
	r.broadcast(protocol.GameEnded{Scores: r.status.Scores})
	r.observer.RoundEnded()
}

// startRound spawns the players, lays the initial blocks and publishes turn 0.
func (r *Room) startRound() {
	r.status.StartRound()
	r.status.BeginTurn(0)

	var events []game.Event
	emit := func(e game.Event) {
		r.status.Apply(r.params, e)
		events = append(events, e)
	}

	for _, id := range r.status.PlayerIDs() {
		if _, left := r.gone[id]; left {
			continue
		}
		pos, ok := r.freeTile(func(p game.Position) bool {
			return !r.status.Occupied(p)
		})
		if !ok {
			break
		}
		emit(game.PlayerMoved{ID: id, Position: pos})
	}

	for i := uint16(0); i < r.params.InitialBlocks; i++ {
		pos, ok := r.freeTile(func(p game.Position) bool {
			return !r.status.HasBlock(p) && !r.status.Occupied(p)
		})
		if !ok {
			break
		}
		emit(game.BlockPlaced{Position: pos})
	}

	r.status.Record(0, events)
	logger.Log.Infof("Round started with %d players", len(r.status.Players))
	r.broadcast(protocol.GameStarted{Players: r.status.Players})
	r.broadcast(protocol.Turn{Turn: 0, Events: events})
	r.observer.RoundStarted()
	r.clock.Arm(r.params.TurnDuration)
}

// freeTile draws x then y from the generator until free accepts the tile.
func (r *Room) freeTile(free func(game.Position) bool) (game.Position, bool) {
	attempts := spawnAttempts * int(r.params.SizeX) * int(r.params.SizeY)
	for i := 0; i < attempts; i++ {
		pos := game.Position{X: r.rng.Intn(r.params.SizeX), Y: r.rng.Intn(r.params.SizeY)}
		if free(pos) {
			return pos, true
		}
	}
	for x := uint16(0); x < r.params.SizeX; x++ {
		for y := uint16(0); y < r.params.SizeY; y++ {
			if pos := (game.Position{X: x, Y: y}); free(pos) {
				return pos, true
			}
		}
	}
	return game.Position{}, false
}

// tick resolves one turn: pending intents in registration order, then
// every bomb whose fuse ran out, in bomb id order.
func (r *Room) tick() {
	start := time.Now()
	turn := r.status.Turn + 1
	r.status.BeginTurn(turn)

	var events []game.Event
	emit := func(e game.Event) {
		r.status.Apply(r.params, e)
		events = append(events, e)
	}

	for _, m := range r.pending {
		r.resolve(m, emit)
	}
	r.pending = r.pending[:0]

	exploded := 0
	for _, b := range r.status.SortedBombs() {
		if b.Timer != 0 {
			continue
		}
		blast := r.status.BlastAt(r.params, b.Position)
		robots := slices.DeleteFunc(blast.Robots, func(id game.PlayerID) bool {
			_, left := r.gone[id]
			return left
		})
		emit(game.BombExploded{ID: b.ID, RobotsDestroyed: robots, BlocksDestroyed: blast.Blocks})
		exploded++
	}

	r.status.Record(turn, events)
	r.broadcast(protocol.Turn{Turn: turn, Events: events})
	r.observer.TurnResolved(len(events), time.Since(start))
	if exploded > 0 {
		r.observer.BombsExploded(exploded)
	}

	if turn < r.params.GameLength {
		r.clock.Arm(r.params.TurnDuration)
		return
	}
	if err := r.machine.ChangeState(r.ending); err != nil {
		logger.Log.Errorf("Failed to end round at turn %d: %v", turn, err)
		return
	}
	if err := r.machine.ChangeState(r.lobby); err != nil {
		logger.Log.Errorf("Failed to reopen lobby: %v", err)
	}
}

func (r *Room) resolve(m pendingMove, emit func(game.Event)) {
	pos, placed := r.status.Positions[m.player]
	if !placed {
		return
	}

	switch intent := m.intent.(type) {
	case protocol.PlaceBomb:
		id := r.nextBomb
		r.nextBomb++
		emit(game.BombPlaced{ID: id, Position: pos})

	case protocol.PlaceBlock:
		if r.status.HasBlock(pos) {
			logger.Log.Debugf("Player %d: tile %v already holds a block", m.player, pos)
			return
		}
		emit(game.BlockPlaced{Position: pos})

	case protocol.Move:
		next, ok := r.params.Step(pos, intent.Direction)
		if !ok || r.status.HasBlock(next) {
			logger.Log.Debugf("Player %d: move %v from %v dropped", m.player, intent.Direction, pos)
			return
		}
		emit(game.PlayerMoved{ID: m.player, Position: next})
	}
}
