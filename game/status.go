package game

import (
	"maps"
	"slices"
)

// Status is the full game state. The room owns the authoritative copy and
// every client keeps a mirror; both only ever change it through BeginTurn and
// Apply, so the two cannot drift apart.
type Status struct {
	Turn       uint16
	Turns      []TurnLog
	Blocks     []Position
	Bombs      map[BombID]Bomb
	Players    map[PlayerID]Player
	Positions  map[PlayerID]Position
	Explosions map[Position]struct{}
	Scores     map[PlayerID]Score

	// players already scored during the current turn
	scored map[PlayerID]struct{}
}

func NewStatus() *Status {
	s := &Status{}
	s.Reset()
	return s
}

// Reset drops everything, ready for a new lobby.
func (s *Status) Reset() {
	s.Turn = 0
	s.Turns = nil
	s.Blocks = nil
	s.Bombs = make(map[BombID]Bomb)
	s.Players = make(map[PlayerID]Player)
	s.Positions = make(map[PlayerID]Position)
	s.Explosions = make(map[Position]struct{})
	s.Scores = make(map[PlayerID]Score)
	s.scored = make(map[PlayerID]struct{})
}

// StartRound zeroes the score of every known player.
func (s *Status) StartRound() {
	for id := range s.Players {
		s.Scores[id] = 0
	}
}

// BeginTurn opens a new turn: lit cells and the per-turn score set are
// cleared and every live bomb burns one tick of its fuse.
func (s *Status) BeginTurn(turn uint16) {
	s.Turn = turn
	clear(s.Explosions)
	clear(s.scored)
	for id, b := range s.Bombs {
		if b.Timer > 0 {
			b.Timer--
			s.Bombs[id] = b
		}
	}
}

// Apply replays one event onto the state.
func (s *Status) Apply(p Params, e Event) {
	switch ev := e.(type) {
	case BombPlaced:
		s.Bombs[ev.ID] = Bomb{ID: ev.ID, Position: ev.Position, Timer: p.BombTimer}

	case BombExploded:
		if bomb, ok := s.Bombs[ev.ID]; ok {
			for _, c := range s.BlastAt(p, bomb.Position).Cells {
				s.Explosions[c] = struct{}{}
			}
			delete(s.Bombs, ev.ID)
		}
		for _, id := range ev.RobotsDestroyed {
			if _, done := s.scored[id]; done {
				continue
			}
			s.scored[id] = struct{}{}
			s.Scores[id]++
		}
		for _, pos := range ev.BlocksDestroyed {
			s.removeBlock(pos)
		}

	case PlayerMoved:
		s.Positions[ev.ID] = ev.Position

	case BlockPlaced:
		s.Blocks = append(s.Blocks, ev.Position)
	}
}

// Record appends a resolved batch to the turn log.
func (s *Status) Record(turn uint16, events []Event) {
	s.Turns = append(s.Turns, TurnLog{Turn: turn, Events: events})
}

func (s *Status) HasBlock(pos Position) bool {
	return slices.Contains(s.Blocks, pos)
}

// removeBlock drops the first block exactly at pos.
func (s *Status) removeBlock(pos Position) bool {
	i := slices.Index(s.Blocks, pos)
	if i < 0 {
		return false
	}
	s.Blocks = slices.Delete(s.Blocks, i, i+1)
	return true
}

// PlayerIDs returns the known player ids in ascending order.
func (s *Status) PlayerIDs() []PlayerID {
	return slices.Sorted(maps.Keys(s.Players))
}

// Occupied reports whether any placed player stands on pos.
func (s *Status) Occupied(pos Position) bool {
	for _, p := range s.Positions {
		if p == pos {
			return true
		}
	}
	return false
}

// SortedBombs returns live bombs ordered by id.
func (s *Status) SortedBombs() []Bomb {
	ids := slices.Sorted(maps.Keys(s.Bombs))
	out := make([]Bomb, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Bombs[id])
	}
	return out
}

// SortedExplosions returns the lit cells ordered by position.
func (s *Status) SortedExplosions() []Position {
	return slices.SortedFunc(maps.Keys(s.Explosions), Position.Compare)
}
