// Package game holds the arena model and the rules shared by the authoritative
// room and every client mirror.
package game

import (
	"cmp"
	"time"
)

type (
	PlayerID uint8
	BombID   uint32
	Score    uint32
)

// Direction of a Move intent. Up grows y, Right grows x.
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) Valid() bool {
	return d <= Left
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return "invalid"
}

type Position struct {
	X uint16
	Y uint16
}

// Compare orders positions by x, then y.
func (p Position) Compare(o Position) int {
	if c := cmp.Compare(p.X, o.X); c != 0 {
		return c
	}
	return cmp.Compare(p.Y, o.Y)
}

type Player struct {
	Name    string
	Address string
}

type Bomb struct {
	ID       BombID
	Position Position
	Timer    uint16
}

// Params is the immutable per-process server configuration.
type Params struct {
	Name            string
	PlayersCount    uint8
	SizeX           uint16
	SizeY           uint16
	GameLength      uint16
	ExplosionRadius uint16
	BombTimer       uint16
	TurnDuration    time.Duration
	InitialBlocks   uint16
	Seed            uint32
	Port            uint16
}

// Inside reports whether p lies on the board.
func (p Params) Inside(pos Position) bool {
	return pos.X < p.SizeX && pos.Y < p.SizeY
}

// Step returns the neighbour of pos in direction d, or false if it would leave the board.
func (p Params) Step(pos Position, d Direction) (Position, bool) {
	switch d {
	case Up:
		if pos.Y+1 >= p.SizeY {
			return pos, false
		}
		pos.Y++
	case Right:
		if pos.X+1 >= p.SizeX {
			return pos, false
		}
		pos.X++
	case Down:
		if pos.Y == 0 {
			return pos, false
		}
		pos.Y--
	case Left:
		if pos.X == 0 {
			return pos, false
		}
		pos.X--
	default:
		return pos, false
	}
	return pos, true
}
