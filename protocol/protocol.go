// Package protocol defines the messages exchanged between server, client and display.
package protocol

import "errors"

// server -> client (TCP)
const (
	TagHello uint8 = iota
	TagAcceptedPlayer
	TagGameStarted
	TagTurn
	TagGameEnded
)

// client -> server (TCP)
const (
	TagJoin uint8 = iota
	TagPlaceBomb
	TagPlaceBlock
	TagMove
)

// client -> display (UDP)
const (
	TagLobbySnapshot uint8 = iota
	TagGameSnapshot
)

// display/controller -> client (UDP)
const (
	TagInputPlaceBomb uint8 = iota
	TagInputPlaceBlock
	TagInputMove
)

var (
	ErrUnknownMessage   = errors.New("protocol: unknown message tag")
	ErrUnknownEvent     = errors.New("protocol: unknown event tag")
	ErrInvalidDirection = errors.New("protocol: direction out of range")
	ErrInvalidDatagram  = errors.New("protocol: invalid input datagram")
)
