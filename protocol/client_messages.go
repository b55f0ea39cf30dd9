package protocol

import (
	"fmt"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/wire"
)

// ClientMessage is a message sent by a client to the server.
type ClientMessage interface {
	Tag() uint8
}

type Join struct {
	Name string
}

type PlaceBomb struct{}

type PlaceBlock struct{}

type Move struct {
	Direction game.Direction
}

func (Join) Tag() uint8       { return TagJoin }
func (PlaceBomb) Tag() uint8  { return TagPlaceBomb }
func (PlaceBlock) Tag() uint8 { return TagPlaceBlock }
func (Move) Tag() uint8       { return TagMove }

// EncodeClient frames m with its tag.
func EncodeClient(m ClientMessage) ([]byte, error) {
	w := wire.NewWriter()
	w.U8(m.Tag())
	switch msg := m.(type) {
	case Join:
		w.String(msg.Name)
	case Move:
		w.U8(uint8(msg.Direction))
	}
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode client message %d: %w", m.Tag(), err)
	}
	return data, nil
}

// ReadClient blocks until one whole client message has been read from r.
func ReadClient(r *wire.Reader) (ClientMessage, error) {
	tag := r.U8()
	if err := r.Err(); err != nil {
		return nil, err
	}

	var m ClientMessage
	switch tag {
	case TagJoin:
		m = Join{Name: r.String()}
	case TagPlaceBomb:
		m = PlaceBomb{}
	case TagPlaceBlock:
		m = PlaceBlock{}
	case TagMove:
		d := game.Direction(r.U8())
		if r.Err() == nil && !d.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, d)
		}
		m = Move{Direction: d}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, tag)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
