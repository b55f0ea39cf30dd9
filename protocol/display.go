package protocol

import (
	"fmt"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/wire"
)

// ParseInput validates one controller datagram. Anything whose length does not
// match its tag exactly, or whose direction is out of range, is rejected.
func ParseInput(b []byte) (ClientMessage, error) {
	r := wire.NewDatagram(b)
	tag := r.U8()

	var m ClientMessage
	switch {
	case r.Err() != nil:
		// empty datagram, reported by Finish
	case tag == TagInputPlaceBomb:
		m = PlaceBomb{}
	case tag == TagInputPlaceBlock:
		m = PlaceBlock{}
	case tag == TagInputMove:
		d := game.Direction(r.U8())
		if r.Err() == nil && !d.Valid() {
			return nil, fmt.Errorf("%w: direction %d", ErrInvalidDatagram, d)
		}
		m = Move{Direction: d}
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrInvalidDatagram, tag)
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatagram, err)
	}
	return m, nil
}

// EncodeInput builds the controller datagram for m. Join has no datagram form.
func EncodeInput(m ClientMessage) ([]byte, error) {
	switch msg := m.(type) {
	case PlaceBomb:
		return []byte{TagInputPlaceBomb}, nil
	case PlaceBlock:
		return []byte{TagInputPlaceBlock}, nil
	case Move:
		return []byte{TagInputMove, uint8(msg.Direction)}, nil
	}
	return nil, fmt.Errorf("%w: tag %d has no input form", ErrInvalidDatagram, m.Tag())
}

// EncodeLobby renders the lobby view pushed to the display.
func EncodeLobby(p game.Params, s *game.Status) ([]byte, error) {
	w := wire.NewWriter()
	w.U8(TagLobbySnapshot)
	w.String(p.Name)
	w.U8(p.PlayersCount)
	w.U16(p.SizeX)
	w.U16(p.SizeY)
	w.U16(p.GameLength)
	w.U16(p.ExplosionRadius)
	w.U16(p.BombTimer)
	putPlayers(w, s.Players)
	return snapshotBytes(w)
}

// EncodeGame renders the in-round view pushed to the display.
func EncodeGame(p game.Params, s *game.Status) ([]byte, error) {
	w := wire.NewWriter()
	w.U8(TagGameSnapshot)
	w.String(p.Name)
	w.U16(p.SizeX)
	w.U16(p.SizeY)
	w.U16(p.GameLength)
	w.U16(s.Turn)
	putPlayers(w, s.Players)
	wire.PutMap(w, s.Positions, func(w *wire.Writer, id game.PlayerID, pos game.Position) {
		putPlayerID(w, id)
		putPosition(w, pos)
	})
	wire.PutSeq(w, s.Blocks, putPosition)
	wire.PutSeq(w, s.SortedBombs(), func(w *wire.Writer, b game.Bomb) {
		putPosition(w, b.Position)
		w.U16(b.Timer)
	})
	wire.PutSeq(w, s.SortedExplosions(), putPosition)
	putScores(w, s.Scores)
	return snapshotBytes(w)
}

func snapshotBytes(w *wire.Writer) ([]byte, error) {
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}
