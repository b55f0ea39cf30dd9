package protocol

import (
	"fmt"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/wire"
)

func putPosition(w *wire.Writer, p game.Position) {
	w.U16(p.X)
	w.U16(p.Y)
}

func readPosition(r *wire.Reader) game.Position {
	return game.Position{X: r.U16(), Y: r.U16()}
}

func putPlayer(w *wire.Writer, p game.Player) {
	w.String(p.Name)
	w.String(p.Address)
}

func readPlayer(r *wire.Reader) game.Player {
	return game.Player{Name: r.String(), Address: r.String()}
}

func putPlayerID(w *wire.Writer, id game.PlayerID) {
	w.U8(uint8(id))
}

func readPlayerID(r *wire.Reader) game.PlayerID {
	return game.PlayerID(r.U8())
}

func putPlayers(w *wire.Writer, m map[game.PlayerID]game.Player) {
	wire.PutMap(w, m, func(w *wire.Writer, id game.PlayerID, p game.Player) {
		putPlayerID(w, id)
		putPlayer(w, p)
	})
}

func readPlayers(r *wire.Reader) map[game.PlayerID]game.Player {
	return wire.ReadMap(r, func(r *wire.Reader) (game.PlayerID, game.Player) {
		return readPlayerID(r), readPlayer(r)
	})
}

func putScores(w *wire.Writer, m map[game.PlayerID]game.Score) {
	wire.PutMap(w, m, func(w *wire.Writer, id game.PlayerID, s game.Score) {
		putPlayerID(w, id)
		w.U32(uint32(s))
	})
}

func readScores(r *wire.Reader) map[game.PlayerID]game.Score {
	return wire.ReadMap(r, func(r *wire.Reader) (game.PlayerID, game.Score) {
		return readPlayerID(r), game.Score(r.U32())
	})
}

func putEvent(w *wire.Writer, e game.Event) {
	w.U8(uint8(e.Kind()))
	switch ev := e.(type) {
	case game.BombPlaced:
		w.U32(uint32(ev.ID))
		putPosition(w, ev.Position)
	case game.BombExploded:
		w.U32(uint32(ev.ID))
		wire.PutSeq(w, ev.RobotsDestroyed, putPlayerID)
		wire.PutSeq(w, ev.BlocksDestroyed, putPosition)
	case game.PlayerMoved:
		putPlayerID(w, ev.ID)
		putPosition(w, ev.Position)
	case game.BlockPlaced:
		putPosition(w, ev.Position)
	}
}

func readEvent(r *wire.Reader) (game.Event, error) {
	kind := game.EventKind(r.U8())
	if err := r.Err(); err != nil {
		return nil, err
	}
	switch kind {
	case game.KindBombPlaced:
		return game.BombPlaced{ID: game.BombID(r.U32()), Position: readPosition(r)}, r.Err()
	case game.KindBombExploded:
		return game.BombExploded{
			ID:              game.BombID(r.U32()),
			RobotsDestroyed: wire.ReadSeq(r, readPlayerID),
			BlocksDestroyed: wire.ReadSeq(r, readPosition),
		}, r.Err()
	case game.KindPlayerMoved:
		return game.PlayerMoved{ID: readPlayerID(r), Position: readPosition(r)}, r.Err()
	case game.KindBlockPlaced:
		return game.BlockPlaced{Position: readPosition(r)}, r.Err()
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, kind)
}

func readEvents(r *wire.Reader) ([]game.Event, error) {
	n := r.U32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	events := make([]game.Event, 0, min(int(n), 256))
	for i := uint32(0); i < n; i++ {
		e, err := readEvent(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
