package protocol

import (
	"fmt"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/wire"
)

// ServerMessage is a message sent by the server to its clients.
type ServerMessage interface {
	Tag() uint8
	encode(w *wire.Writer)
}

type Hello struct {
	Name            string
	PlayersCount    uint8
	SizeX           uint16
	SizeY           uint16
	GameLength      uint16
	ExplosionRadius uint16
	BombTimer       uint16
}

type AcceptedPlayer struct {
	ID     game.PlayerID
	Player game.Player
}

type GameStarted struct {
	Players map[game.PlayerID]game.Player
}

type Turn struct {
	Turn   uint16
	Events []game.Event
}

type GameEnded struct {
	Scores map[game.PlayerID]game.Score
}

func (Hello) Tag() uint8          { return TagHello }
func (AcceptedPlayer) Tag() uint8 { return TagAcceptedPlayer }
func (GameStarted) Tag() uint8    { return TagGameStarted }
func (Turn) Tag() uint8           { return TagTurn }
func (GameEnded) Tag() uint8      { return TagGameEnded }

// NewHello describes the rules a server announces to each connection.
func NewHello(p game.Params) Hello {
	return Hello{
		Name:            p.Name,
		PlayersCount:    p.PlayersCount,
		SizeX:           p.SizeX,
		SizeY:           p.SizeY,
		GameLength:      p.GameLength,
		ExplosionRadius: p.ExplosionRadius,
		BombTimer:       p.BombTimer,
	}
}

// Params returns the rule subset announced in the Hello.
func (m Hello) Params() game.Params {
	return game.Params{
		Name:            m.Name,
		PlayersCount:    m.PlayersCount,
		SizeX:           m.SizeX,
		SizeY:           m.SizeY,
		GameLength:      m.GameLength,
		ExplosionRadius: m.ExplosionRadius,
		BombTimer:       m.BombTimer,
	}
}

func (m Hello) encode(w *wire.Writer) {
	w.String(m.Name)
	w.U8(m.PlayersCount)
	w.U16(m.SizeX)
	w.U16(m.SizeY)
	w.U16(m.GameLength)
	w.U16(m.ExplosionRadius)
	w.U16(m.BombTimer)
}

func (m AcceptedPlayer) encode(w *wire.Writer) {
	w.U8(uint8(m.ID))
	putPlayer(w, m.Player)
}

func (m GameStarted) encode(w *wire.Writer) {
	putPlayers(w, m.Players)
}

func (m Turn) encode(w *wire.Writer) {
	w.U16(m.Turn)
	wire.PutSeq(w, m.Events, putEvent)
}

func (m GameEnded) encode(w *wire.Writer) {
	putScores(w, m.Scores)
}

// EncodeServer frames m with its tag.
func EncodeServer(m ServerMessage) ([]byte, error) {
	w := wire.NewWriter()
	w.U8(m.Tag())
	m.encode(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode server message %d: %w", m.Tag(), err)
	}
	return data, nil
}

// ReadServer blocks until one whole server message has been read from r.
func ReadServer(r *wire.Reader) (ServerMessage, error) {
	tag := r.U8()
	if err := r.Err(); err != nil {
		return nil, err
	}

	var m ServerMessage
	switch tag {
	case TagHello:
		m = Hello{
			Name:            r.String(),
			PlayersCount:    r.U8(),
			SizeX:           r.U16(),
			SizeY:           r.U16(),
			GameLength:      r.U16(),
			ExplosionRadius: r.U16(),
			BombTimer:       r.U16(),
		}
	case TagAcceptedPlayer:
		m = AcceptedPlayer{ID: game.PlayerID(r.U8()), Player: readPlayer(r)}
	case TagGameStarted:
		m = GameStarted{Players: readPlayers(r)}
	case TagTurn:
		turn := r.U16()
		events, err := readEvents(r)
		if err != nil {
			return nil, err
		}
		m = Turn{Turn: turn, Events: events}
	case TagGameEnded:
		m = GameEnded{Scores: readScores(r)}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, tag)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
