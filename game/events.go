package game

// EventKind is the wire tag of an event inside a Turn batch.
type EventKind uint8

const (
	KindBombPlaced EventKind = iota
	KindBombExploded
	KindPlayerMoved
	KindBlockPlaced
)

// Event is one of BombPlaced, BombExploded, PlayerMoved or BlockPlaced.
// The set is closed: the marker method is unexported.
type Event interface {
	Kind() EventKind
	event()
}

type BombPlaced struct {
	ID       BombID
	Position Position
}

type BombExploded struct {
	ID              BombID
	RobotsDestroyed []PlayerID
	BlocksDestroyed []Position
}

type PlayerMoved struct {
	ID       PlayerID
	Position Position
}

type BlockPlaced struct {
	Position Position
}

func (BombPlaced) Kind() EventKind   { return KindBombPlaced }
func (BombExploded) Kind() EventKind { return KindBombExploded }
func (PlayerMoved) Kind() EventKind  { return KindPlayerMoved }
func (BlockPlaced) Kind() EventKind  { return KindBlockPlaced }

func (BombPlaced) event()   {}
func (BombExploded) event() {}
func (PlayerMoved) event()  {}
func (BlockPlaced) event()  {}

// TurnLog is the batch of events resolved in one turn.
type TurnLog struct {
	Turn   uint16
	Events []Event
}
