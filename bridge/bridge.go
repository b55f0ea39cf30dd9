// Package bridge relays between a game server and a local display. It keeps
// a mirror of the game by replaying server events through game.Status, pushes
// a snapshot to the display after every change and forwards valid controller
// input back to the server.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/network"
	"github.com/wfunc/robots/protocol"
	"github.com/wfunc/robots/wire"
)

// ErrServerClosed is returned when the server ends the stream.
var ErrServerClosed = errors.New("bridge: server closed the connection")

const maxDatagram = 65535

type Bridge struct {
	name    string
	server  network.Connection
	gui     net.PacketConn
	display net.Addr

	// mirror is only touched by the server loop
	params game.Params
	status *game.Status

	mutex   sync.Mutex
	inLobby bool
	joined  bool // Join already sent in this lobby phase
}

// New builds a bridge for player name. Snapshots go to display through gui,
// which also receives the controller datagrams.
func New(name string, server network.Connection, gui net.PacketConn, display net.Addr) *Bridge {
	return &Bridge{
		name:    name,
		server:  server,
		gui:     gui,
		display: display,
		status:  game.NewStatus(),
		inLobby: true,
	}
}

// Run relays until either side fails or ctx is cancelled. Cancellation is not
// an error.
func (b *Bridge) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(b.serverLoop)
	g.Go(b.inputLoop)
	g.Go(func() error {
		<-gctx.Done()
		b.server.Close()
		b.gui.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *Bridge) serverLoop() error {
	r := wire.NewReader(b.server)
	for {
		msg, err := protocol.ReadServer(r)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrServerClosed
		}
		if err != nil {
			return fmt.Errorf("reading from server: %w", err)
		}
		b.handleServer(msg)
	}
}

func (b *Bridge) inputLoop() error {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := b.gui.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("reading from display: %w", err)
		}
		if err := b.handleInput(buf[:n]); err != nil {
			return err
		}
	}
}

func (b *Bridge) handleServer(msg protocol.ServerMessage) {
	switch m := msg.(type) {
	case protocol.Hello:
		b.params = m.Params()
		logger.Log.Infof("Connected to %q, %d players on %dx%d", m.Name, m.PlayersCount, m.SizeX, m.SizeY)
		b.sendLobby()

	case protocol.AcceptedPlayer:
		b.status.Players[m.ID] = m.Player
		b.sendLobby()

	case protocol.GameStarted:
		b.status.Players = m.Players
		b.status.StartRound()
		b.setLobby(false)

	case protocol.Turn:
		b.status.BeginTurn(m.Turn)
		for _, e := range m.Events {
			b.status.Apply(b.params, e)
		}
		b.sendGame()

	case protocol.GameEnded:
		logger.Log.Infof("Round over, scores %v", m.Scores)
		b.status.Reset()
		b.setLobby(true)
		b.sendLobby()
	}
}

// handleInput validates one controller datagram. Invalid ones are dropped.
func (b *Bridge) handleInput(datagram []byte) error {
	intent, err := protocol.ParseInput(datagram)
	if err != nil {
		logger.Log.Debugf("Dropping controller datagram % x", datagram)
		return nil
	}

	b.mutex.Lock()
	if b.inLobby {
		if b.joined {
			b.mutex.Unlock()
			return nil
		}
		b.joined = true
		intent = protocol.Join{Name: b.name}
	}
	b.mutex.Unlock()

	frame, err := protocol.EncodeClient(intent)
	if err != nil {
		return err
	}
	if err := b.server.WriteFrame(frame); err != nil {
		return fmt.Errorf("writing to server: %w", err)
	}
	return nil
}

func (b *Bridge) setLobby(lobby bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.inLobby = lobby
	b.joined = false
}

func (b *Bridge) sendLobby() {
	b.sendSnapshot(protocol.EncodeLobby(b.params, b.status))
}

func (b *Bridge) sendGame() {
	b.sendSnapshot(protocol.EncodeGame(b.params, b.status))
}

// sendSnapshot is best effort: display failures are logged, never fatal.
func (b *Bridge) sendSnapshot(snapshot []byte, err error) {
	if err != nil {
		logger.Log.Errorf("Failed to encode snapshot: %v", err)
		return
	}
	if _, err := b.gui.WriteTo(snapshot, b.display); err != nil {
		logger.Log.Warnf("Failed to send snapshot to %s: %v", b.display, err)
	}
}
