package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/rpc"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/robots/config"
	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/network"
	"github.com/wfunc/robots/protocol"
	robots_rpc "github.com/wfunc/robots/rpc"
	"github.com/wfunc/robots/wire"
)

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Game: game.Params{
			Name:            "integration",
			PlayersCount:    2,
			SizeX:           8,
			SizeY:           8,
			GameLength:      3,
			ExplosionRadius: 2,
			BombTimer:       2,
			TurnDuration:    20 * time.Millisecond,
			InitialBlocks:   4,
			Seed:            42,
		},
		WSPort:         0,
		RPCAddress:     "127.0.0.1:0",
		MetricsAddress: "127.0.0.1:0",
	}
}

func startServer(t *testing.T, cfg *config.ServerConfig) (*GameServer, context.CancelFunc, chan error) {
	t.Helper()
	s, err := NewGameServer(cfg)
	if err != nil {
		t.Fatalf("NewGameServer failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	return s, cancel, errc
}

func localAddr(addr net.Addr) string {
	return fmt.Sprintf("127.0.0.1:%d", addr.(*net.TCPAddr).Port)
}

type client struct {
	conn network.Connection
	r    *wire.Reader
}

func dial(t *testing.T, address string) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := network.Dial(ctx, address)
	if err != nil {
		t.Fatalf("dial %s failed: %v", address, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &client{conn: conn, r: wire.NewReader(conn)}
}

func (c *client) send(t *testing.T, m protocol.ClientMessage) {
	t.Helper()
	frame, err := protocol.EncodeClient(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.conn.WriteFrame(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// until reads messages until one with tag arrives.
func (c *client) until(t *testing.T, tag uint8) protocol.ServerMessage {
	t.Helper()
	type result struct {
		msg protocol.ServerMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		for {
			msg, err := protocol.ReadServer(c.r)
			if err != nil || msg.Tag() == tag {
				done <- result{msg, err}
				return
			}
		}
	}()
	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("read failed while waiting for tag %d: %v", tag, res.err)
		}
		return res.msg
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for tag %d", tag)
	}
	return nil
}

func TestGameServer_Round(t *testing.T) {
	cfg := testConfig()
	cfg.WSPort = freePort(t)
	s, cancel, errc := startServer(t, cfg)

	tcpClient := dial(t, localAddr(s.Addr()))
	wsClient := dial(t, "ws://"+localAddr(s.WSAddr())+"/ws")

	hello := tcpClient.until(t, protocol.TagHello).(protocol.Hello)
	if hello.Params().Name != "integration" || hello.PlayersCount != 2 {
		t.Errorf("unexpected hello %+v", hello)
	}
	wsClient.until(t, protocol.TagHello)

	tcpClient.send(t, protocol.Join{Name: "tcp"})
	wsClient.send(t, protocol.Join{Name: "ws"})

	for _, c := range []*client{tcpClient, wsClient} {
		started := c.until(t, protocol.TagGameStarted).(protocol.GameStarted)
		if len(started.Players) != 2 {
			t.Errorf("expected two players, got %v", started.Players)
		}
		turn := c.until(t, protocol.TagTurn).(protocol.Turn)
		if turn.Turn != 0 || len(turn.Events) != 2+int(cfg.Game.InitialBlocks) {
			t.Errorf("unexpected turn 0 %+v", turn)
		}
	}
	tcpClient.send(t, protocol.PlaceBomb{})

	for _, c := range []*client{tcpClient, wsClient} {
		ended := c.until(t, protocol.TagGameEnded).(protocol.GameEnded)
		if len(ended.Scores) != 2 {
			t.Errorf("expected scores for both players, got %v", ended.Scores)
		}
	}

	rpcClient, err := rpc.Dial("tcp", s.RPCAddr().String())
	if err != nil {
		t.Fatalf("rpc dial failed: %v", err)
	}
	defer rpcClient.Close()
	var reply robots_rpc.StatusReply
	if err := rpcClient.Call("RoomService.Status", &robots_rpc.StatusArgs{Caller: "test"}, &reply); err != nil {
		t.Fatalf("rpc call failed: %v", err)
	}
	if reply.Phase != "lobby" || reply.Connections != 2 || reply.Players != 0 {
		t.Errorf("expected a fresh lobby with two connections, got %+v", reply)
	}

	resp, err := http.Get("http://" + s.MetricsAddr().String() + "/metrics")
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"robots_sessions 2", "robots_rounds_total 1", "robots_turns_total 3"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run should stop cleanly, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestGameServer_ProtocolViolationDropsConnection(t *testing.T) {
	cfg := testConfig()
	cfg.RPCAddress, cfg.MetricsAddress = "", ""
	s, cancel, errc := startServer(t, cfg)
	defer func() {
		cancel()
		<-errc
	}()

	c := dial(t, localAddr(s.Addr()))
	c.until(t, protocol.TagHello)
	if err := c.conn.WriteFrame([]byte{99}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(c.conn)
		done <- err
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server kept a connection that sent an unknown tag")
	}
}

func TestNewGameServer_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := testConfig()
	cfg.Game.Port = uint16(ln.Addr().(*net.TCPAddr).Port)
	if _, err := NewGameServer(cfg); err == nil {
		t.Error("binding a used port should fail")
	}
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func TestGameServer_NoSessionsAfterShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.RPCAddress = ""
	cfg.MetricsAddress = ""
	s, err := NewGameServer(cfg)
	if err != nil {
		t.Fatalf("NewGameServer failed: %v", err)
	}
	s.Shutdown()

	if s.track() {
		t.Fatal("no session may be counted once shutdown began")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleWebSocket(ctx, w, r)
	}))
	defer hs.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	if err == nil {
		conn.Close()
		t.Fatal("websocket upgrade should be refused during shutdown")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", resp)
	}
	resp.Body.Close()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refused upgrade left a session counted")
	}
}
