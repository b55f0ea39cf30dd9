package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/robots/config"
	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/monitor"
	"github.com/wfunc/robots/network"
	"github.com/wfunc/robots/room"
	robots_rpc "github.com/wfunc/robots/rpc"
	"github.com/wfunc/robots/session"
	"github.com/wfunc/robots/timer"
)

type GameServer struct {
	room           *room.Room
	monitor        *monitor.Monitor
	sessionManager *session.Manager
	upgrader       websocket.Upgrader

	tcp       net.Listener
	ws        net.Listener // nil when the websocket listener is off
	metrics   net.Listener // nil when metrics are off
	rpcServer *robots_rpc.Server

	mutex    sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// NewGameServer binds every configured listener. Nothing is served until Run.
func NewGameServer(cfg *config.ServerConfig) (*GameServer, error) {
	s := &GameServer{
		monitor:        monitor.NewMonitor("robots"),
		sessionManager: session.NewManager(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // browsers connect from any origin
			},
		},
	}
	s.room = room.NewRoom(cfg.Game, timer.NewRealClock(), s.monitor)

	var err error
	defer func() {
		if err != nil {
			s.closeListeners()
		}
	}()

	if s.tcp, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Game.Port)); err != nil {
		return nil, fmt.Errorf("listen for game clients: %w", err)
	}
	if cfg.WSPort != 0 {
		if s.ws, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.WSPort)); err != nil {
			return nil, fmt.Errorf("listen for websocket clients: %w", err)
		}
	}
	if cfg.MetricsAddress != "" {
		if s.metrics, err = net.Listen("tcp", cfg.MetricsAddress); err != nil {
			return nil, fmt.Errorf("listen for metrics: %w", err)
		}
	}
	if cfg.RPCAddress != "" {
		if s.rpcServer, err = robots_rpc.NewServer(cfg.RPCAddress, s.room); err != nil {
			return nil, fmt.Errorf("start rpc server: %w", err)
		}
	}
	return s, nil
}

// Addr is the game TCP listener address.
func (s *GameServer) Addr() net.Addr {
	return s.tcp.Addr()
}

// WSAddr is nil when the websocket listener is off.
func (s *GameServer) WSAddr() net.Addr {
	if s.ws == nil {
		return nil
	}
	return s.ws.Addr()
}

func (s *GameServer) RPCAddr() net.Addr {
	if s.rpcServer == nil {
		return nil
	}
	return s.rpcServer.Addr()
}

func (s *GameServer) MetricsAddr() net.Addr {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Addr()
}

// Run serves until ctx is cancelled or a component fails, then waits for
// every session to leave.
func (s *GameServer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.room.Run(gctx) })
	g.Go(func() error { return s.acceptTCP(gctx) })
	if s.ws != nil {
		g.Go(func() error { return s.serveWS(gctx) })
	}
	if s.metrics != nil {
		g.Go(func() error { return s.monitor.Serve(gctx, s.metrics) })
	}
	if s.rpcServer != nil {
		g.Go(func() error {
			s.rpcServer.Start()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.Shutdown()
		return nil
	})

	err := g.Wait()
	s.sessions.Wait()
	return err
}

// Shutdown stops accepting and disconnects every session.
func (s *GameServer) Shutdown() {
	s.mutex.Lock()
	s.closing = true
	s.mutex.Unlock()
	s.closeListeners()
	s.sessionManager.CloseAll()
}

func (s *GameServer) closeListeners() {
	if s.tcp != nil {
		s.tcp.Close()
	}
	if s.ws != nil {
		s.ws.Close()
	}
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
}

// track counts a new session against Run's final wait. It refuses once
// Shutdown has begun, so no session starts after the wait.
func (s *GameServer) track() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *GameServer) acceptTCP(ctx context.Context) error {
	logger.Log.Infof("Game server listening on %s", s.tcp.Addr())
	for {
		conn, err := s.tcp.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !s.track() {
			conn.Close()
			return nil
		}
		go func() {
			defer s.sessions.Done()
			s.handleConnection(ctx, network.NewTCPConnection(conn))
		}()
	}
}

func (s *GameServer) serveWS(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWebSocket(ctx, w, r)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() { srv.Close() })
	defer stop()

	logger.Log.Infof("Websocket listening on %s", s.ws.Addr())
	if err := srv.Serve(s.ws); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		return err
	}
	return nil
}

func (s *GameServer) handleWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(ctx, network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(ctx context.Context, conn network.Connection) {
	sess := session.NewSession(uuid.New().String(), conn)
	s.sessionManager.Add(sess)
	s.monitor.SessionOpened()
	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.ID())

	defer func() {
		s.sessionManager.Remove(sess.ID())
		s.monitor.SessionClosed()
	}()

	if err := sess.Run(ctx, s.room); err != nil {
		logger.Log.Infof("Connection closed from %s, session ID: %s: %v", conn.RemoteAddr(), sess.ID(), err)
		return
	}
	logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.ID())
}
