package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/room"
)

// statusTimeout bounds how long a Status call waits on a busy room.
const statusTimeout = 2 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	rpc      *rpc.Server
}

// NewServer listens on addr and exposes RoomService for rm.
func NewServer(addr string, rm Describer) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewServerOn(listener, rm)
}

// NewServerOn serves on an existing listener.
func NewServerOn(listener net.Listener, rm Describer) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("RoomService", &RoomService{room: rm}); err != nil {
		listener.Close()
		return nil, err
	}
	return &Server{listener: listener, rpc: srv}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start serves RPC requests until Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Describer is satisfied by *room.Room.
type Describer interface {
	Describe(ctx context.Context) (room.Summary, error)
}

// RoomService is the struct that exposes RPC methods.
type RoomService struct {
	room Describer
}

// StatusArgs identifies the caller in the room log.
type StatusArgs struct {
	Caller string
}

type StatusReply struct {
	Phase       string
	Turn        uint16
	Players     int
	Connections int
	Bombs       int
}

// Status reports what the room is doing right now.
func (rs *RoomService) Status(args *StatusArgs, reply *StatusReply) error {
	logger.Log.Debugf("RoomService.Status called by %q", args.Caller)
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	s, err := rs.room.Describe(ctx)
	if err != nil {
		return err
	}
	*reply = StatusReply{
		Phase:       s.Phase,
		Turn:        s.Turn,
		Players:     s.Players,
		Connections: s.Connections,
		Bombs:       s.Bombs,
	}
	return nil
}
