package rendezvous

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/transport"

	"github.com/zhangyunhao116/skipmap"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server tracks which node ids are live and pushes the full snapshot to
// every live node after each join or leave.
type Server struct {
	Config

	// guards every read-modify-write of liveNodes
	mu        sync.Mutex
	liveNodes *skipmap.IntMap[string]

	// keeps broadcasts in the same order as the changes they carry
	broadcastMu sync.Mutex

	workers sync.WaitGroup
}

func NewServer(conf Config) (*Server, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		Config:    conf,
		liveNodes: skipmap.NewInt[string](),
	}, nil
}

// Snapshot returns the live nodes ordered by id.
func (s *Server) Snapshot() []protocol.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// caller must hold mu
func (s *Server) snapshot() []protocol.Member {
	members := make([]protocol.Member, 0, s.liveNodes.Len())
	s.liveNodes.Range(func(id int, addr string) bool {
		members = append(members, protocol.Member{ID: id, Address: addr})
		return true
	})
	return members
}

func (s *Server) HandleRPC(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case delegate := <-s.Transport.Messages():
			s.workers.Add(1)
			go func() {
				defer s.workers.Done()
				s.rpcHandler(ctx, delegate)
			}()
		}
	}
}

// Wait blocks until in-flight handlers are done.
func (s *Server) Wait() {
	s.workers.Wait()
}

func (s *Server) rpcHandler(ctx context.Context, delegate *transport.StreamDelegate) {
	defer delegate.Close()

	msg := delegate.Message
	l := s.Logger.With(
		zap.Object("message", msg),
		zap.String("remote", delegate.Remote.String()),
	)

	var err error
	switch msg.Kind {
	case protocol.KindJoin:
		err = s.handleJoin(ctx, delegate)
	case protocol.KindLeave:
		err = s.handleLeave(ctx, msg)
	default:
		l.Warn("Unexpected message, closing connection")
		return
	}

	if err != nil {
		l.Error("Error handling message", zap.Error(err))
	}
}

func (s *Server) handleJoin(ctx context.Context, delegate *transport.StreamDelegate) error {
	msg := delegate.Message
	if !chord.ValidID(msg.NodeID) {
		return chord.ErrorWithID(chord.ErrInvalidID, msg.NodeID)
	}

	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()

	s.mu.Lock()
	_, loaded := s.liveNodes.LoadOrStore(msg.NodeID, msg.Address)
	members := s.snapshot()
	s.mu.Unlock()

	accepted := !loaded
	if accepted {
		s.Logger.Info("Node joined", zap.Int("node", msg.NodeID), zap.String("address", msg.Address))
	} else {
		s.Logger.Warn("Rejected join, id is already in use", zap.Int("node", msg.NodeID), zap.String("address", msg.Address))
	}

	var err error
	delegate.Conn.SetWriteDeadline(time.Now().Add(s.PeerTimeout))
	if e := delegate.Reply(protocol.NewJoinReply(msg.NodeID, accepted)); e != nil {
		err = multierr.Append(err, fmt.Errorf("replying to join of node %d: %w", msg.NodeID, e))
	}

	err = multierr.Append(err, s.broadcast(ctx, members))
	return err
}

func (s *Server) handleLeave(ctx context.Context, msg *protocol.Message) error {
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()

	s.mu.Lock()
	_, deleted := s.liveNodes.LoadAndDelete(msg.NodeID)
	members := s.snapshot()
	s.mu.Unlock()

	if !deleted {
		s.Logger.Warn("Ignoring leave of unknown node", zap.Int("node", msg.NodeID))
		return nil
	}

	s.Logger.Info("Node left", zap.Int("node", msg.NodeID))

	return s.broadcast(ctx, members)
}

// broadcast pushes members to every node in members concurrently. A node
// that cannot be reached is skipped, and the failures are returned combined
// for the caller to log.
func (s *Server) broadcast(ctx context.Context, members []protocol.Member) error {
	var (
		g      errgroup.Group
		errMu  sync.Mutex
		errs   error
		update = protocol.NewMembershipUpdate(members)
	)

	for _, m := range members {
		m := m
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, s.PeerTimeout)
			defer cancel()

			if err := s.Transport.Send(sendCtx, m.Address, update); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("node %d: %w", m.ID, err))
				errMu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	s.Logger.Debug("Membership update broadcasted", zap.Array("members", protocol.Members(members)))
	return errs
}
