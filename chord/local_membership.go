package chord

import (
	"context"
	"fmt"

	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/transport"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Join asks the rendezvous service to admit this node. The node becomes
// Online once the membership update that includes it arrives.
func (n *LocalNode) Join(ctx context.Context) error {
	if _, ok := n.state.Transition(chord.Offline, chord.Joining); !ok {
		return fmt.Errorf("%w: node is %s", chord.ErrJoinInvalidState, n.state.Get())
	}
	n.firstJoin.Store(true)

	n.logger.Info("Joining the ring", zap.String("rendezvous", n.Rendezvous), zap.String("address", n.Address()))

	reply, err := n.Transport.Call(ctx, n.Rendezvous, protocol.NewJoin(n.ID(), n.Address()))
	if err == nil && reply.Kind != protocol.KindJoinReply {
		err = fmt.Errorf("%w: expected %s but got %s", chord.ErrUnexpectedMessage, protocol.KindJoinReply, reply.Kind)
	}
	if err != nil {
		n.firstJoin.Store(false)
		n.state.Set(chord.Offline)
		return fmt.Errorf("joining via rendezvous %s: %w", n.Rendezvous, err)
	}

	if !reply.Accepted {
		n.logger.Warn("Join rejected", zap.String("reply", reply.Text))
		n.firstJoin.Store(false)
		n.state.Set(chord.Offline)
		return chord.ErrorWithID(chord.ErrJoinRejected, n.ID())
	}

	n.logger.Info("Join accepted, waiting for membership update", zap.String("reply", reply.Text))
	return nil
}

// Leave notifies the rendezvous service, hands every held file to the
// successor and goes offline. Both steps are attempted even if one fails.
func (n *LocalNode) Leave(ctx context.Context) error {
	if _, ok := n.state.Transition(chord.Online, chord.Leaving); !ok {
		return fmt.Errorf("%w: node is %s", chord.ErrLeaveInvalidState, n.state.Get())
	}
	return n.leave(ctx)
}

func (n *LocalNode) leave(ctx context.Context) (err error) {
	n.logger.Info("Leaving the ring")

	// from here on inbound inserts and transfers are refused
	table, view, files := n.detach()

	defer func() {
		n.firstJoin.Store(false)
		n.state.Set(chord.Offline)

		if err != nil {
			n.logger.Warn("Left the ring with errors", zap.Error(err))
		} else {
			n.logger.Info("Left the ring")
		}
	}()

	if e := n.Transport.Send(ctx, n.Rendezvous, protocol.NewLeave(n.ID())); e != nil {
		err = multierr.Append(err, fmt.Errorf("notifying rendezvous %s of departure: %w", n.Rendezvous, e))
	}

	if table == nil {
		return
	}
	succ := table.Successor()

	if succ == n.ID() {
		if len(files) > 0 {
			n.logger.Warn("No other live node to hand files off to, dropping them", zap.Int("files", len(files)))
		}
		return
	}
	if len(files) == 0 {
		return
	}

	addr, ok := view.Address(succ)
	if !ok {
		err = multierr.Append(err, chord.ErrorWithID(chord.ErrUnknownAddress, succ))
		return
	}

	n.logger.Info("Handing off files to successor", zap.Int("successor", succ), zap.Strings("files", files))

	if e := n.Transport.Send(ctx, addr, protocol.NewBatchTransfer(n.ID(), files)); e != nil {
		err = multierr.Append(err, fmt.Errorf("handing off %d files to node %d: %w", len(files), succ, e))
	}
	return
}

func (n *LocalNode) applyMembership(ctx context.Context, members []protocol.Member) error {
	view := NewView(members)

	state := n.state.Get()
	if state != chord.Joining && state != chord.Online {
		n.logger.Debug("Ignoring membership update", zap.String("state", state.String()))
		return nil
	}
	if addr, ok := view.Address(n.ID()); !ok || addr != n.Address() {
		n.logger.Warn("Membership update does not include this node, ignoring", logMembers(view))
		return nil
	}

	table, err := BuildFingerTable(n.ID(), view)
	if err != nil {
		return err
	}

	n.mu.Lock()
	// a leave may have started since the state check above
	if state := n.state.Get(); state != chord.Joining && state != chord.Online {
		n.mu.Unlock()
		n.logger.Debug("Ignoring membership update", zap.String("state", state.String()))
		return nil
	}
	changed := n.view.Hash() != view.Hash()
	n.view = view
	n.table = table
	n.mu.Unlock()

	if _, ok := n.state.Transition(chord.Joining, chord.Online); ok {
		n.logger.Info("Node is online")
	}

	n.logger.Info("Finger table rebuilt",
		zap.Bool("changed", changed),
		zap.Int("successor", table.Successor()),
		logMembers(view),
	)

	if n.firstJoin.CompareAndSwap(true, false) {
		return n.pullFromSuccessor(ctx, table, view)
	}
	return nil
}

// pullFromSuccessor takes over the files that belong to this node from the
// node that owned them before it joined.
func (n *LocalNode) pullFromSuccessor(ctx context.Context, table *FingerTable, view *View) error {
	succ := table.Successor()
	if succ == n.ID() {
		return nil
	}
	addr, ok := view.Address(succ)
	if !ok {
		return chord.ErrorWithID(chord.ErrUnknownAddress, succ)
	}

	reply, err := n.Transport.Call(ctx, addr, protocol.NewPullRequest(n.ID()))
	if err != nil {
		return fmt.Errorf("pulling files from node %d: %w", succ, err)
	}
	if reply.Kind != protocol.KindPullResponse {
		return fmt.Errorf("%w: expected %s but got %s", chord.ErrUnexpectedMessage, protocol.KindPullResponse, reply.Kind)
	}

	added, err := n.mergeFiles(reply.Files)
	if err != nil {
		return fmt.Errorf("keeping %d files pulled from node %d: %w", len(reply.Files), succ, err)
	}
	n.logger.Info("Files pulled from successor", zap.Int("successor", succ), zap.Int("files", added))
	return nil
}

func (n *LocalNode) handlePull(delegate *transport.StreamDelegate) error {
	requester := delegate.Message.NodeID

	n.mu.Lock()
	files := n.Store.Partition(n.ID(), requester)
	n.mu.Unlock()

	if err := delegate.Reply(protocol.NewPullResponse(n.ID(), files)); err != nil {
		// keep custody if the requester never got them
		if _, e := n.mergeFiles(files); e != nil {
			err = multierr.Append(err, fmt.Errorf("taking back files: %w", e))
		}
		return fmt.Errorf("returning %d files to node %d: %w", len(files), requester, err)
	}

	n.logger.Info("Files handed off to new predecessor", zap.Int("predecessor", requester), zap.Strings("files", files))
	return nil
}

func (n *LocalNode) handleBatchTransfer(msg *protocol.Message) error {
	added, err := n.mergeFiles(msg.Files)
	if err != nil {
		return fmt.Errorf("receiving %d files from node %d: %w", len(msg.Files), msg.NodeID, err)
	}
	n.logger.Info("Files received from departing node", zap.Int("from", msg.NodeID), zap.Int("files", added))
	return nil
}
