package chord

import (
	"context"
	"time"

	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/transport"

	"go.uber.org/zap"
)

// upper bound on the outbound traffic caused by one inbound message
const rpcTimeout = time.Second * 10

// HandleRPC serves inbound messages until ctx is done. Each message is
// handled on its own goroutine and failures stay with that goroutine.
func (n *LocalNode) HandleRPC(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case delegate := <-n.Transport.Messages():
			n.rpcWorkers.Add(1)
			go func() {
				defer n.rpcWorkers.Done()
				n.rpcHandler(ctx, delegate)
			}()
		}
	}
}

func (n *LocalNode) rpcHandler(ctx context.Context, delegate *transport.StreamDelegate) {
	defer delegate.Close()

	msg := delegate.Message
	l := n.logger.With(
		zap.Object("message", msg),
		zap.String("remote", delegate.Remote.String()),
	)

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	var err error
	switch msg.Kind {
	case protocol.KindMembershipUpdate:
		err = n.applyMembership(ctx, msg.Members)

	case protocol.KindInsert:
		err = n.routeInsert(ctx, msg.Target, msg.FileName)

	case protocol.KindSearch:
		err = n.handleSearch(ctx, msg)

	case protocol.KindSearchResult:
		n.ResultHandler(msg)

	case protocol.KindBatchTransfer:
		err = n.handleBatchTransfer(msg)

	case protocol.KindPullRequest:
		err = n.handlePull(delegate)

	default:
		l.Warn("Unexpected message, closing connection")
		return
	}

	if err != nil {
		if isContextErr(err) {
			l.Debug("Message handling interrupted", zap.Error(err))
			return
		}
		l.Error("Error handling message", zap.Error(err))
	}
}
