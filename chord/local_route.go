package chord

import (
	"context"
	"fmt"

	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

// InsertFile stores name at the owner of its ring key and returns the key.
func (n *LocalNode) InsertFile(ctx context.Context, name string) (int, error) {
	key := chord.FileKey(name)
	return key, n.Insert(ctx, key, name)
}

func (n *LocalNode) Insert(ctx context.Context, key int, name string) error {
	if err := n.ensureOnline(); err != nil {
		return err
	}
	return n.routeInsert(ctx, key, name)
}

func (n *LocalNode) routeInsert(ctx context.Context, target int, name string) error {
	hop, addr, err := n.resolve(target)
	if err != nil {
		return err
	}

	if hop.Local {
		added, err := n.storeFile(name)
		if err != nil {
			return fmt.Errorf("storing %s: %w", name, err)
		}
		n.logger.Info("File stored", zap.String("file", name), zap.Int("target", target), zap.Bool("new", added))
		return nil
	}

	n.logger.Debug("Forwarding insert",
		zap.String("file", name),
		zap.Int("target", target),
		zap.Int("next", hop.Next),
		zap.Int("owner", hop.Owner),
	)

	if err := n.Transport.Send(ctx, addr, protocol.NewInsert(hop.Owner, name)); err != nil {
		return fmt.Errorf("forwarding insert of %s to node %d: %w", name, hop.Next, err)
	}
	return nil
}

// SearchFile looks up name at the owner of its ring key.
func (n *LocalNode) SearchFile(ctx context.Context, name string) (string, *protocol.Message, error) {
	return n.Search(ctx, chord.FileKey(name), name)
}

// Search returns the request id of the lookup. When the outcome is known
// locally the result is returned right away, otherwise it is nil and the
// result is delivered later to ResultHandler, tagged with the same id.
func (n *LocalNode) Search(ctx context.Context, key int, name string) (string, *protocol.Message, error) {
	if err := n.ensureOnline(); err != nil {
		return "", nil, err
	}
	rid := xid.New().String()

	if n.Store.Contains(name) {
		return rid, protocol.NewSearchResult(rid, name, n.ID(), true), nil
	}
	if key == n.ID() {
		return rid, protocol.NewSearchResult(rid, name, n.ID(), false), nil
	}

	hop, addr, err := n.resolve(key)
	if err != nil {
		return rid, nil, err
	}
	if hop.Local {
		return rid, protocol.NewSearchResult(rid, name, n.ID(), false), nil
	}

	n.logger.Debug("Routing search",
		zap.String("request", rid),
		zap.String("file", name),
		zap.Int("target", key),
		zap.Int("next", hop.Next),
		zap.Int("owner", hop.Owner),
	)

	if err := n.Transport.Send(ctx, addr, protocol.NewSearch(rid, n.Address(), name, hop.Owner)); err != nil {
		return rid, nil, fmt.Errorf("forwarding search of %s to node %d: %w", name, hop.Next, err)
	}
	return rid, nil, nil
}

func (n *LocalNode) handleSearch(ctx context.Context, msg *protocol.Message) error {
	l := n.logger.With(zap.String("request", msg.RequestID), zap.String("file", msg.FileName))

	if n.Store.Contains(msg.FileName) {
		l.Debug("File found, replying to requester", zap.String("requester", msg.Address))
		return n.replySearch(ctx, msg, true)
	}
	if msg.Target == n.ID() {
		l.Debug("File not found at owner, replying to requester", zap.String("requester", msg.Address))
		return n.replySearch(ctx, msg, false)
	}

	hop, addr, err := n.resolve(msg.Target)
	if err != nil {
		return err
	}
	if hop.Local {
		return n.replySearch(ctx, msg, false)
	}

	l.Debug("Forwarding search", zap.Int("target", msg.Target), zap.Int("next", hop.Next), zap.Int("owner", hop.Owner))

	fwd := protocol.NewSearch(msg.RequestID, msg.Address, msg.FileName, hop.Owner)
	if err := n.Transport.Send(ctx, addr, fwd); err != nil {
		return fmt.Errorf("forwarding search of %s to node %d: %w", msg.FileName, hop.Next, err)
	}
	return nil
}

func (n *LocalNode) replySearch(ctx context.Context, msg *protocol.Message, found bool) error {
	result := protocol.NewSearchResult(msg.RequestID, msg.FileName, n.ID(), found)
	if err := n.Transport.Send(ctx, msg.Address, result); err != nil {
		return fmt.Errorf("sending search result to %s: %w", msg.Address, err)
	}
	return nil
}
