package chord

import (
	"context"
	"errors"
	"sync"

	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"

	uberAtomic "go.uber.org/atomic"
	"go.uber.org/zap"
)

// LocalNode is one peer on the ring. The finger table, the membership view
// and custody changes to the file store are serialized by one mutex. No
// network I/O happens while it is held.
type LocalNode struct {
	NodeConfig
	logger *zap.Logger

	state *nodeState

	mu    sync.Mutex
	table *FingerTable
	view  *View

	// consumed by the first membership update after a join
	firstJoin *uberAtomic.Bool

	rpcWorkers sync.WaitGroup
}

func NewLocalNode(conf NodeConfig) (*LocalNode, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	n := &LocalNode{
		NodeConfig: conf,
		logger:     conf.Logger.With(zap.Int("node", conf.ID)),
		state:      newNodeState(chord.Offline),
		firstJoin:  uberAtomic.NewBool(false),
	}
	return n, nil
}

func (n *LocalNode) ID() int {
	return n.NodeConfig.ID
}

func (n *LocalNode) Address() string {
	return n.Transport.Identity()
}

func (n *LocalNode) State() chord.State {
	return n.state.Get()
}

func (n *LocalNode) StateHistory() []chord.State {
	return n.state.History()
}

// FingerTable returns the current table, nil while offline.
func (n *LocalNode) FingerTable() *FingerTable {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.table
}

// View returns the current membership view, nil while offline.
func (n *LocalNode) View() *View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view
}

func (n *LocalNode) Files() []string {
	return n.Store.List()
}

func (n *LocalNode) HasFile(name string) bool {
	return n.Store.Contains(name)
}

// storeFile and mergeFiles only take custody while the node is attached to
// the ring. Once leave detaches the store, they refuse instead of keeping
// files nobody will hand off.
func (n *LocalNode) storeFile(name string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.table == nil {
		return false, chord.ErrNodeOffline
	}
	return n.Store.Add(name), nil
}

func (n *LocalNode) mergeFiles(names []string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.table == nil {
		return 0, chord.ErrNodeOffline
	}
	return n.Store.Merge(names), nil
}

// detach drops the routing state and takes every held file in one step.
func (n *LocalNode) detach() (*FingerTable, *View, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	table, view := n.table, n.view
	n.table = nil
	n.view = nil
	return table, view, n.Store.Drain()
}

func (n *LocalNode) snapshot() (*FingerTable, *View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.table, n.view
}

// resolve makes the routing decision for target and finds the address of
// the next hop.
func (n *LocalNode) resolve(target int) (Hop, string, error) {
	if !chord.ValidID(target) {
		return Hop{}, "", chord.ErrorWithID(chord.ErrInvalidID, target)
	}
	table, view := n.snapshot()
	if table == nil {
		return Hop{}, "", chord.ErrNodeOffline
	}
	hop := table.NextHop(target)
	if hop.Local {
		return hop, "", nil
	}
	addr, ok := view.Address(hop.Next)
	if !ok {
		return hop, "", chord.ErrorWithID(chord.ErrUnknownAddress, hop.Next)
	}
	return hop, addr, nil
}

func (n *LocalNode) ensureOnline() error {
	if n.state.Get() != chord.Online {
		return chord.ErrNodeOffline
	}
	return nil
}

// Stop waits for in-flight inbound handlers to finish. The transport is
// owned by the caller.
func (n *LocalNode) Stop() {
	n.rpcWorkers.Wait()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func logMembers(view *View) zap.Field {
	return zap.Array("members", protocol.Members(view.Members()))
}
