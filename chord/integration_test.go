package chord

import (
	"context"
	"testing"
	"time"

	"go.miragespace.co/filering/overlay"
	"go.miragespace.co/filering/rendezvous"
	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/util/testcond"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	waitInterval = time.Millisecond * 20
	waitTimeout  = time.Second * 5
)

func startTransport(t *testing.T, as *require.Assertions, ctx context.Context) *overlay.TCP {
	tp, err := overlay.NewTCP(overlay.TransportConfig{
		Logger:     zaptest.NewLogger(t),
		ListenAddr: "127.0.0.1:0",
	})
	as.NoError(err)
	as.NoError(tp.Listen())

	go tp.Accept(ctx)

	return tp
}

func startRendezvous(t *testing.T, as *require.Assertions) (*rendezvous.Server, string, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	tp := startTransport(t, as, ctx)
	srv, err := rendezvous.NewServer(rendezvous.Config{
		Logger:    zaptest.NewLogger(t),
		Transport: tp,
	})
	as.NoError(err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.HandleRPC(ctx)
	}()

	return srv, tp.Identity(), func() {
		cancel()
		tp.Stop()
		<-done
		srv.Wait()
	}
}

type testNode struct {
	*LocalNode
	results chan *protocol.Message
	stop    func()
}

func startNode(t *testing.T, as *require.Assertions, id int, rendezvousAddr string) *testNode {
	ctx, cancel := context.WithCancel(context.Background())

	tp := startTransport(t, as, ctx)
	results := make(chan *protocol.Message, 8)

	conf := devConfig(t, id, tp)
	conf.Rendezvous = rendezvousAddr
	conf.ResultHandler = func(m *protocol.Message) {
		results <- m
	}
	node, err := NewLocalNode(conf)
	as.NoError(err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		node.HandleRPC(ctx)
	}()

	return &testNode{
		LocalNode: node,
		results:   results,
		stop: func() {
			cancel()
			tp.Stop()
			<-done
			node.Stop()
		},
	}
}

func joinNode(as *require.Assertions, n *testNode) {
	as.NoError(n.Join(context.Background()))
	as.NoError(testcond.WaitForCondition(func() bool {
		return n.State() == chord.Online
	}, waitInterval, waitTimeout))
}

func joinAll(as *require.Assertions, nodes ...*testNode) {
	for _, n := range nodes {
		joinNode(as, n)
	}
	waitViews(as, nodes...)
}

func waitViews(as *require.Assertions, nodes ...*testNode) {
	as.NoError(testcond.WaitForCondition(func() bool {
		for _, n := range nodes {
			if n.View().Len() != len(nodes) {
				return false
			}
		}
		return true
	}, waitInterval, waitTimeout))
}

func waitResult(as *require.Assertions, n *testNode, rid string) *protocol.Message {
	select {
	case m := <-n.results:
		as.Equal(rid, m.RequestID)
		return m
	case <-time.After(waitTimeout):
		as.FailNow("timeout waiting for search result")
		return nil
	}
}

func TestRingInsertAndSearch(t *testing.T) {
	as := require.New(t)

	_, addr, stopRendezvous := startRendezvous(t, as)
	defer stopRendezvous()

	n1 := startNode(t, as, 1, addr)
	defer n1.stop()
	n4 := startNode(t, as, 4, addr)
	defer n4.stop()
	n9 := startNode(t, as, 9, addr)
	defer n9.stop()

	joinAll(as, n1, n4, n9)

	ctx := context.Background()
	name := nameWithKey("ring", 7)

	as.NoError(n1.Insert(ctx, 7, name))
	as.NoError(testcond.WaitForCondition(func() bool {
		return n9.HasFile(name)
	}, waitInterval, waitTimeout))
	as.False(n1.HasFile(name))
	as.False(n4.HasFile(name))

	rid, result, err := n4.Search(ctx, 7, name)
	as.NoError(err)
	as.Nil(result)
	found := waitResult(as, n4, rid)
	as.True(found.Found)
	as.Equal(9, found.NodeID)

	missing := nameWithKey("missing", 12)
	rid, result, err = n4.SearchFile(ctx, missing)
	as.NoError(err)
	as.Nil(result)
	notFound := waitResult(as, n4, rid)
	as.False(notFound.Found)
	as.Equal(1, notFound.NodeID)
}

func TestRingLeaveHandoff(t *testing.T) {
	as := require.New(t)

	srv, addr, stopRendezvous := startRendezvous(t, as)
	defer stopRendezvous()

	n1 := startNode(t, as, 1, addr)
	defer n1.stop()
	n4 := startNode(t, as, 4, addr)
	defer n4.stop()
	n9 := startNode(t, as, 9, addr)
	defer n9.stop()

	joinAll(as, n1, n4, n9)

	n4.Store.Merge([]string{"a", "b"})

	owned := nameWithKey("owned", 3)
	as.NoError(n1.Insert(context.Background(), 3, owned))
	as.NoError(testcond.WaitForCondition(func() bool {
		return n4.HasFile(owned)
	}, waitInterval, waitTimeout))

	as.NoError(n4.Leave(context.Background()))
	as.Empty(n4.Files())
	as.Equal(chord.Offline, n4.State())

	as.NoError(testcond.WaitForCondition(func() bool {
		return n9.HasFile("a") && n9.HasFile("b") && n9.HasFile(owned)
	}, waitInterval, waitTimeout))

	waitViews(as, n1, n9)
	as.Equal([]protocol.Member{
		{ID: 1, Address: n1.Address()},
		{ID: 9, Address: n9.Address()},
	}, srv.Snapshot())

	// a handed off file is still found at its new owner
	rid, result, err := n1.Search(context.Background(), 3, owned)
	as.NoError(err)
	if result == nil {
		result = waitResult(as, n1, rid)
	}
	as.True(result.Found)
	as.Equal(9, result.NodeID)
}

func TestRingPullOnJoin(t *testing.T) {
	as := require.New(t)

	_, addr, stopRendezvous := startRendezvous(t, as)
	defer stopRendezvous()

	n1 := startNode(t, as, 1, addr)
	defer n1.stop()
	n9 := startNode(t, as, 9, addr)
	defer n9.stop()

	joinAll(as, n1, n9)

	ctx := context.Background()
	moving := nameWithKey("moving", 3)
	staying := nameWithKey("staying", 6)
	as.NoError(n1.Insert(ctx, 3, moving))
	as.NoError(n1.Insert(ctx, 6, staying))
	as.NoError(testcond.WaitForCondition(func() bool {
		return n9.HasFile(moving) && n9.HasFile(staying)
	}, waitInterval, waitTimeout))

	n4 := startNode(t, as, 4, addr)
	defer n4.stop()

	joinNode(as, n4)
	waitViews(as, n1, n4, n9)

	as.NoError(testcond.WaitForCondition(func() bool {
		return n4.HasFile(moving)
	}, waitInterval, waitTimeout))
	as.False(n9.HasFile(moving))
	as.True(n9.HasFile(staying))
}

func TestRingDuplicateJoin(t *testing.T) {
	as := require.New(t)

	srv, addr, stopRendezvous := startRendezvous(t, as)
	defer stopRendezvous()

	n1 := startNode(t, as, 1, addr)
	defer n1.stop()

	joinAll(as, n1)
	before := srv.Snapshot()

	dup := startNode(t, as, 1, addr)
	defer dup.stop()

	as.ErrorIs(dup.Join(context.Background()), chord.ErrJoinRejected)
	as.Equal(chord.Offline, dup.State())
	as.Nil(dup.FingerTable())
	as.Equal(before, srv.Snapshot())
}

func TestRingTerminationGuard(t *testing.T) {
	as := require.New(t)

	srv, addr, stopRendezvous := startRendezvous(t, as)
	defer stopRendezvous()

	n4 := startNode(t, as, 4, addr)
	defer n4.stop()
	n9 := startNode(t, as, 9, addr)
	defer n9.stop()

	joinAll(as, n4, n9)

	n4.Store.Add("stranded")

	ran, err := NewTerminationGuard(n4.LocalNode).Handoff()
	as.True(ran)
	as.NoError(err)

	as.NoError(testcond.WaitForCondition(func() bool {
		return n9.HasFile("stranded") && len(srv.Snapshot()) == 1
	}, waitInterval, waitTimeout))
}
