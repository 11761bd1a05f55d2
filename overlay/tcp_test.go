package overlay

import (
	"context"
	"net"
	"testing"
	"time"

	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/transport"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func getTransport(t *testing.T, as *require.Assertions) (*TCP, func()) {
	tp, err := NewTCP(TransportConfig{
		Logger:     zaptest.NewLogger(t),
		ListenAddr: "127.0.0.1:0",
	})
	as.NoError(err)
	as.NoError(tp.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		as.NoError(tp.Accept(ctx))
	}()

	return tp, func() {
		cancel()
		<-done
	}
}

func receive(as *require.Assertions, tp *TCP) *transport.StreamDelegate {
	select {
	case d := <-tp.Messages():
		return d
	case <-time.After(time.Second * 5):
		as.FailNow("timeout waiting for message")
		return nil
	}
}

func TestTransportConfigValidate(t *testing.T) {
	as := require.New(t)

	c := TransportConfig{}
	as.Error(c.Validate())

	c.Logger = zaptest.NewLogger(t)
	as.Error(c.Validate())

	c.ListenAddr = "127.0.0.1:0"
	as.NoError(c.Validate())
	as.EqualValues(1, c.DialAttempts)
	as.Equal(transport.ConnectTimeout, c.DialTimeout)
}

func TestIdentity(t *testing.T) {
	as := require.New(t)

	tp, err := NewTCP(TransportConfig{
		Logger:     zaptest.NewLogger(t),
		ListenAddr: "127.0.0.1:0",
		Advertise:  "peer.example:1234",
	})
	as.NoError(err)
	as.Equal("peer.example:1234", tp.Identity())

	tp.Advertise = ""
	as.NoError(tp.Listen())
	_, port, err := net.SplitHostPort(tp.Identity())
	as.NoError(err)
	as.NotEqual("0", port)
	as.NoError(tp.Stop())
}

func TestSendOneMessage(t *testing.T) {
	as := require.New(t)

	t1, stop1 := getTransport(t, as)
	defer stop1()
	t2, stop2 := getTransport(t, as)
	defer stop2()

	as.NoError(t1.Send(context.Background(), t2.Identity(), protocol.NewInsert(7, "f")))

	d := receive(as, t2)
	defer d.Close()
	as.Equal(protocol.KindInsert, d.Message.Kind)
	as.Equal(7, d.Message.Target)
	as.Equal("f", d.Message.FileName)
}

func TestCallReply(t *testing.T) {
	as := require.New(t)

	t1, stop1 := getTransport(t, as)
	defer stop1()
	t2, stop2 := getTransport(t, as)
	defer stop2()

	go func() {
		d := <-t2.Messages()
		defer d.Close()
		d.Reply(protocol.NewPullResponse(9, []string{"a"}))
	}()

	reply, err := t1.Call(context.Background(), t2.Identity(), protocol.NewPullRequest(4))
	as.NoError(err)
	as.Equal(protocol.KindPullResponse, reply.Kind)
	as.Equal([]string{"a"}, reply.Files)
}

func TestSendUnreachable(t *testing.T) {
	as := require.New(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	as.NoError(err)
	addr := l.Addr().String()
	as.NoError(l.Close())

	t1, stop1 := getTransport(t, as)
	defer stop1()

	err = t1.Send(context.Background(), addr, protocol.NewLeave(1))
	as.ErrorIs(err, chord.ErrConnectionRefused)
}

func TestGarbageDoesNotStopListener(t *testing.T) {
	as := require.New(t)

	t1, stop1 := getTransport(t, as)
	defer stop1()
	t2, stop2 := getTransport(t, as)
	defer stop2()

	conn, err := net.Dial("tcp", t2.Identity())
	as.NoError(err)
	conn.Write([]byte{0xff, 0xff, 0xff, 0xff, 0x01})
	conn.Close()

	as.NoError(t1.Send(context.Background(), t2.Identity(), protocol.NewLeave(1)))
	d := receive(as, t2)
	defer d.Close()
	as.Equal(protocol.KindLeave, d.Message.Kind)
}

func TestStop(t *testing.T) {
	as := require.New(t)

	tp, stop := getTransport(t, as)
	stop()

	as.NoError(tp.Stop())
	as.ErrorIs(tp.Send(context.Background(), "127.0.0.1:1", protocol.NewLeave(1)), transport.ErrClosed)
	as.ErrorIs(tp.Listen(), transport.ErrClosed)
}
