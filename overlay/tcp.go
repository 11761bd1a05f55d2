package overlay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/rpc"
	"go.miragespace.co/filering/spec/transport"

	"github.com/avast/retry-go/v4"
	uberAtomic "go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var _ transport.Transport = (*TCP)(nil)

type TransportConfig struct {
	Logger *zap.Logger

	// Address to listen on, port 0 picks a free port
	ListenAddr string

	// Address announced to others, defaults to the bound listener address
	Advertise string

	// Number of connection attempts per outbound message, 1 means no retry
	DialAttempts uint
	DialTimeout  time.Duration
}

func (c *TransportConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.ListenAddr == "" {
		return errors.New("empty ListenAddr")
	}
	if c.DialAttempts == 0 {
		c.DialAttempts = 1
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = transport.ConnectTimeout
	}
	return nil
}

// TCP carries exactly one tagged message per connection. Every accepted
// connection is handled on its own goroutine.
type TCP struct {
	TransportConfig

	listenerMu sync.Mutex
	listener   net.Listener

	streamChan chan *transport.StreamDelegate

	workers sync.WaitGroup
	stopCh  chan struct{}

	started *uberAtomic.Bool
	closed  *uberAtomic.Bool
}

func NewTCP(conf TransportConfig) (*TCP, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &TCP{
		TransportConfig: conf,
		streamChan:      make(chan *transport.StreamDelegate, 32),
		stopCh:          make(chan struct{}),
		started:         uberAtomic.NewBool(false),
		closed:          uberAtomic.NewBool(false),
	}, nil
}

// Listen binds the listener without accepting yet, so the bound address
// is known before anyone is told about it.
func (t *TCP) Listen() error {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()

	if t.closed.Load() {
		return transport.ErrClosed
	}
	if t.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", t.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", t.ListenAddr, err)
	}
	t.listener = l
	return nil
}

func (t *TCP) Identity() string {
	if t.Advertise != "" {
		return t.Advertise
	}
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	if t.listener == nil {
		return t.ListenAddr
	}
	return t.listener.Addr().String()
}

func (t *TCP) Messages() <-chan *transport.StreamDelegate {
	return t.streamChan
}

func (t *TCP) Accept(ctx context.Context) error {
	if err := t.Listen(); err != nil {
		return err
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("transport is already accepting connections")
	}

	t.listenerMu.Lock()
	l := t.listener
	t.listenerMu.Unlock()

	t.Logger.Info("Accepting connections", zap.String("listen", l.Addr().String()))

	go func() {
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.stopCh:
		}
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				t.Logger.Warn("Temporary error accepting connection", zap.Error(err))
				continue
			}
			return err
		}
		t.workers.Add(1)
		go t.streamHandler(conn)
	}
}

func (t *TCP) streamHandler(conn net.Conn) {
	defer t.workers.Done()

	l := t.Logger.With(zap.String("remote", conn.RemoteAddr().String()))

	rr := &protocol.Message{}
	conn.SetReadDeadline(time.Now().Add(t.DialTimeout))
	if err := rpc.Receive(conn, rr); err != nil {
		l.Warn("Failed to receive message, closing connection", zap.Error(err))
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	delegation := &transport.StreamDelegate{
		Message: rr,
		Remote:  conn.RemoteAddr(),
		Conn:    conn,
	}

	select {
	case t.streamChan <- delegation:
	case <-t.stopCh:
		l.Debug("Transport stopped, dropping incoming message", zap.Object("message", rr))
		conn.Close()
	}
}

func (t *TCP) dial(ctx context.Context, addr string) (net.Conn, error) {
	if t.closed.Load() {
		return nil, transport.ErrClosed
	}

	var conn net.Conn
	err := retry.Do(func() error {
		dialCtx, dialCancel := context.WithTimeout(ctx, t.DialTimeout)
		defer dialCancel()

		var d net.Dialer
		c, err := d.DialContext(dialCtx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", chord.ErrConnectionRefused, addr, err)
		}
		conn = c
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(t.DialAttempts),
		retry.Delay(time.Millisecond*100),
		retry.LastErrorOnly(true),
		retry.RetryIf(chord.ErrorIsRetryable),
		retry.OnRetry(func(attempt uint, err error) {
			t.Logger.Warn("Retrying connection to peer", zap.String("peer", addr), zap.Uint("attempt", attempt), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}
	return conn, nil
}

func (t *TCP) Send(ctx context.Context, addr string, msg *protocol.Message) error {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	return rpc.Send(conn, msg)
}

func (t *TCP) Call(ctx context.Context, addr string, msg *protocol.Message) (*protocol.Message, error) {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := rpc.Send(conn, msg); err != nil {
		return nil, err
	}

	reply := &protocol.Message{}
	if err := rpc.Receive(conn, reply); err != nil {
		return nil, fmt.Errorf("waiting for %s reply: %w", msg.Kind, err)
	}
	return reply, nil
}

func (t *TCP) Stop() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.started.Store(false)
	close(t.stopCh)

	var err error
	t.listenerMu.Lock()
	if t.listener != nil {
		err = multierr.Append(err, t.listener.Close())
	}
	t.listenerMu.Unlock()

	t.workers.Wait()

	return err
}
