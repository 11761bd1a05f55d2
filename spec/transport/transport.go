package transport

import (
	"context"
	"net"

	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/rpc"
)

// StreamDelegate is one accepted connection with the single message it carried.
// The handler must call Close once done, optionally after a Reply.
type StreamDelegate struct {
	Message *protocol.Message
	Remote  net.Addr
	Conn    net.Conn
}

func (d *StreamDelegate) Reply(msg *protocol.Message) error {
	return rpc.Send(d.Conn, msg)
}

func (d *StreamDelegate) Close() error {
	return d.Conn.Close()
}

type Transport interface {
	// Address that peers use to reach this transport
	Identity() string

	// Send opens a connection to addr, writes msg and closes the connection.
	Send(ctx context.Context, addr string, msg *protocol.Message) error
	// Call writes msg and waits for a single reply on the same connection.
	Call(ctx context.Context, addr string, msg *protocol.Message) (*protocol.Message, error)

	Messages() <-chan *StreamDelegate

	Accept(ctx context.Context) error
	Stop() error
}
