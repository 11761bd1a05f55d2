package rpc

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.miragespace.co/filering/spec/protocol"

	"github.com/alecthomas/units"
	"github.com/hashicorp/go-msgpack/v2/codec"
	pool "github.com/libp2p/go-buffer-pool"
)

const (
	// uint32
	LengthSize = 4
	// a full membership snapshot or a batch of file names stays well below this
	MaxMessageSize = int(4 * units.MiB)
)

var handle = &codec.MsgpackHandle{}

func Receive(stream io.Reader, rr *protocol.Message) error {
	sb := pool.Get(LengthSize)
	defer pool.Put(sb)

	n, err := io.ReadFull(stream, sb)
	if err != nil {
		return fmt.Errorf("reading RPC message buffer size: %w", err)
	}
	if n != LengthSize {
		return fmt.Errorf("expected %d bytes to be read but %d bytes was read", LengthSize, n)
	}

	ms := binary.BigEndian.Uint32(sb)
	if int(ms) > MaxMessageSize {
		return fmt.Errorf("RPC message of %d bytes exceeds limit of %d bytes", ms, MaxMessageSize)
	}

	mb := pool.Get(int(ms))
	defer pool.Put(mb)

	n, err = io.ReadFull(stream, mb)
	if err != nil {
		return fmt.Errorf("reading RPC message: %w", err)
	}
	if ms != uint32(n) {
		return fmt.Errorf("expected %d bytes to be read but %d bytes was read", ms, n)
	}

	if err := codec.NewDecoderBytes(mb, handle).Decode(rr); err != nil {
		return fmt.Errorf("decoding inbound RPC message: %w", err)
	}
	if !rr.Kind.Valid() {
		return fmt.Errorf("decoding inbound RPC message: invalid %s", rr.Kind)
	}
	return nil
}

func Send(stream io.Writer, rr *protocol.Message) error {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, handle).Encode(rr); err != nil {
		return fmt.Errorf("encoding outbound RPC message: %w", err)
	}

	l := len(buf)
	if l > MaxMessageSize {
		return fmt.Errorf("RPC message of %d bytes exceeds limit of %d bytes", l, MaxMessageSize)
	}

	mb := pool.Get(LengthSize + l)
	defer pool.Put(mb)

	binary.BigEndian.PutUint32(mb[0:LengthSize], uint32(l))
	copy(mb[LengthSize:], buf)

	n, err := stream.Write(mb)
	if err != nil {
		return fmt.Errorf("sending RPC message: %w", err)
	}
	if n != LengthSize+l {
		return fmt.Errorf("expected %d bytes sent but %d bytes was sent", LengthSize+l, n)
	}

	return nil
}
