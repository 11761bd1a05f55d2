package rpc

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"go.miragespace.co/filering/spec/protocol"

	"github.com/stretchr/testify/require"
)

func TestSendReceivePipe(t *testing.T) {
	as := require.New(t)

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	members := []protocol.Member{
		{ID: 1, Address: "127.0.0.1:1001"},
		{ID: 9, Address: "127.0.0.1:1009"},
	}

	go Send(c1, protocol.NewMembershipUpdate(members))

	rr := &protocol.Message{}
	as.NoError(Receive(c2, rr))
	as.Equal(protocol.KindMembershipUpdate, rr.Kind)
	as.Equal(members, rr.Members)
}

func TestSearchFieldsSurvive(t *testing.T) {
	as := require.New(t)

	var buf bytes.Buffer
	as.NoError(Send(&buf, protocol.NewSearch("rid", "127.0.0.1:1004", "a.txt", 9)))

	rr := &protocol.Message{}
	as.NoError(Receive(&buf, rr))
	as.Equal(protocol.KindSearch, rr.Kind)
	as.Equal("rid", rr.RequestID)
	as.Equal("127.0.0.1:1004", rr.Address)
	as.Equal("a.txt", rr.FileName)
	as.Equal(9, rr.Target)
}

func TestReceiveOversize(t *testing.T) {
	as := require.New(t)

	var buf bytes.Buffer
	size := make([]byte, LengthSize)
	binary.BigEndian.PutUint32(size, uint32(MaxMessageSize+1))
	buf.Write(size)

	as.Error(Receive(&buf, &protocol.Message{}))
}

func TestReceiveTruncated(t *testing.T) {
	as := require.New(t)

	var buf bytes.Buffer
	as.NoError(Send(&buf, protocol.NewLeave(3)))
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-1])

	as.Error(Receive(truncated, &protocol.Message{}))
}

func TestReceiveInvalidKind(t *testing.T) {
	as := require.New(t)

	var buf bytes.Buffer
	as.NoError(Send(&buf, &protocol.Message{Kind: protocol.KindUnknown}))

	as.Error(Receive(&buf, &protocol.Message{}))
}
