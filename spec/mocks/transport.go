package mocks

import (
	"context"

	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/transport"

	"github.com/stretchr/testify/mock"
)

type Transport struct {
	mock.Mock
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Identity() string {
	args := t.Called()
	return args.String(0)
}

func (t *Transport) Send(ctx context.Context, addr string, msg *protocol.Message) error {
	args := t.Called(ctx, addr, msg)
	return args.Error(0)
}

func (t *Transport) Call(ctx context.Context, addr string, msg *protocol.Message) (*protocol.Message, error) {
	args := t.Called(ctx, addr, msg)
	v := args.Get(0)
	e := args.Error(1)
	if v == nil {
		return nil, e
	}
	return v.(*protocol.Message), e
}

func (t *Transport) Messages() <-chan *transport.StreamDelegate {
	args := t.Called()
	v := args.Get(0)
	return v.(chan *transport.StreamDelegate)
}

func (t *Transport) Accept(ctx context.Context) error {
	args := t.Called(ctx)
	return args.Error(0)
}

func (t *Transport) Stop() error {
	args := t.Called()
	return args.Error(0)
}
