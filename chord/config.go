package chord

import (
	"errors"
	"time"

	"go.miragespace.co/filering/kv/memory"
	"go.miragespace.co/filering/spec/chord"
	"go.miragespace.co/filering/spec/protocol"
	"go.miragespace.co/filering/spec/transport"

	"go.uber.org/zap"
)

type NodeConfig struct {
	Logger        *zap.Logger
	ID            int
	Transport     transport.Transport
	Rendezvous    string
	Store         *memory.FileStore
	ResultHandler func(*protocol.Message)
	// bound on the best effort handoff run by the termination guard
	HandoffTimeout time.Duration
}

func (c *NodeConfig) Validate() error {
	if c == nil {
		return errors.New("nil NodeConfig")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if !chord.ValidID(c.ID) {
		return chord.ErrorWithID(chord.ErrInvalidID, c.ID)
	}
	if c.Transport == nil {
		return errors.New("nil Transport")
	}
	if c.Rendezvous == "" {
		return errors.New("empty Rendezvous address")
	}
	if c.Store == nil {
		c.Store = memory.WithHashFn(chord.FileKey)
	}
	if c.ResultHandler == nil {
		c.ResultHandler = func(*protocol.Message) {}
	}
	if c.HandoffTimeout <= 0 {
		c.HandoffTimeout = time.Second * 5
	}
	return nil
}
