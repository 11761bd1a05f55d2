package rendezvous

import (
	"errors"
	"time"

	"go.miragespace.co/filering/spec/transport"

	"go.uber.org/zap"
)

type Config struct {
	Logger    *zap.Logger
	Transport transport.Transport
	// bound on one reply or one membership push to a peer
	PeerTimeout time.Duration
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil Config")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.Transport == nil {
		return errors.New("nil Transport")
	}
	if c.PeerTimeout <= 0 {
		c.PeerTimeout = transport.ConnectTimeout
	}
	return nil
}
