package transport

import (
	"fmt"
	"time"
)

var (
	ErrClosed = fmt.Errorf("transport is already closed")
)

const (
	ConnectTimeout = time.Second * 3
)
