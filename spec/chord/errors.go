package chord

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrJoinRejected      = errorDef("chord/membership: node identifier is already in use", false)
	ErrJoinInvalidState  = errorDef("chord/membership: node is not offline", false)
	ErrLeaveInvalidState = errorDef("chord/membership: node is not online", false)
	ErrEmptyMembership   = errorDef("chord/membership: membership view has no live nodes", false)

	ErrNodeOffline       = errorDef("chord: node is not part of the ring", false)
	ErrUnknownAddress    = errorDef("chord: no address known for node", false)
	ErrInvalidID         = errorDef("chord: identifier is outside of the ring", false)
	ErrUnexpectedMessage = errorDef("chord/protocol: unexpected message", false)

	ErrConnectionRefused = errorDef("chord/transport: peer is unreachable", true)
)

func ErrorIsRetryable(err error) bool {
	for e, ok := range retryableMap {
		if ok && errors.Is(err, e) {
			return true
		}
	}
	return false
}

var retryableMap map[error]bool = map[error]bool{
	context.DeadlineExceeded: true,
}

func errorDef(str string, retryable bool) error {
	err := errors.New(str)
	retryableMap[err] = retryable
	return err
}

// ErrorWithID attaches the offending identifier while keeping the sentinel matchable.
func ErrorWithID(err error, id int) error {
	return fmt.Errorf("%w (id: %d)", err, id)
}
