package smtp

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// ErrorKindOf maps a transport error to its structured kind.
func ErrorKindOf(err error) types.ErrorKind {
	if err == nil {
		return types.ErrNone
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return types.ErrPort25Blocked
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return types.ErrConnectionReset
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, syscall.ETIMEDOUT):
		return types.ErrTimeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return types.ErrConnectionClosed
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrTimeout
	}

	return types.ErrConnectionFailed
}
