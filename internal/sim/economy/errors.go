package economy

import (
	"errors"
	"fmt"

	"starhaul.sim/internal/protocol"
)

// Error is a rejection the protocol layer can forward verbatim: a stable
// machine code plus a human message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the protocol error code from err, falling back to
// E_INTERNAL for anything that is not an economy Error.
func CodeOf(err error) string {
	var ec *Error
	if errors.As(err, &ec) {
		return ec.Code
	}
	return protocol.ErrInternal
}
