package tunnel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProcessLookup means the tunnel was spawned but its pid could not be
// recovered from the process table. The forward may still work; the tunnel is
// reported with an unknown pid and nothing is recorded.
var ErrProcessLookup = errors.New("could not determine tunnel pid")

// CreationError is returned when the ssh invocation that should establish a
// tunnel fails, for example because the local port is already bound or
// authentication was refused. It is not retried.
type CreationError struct {
	Context string
	Output  string
	Err     error
}

func (e *CreationError) Error() string {
	msg := fmt.Sprintf("failed to create SSH tunnel for %s: %v", e.Context, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
