package tunnel

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Forward describes one local port forward.
type Forward struct {
	LocalPort  int
	RemoteHost string
	RemotePort int
	SSHAlias   string
}

// Spec renders the -L argument, "local:host:remote".
func (f Forward) Spec() string {
	return strconv.Itoa(f.LocalPort) + ":" + f.RemoteHost + ":" + strconv.Itoa(f.RemotePort)
}

// Spawner starts a backgrounded forwarding process. Spawn returns once the
// launcher has exited; the forwarding process itself keeps running.
type Spawner interface {
	Spawn(ctx context.Context, fwd Forward) (output string, err error)
}

// SSHSpawner runs the system ssh client.
type SSHSpawner struct {
	// Binary is the ssh executable, "ssh" when empty.
	Binary string
	// ExtraArgs are inserted before the -L option.
	ExtraArgs []string
}

// Args returns the full ssh argument list for fwd.
func (s SSHSpawner) Args(fwd Forward) []string {
	args := []string{
		"-f", "-N",
		"-o", "ExitOnForwardFailure=yes",
		"-o", "ServerAliveInterval=60",
	}
	args = append(args, s.ExtraArgs...)
	return append(args, "-L", fwd.Spec(), fwd.SSHAlias)
}

// Spawn runs ssh -f and waits for the launcher to return.
func (s SSHSpawner) Spawn(ctx context.Context, fwd Forward) (string, error) {
	bin := s.Binary
	if bin == "" {
		bin = "ssh"
	}
	cmd := exec.CommandContext(ctx, bin, s.Args(fwd)...)
	// ssh -f forks after authentication; the forked child can keep our
	// output pipes open for its whole lifetime.
	cmd.WaitDelay = 2 * time.Second

	out, err := cmd.CombinedOutput()
	if errors.Is(err, exec.ErrWaitDelay) {
		return string(out), nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return string(out), fmt.Errorf("ssh did not return in time: %w", ctx.Err())
		}
		return string(out), err
	}
	return string(out), nil
}
