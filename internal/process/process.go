// Package process inspects and signals OS processes by pid and command line.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrNotFound is returned by Terminate when the pid does not exist.
var ErrNotFound = errors.New("process not found")

// Matcher decides whether a process command line is of interest.
type Matcher func(cmdline string) bool

// Table is the subset of the OS process table tunnelctl relies on.
type Table interface {
	// Exists performs a zero-effect existence probe for pid.
	Exists(ctx context.Context, pid int) (bool, error)
	// Find returns the pids whose command line satisfies match, ascending.
	// The calling process is never included.
	Find(ctx context.Context, match Matcher) ([]int, error)
	// Terminate asks pid to exit gracefully (SIGTERM on unix).
	Terminate(ctx context.Context, pid int) error
}

// System is the Table backed by the real process table.
type System struct{}

// NewSystem returns the OS process table.
func NewSystem() *System {
	return &System{}
}

// Exists reports whether pid is present in the process table.
func (System) Exists(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	return process.PidExistsWithContext(ctx, int32(pid))
}

// Find scans every process command line.
func (System) Find(ctx context.Context, match Matcher) ([]int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	self := os.Getpid()
	var pids []int
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if int(p.Pid) == self {
			continue
		}
		// Processes can exit or be unreadable between listing and reading.
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || cmdline == "" {
			continue
		}
		if match(cmdline) {
			pids = append(pids, int(p.Pid))
		}
	}
	sort.Ints(pids)
	return pids, nil
}

// Terminate sends SIGTERM to pid.
func (System) Terminate(ctx context.Context, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: pid %d", ErrNotFound, pid)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return fmt.Errorf("%w: pid %d", ErrNotFound, pid)
		}
		return fmt.Errorf("failed to look up pid %d: %w", pid, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("failed to terminate pid %d: %w", pid, err)
	}
	return nil
}

// ContainsAll returns a Matcher requiring every part to appear in the command
// line, in order.
func ContainsAll(parts ...string) Matcher {
	return func(cmdline string) bool {
		rest := cmdline
		for _, part := range parts {
			i := strings.Index(rest, part)
			if i < 0 {
				return false
			}
			rest = rest[i+len(part):]
		}
		return true
	}
}
