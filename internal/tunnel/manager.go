// Package tunnel creates, verifies and tears down SSH tunnel processes.
//
// Each context moves through ABSENT -> CREATING -> RUNNING and back to ABSENT
// when its process is killed (by us or externally). The Manager never keeps
// state between calls; the state store and the OS process table are
// consulted every time, so tunnels outlive the invocation that created them.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tunnelctl/internal/ports"
	"tunnelctl/internal/process"
	"tunnelctl/internal/state"
	"tunnelctl/pkg/logging"
)

// Store is the part of the state store the manager needs.
type Store interface {
	ReadTunnelRecord(name string) (state.TunnelRecord, bool, error)
	WriteTunnelRecord(name string, rec state.TunnelRecord) error
	DeleteTunnelRecord(name string) error
	DeleteNetworkMetadata(name string) error
	ListContexts() ([]string, error)
}

// Liveness reports whether a recorded tunnel is alive.
type Liveness interface {
	RunningPID(ctx context.Context, name string) (int, bool, error)
}

// Options tune the manager.
type Options struct {
	PortRange ports.Range
	// SettleDelay is waited after ssh returns before searching for the pid.
	SettleDelay time.Duration
	// SpawnTimeout bounds the ssh invocation.
	SpawnTimeout time.Duration
}

// Request asks for a tunnel for one context.
type Request struct {
	Context    string
	SSHAlias   string
	InternalIP string
	TargetPort int
}

// Tunnel describes an established tunnel. PID is 0 when it is unknown.
type Tunnel struct {
	Context string
	Port    int
	PID     int
	// Reused is true when an already running tunnel was found.
	Reused bool
}

// Manager orchestrates port allocation, state and processes.
type Manager struct {
	store    Store
	liveness Liveness
	procs    process.Table
	spawner  Spawner
	opts     Options

	sleep func(ctx context.Context, d time.Duration)
}

// NewManager wires a Manager.
func NewManager(store Store, liveness Liveness, procs process.Table, spawner Spawner, opts Options) *Manager {
	if opts.SpawnTimeout <= 0 {
		opts.SpawnTimeout = 30 * time.Second
	}
	return &Manager{
		store:    store,
		liveness: liveness,
		procs:    procs,
		spawner:  spawner,
		opts:     opts,
		sleep:    sleepContext,
	}
}

// Port returns the local port of name.
func (m *Manager) Port(name string) int {
	return ports.Allocate(name, m.opts.PortRange)
}

// Ensure returns the running tunnel for req.Context, creating it if needed.
func (m *Manager) Ensure(ctx context.Context, req Request) (Tunnel, error) {
	if req.Context == "" || req.SSHAlias == "" || req.InternalIP == "" {
		return Tunnel{}, fmt.Errorf("incomplete tunnel request %+v", req)
	}
	if req.TargetPort <= 0 {
		return Tunnel{}, fmt.Errorf("invalid target port %d for %s", req.TargetPort, req.Context)
	}

	port := m.Port(req.Context)

	pid, running, err := m.liveness.RunningPID(ctx, req.Context)
	if err != nil {
		// A corrupt record is overwritten by the new tunnel.
		logging.Warn("Tunnel", "Ignoring unreadable tunnel record for %s: %v", req.Context, err)
	}
	if running {
		logging.Debug("Tunnel", "Tunnel for %s already running (pid %d, port %d)", req.Context, pid, port)
		return Tunnel{Context: req.Context, Port: port, PID: pid, Reused: true}, nil
	}

	fwd := Forward{
		LocalPort:  port,
		RemoteHost: req.InternalIP,
		RemotePort: req.TargetPort,
		SSHAlias:   req.SSHAlias,
	}

	// A forward whose pid was never recorded still holds the port; a new ssh
	// would fail with ExitOnForwardFailure, so take it over instead.
	if pid, ok := m.findForward(ctx, fwd); ok {
		if err := m.store.WriteTunnelRecord(req.Context, state.TunnelRecord{PID: pid}); err != nil {
			return Tunnel{Context: req.Context, Port: port, PID: pid, Reused: true}, err
		}
		logging.Info("Tunnel", "Adopted unrecorded tunnel for %s (pid %d, port %d)", req.Context, pid, port)
		return Tunnel{Context: req.Context, Port: port, PID: pid, Reused: true}, nil
	}

	logging.Info("Tunnel", "Creating tunnel for %s: localhost:%d -> %s:%d via %s", req.Context, port, req.InternalIP, req.TargetPort, req.SSHAlias)

	spawnCtx, cancel := context.WithTimeout(ctx, m.opts.SpawnTimeout)
	out, err := m.spawner.Spawn(spawnCtx, fwd)
	cancel()
	if err != nil {
		cerr := &CreationError{Context: req.Context, Output: out, Err: err}
		logging.Error("Tunnel", cerr, "SSH tunnel creation failed for %s", req.Context)
		return Tunnel{}, cerr
	}

	pid, err = m.discoverPID(ctx, fwd)
	if err != nil {
		logging.Warn("Tunnel", "Tunnel for %s started but %v; the next connect adopts it", req.Context, err)
		return Tunnel{Context: req.Context, Port: port}, nil
	}

	if err := m.store.WriteTunnelRecord(req.Context, state.TunnelRecord{PID: pid}); err != nil {
		return Tunnel{Context: req.Context, Port: port, PID: pid}, err
	}
	logging.Info("Tunnel", "Tunnel for %s running with pid %d", req.Context, pid)
	return Tunnel{Context: req.Context, Port: port, PID: pid}, nil
}

// findForward looks for a running ssh serving fwd without waiting.
func (m *Manager) findForward(ctx context.Context, fwd Forward) (int, bool) {
	pids, err := m.procs.Find(ctx, process.ContainsAll("ssh", fwd.Spec()))
	if err != nil {
		logging.Debug("Tunnel", "Process lookup for %s failed: %v", fwd.Spec(), err)
		return 0, false
	}
	if len(pids) == 0 {
		return 0, false
	}
	return pids[0], true
}

// discoverPID waits for the backgrounded ssh to settle and finds it by its
// forward spec.
func (m *Manager) discoverPID(ctx context.Context, fwd Forward) (int, error) {
	m.sleep(ctx, m.opts.SettleDelay)

	pids, err := m.procs.Find(ctx, process.ContainsAll("ssh", fwd.Spec()))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProcessLookup, err)
	}
	if len(pids) == 0 {
		return 0, fmt.Errorf("%w: no process matches %s", ErrProcessLookup, fwd.Spec())
	}
	return pids[0], nil
}

// Kill terminates the tunnel of name and removes its state. The state is
// removed even when the process is already gone or cannot be signalled.
// found reports whether a tunnel record (readable or not) existed.
func (m *Manager) Kill(ctx context.Context, name string) (bool, error) {
	rec, found, err := m.store.ReadTunnelRecord(name)
	switch {
	case err != nil:
		found = true
		logging.Warn("Tunnel", "Unreadable tunnel record for %s, removing it: %v", name, err)
	case found:
		if terr := m.procs.Terminate(ctx, rec.PID); terr != nil {
			if errors.Is(terr, process.ErrNotFound) {
				logging.Debug("Tunnel", "Tunnel process %d for %s already gone", rec.PID, name)
			} else {
				logging.Warn("Tunnel", "Failed to terminate tunnel for %s (pid %d): %v", name, rec.PID, terr)
			}
		} else {
			logging.Info("Tunnel", "Killed tunnel for %s (pid %d)", name, rec.PID)
		}
	}

	var errs []error
	if err := m.store.DeleteTunnelRecord(name); err != nil {
		errs = append(errs, err)
	}
	if err := m.store.DeleteNetworkMetadata(name); err != nil {
		errs = append(errs, err)
	}
	return found, errors.Join(errs...)
}

// KillAll kills every recorded tunnel and returns the contexts it processed.
// A failure for one context does not stop the others.
func (m *Manager) KillAll(ctx context.Context) ([]string, error) {
	names, err := m.store.ListContexts()
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, name := range names {
		if _, err := m.Kill(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return names, errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
