// Package liveness decides whether recorded tunnels are still running.
//
// A tunnel counts as running when the state store holds a record for it and
// the recorded pid still exists. Records pointing at dead processes are
// deleted on the spot, so callers never need a separate garbage collection
// pass.
//
// The pid is only a proxy for the tunnel. After a reboot or a long uptime the
// pid can be reused by an unrelated process, which then looks like a live
// tunnel. This is an accepted limitation.
package liveness

import (
	"context"

	"tunnelctl/internal/process"
	"tunnelctl/internal/state"
	"tunnelctl/pkg/logging"
)

// RecordStore is the part of the state store the checker needs.
type RecordStore interface {
	ReadTunnelRecord(name string) (state.TunnelRecord, bool, error)
	DeleteTunnelRecord(name string) error
}

// Checker probes recorded tunnel processes.
type Checker struct {
	store RecordStore
	procs process.Table
}

// NewChecker creates a checker over store and procs.
func NewChecker(store RecordStore, procs process.Table) *Checker {
	return &Checker{store: store, procs: procs}
}

// IsAlive reports whether pid refers to an existing process. Probe errors
// count as "not alive".
func (c *Checker) IsAlive(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := c.procs.Exists(ctx, pid)
	if err != nil {
		logging.Debug("Liveness", "Existence probe for pid %d failed: %v", pid, err)
		return false
	}
	return ok
}

// IsTunnelRunning reports whether the tunnel for name is alive, deleting a
// stale record as a side effect. A corrupt record is returned as an error and
// left untouched.
func (c *Checker) IsTunnelRunning(ctx context.Context, name string) (bool, error) {
	_, running, err := c.RunningPID(ctx, name)
	return running, err
}

// RunningPID is IsTunnelRunning that also returns the live pid.
func (c *Checker) RunningPID(ctx context.Context, name string) (int, bool, error) {
	rec, found, err := c.store.ReadTunnelRecord(name)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	if c.IsAlive(ctx, rec.PID) {
		return rec.PID, true, nil
	}

	logging.Debug("Liveness", "Tunnel record for %s points at dead pid %d, removing it", name, rec.PID)
	if err := c.store.DeleteTunnelRecord(name); err != nil {
		logging.Warn("Liveness", "Failed to remove stale tunnel record for %s: %v", name, err)
	}
	return 0, false, nil
}
