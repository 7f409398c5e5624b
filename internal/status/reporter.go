// Package status reconciles the state directory with the live process table
// and reports every known tunnel. It never creates tunnels; the only
// mutation is the stale-record cleanup done by the liveness checker.
package status

import (
	"context"
	"errors"
	"time"

	"tunnelctl/internal/kube"
	"tunnelctl/internal/ports"
	"tunnelctl/internal/state"
	"tunnelctl/pkg/logging"
)

// State is the observed state of a tunnel.
type State string

const (
	StateRunning State = "running"
	StateDown    State = "down"
	// StateUnknown marks entries whose state files could not be read.
	StateUnknown State = "unknown"
)

// Store is the read side of the state store.
type Store interface {
	ListContexts() ([]string, error)
	ReadNetworkMetadata(name string) (*state.NetworkMetadata, error)
}

// Liveness resolves the running pid of a context.
type Liveness interface {
	RunningPID(ctx context.Context, name string) (int, bool, error)
}

// Entry is the status of one context.
type Entry struct {
	Name    string                 `json:"name"`
	State   State                  `json:"state"`
	PID     int                    `json:"pid,omitempty"`
	Port    int                    `json:"port"`
	Network *state.NetworkMetadata `json:"network,omitempty"`
	Err     error                  `json:"-"`
	Error   string                 `json:"error,omitempty"`
}

// Snapshot is a full status report.
type Snapshot struct {
	Entries []Entry `json:"entries"`
	// Current is the active kubeconfig context, empty when unknown.
	Current string `json:"currentContext,omitempty"`
	// RoutingCommands are the distinct sshuttle commands needed by running
	// tunnels, in entry order.
	RoutingCommands []string `json:"routingCommands,omitempty"`
}

// Counts returns the number of running and total entries.
func (s Snapshot) Counts() (running, total int) {
	for _, e := range s.Entries {
		if e.State == StateRunning {
			running++
		}
	}
	return running, len(s.Entries)
}

// Reporter builds status reports.
type Reporter struct {
	store          Store
	liveness       Liveness
	contexts       kube.ContextSwitcher
	portRange      ports.Range
	contextTimeout time.Duration
}

// NewReporter wires a Reporter. contexts may be nil, in which case the
// current context is never reported.
func NewReporter(store Store, liveness Liveness, contexts kube.ContextSwitcher, portRange ports.Range, contextTimeout time.Duration) *Reporter {
	if contextTimeout <= 0 {
		contextTimeout = 5 * time.Second
	}
	return &Reporter{
		store:          store,
		liveness:       liveness,
		contexts:       contexts,
		portRange:      portRange,
		contextTimeout: contextTimeout,
	}
}

// ListAll returns one entry per recorded context, sorted by name. A broken
// entry is reported as unknown; only a failing directory listing is an
// error.
func (r *Reporter) ListAll(ctx context.Context) ([]Entry, error) {
	names, err := r.store.ListContexts()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, r.entry(ctx, name))
	}
	return entries, nil
}

func (r *Reporter) entry(ctx context.Context, name string) Entry {
	e := Entry{Name: name, Port: ports.Allocate(name, r.portRange)}

	pid, running, err := r.liveness.RunningPID(ctx, name)
	switch {
	case err != nil:
		e.State = StateUnknown
		e.Err = err
	case running:
		e.State = StateRunning
		e.PID = pid
	default:
		e.State = StateDown
	}

	meta, merr := r.store.ReadNetworkMetadata(name)
	if merr != nil {
		e.State = StateUnknown
		e.Err = errors.Join(e.Err, merr)
	}
	e.Network = meta

	if e.Err != nil {
		e.Error = e.Err.Error()
		logging.Warn("Status", "Cannot determine state of %s: %v", name, e.Err)
	}
	return e
}

// CurrentContext returns the active kubeconfig context. Any failure,
// including the lookup exceeding its timeout, reports absent.
func (r *Reporter) CurrentContext(ctx context.Context) (string, bool) {
	if r.contexts == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, r.contextTimeout)
	defer cancel()

	name, err := r.contexts.CurrentContext(ctx)
	if err != nil {
		logging.Debug("Status", "Current kubeconfig context unavailable: %v", err)
		return "", false
	}
	return name, true
}

// Snapshot gathers entries, the active context and routing commands.
func (r *Reporter) Snapshot(ctx context.Context) (Snapshot, error) {
	entries, err := r.ListAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Entries: entries}
	snap.Current, _ = r.CurrentContext(ctx)
	snap.RoutingCommands = RoutingCommands(entries)
	return snap, nil
}

// RoutingCommands returns the distinct sshuttle commands of running entries.
func RoutingCommands(entries []Entry) []string {
	var cmds []string
	seen := map[string]bool{}
	for _, e := range entries {
		if e.State != StateRunning || e.Network == nil || e.Network.Type != state.NetworkSshuttle {
			continue
		}
		cmd := e.Network.CommandOrEmpty()
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		cmds = append(cmds, cmd)
	}
	return cmds
}
