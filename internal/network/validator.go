package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"tunnelctl/internal/process"
	"tunnelctl/internal/state"
	"tunnelctl/pkg/logging"
)

// ErrNotSatisfied is the advisory error form of an unsatisfied requirement.
var ErrNotSatisfied = errors.New("network requirement not satisfied")

const sshuttleProcess = "sshuttle"

// MetadataReader reads persisted network metadata.
type MetadataReader interface {
	ReadNetworkMetadata(name string) (*state.NetworkMetadata, error)
}

// Result is the outcome of validating one context.
type Result struct {
	Context   string
	Satisfied bool
	// Warning is a user facing explanation when not satisfied.
	Warning string
	// RemediationCommand is the command that would satisfy the requirement.
	RemediationCommand string
	Metadata           *state.NetworkMetadata
	// Err is set when the metadata could not be read.
	Err error
}

// AsError returns nil for satisfied results and an error wrapping
// ErrNotSatisfied (or the read error) otherwise.
func (r Result) AsError() error {
	switch {
	case r.Err != nil:
		return r.Err
	case r.Satisfied:
		return nil
	default:
		return fmt.Errorf("%w for %s: %s", ErrNotSatisfied, r.Context, r.Warning)
	}
}

// Validator checks persisted requirements against the running system.
type Validator struct {
	store      MetadataReader
	procs      process.Table
	classifier *Classifier
	timeout    time.Duration
}

// NewValidator creates a validator. classifier is used to render a
// remediation command when the metadata carries none; it may be nil.
// timeout bounds each process-table scan.
func NewValidator(store MetadataReader, procs process.Table, classifier *Classifier, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Validator{store: store, procs: procs, classifier: classifier, timeout: timeout}
}

// ValidateContext checks the network requirements recorded for name.
func (v *Validator) ValidateContext(ctx context.Context, name string) Result {
	res := Result{Context: name}

	meta, err := v.store.ReadNetworkMetadata(name)
	if err != nil {
		logging.Warn("Network", "Cannot read network metadata for %s: %v", name, err)
		res.Err = err
		res.Warning = "network requirements unknown: " + err.Error()
		return res
	}
	res.Metadata = meta
	if meta == nil {
		res.Satisfied = true
		return res
	}

	if meta.NeedsVPN {
		res.Warning = "This cluster requires VPN connection; make sure it is up before using the context"
		return res
	}

	if meta.Type == state.NetworkSshuttle {
		cidr := meta.RangeOrEmpty()
		cmd := meta.CommandOrEmpty()
		if cmd == "" {
			if v.classifier != nil {
				cmd = v.classifier.RoutingCommand(cidr)
			} else {
				cmd = RenderRoutingCommand("", "", cidr)
			}
		}
		res.RemediationCommand = cmd

		if v.SshuttleActive(ctx, cidr) {
			res.Satisfied = true
			return res
		}
		res.Warning = fmt.Sprintf("This cluster requires sshuttle for %s\n  Run: %s", cidr, cmd)
		return res
	}

	res.Satisfied = true
	return res
}

// SshuttleActive reports whether an sshuttle process appears to route cidr.
// Any sshuttle process is accepted when none mentions the range.
func (v *Validator) SshuttleActive(ctx context.Context, cidr string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if cidr != "" {
		pids, err := v.procs.Find(ctx, process.ContainsAll(sshuttleProcess, cidr))
		if err != nil {
			logging.Debug("Network", "sshuttle scan for %s failed: %v", cidr, err)
			return false
		}
		if len(pids) > 0 {
			logging.Debug("Network", "Found sshuttle process %d for %s", pids[0], cidr)
			return true
		}
	}

	pids, err := v.procs.Find(ctx, process.ContainsAll(sshuttleProcess))
	if err != nil {
		logging.Debug("Network", "Generic sshuttle scan failed: %v", err)
		return false
	}
	if len(pids) > 0 {
		logging.Debug("Network", "Found generic sshuttle process %d, assuming it covers %s", pids[0], cidr)
		return true
	}
	return false
}

// ProbeReachable reports whether a TCP connection to ip:port succeeds within
// timeout.
func ProbeReachable(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		logging.Debug("Network", "Reachability probe %s:%d failed: %v", ip, port, err)
		return false
	}
	_ = conn.Close()
	return true
}
