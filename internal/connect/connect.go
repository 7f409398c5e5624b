// Package connect brings up tunnels for a batch of inventory hosts, one
// after the other in the order given, and makes the first successful
// context the active kubeconfig context.
package connect

import (
	"context"
	"errors"
	"fmt"

	"tunnelctl/internal/inventory"
	"tunnelctl/internal/kube"
	"tunnelctl/internal/network"
	"tunnelctl/internal/state"
	"tunnelctl/internal/tunnel"
	"tunnelctl/pkg/logging"
)

var (
	// ErrNoTargets is returned when a selection resolves to no hosts.
	ErrNoTargets = errors.New("no clusters selected")
	// ErrNoAddress is recorded for hosts without internal_ip or ansible_host.
	ErrNoAddress = errors.New("host has no internal address")
)

// Tunnels is the lifecycle manager as seen by the connector.
type Tunnels interface {
	Port(name string) int
	Ensure(ctx context.Context, req tunnel.Request) (tunnel.Tunnel, error)
}

// Fetcher installs the kubeconfig context of a host.
type Fetcher interface {
	Fetch(ctx context.Context, name, alias string, localPort int) (kube.FetchResult, error)
}

// MetadataStore persists network requirements.
type MetadataStore interface {
	WriteNetworkMetadata(name string, meta state.NetworkMetadata) error
	DeleteNetworkMetadata(name string) error
}

// AliasChecker tells whether an ssh alias is configured.
type AliasChecker interface {
	Known(alias string) bool
}

// Result is the outcome for one host.
type Result struct {
	Host             inventory.Host
	Context          string
	Port             int
	PID              int
	Reused           bool
	KubeconfigCached bool
	Requirement      network.Requirement
	// NetworkWarning is set when the network requirement is not met yet.
	NetworkWarning string
	Err            error
}

// OK reports whether the host was connected.
func (r Result) OK() bool {
	return r.Err == nil
}

// Summary is the outcome of a batch.
type Summary struct {
	Results []Result
	// Active is the context switched to, empty when none.
	Active      string
	ActivateErr error
}

// Succeeded returns the connected results in order.
func (s Summary) Succeeded() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the failed results in order.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Options configure a Connector.
type Options struct {
	APIPort int
}

// Connector runs batch connects.
type Connector struct {
	tunnels    Tunnels
	fetcher    Fetcher
	store      MetadataStore
	classifier *network.Classifier
	validator  *network.Validator
	contexts   kube.ContextSwitcher
	aliases    AliasChecker
	opts       Options
}

// NewConnector wires a Connector. validator and aliases may be nil.
func NewConnector(tunnels Tunnels, fetcher Fetcher, store MetadataStore, classifier *network.Classifier,
	validator *network.Validator, contexts kube.ContextSwitcher, aliases AliasChecker, opts Options) *Connector {
	if opts.APIPort <= 0 {
		opts.APIPort = 6443
	}
	return &Connector{
		tunnels:    tunnels,
		fetcher:    fetcher,
		store:      store,
		classifier: classifier,
		validator:  validator,
		contexts:   contexts,
		aliases:    aliases,
		opts:       opts,
	}
}

// Connect connects hosts sequentially. A failing host does not stop the
// batch. The first successful context becomes active.
func (c *Connector) Connect(ctx context.Context, hosts []inventory.Host) (Summary, error) {
	if len(hosts) == 0 {
		return Summary{}, ErrNoTargets
	}

	var sum Summary
	for _, h := range hosts {
		if err := ctx.Err(); err != nil {
			sum.Results = append(sum.Results, Result{Host: h, Context: h.Context(), Err: err})
			continue
		}
		sum.Results = append(sum.Results, c.ConnectOne(ctx, h))
	}

	if ok := sum.Succeeded(); len(ok) > 0 && c.contexts != nil {
		first := ok[0].Context
		if err := c.contexts.UseContext(ctx, first); err != nil {
			logging.Error("Connect", err, "Failed to switch to context %s", first)
			sum.ActivateErr = err
		} else {
			sum.Active = first
		}
	}

	logging.Info("Connect", "Connected %d of %d clusters", len(sum.Succeeded()), len(sum.Results))
	return sum, nil
}

// ConnectOne installs the kubeconfig context, ensures the tunnel and records
// the network requirements of h.
func (c *Connector) ConnectOne(ctx context.Context, h inventory.Host) Result {
	name := h.Context()
	res := Result{Host: h, Context: name, Port: c.tunnels.Port(name)}

	if h.InternalIP == "" {
		res.Err = fmt.Errorf("%w: %s", ErrNoAddress, h.Selector())
		return res
	}
	if c.aliases != nil && !c.aliases.Known(h.Alias) {
		logging.Warn("Connect", "SSH alias %s has no Host block; relying on ssh defaults", h.Alias)
	}

	if c.classifier != nil {
		res.Requirement = c.classifier.Classify(network.Host{NeedsVPN: h.NeedsVPN, Address: h.InternalIP})
	} else {
		res.Requirement = network.Requirement{NeedsVPN: h.NeedsVPN}
	}

	logging.Info("Connect", "Connecting %s", name)
	fetched, err := c.fetcher.Fetch(ctx, name, h.Alias, res.Port)
	if err != nil {
		res.Err = err
		return res
	}
	res.KubeconfigCached = fetched.Cached

	tun, err := c.tunnels.Ensure(ctx, tunnel.Request{
		Context:    name,
		SSHAlias:   h.Alias,
		InternalIP: h.InternalIP,
		TargetPort: c.opts.APIPort,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.PID = tun.PID
	res.Reused = tun.Reused

	if res.Requirement.IsDirect() {
		err = c.store.DeleteNetworkMetadata(name)
	} else {
		err = c.store.WriteNetworkMetadata(name, res.Requirement.Metadata(h.InternalIP))
	}
	if err != nil {
		// The tunnel is up; missing metadata only weakens later validation.
		logging.Warn("Connect", "Failed to record network requirements for %s: %v", name, err)
	}

	if c.validator != nil && !res.Requirement.IsDirect() {
		if v := c.validator.ValidateContext(ctx, name); !v.Satisfied {
			res.NetworkWarning = v.Warning
		}
	}
	return res
}
