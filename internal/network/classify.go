package network

import (
	"fmt"
	"net/netip"
	"strings"

	"tunnelctl/internal/state"
)

// DefaultRoutingCommand is the remediation template; {gateway} and {range}
// are substituted.
const DefaultRoutingCommand = "sshuttle -v -r {gateway} {range}"

// Host carries the inventory attributes classification looks at.
type Host struct {
	NeedsVPN bool
	// Address is the cluster's internal address.
	Address string
}

// Requirement is the classification of one host.
type Requirement struct {
	NeedsVPN       bool
	Type           state.NetworkType
	Range          string
	RoutingCommand string
}

// IsDirect reports whether the host needs no extra network setup.
func (r Requirement) IsDirect() bool {
	return !r.NeedsVPN && r.Type == state.NetworkNone
}

// Label is a short human description, empty for direct hosts.
func (r Requirement) Label() string {
	switch {
	case r.NeedsVPN:
		return "requires VPN"
	case r.Type == state.NetworkSshuttle:
		return "requires sshuttle"
	default:
		return ""
	}
}

// Metadata converts the requirement into its persisted form.
func (r Requirement) Metadata(internalIP string) state.NetworkMetadata {
	return state.NetworkMetadata{
		Type:           r.Type,
		Range:          state.StringPtr(r.Range),
		RoutingCommand: state.StringPtr(r.RoutingCommand),
		NeedsVPN:       r.NeedsVPN,
		InternalIP:     state.StringPtr(internalIP),
	}
}

// Classifier maps hosts onto requirements.
type Classifier struct {
	overlays []netip.Prefix
	gateway  string
	template string
}

// NewClassifier parses the configured overlay ranges. gateway is the
// sshuttle remote ("user@host"); template defaults to DefaultRoutingCommand.
func NewClassifier(overlayRanges []string, gateway, template string) (*Classifier, error) {
	c := &Classifier{gateway: gateway, template: template}
	if c.template == "" {
		c.template = DefaultRoutingCommand
	}
	for _, r := range overlayRanges {
		p, err := netip.ParsePrefix(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("invalid overlay range %q: %w", r, err)
		}
		c.overlays = append(c.overlays, p.Masked())
	}
	return c, nil
}

// Classify decides what h needs. The first overlay range containing the
// address wins.
func (c *Classifier) Classify(h Host) Requirement {
	req := Requirement{NeedsVPN: h.NeedsVPN}

	addr, err := netip.ParseAddr(strings.TrimSpace(h.Address))
	if err != nil {
		return req
	}
	for _, p := range c.overlays {
		if p.Contains(addr) {
			req.Type = state.NetworkSshuttle
			req.Range = p.String()
			req.RoutingCommand = c.RoutingCommand(req.Range)
			break
		}
	}
	return req
}

// RoutingCommand renders the remediation command for cidr.
func (c *Classifier) RoutingCommand(cidr string) string {
	return RenderRoutingCommand(c.template, c.gateway, cidr)
}

// RenderRoutingCommand substitutes gateway and cidr into template.
func RenderRoutingCommand(template, gateway, cidr string) string {
	if template == "" {
		template = DefaultRoutingCommand
	}
	if gateway == "" {
		gateway = "<gateway>"
	}
	return strings.NewReplacer("{gateway}", gateway, "{range}", cidr).Replace(template)
}
