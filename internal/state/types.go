package state

import (
	"errors"
	"fmt"
)

// NetworkType describes which extra routing a cluster needs.
type NetworkType string

const (
	NetworkNone     NetworkType = ""
	NetworkSshuttle NetworkType = "sshuttle"
	NetworkVPN      NetworkType = "vpn"
)

// TunnelRecord is what the store remembers about a running tunnel.
type TunnelRecord struct {
	PID int
}

// NetworkMetadata records the network requirements of a context at the time
// its tunnel was created. Optional values are pointers so that "absent" and
// "empty" stay distinguishable on disk.
type NetworkMetadata struct {
	Type           NetworkType `yaml:"network_type,omitempty" json:"networkType,omitempty"`
	Range          *string     `yaml:"network_range,omitempty" json:"networkRange,omitempty"`
	RoutingCommand *string     `yaml:"sshuttle_command,omitempty" json:"routingCommand,omitempty"`
	NeedsVPN       bool        `yaml:"needs_vpn,omitempty" json:"needsVpn,omitempty"`
	InternalIP     *string     `yaml:"internal_ip,omitempty" json:"internalIp,omitempty"`
}

// IsRequired reports whether the metadata describes any requirement at all.
// Metadata that is not required is never written.
func (m NetworkMetadata) IsRequired() bool {
	return m.Type != NetworkNone || m.NeedsVPN
}

// RangeOrEmpty returns the CIDR range or "".
func (m NetworkMetadata) RangeOrEmpty() string {
	if m.Range == nil {
		return ""
	}
	return *m.Range
}

// CommandOrEmpty returns the routing command or "".
func (m NetworkMetadata) CommandOrEmpty() string {
	if m.RoutingCommand == nil {
		return ""
	}
	return *m.RoutingCommand
}

// StringPtr returns nil for "" and a pointer otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var (
	// ErrInvalidContext is returned for context names that cannot be used as
	// file names inside the state directory.
	ErrInvalidContext = errors.New("invalid context name")
)

// ParseError reports a state file whose contents could not be understood.
type ParseError struct {
	Context string
	Path    string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("corrupt state file %s for context %q: %v", e.Path, e.Context, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
