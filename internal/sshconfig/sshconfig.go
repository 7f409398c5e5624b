// Package sshconfig resolves host aliases against an OpenSSH client config.
package sshconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/kevinburke/ssh_config"

	"tunnelctl/pkg/logging"
)

// ErrUnknownAlias is returned when no Host block names the alias.
var ErrUnknownAlias = errors.New("ssh alias not defined")

// Entry is the resolved connection data of an alias.
type Entry struct {
	Alias     string
	HostName  string
	User      string
	Port      int
	ProxyJump string
}

// Resolver reads one ssh config file.
type Resolver struct {
	path string
	cfg  *ssh_config.Config
}

// Load parses the config at path. A missing file gives a resolver that knows
// no aliases.
func Load(path string) (*Resolver, error) {
	r := &Resolver{path: path}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Debug("SSHConfig", "No ssh config at %s", path)
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ssh config %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh config %s: %w", path, err)
	}
	r.cfg = cfg
	return r, nil
}

// Path returns the file the resolver was loaded from.
func (r *Resolver) Path() string {
	return r.path
}

// Known reports whether a Host block names alias literally.
func (r *Resolver) Known(alias string) bool {
	if r.cfg == nil {
		return false
	}
	for _, h := range r.cfg.Hosts {
		for _, p := range h.Patterns {
			if p.String() == alias {
				return true
			}
		}
	}
	return false
}

// Resolve returns the effective settings of alias, with wildcard blocks
// applied. Aliases without a literal Host block yield ErrUnknownAlias.
func (r *Resolver) Resolve(alias string) (Entry, error) {
	if !r.Known(alias) {
		return Entry{}, fmt.Errorf("%w: %s in %s", ErrUnknownAlias, alias, r.path)
	}
	e := Entry{Alias: alias}
	var err error
	if e.HostName, err = r.cfg.Get(alias, "HostName"); err != nil {
		return Entry{}, err
	}
	if e.HostName == "" {
		e.HostName = alias
	}
	if e.User, err = r.cfg.Get(alias, "User"); err != nil {
		return Entry{}, err
	}
	if e.ProxyJump, err = r.cfg.Get(alias, "ProxyJump"); err != nil {
		return Entry{}, err
	}
	port, err := r.cfg.Get(alias, "Port")
	if err != nil {
		return Entry{}, err
	}
	if port == "" {
		port = ssh_config.Default("Port")
	}
	if e.Port, err = strconv.Atoi(port); err != nil {
		return Entry{}, fmt.Errorf("invalid Port %q for %s: %w", port, alias, err)
	}
	return e, nil
}
