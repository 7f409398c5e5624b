// Package inventory loads Ansible style host inventories, one file per
// company, and turns them into tunnel targets.
//
// Files are named {company}_hosts.yml and follow the usual layout:
//
//	all:
//	  vars:
//	    needs_vpn: false
//	  children:
//	    k3s:
//	      vars: {...}
//	      hosts:
//	        prod1:
//	          internal_ip: 10.0.5.20
//
// Custom tags such as !vault are accepted and treated as plain values.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tunnelctl/pkg/logging"
)

const fileSuffix = "_hosts.yml"

// ErrHostNotFound is returned by Find for unknown selectors.
var ErrHostNotFound = errors.New("host not found in inventory")

// Host is one cluster entry point.
type Host struct {
	Company    string `json:"company"`
	Alias      string `json:"alias"`
	Group      string `json:"group"`
	InternalIP string `json:"internalIp,omitempty"`
	NeedsVPN   bool   `json:"needsVpn,omitempty"`
}

// Context is the kubeconfig context and state key of the host.
func (h Host) Context() string {
	return h.Company + "-" + h.Alias
}

// Selector is the "company:alias" form accepted on the command line.
func (h Host) Selector() string {
	return h.Company + ":" + h.Alias
}

// Inventory is the set of hosts of every company, sorted by company and
// alias.
type Inventory struct {
	Hosts []Host
}

type group struct {
	Vars     map[string]any            `yaml:"vars"`
	Hosts    map[string]map[string]any `yaml:"hosts"`
	Children map[string]group          `yaml:"children"`
}

type inventoryFile struct {
	All group `yaml:"all"`
}

// Load reads every *_hosts.yml file in dir. A missing directory yields an
// empty inventory; a broken file is logged and skipped.
func Load(dir string) (*Inventory, error) {
	inv := &Inventory{}
	matches, err := filepath.Glob(filepath.Join(dir, "*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory in %s: %w", dir, err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		company := strings.TrimSuffix(filepath.Base(path), fileSuffix)
		hosts, err := loadFile(path, company)
		if err != nil {
			logging.Warn("Inventory", "Skipping %s: %v", path, err)
			continue
		}
		inv.Hosts = append(inv.Hosts, hosts...)
	}

	sort.SliceStable(inv.Hosts, func(i, j int) bool {
		a, b := inv.Hosts[i], inv.Hosts[j]
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		return a.Alias < b.Alias
	})
	logging.Debug("Inventory", "Loaded %d hosts from %d files in %s", len(inv.Hosts), len(matches), dir)
	return inv, nil
}

func loadFile(path, company string) ([]Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data, company)
}

func parse(data []byte, company string) ([]Host, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 {
		return nil, nil
	}
	stripCustomTags(&root)

	var f inventoryFile
	if err := root.Decode(&f); err != nil {
		return nil, err
	}

	allVPN := truthy(f.All.Vars["needs_vpn"])
	var hosts []Host
	for groupName, g := range f.All.Children {
		groupVPN, groupSet := lookupBool(g.Vars, "needs_vpn")
		for alias, vars := range g.Hosts {
			h := Host{
				Company:    company,
				Alias:      alias,
				Group:      groupName,
				InternalIP: firstString(vars, "internal_ip", "ansible_host"),
				NeedsVPN:   allVPN,
			}
			if groupSet {
				h.NeedsVPN = groupVPN
			}
			if v, ok := lookupBool(vars, "needs_vpn"); ok {
				h.NeedsVPN = v
			}
			hosts = append(hosts, h)
		}
	}
	return hosts, nil
}

// stripCustomTags retags nodes carrying local tags (!vault and friends) with
// their plain kind so they decode like untagged values.
func stripCustomTags(n *yaml.Node) {
	if strings.HasPrefix(n.Tag, "!") && !strings.HasPrefix(n.Tag, "!!") {
		switch n.Kind {
		case yaml.MappingNode:
			n.Tag = "!!map"
		case yaml.SequenceNode:
			n.Tag = "!!seq"
		default:
			n.Tag = "!!str"
		}
	}
	for _, c := range n.Content {
		stripCustomTags(c)
	}
}

func lookupBool(vars map[string]any, key string) (bool, bool) {
	v, ok := vars[key]
	if !ok || v == nil {
		return false, false
	}
	return truthy(v), true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err == nil {
			return b
		}
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "on":
			return true
		}
	}
	return false
}

func firstString(vars map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := vars[k]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// Companies returns the distinct company names.
func (inv *Inventory) Companies() []string {
	var out []string
	seen := map[string]bool{}
	for _, h := range inv.Hosts {
		if !seen[h.Company] {
			seen[h.Company] = true
			out = append(out, h.Company)
		}
	}
	return out
}

// ByCompany returns the hosts of company.
func (inv *Inventory) ByCompany(company string) []Host {
	var out []Host
	for _, h := range inv.Hosts {
		if h.Company == company {
			out = append(out, h)
		}
	}
	return out
}

// Find resolves "company:alias" or a context name ("company-alias").
func (inv *Inventory) Find(selector string) (Host, error) {
	for _, h := range inv.Hosts {
		if h.Selector() == selector || h.Context() == selector {
			return h, nil
		}
	}
	return Host{}, fmt.Errorf("%w: %s", ErrHostNotFound, selector)
}
