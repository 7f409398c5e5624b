package connect

import (
	"fmt"
	"strings"

	"tunnelctl/internal/inventory"
)

// Selection names the hosts to connect.
type Selection struct {
	// Args are "company:alias" selectors or context names, in order.
	Args    []string
	All     bool
	Company string
}

// Select resolves sel against inv. Order follows Args, then the inventory
// order for --company and --all; duplicates are dropped.
func Select(inv *inventory.Inventory, sel Selection) ([]inventory.Host, error) {
	var out []inventory.Host
	seen := map[string]bool{}
	add := func(h inventory.Host) {
		if !seen[h.Context()] {
			seen[h.Context()] = true
			out = append(out, h)
		}
	}

	for _, arg := range sel.Args {
		h, err := inv.Find(arg)
		if err != nil {
			return nil, err
		}
		add(h)
	}
	if sel.Company != "" {
		hosts := inv.ByCompany(sel.Company)
		if len(hosts) == 0 {
			return nil, fmt.Errorf("%w: company %q has no hosts (known: %s)", ErrNoTargets, sel.Company, strings.Join(inv.Companies(), ", "))
		}
		for _, h := range hosts {
			add(h)
		}
	}
	if sel.All {
		for _, h := range inv.Hosts {
			add(h)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}
