package status

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tunnelctl/internal/color"
	"tunnelctl/internal/state"
)

// RenderOptions tune text output.
type RenderOptions struct {
	// ShowCommands lists the routing commands below the table.
	ShowCommands bool
}

// Render writes a human readable report.
func Render(w io.Writer, snap Snapshot, opts RenderOptions) error {
	var b strings.Builder

	if len(snap.Entries) == 0 {
		b.WriteString(color.MutedStyle.Render("No tunnels recorded.") + "\n")
		if snap.Current != "" {
			fmt.Fprintf(&b, "Current context: %s\n", snap.Current)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	nameWidth := 0
	for _, e := range snap.Entries {
		if n := len(e.Name) + 2; n > nameWidth {
			nameWidth = n
		}
	}

	b.WriteString(color.HeaderStyle.Render("Tunnels") + "\n\n")
	for _, e := range snap.Entries {
		marker := "  "
		name := color.PadRight(e.Name, nameWidth)
		if e.Name == snap.Current {
			marker = "* "
			name = color.AccentStyle.Render(name)
		}
		line := marker + name + stateCell(e) + fmt.Sprintf("  localhost:%d", e.Port)
		if e.PID > 0 {
			line += color.MutedStyle.Render(fmt.Sprintf("  pid %d", e.PID))
		}
		b.WriteString(line + "\n")

		for _, note := range notes(e) {
			b.WriteString("      " + note + "\n")
		}
	}

	running, total := snap.Counts()
	fmt.Fprintf(&b, "\n%d/%d tunnels running", running, total)
	if snap.Current != "" {
		fmt.Fprintf(&b, ", current context: %s", snap.Current)
	}
	b.WriteString("\n")

	if opts.ShowCommands && len(snap.RoutingCommands) > 0 {
		b.WriteString("\n" + color.WarningStyle.Render("Routing required:") + "\n")
		for _, cmd := range snap.RoutingCommands {
			b.WriteString("  " + cmd + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func stateCell(e Entry) string {
	switch e.State {
	case StateRunning:
		return color.SuccessStyle.Render(color.IconText("✓", "running"))
	case StateDown:
		return color.ErrorStyle.Render(color.IconText("✗", "down   "))
	default:
		return color.WarningStyle.Render(color.IconText("?", "unknown"))
	}
}

func notes(e Entry) []string {
	var out []string
	if e.Err != nil {
		out = append(out, color.WarningStyle.Render("state unreadable: "+e.Err.Error()))
	}
	if e.Network == nil {
		return out
	}
	if e.Network.NeedsVPN {
		out = append(out, color.WarningStyle.Render("requires VPN"))
	}
	if e.Network.Type == state.NetworkSshuttle {
		out = append(out, color.WarningStyle.Render("requires sshuttle for "+e.Network.RangeOrEmpty()))
	}
	return out
}

// RenderJSON writes the snapshot as indented JSON.
func RenderJSON(w io.Writer, snap Snapshot) error {
	if snap.Entries == nil {
		snap.Entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
