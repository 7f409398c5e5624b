// Package mcptools exposes tunnel operations as MCP tools over stdio so
// assistants can inspect and manage tunnels.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tunnelctl/internal/connect"
	"tunnelctl/internal/inventory"
	"tunnelctl/internal/kube"
	"tunnelctl/internal/network"
	"tunnelctl/internal/status"
	"tunnelctl/pkg/logging"
)

// StatusSource produces status snapshots.
type StatusSource interface {
	Snapshot(ctx context.Context) (status.Snapshot, error)
}

// Killer tears tunnels down.
type Killer interface {
	Kill(ctx context.Context, name string) (bool, error)
	KillAll(ctx context.Context) ([]string, error)
}

// Connector connects inventory hosts.
type Connector interface {
	Connect(ctx context.Context, hosts []inventory.Host) (connect.Summary, error)
}

// Validator checks network requirements.
type Validator interface {
	ValidateContext(ctx context.Context, name string) network.Result
}

// Deps are the services behind the tools.
type Deps struct {
	Status        StatusSource
	Tunnels       Killer
	Connector     Connector
	Validator     Validator
	Contexts      kube.ContextSwitcher
	LoadInventory func() (*inventory.Inventory, error)
}

// Tools holds the tool handlers.
type Tools struct {
	deps Deps
}

// New returns the tool set.
func New(deps Deps) *Tools {
	return &Tools{deps: deps}
}

// ServerTools returns every tool with its handler.
func (t *Tools) ServerTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("tunnel_status",
				mcp.WithDescription("List recorded tunnels with their state, local port and network requirements"),
			),
			Handler: t.handleStatus,
		},
		{
			Tool: mcp.NewTool("tunnel_connect",
				mcp.WithDescription("Create tunnels and kubeconfig contexts for inventory hosts; the first success becomes the current context"),
				mcp.WithString("hosts",
					mcp.Required(),
					mcp.Description("Comma separated company:host selectors or context names"),
				),
			),
			Handler: t.handleConnect,
		},
		{
			Tool: mcp.NewTool("tunnel_kill",
				mcp.WithDescription("Kill the tunnel of a context and remove its state"),
				mcp.WithString("context",
					mcp.Required(),
					mcp.Description("Context name, e.g. acme-prod1"),
				),
			),
			Handler: t.handleKill,
		},
		{
			Tool: mcp.NewTool("tunnel_kill_all",
				mcp.WithDescription("Kill every recorded tunnel"),
			),
			Handler: t.handleKillAll,
		},
		{
			Tool: mcp.NewTool("network_validate",
				mcp.WithDescription("Check whether the VPN or sshuttle requirements of a context are met"),
				mcp.WithString("context",
					mcp.Required(),
					mcp.Description("Context name, e.g. acme-prod1"),
				),
			),
			Handler: t.handleValidate,
		},
		{
			Tool: mcp.NewTool("context_current",
				mcp.WithDescription("Show the current kubeconfig context"),
			),
			Handler: t.handleCurrentContext,
		},
	}
}

// NewServer builds an MCP server carrying the tools.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tunnelctl",
		version,
		server.WithToolCapabilities(false),
	)
	s.AddTools(t.ServerTools()...)
	return s
}

// ServeStdio serves the tools on stdin/stdout until the client disconnects.
func ServeStdio(t *Tools, version string) error {
	logging.Info("MCP", "Serving %d tools on stdio", len(t.ServerTools()))
	return server.ServeStdio(NewServer(t, version))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *Tools) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.deps.Status.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read tunnel state: %v", err)), nil
	}
	if snap.Entries == nil {
		snap.Entries = []status.Entry{}
	}
	return jsonResult(snap)
}

type connectResult struct {
	Context        string `json:"context"`
	Port           int    `json:"port,omitempty"`
	PID            int    `json:"pid,omitempty"`
	Reused         bool   `json:"reused,omitempty"`
	NetworkWarning string `json:"networkWarning,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (t *Tools) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("hosts")
	if err != nil {
		return mcp.NewToolResultError("hosts parameter is required"), nil
	}
	inv, err := t.deps.LoadInventory()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load inventory: %v", err)), nil
	}

	var args []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			args = append(args, s)
		}
	}
	hosts, err := connect.Select(inv, connect.Selection{Args: args})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sum, err := t.deps.Connector.Connect(ctx, hosts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := struct {
		Results []connectResult `json:"results"`
		Active  string          `json:"activeContext,omitempty"`
	}{Active: sum.Active}
	for _, r := range sum.Results {
		cr := connectResult{Context: r.Context, Port: r.Port, PID: r.PID, Reused: r.Reused, NetworkWarning: r.NetworkWarning}
		if r.Err != nil {
			cr.Error = r.Err.Error()
		}
		out.Results = append(out.Results, cr)
	}
	if len(sum.Succeeded()) == 0 {
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultError(string(data)), nil
	}
	return jsonResult(out)
}

func (t *Tools) handleKill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError("context parameter is required"), nil
	}
	found, err := t.deps.Tunnels.Kill(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to kill tunnel %s: %v", name, err)), nil
	}
	if !found {
		return mcp.NewToolResultText(fmt.Sprintf("No tunnel recorded for %s", name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Killed tunnel %s", name)), nil
}

func (t *Tools) handleKillAll(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := t.deps.Tunnels.KillAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Some tunnels could not be cleaned up: %v", err)), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("No tunnels recorded"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Killed %d tunnels: %s", len(names), strings.Join(names, ", "))), nil
}

func (t *Tools) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError("context parameter is required"), nil
	}
	res := t.deps.Validator.ValidateContext(ctx, name)
	out := map[string]any{
		"context":   name,
		"satisfied": res.Satisfied,
	}
	if res.Warning != "" {
		out["warning"] = res.Warning
	}
	if res.RemediationCommand != "" {
		out["remediation"] = res.RemediationCommand
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	return jsonResult(out)
}

func (t *Tools) handleCurrentContext(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := t.deps.Contexts.CurrentContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Current context unavailable: %v", err)), nil
	}
	return mcp.NewToolResultText(name), nil
}
