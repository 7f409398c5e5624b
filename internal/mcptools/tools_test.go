package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunnelctl/internal/connect"
	"tunnelctl/internal/inventory"
	"tunnelctl/internal/network"
	"tunnelctl/internal/status"
)

type fakeStatus struct{ snap status.Snapshot }

func (f fakeStatus) Snapshot(context.Context) (status.Snapshot, error) { return f.snap, nil }

type fakeKiller struct {
	killed  []string
	missing map[string]bool
	err     error
}

func (f *fakeKiller) Kill(_ context.Context, name string) (bool, error) {
	f.killed = append(f.killed, name)
	return !f.missing[name], f.err
}

func (f *fakeKiller) KillAll(context.Context) ([]string, error) {
	return []string{"a-h1", "a-h2"}, nil
}

type fakeConnector struct{ hosts []inventory.Host }

func (f *fakeConnector) Connect(_ context.Context, hosts []inventory.Host) (connect.Summary, error) {
	f.hosts = hosts
	sum := connect.Summary{}
	for _, h := range hosts {
		sum.Results = append(sum.Results, connect.Result{Host: h, Context: h.Context(), Port: 19107})
	}
	sum.Active = hosts[0].Context()
	return sum, nil
}

type fakeValidator struct{}

func (fakeValidator) ValidateContext(_ context.Context, name string) network.Result {
	return network.Result{Context: name, Warning: "requires sshuttle for 192.168.90.0/24", RemediationCommand: "sshuttle -v -r gw 192.168.90.0/24"}
}

type fakeContexts struct{ err error }

func (f fakeContexts) CurrentContext(context.Context) (string, error) { return "acme-prod1", f.err }
func (f fakeContexts) UseContext(context.Context, string) error       { return nil }

func newTools() (*Tools, *fakeKiller, *fakeConnector) {
	killer := &fakeKiller{}
	conn := &fakeConnector{}
	return New(Deps{
		Status: fakeStatus{snap: status.Snapshot{
			Entries: []status.Entry{{Name: "acme-prod1", State: status.StateRunning, Port: 19107, PID: 4242}},
			Current: "acme-prod1",
		}},
		Tunnels:   killer,
		Connector: conn,
		Validator: fakeValidator{},
		Contexts:  fakeContexts{},
		LoadInventory: func() (*inventory.Inventory, error) {
			return &inventory.Inventory{Hosts: []inventory.Host{{Company: "acme", Alias: "prod1", InternalIP: "10.0.5.20"}}}, nil
		},
	}), killer, conn
}

func call(t *testing.T, tools *Tools, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, st := range tools.ServerTools() {
		if st.Tool.Name != name {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := st.Handler(context.Background(), req)
		require.NoError(t, err)
		return res
	}
	t.Fatalf("tool %s not registered", name)
	return nil
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServerTools_Names(t *testing.T) {
	tools, _, _ := newTools()
	var names []string
	for _, st := range tools.ServerTools() {
		names = append(names, st.Tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"tunnel_status", "tunnel_connect", "tunnel_kill", "tunnel_kill_all", "network_validate", "context_current",
	}, names)
	assert.NotNil(t, NewServer(tools, "test"))
}

func TestHandleStatus(t *testing.T) {
	tools, _, _ := newTools()
	res := call(t, tools, "tunnel_status", nil)
	assert.False(t, res.IsError)

	var snap struct {
		Entries []struct {
			Name string `json:"name"`
			Port int    `json:"port"`
		} `json:"entries"`
		Current string `json:"currentContext"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &snap))
	assert.Equal(t, "acme-prod1", snap.Current)
	assert.Equal(t, 19107, snap.Entries[0].Port)
}

func TestHandleConnect(t *testing.T) {
	tools, _, conn := newTools()

	res := call(t, tools, "tunnel_connect", map[string]any{"hosts": "acme:prod1"})
	assert.False(t, res.IsError)
	require.Len(t, conn.hosts, 1)
	assert.Equal(t, "acme-prod1", conn.hosts[0].Context())
	assert.Contains(t, text(t, res), `"activeContext": "acme-prod1"`)

	res = call(t, tools, "tunnel_connect", map[string]any{"hosts": "acme:nope"})
	assert.True(t, res.IsError)

	res = call(t, tools, "tunnel_connect", map[string]any{})
	assert.True(t, res.IsError)
}

func TestHandleKill(t *testing.T) {
	tools, killer, _ := newTools()

	res := call(t, tools, "tunnel_kill", map[string]any{"context": "acme-prod1"})
	assert.False(t, res.IsError)
	assert.Equal(t, "Killed tunnel acme-prod1", text(t, res))
	assert.Equal(t, []string{"acme-prod1"}, killer.killed)

	killer.missing = map[string]bool{"acme-prdo1": true}
	res = call(t, tools, "tunnel_kill", map[string]any{"context": "acme-prdo1"})
	assert.False(t, res.IsError)
	assert.Equal(t, "No tunnel recorded for acme-prdo1", text(t, res))

	killer.err = errors.New("permission denied")
	res = call(t, tools, "tunnel_kill", map[string]any{"context": "acme-prod1"})
	assert.True(t, res.IsError)

	res = call(t, tools, "tunnel_kill_all", nil)
	assert.Contains(t, text(t, res), "Killed 2 tunnels: a-h1, a-h2")
}

func TestHandleValidate(t *testing.T) {
	tools, _, _ := newTools()
	res := call(t, tools, "network_validate", map[string]any{"context": "acme-edge1"})
	out := text(t, res)
	assert.Contains(t, out, `"satisfied": false`)
	assert.Contains(t, out, "192.168.90.0/24")
}

func TestHandleCurrentContext(t *testing.T) {
	tools, _, _ := newTools()
	res := call(t, tools, "context_current", nil)
	assert.Equal(t, "acme-prod1", text(t, res))
}
