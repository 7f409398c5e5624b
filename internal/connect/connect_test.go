package connect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunnelctl/internal/inventory"
	"tunnelctl/internal/kube"
	"tunnelctl/internal/network"
	"tunnelctl/internal/ports"
	"tunnelctl/internal/state"
	"tunnelctl/internal/tunnel"
)

type fakeTunnels struct {
	fail     map[string]error
	requests []tunnel.Request
}

func (f *fakeTunnels) Port(name string) int { return ports.Allocate(name, ports.DefaultRange) }

func (f *fakeTunnels) Ensure(_ context.Context, req tunnel.Request) (tunnel.Tunnel, error) {
	f.requests = append(f.requests, req)
	if err := f.fail[req.Context]; err != nil {
		return tunnel.Tunnel{}, err
	}
	return tunnel.Tunnel{Context: req.Context, Port: f.Port(req.Context), PID: 1000 + len(f.requests)}, nil
}

type fakeFetcher struct {
	fail  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, name, _ string, port int) (kube.FetchResult, error) {
	f.calls = append(f.calls, name)
	if err := f.fail[name]; err != nil {
		return kube.FetchResult{}, err
	}
	return kube.FetchResult{Context: name, Server: kube.LocalServer(port)}, nil
}

type fakeContexts struct {
	used []string
	err  error
}

func (f *fakeContexts) CurrentContext(context.Context) (string, error) { return "", nil }

func (f *fakeContexts) UseContext(_ context.Context, name string) error {
	f.used = append(f.used, name)
	return f.err
}

type harness struct {
	tunnels  *fakeTunnels
	fetcher  *fakeFetcher
	contexts *fakeContexts
	store    *state.Store
	conn     *Connector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tunnels:  &fakeTunnels{fail: map[string]error{}},
		fetcher:  &fakeFetcher{fail: map[string]error{}},
		contexts: &fakeContexts{},
		store:    state.NewStore(t.TempDir()),
	}
	classifier, err := network.NewClassifier([]string{"192.168.90.0/24"}, "ops@100.64.5.10", "")
	require.NoError(t, err)
	h.conn = NewConnector(h.tunnels, h.fetcher, h.store, classifier, nil, h.contexts, nil, Options{APIPort: 6443})
	return h
}

var (
	prod1 = inventory.Host{Company: "acme", Alias: "prod1", InternalIP: "10.0.5.20"}
	edge1 = inventory.Host{Company: "acme", Alias: "edge1", InternalIP: "192.168.90.10"}
	lab1  = inventory.Host{Company: "acme", Alias: "lab1", InternalIP: "172.16.0.5", NeedsVPN: true}
)

func TestConnect_Scenario(t *testing.T) {
	h := newHarness(t)

	sum, err := h.conn.Connect(context.Background(), []inventory.Host{prod1})
	require.NoError(t, err)
	require.Len(t, sum.Results, 1)

	r := sum.Results[0]
	require.NoError(t, r.Err)
	assert.Equal(t, "acme-prod1", r.Context)
	assert.Equal(t, 19107, r.Port)
	assert.Equal(t, "acme-prod1", sum.Active)
	assert.Equal(t, []string{"acme-prod1"}, h.contexts.used)

	require.Len(t, h.tunnels.requests, 1)
	assert.Equal(t, tunnel.Request{Context: "acme-prod1", SSHAlias: "prod1", InternalIP: "10.0.5.20", TargetPort: 6443}, h.tunnels.requests[0])

	meta, err := h.store.ReadNetworkMetadata("acme-prod1")
	require.NoError(t, err)
	assert.Nil(t, meta, "direct hosts leave no metadata")
}

func TestConnect_PersistsNetworkRequirements(t *testing.T) {
	h := newHarness(t)

	_, err := h.conn.Connect(context.Background(), []inventory.Host{edge1, lab1})
	require.NoError(t, err)

	meta, err := h.store.ReadNetworkMetadata("acme-edge1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, state.NetworkSshuttle, meta.Type)
	assert.Equal(t, "192.168.90.0/24", meta.RangeOrEmpty())
	assert.Equal(t, "sshuttle -v -r ops@100.64.5.10 192.168.90.0/24", meta.CommandOrEmpty())
	assert.Equal(t, "192.168.90.10", *meta.InternalIP)

	meta, err = h.store.ReadNetworkMetadata("acme-lab1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.True(t, meta.NeedsVPN)
}

func TestConnect_FailuresAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.fetcher.fail["acme-prod1"] = errors.New("ssh: connection refused")
	noAddr := inventory.Host{Company: "acme", Alias: "ghost"}

	sum, err := h.conn.Connect(context.Background(), []inventory.Host{prod1, noAddr, edge1})
	require.NoError(t, err)

	assert.Len(t, sum.Failed(), 2)
	assert.ErrorIs(t, sum.Results[1].Err, ErrNoAddress)
	require.Len(t, sum.Succeeded(), 1)
	assert.Equal(t, "acme-edge1", sum.Active, "first success becomes active")
	assert.Len(t, h.tunnels.requests, 1)
}

func TestConnect_TunnelFailure(t *testing.T) {
	h := newHarness(t)
	h.tunnels.fail["acme-prod1"] = &tunnel.CreationError{Context: "acme-prod1", Err: errors.New("exit status 255")}

	sum, err := h.conn.Connect(context.Background(), []inventory.Host{prod1})
	require.NoError(t, err)
	var cerr *tunnel.CreationError
	assert.True(t, errors.As(sum.Results[0].Err, &cerr))
	assert.Empty(t, sum.Active)
	assert.Empty(t, h.contexts.used)
}

func TestConnect_ActivateFailure(t *testing.T) {
	h := newHarness(t)
	h.contexts.err = errors.New("kubeconfig locked")

	sum, err := h.conn.Connect(context.Background(), []inventory.Host{prod1})
	require.NoError(t, err)
	assert.Empty(t, sum.Active)
	assert.Error(t, sum.ActivateErr)
}

func TestConnect_NoTargets(t *testing.T) {
	h := newHarness(t)
	_, err := h.conn.Connect(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestSelect(t *testing.T) {
	inv := &inventory.Inventory{Hosts: []inventory.Host{
		{Company: "acme", Alias: "edge1"},
		{Company: "acme", Alias: "prod1"},
		{Company: "beta", Alias: "h1"},
	}}

	tests := []struct {
		name    string
		sel     Selection
		want    []string
		wantErr error
	}{
		{"args keep order", Selection{Args: []string{"beta:h1", "acme-prod1"}}, []string{"beta-h1", "acme-prod1"}, nil},
		{"company", Selection{Company: "acme"}, []string{"acme-edge1", "acme-prod1"}, nil},
		{"all deduplicates", Selection{Args: []string{"beta:h1"}, All: true}, []string{"beta-h1", "acme-edge1", "acme-prod1"}, nil},
		{"unknown host", Selection{Args: []string{"acme:nope"}}, nil, inventory.ErrHostNotFound},
		{"unknown company", Selection{Company: "zeta"}, nil, ErrNoTargets},
		{"nothing", Selection{}, nil, ErrNoTargets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := Select(inv, tt.sel)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, h := range hosts {
				got = append(got, h.Context())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
