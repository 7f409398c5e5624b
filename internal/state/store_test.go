package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "tunnels"))
}

func TestStore_TunnelRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.ReadTunnelRecord("acme-prod1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.WriteTunnelRecord("acme-prod1", TunnelRecord{PID: 4242}))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "acme-prod1.pid"))
	require.NoError(t, err)
	assert.Equal(t, "4242\n", string(data))

	rec, found, err := s.ReadTunnelRecord("acme-prod1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4242, rec.PID)

	// Overwrite on re-creation.
	require.NoError(t, s.WriteTunnelRecord("acme-prod1", TunnelRecord{PID: 99}))
	rec, _, err = s.ReadTunnelRecord("acme-prod1")
	require.NoError(t, err)
	assert.Equal(t, 99, rec.PID)

	require.NoError(t, s.DeleteTunnelRecord("acme-prod1"))
	require.NoError(t, s.DeleteTunnelRecord("acme-prod1"))
	_, found, err = s.ReadTunnelRecord("acme-prod1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_WriteTunnelRecordRejectsUnknownPID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.WriteTunnelRecord("acme-prod1", TunnelRecord{PID: 0}))

	names, err := s.ListContexts()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_ReadTunnelRecordCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "acme-prod1.pid"), []byte("12ab"), 0o600))

	_, found, err := s.ReadTunnelRecord("acme-prod1")
	assert.False(t, found)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "acme-prod1", perr.Context)
}

func TestStore_NetworkMetadataNotWrittenWithoutRequirement(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteNetworkMetadata("acme-prod1", NetworkMetadata{
		Type:       NetworkNone,
		NeedsVPN:   false,
		InternalIP: StringPtr("10.0.5.20"),
	}))

	_, err := os.Stat(filepath.Join(s.Dir(), "acme-prod1.network"))
	assert.True(t, os.IsNotExist(err))

	meta, err := s.ReadNetworkMetadata("acme-prod1")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestStore_NetworkMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	in := NetworkMetadata{
		Type:           NetworkSshuttle,
		Range:          StringPtr("192.168.90.0/24"),
		RoutingCommand: StringPtr("sshuttle -v -r ops@gw 192.168.90.0/24"),
		InternalIP:     StringPtr("192.168.90.10"),
	}
	require.NoError(t, s.WriteNetworkMetadata("acme-edge", in))

	raw, err := os.ReadFile(filepath.Join(s.Dir(), "acme-edge.network"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "network_type: sshuttle")
	assert.Contains(t, string(raw), "sshuttle_command:")
	assert.NotContains(t, string(raw), "needs_vpn")

	out, err := s.ReadNetworkMetadata("acme-edge")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, *out)

	require.NoError(t, s.DeleteNetworkMetadata("acme-edge"))
	out, err = s.ReadNetworkMetadata("acme-edge")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStore_ReadNetworkMetadataLegacyKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o700))
	doc := "network_type: sshuttle\nnetwork_range: 10.8.0.0/16\nrouting_command: sshuttle -r gw 10.8.0.0/16\n"
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "old.network"), []byte(doc), 0o600))

	meta, err := s.ReadNetworkMetadata("old")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "sshuttle -r gw 10.8.0.0/16", meta.CommandOrEmpty())
	assert.Equal(t, "10.8.0.0/16", meta.RangeOrEmpty())
}

func TestStore_ReadNetworkMetadataCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "bad.network"), []byte("network_type: [unterminated"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "odd.network"), []byte("network_type: carrier-pigeon\n"), 0o600))

	for _, name := range []string{"bad", "odd"} {
		meta, err := s.ReadNetworkMetadata(name)
		assert.Nil(t, meta)
		var perr *ParseError
		assert.True(t, errors.As(err, &perr), "expected ParseError for %s, got %v", name, err)
	}
}

func TestStore_ListContexts(t *testing.T) {
	s := newTestStore(t)

	names, err := s.ListContexts()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.WriteTunnelRecord("b-host", TunnelRecord{PID: 2}))
	require.NoError(t, s.WriteTunnelRecord("a-host", TunnelRecord{PID: 1}))
	require.NoError(t, s.WriteNetworkMetadata("c-host", NetworkMetadata{NeedsVPN: true}))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), ".tmp-x.pid-123"), []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o600))

	names, err = s.ListContexts()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-host", "b-host"}, names)
}

func TestStore_InvalidContextNames(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", ".", "..", "../escape", "a/b", ".hidden"} {
		err := s.WriteTunnelRecord(name, TunnelRecord{PID: 1})
		assert.ErrorIs(t, err, ErrInvalidContext, "name %q", name)
	}
}
