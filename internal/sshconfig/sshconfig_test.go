package sshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const config = `Host prod1
  HostName 203.0.113.7
  User ops

Host edge1 edge2
  HostName 198.51.100.3
  Port 2222
  ProxyJump bastion

Host *
  User fallback
`

func load(t *testing.T) *Resolver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))
	r, err := Load(path)
	require.NoError(t, err)
	return r
}

func TestResolve(t *testing.T) {
	r := load(t)

	tests := []struct {
		alias string
		want  Entry
	}{
		{"prod1", Entry{Alias: "prod1", HostName: "203.0.113.7", User: "ops", Port: 22}},
		{"edge2", Entry{Alias: "edge2", HostName: "198.51.100.3", User: "fallback", Port: 2222, ProxyJump: "bastion"}},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			got, err := r.Resolve(tt.alias)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UnknownAlias(t *testing.T) {
	r := load(t)
	assert.False(t, r.Known("staging"))
	_, err := r.Resolve("staging")
	assert.ErrorIs(t, err, ErrUnknownAlias)
}

func TestLoad_MissingFile(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.False(t, r.Known("prod1"))
}
