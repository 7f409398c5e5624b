package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"

	"tunnelctl/pkg/logging"
)

// DefaultRemotePath is where k3s keeps its admin kubeconfig.
const DefaultRemotePath = "/etc/rancher/k3s/k3s.yaml"

// ErrEmptyRemoteConfig is returned when the remote kubeconfig has no usable
// context.
var ErrEmptyRemoteConfig = errors.New("remote kubeconfig has no usable context")

// RemoteReader returns the raw bytes of path on the ssh host alias.
type RemoteReader interface {
	ReadRemote(ctx context.Context, alias, path string) ([]byte, error)
}

// SSHReader runs `ssh {alias} sudo cat {path}`.
type SSHReader struct {
	Binary string
	// ExtraArgs go before the alias, e.g. -F for a custom ssh config.
	ExtraArgs []string
}

// ReadRemote implements RemoteReader.
func (r SSHReader) ReadRemote(ctx context.Context, alias, path string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "ssh"
	}
	args := append(append([]string{}, r.ExtraArgs...), alias, "sudo", "cat", path)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("ssh %s: %w: %s", alias, err, msg)
		}
		return nil, fmt.Errorf("ssh %s: %w", alias, err)
	}
	return out, nil
}

// FetchResult describes the kubeconfig entry installed for a context.
type FetchResult struct {
	Context string
	Server  string
	// Cached is true when an identical entry already existed and no remote
	// read happened.
	Cached bool
}

// Fetcher installs remote k3s kubeconfigs as local contexts.
type Fetcher struct {
	kube       *Kubeconfig
	reader     RemoteReader
	remotePath string
	timeout    time.Duration
}

// NewFetcher returns a Fetcher. An empty remotePath uses DefaultRemotePath.
func NewFetcher(kube *Kubeconfig, reader RemoteReader, remotePath string, timeout time.Duration) *Fetcher {
	if remotePath == "" {
		remotePath = DefaultRemotePath
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{kube: kube, reader: reader, remotePath: remotePath, timeout: timeout}
}

// LocalServer is the API server URL of a tunnel on localPort.
func LocalServer(localPort int) string {
	return fmt.Sprintf("https://127.0.0.1:%d", localPort)
}

// Fetch makes sure the kubeconfig has a context named name that reaches the
// cluster through localPort.
func (f *Fetcher) Fetch(ctx context.Context, name, alias string, localPort int) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	server := LocalServer(localPort)
	res := FetchResult{Context: name, Server: server}

	cfg, err := f.kube.StartingConfig(ctx)
	if err != nil {
		return res, err
	}
	if existingServer(cfg, name) == server {
		logging.Debug("Kube", "Kubeconfig context %s already points at %s", name, server)
		res.Cached = true
		return res, nil
	}

	logging.Info("Kube", "Fetching kubeconfig for %s from %s:%s", name, alias, f.remotePath)
	raw, err := f.reader.ReadRemote(ctx, alias, f.remotePath)
	if err != nil {
		return res, fmt.Errorf("failed to fetch kubeconfig for %s: %w", name, err)
	}

	cluster, user, kctx, err := Rewrite(raw, name, server)
	if err != nil {
		return res, fmt.Errorf("failed to parse kubeconfig for %s: %w", name, err)
	}
	if err := f.kube.Merge(ctx, name, cluster, user, kctx); err != nil {
		return res, err
	}
	return res, nil
}

func existingServer(cfg *api.Config, name string) string {
	kctx, ok := cfg.Contexts[name]
	if !ok || kctx == nil {
		return ""
	}
	cluster, ok := cfg.Clusters[kctx.Cluster]
	if !ok || cluster == nil {
		return ""
	}
	return cluster.Server
}

// Rewrite parses a remote kubeconfig and returns its current (or only)
// context's entries renamed to name, with the cluster pointed at server.
func Rewrite(raw []byte, name, server string) (*api.Cluster, *api.AuthInfo, *api.Context, error) {
	remote, err := clientcmd.Load(raw)
	if err != nil {
		return nil, nil, nil, err
	}

	ctxName := remote.CurrentContext
	if ctxName == "" && len(remote.Contexts) == 1 {
		for n := range remote.Contexts {
			ctxName = n
		}
	}
	src, ok := remote.Contexts[ctxName]
	if !ok || src == nil {
		return nil, nil, nil, ErrEmptyRemoteConfig
	}
	cluster, ok := remote.Clusters[src.Cluster]
	if !ok || cluster == nil {
		return nil, nil, nil, fmt.Errorf("%w: cluster %q missing", ErrEmptyRemoteConfig, src.Cluster)
	}
	user, ok := remote.AuthInfos[src.AuthInfo]
	if !ok || user == nil {
		return nil, nil, nil, fmt.Errorf("%w: user %q missing", ErrEmptyRemoteConfig, src.AuthInfo)
	}

	cluster = cluster.DeepCopy()
	cluster.Server = server
	cluster.LocationOfOrigin = ""
	user = user.DeepCopy()
	user.LocationOfOrigin = ""

	kctx := api.NewContext()
	kctx.Cluster = name
	kctx.AuthInfo = name
	kctx.Namespace = src.Namespace
	return cluster, user, kctx, nil
}
