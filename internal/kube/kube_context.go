package kube

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"

	"tunnelctl/pkg/logging"
)

// ErrNoCurrentContext is returned when the kubeconfig has no current-context.
var ErrNoCurrentContext = errors.New("current kubeconfig context is not set")

// ContextSwitcher reads and changes the active kubeconfig context.
type ContextSwitcher interface {
	CurrentContext(ctx context.Context) (string, error)
	UseContext(ctx context.Context, name string) error
}

// Kubeconfig is the clientcmd backed ContextSwitcher. An empty Path follows
// KUBECONFIG and then ~/.kube/config.
type Kubeconfig struct {
	Path string
}

// NewKubeconfig returns a Kubeconfig for path.
func NewKubeconfig(path string) *Kubeconfig {
	return &Kubeconfig{Path: path}
}

func (k *Kubeconfig) pathOptions() *clientcmd.PathOptions {
	po := clientcmd.NewDefaultPathOptions()
	if k.Path != "" {
		po.LoadingRules.ExplicitPath = k.Path
	}
	return po
}

// StartingConfig returns the merged kubeconfig.
func (k *Kubeconfig) StartingConfig(ctx context.Context) (*api.Config, error) {
	return bounded(ctx, func() (*api.Config, error) {
		cfg, err := k.pathOptions().GetStartingConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
		return cfg, nil
	})
}

// CurrentContext returns the active context name.
func (k *Kubeconfig) CurrentContext(ctx context.Context) (string, error) {
	cfg, err := k.StartingConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg.CurrentContext == "" {
		return "", ErrNoCurrentContext
	}
	return cfg.CurrentContext, nil
}

// UseContext makes name the active context. The context must exist.
//
// Writes are not bounded: ctx is only checked before the write starts, so a
// reported failure never leaves a write running behind the caller's back.
func (k *Kubeconfig) UseContext(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kubeconfig update skipped: %w", err)
	}
	po := k.pathOptions()
	cfg, err := po.GetStartingConfig()
	if err != nil {
		return fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	if _, exists := cfg.Contexts[name]; !exists {
		return fmt.Errorf("context '%s' does not exist in kubeconfig", name)
	}
	cfg.CurrentContext = name
	if err := clientcmd.ModifyConfig(po, *cfg, false); err != nil {
		return fmt.Errorf("failed to switch kubeconfig context to '%s': %w", name, err)
	}
	logging.Info("Kube", "Switched kubeconfig context to %s", name)
	return nil
}

// Merge writes the given entries into the kubeconfig, replacing entries of
// the same name. Like UseContext it checks ctx only before writing.
func (k *Kubeconfig) Merge(ctx context.Context, name string, cluster *api.Cluster, user *api.AuthInfo, kctx *api.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kubeconfig update skipped: %w", err)
	}
	po := k.pathOptions()
	cfg, err := po.GetStartingConfig()
	if err != nil {
		return fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	if cfg.Clusters == nil {
		cfg.Clusters = map[string]*api.Cluster{}
	}
	if cfg.AuthInfos == nil {
		cfg.AuthInfos = map[string]*api.AuthInfo{}
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]*api.Context{}
	}
	cfg.Clusters[name] = cluster
	cfg.AuthInfos[name] = user
	cfg.Contexts[name] = kctx
	if err := clientcmd.ModifyConfig(po, *cfg, false); err != nil {
		return fmt.Errorf("failed to write kubeconfig entries for %s: %w", name, err)
	}
	return nil
}

// bounded runs fn and gives up waiting when ctx is done. fn keeps running in
// the background in that case; clientcmd calls cannot be interrupted, so
// only reads go through here.
func bounded[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("kubeconfig operation aborted: %w", ctx.Err())
	}
}
