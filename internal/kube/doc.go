// Package kube reads and updates the local kubeconfig for tunnelled clusters.
//
// Two concerns live here:
//
//   - Context switching: Kubeconfig implements ContextSwitcher on top of
//     client-go's clientcmd loading rules, so KUBECONFIG (including lists of
//     files) and an explicitly configured path are honoured exactly the way
//     kubectl honours them.
//
//   - Kubeconfig fetching: Fetcher copies the k3s kubeconfig off a remote
//     host over ssh, renames its cluster, user and context entries to the
//     tunnel's context name and points the server at the local tunnel port:
//
//     https://127.0.0.1:{localPort}
//
// clientcmd has no context support, so every operation runs in a goroutine
// and the caller's context bounds how long we wait for it.
package kube
