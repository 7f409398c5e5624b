// Package network classifies and validates the extra routing a cluster needs.
//
// Some clusters are only reachable through a VPN, others through an sshuttle
// overlay for a private range. The requirement is computed once, when the
// tunnel is created, from inventory attributes and persisted as network
// metadata next to the tunnel record. Validation later reads that metadata
// back and checks what can be checked:
//
//   - no metadata: direct access, always satisfied;
//   - VPN: cannot be verified automatically, always reported as a warning;
//   - sshuttle: the process table is searched for an sshuttle process routing
//     the range, falling back to any sshuttle process as weak evidence.
//
// Findings are advisory. They never block tunnel creation.
package network
