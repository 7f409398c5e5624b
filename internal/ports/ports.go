// Package ports derives the local port of a tunnel from its context name.
//
// The mapping is a pure function: any process, including a brand-new CLI
// invocation with no memory of earlier runs, recomputes the same port for the
// same context without consulting stored state. Distinct contexts collide
// with a probability of roughly 1/Size, which is accepted.
package ports

import (
	"crypto/md5"
	"encoding/binary"
)

// Range is a half-open window [Start, Start+Size) of local TCP ports.
type Range struct {
	Start int `yaml:"start,omitempty" json:"start"`
	Size  int `yaml:"size,omitempty" json:"size"`
}

// DefaultRange covers 16443-26442.
var DefaultRange = Range{Start: 16443, Size: 10000}

// normalized fills zero values from DefaultRange.
func (r Range) normalized() Range {
	if r.Start <= 0 {
		r.Start = DefaultRange.Start
	}
	if r.Size <= 0 {
		r.Size = DefaultRange.Size
	}
	return r
}

// End returns the first port past the range.
func (r Range) End() int {
	n := r.normalized()
	return n.Start + n.Size
}

// Contains reports whether port lies inside the range.
func (r Range) Contains(port int) bool {
	n := r.normalized()
	return port >= n.Start && port < n.Start+n.Size
}

// Allocate maps contextName onto a port inside r.
//
// The first two bytes of the MD5 digest are read as a big-endian integer and
// reduced modulo the range size. This matches the ports handed out by earlier
// releases of the tooling, so existing kubeconfig entries keep working.
func Allocate(contextName string, r Range) int {
	n := r.normalized()
	sum := md5.Sum([]byte(contextName))
	h := int(binary.BigEndian.Uint16(sum[:2]))
	return n.Start + h%n.Size
}
