// Package state persists tunnel state for tunnelctl.
//
// The store is a directory holding one small file per (context, kind):
//
//	{context}.pid      bare decimal process id of the ssh tunnel
//	{context}.network  YAML network requirements, only when there are any
//
// The directory is the only durable owner of this state. Nothing is cached in
// memory: every read goes back to disk, because whether the recorded process
// is still alive can change at any time and other invocations of tunnelctl may
// be writing concurrently.
//
// Writes go to a temporary file in the same directory which is synced and
// then renamed over the target, so a crash never leaves a half-written file
// visible under the final name. If corruption happens anyway, reads report a
// *ParseError instead of guessing.
package state
