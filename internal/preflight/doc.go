// Package preflight validates the runtime environment before the daemon
// accepts work: directory access, free disk space, and external binaries.
package preflight
