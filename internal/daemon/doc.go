// Package daemon combines the job store, scheduler, and API server into a
// single lifecycle with flock-based locking to prevent multiple instances
// from sharing one queue database.
package daemon
