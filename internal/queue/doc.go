// Package queue persists render job lifecycle state in SQLite. Transitions
// are guarded so terminal states stay absorbing and persisted progress never
// decreases; the store is the single structure shared across concurrent
// jobs.
package queue
