// Package scheduler owns job admission: a fixed concurrency cap, FIFO
// promotion of queued jobs, terminal bookkeeping, and restart recovery.
package scheduler
