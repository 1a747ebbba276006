// Package services defines the shared error taxonomy and context plumbing
// used across pipeline stages. Stages tag failures with sentinel markers so
// the scheduler can classify them without string matching, and carry job,
// stage, and correlation identifiers through context for structured logging.
package services
