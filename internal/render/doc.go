// Package render runs the per-job pipeline: decode the persisted submission,
// materialize or probe the source, then extract, composite, and stream
// frames into the long-lived encode process batch by batch.
package render
