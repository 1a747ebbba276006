// Package ffprobe wraps the ffprobe binary for source inspection.
package ffprobe
