// Package ffmpeg integrates the external encode engine. Frame extraction,
// still-image synthesis, and the streaming image2pipe encode all run through
// the ffmpeg binary.
package ffmpeg
