// Package compositor draws karaoke-style word overlays onto video frames.
// It is the single compositing implementation shared by live preview and
// final render; byte-identical output for identical inputs is a hard
// requirement, not a best effort.
package compositor
