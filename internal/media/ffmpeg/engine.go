package ffmpeg

import "context"

// ExtractRequest describes one batch of frames to rasterize from a source.
type ExtractRequest struct {
	SourcePath string
	// FirstFrame is the zero-based index of the first frame in the batch.
	FirstFrame int
	FrameCount int
	FrameRate  int
	Width      int
	Height     int
	// OutputDir receives numbered PNG files, one per extracted frame.
	OutputDir string
}

// EncodeRequest describes a job's output encode.
type EncodeRequest struct {
	// AudioSource is muxed alongside the piped frames. Empty means video only.
	AudioSource string
	OutputPath  string
	FrameRate   int
	Preset      Preset
}

// EncodeSession is a running encode process accepting frames in order.
type EncodeSession interface {
	// WriteFrame streams one encoded PNG image to the encoder.
	WriteFrame(png []byte) error
	// Close finishes the stream and waits for the encoder to finalize the
	// output file. Safe to call more than once.
	Close() error
	// Abort kills the encoder without finalizing output.
	Abort()
}

// Engine abstracts the external media tool so the pipeline can be exercised
// against a fake in tests.
type Engine interface {
	ExtractBatch(ctx context.Context, req ExtractRequest) ([]string, error)
	Synthesize(ctx context.Context, imagePath, audioPath, outputPath string, frameRate, width, height int) error
	StartEncode(ctx context.Context, req EncodeRequest) (EncodeSession, error)
}
