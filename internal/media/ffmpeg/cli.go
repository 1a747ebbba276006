package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"chorus/internal/logging"
	"chorus/internal/services"
)

var commandContext = exec.CommandContext

const framePattern = "frame_%08d.png"

// CLI drives the ffmpeg binary.
type CLI struct {
	binary string
	logger *slog.Logger
}

// NewCLI constructs an Engine backed by the ffmpeg executable.
func NewCLI(binary string, logger *slog.Logger) *CLI {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CLI{binary: binary, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// ExtractBatch decodes one batch of frames into numbered PNG files. The tail
// of a source can run short of a full batch, so the returned slice may hold
// fewer than FrameCount paths.
func (c *CLI) ExtractBatch(ctx context.Context, req ExtractRequest) ([]string, error) {
	if req.SourcePath == "" {
		return nil, services.Wrap(services.ErrExtraction, "extract", "ffmpeg", "source path required", nil)
	}
	if req.FrameCount <= 0 || req.FrameRate <= 0 {
		return nil, services.Wrap(services.ErrExtraction, "extract", "ffmpeg", fmt.Sprintf("invalid batch: %d frames at %d fps", req.FrameCount, req.FrameRate), nil)
	}

	start := float64(req.FirstFrame) / float64(req.FrameRate)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(start),
		"-i", req.SourcePath,
		"-frames:v", strconv.Itoa(req.FrameCount),
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", req.FrameRate, req.Width, req.Height),
		"-start_number", strconv.Itoa(req.FirstFrame),
		"-y", filepath.Join(req.OutputDir, framePattern),
	}
	output, err := commandContext(ctx, c.binary, args...).CombinedOutput() //nolint:gosec
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "extract", "ffmpeg", strings.TrimSpace(string(output)), err)
	}

	paths := make([]string, 0, req.FrameCount)
	for i := 0; i < req.FrameCount; i++ {
		path := filepath.Join(req.OutputDir, fmt.Sprintf(framePattern, req.FirstFrame+i))
		if _, statErr := os.Stat(path); statErr != nil {
			break
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Synthesize loops a still image for the duration of the audio track and
// writes a seekable intermediate video the extraction loop can batch over.
func (c *CLI) Synthesize(ctx context.Context, imagePath, audioPath, outputPath string, frameRate, width, height int) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-r", strconv.Itoa(frameRate),
		"-c:v", "libx264", "-tune", "stillimage", "-preset", "ultrafast", "-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		"-y", outputPath,
	}
	output, err := commandContext(ctx, c.binary, args...).CombinedOutput() //nolint:gosec
	if err != nil {
		return services.Wrap(services.ErrExtraction, "synthesize", "ffmpeg", strings.TrimSpace(string(output)), err)
	}
	return nil
}

// StartEncode launches the job's long-lived encode process. Processed frames
// stream in over stdin as an image2pipe PNG sequence, so at no point does a
// full set of rendered frames touch the disk.
func (c *CLI) StartEncode(ctx context.Context, req EncodeRequest) (EncodeSession, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(req.FrameRate),
		"-i", "-",
	}
	if req.AudioSource != "" {
		args = append(args, "-i", req.AudioSource, "-map", "0:v:0", "-map", "1:a:0", "-shortest")
	}
	args = append(args, "-c:v", req.Preset.VideoCodec)
	args = append(args, req.Preset.VideoArgs...)
	args = append(args, "-pix_fmt", "yuv420p")
	if req.AudioSource != "" {
		args = append(args, "-c:a", req.Preset.AudioCodec)
	}
	if req.Preset.Container == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-y", req.OutputPath)

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "stdin pipe", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "start", err)
	}
	c.logger.Debug("encode process started",
		logging.String("output", req.OutputPath),
		logging.String("codec", req.Preset.VideoCodec),
	)
	return &encodeSession{cmd: cmd, stdin: stdin, stderr: &stderr}, nil
}

type encodeSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *strings.Builder

	mu   sync.Mutex
	done bool
}

func (s *encodeSession) WriteFrame(png []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "session closed", nil)
	}
	if _, err := s.stdin.Write(png); err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "ffmpeg", strings.TrimSpace(s.stderr.String()), err)
	}
	return nil
}

func (s *encodeSession) Close() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	s.mu.Unlock()

	if err := s.stdin.Close(); err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "close stdin", err)
	}
	if err := s.cmd.Wait(); err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "ffmpeg", strings.TrimSpace(s.stderr.String()), err)
	}
	return nil
}

func (s *encodeSession) Abort() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 6, 64)
}

var _ Engine = (*CLI)(nil)
