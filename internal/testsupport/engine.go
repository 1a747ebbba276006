package testsupport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chorus/internal/media/ffmpeg"
)

// FakeEngine implements ffmpeg.Engine with synthetic PNG frames so pipeline
// behavior can be exercised without the ffmpeg binary.
type FakeEngine struct {
	// TotalFrames caps how many frames the fake source yields.
	TotalFrames int
	// FailExtractAtFrame makes extraction fail once it reaches the given
	// frame index. Negative disables the failure.
	FailExtractAtFrame int

	mu           sync.Mutex
	extractCalls []ffmpeg.ExtractRequest
	synthesized  []string
	sessions     []*FakeSession
	maxBatchDirs int
}

// NewFakeEngine returns a fake engine over a source of totalFrames frames.
func NewFakeEngine(totalFrames int) *FakeEngine {
	return &FakeEngine{TotalFrames: totalFrames, FailExtractAtFrame: -1}
}

// ExtractBatch writes small PNG files into the requested directory. It tracks
// the high-water mark of batch directories present in the scratch area so
// tests can assert the disk bound.
func (e *FakeEngine) ExtractBatch(ctx context.Context, req ffmpeg.ExtractRequest) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.FailExtractAtFrame >= 0 && req.FirstFrame+req.FrameCount > e.FailExtractAtFrame {
		return nil, errors.New("fake extraction failure")
	}

	e.mu.Lock()
	e.extractCalls = append(e.extractCalls, req)
	e.mu.Unlock()
	e.recordBatchDirs(filepath.Dir(req.OutputDir))

	count := req.FrameCount
	if remaining := e.TotalFrames - req.FirstFrame; remaining < count {
		count = remaining
	}
	if count < 0 {
		count = 0
	}

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		path := filepath.Join(req.OutputDir, fmt.Sprintf("frame_%08d.png", req.FirstFrame+i))
		if err := os.WriteFile(path, frameBytes(req.FirstFrame+i), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Synthesize writes a placeholder intermediate file.
func (e *FakeEngine) Synthesize(ctx context.Context, imagePath, audioPath, outputPath string, frameRate, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.synthesized = append(e.synthesized, outputPath)
	e.mu.Unlock()
	return os.WriteFile(outputPath, []byte("synthetic source"), 0o644)
}

// StartEncode returns a session that counts frames and materializes the
// output file on Close.
func (e *FakeEngine) StartEncode(ctx context.Context, req ffmpeg.EncodeRequest) (ffmpeg.EncodeSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session := &FakeSession{Request: req}
	e.mu.Lock()
	e.sessions = append(e.sessions, session)
	e.mu.Unlock()
	return session, nil
}

// ExtractCalls returns the recorded extraction requests in call order.
func (e *FakeEngine) ExtractCalls() []ffmpeg.ExtractRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ffmpeg.ExtractRequest(nil), e.extractCalls...)
}

// Synthesized returns the synthetic source paths created so far.
func (e *FakeEngine) Synthesized() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.synthesized...)
}

// Sessions returns every encode session the engine handed out.
func (e *FakeEngine) Sessions() []*FakeSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakeSession(nil), e.sessions...)
}

// MaxBatchDirs reports the most batch directories ever observed at once.
func (e *FakeEngine) MaxBatchDirs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxBatchDirs
}

func (e *FakeEngine) recordBatchDirs(scratch string) {
	entries, err := os.ReadDir(scratch)
	if err != nil {
		return
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "batch_") {
			count++
		}
	}
	e.mu.Lock()
	if count > e.maxBatchDirs {
		e.maxBatchDirs = count
	}
	e.mu.Unlock()
}

// FakeSession records the frames streamed into one encode.
type FakeSession struct {
	Request ffmpeg.EncodeRequest
	// FailAfterFrames makes WriteFrame fail once the count is reached.
	// Zero disables the failure.
	FailAfterFrames int

	mu      sync.Mutex
	frames  int
	closed  bool
	aborted bool
}

func (s *FakeSession) WriteFrame(pngData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.aborted {
		return errors.New("fake session closed")
	}
	if s.FailAfterFrames > 0 && s.frames >= s.FailAfterFrames {
		return errors.New("fake encode failure")
	}
	if len(pngData) == 0 {
		return errors.New("empty frame")
	}
	s.frames++
	return nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return errors.New("fake session aborted")
	}
	if s.closed {
		return nil
	}
	s.closed = true
	return os.WriteFile(s.Request.OutputPath, []byte(fmt.Sprintf("frames:%d", s.frames)), 0o644)
}

func (s *FakeSession) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.aborted = true
	}
}

// Frames returns how many frames were streamed into the session.
func (s *FakeSession) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Closed reports whether the session finalized its output.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Aborted reports whether the session was torn down without finalizing.
func (s *FakeSession) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

var _ ffmpeg.Engine = (*FakeEngine)(nil)

// frameBytes renders a tiny valid PNG whose shade varies with the frame
// index, keeping decode work in tests cheap.
func frameBytes(index int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	shade := uint8(40 + index%160)
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	for y := 0; y < 36; y++ {
		img.SetRGBA(0, y, color.RGBA{A: 255})
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
