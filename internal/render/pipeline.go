package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"chorus/internal/compositor"
	"chorus/internal/config"
	"chorus/internal/logging"
	"chorus/internal/media/ffmpeg"
	"chorus/internal/media/ffprobe"
	"chorus/internal/progress"
	"chorus/internal/queue"
	"chorus/internal/services"
	"chorus/internal/timing"
)

// ErrCancelled reports that a run stopped because the job's cancel flag was
// observed at a batch boundary.
var ErrCancelled = errors.New("render cancelled")

// Prober inspects a media source. It matches ffprobe.Inspect.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Pipeline turns one queued job into an encoded output file while keeping
// scratch usage bounded to the in-flight batch plus one prefetched batch.
type Pipeline struct {
	cfg    *config.Config
	engine ffmpeg.Engine
	store  *queue.Store
	bus    *progress.Bus
	logger *slog.Logger
	probe  Prober
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProber overrides source inspection.
func WithProber(probe Prober) Option {
	return func(p *Pipeline) {
		if probe != nil {
			p.probe = probe
		}
	}
}

// NewPipeline constructs a render pipeline.
func NewPipeline(cfg *config.Config, engine ffmpeg.Engine, store *queue.Store, bus *progress.Bus, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	pipeline := &Pipeline{
		cfg:    cfg,
		engine: engine,
		store:  store,
		bus:    bus,
		logger: logging.NewComponentLogger(logger, "render"),
		probe:  ffprobe.Inspect,
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline
}

type batch struct {
	index int
	first int
	dir   string
	paths []string
	err   error
}

// Run renders one job and returns the output path. The job's scratch
// directory is removed on every exit path; a failed or cancelled run also
// removes any partial output file.
func (p *Pipeline) Run(ctx context.Context, job *queue.Job) (string, error) {
	settings, err := DecodeSettings(job.SettingsJSON)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "render", "settings", err.Error(), nil)
	}
	spec, err := DecodeOverlay(job.OverlayJSON)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "render", "overlay", err.Error(), nil)
	}
	idx, err := DecodeTiming(job.SubtitlesJSON, job.WordsJSON)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "render", "timing", err.Error(), nil)
	}
	comp, err := compositor.New(spec)
	if err != nil {
		return "", services.Wrap(services.ErrComposition, "render", "compositor", "", err)
	}
	width, height := settings.Dimensions()

	scratch := filepath.Join(p.cfg.Paths.ScratchDir, job.ID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", services.Wrap(services.ErrResource, "render", "scratch", scratch, err)
	}
	defer os.RemoveAll(scratch)

	videoSource := job.SourcePath
	audioSource := job.SourcePath
	if job.IsImageSource() {
		audioSource = job.AudioPath
		synthesized := filepath.Join(scratch, "source.mp4")
		if err := p.engine.Synthesize(ctx, job.SourcePath, job.AudioPath, synthesized, settings.FrameRate, width, height); err != nil {
			return "", err
		}
		videoSource = synthesized
	}

	probed, err := p.probe(ctx, p.cfg.FFprobeBinary(), videoSource)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "render", "probe", "", err)
	}
	duration := probed.DurationSeconds()
	if duration <= 0 {
		return "", services.Wrap(services.ErrValidation, "render", "probe", "source has no measurable duration", nil)
	}
	totalFrames := int(math.Ceil(duration * float64(settings.FrameRate)))

	preset := ffmpeg.PresetFor(settings.Format, settings.Quality)
	outputPath := filepath.Join(p.cfg.Paths.OutputDir, job.ID+"."+preset.Container)
	session, err := p.engine.StartEncode(ctx, ffmpeg.EncodeRequest{
		AudioSource: audioSource,
		OutputPath:  outputPath,
		FrameRate:   settings.FrameRate,
		Preset:      preset,
	})
	if err != nil {
		return "", err
	}
	finished := false
	defer func() {
		if !finished {
			session.Abort()
			_ = os.Remove(outputPath)
		}
	}()

	p.logger.Info("render started",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("total_frames", totalFrames),
		logging.Int("batch_size", p.cfg.Render.BatchSize),
		logging.String("output", outputPath),
	)

	if err := p.stream(ctx, job, session, comp, idx, settings, scratch, videoSource, totalFrames); err != nil {
		return "", err
	}
	if err := session.Close(); err != nil {
		return "", err
	}
	finished = true
	return outputPath, nil
}

// stream drives the extract/composite/pipe loop. Extraction of the next
// batch overlaps processing of the current one through an unbuffered
// handoff, so at most two batches exist on disk at any moment.
func (p *Pipeline) stream(ctx context.Context, job *queue.Job, session ffmpeg.EncodeSession, comp *compositor.Compositor, idx *timing.Index, settings Settings, scratch, videoSource string, totalFrames int) error {
	batchSize := p.cfg.Render.BatchSize
	batchCount := (totalFrames + batchSize - 1) / batchSize
	width, height := settings.Dimensions()

	extractCtx, cancelExtract := context.WithCancel(ctx)
	defer cancelExtract()

	batches := make(chan batch)
	go func() {
		defer close(batches)
		for i := 0; i < batchCount; i++ {
			first := i * batchSize
			count := batchSize
			if first+count > totalFrames {
				count = totalFrames - first
			}
			result := batch{index: i, first: first, dir: filepath.Join(scratch, fmt.Sprintf("batch_%04d", i))}
			if err := os.MkdirAll(result.dir, 0o755); err != nil {
				result.err = services.Wrap(services.ErrResource, "extract", "scratch", result.dir, err)
			} else {
				result.paths, result.err = p.engine.ExtractBatch(extractCtx, ffmpeg.ExtractRequest{
					SourcePath: videoSource,
					FirstFrame: first,
					FrameCount: count,
					FrameRate:  settings.FrameRate,
					Width:      width,
					Height:     height,
					OutputDir:  result.dir,
				})
			}
			select {
			case batches <- result:
			case <-extractCtx.Done():
				return
			}
			if result.err != nil {
				return
			}
		}
	}()

	processed := 0
	for current := range batches {
		if current.err != nil {
			return current.err
		}
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrInterrupted, "render", "batch", "", err)
		}
		flagged, err := p.store.CancelRequested(ctx, job.ID)
		if err != nil {
			return services.Wrap(services.ErrResource, "render", "cancel check", "", err)
		}
		if flagged {
			return ErrCancelled
		}

		if err := p.processBatch(session, comp, idx, settings, current); err != nil {
			return err
		}
		os.RemoveAll(current.dir)
		processed += len(current.paths)

		percent := float64(processed) / float64(totalFrames) * 100
		if percent > 99 {
			percent = 99
		}
		p.bus.Publish(ctx, progress.Update{
			JobID:   job.ID,
			Percent: percent,
			Message: fmt.Sprintf("Rendered batch %d/%d", current.index+1, batchCount),
			Status:  queue.StatusProcessing,
		})

		// A short batch means the source ran out before the probed duration
		// predicted; stop extracting.
		if current.index+1 < batchCount && processed < current.first+batchSize {
			cancelExtract()
			break
		}
	}
	return nil
}

func (p *Pipeline) processBatch(session ffmpeg.EncodeSession, comp *compositor.Compositor, idx *timing.Index, settings Settings, current batch) error {
	frameRate := float64(settings.FrameRate)
	windowStart := float64(current.first) / frameRate
	windowEnd := (float64(current.first) + float64(len(current.paths))) / frameRate
	overlayActive := idx.AnyLineIn(windowStart, windowEnd)

	var buf bytes.Buffer
	for i, path := range current.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return services.Wrap(services.ErrExtraction, "extract", "read frame", path, err)
		}
		if !overlayActive {
			// No line intersects this batch; pipe the extracted bytes through
			// without a decode round trip.
			if err := session.WriteFrame(data); err != nil {
				return err
			}
			continue
		}

		decoded, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return services.Wrap(services.ErrExtraction, "extract", "decode frame", path, err)
		}
		frame, ok := decoded.(*image.RGBA)
		if !ok {
			frame = image.NewRGBA(decoded.Bounds())
			draw.Draw(frame, frame.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
		}
		t := float64(current.first+i) / frameRate
		if err := comp.Render(frame, t, idx); err != nil {
			return services.Wrap(services.ErrComposition, "composite", "frame", path, err)
		}
		buf.Reset()
		if err := png.Encode(&buf, frame); err != nil {
			return services.Wrap(services.ErrComposition, "composite", "encode frame", path, err)
		}
		if err := session.WriteFrame(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
