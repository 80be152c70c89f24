package processor

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aliskhannn/image-compressor/internal/model"
	"github.com/aliskhannn/image-compressor/internal/retry"
)

// Options configures a Processor.
type Options struct {
	MaxBytes    int64  // Target artifact size
	MaxWidth    int    // Downscale bounding box width
	MaxHeight   int    // Downscale bounding box height
	Suffix      string // Inserted before the extension to name the artifact
	AtomicWrite bool   // Write the artifact to a temporary name and rename it into place
	Search      QualitySearch
	Retry       retry.Strategy
}

// DefaultOptions returns a 100KB budget, a 1920x1080 box and 3 attempts 4s apart.
func DefaultOptions() Options {
	return Options{
		MaxBytes:    100 * 1024,
		MaxWidth:    1920,
		MaxHeight:   1080,
		Suffix:      DefaultSuffix,
		AtomicWrite: true,
		Search:      DefaultQualitySearch(),
		Retry:       retry.Strategy{Attempts: 3, Delay: 4 * time.Second, Backoff: 1},
	}
}

// Processor compresses single source files into size-constrained JPEG artifacts.
type Processor struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a new Processor.
func New(opts Options, logger zerolog.Logger) *Processor {
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}

	return &Processor{
		opts:   opts,
		logger: logger.With().Str("component", "processor").Logger(),
	}
}

// Compress decodes path, downscales it, searches a quality that fits the budget
// and writes the artifact next to the source. Transient I/O failures are retried
// according to the retry strategy; anything else fails immediately.
func (p *Processor) Compress(ctx context.Context, path string) (model.Result, error) {
	job := model.CompressionJob{
		ID:         uuid.New(),
		Source:     path,
		Output:     ArtifactPath(path, p.opts.Suffix),
		Scratch:    ScratchPath(path),
		MaxBytes:   p.opts.MaxBytes,
		MaxWidth:   p.opts.MaxWidth,
		MaxHeight:  p.opts.MaxHeight,
		AtomicSave: p.opts.AtomicWrite,
	}
	log := p.logger.With().Str("job_id", job.ID.String()).Str("path", path).Logger()

	start := time.Now()
	var (
		res      model.Result
		attempts int
	)

	err := retry.Do(ctx, p.opts.Retry, func(attempt int) error {
		attempts = attempt

		r, err := p.run(job)
		if err != nil {
			return err
		}
		res = r

		return nil
	},
		retry.Retryable(IsTransient),
		retry.OnRetry(func(attempt int, err error, wait time.Duration) {
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("delay", wait).
				Msg("transient error, retrying")
		}),
	)
	if err != nil {
		return model.Result{JobID: job.ID, Source: path, Attempts: attempts}, fmt.Errorf("compress %s: %w", path, err)
	}

	res.Attempts = attempts
	res.Duration = time.Since(start)
	res.Done = time.Now()

	return res, nil
}

// run performs one attempt of the decode, downscale, search, encode pipeline.
func (p *Processor) run(job model.CompressionJob) (model.Result, error) {
	img, err := imaging.Open(job.Source, imaging.AutoOrientation(true))
	if err != nil {
		if IsTransient(err) {
			return model.Result{}, fmt.Errorf("open source: %w", err)
		}
		return model.Result{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img = Downscale(img, job.MaxWidth, job.MaxHeight)

	quality, err := p.opts.Search.Find(img, job.MaxBytes, job.Scratch)
	if err != nil {
		return model.Result{}, fmt.Errorf("search quality: %w", err)
	}

	size, err := p.save(img, quality, job)
	if err != nil {
		return model.Result{}, fmt.Errorf("save artifact: %w", err)
	}

	b := img.Bounds()

	return model.Result{
		JobID:   job.ID,
		Source:  job.Source,
		Output:  job.Output,
		Quality: quality,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Bytes:   size,
	}, nil
}

// save encodes img at quality into the job's output path and returns the written size.
func (p *Processor) save(img image.Image, quality int, job model.CompressionJob) (int64, error) {
	target := job.Output
	if job.AtomicSave {
		target = job.Output + partialSuffix
	}

	f, err := os.Create(target)
	if err != nil {
		return 0, err
	}

	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		f.Close()
		if job.AtomicSave {
			removeIfExists(target)
		}
		return 0, err
	}
	if err := f.Close(); err != nil {
		if job.AtomicSave {
			removeIfExists(target)
		}
		return 0, err
	}

	if job.AtomicSave {
		if err := os.Rename(target, job.Output); err != nil {
			removeIfExists(target)
			return 0, err
		}
	}

	info, err := os.Stat(job.Output)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}
