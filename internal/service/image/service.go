package image

import (
	"context"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aliskhannn/image-compressor/internal/model"
)

// compressor defines the interface for turning one source file into an artifact.
type compressor interface {
	Compress(ctx context.Context, path string) (model.Result, error)
}

// fileStorage defines the interface for mirroring artifacts to object storage (e.g., MinIO or S3).
type fileStorage interface {
	Upload(ctx context.Context, objectName, path string) (string, error)
}

// producer defines the interface for publishing compression events to a message broker (e.g., Kafka).
type producer interface {
	Produce(ctx context.Context, res model.Result) error
}

// Service compresses images and hands finished artifacts to the optional sinks.
// A sink failure never fails the compression: the artifact is already on disk.
type Service struct {
	compressor  compressor
	fileStorage fileStorage
	producer    producer
	logger      zerolog.Logger
}

// Option configures optional Service sinks.
type Option func(*Service)

// WithStorage mirrors every artifact into fs.
func WithStorage(fs fileStorage) Option {
	return func(s *Service) { s.fileStorage = fs }
}

// WithProducer publishes an event for every artifact through p.
func WithProducer(p producer) Option {
	return func(s *Service) { s.producer = p }
}

// NewService creates a new Service around c.
func NewService(c compressor, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		compressor: c,
		logger:     logger.With().Str("component", "service.image").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Compress runs the compression for src, then mirrors and announces the artifact.
func (s *Service) Compress(ctx context.Context, src string) (model.Result, error) {
	res, err := s.compressor.Compress(ctx, src)
	if err != nil {
		return res, err
	}

	if s.fileStorage != nil {
		object, err := s.fileStorage.Upload(ctx, ObjectName(res), res.Output)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("output", res.Output).
				Msg("failed to mirror artifact")
		} else {
			res.Object = object
		}
	}

	if s.producer != nil {
		if err := s.producer.Produce(ctx, res); err != nil {
			s.logger.Warn().
				Err(err).
				Str("job_id", res.JobID.String()).
				Str("output", res.Output).
				Msg("failed to publish compression event")
		}
	}

	return res, nil
}

// ObjectName returns the object name for the artifact of res, relative to the storage prefix.
func ObjectName(res model.Result) string {
	return path.Join(res.JobID.String(), filepath.Base(res.Output))
}
