package exhibition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tendant/simple-exhibition/pkg/exhibition/objectkey"
)

const defaultOrderRetries = 3

// service implements the Service interface
type service struct {
	repository   Repository
	blobStore    BlobStore
	mediaConfig  MediaConfig
	keyGenerator objectkey.Generator
	eventSink    EventSink
	logger       *slog.Logger
	orderRetries int
	now          func() time.Time

	media *MediaCoordinator
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the image storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithMediaConfig sets the upload limits
func WithMediaConfig(cfg MediaConfig) Option {
	return func(s *service) {
		s.mediaConfig = cfg
	}
}

// WithKeyGenerator sets the asset naming strategy
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = gen
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithOrderRetries sets how many times an auto-allocated insert is retried
// after losing an order race.
func WithOrderRetries(n int) Option {
	return func(s *service) {
		s.orderRetries = n
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		mediaConfig:  DefaultMediaConfig(),
		orderRetries: defaultOrderRetries,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.orderRetries < 1 {
		s.orderRetries = 1
	}

	s.media = NewMediaCoordinator(s.blobStore, s.mediaConfig, s.keyGenerator, s.eventSink, s.logger)
	return s, nil
}

// OpenAsset streams a stored image.
func (s *service) OpenAsset(ctx context.Context, ref AssetRef) (io.ReadCloser, error) {
	return s.media.Open(ctx, ref)
}

// withOrderRetry reruns fn while it loses an order race. Only callers that
// let the allocator choose the position retry; an explicit position that is
// taken is the caller's conflict.
func (s *service) withOrderRetry(auto bool, fn func() error) error {
	attempts := 1
	if auto {
		attempts = s.orderRetries
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if !errors.Is(err, ErrOrderConflict) {
			return err
		}
	}
	return err
}

func (s *service) emit(ctx context.Context, event string, err error) {
	if err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", event, "err", err)
	}
}
