package exhibition

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ExhibitionCreated(ctx context.Context, e *Exhibition) error { return nil }
func (n *NoopEventSink) ExhibitionUpdated(ctx context.Context, e *Exhibition) error { return nil }
func (n *NoopEventSink) ExhibitionDeleted(ctx context.Context, id uuid.UUID) error  { return nil }
func (n *NoopEventSink) BookDeleted(ctx context.Context, id uuid.UUID, removedBlocks int) error {
	return nil
}
func (n *NoopEventSink) AssetOrphaned(ctx context.Context, ref AssetRef, cause error) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action.
// Useful for development and debugging.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ExhibitionCreated logs the creation event
func (l *LoggingEventSink) ExhibitionCreated(ctx context.Context, e *Exhibition) error {
	l.logger.InfoContext(ctx, "exhibition created", "id", e.ID, "slug", e.Slug)
	return nil
}

// ExhibitionUpdated logs the update event
func (l *LoggingEventSink) ExhibitionUpdated(ctx context.Context, e *Exhibition) error {
	l.logger.InfoContext(ctx, "exhibition updated", "id", e.ID, "slug", e.Slug, "published", e.Published)
	return nil
}

// ExhibitionDeleted logs the deletion event
func (l *LoggingEventSink) ExhibitionDeleted(ctx context.Context, id uuid.UUID) error {
	l.logger.InfoContext(ctx, "exhibition deleted", "id", id)
	return nil
}

// BookDeleted logs the book deletion together with the number of blocks removed with it
func (l *LoggingEventSink) BookDeleted(ctx context.Context, id uuid.UUID, removedBlocks int) error {
	l.logger.InfoContext(ctx, "book deleted", "id", id, "removed_blocks", removedBlocks)
	return nil
}

// AssetOrphaned logs an asset that needs an out-of-band sweep
func (l *LoggingEventSink) AssetOrphaned(ctx context.Context, ref AssetRef, cause error) error {
	l.logger.WarnContext(ctx, "asset orphaned", "asset", ref, "cause", cause)
	return nil
}

// MultiEventSink fans events out to several sinks, returning the first error.
type MultiEventSink []EventSink

func (m MultiEventSink) ExhibitionCreated(ctx context.Context, e *Exhibition) error {
	return m.each(func(s EventSink) error { return s.ExhibitionCreated(ctx, e) })
}

func (m MultiEventSink) ExhibitionUpdated(ctx context.Context, e *Exhibition) error {
	return m.each(func(s EventSink) error { return s.ExhibitionUpdated(ctx, e) })
}

func (m MultiEventSink) ExhibitionDeleted(ctx context.Context, id uuid.UUID) error {
	return m.each(func(s EventSink) error { return s.ExhibitionDeleted(ctx, id) })
}

func (m MultiEventSink) BookDeleted(ctx context.Context, id uuid.UUID, removedBlocks int) error {
	return m.each(func(s EventSink) error { return s.BookDeleted(ctx, id, removedBlocks) })
}

func (m MultiEventSink) AssetOrphaned(ctx context.Context, ref AssetRef, cause error) error {
	return m.each(func(s EventSink) error { return s.AssetOrphaned(ctx, ref, cause) })
}

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var first error
	for _, s := range m {
		if err := fn(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
