package exhibition_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
	memorystorage "github.com/tendant/simple-exhibition/pkg/exhibition/storage/memory"
)

var errInjected = errors.New("injected failure")

// flakyStore is an in-memory blob store whose writes and deletes can be made to fail
type flakyStore struct {
	*memorystorage.Backend
	failUpload bool
	failDelete bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Backend: memorystorage.New()}
}

func (s *flakyStore) Upload(ctx context.Context, reader io.Reader, params exhibition.UploadParams) error {
	if s.failUpload {
		return errInjected
	}
	return s.Backend.Upload(ctx, reader, params)
}

func (s *flakyStore) Delete(ctx context.Context, objectKey string) error {
	if s.failDelete {
		return errInjected
	}
	return s.Backend.Delete(ctx, objectKey)
}

// flakyRepo fails the transaction with the given 1-based sequence number
// without running it. It can also report lost order races for the next
// few transactions.
type flakyRepo struct {
	exhibition.Repository
	mu        sync.Mutex
	calls     int
	failOn    int
	conflicts int
}

func (r *flakyRepo) WithTx(ctx context.Context, fn func(tx exhibition.Tx) error) error {
	r.mu.Lock()
	r.calls++
	fail := r.failOn > 0 && r.calls == r.failOn
	conflict := r.conflicts > 0
	if conflict {
		r.conflicts--
	}
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: %w", exhibition.ErrTransactionFailure, errInjected)
	}
	if conflict {
		return fmt.Errorf("insert: %w", exhibition.ErrOrderConflict)
	}
	return r.Repository.WithTx(ctx, fn)
}

// conflictNext makes the next n transactions fail as if a concurrent insert
// took the allocated position.
func (r *flakyRepo) conflictNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = n
}

func (r *flakyRepo) transactions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// failAfter arms the repo to fail the n-th transaction from now
func (r *flakyRepo) failAfter(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn = r.calls + n
}

// recordingSink remembers every event it receives
type recordingSink struct {
	exhibition.NoopEventSink

	mu       sync.Mutex
	created  []uuid.UUID
	updated  []uuid.UUID
	deleted  []uuid.UUID
	books    map[uuid.UUID]int
	orphaned []exhibition.AssetRef
	err      error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{books: map[uuid.UUID]int{}}
}

func (s *recordingSink) ExhibitionCreated(ctx context.Context, e *exhibition.Exhibition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, e.ID)
	return s.err
}

func (s *recordingSink) ExhibitionUpdated(ctx context.Context, e *exhibition.Exhibition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, e.ID)
	return s.err
}

func (s *recordingSink) ExhibitionDeleted(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *recordingSink) BookDeleted(ctx context.Context, id uuid.UUID, removedBlocks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[id] = removedBlocks
	return s.err
}

func (s *recordingSink) AssetOrphaned(ctx context.Context, ref exhibition.AssetRef, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphaned = append(s.orphaned, ref)
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngUpload(t *testing.T) exhibition.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return exhibition.Upload{Data: buf.Bytes(), MimeType: "image/png"}
}

func gifUpload(t *testing.T) exhibition.Upload {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return exhibition.Upload{Data: buf.Bytes(), MimeType: "image/gif"}
}
