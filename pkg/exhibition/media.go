package exhibition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tendant/simple-exhibition/pkg/exhibition/objectkey"
)

// Default media limits.
const (
	DefaultMaxImageBytes int64 = 5 * 1024 * 1024
)

// DefaultAllowedMimeTypes lists the image types accepted when no explicit list is configured.
var DefaultAllowedMimeTypes = []string{"image/jpeg", "image/png", "image/gif"}

// mime type -> decoder format name and file extension
var imageFormats = map[string]struct{ format, ext string }{
	"image/jpeg": {"jpeg", "jpg"},
	"image/png":  {"png", "png"},
	"image/gif":  {"gif", "gif"},
}

// Upload is an image supplied by a caller.
type Upload struct {
	Data     []byte
	MimeType string
}

// MediaConfig holds the limits applied to every upload.
type MediaConfig struct {
	AllowedMimeTypes []string
	MaxBytes         int64
	// Backend is the name reported in StorageError values
	Backend string
}

// DefaultMediaConfig returns the stock limits: JPEG, PNG and GIF up to 5 MiB.
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		AllowedMimeTypes: append([]string(nil), DefaultAllowedMimeTypes...),
		MaxBytes:         DefaultMaxImageBytes,
		Backend:          "default",
	}
}

// MediaCoordinator keeps image blobs consistent with the rows that reference
// them. Blob writes always happen before the row commit and blob deletes
// always after it.
type MediaCoordinator struct {
	store   BlobStore
	config  MediaConfig
	keys    objectkey.Generator
	events  EventSink
	logger  *slog.Logger
	allowed map[string]bool
}

// NewMediaCoordinator builds a coordinator over store. A nil generator
// selects sharded names under "images".
func NewMediaCoordinator(store BlobStore, config MediaConfig, keys objectkey.Generator, events EventSink, logger *slog.Logger) *MediaCoordinator {
	if keys == nil {
		keys = objectkey.NewShardedGenerator("images")
	}
	if events == nil {
		events = NewNoopEventSink()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxImageBytes
	}
	if len(config.AllowedMimeTypes) == 0 {
		config.AllowedMimeTypes = append([]string(nil), DefaultAllowedMimeTypes...)
	}
	if config.Backend == "" {
		config.Backend = "default"
	}

	allowed := make(map[string]bool, len(config.AllowedMimeTypes))
	for _, mt := range config.AllowedMimeTypes {
		allowed[strings.ToLower(strings.TrimSpace(mt))] = true
	}

	return &MediaCoordinator{
		store:   store,
		config:  config,
		keys:    keys,
		events:  events,
		logger:  logger,
		allowed: allowed,
	}
}

// Config returns the effective limits.
func (m *MediaCoordinator) Config() MediaConfig {
	return m.config
}

// CheckUpload validates an upload against the configured limits without touching storage.
func (m *MediaCoordinator) CheckUpload(up Upload) (string, error) {
	if int64(len(up.Data)) > m.config.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(up.Data), m.config.MaxBytes)
	}
	if len(up.Data) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrUnsupportedMediaType)
	}

	mimeType := strings.ToLower(strings.TrimSpace(up.MimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !m.allowed[mimeType] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, up.MimeType)
	}

	info, known := imageFormats[mimeType]
	if !known {
		return "", fmt.Errorf("%w: no decoder for %s", ErrUnsupportedMediaType, mimeType)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(up.Data))
	if err != nil || format != info.format {
		return "", fmt.Errorf("%w: content is not a valid %s image", ErrUnsupportedMediaType, mimeType)
	}
	return mimeType, nil
}

// StoreNew validates and writes an upload under a freshly generated name.
// The reference is returned only after the blob write succeeded.
func (m *MediaCoordinator) StoreNew(ctx context.Context, up Upload) (AssetRef, error) {
	mimeType, err := m.CheckUpload(up)
	if err != nil {
		return "", err
	}

	key := m.keys.GenerateKey(uuid.New(), imageFormats[mimeType].ext)
	params := UploadParams{ObjectKey: key, MimeType: mimeType, Size: int64(len(up.Data))}
	if err := m.store.Upload(ctx, bytes.NewReader(up.Data), params); err != nil {
		return "", &StorageError{Backend: m.config.Backend, Key: key, Op: "upload", Err: err}
	}
	return AssetRef(key), nil
}

// Attach stores an upload for a row that does not reference an image yet.
// If commit fails the new blob is discarded and commit's error returned.
func (m *MediaCoordinator) Attach(ctx context.Context, up Upload, commit func(newRef AssetRef) error) (AssetRef, error) {
	return m.Replace(ctx, up, func(newRef AssetRef) (AssetRef, error) {
		return "", commit(newRef)
	})
}

// Replace swaps the image of a row: write new blob, commit the row, delete
// the old blob. commit persists newRef and returns the reference it
// displaced. A commit failure leaves the old blob untouched. A failure to
// delete the old blob is logged and reported as an orphan, not returned,
// because the row already points at the new blob.
func (m *MediaCoordinator) Replace(ctx context.Context, up Upload, commit func(newRef AssetRef) (AssetRef, error)) (AssetRef, error) {
	newRef, err := m.StoreNew(ctx, up)
	if err != nil {
		return "", err
	}

	oldRef, err := commit(newRef)
	if err != nil {
		m.Release(ctx, newRef)
		return "", err
	}

	if !oldRef.IsZero() && oldRef != newRef {
		m.Release(ctx, oldRef)
	}
	return newRef, nil
}

// DeleteForOwner removes an asset whose owner is gone. Missing blobs are not
// an error, so repeated calls succeed.
func (m *MediaCoordinator) DeleteForOwner(ctx context.Context, ref AssetRef) error {
	if ref.IsZero() {
		return nil
	}
	if err := m.store.Delete(ctx, string(ref)); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil
		}
		return &StorageError{Backend: m.config.Backend, Key: string(ref), Op: "delete", Err: err}
	}
	return nil
}

// Release deletes an asset after the row that referenced it was committed
// away. Failures become orphan reports.
func (m *MediaCoordinator) Release(ctx context.Context, ref AssetRef) {
	ctx = context.WithoutCancel(ctx)
	if err := m.DeleteForOwner(ctx, ref); err != nil {
		m.logger.Warn("failed to delete unreferenced asset", "asset", ref, "err", err)
		if sinkErr := m.events.AssetOrphaned(ctx, ref, err); sinkErr != nil {
			m.logger.Error("failed to report orphaned asset", "asset", ref, "err", sinkErr)
		}
	}
}

// Open streams a stored asset.
func (m *MediaCoordinator) Open(ctx context.Context, ref AssetRef) (io.ReadCloser, error) {
	if ref.IsZero() || strings.Contains(string(ref), "..") {
		return nil, ErrBlobNotFound
	}
	rc, err := m.store.Download(ctx, string(ref))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, err
		}
		return nil, &StorageError{Backend: m.config.Backend, Key: string(ref), Op: "download", Err: err}
	}
	return rc, nil
}

// Exists reports whether an asset is stored.
func (m *MediaCoordinator) Exists(ctx context.Context, ref AssetRef) (bool, error) {
	if ref.IsZero() {
		return false, nil
	}
	ok, err := m.store.Exists(ctx, string(ref))
	if err != nil {
		return false, &StorageError{Backend: m.config.Backend, Key: string(ref), Op: "exists", Err: err}
	}
	return ok, nil
}
