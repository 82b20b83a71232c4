package exhibition

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for image storage backends
type BlobStore interface {
	// Upload writes the reader under params.ObjectKey, replacing nothing:
	// keys are generated and never reused.
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download opens a stored blob. Missing keys yield ErrBlobNotFound.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Exists reports whether a blob is stored under the key
	Exists(ctx context.Context, objectKey string) (bool, error)

	// Delete removes a blob. Missing keys yield ErrBlobNotFound.
	Delete(ctx context.Context, objectKey string) error
}

// UploadParams contains parameters for uploading a blob
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Size      int64
}

// Repository is the persistence gateway. Every logical operation runs inside
// exactly one transaction; fn's error rolls the transaction back and is
// returned unchanged. Begin and commit failures wrap ErrTransactionFailure.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// OrderReader is the read side the ordering allocator needs.
type OrderReader interface {
	// MaxOrder returns the highest order in scope, or 0 when the scope is empty
	MaxOrder(ctx context.Context, scope OrderScope) (int, error)

	// OrderTaken reports whether a sibling other than exclude holds order
	OrderTaken(ctx context.Context, scope OrderScope, order int, exclude uuid.UUID) (bool, error)
}

// Tx is the set of typed operations available inside a transaction.
// Lookups of missing rows return the matching ErrXNotFound sentinel.
// Writes that break a uniqueness rule return ErrOrderConflict,
// ErrDuplicateSlug or ErrDuplicateName; writes pointing at missing rows
// return ErrInvalidReference.
type Tx interface {
	OrderReader

	// Exhibition operations
	CreateExhibition(ctx context.Context, e *Exhibition) error
	GetExhibition(ctx context.Context, id uuid.UUID) (*Exhibition, error)
	GetExhibitionBySlug(ctx context.Context, slug string) (*Exhibition, error)
	UpdateExhibition(ctx context.Context, e *Exhibition) error
	DeleteExhibition(ctx context.Context, id uuid.UUID) error
	ListExhibitions(ctx context.Context, filter ExhibitionFilter) ([]*Exhibition, int, error)
	SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error)

	// Section operations
	CreateSection(ctx context.Context, s *Section) error
	GetSection(ctx context.Context, id uuid.UUID) (*Section, error)
	UpdateSection(ctx context.Context, s *Section) error
	DeleteSection(ctx context.Context, id uuid.UUID) error
	ListSections(ctx context.Context, exhibitionID uuid.UUID) ([]*Section, error)

	// Content block operations
	CreateContentBlock(ctx context.Context, b *ContentBlock) error
	GetContentBlock(ctx context.Context, id uuid.UUID) (*ContentBlock, error)
	UpdateContentBlock(ctx context.Context, b *ContentBlock) error
	DeleteContentBlock(ctx context.Context, id uuid.UUID) error
	ListContentBlocks(ctx context.Context, sectionID uuid.UUID) ([]*ContentBlock, error)
	ListContentBlocksByBook(ctx context.Context, bookID uuid.UUID) ([]*ContentBlock, error)

	// Catalog operations
	CreateBook(ctx context.Context, b *Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	UpdateBook(ctx context.Context, b *Book) error
	DeleteBook(ctx context.Context, id uuid.UUID) error
	ListBooks(ctx context.Context, filter BookFilter) ([]*Book, error)

	CreateAuthor(ctx context.Context, a *Author) error
	GetAuthor(ctx context.Context, id uuid.UUID) (*Author, error)
	DeleteAuthor(ctx context.Context, id uuid.UUID) error
	ListAuthors(ctx context.Context, search string) ([]*Author, error)

	CreateGenre(ctx context.Context, g *Genre) error
	GetGenre(ctx context.Context, id uuid.UUID) (*Genre, error)
	DeleteGenre(ctx context.Context, id uuid.UUID) error
	ListGenres(ctx context.Context, search string) ([]*Genre, error)
}

// EventSink receives lifecycle notifications. Errors are logged by the
// service and never fail the operation that produced the event.
type EventSink interface {
	ExhibitionCreated(ctx context.Context, e *Exhibition) error
	ExhibitionUpdated(ctx context.Context, e *Exhibition) error
	ExhibitionDeleted(ctx context.Context, id uuid.UUID) error
	BookDeleted(ctx context.Context, id uuid.UUID, removedBlocks int) error

	// AssetOrphaned reports a blob that is no longer referenced but could not
	// be deleted. Consumers can feed an out-of-band sweep from it.
	AssetOrphaned(ctx context.Context, ref AssetRef, cause error) error
}
