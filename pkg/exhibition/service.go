package exhibition

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main exhibition management interface
type Service interface {
	// Exhibition operations
	CreateExhibition(ctx context.Context, req CreateExhibitionRequest) (*Exhibition, error)
	GetExhibition(ctx context.Context, id uuid.UUID) (*Exhibition, error)
	GetExhibitionBySlug(ctx context.Context, slug string) (*Exhibition, error)
	GetExhibitionTree(ctx context.Context, id uuid.UUID) (*ExhibitionTree, error)
	ListExhibitions(ctx context.Context, filter ExhibitionFilter) (*ExhibitionPage, error)
	UpdateExhibition(ctx context.Context, id uuid.UUID, req UpdateExhibitionRequest) (*Exhibition, error)
	DeleteExhibition(ctx context.Context, id uuid.UUID) error

	// Section operations
	CreateSection(ctx context.Context, exhibitionID uuid.UUID, req CreateSectionRequest) (*Section, error)
	GetSection(ctx context.Context, exhibitionID, sectionID uuid.UUID) (*SectionTree, error)
	ListSections(ctx context.Context, exhibitionID uuid.UUID) ([]*Section, error)
	UpdateSection(ctx context.Context, exhibitionID, sectionID uuid.UUID, req UpdateSectionRequest) (*Section, error)
	DeleteSection(ctx context.Context, exhibitionID, sectionID uuid.UUID) error

	// Content block operations
	CreateContentBlock(ctx context.Context, sectionID uuid.UUID, req CreateContentBlockRequest) (*ContentBlock, error)
	ListContentBlocks(ctx context.Context, sectionID uuid.UUID) ([]*ContentBlock, error)
	GetContentBlock(ctx context.Context, sectionID, contentID uuid.UUID) (*ContentBlock, error)
	UpdateContentBlock(ctx context.Context, sectionID, contentID uuid.UUID, patch BlockPatch) (*ContentBlock, error)
	DeleteContentBlock(ctx context.Context, sectionID, contentID uuid.UUID) error
	UnlinkBookFromBlock(ctx context.Context, contentID, bookID uuid.UUID) error

	// Catalog operations
	CreateBook(ctx context.Context, req CreateBookRequest) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, req UpdateBookRequest) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	CreateAuthor(ctx context.Context, req CreateNameRequest) (*Author, error)
	ListAuthors(ctx context.Context, search string) ([]*Author, error)
	DeleteAuthor(ctx context.Context, id uuid.UUID) error

	CreateGenre(ctx context.Context, req CreateNameRequest) (*Genre, error)
	ListGenres(ctx context.Context, search string) ([]*Genre, error)
	DeleteGenre(ctx context.Context, id uuid.UUID) error

	// Media operations
	OpenAsset(ctx context.Context, ref AssetRef) (io.ReadCloser, error)
}
