package exhibition

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BlockType is the discriminator of a content block.
type BlockType string

// Block type constants (typed).
const (
	BlockTypeText BlockType = "text"
	BlockTypeBook BlockType = "book"
)

// AssetRef is the storage name of an image asset. The empty value means no asset.
type AssetRef string

// IsZero reports whether the reference is empty.
func (r AssetRef) IsZero() bool { return r == "" }

// Exhibition is the root of a content tree.
type Exhibition struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	Published   bool       `json:"is_published"`
	Image       AssetRef   `json:"image,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Section is an ordered child of an exhibition.
type Section struct {
	ID           uuid.UUID `json:"id"`
	ExhibitionID uuid.UUID `json:"exhibition_id"`
	Title        string    `json:"title"`
	Order        int       `json:"order"`
	CreatedAt    time.Time `json:"created_at"`
}

// BlockPayload is the variant carried by a content block. The only
// implementations are TextPayload and BookPayload.
type BlockPayload interface {
	Type() BlockType
	isBlockPayload()
}

// TextPayload is the payload of a text block.
type TextPayload struct {
	Text string
}

func (TextPayload) Type() BlockType { return BlockTypeText }
func (TextPayload) isBlockPayload() {}

// BookPayload is the payload of a block that points at a catalog book.
type BookPayload struct {
	BookID uuid.UUID
}

func (BookPayload) Type() BlockType { return BlockTypeBook }
func (BookPayload) isBlockPayload() {}

// ContentBlock is an ordered child of a section.
type ContentBlock struct {
	ID        uuid.UUID
	SectionID uuid.UUID
	Order     int
	Payload   BlockPayload
	CreatedAt time.Time
}

// Type returns the discriminator of the block payload.
func (b *ContentBlock) Type() BlockType {
	if b.Payload == nil {
		return ""
	}
	return b.Payload.Type()
}

// Text returns the text payload, if the block is a text block.
func (b *ContentBlock) Text() (string, bool) {
	p, ok := b.Payload.(TextPayload)
	return p.Text, ok
}

// BookID returns the referenced book, if the block is a book block.
func (b *ContentBlock) BookID() (uuid.UUID, bool) {
	p, ok := b.Payload.(BookPayload)
	return p.BookID, ok
}

// Columns flattens the payload into the nullable column form used by
// persistence backends.
func (b *ContentBlock) Columns() (BlockType, *string, *uuid.UUID) {
	switch p := b.Payload.(type) {
	case TextPayload:
		text := p.Text
		return BlockTypeText, &text, nil
	case BookPayload:
		id := p.BookID
		return BlockTypeBook, nil, &id
	}
	return "", nil, nil
}

type contentBlockJSON struct {
	ID          uuid.UUID  `json:"id"`
	SectionID   uuid.UUID  `json:"section_id"`
	Order       int        `json:"order"`
	Type        BlockType  `json:"content_type"`
	TextContent *string    `json:"text_content"`
	BookID      *uuid.UUID `json:"book_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MarshalJSON renders the block in its flat wire form.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	t, text, book := b.Columns()
	return json.Marshal(contentBlockJSON{
		ID:          b.ID,
		SectionID:   b.SectionID,
		Order:       b.Order,
		Type:        t,
		TextContent: text,
		BookID:      book,
		CreatedAt:   b.CreatedAt,
	})
}

// SectionTree is a section with its blocks in order.
type SectionTree struct {
	Section
	Blocks []*ContentBlock `json:"content_blocks"`
}

// ExhibitionTree is an exhibition with its sections and blocks in order.
type ExhibitionTree struct {
	Exhibition
	Sections []*SectionTree `json:"sections"`
}

// Book is a catalog entry that content blocks may point at.
type Book struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Annotation      string      `json:"annotation,omitempty"`
	Description     string      `json:"library_description,omitempty"`
	PublicationYear string      `json:"year_of_publication,omitempty"`
	Image           AssetRef    `json:"image,omitempty"`
	AuthorIDs       []uuid.UUID `json:"author_ids"`
	GenreIDs        []uuid.UUID `json:"genre_ids"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Author is a catalog author. Names are unique.
type Author struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Genre is a catalog genre. Names are unique.
type Genre struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ExhibitionFilter narrows ListExhibitions.
type ExhibitionFilter struct {
	Published *bool
	Search    string
	Limit     int
	Offset    int
}

// ExhibitionPage is one page of a listing together with the unpaged total.
type ExhibitionPage struct {
	Items []*Exhibition `json:"items"`
	Total int           `json:"total"`
}

// BookSort selects the ordering of ListBooks.
type BookSort string

const (
	BookSortTitleAsc  BookSort = "title_asc"
	BookSortTitleDesc BookSort = "title_desc"
	BookSortNewest    BookSort = "newest"
)

// BookFilter narrows ListBooks. A book matches when it has at least one of
// the listed authors and at least one of the listed genres.
type BookFilter struct {
	Search    string
	AuthorIDs []uuid.UUID
	GenreIDs  []uuid.UUID
	Sort      BookSort
}
