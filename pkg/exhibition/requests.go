package exhibition

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Request DTOs. Validate checks field shape only; structural rules (slug
// uniqueness, ordering, block variants, references) are enforced by the service.

var yearPattern = regexp.MustCompile(`^-?[0-9]{1,4}$`)

// position rejects an explicit order below 1. validation.Min treats a zero
// value as empty and would let it through.
func position(value interface{}) error {
	if order, ok := value.(*int); ok && order != nil && *order < 1 {
		return errors.New("must be at least 1")
	}
	return nil
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

// CreateExhibitionRequest contains parameters for creating an exhibition
type CreateExhibitionRequest struct {
	Title       string
	Description string
	Published   bool
	Image       *Upload
}

func (r CreateExhibitionRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.Required.Error("title is required"),
			validation.Length(1, 255),
		),
	))
}

// UpdateExhibitionRequest contains parameters for updating an exhibition.
// Nil fields are left unchanged.
type UpdateExhibitionRequest struct {
	Title       *string
	Description *string
	Published   *bool
	Image       *Upload
}

func (r UpdateExhibitionRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.NilOrNotEmpty.Error("title cannot be blank"),
			validation.Length(1, 255),
		),
	))
}

// CreateSectionRequest contains parameters for creating a section.
// A nil Order appends after the last sibling.
type CreateSectionRequest struct {
	Title string `json:"title"`
	Order *int   `json:"order,omitempty"`
}

func (r CreateSectionRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required.Error("title is required"), validation.Length(1, 255)),
		validation.Field(&r.Order, validation.By(position)),
	))
}

// UpdateSectionRequest contains parameters for renaming or moving a section
type UpdateSectionRequest struct {
	Title *string `json:"title,omitempty"`
	Order *int    `json:"order,omitempty"`
}

func (r UpdateSectionRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Order, validation.By(position)),
	))
}

// CreateContentBlockRequest contains parameters for creating a content block.
// A nil Type is inferred from the supplied fields.
type CreateContentBlockRequest struct {
	Type   *BlockType `json:"content_type,omitempty"`
	Text   *string    `json:"text_content,omitempty"`
	BookID *uuid.UUID `json:"book_id,omitempty"`
	Order  *int       `json:"order,omitempty"`
}

func (r CreateContentBlockRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Order, validation.By(position)),
	))
}

func (p BlockPatch) Validate() error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Order, validation.By(position)),
	))
}

// CreateBookRequest contains parameters for adding a book to the catalog
type CreateBookRequest struct {
	Title           string
	Annotation      string
	Description     string
	PublicationYear string
	AuthorIDs       []uuid.UUID
	GenreIDs        []uuid.UUID
	Image           *Upload
}

func (r CreateBookRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required.Error("title is required"), validation.Length(1, 255)),
		validation.Field(&r.PublicationYear, validation.When(r.PublicationYear != "",
			validation.Match(yearPattern).Error("year must be a number"),
		)),
	))
}

// UpdateBookRequest contains parameters for updating a book.
// Nil fields are left unchanged; non-nil id lists replace the associations.
type UpdateBookRequest struct {
	Title           *string
	Annotation      *string
	Description     *string
	PublicationYear *string
	AuthorIDs       *[]uuid.UUID
	GenreIDs        *[]uuid.UUID
	Image           *Upload
}

func (r UpdateBookRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.PublicationYear, validation.When(r.PublicationYear != nil && *r.PublicationYear != "",
			validation.Match(yearPattern).Error("year must be a number"),
		)),
	))
}

// CreateNameRequest creates an author or a genre
type CreateNameRequest struct {
	Name string `json:"name"`
}

func (r CreateNameRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("name is required"), validation.Length(1, 255)),
	))
}
