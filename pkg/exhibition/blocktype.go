package exhibition

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BlockPatch is a partial update of a content block. Nil fields are left as they are.
type BlockPatch struct {
	Type   *BlockType `json:"content_type,omitempty"`
	Text   *string    `json:"text_content,omitempty"`
	BookID *uuid.UUID `json:"book_id,omitempty"`
	Order  *int       `json:"order,omitempty"`
}

// ValidateBlock checks the text/book exclusivity rule on the column form of a block.
func ValidateBlock(t BlockType, text *string, bookID *uuid.UUID) error {
	hasText := text != nil && strings.TrimSpace(*text) != ""
	hasBook := bookID != nil && *bookID != uuid.Nil

	switch t {
	case BlockTypeText:
		if !hasText || bookID != nil {
			return ErrTextRequiresPayload
		}
		return nil
	case BlockTypeBook:
		if !hasBook || text != nil {
			return ErrBookRequiresReference
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown content type %q", ErrInvariantViolation, t)
	}
}

// InferBlockType picks the type implied by the supplied fields: a book
// reference makes a book block, anything else a text block.
func InferBlockType(text *string, bookID *uuid.UUID) BlockType {
	if bookID != nil {
		return BlockTypeBook
	}
	return BlockTypeText
}

// NewBlockPayload validates the column form and builds the matching variant.
func NewBlockPayload(t BlockType, text *string, bookID *uuid.UUID) (BlockPayload, error) {
	if err := ValidateBlock(t, text, bookID); err != nil {
		return nil, err
	}
	if t == BlockTypeBook {
		return BookPayload{BookID: *bookID}, nil
	}
	return TextPayload{Text: *text}, nil
}

// NewContentBlockFromColumns rebuilds a block from stored columns, re-checking the rule.
func NewContentBlockFromColumns(id, sectionID uuid.UUID, order int, t BlockType, text *string, bookID *uuid.UUID) (*ContentBlock, error) {
	payload, err := NewBlockPayload(t, text, bookID)
	if err != nil {
		return nil, fmt.Errorf("content block %s: %w", id, err)
	}
	return &ContentBlock{ID: id, SectionID: sectionID, Order: order, Payload: payload}, nil
}

// ApplyBlockPatch computes the payload that results from applying patch to
// current. A type change clears the field of the other variant before the
// patch's own fields are applied; the full resulting state is then validated.
func ApplyBlockPatch(current BlockPayload, patch BlockPatch) (BlockPayload, error) {
	var (
		t      BlockType
		text   *string
		bookID *uuid.UUID
	)
	switch p := current.(type) {
	case TextPayload:
		t = BlockTypeText
		s := p.Text
		text = &s
	case BookPayload:
		t = BlockTypeBook
		id := p.BookID
		bookID = &id
	}

	if patch.Type != nil && *patch.Type != t {
		t = *patch.Type
		switch t {
		case BlockTypeText:
			bookID = nil
		case BlockTypeBook:
			text = nil
		}
	}
	if patch.Text != nil {
		s := *patch.Text
		text = &s
	}
	if patch.BookID != nil {
		id := *patch.BookID
		bookID = &id
	}

	return NewBlockPayload(t, text, bookID)
}
