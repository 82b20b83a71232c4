package exhibition_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

func strPtr(s string) *string { return &s }

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

func typePtr(t exhibition.BlockType) *exhibition.BlockType { return &t }

func TestValidateBlock(t *testing.T) {
	book := uuid.New()

	tests := []struct {
		name    string
		typ     exhibition.BlockType
		text    *string
		bookID  *uuid.UUID
		wantErr error
	}{
		{"text ok", exhibition.BlockTypeText, strPtr("hello"), nil, nil},
		{"text missing", exhibition.BlockTypeText, nil, nil, exhibition.ErrTextRequiresPayload},
		{"text blank", exhibition.BlockTypeText, strPtr("   \n"), nil, exhibition.ErrTextRequiresPayload},
		{"text with book", exhibition.BlockTypeText, strPtr("hello"), idPtr(book), exhibition.ErrTextRequiresPayload},
		{"book ok", exhibition.BlockTypeBook, nil, idPtr(book), nil},
		{"book missing", exhibition.BlockTypeBook, nil, nil, exhibition.ErrBookRequiresReference},
		{"book nil uuid", exhibition.BlockTypeBook, nil, idPtr(uuid.Nil), exhibition.ErrBookRequiresReference},
		{"book with text", exhibition.BlockTypeBook, strPtr("note"), idPtr(book), exhibition.ErrBookRequiresReference},
		{"book with empty text", exhibition.BlockTypeBook, strPtr(""), idPtr(book), exhibition.ErrBookRequiresReference},
		{"unknown type", exhibition.BlockType("video"), strPtr("x"), nil, exhibition.ErrInvariantViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := exhibition.ValidateBlock(tt.typ, tt.text, tt.bookID)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, exhibition.ErrInvariantViolation)
		})
	}
}

func TestInferBlockType(t *testing.T) {
	assert.Equal(t, exhibition.BlockTypeText, exhibition.InferBlockType(strPtr("x"), nil))
	assert.Equal(t, exhibition.BlockTypeText, exhibition.InferBlockType(nil, nil))
	assert.Equal(t, exhibition.BlockTypeBook, exhibition.InferBlockType(nil, idPtr(uuid.New())))
	// both supplied: inferred as book, then rejected by the rule
	assert.Equal(t, exhibition.BlockTypeBook, exhibition.InferBlockType(strPtr("x"), idPtr(uuid.New())))
}

func TestNewContentBlockFromColumns(t *testing.T) {
	id, section, book := uuid.New(), uuid.New(), uuid.New()

	block, err := exhibition.NewContentBlockFromColumns(id, section, 3, exhibition.BlockTypeBook, nil, &book)
	require.NoError(t, err)
	assert.Equal(t, exhibition.BlockTypeBook, block.Type())
	got, ok := block.BookID()
	assert.True(t, ok)
	assert.Equal(t, book, got)
	_, ok = block.Text()
	assert.False(t, ok)

	_, err = exhibition.NewContentBlockFromColumns(id, section, 3, exhibition.BlockTypeText, strPtr("x"), &book)
	assert.ErrorIs(t, err, exhibition.ErrTextRequiresPayload)
	assert.Contains(t, err.Error(), id.String())
}

func TestApplyBlockPatch(t *testing.T) {
	book := uuid.New()
	textBlock := exhibition.TextPayload{Text: "intro"}
	bookBlock := exhibition.BookPayload{BookID: book}

	t.Run("edit text", func(t *testing.T) {
		p, err := exhibition.ApplyBlockPatch(textBlock, exhibition.BlockPatch{Text: strPtr("preface")})
		require.NoError(t, err)
		assert.Equal(t, exhibition.TextPayload{Text: "preface"}, p)
	})

	t.Run("order only keeps payload", func(t *testing.T) {
		p, err := exhibition.ApplyBlockPatch(bookBlock, exhibition.BlockPatch{Order: func() *int { n := 4; return &n }()})
		require.NoError(t, err)
		assert.Equal(t, bookBlock, p)
	})

	t.Run("text to book clears text", func(t *testing.T) {
		other := uuid.New()
		p, err := exhibition.ApplyBlockPatch(textBlock, exhibition.BlockPatch{
			Type:   typePtr(exhibition.BlockTypeBook),
			BookID: &other,
		})
		require.NoError(t, err)
		assert.Equal(t, exhibition.BookPayload{BookID: other}, p)
	})

	t.Run("book to text clears book", func(t *testing.T) {
		p, err := exhibition.ApplyBlockPatch(bookBlock, exhibition.BlockPatch{
			Type: typePtr(exhibition.BlockTypeText),
			Text: strPtr("replacement"),
		})
		require.NoError(t, err)
		assert.Equal(t, exhibition.TextPayload{Text: "replacement"}, p)
	})

	t.Run("type change without the new field", func(t *testing.T) {
		_, err := exhibition.ApplyBlockPatch(textBlock, exhibition.BlockPatch{Type: typePtr(exhibition.BlockTypeBook)})
		assert.ErrorIs(t, err, exhibition.ErrBookRequiresReference)
	})

	t.Run("adding text to a book block", func(t *testing.T) {
		_, err := exhibition.ApplyBlockPatch(bookBlock, exhibition.BlockPatch{Text: strPtr("caption")})
		assert.ErrorIs(t, err, exhibition.ErrBookRequiresReference)
	})
}
