package exhibition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
	"github.com/tendant/simple-exhibition/pkg/exhibition/repo/memory"
)

type testEnv struct {
	svc   exhibition.Service
	repo  *flakyRepo
	store *flakyStore
	sink  *recordingSink
	now   time.Time
}

func setupTestService(t *testing.T, opts ...exhibition.Option) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:  &flakyRepo{Repository: memory.New()},
		store: newFlakyStore(),
		sink:  newRecordingSink(),
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := exhibition.New(append([]exhibition.Option{
		exhibition.WithRepository(env.repo),
		exhibition.WithBlobStore(env.store),
		exhibition.WithEventSink(env.sink),
		exhibition.WithLogger(discardLogger()),
		exhibition.WithClock(func() time.Time { return env.now }),
	}, opts...)...)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func (env *testEnv) exhibition(t *testing.T, title string) *exhibition.Exhibition {
	t.Helper()
	ex, err := env.svc.CreateExhibition(context.Background(), exhibition.CreateExhibitionRequest{Title: title})
	require.NoError(t, err)
	return ex
}

func (env *testEnv) section(t *testing.T, exhibitionID uuid.UUID, title string) *exhibition.Section {
	t.Helper()
	sec, err := env.svc.CreateSection(context.Background(), exhibitionID, exhibition.CreateSectionRequest{Title: title})
	require.NoError(t, err)
	return sec
}

func (env *testEnv) book(t *testing.T, title string) *exhibition.Book {
	t.Helper()
	b, err := env.svc.CreateBook(context.Background(), exhibition.CreateBookRequest{Title: title})
	require.NoError(t, err)
	return b
}

func (env *testEnv) textBlock(t *testing.T, sectionID uuid.UUID, text string) *exhibition.ContentBlock {
	t.Helper()
	b, err := env.svc.CreateContentBlock(context.Background(), sectionID, exhibition.CreateContentBlockRequest{Text: &text})
	require.NoError(t, err)
	return b
}

func (env *testEnv) bookBlock(t *testing.T, sectionID, bookID uuid.UUID) *exhibition.ContentBlock {
	t.Helper()
	b, err := env.svc.CreateContentBlock(context.Background(), sectionID, exhibition.CreateContentBlockRequest{BookID: &bookID})
	require.NoError(t, err)
	return b
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := exhibition.New(exhibition.WithBlobStore(newFlakyStore()))
	assert.Error(t, err)

	_, err = exhibition.New(exhibition.WithRepository(memory.New()))
	assert.Error(t, err)
}

func TestService_ExhibitionLifecycle(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	ex, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{
		Title:       "Old Maps",
		Description: "Cartography",
		Published:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "old-maps", ex.Slug)
	require.NotNil(t, ex.PublishedAt)
	assert.Equal(t, env.now, *ex.PublishedAt)
	assert.Equal(t, []uuid.UUID{ex.ID}, env.sink.created)

	draft := env.exhibition(t, "Drafts")
	assert.False(t, draft.Published)
	assert.Nil(t, draft.PublishedAt)

	t.Run("slug lookup", func(t *testing.T) {
		got, err := env.svc.GetExhibitionBySlug(ctx, "old-maps")
		require.NoError(t, err)
		assert.Equal(t, ex.ID, got.ID)

		_, err = env.svc.GetExhibitionBySlug(ctx, "missing")
		assert.ErrorIs(t, err, exhibition.ErrExhibitionNotFound)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		_, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: "OLD maps!"})
		assert.ErrorIs(t, err, exhibition.ErrDuplicateSlug)
	})

	t.Run("duplicate slug with image writes no blob", func(t *testing.T) {
		_, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: "Old Maps", Image: ptrUpload(pngUpload(t))})
		assert.ErrorIs(t, err, exhibition.ErrDuplicateSlug)
		assert.Empty(t, env.store.Keys())
	})

	t.Run("blank title", func(t *testing.T) {
		_, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: ""})
		assert.ErrorIs(t, err, exhibition.ErrInvalidRequest)
	})

	t.Run("retitle re-derives slug", func(t *testing.T) {
		title := "New Maps"
		updated, err := env.svc.UpdateExhibition(ctx, ex.ID, exhibition.UpdateExhibitionRequest{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "new-maps", updated.Slug)
		assert.Equal(t, "Cartography", updated.Description)
		assert.Contains(t, env.sink.updated, ex.ID)

		taken := "Drafts"
		_, err = env.svc.UpdateExhibition(ctx, ex.ID, exhibition.UpdateExhibitionRequest{Title: &taken})
		assert.ErrorIs(t, err, exhibition.ErrDuplicateSlug)
	})

	t.Run("publish toggles timestamp", func(t *testing.T) {
		env.now = env.now.Add(time.Hour)
		yes, no := true, false

		published, err := env.svc.UpdateExhibition(ctx, draft.ID, exhibition.UpdateExhibitionRequest{Published: &yes})
		require.NoError(t, err)
		require.NotNil(t, published.PublishedAt)
		assert.Equal(t, env.now, *published.PublishedAt)

		env.now = env.now.Add(time.Hour)
		again, err := env.svc.UpdateExhibition(ctx, draft.ID, exhibition.UpdateExhibitionRequest{Published: &yes})
		require.NoError(t, err)
		assert.Equal(t, *published.PublishedAt, *again.PublishedAt, "republishing keeps the first timestamp")

		hidden, err := env.svc.UpdateExhibition(ctx, draft.ID, exhibition.UpdateExhibitionRequest{Published: &no})
		require.NoError(t, err)
		assert.False(t, hidden.Published)
		assert.Nil(t, hidden.PublishedAt)
	})

	t.Run("list filters", func(t *testing.T) {
		yes := true
		page, err := env.svc.ListExhibitions(ctx, exhibition.ExhibitionFilter{Published: &yes})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)

		page, err = env.svc.ListExhibitions(ctx, exhibition.ExhibitionFilter{Search: "draft"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, draft.ID, page.Items[0].ID)

		page, err = env.svc.ListExhibitions(ctx, exhibition.ExhibitionFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Items, 1)

		_, err = env.svc.ListExhibitions(ctx, exhibition.ExhibitionFilter{Limit: -1})
		assert.ErrorIs(t, err, exhibition.ErrInvalidRequest)
	})
}

func ptrUpload(u exhibition.Upload) *exhibition.Upload { return &u }

func TestService_SectionOrdering(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	ex := env.exhibition(t, "Ordering")
	at := func(n int) *int { return &n }

	first := env.section(t, ex.ID, "one")
	second := env.section(t, ex.ID, "two")
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, 2, second.Order)

	gap, err := env.svc.CreateSection(ctx, ex.ID, exhibition.CreateSectionRequest{Title: "ten", Order: at(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, gap.Order)
	assert.Equal(t, 11, env.section(t, ex.ID, "after gap").Order)

	_, err = env.svc.CreateSection(ctx, ex.ID, exhibition.CreateSectionRequest{Title: "clash", Order: at(2)})
	assert.ErrorIs(t, err, exhibition.ErrOrderConflict)

	_, err = env.svc.CreateSection(ctx, ex.ID, exhibition.CreateSectionRequest{Title: "zero", Order: at(0)})
	assert.ErrorIs(t, err, exhibition.ErrInvalidRequest)

	_, err = env.svc.CreateSection(ctx, uuid.New(), exhibition.CreateSectionRequest{Title: "orphan"})
	assert.ErrorIs(t, err, exhibition.ErrExhibitionNotFound)

	t.Run("orders are scoped per exhibition", func(t *testing.T) {
		other := env.exhibition(t, "Other")
		assert.Equal(t, 1, env.section(t, other.ID, "first").Order)
	})

	t.Run("move", func(t *testing.T) {
		_, err := env.svc.UpdateSection(ctx, ex.ID, first.ID, exhibition.UpdateSectionRequest{Order: at(2)})
		assert.ErrorIs(t, err, exhibition.ErrOrderConflict)

		same, err := env.svc.UpdateSection(ctx, ex.ID, first.ID, exhibition.UpdateSectionRequest{Order: at(1)})
		require.NoError(t, err)
		assert.Equal(t, 1, same.Order)

		moved, err := env.svc.UpdateSection(ctx, ex.ID, first.ID, exhibition.UpdateSectionRequest{Order: at(20)})
		require.NoError(t, err)
		assert.Equal(t, 20, moved.Order)

		sections, err := env.svc.ListSections(ctx, ex.ID)
		require.NoError(t, err)
		require.Len(t, sections, 4)
		assert.Equal(t, first.ID, sections[3].ID)
	})

	t.Run("section must belong to exhibition", func(t *testing.T) {
		other := env.exhibition(t, "Elsewhere")
		_, err := env.svc.GetSection(ctx, other.ID, second.ID)
		assert.ErrorIs(t, err, exhibition.ErrSectionNotFound)

		err = env.svc.DeleteSection(ctx, other.ID, second.ID)
		assert.ErrorIs(t, err, exhibition.ErrSectionNotFound)
	})
}

func TestService_ContentBlocks(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	ex := env.exhibition(t, "Blocks")
	sec := env.section(t, ex.ID, "main")
	book := env.book(t, "Dead Souls")

	text := env.textBlock(t, sec.ID, "intro")
	assert.Equal(t, exhibition.BlockTypeText, text.Type())
	assert.Equal(t, 1, text.Order)

	bookBlock := env.bookBlock(t, sec.ID, book.ID)
	assert.Equal(t, exhibition.BlockTypeBook, bookBlock.Type())
	assert.Equal(t, 2, bookBlock.Order)

	t.Run("rule violations", func(t *testing.T) {
		blank := "  "
		_, err := env.svc.CreateContentBlock(ctx, sec.ID, exhibition.CreateContentBlockRequest{Text: &blank})
		assert.ErrorIs(t, err, exhibition.ErrTextRequiresPayload)

		caption := "caption"
		_, err = env.svc.CreateContentBlock(ctx, sec.ID, exhibition.CreateContentBlockRequest{
			Type: typePtr(exhibition.BlockTypeBook), Text: &caption, BookID: &book.ID,
		})
		assert.ErrorIs(t, err, exhibition.ErrBookRequiresReference)

		_, err = env.svc.CreateContentBlock(ctx, sec.ID, exhibition.CreateContentBlockRequest{
			Type: typePtr(exhibition.BlockTypeText), BookID: &book.ID,
		})
		assert.ErrorIs(t, err, exhibition.ErrTextRequiresPayload)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := env.svc.CreateContentBlock(ctx, sec.ID, exhibition.CreateContentBlockRequest{BookID: idPtr(uuid.New())})
		assert.ErrorIs(t, err, exhibition.ErrInvalidReference)
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := env.svc.CreateContentBlock(ctx, uuid.New(), exhibition.CreateContentBlockRequest{Text: strPtr("x")})
		assert.ErrorIs(t, err, exhibition.ErrSectionNotFound)
	})

	t.Run("explicit order conflict", func(t *testing.T) {
		one := 1
		_, err := env.svc.CreateContentBlock(ctx, sec.ID, exhibition.CreateContentBlockRequest{Text: strPtr("x"), Order: &one})
		assert.ErrorIs(t, err, exhibition.ErrOrderConflict)
	})

	t.Run("patch switches variant", func(t *testing.T) {
		updated, err := env.svc.UpdateContentBlock(ctx, sec.ID, text.ID, exhibition.BlockPatch{
			Type: typePtr(exhibition.BlockTypeBook), BookID: &book.ID,
		})
		require.NoError(t, err)
		_, hasText := updated.Text()
		assert.False(t, hasText)
		id, ok := updated.BookID()
		require.True(t, ok)
		assert.Equal(t, book.ID, id)

		_, err = env.svc.UpdateContentBlock(ctx, sec.ID, text.ID, exhibition.BlockPatch{Type: typePtr(exhibition.BlockTypeText)})
		assert.ErrorIs(t, err, exhibition.ErrTextRequiresPayload)

		_, err = env.svc.UpdateContentBlock(ctx, sec.ID, text.ID, exhibition.BlockPatch{BookID: idPtr(uuid.New())})
		assert.ErrorIs(t, err, exhibition.ErrInvalidReference)

		stored, err := env.svc.ListContentBlocks(ctx, sec.ID)
		require.NoError(t, err)
		assert.Equal(t, exhibition.BlockTypeBook, stored[0].Type(), "failed patches leave the block unchanged")
	})

	t.Run("get single block", func(t *testing.T) {
		got, err := env.svc.GetContentBlock(ctx, sec.ID, bookBlock.ID)
		require.NoError(t, err)
		assert.Equal(t, bookBlock.ID, got.ID)
		assert.Equal(t, 2, got.Order)
		id, ok := got.BookID()
		require.True(t, ok)
		assert.Equal(t, book.ID, id)

		_, err = env.svc.GetContentBlock(ctx, sec.ID, uuid.New())
		assert.ErrorIs(t, err, exhibition.ErrContentBlockNotFound)
	})

	t.Run("block must belong to section", func(t *testing.T) {
		other := env.section(t, ex.ID, "other")
		err := env.svc.DeleteContentBlock(ctx, other.ID, bookBlock.ID)
		assert.ErrorIs(t, err, exhibition.ErrContentBlockNotFound)

		_, err = env.svc.GetContentBlock(ctx, other.ID, bookBlock.ID)
		assert.ErrorIs(t, err, exhibition.ErrContentBlockNotFound)
	})

	t.Run("deleting a block keeps the book", func(t *testing.T) {
		require.NoError(t, env.svc.DeleteContentBlock(ctx, sec.ID, bookBlock.ID))
		_, err := env.svc.GetBook(ctx, book.ID)
		assert.NoError(t, err)
	})
}

func TestService_OrderConflictRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("auto allocated section retries", func(t *testing.T) {
		env := setupTestService(t)
		ex := env.exhibition(t, "Retry")

		env.repo.conflictNext(1)
		before := env.repo.transactions()
		sec, err := env.svc.CreateSection(ctx, ex.ID, exhibition.CreateSectionRequest{Title: "first"})
		require.NoError(t, err)
		assert.Equal(t, 1, sec.Order)
		assert.Equal(t, before+2, env.repo.transactions())
	})

	t.Run("auto allocated block retries", func(t *testing.T) {
		env := setupTestService(t)
		ex := env.exhibition(t, "Retry")
		sec := env.section(t, ex.ID, "main")
		env.textBlock(t, sec.ID, "intro")

		env.repo.conflictNext(2)
		before := env.repo.transactions()
		block, err := env.svc.CreateContentBlock(ctx, sec.ID, exhibition.CreateContentBlockRequest{Text: strPtr("more")})
		require.NoError(t, err)
		assert.Equal(t, 2, block.Order)
		assert.Equal(t, before+3, env.repo.transactions())
	})

	t.Run("gives up after configured attempts", func(t *testing.T) {
		env := setupTestService(t, exhibition.WithOrderRetries(2))
		ex := env.exhibition(t, "Retry")

		env.repo.conflictNext(2)
		before := env.repo.transactions()
		_, err := env.svc.CreateSection(ctx, ex.ID, exhibition.CreateSectionRequest{Title: "first"})
		assert.ErrorIs(t, err, exhibition.ErrOrderConflict)
		assert.Equal(t, before+2, env.repo.transactions())

		sections, err := env.svc.ListSections(ctx, ex.ID)
		require.NoError(t, err)
		assert.Empty(t, sections)
	})

	t.Run("explicit order is not retried", func(t *testing.T) {
		env := setupTestService(t)
		ex := env.exhibition(t, "Retry")
		sec := env.section(t, ex.ID, "main")
		five := 5

		env.repo.conflictNext(1)
		before := env.repo.transactions()
		_, err := env.svc.CreateSection(ctx, ex.ID, exhibition.CreateSectionRequest{Title: "fixed", Order: &five})
		assert.ErrorIs(t, err, exhibition.ErrOrderConflict)
		assert.Equal(t, before+1, env.repo.transactions())

		env.repo.conflictNext(1)
		before = env.repo.transactions()
		_, err = env.svc.CreateContentBlock(ctx, sec.ID, exhibition.CreateContentBlockRequest{Text: strPtr("x"), Order: &five})
		assert.ErrorIs(t, err, exhibition.ErrOrderConflict)
		assert.Equal(t, before+1, env.repo.transactions())

		again, err := env.svc.CreateSection(ctx, ex.ID, exhibition.CreateSectionRequest{Title: "fixed", Order: &five})
		require.NoError(t, err)
		assert.Equal(t, 5, again.Order)
	})
}

func TestService_UnlinkBook(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	sec := env.section(t, env.exhibition(t, "Unlink").ID, "s")
	book := env.book(t, "Oblomov")
	block := env.bookBlock(t, sec.ID, book.ID)
	text := env.textBlock(t, sec.ID, "words")

	err := env.svc.UnlinkBookFromBlock(ctx, block.ID, uuid.New())
	assert.ErrorIs(t, err, exhibition.ErrContentBlockNotFound)

	err = env.svc.UnlinkBookFromBlock(ctx, text.ID, book.ID)
	assert.ErrorIs(t, err, exhibition.ErrContentBlockNotFound)

	require.NoError(t, env.svc.UnlinkBookFromBlock(ctx, block.ID, book.ID))

	blocks, err := env.svc.ListContentBlocks(ctx, sec.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, text.ID, blocks[0].ID)

	_, err = env.svc.GetBook(ctx, book.ID)
	assert.NoError(t, err)
}

func TestService_DeleteExhibitionCascades(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	ex, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: "Cascade", Image: ptrUpload(pngUpload(t))})
	require.NoError(t, err)
	require.Len(t, env.store.Keys(), 1)

	book := env.book(t, "Kept")
	var sections []*exhibition.Section
	for _, title := range []string{"a", "b"} {
		sec := env.section(t, ex.ID, title)
		env.textBlock(t, sec.ID, "text")
		env.bookBlock(t, sec.ID, book.ID)
		sections = append(sections, sec)
	}

	tree, err := env.svc.GetExhibitionTree(ctx, ex.ID)
	require.NoError(t, err)
	require.Len(t, tree.Sections, 2)
	assert.Len(t, tree.Sections[0].Blocks, 2)

	require.NoError(t, env.svc.DeleteExhibition(ctx, ex.ID))
	assert.Equal(t, []uuid.UUID{ex.ID}, env.sink.deleted)
	assert.Empty(t, env.store.Keys(), "image is released after the rows are gone")

	_, err = env.svc.GetExhibition(ctx, ex.ID)
	assert.ErrorIs(t, err, exhibition.ErrExhibitionNotFound)
	for _, sec := range sections {
		_, err := env.svc.ListContentBlocks(ctx, sec.ID)
		assert.ErrorIs(t, err, exhibition.ErrSectionNotFound)
	}

	_, err = env.svc.GetBook(ctx, book.ID)
	assert.NoError(t, err, "books outlive the blocks that show them")

	err = env.svc.DeleteExhibition(ctx, ex.ID)
	assert.ErrorIs(t, err, exhibition.ErrExhibitionNotFound)
}

func TestService_DeleteBookRemovesBlocks(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	ex := env.exhibition(t, "Books")
	first := env.section(t, ex.ID, "first")
	second := env.section(t, ex.ID, "second")

	book, err := env.svc.CreateBook(ctx, exhibition.CreateBookRequest{Title: "Doomed", Image: ptrUpload(gifUpload(t))})
	require.NoError(t, err)
	survivor := env.book(t, "Survivor")

	env.bookBlock(t, first.ID, book.ID)
	env.bookBlock(t, second.ID, book.ID)
	keep := env.bookBlock(t, second.ID, survivor.ID)

	require.NoError(t, env.svc.DeleteBook(ctx, book.ID))
	assert.Equal(t, 2, env.sink.books[book.ID])
	assert.Empty(t, env.store.Keys())

	blocks, err := env.svc.ListContentBlocks(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	blocks, err = env.svc.ListContentBlocks(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, keep.ID, blocks[0].ID)

	_, err = env.svc.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, exhibition.ErrBookNotFound)
}

func TestService_ImageReplacement(t *testing.T) {
	ctx := context.Background()

	t.Run("replace deletes the old blob after commit", func(t *testing.T) {
		env := setupTestService(t)
		ex, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: "Img", Image: ptrUpload(pngUpload(t))})
		require.NoError(t, err)
		old := ex.Image

		updated, err := env.svc.UpdateExhibition(ctx, ex.ID, exhibition.UpdateExhibitionRequest{Image: ptrUpload(gifUpload(t))})
		require.NoError(t, err)
		assert.NotEqual(t, old, updated.Image)
		assert.Equal(t, []string{string(updated.Image)}, env.store.Keys())
	})

	t.Run("delete failure is not surfaced", func(t *testing.T) {
		env := setupTestService(t)
		ex, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: "Img", Image: ptrUpload(pngUpload(t))})
		require.NoError(t, err)

		env.store.failDelete = true
		updated, err := env.svc.UpdateExhibition(ctx, ex.ID, exhibition.UpdateExhibitionRequest{Image: ptrUpload(gifUpload(t))})
		require.NoError(t, err)
		assert.Equal(t, []exhibition.AssetRef{ex.Image}, env.sink.orphaned)

		got, err := env.svc.GetExhibition(ctx, ex.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.Image, got.Image)
	})

	t.Run("commit failure keeps the old blob", func(t *testing.T) {
		env := setupTestService(t)
		ex, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: "Img", Image: ptrUpload(pngUpload(t))})
		require.NoError(t, err)

		// the first transaction validates the update, the second commits it
		env.repo.failAfter(2)
		_, err = env.svc.UpdateExhibition(ctx, ex.ID, exhibition.UpdateExhibitionRequest{Image: ptrUpload(gifUpload(t))})
		assert.ErrorIs(t, err, exhibition.ErrTransactionFailure)
		assert.Equal(t, []string{string(ex.Image)}, env.store.Keys())

		got, err := env.svc.GetExhibition(ctx, ex.ID)
		require.NoError(t, err)
		assert.Equal(t, ex.Image, got.Image)
	})

	t.Run("storage failure leaves the row untouched", func(t *testing.T) {
		env := setupTestService(t)
		ex, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{Title: "Img", Image: ptrUpload(pngUpload(t))})
		require.NoError(t, err)

		env.store.failUpload = true
		_, err = env.svc.UpdateExhibition(ctx, ex.ID, exhibition.UpdateExhibitionRequest{Image: ptrUpload(gifUpload(t))})
		assert.ErrorIs(t, err, exhibition.ErrStorageIO)

		got, err := env.svc.GetExhibition(ctx, ex.ID)
		require.NoError(t, err)
		assert.Equal(t, ex.Image, got.Image)
	})

	t.Run("rejected upload creates nothing", func(t *testing.T) {
		env := setupTestService(t)
		_, err := env.svc.CreateExhibition(ctx, exhibition.CreateExhibitionRequest{
			Title: "Bad",
			Image: &exhibition.Upload{Data: []byte("not an image"), MimeType: "image/png"},
		})
		assert.ErrorIs(t, err, exhibition.ErrUnsupportedMediaType)

		page, err := env.svc.ListExhibitions(ctx, exhibition.ExhibitionFilter{})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, env.store.Keys())
	})

	t.Run("book image replace", func(t *testing.T) {
		env := setupTestService(t)
		book, err := env.svc.CreateBook(ctx, exhibition.CreateBookRequest{Title: "Cover", Image: ptrUpload(pngUpload(t))})
		require.NoError(t, err)

		updated, err := env.svc.UpdateBook(ctx, book.ID, exhibition.UpdateBookRequest{Image: ptrUpload(gifUpload(t))})
		require.NoError(t, err)
		assert.Equal(t, []string{string(updated.Image)}, env.store.Keys())

		rc, err := env.svc.OpenAsset(ctx, updated.Image)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	})
}

func TestService_Catalog(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	author, err := env.svc.CreateAuthor(ctx, exhibition.CreateNameRequest{Name: "Gogol"})
	require.NoError(t, err)
	genre, err := env.svc.CreateGenre(ctx, exhibition.CreateNameRequest{Name: "Satire"})
	require.NoError(t, err)

	_, err = env.svc.CreateAuthor(ctx, exhibition.CreateNameRequest{Name: "Gogol"})
	assert.ErrorIs(t, err, exhibition.ErrDuplicateName)

	book, err := env.svc.CreateBook(ctx, exhibition.CreateBookRequest{
		Title:           "The Nose",
		PublicationYear: "1836",
		AuthorIDs:       []uuid.UUID{author.ID, author.ID},
		GenreIDs:        []uuid.UUID{genre.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{author.ID}, book.AuthorIDs)
	env.book(t, "Anna Karenina")

	t.Run("references must exist", func(t *testing.T) {
		_, err := env.svc.CreateBook(ctx, exhibition.CreateBookRequest{Title: "x", AuthorIDs: []uuid.UUID{uuid.New()}})
		assert.ErrorIs(t, err, exhibition.ErrInvalidReference)

		missing := []uuid.UUID{uuid.New()}
		_, err = env.svc.UpdateBook(ctx, book.ID, exhibition.UpdateBookRequest{GenreIDs: &missing})
		assert.ErrorIs(t, err, exhibition.ErrInvalidReference)
	})

	t.Run("year format", func(t *testing.T) {
		_, err := env.svc.CreateBook(ctx, exhibition.CreateBookRequest{Title: "x", PublicationYear: "eighteen"})
		assert.ErrorIs(t, err, exhibition.ErrInvalidRequest)
	})

	t.Run("filters and sort", func(t *testing.T) {
		books, err := env.svc.ListBooks(ctx, exhibition.BookFilter{AuthorIDs: []uuid.UUID{author.ID}})
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, book.ID, books[0].ID)

		books, err = env.svc.ListBooks(ctx, exhibition.BookFilter{Sort: exhibition.BookSortTitleDesc})
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "The Nose", books[0].Title)

		_, err = env.svc.ListBooks(ctx, exhibition.BookFilter{Sort: "random"})
		assert.ErrorIs(t, err, exhibition.ErrInvalidRequest)
	})

	t.Run("deleting an author keeps its books", func(t *testing.T) {
		require.NoError(t, env.svc.DeleteAuthor(ctx, author.ID))
		got, err := env.svc.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Empty(t, got.AuthorIDs)
		assert.Equal(t, []uuid.UUID{genre.ID}, got.GenreIDs)

		err = env.svc.DeleteAuthor(ctx, author.ID)
		assert.ErrorIs(t, err, exhibition.ErrAuthorNotFound)
	})

	t.Run("search", func(t *testing.T) {
		genres, err := env.svc.ListGenres(ctx, "sat")
		require.NoError(t, err)
		assert.Len(t, genres, 1)

		require.NoError(t, env.svc.DeleteGenre(ctx, genre.ID))
		genres, err = env.svc.ListGenres(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, genres)
	})
}

func TestService_EventSinkErrorsDoNotFail(t *testing.T) {
	env := setupTestService(t)
	env.sink.err = errors.New("sink down")

	ex, err := env.svc.CreateExhibition(context.Background(), exhibition.CreateExhibitionRequest{Title: "Loud"})
	require.NoError(t, err)
	require.NoError(t, env.svc.DeleteExhibition(context.Background(), ex.ID))
	assert.Len(t, env.sink.deleted, 1)
}
