package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// Repository implements exhibition.Repository using in-memory storage.
// Transactions are serialised: each one works on a copy of the state that
// replaces the committed state only when the callback succeeds.
type Repository struct {
	mu    sync.Mutex
	state state
}

type state struct {
	exhibitions map[uuid.UUID]exhibition.Exhibition
	sections    map[uuid.UUID]exhibition.Section
	blocks      map[uuid.UUID]exhibition.ContentBlock
	books       map[uuid.UUID]exhibition.Book
	authors     map[uuid.UUID]exhibition.Author
	genres      map[uuid.UUID]exhibition.Genre
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{state: newState()}
}

func newState() state {
	return state{
		exhibitions: make(map[uuid.UUID]exhibition.Exhibition),
		sections:    make(map[uuid.UUID]exhibition.Section),
		blocks:      make(map[uuid.UUID]exhibition.ContentBlock),
		books:       make(map[uuid.UUID]exhibition.Book),
		authors:     make(map[uuid.UUID]exhibition.Author),
		genres:      make(map[uuid.UUID]exhibition.Genre),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.exhibitions {
		c.exhibitions[k] = cloneExhibition(v)
	}
	for k, v := range s.sections {
		c.sections[k] = v
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.books {
		c.books[k] = cloneBook(v)
	}
	for k, v := range s.authors {
		c.authors[k] = v
	}
	for k, v := range s.genres {
		c.genres[k] = v
	}
	return c
}

// WithTx runs fn against a private copy of the state and commits it when fn
// returns nil. A context cancelled before commit rolls back.
func (r *Repository) WithTx(ctx context.Context, fn func(tx exhibition.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: begin: %w", exhibition.ErrTransactionFailure, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := &tx{state: r.state.clone()}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: commit: %w", exhibition.ErrTransactionFailure, err)
	}
	r.state = t.state
	return nil
}

type tx struct {
	state state
}

// Ordering

func (t *tx) MaxOrder(ctx context.Context, scope exhibition.OrderScope) (int, error) {
	max := 0
	for _, order := range t.scopeOrders(scope, uuid.Nil) {
		if order > max {
			max = order
		}
	}
	return max, nil
}

func (t *tx) OrderTaken(ctx context.Context, scope exhibition.OrderScope, order int, exclude uuid.UUID) (bool, error) {
	for _, o := range t.scopeOrders(scope, exclude) {
		if o == order {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) scopeOrders(scope exhibition.OrderScope, exclude uuid.UUID) []int {
	var orders []int
	switch scope.Kind {
	case exhibition.ScopeExhibitionSections:
		for id, s := range t.state.sections {
			if s.ExhibitionID == scope.ParentID && id != exclude {
				orders = append(orders, s.Order)
			}
		}
	case exhibition.ScopeSectionBlocks:
		for id, b := range t.state.blocks {
			if b.SectionID == scope.ParentID && id != exclude {
				orders = append(orders, b.Order)
			}
		}
	}
	return orders
}

// Exhibition operations

func (t *tx) CreateExhibition(ctx context.Context, e *exhibition.Exhibition) error {
	if exists, _ := t.SlugExists(ctx, e.Slug, uuid.Nil); exists {
		return fmt.Errorf("%w: %s", exhibition.ErrDuplicateSlug, e.Slug)
	}
	t.state.exhibitions[e.ID] = cloneExhibition(*e)
	return nil
}

func (t *tx) GetExhibition(ctx context.Context, id uuid.UUID) (*exhibition.Exhibition, error) {
	e, ok := t.state.exhibitions[id]
	if !ok {
		return nil, exhibition.ErrExhibitionNotFound
	}
	c := cloneExhibition(e)
	return &c, nil
}

func (t *tx) GetExhibitionBySlug(ctx context.Context, slug string) (*exhibition.Exhibition, error) {
	for _, e := range t.state.exhibitions {
		if e.Slug == slug {
			c := cloneExhibition(e)
			return &c, nil
		}
	}
	return nil, exhibition.ErrExhibitionNotFound
}

func (t *tx) UpdateExhibition(ctx context.Context, e *exhibition.Exhibition) error {
	if _, ok := t.state.exhibitions[e.ID]; !ok {
		return exhibition.ErrExhibitionNotFound
	}
	if exists, _ := t.SlugExists(ctx, e.Slug, e.ID); exists {
		return fmt.Errorf("%w: %s", exhibition.ErrDuplicateSlug, e.Slug)
	}
	t.state.exhibitions[e.ID] = cloneExhibition(*e)
	return nil
}

func (t *tx) DeleteExhibition(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.exhibitions[id]; !ok {
		return exhibition.ErrExhibitionNotFound
	}
	for _, s := range t.state.sections {
		if s.ExhibitionID == id {
			return fmt.Errorf("%w: exhibition %s still has sections", exhibition.ErrInvalidReference, id)
		}
	}
	delete(t.state.exhibitions, id)
	return nil
}

func (t *tx) ListExhibitions(ctx context.Context, filter exhibition.ExhibitionFilter) ([]*exhibition.Exhibition, int, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	matched := make([]*exhibition.Exhibition, 0)
	for _, e := range t.state.exhibitions {
		if filter.Published != nil && e.Published != *filter.Published {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
			continue
		}
		c := cloneExhibition(e)
		matched = append(matched, &c)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func (t *tx) SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	for id, e := range t.state.exhibitions {
		if e.Slug == slug && id != exclude {
			return true, nil
		}
	}
	return false, nil
}

// Section operations

func (t *tx) CreateSection(ctx context.Context, s *exhibition.Section) error {
	if _, ok := t.state.exhibitions[s.ExhibitionID]; !ok {
		return fmt.Errorf("%w: exhibition %s", exhibition.ErrInvalidReference, s.ExhibitionID)
	}
	if taken, _ := t.OrderTaken(ctx, exhibition.SectionScope(s.ExhibitionID), s.Order, s.ID); taken {
		return fmt.Errorf("%w: %d", exhibition.ErrOrderConflict, s.Order)
	}
	t.state.sections[s.ID] = *s
	return nil
}

func (t *tx) GetSection(ctx context.Context, id uuid.UUID) (*exhibition.Section, error) {
	s, ok := t.state.sections[id]
	if !ok {
		return nil, exhibition.ErrSectionNotFound
	}
	return &s, nil
}

func (t *tx) UpdateSection(ctx context.Context, s *exhibition.Section) error {
	current, ok := t.state.sections[s.ID]
	if !ok {
		return exhibition.ErrSectionNotFound
	}
	if current.ExhibitionID != s.ExhibitionID {
		return fmt.Errorf("%w: section cannot move between exhibitions", exhibition.ErrInvalidReference)
	}
	if taken, _ := t.OrderTaken(ctx, exhibition.SectionScope(s.ExhibitionID), s.Order, s.ID); taken {
		return fmt.Errorf("%w: %d", exhibition.ErrOrderConflict, s.Order)
	}
	t.state.sections[s.ID] = *s
	return nil
}

func (t *tx) DeleteSection(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.sections[id]; !ok {
		return exhibition.ErrSectionNotFound
	}
	for _, b := range t.state.blocks {
		if b.SectionID == id {
			return fmt.Errorf("%w: section %s still has content blocks", exhibition.ErrInvalidReference, id)
		}
	}
	delete(t.state.sections, id)
	return nil
}

func (t *tx) ListSections(ctx context.Context, exhibitionID uuid.UUID) ([]*exhibition.Section, error) {
	sections := make([]*exhibition.Section, 0)
	for _, s := range t.state.sections {
		if s.ExhibitionID == exhibitionID {
			c := s
			sections = append(sections, &c)
		}
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].Order != sections[j].Order {
			return sections[i].Order < sections[j].Order
		}
		return sections[i].CreatedAt.Before(sections[j].CreatedAt)
	})
	return sections, nil
}

// Content block operations

func (t *tx) CreateContentBlock(ctx context.Context, b *exhibition.ContentBlock) error {
	if _, ok := t.state.sections[b.SectionID]; !ok {
		return fmt.Errorf("%w: section %s", exhibition.ErrInvalidReference, b.SectionID)
	}
	if err := t.checkBlock(ctx, b); err != nil {
		return err
	}
	t.state.blocks[b.ID] = *b
	return nil
}

func (t *tx) checkBlock(ctx context.Context, b *exhibition.ContentBlock) error {
	blockType, text, bookID := b.Columns()
	if err := exhibition.ValidateBlock(blockType, text, bookID); err != nil {
		return err
	}
	if bookID != nil {
		if _, ok := t.state.books[*bookID]; !ok {
			return fmt.Errorf("%w: book %s", exhibition.ErrInvalidReference, *bookID)
		}
	}
	if taken, _ := t.OrderTaken(ctx, exhibition.BlockScope(b.SectionID), b.Order, b.ID); taken {
		return fmt.Errorf("%w: %d", exhibition.ErrOrderConflict, b.Order)
	}
	return nil
}

func (t *tx) GetContentBlock(ctx context.Context, id uuid.UUID) (*exhibition.ContentBlock, error) {
	b, ok := t.state.blocks[id]
	if !ok {
		return nil, exhibition.ErrContentBlockNotFound
	}
	return &b, nil
}

func (t *tx) UpdateContentBlock(ctx context.Context, b *exhibition.ContentBlock) error {
	current, ok := t.state.blocks[b.ID]
	if !ok {
		return exhibition.ErrContentBlockNotFound
	}
	if current.SectionID != b.SectionID {
		return fmt.Errorf("%w: block cannot move between sections", exhibition.ErrInvalidReference)
	}
	if err := t.checkBlock(ctx, b); err != nil {
		return err
	}
	t.state.blocks[b.ID] = *b
	return nil
}

func (t *tx) DeleteContentBlock(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.blocks[id]; !ok {
		return exhibition.ErrContentBlockNotFound
	}
	delete(t.state.blocks, id)
	return nil
}

func (t *tx) ListContentBlocks(ctx context.Context, sectionID uuid.UUID) ([]*exhibition.ContentBlock, error) {
	return t.listBlocks(func(b exhibition.ContentBlock) bool { return b.SectionID == sectionID }), nil
}

func (t *tx) ListContentBlocksByBook(ctx context.Context, bookID uuid.UUID) ([]*exhibition.ContentBlock, error) {
	return t.listBlocks(func(b exhibition.ContentBlock) bool {
		id, ok := b.BookID()
		return ok && id == bookID
	}), nil
}

func (t *tx) listBlocks(match func(exhibition.ContentBlock) bool) []*exhibition.ContentBlock {
	blocks := make([]*exhibition.ContentBlock, 0)
	for _, b := range t.state.blocks {
		if match(b) {
			c := b
			blocks = append(blocks, &c)
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].SectionID != blocks[j].SectionID {
			return blocks[i].SectionID.String() < blocks[j].SectionID.String()
		}
		if blocks[i].Order != blocks[j].Order {
			return blocks[i].Order < blocks[j].Order
		}
		return blocks[i].CreatedAt.Before(blocks[j].CreatedAt)
	})
	return blocks
}

// Book operations

func (t *tx) CreateBook(ctx context.Context, b *exhibition.Book) error {
	if err := t.checkBookLinks(b); err != nil {
		return err
	}
	t.state.books[b.ID] = cloneBook(*b)
	return nil
}

func (t *tx) checkBookLinks(b *exhibition.Book) error {
	for _, id := range b.AuthorIDs {
		if _, ok := t.state.authors[id]; !ok {
			return fmt.Errorf("%w: author %s", exhibition.ErrInvalidReference, id)
		}
	}
	for _, id := range b.GenreIDs {
		if _, ok := t.state.genres[id]; !ok {
			return fmt.Errorf("%w: genre %s", exhibition.ErrInvalidReference, id)
		}
	}
	return nil
}

func (t *tx) GetBook(ctx context.Context, id uuid.UUID) (*exhibition.Book, error) {
	b, ok := t.state.books[id]
	if !ok {
		return nil, exhibition.ErrBookNotFound
	}
	c := cloneBook(b)
	return &c, nil
}

func (t *tx) UpdateBook(ctx context.Context, b *exhibition.Book) error {
	if _, ok := t.state.books[b.ID]; !ok {
		return exhibition.ErrBookNotFound
	}
	if err := t.checkBookLinks(b); err != nil {
		return err
	}
	t.state.books[b.ID] = cloneBook(*b)
	return nil
}

func (t *tx) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.books[id]; !ok {
		return exhibition.ErrBookNotFound
	}
	for _, b := range t.state.blocks {
		if bookID, ok := b.BookID(); ok && bookID == id {
			return fmt.Errorf("%w: book %s is still shown by content blocks", exhibition.ErrInvalidReference, id)
		}
	}
	delete(t.state.books, id)
	return nil
}

func (t *tx) ListBooks(ctx context.Context, filter exhibition.BookFilter) ([]*exhibition.Book, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	books := make([]*exhibition.Book, 0)
	for _, b := range t.state.books {
		if search != "" && !strings.Contains(strings.ToLower(b.Title), search) {
			continue
		}
		if len(filter.AuthorIDs) > 0 && !intersects(b.AuthorIDs, filter.AuthorIDs) {
			continue
		}
		if len(filter.GenreIDs) > 0 && !intersects(b.GenreIDs, filter.GenreIDs) {
			continue
		}
		c := cloneBook(b)
		books = append(books, &c)
	}

	sort.Slice(books, func(i, j int) bool {
		switch filter.Sort {
		case exhibition.BookSortTitleDesc:
			return strings.ToLower(books[i].Title) > strings.ToLower(books[j].Title)
		case exhibition.BookSortNewest:
			return books[i].CreatedAt.After(books[j].CreatedAt)
		default:
			return strings.ToLower(books[i].Title) < strings.ToLower(books[j].Title)
		}
	})
	return books, nil
}

// Author operations

func (t *tx) CreateAuthor(ctx context.Context, a *exhibition.Author) error {
	for _, existing := range t.state.authors {
		if existing.Name == a.Name {
			return fmt.Errorf("%w: author %q", exhibition.ErrDuplicateName, a.Name)
		}
	}
	t.state.authors[a.ID] = *a
	return nil
}

func (t *tx) GetAuthor(ctx context.Context, id uuid.UUID) (*exhibition.Author, error) {
	a, ok := t.state.authors[id]
	if !ok {
		return nil, exhibition.ErrAuthorNotFound
	}
	return &a, nil
}

// DeleteAuthor removes the author and its association rows
func (t *tx) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.authors[id]; !ok {
		return exhibition.ErrAuthorNotFound
	}
	delete(t.state.authors, id)
	for bookID, b := range t.state.books {
		b.AuthorIDs = without(b.AuthorIDs, id)
		t.state.books[bookID] = b
	}
	return nil
}

func (t *tx) ListAuthors(ctx context.Context, search string) ([]*exhibition.Author, error) {
	search = strings.ToLower(strings.TrimSpace(search))
	authors := make([]*exhibition.Author, 0)
	for _, a := range t.state.authors {
		if search == "" || strings.Contains(strings.ToLower(a.Name), search) {
			c := a
			authors = append(authors, &c)
		}
	}
	sort.Slice(authors, func(i, j int) bool { return authors[i].Name < authors[j].Name })
	return authors, nil
}

// Genre operations

func (t *tx) CreateGenre(ctx context.Context, g *exhibition.Genre) error {
	for _, existing := range t.state.genres {
		if existing.Name == g.Name {
			return fmt.Errorf("%w: genre %q", exhibition.ErrDuplicateName, g.Name)
		}
	}
	t.state.genres[g.ID] = *g
	return nil
}

func (t *tx) GetGenre(ctx context.Context, id uuid.UUID) (*exhibition.Genre, error) {
	g, ok := t.state.genres[id]
	if !ok {
		return nil, exhibition.ErrGenreNotFound
	}
	return &g, nil
}

// DeleteGenre removes the genre and its association rows
func (t *tx) DeleteGenre(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.genres[id]; !ok {
		return exhibition.ErrGenreNotFound
	}
	delete(t.state.genres, id)
	for bookID, b := range t.state.books {
		b.GenreIDs = without(b.GenreIDs, id)
		t.state.books[bookID] = b
	}
	return nil
}

func (t *tx) ListGenres(ctx context.Context, search string) ([]*exhibition.Genre, error) {
	search = strings.ToLower(strings.TrimSpace(search))
	genres := make([]*exhibition.Genre, 0)
	for _, g := range t.state.genres {
		if search == "" || strings.Contains(strings.ToLower(g.Name), search) {
			c := g
			genres = append(genres, &c)
		}
	}
	sort.Slice(genres, func(i, j int) bool { return genres[i].Name < genres[j].Name })
	return genres, nil
}

// helpers

func cloneExhibition(e exhibition.Exhibition) exhibition.Exhibition {
	if e.PublishedAt != nil {
		t := *e.PublishedAt
		e.PublishedAt = &t
	}
	return e
}

func cloneBook(b exhibition.Book) exhibition.Book {
	b.AuthorIDs = append([]uuid.UUID{}, b.AuthorIDs...)
	b.GenreIDs = append([]uuid.UUID{}, b.GenreIDs...)
	return b
}

func intersects(have, want []uuid.UUID) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func without(ids []uuid.UUID, drop uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
