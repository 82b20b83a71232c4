package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxBeginner starts transactions. *pgxpool.Pool and *pgx.Conn satisfy it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements exhibition.Repository using PostgreSQL
type Repository struct {
	db TxBeginner
}

// New creates a new PostgreSQL repository
func New(db TxBeginner) *Repository {
	return &Repository{db: db}
}

// Migrate creates the tables and indexes when they are missing.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn in a database transaction. It commits when fn returns nil
// and rolls back on error or panic.
func (r *Repository) WithTx(ctx context.Context, fn func(tx exhibition.Tx) error) (err error) {
	pgTx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", exhibition.ErrTransactionFailure, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = pgTx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = pgTx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(&tx{db: pgTx}); err != nil {
		return err
	}

	if err = pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", exhibition.ErrTransactionFailure, handlePostgresError("commit", err))
	}
	return nil
}

type tx struct {
	db DBTX
}

// handlePostgresError maps driver errors onto the exhibition sentinels
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case "exhibitions_slug_key":
				return fmt.Errorf("%w: %s", exhibition.ErrDuplicateSlug, operation)
			case "sections_exhibition_id_order_key", "content_blocks_section_id_order_key":
				return fmt.Errorf("%w: %s", exhibition.ErrOrderConflict, operation)
			case "authors_name_key", "genres_name_key":
				return fmt.Errorf("%w: %s", exhibition.ErrDuplicateName, operation)
			}
			return fmt.Errorf("duplicate entry in %s: %w", operation, err)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s: %s", exhibition.ErrInvalidReference, operation, pgErr.ConstraintName)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s: %s", exhibition.ErrInvariantViolation, operation, pgErr.ConstraintName)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s: %w", exhibition.ErrTransactionFailure, operation, err)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required: %w", err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// notFound maps pgx.ErrNoRows to the given sentinel
func notFound(operation string, err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return handlePostgresError(operation, err)
}

// affected maps a zero-row write to the given sentinel
func affected(tag pgconn.CommandTag, sentinel error) error {
	if tag.RowsAffected() == 0 {
		return sentinel
	}
	return nil
}

// Ordering

func (t *tx) MaxOrder(ctx context.Context, scope exhibition.OrderScope) (int, error) {
	query, err := maxOrderQuery(scope)
	if err != nil {
		return 0, err
	}
	var max int
	if err := t.db.QueryRow(ctx, query, scope.ParentID).Scan(&max); err != nil {
		return 0, handlePostgresError("max order", err)
	}
	return max, nil
}

func (t *tx) OrderTaken(ctx context.Context, scope exhibition.OrderScope, order int, exclude uuid.UUID) (bool, error) {
	query, err := orderTakenQuery(scope)
	if err != nil {
		return false, err
	}
	var taken bool
	if err := t.db.QueryRow(ctx, query, scope.ParentID, order, exclude).Scan(&taken); err != nil {
		return false, handlePostgresError("order taken", err)
	}
	return taken, nil
}

func maxOrderQuery(scope exhibition.OrderScope) (string, error) {
	switch scope.Kind {
	case exhibition.ScopeExhibitionSections:
		return `SELECT COALESCE(MAX("order"), 0) FROM sections WHERE exhibition_id = $1`, nil
	case exhibition.ScopeSectionBlocks:
		return `SELECT COALESCE(MAX("order"), 0) FROM content_blocks WHERE section_id = $1`, nil
	}
	return "", fmt.Errorf("unknown order scope %q", scope.Kind)
}

func orderTakenQuery(scope exhibition.OrderScope) (string, error) {
	switch scope.Kind {
	case exhibition.ScopeExhibitionSections:
		return `SELECT EXISTS (SELECT 1 FROM sections WHERE exhibition_id = $1 AND "order" = $2 AND id <> $3)`, nil
	case exhibition.ScopeSectionBlocks:
		return `SELECT EXISTS (SELECT 1 FROM content_blocks WHERE section_id = $1 AND "order" = $2 AND id <> $3)`, nil
	}
	return "", fmt.Errorf("unknown order scope %q", scope.Kind)
}

// Exhibition operations

const exhibitionColumns = `id, title, slug, description, is_published, image, created_at, updated_at, published_at`

func scanExhibition(row pgx.Row) (*exhibition.Exhibition, error) {
	var (
		e     exhibition.Exhibition
		image *string
	)
	err := row.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &e.Published,
		&image, &e.CreatedAt, &e.UpdatedAt, &e.PublishedAt)
	if err != nil {
		return nil, err
	}
	e.Image = fromNullable(image)
	return &e, nil
}

func (t *tx) CreateExhibition(ctx context.Context, e *exhibition.Exhibition) error {
	query := `
		INSERT INTO exhibitions (` + exhibitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.db.Exec(ctx, query,
		e.ID, e.Title, e.Slug, e.Description, e.Published,
		nullable(e.Image), e.CreatedAt, e.UpdatedAt, e.PublishedAt)
	if err != nil {
		return handlePostgresError("create exhibition", err)
	}
	return nil
}

func (t *tx) GetExhibition(ctx context.Context, id uuid.UUID) (*exhibition.Exhibition, error) {
	query := `SELECT ` + exhibitionColumns + ` FROM exhibitions WHERE id = $1`
	e, err := scanExhibition(t.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound("get exhibition", err, exhibition.ErrExhibitionNotFound)
	}
	return e, nil
}

func (t *tx) GetExhibitionBySlug(ctx context.Context, slug string) (*exhibition.Exhibition, error) {
	query := `SELECT ` + exhibitionColumns + ` FROM exhibitions WHERE slug = $1`
	e, err := scanExhibition(t.db.QueryRow(ctx, query, slug))
	if err != nil {
		return nil, notFound("get exhibition by slug", err, exhibition.ErrExhibitionNotFound)
	}
	return e, nil
}

func (t *tx) UpdateExhibition(ctx context.Context, e *exhibition.Exhibition) error {
	query := `
		UPDATE exhibitions SET
			title = $2, slug = $3, description = $4, is_published = $5,
			image = $6, updated_at = $7, published_at = $8
		WHERE id = $1`

	tag, err := t.db.Exec(ctx, query,
		e.ID, e.Title, e.Slug, e.Description, e.Published,
		nullable(e.Image), e.UpdatedAt, e.PublishedAt)
	if err != nil {
		return handlePostgresError("update exhibition", err)
	}
	return affected(tag, exhibition.ErrExhibitionNotFound)
}

func (t *tx) DeleteExhibition(ctx context.Context, id uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM exhibitions WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete exhibition", err)
	}
	return affected(tag, exhibition.ErrExhibitionNotFound)
}

func (t *tx) ListExhibitions(ctx context.Context, filter exhibition.ExhibitionFilter) ([]*exhibition.Exhibition, int, error) {
	where := `
		WHERE ($1::boolean IS NULL OR is_published = $1)
		  AND ($2 = '' OR title ILIKE '%' || $2 || '%')`

	var total int
	if err := t.db.QueryRow(ctx, `SELECT COUNT(*) FROM exhibitions`+where,
		filter.Published, filter.Search).Scan(&total); err != nil {
		return nil, 0, handlePostgresError("count exhibitions", err)
	}

	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}
	query := `SELECT ` + exhibitionColumns + ` FROM exhibitions` + where + `
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`

	rows, err := t.db.Query(ctx, query, filter.Published, filter.Search, limit, filter.Offset)
	if err != nil {
		return nil, 0, handlePostgresError("list exhibitions", err)
	}
	defer rows.Close()

	exhibitions := make([]*exhibition.Exhibition, 0)
	for rows.Next() {
		e, err := scanExhibition(rows)
		if err != nil {
			return nil, 0, handlePostgresError("scan exhibition", err)
		}
		exhibitions = append(exhibitions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, handlePostgresError("list exhibitions", err)
	}
	return exhibitions, total, nil
}

func (t *tx) SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := t.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exhibitions WHERE slug = $1 AND id <> $2)`,
		slug, exclude).Scan(&exists)
	if err != nil {
		return false, handlePostgresError("slug exists", err)
	}
	return exists, nil
}

// Section operations

const sectionColumns = `id, exhibition_id, title, "order", created_at`

func scanSection(row pgx.Row) (*exhibition.Section, error) {
	var s exhibition.Section
	if err := row.Scan(&s.ID, &s.ExhibitionID, &s.Title, &s.Order, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *tx) CreateSection(ctx context.Context, s *exhibition.Section) error {
	query := `INSERT INTO sections (` + sectionColumns + `) VALUES ($1, $2, $3, $4, $5)`
	if _, err := t.db.Exec(ctx, query, s.ID, s.ExhibitionID, s.Title, s.Order, s.CreatedAt); err != nil {
		return handlePostgresError("create section", err)
	}
	return nil
}

func (t *tx) GetSection(ctx context.Context, id uuid.UUID) (*exhibition.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1`
	s, err := scanSection(t.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound("get section", err, exhibition.ErrSectionNotFound)
	}
	return s, nil
}

// UpdateSection rewrites title and order. The owning exhibition never changes.
func (t *tx) UpdateSection(ctx context.Context, s *exhibition.Section) error {
	tag, err := t.db.Exec(ctx,
		`UPDATE sections SET title = $3, "order" = $4 WHERE id = $1 AND exhibition_id = $2`,
		s.ID, s.ExhibitionID, s.Title, s.Order)
	if err != nil {
		return handlePostgresError("update section", err)
	}
	return affected(tag, exhibition.ErrSectionNotFound)
}

func (t *tx) DeleteSection(ctx context.Context, id uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete section", err)
	}
	return affected(tag, exhibition.ErrSectionNotFound)
}

func (t *tx) ListSections(ctx context.Context, exhibitionID uuid.UUID) ([]*exhibition.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections
		WHERE exhibition_id = $1 ORDER BY "order", created_at`

	rows, err := t.db.Query(ctx, query, exhibitionID)
	if err != nil {
		return nil, handlePostgresError("list sections", err)
	}
	defer rows.Close()

	sections := make([]*exhibition.Section, 0)
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, handlePostgresError("scan section", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list sections", err)
	}
	return sections, nil
}

// Content block operations

const blockColumns = `id, section_id, "order", content_type, text_content, book_id, created_at`

func scanBlock(row pgx.Row) (*exhibition.ContentBlock, error) {
	var (
		id, sectionID uuid.UUID
		order         int
		blockType     string
		text          *string
		bookID        *uuid.UUID
		createdAt     time.Time
	)
	if err := row.Scan(&id, &sectionID, &order, &blockType, &text, &bookID, &createdAt); err != nil {
		return nil, err
	}
	block, err := exhibition.NewContentBlockFromColumns(id, sectionID, order, exhibition.BlockType(blockType), text, bookID)
	if err != nil {
		return nil, err
	}
	block.CreatedAt = createdAt
	return block, nil
}

func (t *tx) CreateContentBlock(ctx context.Context, b *exhibition.ContentBlock) error {
	blockType, text, bookID := b.Columns()
	if err := exhibition.ValidateBlock(blockType, text, bookID); err != nil {
		return err
	}
	query := `INSERT INTO content_blocks (` + blockColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := t.db.Exec(ctx, query,
		b.ID, b.SectionID, b.Order, string(blockType), text, bookID, b.CreatedAt); err != nil {
		return handlePostgresError("create content block", err)
	}
	return nil
}

func (t *tx) GetContentBlock(ctx context.Context, id uuid.UUID) (*exhibition.ContentBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM content_blocks WHERE id = $1`
	b, err := scanBlock(t.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, exhibition.ErrInvariantViolation) {
			return nil, err
		}
		return nil, notFound("get content block", err, exhibition.ErrContentBlockNotFound)
	}
	return b, nil
}

// UpdateContentBlock rewrites payload and order. The owning section never changes.
func (t *tx) UpdateContentBlock(ctx context.Context, b *exhibition.ContentBlock) error {
	blockType, text, bookID := b.Columns()
	if err := exhibition.ValidateBlock(blockType, text, bookID); err != nil {
		return err
	}
	tag, err := t.db.Exec(ctx, `
		UPDATE content_blocks SET
			"order" = $3, content_type = $4, text_content = $5, book_id = $6
		WHERE id = $1 AND section_id = $2`,
		b.ID, b.SectionID, b.Order, string(blockType), text, bookID)
	if err != nil {
		return handlePostgresError("update content block", err)
	}
	return affected(tag, exhibition.ErrContentBlockNotFound)
}

func (t *tx) DeleteContentBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM content_blocks WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete content block", err)
	}
	return affected(tag, exhibition.ErrContentBlockNotFound)
}

func (t *tx) ListContentBlocks(ctx context.Context, sectionID uuid.UUID) ([]*exhibition.ContentBlock, error) {
	return t.listBlocks(ctx, `SELECT `+blockColumns+` FROM content_blocks
		WHERE section_id = $1 ORDER BY "order", created_at`, sectionID)
}

func (t *tx) ListContentBlocksByBook(ctx context.Context, bookID uuid.UUID) ([]*exhibition.ContentBlock, error) {
	return t.listBlocks(ctx, `SELECT `+blockColumns+` FROM content_blocks
		WHERE book_id = $1 ORDER BY section_id, "order", created_at`, bookID)
}

func (t *tx) listBlocks(ctx context.Context, query string, arg uuid.UUID) ([]*exhibition.ContentBlock, error) {
	rows, err := t.db.Query(ctx, query, arg)
	if err != nil {
		return nil, handlePostgresError("list content blocks", err)
	}
	defer rows.Close()

	blocks := make([]*exhibition.ContentBlock, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list content blocks", err)
	}
	return blocks, nil
}

// Book operations

const bookColumns = `id, title, annotation, library_description, year_of_publication, image, created_at`

func scanBook(row pgx.Row) (*exhibition.Book, error) {
	var (
		b     exhibition.Book
		image *string
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Annotation, &b.Description,
		&b.PublicationYear, &image, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Image = fromNullable(image)
	b.AuthorIDs = []uuid.UUID{}
	b.GenreIDs = []uuid.UUID{}
	return &b, nil
}

func (t *tx) CreateBook(ctx context.Context, b *exhibition.Book) error {
	query := `INSERT INTO books (` + bookColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := t.db.Exec(ctx, query,
		b.ID, b.Title, b.Annotation, b.Description, b.PublicationYear,
		nullable(b.Image), b.CreatedAt); err != nil {
		return handlePostgresError("create book", err)
	}
	return t.writeBookLinks(ctx, b)
}

// writeBookLinks replaces the author and genre rows of a book
func (t *tx) writeBookLinks(ctx context.Context, b *exhibition.Book) error {
	if _, err := t.db.Exec(ctx, `DELETE FROM book_authors WHERE book_id = $1`, b.ID); err != nil {
		return handlePostgresError("clear book authors", err)
	}
	if _, err := t.db.Exec(ctx, `DELETE FROM book_genres WHERE book_id = $1`, b.ID); err != nil {
		return handlePostgresError("clear book genres", err)
	}
	for _, id := range b.AuthorIDs {
		if _, err := t.db.Exec(ctx,
			`INSERT INTO book_authors (book_id, author_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			b.ID, id); err != nil {
			return handlePostgresError("link book author", err)
		}
	}
	for _, id := range b.GenreIDs {
		if _, err := t.db.Exec(ctx,
			`INSERT INTO book_genres (book_id, genre_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			b.ID, id); err != nil {
			return handlePostgresError("link book genre", err)
		}
	}
	return nil
}

// loadBookLinks fills AuthorIDs and GenreIDs for the given books
func (t *tx) loadBookLinks(ctx context.Context, books []*exhibition.Book) error {
	if len(books) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*exhibition.Book, len(books))
	ids := make([]uuid.UUID, 0, len(books))
	for _, b := range books {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}

	load := func(query string, add func(b *exhibition.Book, id uuid.UUID)) error {
		rows, err := t.db.Query(ctx, query, ids)
		if err != nil {
			return handlePostgresError("load book links", err)
		}
		defer rows.Close()
		for rows.Next() {
			var bookID, linkID uuid.UUID
			if err := rows.Scan(&bookID, &linkID); err != nil {
				return handlePostgresError("scan book link", err)
			}
			if b, ok := byID[bookID]; ok {
				add(b, linkID)
			}
		}
		return rows.Err()
	}

	if err := load(`SELECT ba.book_id, ba.author_id FROM book_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE ba.book_id = ANY($1) ORDER BY a.name`,
		func(b *exhibition.Book, id uuid.UUID) { b.AuthorIDs = append(b.AuthorIDs, id) }); err != nil {
		return err
	}
	return load(`SELECT bg.book_id, bg.genre_id FROM book_genres bg
		JOIN genres g ON g.id = bg.genre_id
		WHERE bg.book_id = ANY($1) ORDER BY g.name`,
		func(b *exhibition.Book, id uuid.UUID) { b.GenreIDs = append(b.GenreIDs, id) })
}

func (t *tx) GetBook(ctx context.Context, id uuid.UUID) (*exhibition.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	b, err := scanBook(t.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound("get book", err, exhibition.ErrBookNotFound)
	}
	if err := t.loadBookLinks(ctx, []*exhibition.Book{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (t *tx) UpdateBook(ctx context.Context, b *exhibition.Book) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE books SET
			title = $2, annotation = $3, library_description = $4,
			year_of_publication = $5, image = $6
		WHERE id = $1`,
		b.ID, b.Title, b.Annotation, b.Description, b.PublicationYear, nullable(b.Image))
	if err != nil {
		return handlePostgresError("update book", err)
	}
	if err := affected(tag, exhibition.ErrBookNotFound); err != nil {
		return err
	}
	return t.writeBookLinks(ctx, b)
}

// DeleteBook removes the book; its link rows cascade. Blocks still pointing
// at the book make the delete fail with ErrInvalidReference.
func (t *tx) DeleteBook(ctx context.Context, id uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete book", err)
	}
	return affected(tag, exhibition.ErrBookNotFound)
}

func (t *tx) ListBooks(ctx context.Context, filter exhibition.BookFilter) ([]*exhibition.Book, error) {
	var orderBy string
	switch filter.Sort {
	case exhibition.BookSortTitleDesc:
		orderBy = `lower(b.title) DESC, b.id`
	case exhibition.BookSortNewest:
		orderBy = `b.created_at DESC, b.id`
	default:
		orderBy = `lower(b.title), b.id`
	}

	authorIDs := append([]uuid.UUID{}, filter.AuthorIDs...)
	genreIDs := append([]uuid.UUID{}, filter.GenreIDs...)

	query := `SELECT ` + prefixed("b", bookColumns) + ` FROM books b
		WHERE ($1 = '' OR b.title ILIKE '%' || $1 || '%')
		  AND (cardinality($2::uuid[]) = 0 OR EXISTS (
		       SELECT 1 FROM book_authors ba WHERE ba.book_id = b.id AND ba.author_id = ANY($2)))
		  AND (cardinality($3::uuid[]) = 0 OR EXISTS (
		       SELECT 1 FROM book_genres bg WHERE bg.book_id = b.id AND bg.genre_id = ANY($3)))
		ORDER BY ` + orderBy

	rows, err := t.db.Query(ctx, query, filter.Search, authorIDs, genreIDs)
	if err != nil {
		return nil, handlePostgresError("list books", err)
	}
	books := make([]*exhibition.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			rows.Close()
			return nil, handlePostgresError("scan book", err)
		}
		books = append(books, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list books", err)
	}

	if err := t.loadBookLinks(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// Author operations

func (t *tx) CreateAuthor(ctx context.Context, a *exhibition.Author) error {
	if _, err := t.db.Exec(ctx, `INSERT INTO authors (id, name) VALUES ($1, $2)`, a.ID, a.Name); err != nil {
		return handlePostgresError("create author", err)
	}
	return nil
}

func (t *tx) GetAuthor(ctx context.Context, id uuid.UUID) (*exhibition.Author, error) {
	var a exhibition.Author
	if err := t.db.QueryRow(ctx, `SELECT id, name FROM authors WHERE id = $1`, id).Scan(&a.ID, &a.Name); err != nil {
		return nil, notFound("get author", err, exhibition.ErrAuthorNotFound)
	}
	return &a, nil
}

// DeleteAuthor removes the author; book_authors rows cascade
func (t *tx) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete author", err)
	}
	return affected(tag, exhibition.ErrAuthorNotFound)
}

func (t *tx) ListAuthors(ctx context.Context, search string) ([]*exhibition.Author, error) {
	return listNamed(ctx, t.db, "authors", search, func(id uuid.UUID, name string) *exhibition.Author {
		return &exhibition.Author{ID: id, Name: name}
	})
}

// Genre operations

func (t *tx) CreateGenre(ctx context.Context, g *exhibition.Genre) error {
	if _, err := t.db.Exec(ctx, `INSERT INTO genres (id, name) VALUES ($1, $2)`, g.ID, g.Name); err != nil {
		return handlePostgresError("create genre", err)
	}
	return nil
}

func (t *tx) GetGenre(ctx context.Context, id uuid.UUID) (*exhibition.Genre, error) {
	var g exhibition.Genre
	if err := t.db.QueryRow(ctx, `SELECT id, name FROM genres WHERE id = $1`, id).Scan(&g.ID, &g.Name); err != nil {
		return nil, notFound("get genre", err, exhibition.ErrGenreNotFound)
	}
	return &g, nil
}

// DeleteGenre removes the genre; book_genres rows cascade
func (t *tx) DeleteGenre(ctx context.Context, id uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM genres WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete genre", err)
	}
	return affected(tag, exhibition.ErrGenreNotFound)
}

func (t *tx) ListGenres(ctx context.Context, search string) ([]*exhibition.Genre, error) {
	return listNamed(ctx, t.db, "genres", search, func(id uuid.UUID, name string) *exhibition.Genre {
		return &exhibition.Genre{ID: id, Name: name}
	})
}

// listNamed lists an id/name table. table is always a constant from this file.
func listNamed[T any](ctx context.Context, db DBTX, table, search string, build func(uuid.UUID, string) *T) ([]*T, error) {
	query := `SELECT id, name FROM ` + table + `
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY name`

	rows, err := db.Query(ctx, query, search)
	if err != nil {
		return nil, handlePostgresError("list "+table, err)
	}
	defer rows.Close()

	items := make([]*T, 0)
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, handlePostgresError("scan "+table, err)
		}
		items = append(items, build(id, name))
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list "+table, err)
	}
	return items, nil
}

// helpers

func nullable(ref exhibition.AssetRef) *string {
	if ref.IsZero() {
		return nil
	}
	s := string(ref)
	return &s
}

func fromNullable(s *string) exhibition.AssetRef {
	if s == nil {
		return ""
	}
	return exhibition.AssetRef(*s)
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
