package exhibition

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Book operations

func (s *service) CreateBook(ctx context.Context, req CreateBookRequest) (*Book, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Image != nil {
		if _, err := s.media.CheckUpload(*req.Image); err != nil {
			return nil, err
		}
	}

	book := &Book{
		ID:              uuid.New(),
		Title:           req.Title,
		Annotation:      req.Annotation,
		Description:     req.Description,
		PublicationYear: req.PublicationYear,
		AuthorIDs:       dedupeIDs(req.AuthorIDs),
		GenreIDs:        dedupeIDs(req.GenreIDs),
		CreatedAt:       s.now(),
	}

	insert := func(ref AssetRef) error {
		book.Image = ref
		return s.repository.WithTx(ctx, func(tx Tx) error {
			if err := checkCatalogReferences(ctx, tx, book.AuthorIDs, book.GenreIDs); err != nil {
				return err
			}
			return tx.CreateBook(ctx, book)
		})
	}

	var err error
	if req.Image != nil {
		_, err = s.media.Attach(ctx, *req.Image, insert)
	} else {
		err = insert("")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	return book, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	var book *Book
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		book, err = tx.GetBook(ctx, id)
		return err
	})
	if err != nil {
		return nil, opError("book", id, "get", err)
	}
	return book, nil
}

func (s *service) ListBooks(ctx context.Context, filter BookFilter) ([]*Book, error) {
	switch filter.Sort {
	case "", BookSortTitleAsc, BookSortTitleDesc, BookSortNewest:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", ErrInvalidRequest, filter.Sort)
	}
	var books []*Book
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		books, err = tx.ListBooks(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, req UpdateBookRequest) (*Book, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan := func(tx Tx) (*Book, error) {
		book, err := tx.GetBook(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Title != nil {
			book.Title = *req.Title
		}
		if req.Annotation != nil {
			book.Annotation = *req.Annotation
		}
		if req.Description != nil {
			book.Description = *req.Description
		}
		if req.PublicationYear != nil {
			book.PublicationYear = *req.PublicationYear
		}
		if req.AuthorIDs != nil {
			book.AuthorIDs = dedupeIDs(*req.AuthorIDs)
		}
		if req.GenreIDs != nil {
			book.GenreIDs = dedupeIDs(*req.GenreIDs)
		}
		if err := checkCatalogReferences(ctx, tx, book.AuthorIDs, book.GenreIDs); err != nil {
			return nil, err
		}
		return book, nil
	}

	var updated *Book
	commit := func(newRef AssetRef) (AssetRef, error) {
		var old AssetRef
		err := s.repository.WithTx(ctx, func(tx Tx) error {
			book, err := plan(tx)
			if err != nil {
				return err
			}
			if !newRef.IsZero() {
				old = book.Image
				book.Image = newRef
			}
			if err := tx.UpdateBook(ctx, book); err != nil {
				return err
			}
			updated = book
			return nil
		})
		return old, err
	}

	if req.Image == nil {
		if _, err := commit(""); err != nil {
			return nil, opError("book", id, "update", err)
		}
		return updated, nil
	}

	if _, err := s.media.CheckUpload(*req.Image); err != nil {
		return nil, err
	}
	if err := s.repository.WithTx(ctx, func(tx Tx) error {
		_, err := plan(tx)
		return err
	}); err != nil {
		return nil, opError("book", id, "update", err)
	}
	if _, err := s.media.Replace(ctx, *req.Image, commit); err != nil {
		return nil, opError("book", id, "update", err)
	}
	return updated, nil
}

// DeleteBook removes every block that shows the book, then the book with its
// author and genre links, then its image.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	var (
		image   AssetRef
		removed int
	)
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		book, err := tx.GetBook(ctx, id)
		if err != nil {
			return err
		}
		image = book.Image

		blocks, err := tx.ListContentBlocksByBook(ctx, id)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			if err := tx.DeleteContentBlock(ctx, b.ID); err != nil {
				return err
			}
		}
		removed = len(blocks)
		return tx.DeleteBook(ctx, id)
	})
	if err != nil {
		return opError("book", id, "delete", err)
	}

	s.media.Release(ctx, image)
	s.emit(ctx, "book_deleted", s.eventSink.BookDeleted(ctx, id, removed))
	return nil
}

// Author operations

func (s *service) CreateAuthor(ctx context.Context, req CreateNameRequest) (*Author, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	author := &Author{ID: uuid.New(), Name: req.Name}
	if err := s.repository.WithTx(ctx, func(tx Tx) error {
		return tx.CreateAuthor(ctx, author)
	}); err != nil {
		return nil, fmt.Errorf("failed to create author %q: %w", req.Name, err)
	}
	return author, nil
}

func (s *service) ListAuthors(ctx context.Context, search string) ([]*Author, error) {
	var authors []*Author
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		authors, err = tx.ListAuthors(ctx, search)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	return authors, nil
}

// DeleteAuthor removes an author and its book links. Books stay.
func (s *service) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetAuthor(ctx, id); err != nil {
			return err
		}
		return tx.DeleteAuthor(ctx, id)
	})
	return opError("author", id, "delete", err)
}

// Genre operations

func (s *service) CreateGenre(ctx context.Context, req CreateNameRequest) (*Genre, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	genre := &Genre{ID: uuid.New(), Name: req.Name}
	if err := s.repository.WithTx(ctx, func(tx Tx) error {
		return tx.CreateGenre(ctx, genre)
	}); err != nil {
		return nil, fmt.Errorf("failed to create genre %q: %w", req.Name, err)
	}
	return genre, nil
}

func (s *service) ListGenres(ctx context.Context, search string) ([]*Genre, error) {
	var genres []*Genre
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		genres, err = tx.ListGenres(ctx, search)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	return genres, nil
}

// DeleteGenre removes a genre and its book links. Books stay.
func (s *service) DeleteGenre(ctx context.Context, id uuid.UUID) error {
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetGenre(ctx, id); err != nil {
			return err
		}
		return tx.DeleteGenre(ctx, id)
	})
	return opError("genre", id, "delete", err)
}

func checkCatalogReferences(ctx context.Context, tx Tx, authorIDs, genreIDs []uuid.UUID) error {
	for _, id := range authorIDs {
		if _, err := tx.GetAuthor(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: author %s", ErrInvalidReference, id)
			}
			return err
		}
	}
	for _, id := range genreIDs {
		if _, err := tx.GetGenre(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: genre %s", ErrInvalidReference, id)
			}
			return err
		}
	}
	return nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
