package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// bookBody is the JSON form of book create and update requests
type bookBody struct {
	Title           *string      `json:"title"`
	Annotation      *string      `json:"annotation"`
	Description     *string      `json:"library_description"`
	PublicationYear *string      `json:"year_of_publication"`
	AuthorIDs       *[]uuid.UUID `json:"author_ids"`
	GenreIDs        *[]uuid.UUID `json:"genre_ids"`
}

func (h *Handler) decodeBook(w http.ResponseWriter, r *http.Request) (bookBody, *exhibition.Upload, error) {
	var body bookBody
	if !isMultipart(r) {
		return body, nil, decodeJSON(r, &body)
	}

	if err := h.parseForm(w, r); err != nil {
		return body, nil, err
	}
	body.Title = formString(r, "title")
	body.Annotation = formString(r, "annotation")
	body.Description = formString(r, "library_description")
	body.PublicationYear = formString(r, "year_of_publication")

	var err error
	if body.AuthorIDs, err = formIDs(r, "author_ids"); err != nil {
		return body, nil, err
	}
	if body.GenreIDs, err = formIDs(r, "genre_ids"); err != nil {
		return body, nil, err
	}

	image, err := h.readImage(r)
	return body, image, err
}

func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	body, image, err := h.decodeBook(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode book", err)
		return
	}

	req := exhibition.CreateBookRequest{
		Title:           deref(body.Title),
		Annotation:      deref(body.Annotation),
		Description:     deref(body.Description),
		PublicationYear: deref(body.PublicationYear),
		Image:           image,
	}
	if body.AuthorIDs != nil {
		req.AuthorIDs = *body.AuthorIDs
	}
	if body.GenreIDs != nil {
		req.GenreIDs = *body.GenreIDs
	}

	book, err := h.service.CreateBook(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to create book", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, book)
}

// ListBooks supports ?search=, repeated ?author_id= and ?genre_id=, and ?sort=
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	filter := exhibition.BookFilter{
		Search: r.URL.Query().Get("search"),
		Sort:   exhibition.BookSort(r.URL.Query().Get("sort")),
	}
	var err error
	if filter.AuthorIDs, err = queryIDs(r, "author_id"); err != nil {
		h.writeError(w, r, "Invalid author filter", err)
		return
	}
	if filter.GenreIDs, err = queryIDs(r, "genre_id"); err != nil {
		h.writeError(w, r, "Invalid genre filter", err)
		return
	}

	books, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, "Failed to list books", err)
		return
	}
	render.JSON(w, r, books)
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid book ID", err)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get book", err)
		return
	}
	render.JSON(w, r, book)
}

func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid book ID", err)
		return
	}
	body, image, err := h.decodeBook(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode book", err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, exhibition.UpdateBookRequest{
		Title:           body.Title,
		Annotation:      body.Annotation,
		Description:     body.Description,
		PublicationYear: body.PublicationYear,
		AuthorIDs:       body.AuthorIDs,
		GenreIDs:        body.GenreIDs,
		Image:           image,
	})
	if err != nil {
		h.writeError(w, r, "Failed to update book", err)
		return
	}
	render.JSON(w, r, book)
}

// DeleteBook removes the book and every content block that shows it
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid book ID", err)
		return
	}
	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete book", err)
		return
	}
	h.logger.Info("Book deleted", "book_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// Authors and genres

func (h *Handler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req exhibition.CreateNameRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Failed to decode author", err)
		return
	}
	author, err := h.service.CreateAuthor(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to create author", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, author)
}

func (h *Handler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.service.ListAuthors(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, r, "Failed to list authors", err)
		return
	}
	render.JSON(w, r, authors)
}

func (h *Handler) DeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid author ID", err)
		return
	}
	if err := h.service.DeleteAuthor(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete author", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var req exhibition.CreateNameRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Failed to decode genre", err)
		return
	}
	genre, err := h.service.CreateGenre(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to create genre", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, genre)
}

func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.service.ListGenres(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, r, "Failed to list genres", err)
		return
	}
	render.JSON(w, r, genres)
}

func (h *Handler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid genre ID", err)
		return
	}
	if err := h.service.DeleteGenre(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete genre", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
