// Package api exposes the exhibition service over HTTP with chi.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// formOverhead is the room left for text fields next to an image in a multipart body
const formOverhead = 1 << 20

// Handler serves the exhibition API
type Handler struct {
	service   exhibition.Service
	maxUpload int64
	logger    *slog.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxUploadBytes sets the largest image accepted in a multipart body.
// It should match the service media limit.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		h.maxUpload = n
	}
}

// NewHandler creates a new API handler
func NewHandler(service exhibition.Service, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		maxUpload: exhibition.DefaultMaxImageBytes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router. Mount it under a version prefix such as /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/exhibitions", func(r chi.Router) {
		r.Post("/", h.CreateExhibition)
		r.Get("/", h.ListExhibitions)
		r.Get("/slug/{slug}", h.GetExhibitionBySlug)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetExhibition)
			r.Get("/tree", h.GetExhibitionTree)
			r.Put("/", h.UpdateExhibition)
			r.Delete("/", h.DeleteExhibition)

			r.Post("/sections", h.CreateSection)
			r.Get("/sections", h.ListSections)
			r.Get("/sections/{sectionID}", h.GetSection)
			r.Put("/sections/{sectionID}", h.UpdateSection)
			r.Delete("/sections/{sectionID}", h.DeleteSection)
		})
	})

	r.Route("/sections/{sectionID}/content", func(r chi.Router) {
		r.Post("/", h.CreateContentBlock)
		r.Get("/", h.ListContentBlocks)
		r.Get("/{contentID}", h.GetContentBlock)
		r.Patch("/{contentID}", h.UpdateContentBlock)
		r.Delete("/{contentID}", h.DeleteContentBlock)
	})
	r.Delete("/content/{contentID}/books/{bookID}", h.UnlinkBook)

	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.CreateBook)
		r.Get("/", h.ListBooks)
		r.Get("/{id}", h.GetBook)
		r.Put("/{id}", h.UpdateBook)
		r.Delete("/{id}", h.DeleteBook)
	})

	r.Route("/authors", func(r chi.Router) {
		r.Post("/", h.CreateAuthor)
		r.Get("/", h.ListAuthors)
		r.Delete("/{id}", h.DeleteAuthor)
	})

	r.Route("/genres", func(r chi.Router) {
		r.Post("/", h.CreateGenre)
		r.Get("/", h.ListGenres)
		r.Delete("/{id}", h.DeleteGenre)
	})

	r.Get("/media/*", h.GetMedia)

	return r
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s %q", exhibition.ErrInvalidRequest, name, raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "multipart/form-data"
}

// parseForm reads a multipart body, bounding it by the image limit plus room for text fields
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(h.maxUpload + formOverhead); err != nil {
		return badRequest(err)
	}
	return nil
}

// readImage returns the "image" part of a parsed multipart form, or nil when absent
func (h *Handler) readImage(r *http.Request) (*exhibition.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return nil, nil
	}
	fh := files[0]
	if fh.Size > h.maxUpload {
		return nil, fmt.Errorf("%w: image is %d bytes, limit %d", exhibition.ErrPayloadTooLarge, fh.Size, h.maxUpload)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	return &exhibition.Upload{Data: data, MimeType: strings.ToLower(mimeType)}, nil
}

// formString returns a pointer to a form value, or nil when the field is absent
func formString(r *http.Request, key string) *string {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func formBool(r *http.Request, key string) (*bool, error) {
	raw := formString(r, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", exhibition.ErrInvalidRequest, key)
	}
	return &b, nil
}

// formIDs reads repeated or comma separated ids; nil when the field is absent
func formIDs(r *http.Request, key string) (*[]uuid.UUID, error) {
	values, ok := r.MultipartForm.Value[key]
	if !ok {
		return nil, nil
	}
	ids := []uuid.UUID{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid id %q in %s", exhibition.ErrInvalidRequest, part, key)
			}
			ids = append(ids, id)
		}
	}
	return &ids, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", exhibition.ErrInvalidRequest, key)
	}
	return n, nil
}

func queryIDs(r *http.Request, key string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid id %q in %s", exhibition.ErrInvalidRequest, part, key)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
