package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// exhibitionBody is the JSON form of exhibition create and update requests.
// Multipart requests carry the same fields as form values plus an "image" file.
type exhibitionBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Published   *bool   `json:"is_published"`
}

func (h *Handler) decodeExhibition(w http.ResponseWriter, r *http.Request) (exhibitionBody, *exhibition.Upload, error) {
	var body exhibitionBody
	if !isMultipart(r) {
		return body, nil, decodeJSON(r, &body)
	}

	if err := h.parseForm(w, r); err != nil {
		return body, nil, err
	}
	body.Title = formString(r, "title")
	body.Description = formString(r, "description")
	published, err := formBool(r, "is_published")
	if err != nil {
		return body, nil, err
	}
	body.Published = published

	image, err := h.readImage(r)
	return body, image, err
}

// CreateExhibition creates an exhibition from a JSON or multipart body
func (h *Handler) CreateExhibition(w http.ResponseWriter, r *http.Request) {
	body, image, err := h.decodeExhibition(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode exhibition", err)
		return
	}

	req := exhibition.CreateExhibitionRequest{
		Title:       deref(body.Title),
		Description: deref(body.Description),
		Image:       image,
	}
	if body.Published != nil {
		req.Published = *body.Published
	}

	ex, err := h.service.CreateExhibition(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to create exhibition", err)
		return
	}

	h.logger.Info("Exhibition created", "exhibition_id", ex.ID.String(), "slug", ex.Slug)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ex)
}

// ListExhibitions lists exhibitions, optionally filtered by ?published= and ?search=
func (h *Handler) ListExhibitions(w http.ResponseWriter, r *http.Request) {
	var filter exhibition.ExhibitionFilter
	q := r.URL.Query()

	if raw := q.Get("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, r, "Invalid published filter", badRequest(err))
			return
		}
		filter.Published = &published
	}
	filter.Search = q.Get("search")

	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		h.writeError(w, r, "Invalid limit", err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		h.writeError(w, r, "Invalid offset", err)
		return
	}

	page, err := h.service.ListExhibitions(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, "Failed to list exhibitions", err)
		return
	}
	render.JSON(w, r, page)
}

func (h *Handler) GetExhibition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	ex, err := h.service.GetExhibition(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get exhibition", err)
		return
	}
	render.JSON(w, r, ex)
}

func (h *Handler) GetExhibitionBySlug(w http.ResponseWriter, r *http.Request) {
	ex, err := h.service.GetExhibitionBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, "Failed to get exhibition by slug", err)
		return
	}
	render.JSON(w, r, ex)
}

// GetExhibitionTree returns the exhibition with its sections and blocks in order
func (h *Handler) GetExhibitionTree(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	tree, err := h.service.GetExhibitionTree(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get exhibition tree", err)
		return
	}
	render.JSON(w, r, tree)
}

// UpdateExhibition applies the fields present in the body. An image part replaces the current image.
func (h *Handler) UpdateExhibition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	body, image, err := h.decodeExhibition(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode exhibition", err)
		return
	}

	ex, err := h.service.UpdateExhibition(r.Context(), id, exhibition.UpdateExhibitionRequest{
		Title:       body.Title,
		Description: body.Description,
		Published:   body.Published,
		Image:       image,
	})
	if err != nil {
		h.writeError(w, r, "Failed to update exhibition", err)
		return
	}
	render.JSON(w, r, ex)
}

func (h *Handler) DeleteExhibition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	if err := h.service.DeleteExhibition(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete exhibition", err)
		return
	}
	h.logger.Info("Exhibition deleted", "exhibition_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// Sections

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	exhibitionID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	var req exhibition.CreateSectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Failed to decode section", err)
		return
	}

	section, err := h.service.CreateSection(r.Context(), exhibitionID, req)
	if err != nil {
		h.writeError(w, r, "Failed to create section", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, section)
}

func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	exhibitionID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	sections, err := h.service.ListSections(r.Context(), exhibitionID)
	if err != nil {
		h.writeError(w, r, "Failed to list sections", err)
		return
	}
	render.JSON(w, r, sections)
}

func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	exhibitionID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	section, err := h.service.GetSection(r.Context(), exhibitionID, sectionID)
	if err != nil {
		h.writeError(w, r, "Failed to get section", err)
		return
	}
	render.JSON(w, r, section)
}

func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	exhibitionID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	var req exhibition.UpdateSectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Failed to decode section", err)
		return
	}

	section, err := h.service.UpdateSection(r.Context(), exhibitionID, sectionID, req)
	if err != nil {
		h.writeError(w, r, "Failed to update section", err)
		return
	}
	render.JSON(w, r, section)
}

// DeleteSection removes a section together with its content blocks
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	exhibitionID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, "Invalid exhibition ID", err)
		return
	}
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	if err := h.service.DeleteSection(r.Context(), exhibitionID, sectionID); err != nil {
		h.writeError(w, r, "Failed to delete section", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
