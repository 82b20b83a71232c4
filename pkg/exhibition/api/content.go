package api

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// CreateContentBlock adds a text or book block to a section.
// The block type is inferred when content_type is omitted.
func (h *Handler) CreateContentBlock(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	var req exhibition.CreateContentBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Failed to decode content block", err)
		return
	}

	block, err := h.service.CreateContentBlock(r.Context(), sectionID, req)
	if err != nil {
		h.writeError(w, r, "Failed to create content block", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, block)
}

func (h *Handler) ListContentBlocks(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	blocks, err := h.service.ListContentBlocks(r.Context(), sectionID)
	if err != nil {
		h.writeError(w, r, "Failed to list content blocks", err)
		return
	}
	render.JSON(w, r, blocks)
}

func (h *Handler) GetContentBlock(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		h.writeError(w, r, "Invalid content ID", err)
		return
	}
	block, err := h.service.GetContentBlock(r.Context(), sectionID, contentID)
	if err != nil {
		h.writeError(w, r, "Failed to get content block", err)
		return
	}
	render.JSON(w, r, block)
}

// UpdateContentBlock applies a partial update. Changing content_type clears the other variant.
func (h *Handler) UpdateContentBlock(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		h.writeError(w, r, "Invalid content ID", err)
		return
	}
	var patch exhibition.BlockPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, "Failed to decode content block", err)
		return
	}

	block, err := h.service.UpdateContentBlock(r.Context(), sectionID, contentID, patch)
	if err != nil {
		h.writeError(w, r, "Failed to update content block", err)
		return
	}
	render.JSON(w, r, block)
}

func (h *Handler) DeleteContentBlock(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r, "sectionID")
	if err != nil {
		h.writeError(w, r, "Invalid section ID", err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		h.writeError(w, r, "Invalid content ID", err)
		return
	}
	if err := h.service.DeleteContentBlock(r.Context(), sectionID, contentID); err != nil {
		h.writeError(w, r, "Failed to delete content block", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkBook removes a book block. A block showing a different book is reported as not found.
func (h *Handler) UnlinkBook(w http.ResponseWriter, r *http.Request) {
	contentID, err := pathID(r, "contentID")
	if err != nil {
		h.writeError(w, r, "Invalid content ID", err)
		return
	}
	bookID, err := pathID(r, "bookID")
	if err != nil {
		h.writeError(w, r, "Invalid book ID", err)
		return
	}
	if err := h.service.UnlinkBookFromBlock(r.Context(), contentID, bookID); err != nil {
		h.writeError(w, r, "Failed to unlink book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
