package api

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// GetMedia streams a stored image by its asset name
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	ref := exhibition.AssetRef(chi.URLParam(r, "*"))
	if ref.IsZero() {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rc, err := h.service.OpenAsset(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, "Failed to open asset", err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(string(ref))); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to stream asset", "asset", ref, "error", err)
	}
}
