package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Menu serves the catalog grouped by category.
func (h *Handler) Menu(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	encodeMenu(&e, h.menu.Categories())
	writeJSON(w, http.StatusOK, &e)
}
