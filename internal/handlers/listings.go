package handlers

import (
	"net/http"

	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
	"github.com/bruinswipes/bruinswipes-backend/internal/services"
)

// GetListings runs the marketplace search in the request body.
func (h *Handler) GetListings(w http.ResponseWriter, r *http.Request) {
	var filter services.ListingFilter
	if !decodeJSON(w, r, &filter) {
		return
	}
	writeJSON(w, http.StatusOK, h.listings.QueryListings(r.Context(), middleware.UserID(r.Context()), filter))
}

func (h *Handler) PostListing(w http.ResponseWriter, r *http.Request) {
	var body services.ListingBody
	if !decodeJSON(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, h.listings.InsertListing(r.Context(), middleware.UserID(r.Context()), body))
}

// ResolveListing closes listing ?id= if the signed-in user owns it.
func (h *Handler) ResolveListing(w http.ResponseWriter, r *http.Request) {
	res := h.listings.ResolveListing(r.Context(), middleware.UserID(r.Context()), r.URL.Query().Get("id"))
	writeJSON(w, http.StatusOK, res)
}
