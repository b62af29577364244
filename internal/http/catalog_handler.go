package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/theauditor/loremshelf/internal/catalog"
)

type Catalog interface {
	ListBooks(ctx context.Context) ([]catalog.Book, error)
	BookBySlug(ctx context.Context, slug string) (*catalog.Book, error)
	Covers(ctx context.Context, ids []string) map[string]string
}

type CatalogHandler struct {
	catalog  Catalog
	checkout CheckoutService
}

func NewCatalogHandler(c Catalog, checkout CheckoutService) *CatalogHandler {
	return &CatalogHandler{catalog: c, checkout: checkout}
}

func (h *CatalogHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.ListBooks(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (h *CatalogHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.catalog.BookBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, book)
}

// CartCovers returns cover URLs for the lines in the session cart.
func (h *CatalogHandler) CartCovers(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.View(r.Context(), getSessionID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	covers := h.catalog.Covers(r.Context(), view.Cart.IDs())
	respondJSON(w, http.StatusOK, map[string]any{"covers": covers})
}
