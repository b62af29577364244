// Package catalog maps ERP Item records to the books shown in the storefront.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/theauditor/loremshelf/internal/erp"
	"golang.org/x/sync/singleflight"
)

var ErrBookNotFound = errors.New("book not found")

var listFields = []string{
	"name",
	"item_code",
	"custom_price_tag",
	"custom_front_cover",
	"custom_title",
	"custom_author_alias",
	"custom_slug",
	"custom_genere",
	"custom_rating",
	"description",
}

type ItemSource interface {
	ListItems(ctx context.Context, q erp.ItemQuery) ([]erp.Item, error)
	GetItem(ctx context.Context, name string) (*erp.Item, error)
}

type Book struct {
	ID            string   `json:"id"`
	Slug          string   `json:"slug,omitempty"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Image         string   `json:"image"`
	Category      string   `json:"category"`
	Genres        []string `json:"genres"`
	Rating        float64  `json:"rating"`
	Pages         int      `json:"pages"`
	Languages     []string `json:"languages"`
	Format        []string `json:"format"`
	ISBN          string   `json:"isbn,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	ReleaseDate   string   `json:"releaseDate,omitempty"`
}

type Service struct {
	items     ItemSource
	assetBase string
	itemGroup string
	covers    singleflight.Group
	logger    *slog.Logger
}

// NewService builds a catalog over items. Cover paths are made absolute
// against assetBase, the ERP base URL.
func NewService(items ItemSource, assetBase, itemGroup string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		items:     items,
		assetBase: strings.TrimRight(assetBase, "/"),
		itemGroup: itemGroup,
		logger:    logger.With("component", "catalog"),
	}
}

func (s *Service) ListBooks(ctx context.Context) ([]Book, error) {
	items, err := s.items.ListItems(ctx, erp.ItemQuery{
		Filters: []erp.Filter{erp.Eq("item_group", s.itemGroup)},
		Fields:  listFields,
	})
	if err != nil {
		return nil, err
	}

	books := make([]Book, 0, len(items))
	for _, item := range items {
		books = append(books, s.listBook(item))
	}
	return books, nil
}

// BookBySlug resolves the item name for slug, then loads the full item.
func (s *Service) BookBySlug(ctx context.Context, slug string) (*Book, error) {
	matches, err := s.items.ListItems(ctx, erp.ItemQuery{
		Filters: []erp.Filter{
			erp.Eq("item_group", s.itemGroup),
			erp.Eq("custom_slug", slug),
		},
		Fields: []string{"name"},
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrBookNotFound
	}

	item, err := s.items.GetItem(ctx, matches[0].Name)
	if err != nil {
		return nil, err
	}
	book := s.detailBook(*item)
	return &book, nil
}

// Covers maps cart line ids (item names) to cover URLs with one batched
// query. Lines without a cover are absent. Failures yield an empty map.
func (s *Service) Covers(ctx context.Context, ids []string) map[string]string {
	if len(ids) == 0 {
		return map[string]string{}
	}

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	key := strings.Join(sorted, "\x00")

	v, err, _ := s.covers.Do(key, func() (any, error) {
		items, err := s.items.ListItems(ctx, erp.ItemQuery{
			Filters: []erp.Filter{
				erp.Eq("item_group", s.itemGroup),
				erp.In("name", sorted),
			},
			Fields: []string{"name", "custom_slug", "custom_front_cover"},
		})
		if err != nil {
			return nil, err
		}

		covers := make(map[string]string, len(items))
		for _, item := range items {
			if item.CustomFrontCover != nil && *item.CustomFrontCover != "" {
				covers[item.Name] = s.assetURL(*item.CustomFrontCover)
			}
		}
		return covers, nil
	})
	if err != nil {
		s.logger.Warn("failed to fetch book covers", "count", len(sorted), "error", err)
		return map[string]string{}
	}

	shared := v.(map[string]string)
	out := make(map[string]string, len(shared))
	for k, url := range shared {
		out[k] = url
	}
	return out
}

func (s *Service) listBook(item erp.Item) Book {
	id := item.CustomSlug
	if id == "" {
		id = item.ItemCode
	}
	book := Book{
		ID:          id,
		Slug:        item.CustomSlug,
		Title:       item.CustomTitle,
		Author:      firstNonEmpty(item.CustomAuthorAlias, "Unknown Author"),
		Description: StripHTML(item.Description),
		Price:       item.CustomPriceTag,
		Category:    firstNonEmpty(item.CustomGenere, "General"),
		Genres:      genres(item.CustomGenere),
		Rating:      parseRating(string(item.CustomRating)),
		Languages:   []string{"English"},
		Format:      []string{"Paperback"},
	}
	if item.CustomFrontCover != nil && *item.CustomFrontCover != "" {
		book.Image = s.assetURL(*item.CustomFrontCover)
	}
	return book
}

func (s *Service) detailBook(item erp.Item) Book {
	book := Book{
		ID:          firstNonEmpty(item.Name, item.ItemCode, item.CustomSlug, "unknown"),
		Slug:        item.CustomSlug,
		Title:       firstNonEmpty(item.CustomTitle, item.CustomNativeTitle, item.ItemName, "Untitled"),
		Author:      firstNonEmpty(item.CustomAuthorAlias, item.CustomAuthor, "Unknown Author"),
		Description: firstNonEmpty(StripHTML(item.Description), StripHTML(item.CustomAbout)),
		Price:       item.CustomPriceTag,
		Category:    firstNonEmpty(item.CustomGenere, item.ItemGroup, "General"),
		Genres:      genres(item.CustomGenere),
		Rating:      parseRating(string(item.CustomRating)),
		Pages:       item.CustomPages,
		Languages:   []string{language(item.CustomLang)},
		Format:      []string{"Paperback"},
		ISBN:        string(item.CustomISBN),
		Tags:        parseTags(item.CustomTags),
		ReleaseDate: item.CustomDateOfPublication,
	}
	if book.Price == 0 {
		book.Price = item.CustomMRP
	}
	if item.CustomMRP > book.Price {
		mrp := item.CustomMRP
		book.OriginalPrice = &mrp
	}
	switch {
	case item.CustomFrontCover != nil && *item.CustomFrontCover != "":
		book.Image = s.assetURL(*item.CustomFrontCover)
	case item.Image != "":
		book.Image = s.assetURL(item.Image)
	}
	return book
}

func (s *Service) assetURL(path string) string {
	return s.assetBase + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func genres(genre string) []string {
	if genre == "" {
		return []string{}
	}
	return []string{genre}
}

func parseRating(raw string) float64 {
	r, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return r
}

func parseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func language(code string) string {
	switch code {
	case "", "en":
		return "English"
	case "ml":
		return "Malayalam"
	default:
		return code
	}
}
