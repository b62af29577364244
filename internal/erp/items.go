package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Filter is one [field, operator, value] predicate of a resource query.
type Filter [3]any

func Eq(field string, value any) Filter {
	return Filter{field, "=", value}
}

func In(field string, values []string) Filter {
	return Filter{field, "in", values}
}

type ItemQuery struct {
	Filters []Filter
	Fields  []string
	Limit   int
}

// Item is the subset of the ERP Item doctype used by the storefront.
type Item struct {
	Name              string     `json:"name"`
	ItemCode          string     `json:"item_code,omitempty"`
	CustomPriceTag    float64    `json:"custom_price_tag,omitempty"`
	CustomFrontCover  *string    `json:"custom_front_cover"`
	CustomTitle       string     `json:"custom_title,omitempty"`
	CustomAuthorAlias string     `json:"custom_author_alias,omitempty"`
	CustomSlug        string     `json:"custom_slug,omitempty"`
	CustomGenere      string     `json:"custom_genere,omitempty"`
	CustomRating      flexString `json:"custom_rating,omitempty"`
	Description       string     `json:"description,omitempty"`

	// Detail-only fields, returned by GetItem.
	ItemName                string     `json:"item_name,omitempty"`
	ItemGroup               string     `json:"item_group,omitempty"`
	Image                   string     `json:"image,omitempty"`
	CustomMRP               float64    `json:"custom_mrp,omitempty"`
	CustomNativeTitle       string     `json:"custom_native_title,omitempty"`
	CustomAuthor            string     `json:"custom_author,omitempty"`
	CustomISBN              flexString `json:"custom_isbn,omitempty"`
	CustomPages             int        `json:"custom_pages,omitempty"`
	CustomLang              string     `json:"custom_lang,omitempty"`
	CustomTags              string     `json:"custom_tags,omitempty"`
	CustomAbout             string     `json:"custom_about_,omitempty"`
	CustomDateOfPublication string     `json:"custom_date_of_publication,omitempty"`
}

func (c *Client) ListItems(ctx context.Context, q ItemQuery) ([]Item, error) {
	query := url.Values{}
	if len(q.Filters) > 0 {
		filters, err := json.Marshal(q.Filters)
		if err != nil {
			return nil, fmt.Errorf("marshal filters: %w", err)
		}
		query.Set("filters", string(filters))
	}
	if len(q.Fields) > 0 {
		fields, err := json.Marshal(q.Fields)
		if err != nil {
			return nil, fmt.Errorf("marshal fields: %w", err)
		}
		query.Set("fields", string(fields))
	}
	if q.Limit > 0 {
		query.Set("limit_page_length", strconv.Itoa(q.Limit))
	}

	var result struct {
		Data []Item `json:"data"`
	}
	if err := c.do(ctx, "list_items", http.MethodGet, resourcePath("Item"), query, nil, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (c *Client) GetItem(ctx context.Context, name string) (*Item, error) {
	var result struct {
		Data Item `json:"data"`
	}
	if err := c.do(ctx, "get_item", http.MethodGet, resourcePath("Item", name), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result.Data, nil
}
