// Package remote reads products from the public demo catalog API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/drstein77/productcatalog/internal/models"
)

// BaseURL is the fixed root of the remote catalog.
const BaseURL = "https://dummyjson.com/products"

// ErrNotFound is returned by GetByID when the catalog has no such product.
var ErrNotFound = errors.New("remote: product not found")

// Client issues read-only requests against the remote catalog.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBaseURL points the client at another catalog root, e.g. an httptest server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListAll fetches the catalog's default product listing.
func (c *Client) ListAll(ctx context.Context) ([]models.Product, error) {
	var resp models.ProductsResponse
	if err := c.get(ctx, c.baseURL, &resp); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return resp.Products, nil
}

// Search runs a free text search.
func (c *Client) Search(ctx context.Context, query string) ([]models.Product, error) {
	endpoint := c.baseURL + "/search?" + url.Values{"q": {query}}.Encode()
	var resp models.ProductsResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("search products %q: %w", query, err)
	}
	return resp.Products, nil
}

// GetByID fetches one product.
func (c *Client) GetByID(ctx context.Context, id int64) (models.Product, error) {
	endpoint := c.baseURL + "/" + strconv.FormatInt(id, 10)
	var p models.Product
	if err := c.get(ctx, endpoint, &p); err != nil {
		return models.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, drainError(resp.Body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func drainError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
