package catalog

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/drstein77/productcatalog/internal/models"
	"github.com/google/uuid"
)

// AlertInvalidInput is shown to the user when a submitted product is rejected.
const AlertInvalidInput = "Please fill out all required fields with valid data."

// ValidationError lists the product form fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return AlertInvalidInput + " (" + strings.Join(e.Fields, ", ") + ")"
}

// ProductInput holds the user supplied part of a product.
type ProductInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imageUrl"`
}

// ParseForm reads the product form fields through get. Fields that do not
// parse as numbers are reported as a ValidationError.
func ParseForm(get func(key string) string) (ProductInput, error) {
	in := ProductInput{
		Title:       get("title"),
		Description: get("description"),
		Category:    get("category"),
		ImageURL:    get("imageUrl"),
	}
	var bad []string
	if v, err := strconv.ParseFloat(strings.TrimSpace(get("price")), 64); err == nil {
		in.Price = v
	} else {
		bad = append(bad, "price")
	}
	if v, err := strconv.Atoi(strings.TrimSpace(get("stock"))); err == nil {
		in.Stock = v
	} else {
		bad = append(bad, "stock")
	}
	if len(bad) > 0 {
		return in, &ValidationError{Fields: bad}
	}
	return in, nil
}

// FromProduct fills an input from an existing product, for the edit form.
func FromProduct(p models.Product) ProductInput {
	return ProductInput{
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.Thumbnail,
	}
}

// Validate trims the text fields and checks that none is empty and that
// price and stock are strictly positive.
func (in *ProductInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	var bad []string
	for _, f := range []struct {
		name, value string
	}{
		{"title", in.Title},
		{"description", in.Description},
		{"category", in.Category},
		{"imageUrl", in.ImageURL},
	} {
		if f.value == "" {
			bad = append(bad, f.name)
		}
	}
	// NaN fails the comparison
	if !(in.Price > 0) || math.IsInf(in.Price, 1) {
		bad = append(bad, "price")
	}
	if in.Stock <= 0 {
		bad = append(bad, "stock")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

func (in ProductInput) product(id int64, now time.Time) models.Product {
	p := models.Product{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		Thumbnail:   in.ImageURL,
	}
	models.ApplySampleDetails(&p)
	p.Meta.CreatedAt = now
	p.Meta.UpdatedAt = now
	return p
}

const (
	// MinLocalID keeps generated ids above the remote catalog's id range.
	MinLocalID int64 = 1_000_000
	maxSafeID  int64 = 1<<53 - 1
)

// NewID draws random ids in [MinLocalID, 2^53) until taken reports a free one.
func NewID(taken func(int64) bool) int64 {
	for {
		u := uuid.New()
		n := MinLocalID + int64(binary.BigEndian.Uint64(u[:8])%uint64(maxSafeID-MinLocalID))
		if taken == nil || !taken(n) {
			return n
		}
	}
}
