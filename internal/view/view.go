// Package view renders catalog pages and fragments. Every function is a pure
// function of its input.
package view

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"math"
	"strings"
	"time"

	"github.com/drstein77/productcatalog/internal/catalog"
	"github.com/drstein77/productcatalog/internal/models"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
)

// Text of the placeholders rendered into the product container.
const (
	EmptyMessage   = "No products found"
	LoadingMessage = "Loading..."
)

//go:embed templates/*.html
var files embed.FS

var (
	policy    = bluemonday.UGCPolicy()
	markdown  = goldmark.New()
	fragments = template.Must(template.New("fragments.html").Funcs(funcs()).ParseFS(files, "templates/fragments.html"))
	pages     = map[string]*template.Template{}
)

func init() {
	for _, name := range []string{"index", "detail", "form", "confirm"} {
		pages[name] = template.Must(template.New("layout.html").Funcs(funcs()).
			ParseFS(files, "templates/layout.html", "templates/fragments.html", "templates/"+name+".html"))
	}
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"price":    FormatPrice,
		"stars":    Stars,
		"date":     FormatDate,
		"markdown": Markdown,
	}
}

// Page carries the messages every page can show above its content.
type Page struct {
	Notice string
	Alert  string
}

type IndexData struct {
	Page
	Query   string
	Content template.HTML
}

type DetailData struct {
	Page
	Product *models.Product
	Content template.HTML
}

type FormData struct {
	Page
	Action  string
	Editing bool
	Input   catalog.ProductInput
}

type ConfirmData struct {
	Page
	Product models.Product
}

// ProductList renders the cards of products, or the empty state when there are none.
func ProductList(products []models.Product) (template.HTML, error) {
	return execute(fragments, "product-list", products)
}

// Loading renders the placeholder shown until the first load completes.
func Loading() template.HTML {
	return template.HTML("<p>" + LoadingMessage + "</p>")
}

// ProductDetail renders the full description of one product.
func ProductDetail(p models.Product) (template.HTML, error) {
	return execute(fragments, "product-detail", p)
}

// IndexPage renders the catalog page.
func IndexPage(w io.Writer, data IndexData) error {
	return pages["index"].Execute(w, data)
}

// DetailPage renders the detail page; Content stays empty when the product
// could not be resolved.
func DetailPage(w io.Writer, data DetailData) error {
	return pages["detail"].Execute(w, data)
}

// FormPage renders the add or edit form.
func FormPage(w io.Writer, data FormData) error {
	return pages["form"].Execute(w, data)
}

// ConfirmDeletePage asks the user to confirm a deletion.
func ConfirmDeletePage(w io.Writer, data ConfirmData) error {
	return pages["confirm"].Execute(w, data)
}

func execute(t *template.Template, name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// FormatPrice renders a dollar amount with two decimals.
func FormatPrice(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// Stars repeats ★ once per whole rating point.
func Stars(rating any) string {
	var n int
	switch r := rating.(type) {
	case float64:
		n = int(math.Floor(r))
	case int:
		n = r
	}
	if n < 0 {
		n = 0
	}
	return strings.Repeat("★", n)
}

// FormatDate renders a review date the way US browsers print short dates.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("1/2/2006")
}

// Markdown converts a product description to sanitized HTML.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}
