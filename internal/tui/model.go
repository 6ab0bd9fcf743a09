// Package tui is a terminal browser over the merged product catalog.
package tui

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/drstein77/productcatalog/internal/catalog"
	"github.com/drstein77/productcatalog/internal/debounce"
	"github.com/drstein77/productcatalog/internal/models"
	"github.com/drstein77/productcatalog/internal/storage"
	"github.com/drstein77/productcatalog/internal/view"
	"go.uber.org/zap"
)

type mode int

const (
	modeList mode = iota
	modeDetail
	modeConfirm
)

type (
	loadedMsg struct {
		phase    catalog.Phase
		query    string
		products []models.Product
		err      error
	}
	// searchMsg is delivered once the search input has settled.
	searchMsg  struct{ query string }
	refreshMsg struct{}
	detailMsg  struct {
		product models.Product
		err     error
	}
	deletedMsg struct {
		id      int64
		removed bool
		err     error
	}
)

// Model is the bubbletea model of the browser.
type Model struct {
	ctx    context.Context
	store  catalog.Store
	remote catalog.Remote
	log    catalog.Log

	search        textinput.Model
	searchFocused bool
	searches      *debounce.Debouncer
	changes       *debounce.Debouncer
	send          func(tea.Msg)
	renderer      *glamour.TermRenderer

	mode     mode
	phase    catalog.Phase
	products []models.Product
	cursor   int
	detail   *models.Product
	status   string
	alert    string
	width    int
	styles   styles
}

func NewModel(ctx context.Context, remote catalog.Remote, store catalog.Store, log catalog.Log) *Model {
	si := textinput.New()
	si.Placeholder = "Search products"
	si.Prompt = "/ "
	si.CharLimit = 100
	si.Width = 40

	return &Model{
		ctx:      ctx,
		store:    store,
		remote:   remote,
		log:      log,
		search:   si,
		searches: debounce.New(catalog.SearchQuietPeriod),
		changes:  debounce.New(catalog.SearchQuietPeriod),
		send:     func(tea.Msg) {},
		styles:   defaultStyles(),
	}
}

// Init loads the catalog.
func (m *Model) Init() tea.Cmd {
	return m.loadCmd("")
}

// StoreChanged schedules a refresh after the local record was changed by another process.
func (m *Model) StoreChanged(key string) {
	if key != storage.ProductsKey {
		return
	}
	m.changes.Call(func() { m.send(refreshMsg{}) })
}

// Close cancels pending debounced work.
func (m *Model) Close() {
	m.searches.Stop()
	m.changes.Stop()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case loadedMsg:
		// a slower load for an earlier query
		if msg.query != strings.TrimSpace(m.search.Value()) {
			return m, nil
		}
		if msg.err != nil {
			m.alert = msg.err.Error()
			return m, nil
		}
		m.phase = msg.phase
		m.products = msg.products
		if m.cursor >= len(m.products) {
			m.cursor = max(len(m.products)-1, 0)
		}
		return m, nil

	case searchMsg:
		// a newer keystroke superseded this query
		if msg.query != m.search.Value() {
			return m, nil
		}
		return m, m.loadCmd(msg.query)

	case refreshMsg:
		return m, m.loadCmd(m.search.Value())

	case detailMsg:
		if msg.err != nil {
			m.alert = "Product not found"
			m.detail = nil
			return m, nil
		}
		m.detail = &msg.product
		m.mode = modeDetail
		return m, nil

	case deletedMsg:
		m.mode = modeList
		switch {
		case msg.err != nil:
			m.alert = msg.err.Error()
		case msg.removed:
			m.status = "Product deleted successfully!"
		default:
			m.status = fmt.Sprintf("Product %d is not stored locally", msg.id)
		}
		return m, m.loadCmd(m.search.Value())

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeDetail:
			return m.updateDetail(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}

	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchFocused {
		switch msg.String() {
		case "esc", "enter":
			m.searchFocused = false
			m.search.Blur()
			return m, nil
		}
		before := m.search.Value()
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		if query := m.search.Value(); query != before {
			m.searches.Call(func() { m.send(searchMsg{query: query}) })
		}
		return m, cmd
	}

	switch msg.String() {
	case "/":
		m.searchFocused = true
		return m, m.search.Focus()
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.products)-1 {
			m.cursor++
		}
	case "r":
		m.status, m.alert = "", ""
		return m, m.loadCmd(m.search.Value())
	case "enter":
		if p, ok := m.current(); ok {
			m.alert = ""
			return m, m.detailCmd(p.ID)
		}
	case "d":
		if _, ok := m.current(); ok {
			m.mode = modeConfirm
		}
	}
	return m, nil
}

func (m *Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace", "q":
		m.mode = modeList
		m.detail = nil
	}
	return m, nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p, ok := m.current()
	switch msg.String() {
	case "y", "Y":
		if ok {
			return m, m.deleteCmd(p.ID)
		}
		m.mode = modeList
	case "n", "N", "esc":
		m.mode = modeList
	}
	return m, nil
}

func (m *Model) current() (models.Product, bool) {
	if m.cursor < 0 || m.cursor >= len(m.products) {
		return models.Product{}, false
	}
	return m.products[m.cursor], true
}

// loadCmd loads the list for query on its own controller, so concurrent loads
// never read each other's results.
func (m *Model) loadCmd(query string) tea.Cmd {
	ctl := catalog.NewController(m.remote, m.store, m.log)
	ctx := m.ctx
	query = strings.TrimSpace(query)
	return func() tea.Msg {
		var err error
		if query != "" {
			err = ctl.Search(ctx, query)
		} else {
			err = ctl.Refresh(ctx)
		}
		return loadedMsg{phase: ctl.Phase(), query: query, products: ctl.Products(), err: err}
	}
}

func (m *Model) detailCmd(id int64) tea.Cmd {
	d := catalog.NewDetailController(url.Values{"id": {strconv.FormatInt(id, 10)}}, m.store, m.remote, m.log)
	ctx := m.ctx
	return func() tea.Msg {
		p, err := d.Resolve(ctx)
		return detailMsg{product: p, err: err}
	}
}

func (m *Model) deleteCmd(id int64) tea.Cmd {
	ctl := catalog.NewController(m.remote, m.store, m.log, catalog.WithoutReload())
	ctx := m.ctx
	return func() tea.Msg {
		removed, err := ctl.Delete(ctx, id, catalog.Confirmed)
		return deletedMsg{id: id, removed: removed, err: err}
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Product Catalog"))
	b.WriteString("\n")

	switch m.mode {
	case modeDetail:
		b.WriteString(m.viewDetail())
	case modeConfirm:
		b.WriteString(m.viewList())
		b.WriteString("\n")
		b.WriteString(m.styles.Alert.Render("Are you sure you want to delete this product? (y/n)"))
	default:
		b.WriteString(m.viewList())
	}

	if m.status != "" {
		b.WriteString("\n" + m.styles.Notice.Render(m.status))
	}
	if m.alert != "" {
		b.WriteString("\n" + m.styles.Alert.Render(m.alert))
	}
	b.WriteString(m.styles.Help.Render(m.help()))
	return b.String()
}

func (m *Model) viewList() string {
	var b strings.Builder
	b.WriteString(m.search.View())
	b.WriteString("\n\n")

	switch {
	case m.phase == catalog.PhaseLoading:
		b.WriteString(m.styles.Muted.Render(view.LoadingMessage))
	case len(m.products) == 0:
		b.WriteString(m.styles.Muted.Render(view.EmptyMessage))
	default:
		for i, p := range m.products {
			line := fmt.Sprintf("%-40s %s  %s  %d in stock",
				p.Title, m.styles.Price.Render(view.FormatPrice(p.Price)), p.Category, p.Stock)
			if i == m.cursor {
				b.WriteString(m.styles.Selected.Render("> " + line))
			} else {
				b.WriteString(m.styles.Item.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) viewDetail() string {
	p := m.detail
	if p == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.styles.Selected.Render(p.Title))
	fmt.Fprintf(&b, "by %s  %s  %s\n", p.Brand, m.styles.Price.Render(view.FormatPrice(p.Price)), view.Stars(p.Rating))
	fmt.Fprintf(&b, "%d available  (%d reviews)\n\n", p.Stock, len(p.Reviews))
	b.WriteString(m.renderMarkdown(p.Description))
	fmt.Fprintf(&b, "\nSKU: %s  Weight: %v kg\n", p.SKU, p.Weight)
	fmt.Fprintf(&b, "Shipping: %s\nWarranty: %s\nReturns: %s\n", p.ShippingInformation, p.WarrantyInformation, p.ReturnPolicy)
	for _, r := range p.Reviews {
		fmt.Fprintf(&b, "  %s %s %s: %s\n", view.Stars(r.Rating), view.FormatDate(r.Date), r.ReviewerName, r.Comment)
	}
	return b.String()
}

// renderMarkdown renders a description with glamour, falling back to the raw text.
func (m *Model) renderMarkdown(src string) string {
	if m.renderer == nil {
		width := m.width
		if width <= 0 {
			width = 80
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err != nil {
			m.log.Warn("Markdown renderer unavailable", zap.Error(err))
			return src + "\n"
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(src)
	if err != nil {
		return src + "\n"
	}
	return out
}

func (m *Model) help() string {
	switch m.mode {
	case modeDetail:
		return "esc back • ctrl+c quit"
	case modeConfirm:
		return "y delete • n cancel"
	}
	if m.searchFocused {
		return "enter/esc done"
	}
	return "/ search • ↑/↓ move • enter details • d delete • r refresh • q quit"
}
