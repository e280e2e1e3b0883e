package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"storefront/internal/store"
)

// Layer names, outermost first.
const (
	LayerStore      = "store"
	LayerPersist    = "persist-gate"
	LayerTheme      = "theme"
	LayerNavigation = "navigation"
)

// Rehydrator is satisfied by *store.Persistor.
type Rehydrator interface {
	Rehydrated() <-chan struct{}
	IsRehydrated() bool
}

var tabs = []string{"Home", "Categories", "Wishlist", "Cart", "Account"}

// featured is the product strip on the Home screen.
var featured = []store.CartItem{
	{ProductID: 19, Name: "Hoodie", Quantity: 1},
	{ProductID: 22, Name: "T-Shirt", Quantity: 1},
	{ProductID: 31, Name: "Cap", Quantity: 1},
}

// ProviderChain renders the ready shell: the store is read, the persist gate
// holds the navigation root back until rehydration completes, and the theme
// styles everything beneath it.
type ProviderChain struct {
	store     *store.Store
	persistor Rehydrator
	styles    Styles
	activeTab int
	cursor    int
}

func NewProviderChain(s *store.Store, p Rehydrator, theme Theme) *ProviderChain {
	return &ProviderChain{
		store:     s,
		persistor: p,
		styles:    NewStyles(theme),
	}
}

// Layers lists the chain from outermost to innermost.
func (c *ProviderChain) Layers() []string {
	return []string{LayerStore, LayerPersist, LayerTheme, LayerNavigation}
}

// Theme returns the theme the chain was built with.
func (c *ProviderChain) Theme() Theme {
	return c.styles.Theme
}

// Rehydrated is closed once the persist gate opens. A chain without a
// persistor is always open.
func (c *ProviderChain) Rehydrated() <-chan struct{} {
	if c.persistor == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.persistor.Rehydrated()
}

// NextTab moves the navigation root to the next tab.
func (c *ProviderChain) NextTab() {
	c.activeTab = (c.activeTab + 1) % len(tabs)
}

// MoveCursor moves the Home screen selection by delta, wrapping around.
func (c *ProviderChain) MoveCursor(delta int) {
	n := len(featured)
	c.cursor = ((c.cursor+delta)%n + n) % n
}

// AddToCart puts one of the selected product in the cart. It is a no-op off
// the Home screen or while the persist gate is closed, since rehydration
// would replace the change.
func (c *ProviderChain) AddToCart() bool {
	if !c.editable() {
		return false
	}
	c.store.AddToCart(featured[c.cursor])
	return true
}

// ToggleWishlist adds or removes the selected product, with the same
// conditions as AddToCart.
func (c *ProviderChain) ToggleWishlist() bool {
	if !c.editable() {
		return false
	}
	c.store.ToggleWishlist(featured[c.cursor].ProductID)
	return true
}

func (c *ProviderChain) editable() bool {
	if c.activeTab != 0 {
		return false
	}
	return c.persistor == nil || c.persistor.IsRehydrated()
}

// Render draws the chain. It returns "" while the persist gate is closed.
func (c *ProviderChain) Render(width int) string {
	if c.persistor != nil && !c.persistor.IsRehydrated() {
		return ""
	}
	return c.navigationRoot(c.store.Get(), width)
}

func (c *ProviderChain) navigationRoot(st store.State, width int) string {
	s := c.styles

	header := s.Header.Render("Storefront")
	if width > 0 {
		header = s.Header.Width(width).Render("Storefront")
	}

	items := 0
	for _, line := range st.Cart {
		items += line.Quantity
	}
	counts := map[string]int{"Wishlist": len(st.Wishlist), "Cart": items}

	rendered := make([]string, 0, len(tabs))
	for i, name := range tabs {
		label := name
		if n, ok := counts[name]; ok && n > 0 {
			label = fmt.Sprintf("%s (%d)", name, n)
		}
		if i == c.activeTab {
			rendered = append(rendered, s.Active.Render(label))
		} else {
			rendered = append(rendered, s.Tab.Render(label))
		}
	}
	nav := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	greeting := "Welcome, guest"
	if st.Customer != nil && st.Customer.Name != "" {
		greeting = "Welcome back, " + st.Customer.Name
	}
	lines := []string{greeting, s.Muted.Render(fmt.Sprintf("%s screen", tabs[c.activeTab]))}
	if c.activeTab == 0 {
		lines = append(lines, "")
		lines = append(lines, c.featuredLines(st)...)
	}
	body := s.Body.Render(strings.Join(lines, "\n"))

	footer := s.Footer.Render("tab: next screen • ↑/↓: select • a: add to cart • w: wishlist • q: quit")

	return s.App.Render(lipgloss.JoinVertical(lipgloss.Left, header, nav, body, footer))
}

func (c *ProviderChain) featuredLines(st store.State) []string {
	wished := make(map[int64]bool, len(st.Wishlist))
	for _, id := range st.Wishlist {
		wished[id] = true
	}

	out := make([]string, 0, len(featured))
	for i, p := range featured {
		marker := "  "
		if i == c.cursor {
			marker = "> "
		}
		line := marker + p.Name
		if wished[p.ProductID] {
			line += " ♥"
		}
		out = append(out, line)
	}
	return out
}
