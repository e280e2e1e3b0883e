package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/sequencer"
	"storefront/internal/store"
)

type fakeSequencer struct {
	mu      sync.Mutex
	frame   sequencer.Frame
	renders int
	retries int
	settled chan struct{}
}

func newFakeSequencer() *fakeSequencer {
	return &fakeSequencer{
		frame:   sequencer.Frame{View: sequencer.ViewLoading},
		settled: make(chan struct{}),
	}
}

func (f *fakeSequencer) Render() sequencer.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders++
	return f.frame
}

func (f *fakeSequencer) Retry() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame.View != sequencer.ViewFailed {
		return false
	}
	f.retries++
	f.frame = sequencer.Frame{View: sequencer.ViewLoading}
	f.settled = make(chan struct{})
	return true
}

func (f *fakeSequencer) Settled() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

func (f *fakeSequencer) settle(frame sequencer.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = frame
	close(f.settled)
}

type fakeRehydrator struct {
	ch chan struct{}
}

func newFakeRehydrator(done bool) *fakeRehydrator {
	r := &fakeRehydrator{ch: make(chan struct{})}
	if done {
		close(r.ch)
	}
	return r
}

func (r *fakeRehydrator) Rehydrated() <-chan struct{} { return r.ch }

func (r *fakeRehydrator) IsRehydrated() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}

// step feeds msg to the model and returns the updated model and command.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_LoadingThenReady(t *testing.T) {
	t.Parallel()

	seq := newFakeSequencer()
	s := store.New(store.State{Cart: []store.CartItem{{ProductID: 1, Quantity: 2}}})
	m := NewModel(seq, NewProviderChain(s, newFakeRehydrator(true), LightTheme()))

	require.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Loading")
	assert.NotContains(t, m.View(), "Storefront", "provider chain must not render while loading")

	m, cmd := step(t, m, m.render()())
	assert.Equal(t, sequencer.ViewLoading, m.Frame().View)
	require.NotNil(t, cmd)

	seq.settle(sequencer.Frame{View: sequencer.ViewReady})
	msg := cmd()
	assert.IsType(t, settledMsg{}, msg)

	m, cmd = step(t, m, msg)
	m, _ = step(t, m, cmd())
	assert.Equal(t, sequencer.ViewReady, m.Frame().View)

	view := m.View()
	assert.Contains(t, view, "Storefront")
	assert.Contains(t, view, "Cart (2)")
	assert.NotContains(t, view, "Loading")
}

func TestModel_PersistGateHoldsNavigation(t *testing.T) {
	t.Parallel()

	seq := newFakeSequencer()
	seq.frame = sequencer.Frame{View: sequencer.ViewReady}
	gate := newFakeRehydrator(false)
	m := NewModel(seq, NewProviderChain(store.New(store.State{}), gate, DarkTheme()))

	m, cmd := step(t, m, m.render()())
	assert.Equal(t, sequencer.ViewReady, m.Frame().View)
	assert.Empty(t, m.View())

	close(gate.ch)
	m, _ = step(t, m, cmd())
	assert.Contains(t, m.View(), "Storefront")
}

func TestModel_FailureAndRetry(t *testing.T) {
	t.Parallel()

	seq := newFakeSequencer()
	seq.frame = sequencer.Frame{View: sequencer.ViewFailed, Err: errors.New(`loading asset "Ionicons": file not found`)}
	m := NewModel(seq, NewProviderChain(store.New(store.State{}), nil, LightTheme()))

	m, _ = step(t, m, m.render()())
	view := m.View()
	assert.Contains(t, view, "Startup failed")
	assert.Contains(t, view, "Ionicons")
	assert.Contains(t, view, "r: retry")

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	assert.Equal(t, sequencer.ViewLoading, m.Frame().View)
	assert.Equal(t, 1, seq.retries)
	assert.Contains(t, m.View(), "Loading")
}

func TestModel_RetryIgnoredUnlessFailed(t *testing.T) {
	t.Parallel()

	seq := newFakeSequencer()
	m := NewModel(seq, NewProviderChain(store.New(store.State{}), nil, LightTheme()))

	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Nil(t, cmd)
	assert.Zero(t, seq.retries)
}

func TestModel_Quit(t *testing.T) {
	t.Parallel()

	m := NewModel(newFakeSequencer(), NewProviderChain(store.New(store.State{}), nil, LightTheme()))
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestProviderChain(t *testing.T) {
	t.Parallel()

	s := store.New(store.State{
		Customer: &store.Customer{Name: "Ada"},
		Wishlist: []int64{1, 2, 3},
	})
	chain := NewProviderChain(s, nil, DarkTheme())

	assert.Equal(t, []string{LayerStore, LayerPersist, LayerTheme, LayerNavigation}, chain.Layers())
	assert.True(t, chain.Theme().IsDark)

	view := chain.Render(60)
	assert.Contains(t, view, "Welcome back, Ada")
	assert.Contains(t, view, "Wishlist (3)")
	assert.Contains(t, view, "Home screen")

	chain.NextTab()
	assert.Contains(t, chain.Render(60), "Categories screen")

	select {
	case <-chain.Rehydrated():
	default:
		t.Fatal("chain without persistor should be open")
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ShellKeysUpdateStore(t *testing.T) {
	t.Parallel()

	seq := newFakeSequencer()
	seq.frame = sequencer.Frame{View: sequencer.ViewReady}
	s := store.New(store.State{})
	m := NewModel(seq, NewProviderChain(s, nil, LightTheme()))
	m, _ = step(t, m, m.render()())

	m, _ = step(t, m, key("a"))
	m, _ = step(t, m, key("a"))
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = step(t, m, key("w"))

	st := s.Get()
	require.Len(t, st.Cart, 1)
	assert.Equal(t, featured[0].ProductID, st.Cart[0].ProductID)
	assert.Equal(t, 2, st.Cart[0].Quantity)
	assert.Equal(t, []int64{featured[1].ProductID}, st.Wishlist)

	view := m.View()
	assert.Contains(t, view, "Cart (2)")
	assert.Contains(t, view, featured[1].Name+" ♥")

	// Toggling again removes it.
	m, _ = step(t, m, key("w"))
	assert.Empty(t, s.Get().Wishlist)

	// Store keys only act on the Home screen.
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	_, _ = step(t, m, key("a"))
	assert.Equal(t, 2, s.Get().Cart[0].Quantity)
}

func TestModel_ShellKeysIgnoredWhileLoading(t *testing.T) {
	t.Parallel()

	s := store.New(store.State{})
	m := NewModel(newFakeSequencer(), NewProviderChain(s, nil, LightTheme()))

	_, _ = step(t, m, key("a"))
	assert.Empty(t, s.Get().Cart)
}

func TestProviderChain_EditsWaitForRehydration(t *testing.T) {
	t.Parallel()

	s := store.New(store.State{})
	gate := newFakeRehydrator(false)
	chain := NewProviderChain(s, gate, LightTheme())

	assert.False(t, chain.AddToCart())
	assert.False(t, chain.ToggleWishlist())
	assert.Empty(t, s.Get().Cart)

	close(gate.ch)
	assert.True(t, chain.AddToCart())
	assert.Len(t, s.Get().Cart, 1)
}

func TestProviderChain_MoveCursorWraps(t *testing.T) {
	t.Parallel()

	chain := NewProviderChain(store.New(store.State{}), nil, LightTheme())
	chain.MoveCursor(-1)
	assert.Equal(t, len(featured)-1, chain.cursor)
	chain.MoveCursor(1)
	assert.Equal(t, 0, chain.cursor)
	chain.MoveCursor(len(featured) + 1)
	assert.Equal(t, 1, chain.cursor)
}

func TestThemeFor(t *testing.T) {
	t.Parallel()

	assert.False(t, ThemeFor(false).IsDark)
	assert.Equal(t, "light", ThemeFor(false).Name)
	assert.True(t, ThemeFor(true).IsDark)
	assert.Equal(t, "dark", ThemeFor(true).Name)
	assert.NotEqual(t, LightTheme().Primary, DarkTheme().Primary)
	assert.False(t, strings.Contains(NewStyles(LightTheme()).Header.Render("x"), "\n"))
}
