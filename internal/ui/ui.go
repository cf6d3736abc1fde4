package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vidx/internal/auth"
	"github.com/desertthunder/vidx/internal/favorites"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowseView ViewState = iota
	DetailView
	LibraryView
)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	catalog   services.Catalog
	favorites *favorites.Controller
	rec       *auth.Reconciler
	engine    tasks.LibraryEngine

	width  int
	height int

	movieList list.Model
	movies    []models.Video
	selected  *models.Video

	libraryList list.Model
	library     *models.Library

	authState auth.Update
	authCh    <-chan auth.Update
	favCh     <-chan struct{}

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, catalog services.Catalog, controller *favorites.Controller, rec *auth.Reconciler, engine tasks.LibraryEngine) *Model {
	return &Model{
		ctx:       ctx,
		view:      BrowseView,
		catalog:   catalog,
		favorites: controller,
		rec:       rec,
		engine:    engine,
		authState: auth.Update{State: rec.State(), User: rec.CurrentUser()},
		authCh:    rec.Subscribe(),
		favCh:     controller.Subscribe(),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init fetches the first page of popular movies and starts both subscriptions.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPopular(), m.waitForAuth(), m.waitForFavorites())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.movieList.Width() == 0 {
			m.movieList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.libraryList.Width() == 0 {
			m.libraryList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case BrowseView:
			return m.handleBrowseKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case LibraryView:
			return m.handleLibraryKeys(msg)
		}

	case moviesFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.movies = msg.videos
		m.movieList = list.New(m.movieItems(), list.NewDefaultDelegate(), 0, 0)
		m.movieList.Title = fmt.Sprintf("Popular on %s", m.catalog.Name())
		m.movieList.SetSize(m.width-4, m.height-8)
		return m, nil

	case detailFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = BrowseView
			return m, nil
		}
		m.selected = msg.video
		m.view = DetailView
		return m, nil

	case favoriteToggledMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("favorite failed: %v", msg.err)
		} else {
			m.status = ""
		}
		return m, nil

	case libraryBuiltMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = BrowseView
			return m, nil
		}
		m.library = msg.result.Library
		m.libraryList = list.New(m.libraryItems(), list.NewDefaultDelegate(), 0, 0)
		m.libraryList.Title = "My Library"
		m.libraryList.SetSize(m.width-4, m.height-8)
		m.view = LibraryView
		return m, nil

	case authUpdateMsg:
		m.authState = auth.Update(msg)
		if m.authState.User == nil && m.view == LibraryView {
			m.view = BrowseView
		}
		return m, m.waitForAuth()

	case favoritesTickMsg:
		// Re-render heart markers without refetching.
		if m.movieList.Items() != nil {
			m.movieList.SetItems(m.movieItems())
		}
		return m, m.waitForFavorites()
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case BrowseView:
		body = m.renderBrowse()
	case DetailView:
		body = m.renderDetail()
	case LibraryView:
		body = m.renderLibrary()
	}

	return fmt.Sprintf("%s\n%s", body, m.renderFooter())
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.movieList.SelectedItem().(movieItem); ok {
			return m, m.fetchDetail(item.video.TMDBID)
		}
	case key.Matches(msg, m.keys.fave):
		if item, ok := m.movieList.SelectedItem().(movieItem); ok {
			return m, m.toggleFavorite(item.video.ID)
		}
	case key.Matches(msg, m.keys.library):
		return m, m.buildLibrary()
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchPopular()
	}

	var cmd tea.Cmd
	m.movieList, cmd = m.movieList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = BrowseView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.fave):
		if m.selected != nil {
			return m, m.toggleFavorite(m.selected.ID)
		}
	}
	return m, nil
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = BrowseView
		return m, nil
	case key.Matches(msg, m.keys.fave):
		if item, ok := m.libraryList.SelectedItem().(libraryItem); ok {
			return m, tea.Batch(m.toggleFavorite(item.entry.Edge.VideoID), m.buildLibrary())
		}
	}

	var cmd tea.Cmd
	m.libraryList, cmd = m.libraryList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case BrowseView:
		m.movieList, cmd = m.movieList.Update(msg)
	case LibraryView:
		m.libraryList, cmd = m.libraryList.Update(msg)
	}
	return m, cmd
}

func (m *Model) movieItems() []list.Item {
	items := make([]list.Item, len(m.movies))
	for i, v := range m.movies {
		items[i] = movieItem{video: v, favorited: m.favorites.IsFavorited(v.ID)}
	}
	return items
}

func (m *Model) libraryItems() []list.Item {
	if m.library == nil {
		return nil
	}
	items := make([]list.Item, len(m.library.Entries))
	for i, entry := range m.library.Entries {
		items[i] = libraryItem{entry: entry}
	}
	return items
}

func (m *Model) fetchPopular() tea.Cmd {
	return func() tea.Msg {
		videos, err := m.catalog.Popular(m.ctx, 1)
		return moviesFetchedMsg{videos: videos, err: err}
	}
}

func (m *Model) fetchDetail(tmdbID int) tea.Cmd {
	return func() tea.Msg {
		video, err := m.catalog.Details(m.ctx, tmdbID)
		return detailFetchedMsg{video: video, err: err}
	}
}

func (m *Model) toggleFavorite(videoID string) tea.Cmd {
	return func() tea.Msg {
		err := m.favorites.Toggle(m.ctx, videoID)
		return favoriteToggledMsg{videoID: videoID, err: err}
	}
}

func (m *Model) buildLibrary() tea.Cmd {
	return func() tea.Msg {
		result, err := m.engine.Build(m.ctx, nil)
		return libraryBuiltMsg{result: result, err: err}
	}
}

func (m *Model) waitForAuth() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.authCh
		if !ok {
			return nil
		}
		return authUpdateMsg(update)
	}
}

func (m *Model) waitForFavorites() tea.Cmd {
	return func() tea.Msg {
		_, ok := <-m.favCh
		if !ok {
			return nil
		}
		return favoritesTickMsg{}
	}
}

func (m *Model) renderBrowse() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.fave, m.keys.library, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.movieList.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return styles.err.Render("No movie selected\n\nPress esc to go back")
	}

	title := styles.title.Render(m.selected.Title)

	heart := "♡ not favorited"
	if m.favorites.IsFavorited(m.selected.ID) {
		heart = styles.ok.Render("♥ favorited")
	}

	info := fmt.Sprintf("\nReleased: %s\nRating: %s\n%s\n\n%s\n",
		m.selected.ReleaseDate,
		shared.FormatRating(m.selected.Rating),
		heart,
		m.selected.Overview,
	)

	helpKeys := []key.Binding{m.keys.fave, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s\n%s", title, info, helpView)
}

func (m *Model) renderLibrary() string {
	helpKeys := []key.Binding{m.keys.fave, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.libraryList.View(), helpView)
}

// renderFooter shows the auth state and any transient status message.
func (m *Model) renderFooter() string {
	var who string
	if m.authState.User != nil {
		who = styles.ok.Render(fmt.Sprintf("signed in as %s", m.authState.User.DisplayName()))
	} else {
		who = styles.warn.Render("signed out")
	}

	if m.status != "" {
		return fmt.Sprintf("%s  %s", who, styles.err.Render(m.status))
	}
	return who
}
