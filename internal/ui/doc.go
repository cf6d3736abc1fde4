// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for catalog browsing:
//  1. [BrowseView] : Browse popular movies or search results
//  2. [DetailView] : Inspect a single movie before favoriting
//  3. [LibraryView] : Review the favorite set
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Favorite toggles apply optimistically: the heart flips before the backend
// answers, and flips back if the mutation fails. Auth state changes stream in
// from the reconciler's subscription channel and render in the footer.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, f, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
