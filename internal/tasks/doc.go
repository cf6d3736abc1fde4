// Package tasks orchestrates long-running library operations with real-time progress reporting.
//
// # Core Operations
//
// The [LibraryEngine] interface defines two operations:
//
//  1. [LibraryEngine.Build] : Assemble the user's library
//     - Syncs the favorite set against the backend
//     - Enriches each favorite with catalog metadata
//     - Returns a [models.Library] ready for display or export
//
//  2. [LibraryEngine.SyncHistory] : Mirror watch history locally
//     - Fetches the backend's watch history
//     - Persists each event through the repository layer
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates. The
// [ProgressUpdate] struct contains phase, step counters, messages, and
// optional data for advanced UI rendering. Updates use select with default to
// prevent blocking.
//
// # Video Caching
//
// The optional [VideoCacher] interface enables automatic catalog persistence
// during enrichment. Entries are cached silently (errors ignored) so a cache
// failure never disrupts a build.
package tasks
