// Package models defines the data model for the vidx movie catalog client.
//
// Plain structs (User, Session, Video, FavoriteEdge) are wire/domain values
// passed between services; persisted entities (CachedVideo, HistoryEntry)
// implement [Model] and are stored through [Repository] implementations.
package models
