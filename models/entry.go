// Package models defines data structures returned by the scraper.
package models

import "time"

// Entry is one item from the newest-submissions listing.
type Entry struct {
	Title        string `csv:"title" json:"title"`
	URL          string `csv:"url" json:"url"`
	ThumbnailURL string `csv:"thumbnail_url" json:"thumbnail_url"`
	Rank         int    `csv:"rank" json:"rank"`
	Timestamp    string `csv:"timestamp" json:"timestamp,omitempty"`
}

// DetailResult holds the raw page captured for a single entry.
type DetailResult struct {
	URL        string    `json:"url"`
	FinalURL   string    `json:"final_url"`
	StatusCode int       `json:"status_code"`
	HTML       string    `json:"html"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// NoEntriesFound is the EmptyListing reason for a listing page that matched nothing.
const NoEntriesFound = "no entries found"

// EmptyListing carries the raw listing page when it yielded no entries, so that callers can
// see what the markup looked like.
type EmptyListing struct {
	Reason     string `json:"reason"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	HTML       string `json:"html"`
}
