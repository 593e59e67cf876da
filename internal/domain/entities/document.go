package entities

import (
	"errors"
	"time"
)

// MaxRecentFiles bounds the recent-files list
const MaxRecentFiles = 10

// DefaultDocumentTitle is used when a document is created without one
const DefaultDocumentTitle = "Untitled"

// Document is one persisted markdown text
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Validate checks the fields a store requires
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("document id is required")
	}
	if d.Title == "" {
		d.Title = DefaultDocumentTitle
	}
	if d.ModifiedAt.Before(d.CreatedAt) {
		return errors.New("modified time precedes creation time")
	}
	return nil
}

// RecentFile is an entry of the recently opened list
type RecentFile struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	LastOpened time.Time `json:"last_opened"`
}

// DocumentUpdate holds optional changes; nil fields are left alone.
type DocumentUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}
