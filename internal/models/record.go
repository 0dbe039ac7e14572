// ABOUTME: Source records produced by the forum scraper and the units derived from them
// ABOUTME: Defines SourceRecord, EmbeddingUnit and the unit identity scheme
package models

import (
	"fmt"
	"strings"
)

// RecordMetadata describes where a scraped post came from
type RecordMetadata struct {
	Subreddit string `json:"subreddit"`
	URL       string `json:"url"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"` // unix epoch seconds
}

// SourceRecord is one scraped post with its top-level comments
type SourceRecord struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	Body     string         `json:"body"`
	Comments []string       `json:"comments"`
	Metadata RecordMetadata `json:"metadata"`
}

// Validate checks the fields ingestion depends on
func (r *SourceRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: record id is required", ErrMalformedRecord)
	}
	return nil
}

// UnitType distinguishes a post body from one of its comments
type UnitType string

const (
	UnitTypeBody    UnitType = "body"
	UnitTypeComment UnitType = "comment"
)

// EmbeddingUnit is one embeddable span of a SourceRecord
type EmbeddingUnit struct {
	ID       string
	Type     UnitType
	PostID   string
	Index    int // comment position; -1 for the body
	Text     string
	Metadata RecordMetadata
	Title    string
}

// BodyUnitID returns the identity of a post body unit
func BodyUnitID(postID string) string {
	return postID + "-body"
}

// CommentUnitID returns the identity of the comment at position index
func CommentUnitID(postID string, index int) string {
	return fmt.Sprintf("%s-comment-%d", postID, index)
}
