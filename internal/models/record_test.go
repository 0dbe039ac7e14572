// ABOUTME: Tests for source records and embedding unit identity
// ABOUTME: Verifies unit id formats and record validation
package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestUnitIDs(t *testing.T) {
	if got := BodyUnitID("abc123"); got != "abc123-body" {
		t.Errorf("BodyUnitID() = %s, want abc123-body", got)
	}
	if got := CommentUnitID("abc123", 0); got != "abc123-comment-0" {
		t.Errorf("CommentUnitID(0) = %s, want abc123-comment-0", got)
	}
	if got := CommentUnitID("abc123", 4); got != "abc123-comment-4" {
		t.Errorf("CommentUnitID(4) = %s, want abc123-comment-4", got)
	}
}

func TestSourceRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  SourceRecord
		wantErr bool
	}{
		{"valid", SourceRecord{ID: "p1"}, false},
		{"empty id", SourceRecord{ID: ""}, true},
		{"whitespace id", SourceRecord{ID: "   "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("Validate() error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestSourceRecord_DecodeScraperJSON(t *testing.T) {
	data := `[{
		"id": "1abcde",
		"title": "Strength build help",
		"body": "Looking for a [guide](https://example.com)",
		"comments": ["Use greatsword", "Level vigor"],
		"metadata": {"subreddit": "EldenringBuilds", "url": "https://reddit.com/r/x", "author": "tarnished", "timestamp": 1700000000}
	}]`

	var records []SourceRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.ID != "1abcde" || r.Title != "Strength build help" {
		t.Errorf("unexpected identity fields: %+v", r)
	}
	if len(r.Comments) != 2 || r.Comments[1] != "Level vigor" {
		t.Errorf("Comments = %v", r.Comments)
	}
	if r.Metadata.Timestamp != 1700000000 || r.Metadata.Author != "tarnished" {
		t.Errorf("Metadata = %+v", r.Metadata)
	}
}
