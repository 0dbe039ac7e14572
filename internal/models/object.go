// ABOUTME: Object storage listing entries used for source file selection
// ABOUTME: Carries the key and last-modified time needed for latest-only ingestion
package models

import "time"

// ObjectInfo describes one stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
