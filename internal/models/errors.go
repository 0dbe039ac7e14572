// ABOUTME: Sentinel errors shared across the pipeline
// ABOUTME: Callers classify failures with errors.Is to pick skip, fallback, or abort
package models

import "errors"

var (
	// ErrConfig indicates required configuration is missing or invalid
	ErrConfig = errors.New("invalid configuration")

	// ErrModelLoad indicates the embedding model could not be initialized (fatal)
	ErrModelLoad = errors.New("embedding model load failed")

	// ErrEncoding indicates the embedding model rejected a single input
	ErrEncoding = errors.New("embedding encoding failed")

	// ErrEmbeddingUnavailable indicates the embedding endpoint was unreachable,
	// rate limited or failed server-side; the same input may succeed later
	ErrEmbeddingUnavailable = errors.New("embedding endpoint unavailable")

	// ErrStoreUnavailable indicates the vector store could not be reached or is overloaded
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrStoreRequest indicates the vector store rejected a request
	ErrStoreRequest = errors.New("vector store request rejected")

	// ErrMalformedRecord indicates a source record is missing required fields
	ErrMalformedRecord = errors.New("malformed source record")
)
