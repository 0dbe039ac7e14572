// ABOUTME: In-memory fakes for the embedder, vector index, completer and object store
// ABOUTME: Shared by package tests so pipeline behavior can be exercised without network services
package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/harper/forum-rag/internal/models"
	"github.com/harper/forum-rag/internal/util"
)

// FakeEmbedder maps text to a deterministic letter-frequency vector.
// Vectors and Errors override the result for exact inputs.
type FakeEmbedder struct {
	Dim     int
	Name    string
	Vectors map[string][]float64
	Errors  map[string]error
	// Err fails every call when set
	Err error

	mu    sync.Mutex
	Calls []string
}

// NewFakeEmbedder creates a FakeEmbedder with the given dimension
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{
		Dim:     dim,
		Name:    "fake-embedder",
		Vectors: map[string][]float64{},
		Errors:  map[string]error{},
	}
}

func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, text)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if err, ok := f.Errors[text]; ok {
		return nil, err
	}
	if v, ok := f.Vectors[text]; ok {
		return slices.Clone(v), nil
	}

	vec := make([]float64, f.Dim)
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			vec[int(r)%f.Dim]++
		}
	}
	return vec, nil
}

func (f *FakeEmbedder) Model() string  { return f.Name }
func (f *FakeEmbedder) Dimension() int { return f.Dim }

// CallCount returns how many times Embed was called
func (f *FakeEmbedder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// MemoryIndex is an in-memory vector index with cosine scoring
type MemoryIndex struct {
	BatchSize int
	// FailBatches marks 0-based batch numbers that fail on upsert
	FailBatches map[int]bool
	// Matches, when set, is returned by Query instead of scoring stored vectors
	Matches  []models.IndexMatch
	QueryErr error

	mu      sync.Mutex
	vectors map[string]models.IndexedVector
	indexes map[string]int
	Queries []int
}

// NewMemoryIndex creates an empty MemoryIndex with batches of 100
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		BatchSize:   100,
		FailBatches: map[int]bool{},
		vectors:     map[string]models.IndexedVector{},
		indexes:     map[string]int{},
	}
}

func (m *MemoryIndex) EnsureIndex(_ context.Context, name string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[name]; !ok {
		m.indexes[name] = dimension
	}
	return nil
}

// Indexes returns the names of indexes created so far
func (m *MemoryIndex) Indexes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.indexes))
	for n := range m.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *MemoryIndex) UpsertBatch(_ context.Context, vectors []models.IndexedVector) models.UpsertReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := models.UpsertReport{Vectors: len(vectors)}
	for batch, start := 0, 0; start < len(vectors); batch, start = batch+1, start+m.BatchSize {
		end := min(start+m.BatchSize, len(vectors))
		if m.FailBatches[batch] {
			report.BatchesFailed = append(report.BatchesFailed, batch)
			continue
		}
		for _, v := range vectors[start:end] {
			m.vectors[v.ID] = v
		}
		report.VectorsWritten += end - start
		report.BatchesWritten = append(report.BatchesWritten, batch)
	}
	return report
}

func (m *MemoryIndex) Query(_ context.Context, vector []float64, topK int, includeMetadata bool) ([]models.IndexMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, topK)

	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if m.Matches != nil {
		return slices.Clone(m.Matches[:min(topK, len(m.Matches))]), nil
	}

	matches := make([]models.IndexMatch, 0, len(m.vectors))
	for _, v := range m.vectors {
		match := models.IndexMatch{ID: v.ID, Score: util.CosineSimilarity(vector, v.Values)}
		if includeMetadata {
			match.Metadata = v.Metadata
		}
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	return matches[:min(topK, len(matches))], nil
}

// Len returns the number of stored vectors
func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vectors)
}

// Get returns a stored vector by id
func (m *MemoryIndex) Get(id string) (models.IndexedVector, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vectors[id]
	return v, ok
}

// FakeCompleter answers prompts with Reply or with Respond when set
type FakeCompleter struct {
	Name    string
	Reply   string
	Err     error
	Respond func(req models.CompletionRequest) (string, error)

	mu    sync.Mutex
	Calls []models.CompletionRequest
}

// NewFakeCompleter creates a FakeCompleter that always returns reply
func NewFakeCompleter(reply string) *FakeCompleter {
	return &FakeCompleter{Name: "fake-model", Reply: reply}
}

func (f *FakeCompleter) Complete(_ context.Context, req models.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.mu.Unlock()

	if f.Respond != nil {
		return f.Respond(req)
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

func (f *FakeCompleter) Model() string { return f.Name }

// LastCall returns the most recent request
func (f *FakeCompleter) LastCall() (models.CompletionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return models.CompletionRequest{}, false
	}
	return f.Calls[len(f.Calls)-1], true
}

// ErrObjectNotFound is returned by MemoryObjects.Get for unknown keys
var ErrObjectNotFound = errors.New("object not found")

type memoryObject struct {
	body     []byte
	modified time.Time
}

// MemoryObjects is an in-memory object store
type MemoryObjects struct {
	PutErr error

	mu      sync.Mutex
	objects map[string]memoryObject
}

// NewMemoryObjects creates an empty MemoryObjects
func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: map[string]memoryObject{}}
}

// Add stores an object with an explicit modification time
func (m *MemoryObjects) Add(key string, body []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: body, modified: modified}
}

func (m *MemoryObjects) List(_ context.Context, prefix string) ([]models.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, models.ObjectInfo{Key: key, Size: int64(len(obj.body)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return slices.Clone(obj.body), nil
}

func (m *MemoryObjects) Put(_ context.Context, key string, body []byte, _ string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.Add(key, slices.Clone(body), time.Now())
	return nil
}

// Keys returns all stored keys in order
func (m *MemoryObjects) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
