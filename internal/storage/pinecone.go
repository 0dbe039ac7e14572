// ABOUTME: Pinecone vector index built on the official go-pinecone SDK
// ABOUTME: Provisions serverless indexes, upserts in fixed-size batches and runs top-k queries
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/v5/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/models"
	"github.com/harper/forum-rag/internal/util"
)

const (
	// DefaultControllerURL is the Pinecone control plane
	DefaultControllerURL = "https://api.pinecone.io"
	// DefaultBatchSize is the number of vectors per upsert request
	DefaultBatchSize = 100

	readyPollBase = 500 * time.Millisecond
)

// Verify interface compliance
var _ core.VectorIndex = (*PineconeIndex)(nil)

// controlPlane is the part of *pinecone.Client used to provision indexes
type controlPlane interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
}

// dataPlane is the part of *pinecone.IndexConnection used for reads and writes
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

// PineconeConfig holds configuration for the Pinecone client
type PineconeConfig struct {
	APIKey        string
	IndexName     string
	ControllerURL string
	// Host skips the describe call when the data plane host is already known
	Host      string
	Cloud     string
	Region    string
	BatchSize int
	Timeout   time.Duration
}

// PineconeIndex serves one Pinecone index
type PineconeIndex struct {
	indexName string
	cloud     string
	region    string
	batchSize int
	timeout   time.Duration
	pollBase  time.Duration
	logger    *slog.Logger

	control controlPlane
	connect func(host string) (dataPlane, error)

	mu   sync.Mutex
	host string
	data dataPlane
}

// NewPineconeIndex creates a Pinecone client. No request is made until first use.
func NewPineconeIndex(cfg PineconeConfig, logger *slog.Logger) (*PineconeIndex, error) {
	if cfg.APIKey == "" || cfg.IndexName == "" {
		return nil, fmt.Errorf("%w: Pinecone API key and index name are required", models.ErrConfig)
	}
	controller := cfg.ControllerURL
	if controller == "" {
		controller = DefaultControllerURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       controller,
		RestClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating Pinecone client: %w", models.ErrConfig, err)
	}
	connect := func(host string) (dataPlane, error) {
		conn, err := client.Index(pinecone.NewIndexConnParams{Host: host})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	cfg.Timeout = timeout
	return newPineconeIndex(cfg, client, connect, logger), nil
}

func newPineconeIndex(cfg PineconeConfig, control controlPlane, connect func(string) (dataPlane, error), logger *slog.Logger) *PineconeIndex {
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	cloud := cfg.Cloud
	if cloud == "" {
		cloud = string(pinecone.Aws)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return &PineconeIndex{
		indexName: cfg.IndexName,
		cloud:     cloud,
		region:    region,
		batchSize: batchSize,
		timeout:   cfg.Timeout,
		pollBase:  readyPollBase,
		logger:    logger,
		control:   control,
		connect:   connect,
		host:      bareHost(cfg.Host),
	}
}

// EnsureIndex creates the named serverless index if it is not listed yet and
// waits until it reports ready. An existing index is left untouched.
func (p *PineconeIndex) EnsureIndex(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", models.ErrStoreRequest, dimension)
	}

	indexes, err := p.control.ListIndexes(ctx)
	if err != nil {
		return storeError("list indexes", err)
	}
	for _, idx := range indexes {
		if idx == nil || idx.Name != name {
			continue
		}
		p.logger.Debug("index already exists", "index", name)
		if name == p.indexName {
			p.setHost(idx.Host)
		}
		return nil
	}

	p.logger.Info("creating index", "index", name, "dimension", dimension, "cloud", p.cloud, "region", p.region)
	dim := int32(dimension)
	metric := pinecone.Cosine
	if _, err := p.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      name,
		Dimension: &dim,
		Metric:    &metric,
		Cloud:     pinecone.Cloud(p.cloud),
		Region:    p.region,
	}); err != nil {
		return storeError("create index "+name, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*p.timeout)
	defer cancel()
	return util.PollUntil(waitCtx, p.pollBase, func(ctx context.Context) (bool, error) {
		idx, err := p.control.DescribeIndex(ctx, name)
		if err != nil {
			return false, storeError("describe index "+name, err)
		}
		ready := idx != nil && idx.Status != nil && idx.Status.Ready
		if ready && name == p.indexName {
			p.setHost(idx.Host)
		}
		return ready, nil
	})
}

// UpsertBatch writes vectors in batches of the configured size. A failing
// batch is logged and skipped; remaining batches still run.
func (p *PineconeIndex) UpsertBatch(ctx context.Context, vectors []models.IndexedVector) models.UpsertReport {
	report := models.UpsertReport{Vectors: len(vectors)}
	if len(vectors) == 0 {
		return report
	}

	data, err := p.conn(ctx)
	if err != nil {
		p.logger.Error("cannot reach index, skipping upsert", "index", p.indexName, "error", err)
		for batch := 0; batch*p.batchSize < len(vectors); batch++ {
			report.BatchesFailed = append(report.BatchesFailed, batch)
		}
		return report
	}

	for batch, start := 0, 0; start < len(vectors); batch, start = batch+1, start+p.batchSize {
		end := min(start+p.batchSize, len(vectors))
		payload, err := toPineconeVectors(vectors[start:end])
		if err == nil {
			err = p.upsert(ctx, data, payload)
		}
		if err != nil {
			p.logger.Error("upsert batch failed", "batch", batch, "size", end-start, "error", err)
			report.BatchesFailed = append(report.BatchesFailed, batch)
			continue
		}
		report.BatchesWritten = append(report.BatchesWritten, batch)
		report.VectorsWritten += end - start
		p.logger.Debug("upserted batch", "batch", batch, "size", end-start)
	}
	return report
}

func (p *PineconeIndex) upsert(ctx context.Context, data dataPlane, payload []*pinecone.Vector) error {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := data.UpsertVectors(callCtx, payload); err != nil {
		return storeError("upsert", err)
	}
	return nil
}

// Query returns up to topK matches ordered by descending score
func (p *PineconeIndex) Query(ctx context.Context, vector []float64, topK int, includeMetadata bool) ([]models.IndexMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	data, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := data.QueryByVectorValues(callCtx, &pinecone.QueryByVectorValuesRequest{
		Vector:          toFloat32(vector),
		TopK:            uint32(topK),
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return nil, storeError("query", err)
	}

	matches := make([]models.IndexMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := models.IndexMatch{ID: m.Vector.Id, Score: float64(m.Score)}
		if m.Vector.Metadata != nil {
			match.Metadata = m.Vector.Metadata.AsMap()
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Close releases the data plane connection
func (p *PineconeIndex) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil
	}
	err := p.data.Close()
	p.data = nil
	return err
}

// conn resolves the index host once and opens a connection to it
func (p *PineconeIndex) conn(ctx context.Context) (dataPlane, error) {
	p.mu.Lock()
	data, host := p.data, p.host
	p.mu.Unlock()
	if data != nil {
		return data, nil
	}

	if host == "" {
		idx, err := p.control.DescribeIndex(ctx, p.indexName)
		if err != nil {
			return nil, storeError("describe index "+p.indexName, err)
		}
		if idx == nil || idx.Host == "" {
			return nil, fmt.Errorf("%w: index %s has no host yet", models.ErrStoreUnavailable, p.indexName)
		}
		host = bareHost(idx.Host)
	}

	conn, err := p.connect(host)
	if err != nil {
		return nil, storeError("connect to "+host, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data != nil {
		_ = conn.Close()
		return p.data, nil
	}
	p.host, p.data = host, conn
	return conn, nil
}

func (p *PineconeIndex) setHost(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = bareHost(host)
}

// Host returns the resolved data plane host, if known
func (p *PineconeIndex) Host() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host
}

// bareHost strips the scheme and trailing slash the describe call or a
// config value may carry
func bareHost(host string) string {
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	return strings.TrimRight(host, "/")
}

func toPineconeVectors(vectors []models.IndexedVector) ([]*pinecone.Vector, error) {
	out := make([]*pinecone.Vector, 0, len(vectors))
	for _, v := range vectors {
		values := toFloat32(v.Values)
		pv := &pinecone.Vector{Id: v.ID, Values: &values}
		if len(v.Metadata) > 0 {
			meta, err := structpb.NewStruct(v.Metadata)
			if err != nil {
				return nil, fmt.Errorf("%w: metadata for %s: %w", models.ErrStoreRequest, v.ID, err)
			}
			pv.Metadata = meta
		}
		out = append(out, pv)
	}
	return out, nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// storeError tags an SDK failure with ErrStoreUnavailable when retrying later
// could succeed and ErrStoreRequest otherwise
func storeError(op string, err error) error {
	sentinel := models.ErrStoreRequest
	if transient(err) {
		sentinel = models.ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %s: %w", sentinel, op, err)
}

func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var pcErr *pinecone.PineconeError
	if errors.As(err, &pcErr) {
		return pcErr.Code == http.StatusTooManyRequests || pcErr.Code >= http.StatusInternalServerError
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
