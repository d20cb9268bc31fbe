package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docindexer/backend/pkg/logger"
)

const defaultBatchSize = 100

// Document is one index entry: an enriched document chunk or a policy
// clause. Severity is 0 for non-policy chunks.
type Document struct {
	ID          string
	Title       string
	Text        string
	Summary     string
	Keyphrases  []string
	Filename    string
	ChunkIndex  int64
	Method      string
	ContentHash string
	Severity    int64
	Embedding   []float32
	Timestamp   time.Time
}

// UploadResult reports the outcome for one document of a batch operation.
type UploadResult struct {
	ID        string
	Succeeded bool
	Err       error
}

// Client publishes documents to a Milvus collection.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
	batchSize      int
}

func NewClient(endpoint, collectionName string, vectorDim, batchSize int) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("index: endpoint is required")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Search index client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
		batchSize:      batchSize,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnsureCollection creates and loads the collection if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context) error {
	has, err := c.client.HasCollection(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		logger.Info("Collection already exists", zap.String("collection", c.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: c.collectionName,
		Description:    "Document chunk and policy clause embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", c.vectorDim)},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "16384"},
			},
			{
				Name:       "title",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "summary",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "2048"},
			},
			{
				Name:       "keyphrases",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "2048"},
			},
			{
				Name:       "filename",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       "method",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "content_hash",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:     "severity",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := c.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := c.client.CreateIndex(ctx, c.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := c.client.LoadCollection(ctx, c.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", c.collectionName))
	return nil
}

// Upload inserts documents in batches of at most batchSize and reports a
// per-document outcome. A failed batch marks only that batch's documents
// failed; later batches still run.
func (c *Client) Upload(ctx context.Context, docs []Document) []UploadResult {
	results := make([]UploadResult, 0, len(docs))

	for start := 0; start < len(docs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		err := c.insertBatch(ctx, batch)
		for _, d := range batch {
			results = append(results, UploadResult{ID: d.ID, Succeeded: err == nil, Err: err})
		}
		if err != nil {
			logger.Error("Index batch upload failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		}
	}

	if err := c.client.Flush(ctx, c.collectionName, false); err != nil {
		logger.Warn("Index flush failed", zap.Error(err))
	}

	return results
}

func (c *Client) insertBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	texts := make([]string, len(docs))
	titles := make([]string, len(docs))
	summaries := make([]string, len(docs))
	keyphrases := make([]string, len(docs))
	filenames := make([]string, len(docs))
	chunkIndexes := make([]int64, len(docs))
	methods := make([]string, len(docs))
	hashes := make([]string, len(docs))
	severities := make([]int64, len(docs))
	timestamps := make([]int64, len(docs))

	for i, d := range docs {
		ids[i] = d.ID
		embeddings[i] = d.Embedding
		texts[i] = d.Text
		titles[i] = d.Title
		summaries[i] = d.Summary
		keyphrases[i] = marshalKeyphrases(d.Keyphrases)
		filenames[i] = d.Filename
		chunkIndexes[i] = d.ChunkIndex
		methods[i] = d.Method
		hashes[i] = d.ContentHash
		severities[i] = d.Severity
		ts := d.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		timestamps[i] = ts.Unix()
	}

	_, err := c.client.Insert(
		ctx,
		c.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", c.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("summary", summaries),
		entity.NewColumnVarChar("keyphrases", keyphrases),
		entity.NewColumnVarChar("filename", filenames),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("method", methods),
		entity.NewColumnVarChar("content_hash", hashes),
		entity.NewColumnInt64("severity", severities),
		entity.NewColumnInt64("timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}

	logger.Info("Documents inserted into search index", zap.Int("count", len(docs)))
	return nil
}

// Delete removes documents by primary key, batched like Upload.
func (c *Client) Delete(ctx context.Context, ids []string) []UploadResult {
	results := make([]UploadResult, 0, len(ids))

	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		err := c.client.DeleteByPks(ctx, c.collectionName, "",
			entity.NewColumnVarChar("chunk_id", batch))
		for _, id := range batch {
			results = append(results, UploadResult{ID: id, Succeeded: err == nil, Err: err})
		}
		if err != nil {
			logger.Error("Index batch delete failed",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		}
	}

	return results
}

// ChunkIDs returns the ids of indexed chunks for a filename, optionally
// narrowed to one content hash (one version of the document).
func (c *Client) ChunkIDs(ctx context.Context, filename, contentHash string) ([]string, error) {
	expr := fmt.Sprintf(`filename == "%s"`, escapeExpr(filename))
	if contentHash != "" {
		expr += fmt.Sprintf(` && content_hash == "%s"`, escapeExpr(contentHash))
	}

	rs, err := c.client.Query(ctx, c.collectionName, nil, expr, []string{"chunk_id"})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk ids: %w", err)
	}

	col := rs.GetColumn("chunk_id")
	if col == nil {
		return nil, nil
	}

	ids := make([]string, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		v, err := col.Get(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk id: %w", err)
		}
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

func marshalKeyphrases(phrases []string) string {
	if len(phrases) == 0 {
		return "[]"
	}
	data, err := json.Marshal(phrases)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func escapeExpr(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
