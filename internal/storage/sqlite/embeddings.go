// ABOUTME: Chunk embedding storage as BLOB with cosine similarity search
// ABOUTME: One vector per chunk per embedding model
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harper/riskmem/internal/models"
)

// EmbeddingStore handles embedding persistence
type EmbeddingStore struct {
	q execer
}

// NewEmbeddingStore creates a new EmbeddingStore
func NewEmbeddingStore(q execer) *EmbeddingStore {
	return &EmbeddingStore{q: q}
}

// Save stores the chunk's vector for a model, replacing any previous vector for that pair
func (s *EmbeddingStore) Save(ctx context.Context, chunkID, model string, vector []float64) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding for chunk %s", chunkID)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO chunk_embeddings (chunk_id, model, dimension, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, model) DO UPDATE SET
			dimension = excluded.dimension,
			vector = excluded.vector,
			created_at = excluded.created_at
	`, chunkID, model, len(vector), vectorToBlob(vector), toNanos(time.Now()))
	return err
}

// Get retrieves the embedding of a chunk under a model
func (s *EmbeddingStore) Get(ctx context.Context, chunkID, model string) (*models.Embedding, error) {
	var (
		emb     models.Embedding
		blob    []byte
		created int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT chunk_id, model, vector, created_at
		FROM chunk_embeddings
		WHERE chunk_id = ? AND model = ?
	`, chunkID, model).Scan(&emb.ChunkID, &emb.Model, &blob, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding %s/%s: %w", chunkID, model, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	emb.Vector = blobToVector(blob)
	emb.CreatedAt = fromNanos(created)
	return &emb, nil
}

// Count returns how many chunks carry an embedding for the model
func (s *EmbeddingStore) Count(ctx context.Context, model string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_embeddings WHERE model = ?`, model).Scan(&n)
	return n, err
}

// SearchSimilar returns the k chunks most similar to the query vector, ordered by
// score descending then chunk ID ascending. ErrEmptyIndex when nothing is embedded under the model.
func (s *EmbeddingStore) SearchSimilar(ctx context.Context, query []float64, model string, k int) ([]models.ScoredChunk, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT c.id, c.section_id, c.document_id, c.ordinal, c.start_offset, c.end_offset, c.text, e.vector
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE e.model = ? AND e.dimension = ?
	`, model, len(query))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		results []models.ScoredChunk
		seen    int
	)
	for rows.Next() {
		var (
			c    models.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ChunkID, &c.SectionID, &c.DocumentID, &c.Ordinal, &c.Start, &c.End, &c.Text, &blob); err != nil {
			return nil, err
		}
		seen++
		results = append(results, models.ScoredChunk{
			Chunk: c,
			Score: CosineSimilarity(query, blobToVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if seen == 0 {
		return nil, models.ErrEmptyIndex
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ChunkID < results[j].Chunk.ChunkID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vector
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
