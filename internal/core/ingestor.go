// ABOUTME: Ingestor builds the parent and chunk stores from a submitted document
// ABOUTME: Segments, chunks, embeds concurrently, then writes everything in one transaction
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harper/riskmem/internal/metrics"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
	"github.com/harper/riskmem/internal/util"
	"golang.org/x/sync/errgroup"
)

// IngestResult is everything one ingestion stored
type IngestResult struct {
	Document models.Document  `json:"document"`
	Sections []models.Section `json:"sections"`
	Chunks   []models.Chunk   `json:"chunks"`
}

// Ingestor writes documents into the chunk and parent stores
type Ingestor struct {
	store       *sqlite.Storage
	segmenter   *Segmenter
	chunker     *ChunkEngine
	embedder    Embedder
	concurrency int
	locks       *util.KeyedMutex
	logger      *log.Logger
	now         func() time.Time
}

// NewIngestor creates an Ingestor
func NewIngestor(store *sqlite.Storage, segmenter *Segmenter, chunker *ChunkEngine, embedder Embedder, concurrency int) *Ingestor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Ingestor{
		store:       store,
		segmenter:   segmenter,
		chunker:     chunker,
		embedder:    embedder,
		concurrency: concurrency,
		locks:       util.NewKeyedMutex(),
		logger:      log.WithPrefix("ingest"),
		now:         time.Now,
	}
}

// Ingest segments, chunks and embeds a document and stores it. A document with
// an existing ID is replaced. On any failure nothing is stored.
func (in *Ingestor) Ingest(ctx context.Context, body string, meta models.DocumentMeta) (*IngestResult, error) {
	docID := meta.ID
	if docID == "" {
		docID = "doc_" + uuid.New().String()
	}

	unlock := in.locks.Lock(docID)
	defer unlock()

	now := in.now().UTC()
	doc := models.Document{
		ID:         docID,
		Title:      meta.Title,
		Source:     meta.Source,
		Body:       body,
		Metadata:   meta.Metadata,
		IngestedAt: now,
	}
	if doc.Title == "" {
		doc.Title = docID
	}

	sections, err := in.segmenter.Segment(docID, body, now)
	if err != nil {
		metrics.IngestFailures.WithLabelValues("malformed").Inc()
		return nil, err
	}

	var chunks []models.Chunk
	for _, sec := range sections {
		chunks = append(chunks, in.chunker.ChunkSection(sec)...)
	}

	if err := in.embedChunks(ctx, chunks); err != nil {
		metrics.IngestFailures.WithLabelValues("embedding").Inc()
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	model := in.embedder.Model()
	err = in.store.InTx(ctx, func(tx *sqlite.Stores) error {
		if err := tx.Documents.Delete(ctx, docID); err != nil && !errors.Is(err, models.ErrDocumentNotFound) {
			return fmt.Errorf("failed to replace document: %w", err)
		}
		if err := tx.Documents.Save(ctx, &doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		for i := range sections {
			if err := tx.Sections.Save(ctx, &sections[i]); err != nil {
				return fmt.Errorf("failed to save section: %w", err)
			}
		}
		for i := range chunks {
			if err := tx.Chunks.Save(ctx, &chunks[i]); err != nil {
				return fmt.Errorf("failed to save chunk: %w", err)
			}
			if err := tx.Embeddings.Save(ctx, chunks[i].ChunkID, model, chunks[i].Embedding); err != nil {
				return fmt.Errorf("failed to save embedding: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.IngestFailures.WithLabelValues("storage").Inc()
		return nil, err
	}

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIngested.Add(float64(len(chunks)))
	in.logger.Info("document ingested", "document", docID, "sections", len(sections), "chunks", len(chunks), "policy", in.segmenter.Policy())

	return &IngestResult{Document: doc, Sections: sections, Chunks: chunks}, nil
}

// Delete removes a document and everything derived from it
func (in *Ingestor) Delete(ctx context.Context, docID string) error {
	unlock := in.locks.Lock(docID)
	defer unlock()

	if err := in.store.Documents.Delete(ctx, docID); err != nil {
		return err
	}
	in.logger.Info("document deleted", "document", docID)
	return nil
}

func (in *Ingestor) embedChunks(ctx context.Context, chunks []models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)

	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := in.embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("chunk %d of section %s: %w", chunks[i].Ordinal, chunks[i].SectionID, err)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	return g.Wait()
}
