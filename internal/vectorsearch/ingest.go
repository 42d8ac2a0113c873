package vectorsearch

import (
	"context"
	"time"

	"github.com/cortexai/text2sql/internal/llm"
	"github.com/cortexai/text2sql/internal/observability"
	"github.com/rs/zerolog/log"
)

// Reader loads the documents of one source.
type Reader interface {
	Read(ctx context.Context, src Source) ([]Document, error)
}

// SourceReport summarises the ingestion of one source.
type SourceReport struct {
	Source       string `json:"source"`
	Documents    int    `json:"documents"`
	Stored       int    `json:"stored"`
	FailedChunks int    `json:"failed_chunks"`
	Error        string `json:"error,omitempty"`
}

// Ingestor embeds source documents in fixed-size chunks, one chunk at a time,
// pausing a fixed delay between chunks to stay under provider rate limits.
// A failing chunk is logged and skipped.
type Ingestor struct {
	reader    Reader
	embedder  llm.Embedder
	store     Store
	batchSize int
	delay     time.Duration
}

func NewIngestor(reader Reader, embedder llm.Embedder, store Store, batchSize int, delay time.Duration) *Ingestor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Ingestor{reader: reader, embedder: embedder, store: store, batchSize: batchSize, delay: delay}
}

// Run ingests every source in order. It only returns an error when the store
// cannot be prepared or ctx is cancelled.
func (in *Ingestor) Run(ctx context.Context, sources []Source) ([]SourceReport, error) {
	if err := in.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	reports := make([]SourceReport, 0, len(sources))
	first := true
	for _, src := range sources {
		rep := SourceReport{Source: src.Name}
		docs, err := in.reader.Read(ctx, src)
		if err != nil {
			log.Error().Err(err).Str("source", src.Name).Msg("failed to read source")
			rep.Error = err.Error()
			reports = append(reports, rep)
			continue
		}
		rep.Documents = len(docs)

		for start := 0; start < len(docs); start += in.batchSize {
			if !first {
				if err := sleep(ctx, in.delay); err != nil {
					reports = append(reports, rep)
					return reports, err
				}
			}
			first = false

			end := min(start+in.batchSize, len(docs))
			chunk := docs[start:end]
			if err := in.ingestChunk(ctx, chunk); err != nil {
				if ctx.Err() != nil {
					reports = append(reports, rep)
					return reports, ctx.Err()
				}
				log.Warn().Err(err).
					Str("source", src.Name).
					Int("from", start).
					Int("to", end).
					Msg("embedding chunk failed, skipping")
				rep.FailedChunks++
				continue
			}
			rep.Stored += len(chunk)
			observability.AddEmbeddingsIngested(src.Name, len(chunk))
		}

		log.Info().
			Str("source", src.Name).
			Int("documents", rep.Documents).
			Int("stored", rep.Stored).
			Int("failed_chunks", rep.FailedChunks).
			Msg("source ingested")
		reports = append(reports, rep)
	}
	return reports, nil
}

func (in *Ingestor) ingestChunk(ctx context.Context, chunk []Document) error {
	texts := make([]string, len(chunk))
	for i, d := range chunk {
		texts[i] = d.Content
	}
	vecs, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(chunk) {
		return llm.ErrEmbeddingMismatch
	}
	return in.store.Upsert(ctx, chunk, vecs)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
