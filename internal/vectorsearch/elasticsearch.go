package vectorsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ESConfig configures the Elasticsearch content index.
type ESConfig struct {
	Addresses   []string
	Username    string
	Password    string
	VerifyCerts bool
	MaxRetries  int
	Index       string
	Dimensions  int
}

// ESStore keeps content embeddings in an Elasticsearch dense_vector index
// and ranks them with approximate kNN.
type ESStore struct {
	client     *elasticsearch.Client
	index      string
	dimensions int
}

func NewESStore(cfg ESConfig) (*ESStore, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - cert verification disabled by config
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &ESStore{client: client, index: cfg.Index, dimensions: cfg.Dimensions}, nil
}

func (s *ESStore) Backend() string { return "elasticsearch" }

// Ping checks the cluster is reachable.
func (s *ESStore) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// EnsureSchema creates the index with a cosine dense_vector mapping when it
// does not exist yet.
func (s *ESStore) EnsureSchema(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: %s", s.index, res.Status())
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"source_table": map[string]any{"type": "keyword"},
				"source_id":    map[string]any{"type": "long"},
				"content":      map[string]any{"type": "text"},
				"metadata":     map[string]any{"type": "object", "enabled": false},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       s.dimensions,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	res, err = s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if _, err := decodeBody(res.Body, res.Status()); err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	return nil
}

type esDoc struct {
	SourceTable string         `json:"source_table"`
	SourceID    int64          `json:"source_id"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
	Embedding   []float32      `json:"embedding,omitempty"`
}

func docID(source string, id int64) string {
	return source + ":" + strconv.FormatInt(id, 10)
}

// Upsert indexes docs with the bulk API. Document ids are
// "<source_table>:<source_id>" so re-ingesting replaces the old vector.
func (s *ESStore) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("upsert: %d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, d := range docs {
		action := map[string]any{"index": map[string]any{"_index": s.index, "_id": docID(d.SourceTable, d.SourceID)}}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(esDoc{
			SourceTable: d.SourceTable,
			SourceID:    d.SourceID,
			Content:     d.Content,
			Metadata:    metadataOrEmpty(d.Metadata),
			Embedding:   vectors[i],
		}); err != nil {
			return err
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	raw, err := decodeBody(res.Body, res.Status())
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	if failed, _ := raw["errors"].(bool); failed {
		return fmt.Errorf("bulk index: %s", firstBulkError(raw))
	}
	return nil
}

func (s *ESStore) Search(ctx context.Context, vector []float32, k int, source string) ([]Match, error) {
	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   vector,
		"k":              k,
		"num_candidates": max(k*10, 100),
	}
	if source != "" {
		knn["filter"] = map[string]any{"term": map[string]any{"source_table": source}}
	}
	body, err := json.Marshal(map[string]any{
		"knn":     knn,
		"size":    k,
		"_source": []string{"source_table", "source_id", "content", "metadata"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	}
	res, err := s.client.Search(opts...)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		_, err := decodeBody(res.Body, res.Status())
		return nil, err
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source esDoc   `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	matches := make([]Match, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		// cosine _score is (1 + cos) / 2
		sim := 2*h.Score - 1
		matches = append(matches, Match{
			SourceTable: h.Source.SourceTable,
			SourceID:    h.Source.SourceID,
			Content:     h.Source.Content,
			Metadata:    h.Source.Metadata,
			Similarity:  sim,
			Distance:    1 - sim,
		})
	}
	return matches, nil
}

func decodeBody(r io.Reader, status string) (map[string]any, error) {
	var result map[string]any
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}

func firstBulkError(raw map[string]any) string {
	items, _ := raw["items"].([]any)
	for _, it := range items {
		m, _ := it.(map[string]any)
		for _, op := range m {
			opm, _ := op.(map[string]any)
			if e, ok := opm["error"]; ok {
				return fmt.Sprintf("%v", e)
			}
		}
	}
	return "unknown item error"
}
