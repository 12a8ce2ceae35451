// Package embedder turns document sections and questions into vectors.
//
// Three providers share one interface:
//
//   - ollama: a local Ollama server, native /api/embeddings endpoint (default)
//   - openai: the OpenAI embeddings API or any compatible server via base URL
//   - local: offline feature hashing, deterministic, used for tests
//
// Remote providers share an LRU cache keyed by model and text hash, split
// large requests into batches, and retry unavailable or rate-limited
// backends with exponential backoff. Invalid requests fail immediately.
//
//	emb, err := embedder.New(embedder.Config{Provider: "ollama", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{"## Leave\nTwenty days per year."},
//	})
package embedder
