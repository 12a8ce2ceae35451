package embedder

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeHash(tt.text); got != tt.want {
				t.Errorf("ComputeHash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	if err := ValidateRequest(EmbeddingRequest{Text: "## Leave"}); err != nil {
		t.Errorf("ValidateRequest() unexpected error: %v", err)
	}
	if err := ValidateRequest(EmbeddingRequest{}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("ValidateRequest() error = %v, want %v", err, ErrEmptyText)
	}
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr bool
	}{
		{name: "valid batch", req: BatchEmbeddingRequest{Texts: []string{"a", "b"}}},
		{name: "no texts", req: BatchEmbeddingRequest{}, wantErr: true},
		{name: "empty text in batch", req: BatchEmbeddingRequest{Texts: []string{"a", ""}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBatchRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ValidateBatchRequest() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := NewCache(3)

		if _, ok := cache.Get("m", "nonexistent"); ok {
			t.Error("Expected cache miss on empty cache")
		}

		cache.Set("m", "hash1", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "hash1"})

		got, ok := cache.Get("m", "hash1")
		if !ok {
			t.Fatal("Expected cache hit")
		}
		if got.Hash != "hash1" {
			t.Errorf("Got hash %s, want hash1", got.Hash)
		}
		if cache.Size() != 1 {
			t.Errorf("Cache size = %d, want 1", cache.Size())
		}
	})

	t.Run("keys are scoped by model", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("model-a", "hash1", &Embedding{Model: "model-a"})

		if _, ok := cache.Get("model-b", "hash1"); ok {
			t.Error("Expected miss for a different model")
		}
	})

	t.Run("returned vectors are copies", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("m", "hash1", &Embedding{Vector: []float32{1, 2}})

		got, _ := cache.Get("m", "hash1")
		got.Vector[0] = 99

		again, _ := cache.Get("m", "hash1")
		if again.Vector[0] != 1 {
			t.Errorf("Cached vector mutated: %v", again.Vector)
		}
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("m", "hash1", &Embedding{Hash: "hash1"})
		cache.Set("m", "hash2", &Embedding{Hash: "hash2"})
		cache.Set("m", "hash3", &Embedding{Hash: "hash3"})

		if cache.Size() != 2 {
			t.Errorf("Cache size = %d, want 2", cache.Size())
		}
		if _, ok := cache.Get("m", "hash1"); ok {
			t.Error("Expected least recently used entry to be evicted")
		}
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("m", "hash1", &Embedding{Hash: "hash1"})
		cache.Clear()

		if cache.Size() != 0 {
			t.Errorf("Cache size after clear = %d, want 0", cache.Size())
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)

		done := make(chan bool)
		for i := 0; i < 10; i++ {
			go func(id int) {
				for j := 0; j < 100; j++ {
					hash := ComputeHash(string(rune(id*100 + j)))
					cache.Set("m", hash, &Embedding{Vector: []float32{float32(id), float32(j)}, Hash: hash})
					cache.Get("m", hash)
				}
				done <- true
			}(i)
		}
		for i := 0; i < 10; i++ {
			<-done
		}

		if cache.Size() == 0 {
			t.Error("Cache is empty after concurrent operations")
		}
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(NewCache(10))
	if err != nil {
		t.Fatalf("NewLocalProvider() error = %v", err)
	}

	t.Run("deterministic", func(t *testing.T) {
		a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "vacation policy"})
		if err != nil {
			t.Fatalf("GenerateEmbedding() error = %v", err)
		}
		p2, _ := NewLocalProvider(nil)
		b, err := p2.GenerateEmbedding(ctx, EmbeddingRequest{Text: "vacation policy"})
		if err != nil {
			t.Fatalf("GenerateEmbedding() error = %v", err)
		}
		for i := range a.Vector {
			if a.Vector[i] != b.Vector[i] {
				t.Fatalf("vectors differ at %d", i)
			}
		}
		if a.Dimension != LocalDimension || len(a.Vector) != LocalDimension {
			t.Errorf("Dimension = %d, len = %d, want %d", a.Dimension, len(a.Vector), LocalDimension)
		}
	})

	t.Run("shared words are closer", func(t *testing.T) {
		q, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "how many vacation days"})
		near, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "## Vacation\nEmployees get 20 vacation days"})
		far, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "## Pricing\nThe product costs ten dollars"})

		if dot(q.Vector, near.Vector) <= dot(q.Vector, far.Vector) {
			t.Error("Expected overlapping text to score higher")
		}
	})

	t.Run("batch preserves order", func(t *testing.T) {
		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
		if err != nil {
			t.Fatalf("GenerateBatch() error = %v", err)
		}
		one, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "one"})
		if resp.Embeddings[0].Hash != one.Hash {
			t.Error("batch order not preserved")
		}
		if resp.Provider != ProviderLocal {
			t.Errorf("Provider = %s, want %s", resp.Provider, ProviderLocal)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := p.GenerateEmbedding(cctx, EmbeddingRequest{Text: "uncached text"}); err == nil {
			t.Error("Expected error for canceled context")
		}
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeVector() = %v, want [0.6 0.8]", v)
	}

	zero := NormalizeVector([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("NormalizeVector(zero) = %v", zero)
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i] * b[i])
	}
	return s
}
