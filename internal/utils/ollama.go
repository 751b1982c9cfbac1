package utils

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// EmbeddingDimensions 与 series.embedding 列 vector(768) 一致
const EmbeddingDimensions = 768

// EmbeddingRequest Ollama embedding API 请求结构
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse Ollama embedding API 响应结构
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaEmbedder 调用 Ollama /api/embeddings 生成向量
type OllamaEmbedder struct {
	host   string
	model  string
	client *HTTPClient
}

func NewOllamaEmbedder(host, model string) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:   host,
		model:  model,
		client: NewHTTPClient(30 * time.Second),
	}
}

// Embed 生成向量，维度不符时报错
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.PostJSON(ctx, fmt.Sprintf("%s/api/embeddings", e.host), nil, EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("post request to ollama failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned error status: %d", resp.StatusCode)
	}

	var result EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if len(result.Embedding) != EmbeddingDimensions {
		return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(result.Embedding), EmbeddingDimensions)
	}

	return result.Embedding, nil
}
