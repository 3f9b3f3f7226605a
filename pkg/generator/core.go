package generator

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// NewGenAIProvider は Gemini API バックエンドの genai.Client を作成し、
// ContentGenerator として利用できる Models を返します。
func NewGenAIProvider(ctx context.Context, apiKey string) (ContentGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("apiKey is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genaiクライアントの作成に失敗しました: %w", err)
	}
	return client.Models, nil
}
