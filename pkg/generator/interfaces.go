package generator

import (
	"context"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"google.golang.org/genai"
)

// ContentGenerator は生成AIプロバイダへの 2 種類の呼び出しを抽象化するポートです。
// genai.Client の Models がそのまま満たします。テストではモックに差し替えます。
type ContentGenerator interface {
	// GenerateContent はマルチモーダルモデルに画像とテキストを送信します（画像編集）。
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	// GenerateImages はテキストから画像を生成します。
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// ImageGenerator はビューステート層が利用する統合窓口です。
type ImageGenerator interface {
	EditImage(ctx context.Context, req domain.EditRequest) (domain.DataURL, error)
	GenerateImage(ctx context.Context, req domain.GenerateRequest) (domain.DataURL, error)
}
