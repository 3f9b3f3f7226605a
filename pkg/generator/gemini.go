package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
	"google.golang.org/genai"
)

// GeminiGenerator は画像編集 (EditImage) とテキストからの画像生成 (GenerateImage) を担当します。
// 状態を持たず、失敗はリトライせずにそのまま呼び出し元へ返します。
type GeminiGenerator struct {
	provider ContentGenerator
	opts     Options
}

// NewGeminiGenerator は GeminiGenerator を初期化します。
func NewGeminiGenerator(provider ContentGenerator, opts Options) (*GeminiGenerator, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider (ContentGenerator) is required")
	}
	return &GeminiGenerator{
		provider: provider,
		opts:     opts.withDefaults(),
	}, nil
}

// EditImage は入力画像と指示文を送信し、編集後の画像を DataURL で返します。
func (g *GeminiGenerator) EditImage(ctx context.Context, req domain.EditRequest) (url domain.DataURL, err error) {
	defer recoverAsUnknown(ctx, &err, editUnknownMessage)

	if err := req.Validate(g.opts.MaxPromptLength); err != nil {
		return "", err
	}

	requestID := uuid.NewString()
	mimeType, data := imgutil.ShrinkForUpload(req.Image.MIMEType, req.Image.Data, g.opts.CompressThreshold, g.opts.CompressQuality)
	instruction := buildEditInstruction(req.Prompt, req.TargetWidth, req.TargetHeight)

	slog.InfoContext(ctx, "画像編集をリクエストします",
		"request_id", requestID,
		"model", g.opts.EditModel,
		"mime_type", mimeType,
		"bytes", len(data),
		"resolution", req.HasResolution(),
		"prompt", truncate(req.Prompt, 50),
	)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
	}

	resp, err := g.provider.GenerateContent(ctx, g.opts.EditModel, contents, config)
	if err != nil {
		slog.ErrorContext(ctx, "Gemini API の呼び出しに失敗しました", "request_id", requestID, "error", err)
		return "", domain.NewTransportError(err)
	}

	url, err = parseEditResponse(ctx, resp)
	if err != nil {
		slog.WarnContext(ctx, "画像編集の結果を取得できませんでした", "request_id", requestID, "error", err)
		return "", err
	}

	slog.InfoContext(ctx, "画像編集が完了しました", "request_id", requestID)
	return url, nil
}

// GenerateImage はプロンプトから PNG 画像を 1 枚生成し、DataURL で返します。
func (g *GeminiGenerator) GenerateImage(ctx context.Context, req domain.GenerateRequest) (url domain.DataURL, err error) {
	defer recoverAsUnknown(ctx, &err, generateUnknownMessage)

	if err := req.Validate(g.opts.MaxPromptLength); err != nil {
		return "", err
	}
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = domain.AspectSquare
	}

	requestID := uuid.NewString()
	slog.InfoContext(ctx, "画像生成をリクエストします",
		"request_id", requestID,
		"model", g.opts.GenerateModel,
		"aspect_ratio", aspectRatio,
		"prompt", truncate(req.Prompt, 50),
	)

	resp, err := g.provider.GenerateImages(ctx, g.opts.GenerateModel, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: generateOutputMIMEType,
		AspectRatio:    string(aspectRatio),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Imagen API の呼び出しに失敗しました", "request_id", requestID, "error", err)
		return "", domain.NewTransportError(err)
	}

	url, err = parseGenerateResponse(resp)
	if err != nil {
		slog.WarnContext(ctx, "画像生成の結果を取得できませんでした", "request_id", requestID, "error", err)
		return "", err
	}

	slog.InfoContext(ctx, "画像生成が完了しました", "request_id", requestID)
	return url, nil
}
