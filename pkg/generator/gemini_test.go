package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var testImage = domain.ImageAsset{MIMEType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nfake")}

func newTestGenerator(t *testing.T, p *mockProvider) *GeminiGenerator {
	t.Helper()
	g, err := NewGeminiGenerator(p, Options{})
	require.NoError(t, err)
	return g
}

func TestNewGeminiGenerator(t *testing.T) {
	t.Run("nilチェック: providerがなければエラー", func(t *testing.T) {
		_, err := NewGeminiGenerator(nil, Options{})
		assert.Error(t, err)
	})

	t.Run("既定のモデル名が補われる", func(t *testing.T) {
		g, err := NewGeminiGenerator(&mockProvider{}, Options{})
		require.NoError(t, err)
		assert.Equal(t, DefaultEditModel, g.opts.EditModel)
		assert.Equal(t, DefaultGenerateModel, g.opts.GenerateModel)
		assert.Equal(t, DefaultCompressionQuality, g.opts.CompressQuality)
	})
}

func TestGeminiGenerator_EditImage(t *testing.T) {
	ctx := context.Background()

	t.Run("成功: 画像と指示文が送られ、DataURLが返る", func(t *testing.T) {
		p := &mockProvider{
			generateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				assert.Equal(t, DefaultEditModel, model)
				require.Len(t, contents, 1)
				parts := contents[0].Parts
				require.Len(t, parts, 2)
				assert.Equal(t, testImage.Data, parts[0].InlineData.Data)
				assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
				assert.Contains(t, parts[1].Text, `"add snow"`)
				assert.Contains(t, parts[1].Text, "1920x1080")
				assert.ElementsMatch(t, []string{"IMAGE", "TEXT"}, config.ResponseModalities)
				return imageResponse("image/jpeg", []byte{1, 2, 3}), nil
			},
		}
		g := newTestGenerator(t, p)

		url, err := g.EditImage(ctx, domain.EditRequest{Image: testImage, Prompt: "add snow", TargetWidth: 1920, TargetHeight: 1080})
		require.NoError(t, err)
		assert.Equal(t, domain.DataURL("data:image/jpeg;base64,AQID"), url)
	})

	t.Run("検証エラーはネットワークを呼ばない", func(t *testing.T) {
		p := &mockProvider{}
		g := newTestGenerator(t, p)

		_, err := g.EditImage(ctx, domain.EditRequest{Image: testImage, TargetWidth: 1920})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Zero(t, p.contentCalls)
	})

	t.Run("ブロック理由は正規化されてBlockedErrorになる", func(t *testing.T) {
		p := &mockProvider{
			generateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				resp := imageResponse("image/png", []byte("ignored"))
				resp.PromptFeedback = &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY_VIOLATION"}
				return resp, nil
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.EditImage(ctx, domain.EditRequest{Image: testImage, Prompt: "x"})
		require.ErrorIs(t, err, domain.ErrBlocked)
		assert.Contains(t, err.Error(), "safety violation")

		var de *domain.Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "safety violation", de.Reason)
	})

	t.Run("テキストのみの応答はNoImageErrorにテキストが入る", func(t *testing.T) {
		p := &mockProvider{
			generateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse("  I can't edit faces.  "), nil
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.EditImage(ctx, domain.EditRequest{Image: testImage, Prompt: "x"})
		require.ErrorIs(t, err, domain.ErrNoImage)
		assert.Equal(t, `The AI didn't return an image. It said: "I can't edit faces."`, err.Error())
	})

	t.Run("空の応答は汎用のNoImageError", func(t *testing.T) {
		p := &mockProvider{
			generateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{}, nil
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.EditImage(ctx, domain.EditRequest{Image: testImage, Prompt: "x"})
		require.ErrorIs(t, err, domain.ErrNoImage)
		assert.Equal(t, editFailedMessage, err.Error())
	})

	t.Run("通信エラーはメッセージそのままでTransportError", func(t *testing.T) {
		p := &mockProvider{
			generateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("quota exceeded")
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.EditImage(ctx, domain.EditRequest{Image: testImage, Prompt: "x"})
		require.ErrorIs(t, err, domain.ErrTransport)
		assert.Equal(t, "quota exceeded", err.Error())
	})

	t.Run("プロバイダ内のpanicはUnknownError", func(t *testing.T) {
		p := &mockProvider{
			generateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				panic("boom")
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.EditImage(ctx, domain.EditRequest{Image: testImage, Prompt: "x"})
		require.ErrorIs(t, err, domain.ErrUnknown)
		assert.Equal(t, editUnknownMessage, err.Error())
	})
}

func TestGeminiGenerator_GenerateImage(t *testing.T) {
	ctx := context.Background()

	t.Run("成功: 1枚のPNGをアスペクト比つきで要求する", func(t *testing.T) {
		payload := []byte("png-bytes")
		p := &mockProvider{
			generateImagesFunc: func(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
				assert.Equal(t, DefaultGenerateModel, model)
				assert.Equal(t, "a red apple", prompt)
				assert.EqualValues(t, 1, config.NumberOfImages)
				assert.Equal(t, "image/png", config.OutputMIMEType)
				assert.Equal(t, "1:1", config.AspectRatio)
				return &genai.GenerateImagesResponse{
					GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: payload}}},
				}, nil
			},
		}
		g := newTestGenerator(t, p)

		url, err := g.GenerateImage(ctx, domain.GenerateRequest{Prompt: "a red apple", AspectRatio: domain.AspectSquare})
		require.NoError(t, err)
		assert.Equal(t, domain.DataURL("data:image/png;base64,"+base64.StdEncoding.EncodeToString(payload)), url)
	})

	t.Run("空のプロンプトはネットワークを呼ばない", func(t *testing.T) {
		p := &mockProvider{}
		g := newTestGenerator(t, p)

		_, err := g.GenerateImage(ctx, domain.GenerateRequest{AspectRatio: domain.AspectSquare})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Zero(t, p.imagesCalls)
	})

	t.Run("画像0枚はNoImageError", func(t *testing.T) {
		p := &mockProvider{
			generateImagesFunc: func(context.Context, string, string, *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
				return &genai.GenerateImagesResponse{}, nil
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.GenerateImage(ctx, domain.GenerateRequest{Prompt: "x"})
		require.ErrorIs(t, err, domain.ErrNoImage)
		assert.Equal(t, generateFailedMessage, err.Error())
	})

	t.Run("フィルタされた画像はBlockedError", func(t *testing.T) {
		p := &mockProvider{
			generateImagesFunc: func(context.Context, string, string, *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
				return &genai.GenerateImagesResponse{
					GeneratedImages: []*genai.GeneratedImage{{RAIFilteredReason: "PROHIBITED_CONTENT"}},
				}, nil
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.GenerateImage(ctx, domain.GenerateRequest{Prompt: "x"})
		require.ErrorIs(t, err, domain.ErrBlocked)
		assert.Contains(t, err.Error(), "prohibited content")
	})

	t.Run("通信エラーはTransportError", func(t *testing.T) {
		p := &mockProvider{
			generateImagesFunc: func(context.Context, string, string, *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
				return nil, errors.New("503 service unavailable")
			},
		}
		g := newTestGenerator(t, p)

		_, err := g.GenerateImage(ctx, domain.GenerateRequest{Prompt: "x", AspectRatio: domain.AspectWidescreen})
		require.ErrorIs(t, err, domain.ErrTransport)
		assert.Equal(t, "503 service unavailable", err.Error())
	})
}
