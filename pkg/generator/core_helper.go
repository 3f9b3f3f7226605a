package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
	"google.golang.org/genai"
)

const editInstructionPreamble = "You are an expert image editor. Your task is to modify the provided image."

const editInstructionBody = " To achieve the desired result, you may need to expand the canvas (generative outpainting), crop, shrink, or otherwise alter the resolution." +
	" You must contextually fill any new areas to perfectly match the original image's style, lighting, and quality." +
	" If cropping or shrinking, you should intelligently select the most important part of the image to keep." +
	" It is essential that you generate a new, altered image and DO NOT return the original." +
	" The final image should be a seamless, high-quality composition."

// buildEditInstruction は編集モデルに渡す指示文を組み立てます。
// 解像度は width と height の両方が正のときだけ指定します。
func buildEditInstruction(prompt string, width, height int) string {
	var b strings.Builder
	b.WriteString(editInstructionPreamble)
	if prompt != "" {
		fmt.Fprintf(&b, " The user's primary instruction is: \"%s\".", prompt)
	}
	if width > 0 && height > 0 {
		fmt.Fprintf(&b, " Critically, you must ensure the final output image has a resolution of exactly %dx%d pixels.", width, height)
	}
	b.WriteString(editInstructionBody)
	return b.String()
}

// parseEditResponse は編集レスポンスを解析します。
// 優先順位: ブロック > 画像パーツ > 説明テキスト > 汎用エラー
func parseEditResponse(ctx context.Context, resp *genai.GenerateContentResponse) (domain.DataURL, error) {
	if resp == nil {
		return "", domain.NewNoImageError("", editFailedMessage)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", domain.NewBlockedError(normalizeReason(string(fb.BlockReason)))
	}

	// 最初の候補 (Candidate) のみを利用する。
	var candidate *genai.Candidate
	if len(resp.Candidates) > 0 {
		candidate = resp.Candidates[0]
	}

	var texts []string
	if candidate != nil && candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return imgutil.FormatDataURL(mimeType, base64.StdEncoding.EncodeToString(part.InlineData.Data)), nil
			}
			if part.Text != "" && !part.Thought {
				texts = append(texts, part.Text)
			}
		}
	}

	if text := strings.TrimSpace(strings.Join(texts, "")); text != "" {
		return "", domain.NewNoImageError(text, editFailedMessage)
	}

	if candidate != nil && candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		slog.WarnContext(ctx, "画像生成が異常終了しました", "finish_reason", candidate.FinishReason)
	}
	return "", domain.NewNoImageError("", editFailedMessage)
}

// parseGenerateResponse は Imagen のレスポンスから 1 枚目の画像を PNG の DataURL にします。
func parseGenerateResponse(resp *genai.GenerateImagesResponse) (domain.DataURL, error) {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return "", domain.NewNoImageError("", generateFailedMessage)
	}

	generated := resp.GeneratedImages[0]
	if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated != nil && generated.RAIFilteredReason != "" {
			return "", domain.NewBlockedError(normalizeReason(generated.RAIFilteredReason))
		}
		return "", domain.NewNoImageError("", generateFailedMessage)
	}

	return imgutil.FormatDataURL(generateOutputMIMEType, base64.StdEncoding.EncodeToString(generated.Image.ImageBytes)), nil
}
