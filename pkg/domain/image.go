package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DataURL は data:<mimeType>;base64,<payload> 形式の画像文字列です。
// 表示・ダウンロード・履歴保存に使います。
type DataURL string

// ImageAsset は MIME タイプ付きの画像バイナリです。
type ImageAsset struct {
	MIMEType string
	Data     []byte
}

// AspectRatio は生成画像の縦横比です。
type AspectRatio string

const (
	AspectSquare     AspectRatio = "1:1"
	AspectTall       AspectRatio = "3:4"
	AspectStandard   AspectRatio = "4:3"
	AspectPortrait   AspectRatio = "9:16"
	AspectWidescreen AspectRatio = "16:9"
)

// DefaultMaxPromptLength はプロンプトの最大文字数（rune 単位）の既定値です。
const DefaultMaxPromptLength = 2000

// AspectRatios は選択可能な縦横比の一覧です。
var AspectRatios = []AspectRatio{AspectSquare, AspectWidescreen, AspectPortrait, AspectStandard, AspectTall}

// Valid は定義済みの縦横比かどうかを返します。
func (a AspectRatio) Valid() bool {
	for _, r := range AspectRatios {
		if a == r {
			return true
		}
	}
	return false
}

// EditRequest は画像編集の要求です。TargetWidth/TargetHeight は 0 で未指定です。
type EditRequest struct {
	Image        ImageAsset
	Prompt       string
	TargetWidth  int
	TargetHeight int
}

// HasResolution は幅と高さの両方が指定されているかを返します。
func (r EditRequest) HasResolution() bool {
	return r.TargetWidth > 0 && r.TargetHeight > 0
}

// Validate はネットワーク送信前の入力チェックです。maxPrompt が 0 以下なら既定値を使います。
func (r EditRequest) Validate(maxPrompt int) error {
	if len(r.Image.Data) == 0 {
		return NewValidationError("Please upload an image first.")
	}
	if strings.TrimSpace(r.Prompt) == "" && !r.HasResolution() {
		return NewValidationError("Please enter a prompt or specify a target resolution.")
	}
	return checkPromptLength(r.Prompt, maxPrompt)
}

// GenerateRequest はテキストからの画像生成要求です。
type GenerateRequest struct {
	Prompt      string
	AspectRatio AspectRatio
}

// Validate はプロンプトと縦横比を検証します。
func (r GenerateRequest) Validate(maxPrompt int) error {
	if strings.TrimSpace(r.Prompt) == "" {
		return NewValidationError("Prompt cannot be empty.")
	}
	if r.AspectRatio != "" && !r.AspectRatio.Valid() {
		return NewValidationError("Unsupported aspect ratio: " + string(r.AspectRatio))
	}
	return checkPromptLength(r.Prompt, maxPrompt)
}

func checkPromptLength(prompt string, maxPrompt int) error {
	if maxPrompt <= 0 {
		maxPrompt = DefaultMaxPromptLength
	}
	if utf8.RuneCountInString(prompt) > maxPrompt {
		return NewValidationError("Prompt is too long. Please keep it under " + strconv.Itoa(maxPrompt) + " characters.")
	}
	return nil
}
