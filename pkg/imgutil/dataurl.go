package imgutil

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// mimePattern は DataURL のメタ部 (data:image/png;base64) から MIME タイプを取り出します。
var mimePattern = regexp.MustCompile(`:(.*?);`)

// Encode は画像バイナリの MIME タイプを判定して ImageAsset を作成します。
// 画像として判定できないデータは DecodeError になります。
func Encode(data []byte) (domain.ImageAsset, error) {
	if len(data) == 0 {
		return domain.ImageAsset{}, domain.NewDecodeError("The selected file is empty.", nil)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.ImageAsset{}, domain.NewDecodeError(
			fmt.Sprintf("The selected file is not a supported image (detected %s).", mimeType), nil)
	}
	return domain.ImageAsset{MIMEType: mimeType, Data: data}, nil
}

// EncodeReader は r を最後まで読み込んでから Encode します。
func EncodeReader(r io.Reader) (domain.ImageAsset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.ImageAsset{}, domain.NewDecodeError("Failed to read the selected file.", err)
	}
	return Encode(data)
}

// NewAsset は MIME タイプを明示して ImageAsset を作成します。
func NewAsset(mimeType string, data []byte) (domain.ImageAsset, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.ImageAsset{}, domain.NewDecodeError("Unsupported mime type: "+mimeType, nil)
	}
	return domain.ImageAsset{MIMEType: mimeType, Data: data}, nil
}

// ToDataURL は ImageAsset を data:<mime>;base64,<payload> 形式に変換します。
func ToDataURL(asset domain.ImageAsset) domain.DataURL {
	return FormatDataURL(asset.MIMEType, base64.StdEncoding.EncodeToString(asset.Data))
}

// FormatDataURL は base64 済みのペイロードから DataURL を組み立てます。
func FormatDataURL(mimeType, payload string) domain.DataURL {
	return domain.DataURL("data:" + mimeType + ";base64," + payload)
}

// Split は DataURL を MIME タイプと base64 ペイロードに分解します。
// カンマ区切りがちょうど 2 要素にならない場合、または MIME タイプが取り出せない場合は FormatError です。
func Split(u domain.DataURL) (mimeType, payload string, err error) {
	parts := strings.Split(string(u), ",")
	if len(parts) != 2 {
		return "", "", domain.NewFormatError("Invalid data URL format")
	}
	m := mimePattern.FindStringSubmatch(parts[0])
	if len(m) < 2 {
		return "", "", domain.NewFormatError("Could not determine mime type from data URL")
	}
	return m[1], parts[1], nil
}

// Decode は DataURL を ImageAsset に戻します。
func Decode(u domain.DataURL) (domain.ImageAsset, error) {
	mimeType, payload, err := Split(u)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.ImageAsset{}, domain.NewDecodeError("Data URL payload is not valid base64", err)
	}
	return domain.ImageAsset{MIMEType: mimeType, Data: data}, nil
}
