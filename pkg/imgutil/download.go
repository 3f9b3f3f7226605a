package imgutil

import (
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

const downloadBaseName = "generated-image"

// FileExtension は DataURL の宣言 MIME タイプから拡張子を決めます。判定できなければ png です。
func FileExtension(u domain.DataURL) string {
	meta, _, _ := strings.Cut(string(u), ";")
	_, mimeType, ok := strings.Cut(meta, ":")
	if !ok {
		return "png"
	}
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok || sub == "" {
		return "png"
	}
	return sub
}

// DownloadName はダウンロード用のファイル名 generated-image.<ext> を返します。
func DownloadName(u domain.DataURL) string {
	return downloadBaseName + "." + FileExtension(u)
}

// AcceptedUploadType はアップロードを受け付ける MIME タイプ (PNG/JPEG/WEBP) かを返します。
func AcceptedUploadType(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/webp":
		return true
	}
	return false
}
