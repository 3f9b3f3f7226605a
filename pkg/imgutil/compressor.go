package imgutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageInfo は画像ヘッダから読み取った形式とサイズです。
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Probe は画像全体をデコードせずに形式と縦横サイズを読み取ります。
// PNG, JPEG, GIF, WEBP に対応しています。
func Probe(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("画像ヘッダの読み取りに失敗しました: %w", err)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// CompressToJPEG は画像データ（PNG, GIF, JPEG, WEBP）をJPEG形式に圧縮します。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ShrinkForUpload は data が threshold バイトを超える場合に JPEG へ圧縮した MIME タイプとデータを返します。
// threshold が 0 以下、圧縮に失敗した、または圧縮しても小さくならない場合は元のデータを返します。
func ShrinkForUpload(mimeType string, data []byte, threshold, quality int) (string, []byte) {
	if threshold <= 0 || len(data) <= threshold {
		return mimeType, data
	}
	compressed, err := CompressToJPEG(data, quality)
	if err != nil || len(compressed) >= len(data) {
		return mimeType, data
	}
	return "image/jpeg", compressed
}
