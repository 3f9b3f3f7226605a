package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// テスト用のダミー画像（w x h の赤い矩形）を作成するヘルパー
func createDummyImageData(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	buf := new(bytes.Buffer)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, nil)
	default:
		t.Fatalf("unsupported format: %s", format)
	}
	require.NoError(t, err, "failed to encode dummy image")
	return buf.Bytes()
}

// ノイズ画像は PNG では圧縮が効かないため、JPEG 変換でサイズが減ります。
func createNoisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestCompressToJPEG(t *testing.T) {
	t.Run("正常なPNG画像をJPEGに圧縮できること", func(t *testing.T) {
		got, err := CompressToJPEG(createDummyImageData(t, "png", 10, 10), 75)
		require.NoError(t, err)
		require.NotEmpty(t, got)

		_, format, err := image.Decode(bytes.NewReader(got))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("不正なデータを与えた場合にエラーを返すこと", func(t *testing.T) {
		_, err := CompressToJPEG([]byte("this is not an image"), 75)
		assert.Error(t, err)
	})
}

func TestProbe(t *testing.T) {
	t.Run("PNGの形式とサイズを読み取れること", func(t *testing.T) {
		info, err := Probe(createDummyImageData(t, "png", 32, 18))
		require.NoError(t, err)
		assert.Equal(t, ImageInfo{Format: "png", Width: 32, Height: 18}, info)
	})

	t.Run("JPEGの形式を読み取れること", func(t *testing.T) {
		info, err := Probe(createDummyImageData(t, "jpeg", 8, 4))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", info.Format)
	})

	t.Run("画像以外はエラー", func(t *testing.T) {
		_, err := Probe([]byte("plain text"))
		assert.Error(t, err)
	})
}

func TestShrinkForUpload(t *testing.T) {
	noisy := createNoisyPNG(t, 64, 64)

	t.Run("閾値0では何もしない", func(t *testing.T) {
		mime, data := ShrinkForUpload("image/png", noisy, 0, 75)
		assert.Equal(t, "image/png", mime)
		assert.Equal(t, noisy, data)
	})

	t.Run("閾値以下では何もしない", func(t *testing.T) {
		mime, data := ShrinkForUpload("image/png", noisy, len(noisy), 75)
		assert.Equal(t, "image/png", mime)
		assert.Equal(t, noisy, data)
	})

	t.Run("閾値を超えるとJPEGに圧縮される", func(t *testing.T) {
		mime, data := ShrinkForUpload("image/png", noisy, 1, 50)
		assert.Equal(t, "image/jpeg", mime)
		assert.Less(t, len(data), len(noisy))
	})

	t.Run("デコードできないデータはそのまま返す", func(t *testing.T) {
		raw := []byte("not really an image")
		mime, data := ShrinkForUpload("image/png", raw, 1, 50)
		assert.Equal(t, "image/png", mime)
		assert.Equal(t, raw, data)
	})
}
