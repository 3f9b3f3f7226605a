package generator

const (
	DefaultEditModel          = "gemini-2.5-flash-image-preview"
	DefaultGenerateModel      = "imagen-4.0-generate-001"
	DefaultCompressionQuality = 75

	generateOutputMIMEType = "image/png"

	editFailedMessage      = "The AI failed to generate an image. Please try rephrasing your prompt or try again."
	generateFailedMessage  = "The AI failed to generate an image. Please try a different prompt."
	editUnknownMessage     = "An unknown error occurred while editing the image."
	generateUnknownMessage = "An unknown error occurred while generating the image."
)

// Options は GeminiGenerator の設定です。ゼロ値の項目は既定値で補われます。
type Options struct {
	EditModel       string
	GenerateModel   string
	MaxPromptLength int // 0 で domain.DefaultMaxPromptLength

	// CompressThreshold を超える入力画像は送信前に JPEG へ圧縮します。0 で無効です。
	CompressThreshold int
	CompressQuality   int
}

func (o Options) withDefaults() Options {
	if o.EditModel == "" {
		o.EditModel = DefaultEditModel
	}
	if o.GenerateModel == "" {
		o.GenerateModel = DefaultGenerateModel
	}
	if o.CompressQuality <= 0 || o.CompressQuality > 100 {
		o.CompressQuality = DefaultCompressionQuality
	}
	return o
}
