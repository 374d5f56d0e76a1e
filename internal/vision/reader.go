// Package vision reads menu photos with an image-understanding model and turns
// the reply into a models.MenuAnalysis.
package vision

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
)

// Image is a decoded photo with its MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string { return base64.StdEncoding.EncodeToString(i.Data) }

// DataURL returns the image as a data: URL.
func (i Image) DataURL() string { return "data:" + i.MIMEType + ";base64," + i.Base64() }

// Usage is the token accounting of one model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is the raw text reply of a model.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// MenuReader sends a system prompt, a user prompt and one image to a model
// provider and returns its text reply.
type MenuReader interface {
	Name() string
	Model() string
	ReadMenu(ctx context.Context, system, user string, img Image) (Completion, error)
}

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// DecodeImage accepts raw base64 or a data: URL and returns the decoded image.
// The MIME type is sniffed from the bytes; a data URL's declared type is only
// used when sniffing is inconclusive.
func DecodeImage(encoded string, maxBytes int64) (Image, error) {
	const op = "vision.DecodeImage"

	s := strings.TrimSpace(encoded)
	if s == "" {
		return Image{}, errs.NewValidation(op, "image is required", nil)
	}
	declared := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return Image{}, errs.NewValidation(op, "malformed data url", nil)
		}
		declared = strings.TrimSuffix(strings.TrimPrefix(s[:comma], "data:"), ";base64")
		s = s[comma+1:]
	}
	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(s))) > maxBytes+2 {
		return Image{}, errs.NewValidation(op, "image too large", nil)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Image{}, errs.NewValidation(op, "image is not valid base64", err)
	}
	if len(data) == 0 {
		return Image{}, errs.NewValidation(op, "image is empty", nil)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Image{}, errs.NewValidation(op, "image too large", nil)
	}

	mime := http.DetectContentType(data)
	if !allowedMIME[mime] && allowedMIME[declared] {
		mime = declared
	}
	if !allowedMIME[mime] {
		return Image{}, errs.NewValidation(op, "unsupported image type "+mime, nil)
	}
	return Image{Data: data, MIMEType: mime}, nil
}

// NewReader builds the reader selected by cfg.AIProvider.
func NewReader(cfg *config.Config) (MenuReader, error) {
	var (
		r   MenuReader
		err error
	)
	switch cfg.AIProvider {
	case config.ProviderOpenAI:
		r, err = NewOpenAIReader(cfg.OpenAI, cfg.AITimeout)
	case config.ProviderGemini:
		r, err = NewGeminiReader(context.Background(), cfg.Gemini)
	case config.ProviderAnthropic:
		r, err = NewAnthropicReader(cfg.Anthropic)
	default:
		err = errs.NewConfig("vision.NewReader", "AI_PROVIDER", "unknown provider "+cfg.AIProvider)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
