package vision

import (
	"context"

	"google.golang.org/genai"

	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
)

// contentGenerator is the part of genai.Models the reader uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiReader reads menus with a Gemini model.
type GeminiReader struct {
	models contentGenerator
	cfg    config.GeminiConfig
}

func NewGeminiReader(ctx context.Context, cfg config.GeminiConfig) (*GeminiReader, error) {
	const op = "vision.NewGeminiReader"
	if cfg.APIKey == "" {
		return nil, errs.MissingKey(op, "GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errs.NewExternal(op, config.ProviderGemini, "create client", err)
	}
	return newGeminiReader(client.Models, cfg), nil
}

func newGeminiReader(models contentGenerator, cfg config.GeminiConfig) *GeminiReader {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiReader{models: models, cfg: cfg}
}

func (r *GeminiReader) Name() string  { return config.ProviderGemini }
func (r *GeminiReader) Model() string { return r.cfg.Model }

func (r *GeminiReader) ReadMenu(ctx context.Context, system, user string, img Image) (Completion, error) {
	const op = "vision.GeminiReader.ReadMenu"

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: img.Data, MIMEType: img.MIMEType}},
			{Text: user},
		},
	}}
	result, err := r.models.GenerateContent(ctx, r.cfg.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
			Role:  "system",
		},
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Completion{}, errs.NewExternal(op, config.ProviderGemini, "generate content failed", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return Completion{}, errs.NewParse(op, config.ProviderGemini, "response has no candidates", "", nil)
	}

	out := Completion{Text: result.Text(), Model: r.cfg.Model}
	if u := result.UsageMetadata; u != nil {
		out.Usage = Usage{PromptTokens: int(u.PromptTokenCount), CompletionTokens: int(u.CandidatesTokenCount)}
	}
	return out, nil
}
