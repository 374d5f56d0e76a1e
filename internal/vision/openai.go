package vision

import (
	"context"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
)

// chatCompleter is the part of *openai.Client the reader uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIReader reads menus with an OpenAI vision chat model.
type OpenAIReader struct {
	client chatCompleter
	cfg    config.OpenAIConfig
}

// NewOpenAIReader returns a ConfigError when the API key is missing.
func NewOpenAIReader(cfg config.OpenAIConfig, timeout time.Duration) (*OpenAIReader, error) {
	if cfg.APIKey == "" {
		return nil, errs.MissingKey("vision.NewOpenAIReader", "OPENAI_API_KEY")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: timeout}
	}
	return newOpenAIReader(openai.NewClientWithConfig(oc), cfg), nil
}

func newOpenAIReader(client chatCompleter, cfg config.OpenAIConfig) *OpenAIReader {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &OpenAIReader{client: client, cfg: cfg}
}

func (r *OpenAIReader) Name() string  { return config.ProviderOpenAI }
func (r *OpenAIReader) Model() string { return r.cfg.Model }

func (r *OpenAIReader) ReadMenu(ctx context.Context, system, user string, img Image) (Completion, error) {
	const op = "vision.OpenAIReader.ReadMenu"

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: user},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    img.DataURL(),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature:    float32(r.cfg.Temperature),
		MaxTokens:      r.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Completion{}, errs.NewExternal(op, config.ProviderOpenAI, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errs.NewParse(op, config.ProviderOpenAI, "response has no choices", "", nil)
	}
	return Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens},
	}, nil
}
