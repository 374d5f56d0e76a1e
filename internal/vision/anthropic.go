package vision

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
)

// messageCreator is the part of anthropic.MessageService the reader uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicReader reads menus with a Claude model.
type AnthropicReader struct {
	messages messageCreator
	cfg      config.AnthropicConfig
}

func NewAnthropicReader(cfg config.AnthropicConfig) (*AnthropicReader, error) {
	if cfg.APIKey == "" {
		return nil, errs.MissingKey("vision.NewAnthropicReader", "ANTHROPIC_API_KEY")
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return newAnthropicReader(&client.Messages, cfg), nil
}

func newAnthropicReader(messages messageCreator, cfg config.AnthropicConfig) *AnthropicReader {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &AnthropicReader{messages: messages, cfg: cfg}
}

func (r *AnthropicReader) Name() string  { return config.ProviderAnthropic }
func (r *AnthropicReader) Model() string { return r.cfg.Model }

func (r *AnthropicReader) ReadMenu(ctx context.Context, system, user string, img Image) (Completion, error) {
	const op = "vision.AnthropicReader.ReadMenu"

	message, err := r.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.cfg.Model),
		MaxTokens: int64(r.cfg.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MIMEType, img.Base64()),
				anthropic.NewTextBlock(user),
			),
		},
	})
	if err != nil {
		return Completion{}, errs.NewExternal(op, config.ProviderAnthropic, "message request failed", err)
	}

	var text string
	for _, content := range message.Content {
		if content.Type == "text" {
			text = content.Text
			break
		}
	}
	if text == "" {
		return Completion{}, errs.NewParse(op, config.ProviderAnthropic, "no text content returned", "", nil)
	}
	return Completion{
		Text:  text,
		Model: string(message.Model),
		Usage: Usage{PromptTokens: int(message.Usage.InputTokens), CompletionTokens: int(message.Usage.OutputTokens)},
	}, nil
}
