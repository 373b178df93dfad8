package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/AteetVatan/masx-geosignal/pkg/shared/httpclient"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/retry"
)

const translationHTTPTimeout = 30 * time.Second

// TitleTranslator translates a title into English. Implementations must be
// non-fatal on failure: callers fall back to the original title.
type TitleTranslator interface {
	TranslateTitle(ctx context.Context, title, sourceLang string) (string, error)
}

// AnthropicTitleTranslator is the production TitleTranslator, backed by the
// same small-model "one short completion" pattern used for cheap structured
// text transforms.
type AnthropicTitleTranslator struct {
	client  anthropic.Client
	model   anthropic.Model
	retrier *retry.Retrier
}

// NewAnthropicTitleTranslator builds a translator. model is typically the
// cheapest available chat model since titles are short.
func NewAnthropicTitleTranslator(apiKey, model string, logger *logrus.Logger) *AnthropicTitleTranslator {
	return &AnthropicTitleTranslator{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(httpclient.NewClient(httpclient.OracleClientConfig(translationHTTPTimeout))),
		),
		model:   anthropic.Model(model),
		retrier: retry.NewRetrier(retry.OracleRetryConfig(), logger),
	}
}

// TranslateTitle asks the model for a single-line English translation.
func (t *AnthropicTitleTranslator) TranslateTitle(ctx context.Context, title, sourceLang string) (string, error) {
	prompt := fmt.Sprintf("Translate the following news headline from %s to English. "+
		"Reply with only the translated headline, no quotes, no commentary.\n\n%s", sourceLang, title)

	out, err := t.retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
		msg, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     t.model,
			MaxTokens: 256,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return nil, retry.WrapRetryableError(err, true, "translation call failed")
		}
		if len(msg.Content) == 0 || msg.Content[0].Type != "text" {
			return nil, retry.WrapRetryableError(fmt.Errorf("empty translation response"), false, "malformed response")
		}
		return msg.Content[0].Text, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// NoopTranslator copies the title unchanged; used when no translation model
// is configured for the source language.
type NoopTranslator struct{}

func (NoopTranslator) TranslateTitle(_ context.Context, title, _ string) (string, error) {
	return title, nil
}

// TranslateTitleOrFallback runs translator and falls back to copying title
// on any error, per the stage's non-fatal-degradation contract.
func TranslateTitleOrFallback(ctx context.Context, translator TitleTranslator, title, sourceLang string, logger *logrus.Logger) string {
	if sourceLang == "" || sourceLang == "en" || sourceLang == "unknown" {
		return title
	}
	translated, err := translator.TranslateTitle(ctx, title, sourceLang)
	if err != nil {
		if logger != nil {
			logger.WithField("source_lang", sourceLang).WithError(err).Warn("title translation failed, falling back to original")
		}
		return title
	}
	return translated
}
