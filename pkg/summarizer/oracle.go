package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/AteetVatan/masx-geosignal/pkg/metrics"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/httpclient"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/retry"
)

const oracleHTTPTimeout = 60 * time.Second

// Oracle is the external text-synthesis collaborator stage 2 submits a
// cluster's serialized stage-1 summaries to.
type Oracle interface {
	Synthesize(ctx context.Context, payload string) (string, error)
}

const synthesisPrompt = `You will be given a JSON array of short article summaries covering the same
news story. Synthesize them into one concise paragraph summarizing the
overall story. Reply with a single JSON object of the shape
{"summary": "..."} and nothing else.

Summaries:
%s`

// AnthropicOracle is the production Oracle for the standard (non-premium)
// stage-2 pass.
type AnthropicOracle struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
	retrier     *retry.Retrier
}

// NewAnthropicOracle builds an AnthropicOracle.
func NewAnthropicOracle(apiKey, model string, maxTokens int, temperature float32, logger *logrus.Logger) *AnthropicOracle {
	return &AnthropicOracle{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(httpclient.NewClient(httpclient.OracleClientConfig(oracleHTTPTimeout))),
		),
		model:       anthropic.Model(model),
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
		retrier:     retry.NewRetrier(retry.OracleRetryConfig(), logger),
	}
}

// Synthesize submits payload (a serialized array of stage-1 summaries) and
// returns the oracle's raw text reply; JSON parsing happens at the caller
// via ParseOracleResponse so the fault-tolerant parser is exercised for
// every provider uniformly.
func (o *AnthropicOracle) Synthesize(ctx context.Context, payload string) (string, error) {
	prompt := fmt.Sprintf(synthesisPrompt, payload)

	started := time.Now()
	out, err := o.retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
		msg, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       o.model,
			MaxTokens:   o.maxTokens,
			Temperature: anthropic.Float(o.temperature),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return nil, retry.WrapRetryableError(err, true, "oracle call failed")
		}
		if len(msg.Content) == 0 || msg.Content[0].Type != "text" {
			return nil, retry.WrapRetryableError(fmt.Errorf("empty oracle response"), false, "malformed response")
		}
		return msg.Content[0].Text, nil
	})
	if err != nil {
		metrics.RecordOracleCall("anthropic", "failure", time.Since(started))
		return "", err
	}
	metrics.RecordOracleCall("anthropic", "success", time.Since(started))
	return out.(string), nil
}

// joinSummaries serializes a cluster's stage-1 summaries into the compact
// payload the oracle prompt expects: a newline-delimited, bracketed list
// rather than full JSON encoding, since the summaries are already
// plain-text sentences with no characters requiring escaping beyond quotes.
func joinSummaries(summaries []string) string {
	var b strings.Builder
	b.WriteString("[")
	for i, s := range summaries {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString(fmt.Sprintf("%q", s))
	}
	b.WriteString("]")
	return b.String()
}
