package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/sirupsen/logrus"

	"github.com/AteetVatan/masx-geosignal/pkg/metrics"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/retry"
)

// BedrockOracle is the "premium LLM pass" Oracle: a higher-quality model
// variant invoked through AWS Bedrock for the top slice of clusters by
// pre-summarization size, superseding their stage-2 result.
type BedrockOracle struct {
	client      *bedrockruntime.Client
	modelID     string
	maxTokens   int
	temperature float32
	retrier     *retry.Retrier
}

// NewBedrockOracle builds a BedrockOracle against an already-configured AWS
// client (region/credentials resolution is an AWS SDK concern, not the
// pipeline's).
func NewBedrockOracle(client *bedrockruntime.Client, modelID string, maxTokens int, temperature float32, logger *logrus.Logger) *BedrockOracle {
	return &BedrockOracle{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		retrier:     retry.NewRetrier(retry.OracleRetryConfig(), logger),
	}
}

// bedrockAnthropicRequest is the Claude-on-Bedrock Messages API request
// envelope.
type bedrockAnthropicRequest struct {
	AnthropicVersion string                   `json:"anthropic_version"`
	MaxTokens        int                      `json:"max_tokens"`
	Temperature      float32                  `json:"temperature"`
	Messages         []bedrockAnthropicMessage `json:"messages"`
}

type bedrockAnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Synthesize invokes the premium model variant and returns its raw text
// reply.
func (o *BedrockOracle) Synthesize(ctx context.Context, payload string) (string, error) {
	prompt := fmt.Sprintf(synthesisPrompt, payload)

	reqBody, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        o.maxTokens,
		Temperature:      o.temperature,
		Messages: []bedrockAnthropicMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode bedrock request: %w", err)
	}

	started := time.Now()
	out, err := o.retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
		resp, err := o.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(o.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        reqBody,
		})
		if err != nil {
			return nil, retry.WrapRetryableError(err, true, "bedrock invoke failed")
		}

		var parsed bedrockAnthropicResponse
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, retry.WrapRetryableError(fmt.Errorf("malformed bedrock response: %w", err), false, "parse error")
		}
		if len(parsed.Content) == 0 {
			return nil, retry.WrapRetryableError(fmt.Errorf("empty bedrock response"), false, "malformed response")
		}
		return parsed.Content[0].Text, nil
	})
	if err != nil {
		metrics.RecordOracleCall("bedrock", "failure", time.Since(started))
		return "", err
	}
	metrics.RecordOracleCall("bedrock", "success", time.Since(started))
	return out.(string), nil
}
