package alert

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/AteetVatan/masx-geosignal/pkg/shared/httpclient"
)

// webhookPoster abstracts slack.PostWebhook so tests can substitute a fake
// without a live Slack webhook endpoint.
type webhookPoster func(url string, msg *slack.WebhookMessage) error

// SlackDispatcher posts one message per flagged cluster to a configured
// incoming webhook.
type SlackDispatcher struct {
	webhookURL string
	post       webhookPoster
}

// NewSlackDispatcher builds a SlackDispatcher against webhookURL, posting
// through the short-timeout webhook client preset so alerting never becomes
// the slow path of a run.
func NewSlackDispatcher(webhookURL string) *SlackDispatcher {
	client := httpclient.NewClient(httpclient.AlertWebhookClientConfig())
	return &SlackDispatcher{
		webhookURL: webhookURL,
		post: func(url string, msg *slack.WebhookMessage) error {
			return slack.PostWebhookCustomHTTP(url, client, msg)
		},
	}
}

// Dispatch posts each flagged cluster as a separate webhook message. A
// failure on one message does not prevent the rest from being attempted;
// the first error encountered is returned after all have been tried.
func (d *SlackDispatcher) Dispatch(_ context.Context, runID string, flagged []ClusterPayload) error {
	var firstErr error
	for _, c := range flagged {
		msg := &slack.WebhookMessage{Text: FormatMessage(runID, c)}
		if err := d.post(d.webhookURL, msg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to post alert for cluster %d: %w", c.ClusterID, err)
		}
	}
	return firstErr
}
