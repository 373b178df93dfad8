// Package alert defines the flagged-cluster alert dispatcher plug-in
// boundary and a slack-go transport implementation.
package alert

import (
	"context"
	"fmt"
)

// ClusterPayload is the opaque payload a flagged cluster is handed to the
// dispatcher as.
type ClusterPayload struct {
	FlashpointID string
	ClusterID    int
	Score        float64
	Summary      string
	ArticleCount int
	TopDomains   []string
}

// Dispatcher is the alert transport's single operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, runID string, flagged []ClusterPayload) error
}

// NoopDispatcher discards alerts; used when alerting is disabled.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, string, []ClusterPayload) error { return nil }

// FormatMessage renders a flagged cluster into a human-readable one-line
// summary, shared by every transport implementation.
func FormatMessage(runID string, c ClusterPayload) string {
	return fmt.Sprintf(
		"[run %s] flashpoint %s cluster %d scored %.3f (%d articles, top domains: %v): %s",
		runID, c.FlashpointID, c.ClusterID, c.Score, c.ArticleCount, c.TopDomains, c.Summary,
	)
}
