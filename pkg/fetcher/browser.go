package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/httpclient"
)

// BrowserFetcher routes a URL through a headless-browser rendering sidecar,
// for hosts whose plain-HTTP fetches yield script-shell or consent-wall
// pages. It satisfies the same Fetch contract as the plain Fetcher so the
// run controller can substitute it per entry.
type BrowserFetcher struct {
	endpoint string
	client   *http.Client
}

type renderRequest struct {
	URL string `json:"url"`
}

type renderResponse struct {
	HTML     string `json:"html"`
	Status   int    `json:"status"`
	FinalURL string `json:"final_url"`
}

// NewBrowserFetcher builds a BrowserFetcher against a rendering sidecar
// endpoint. client may be nil, in which case a default-preset client is
// constructed.
func NewBrowserFetcher(endpoint string, client *http.Client) *BrowserFetcher {
	if client == nil {
		client = httpclient.NewClient(httpclient.DefaultClientConfig())
	}
	return &BrowserFetcher{endpoint: endpoint, client: client}
}

// Fetch submits rawURL to the rendering sidecar and returns the rendered
// document.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	body, err := json.Marshal(renderRequest{URL: rawURL})
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Status: resp.StatusCode,
			Cause: fmt.Errorf("render sidecar returned status %d", resp.StatusCode)}
	}

	var rendered renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rendered); err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: err}
	}

	finalURL := rendered.FinalURL
	if finalURL == "" {
		finalURL = rawURL
	}
	return &Result{Body: []byte(rendered.HTML), Status: rendered.Status, FinalURL: finalURL}, nil
}
