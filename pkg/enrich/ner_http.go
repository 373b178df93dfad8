package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// HTTPNERTagger calls a sidecar NER model server over HTTP: POST {"text":
// ...} returns {"classes": {...}, "score": ..., "model_id": ...}.
type HTTPNERTagger struct {
	Endpoint string
	Client   *http.Client
}

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Classes map[string][]string `json:"classes"`
	Score   float64              `json:"score"`
	ModelID string               `json:"model_id"`
}

// NewHTTPNERTagger builds a tagger against endpoint using client.
func NewHTTPNERTagger(endpoint string, client *http.Client) *HTTPNERTagger {
	return &HTTPNERTagger{Endpoint: endpoint, Client: client}
}

func (t *HTTPNERTagger) Tag(ctx context.Context, text string) (model.NEREntities, error) {
	body, err := json.Marshal(nerRequest{Text: text})
	if err != nil {
		return model.NEREntities{}, fmt.Errorf("failed to encode NER request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.NEREntities{}, fmt.Errorf("failed to build NER request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return model.NEREntities{}, fmt.Errorf("NER request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.NEREntities{}, fmt.Errorf("NER tagger returned status %d", resp.StatusCode)
	}

	var out nerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.NEREntities{}, fmt.Errorf("failed to decode NER response: %w", err)
	}

	classes := make(map[string][]string, len(out.Classes))
	for class, forms := range out.Classes {
		classes[class] = dedupeOrdered(forms)
	}

	return model.NEREntities{
		Classes: classes,
		Meta:    model.NERMeta{Score: out.Score, ModelID: out.ModelID},
	}, nil
}
