package enrich

import (
	"context"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

const minNERTextLength = 50

// NERTagger is an out-of-process multilingual NER tagger. The production
// implementation calls a sidecar HTTP model server; tests substitute a
// fake.
type NERTagger interface {
	Tag(ctx context.Context, text string) (model.NEREntities, error)
}

// Tag runs tagger against text, skipping entries too short to tag with an
// empty, non-error result (the stage contract is non-fatal on short input).
func Tag(ctx context.Context, tagger NERTagger, text string) (model.NEREntities, error) {
	if len(text) < minNERTextLength {
		return model.NEREntities{Classes: map[string][]string{}}, nil
	}
	return tagger.Tag(ctx, text)
}

// dedupeOrdered preserves first-seen order while removing duplicate surface
// forms, matching the tagger's ordered-deduplicated-list contract.
func dedupeOrdered(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
