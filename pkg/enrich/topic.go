package enrich

import (
	"context"
	"strings"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// TopicClassifier is the optional, disabled-by-default enricher that labels
// an entry with a coarse topic (e.g. "military", "diplomacy", "economy").
type TopicClassifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// keywordTaxonomy maps a coarse topic label to the lowercase keywords that
// signal it. Checked in the order below; the first topic with any keyword
// present in the text wins.
var keywordTaxonomy = []struct {
	topic    string
	keywords []string
}{
	{"military", []string{"military", "troops", "airstrike", "missile", "offensive", "artillery", "invasion"}},
	{"diplomacy", []string{"summit", "treaty", "ambassador", "negotiation", "ceasefire", "diplomat", "accord"}},
	{"economy", []string{"sanctions", "inflation", "trade", "tariff", "export", "market", "currency"}},
	{"humanitarian", []string{"refugee", "displaced", "famine", "aid", "relief", "casualties", "evacuation"}},
	{"politics", []string{"election", "parliament", "president", "coalition", "opposition", "referendum"}},
}

// KeywordTopicClassifier is a static keyword-taxonomy TopicClassifier: it
// scans lowercased text for each topic's keyword set in taxonomy order and
// returns the first match, or "" if nothing matches.
type KeywordTopicClassifier struct{}

// NewKeywordTopicClassifier builds a KeywordTopicClassifier.
func NewKeywordTopicClassifier() *KeywordTopicClassifier {
	return &KeywordTopicClassifier{}
}

func (KeywordTopicClassifier) Classify(_ context.Context, text string) (string, error) {
	lower := strings.ToLower(text)
	for _, entry := range keywordTaxonomy {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.topic, nil
			}
		}
	}
	return "", nil
}

// ClassifyIfEnabled runs classifier only when enabled is true, returning a
// FeedEntryTopic. A disabled classifier or any classification error yields
// no row (topic is sidecar data, never a hard requirement).
func ClassifyIfEnabled(ctx context.Context, enabled bool, classifier TopicClassifier, entryID, text string) (*model.FeedEntryTopic, error) {
	if !enabled || classifier == nil {
		return nil, nil
	}
	topic, err := classifier.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		return nil, nil
	}
	return &model.FeedEntryTopic{EntryID: entryID, Topic: topic}, nil
}
