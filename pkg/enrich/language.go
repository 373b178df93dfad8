// Package enrich implements the language/title/geo enrichment stage: a
// language identifier, an English title translator, an NER client
// interface, a country-mention geo resolver, and an optional topic
// classifier.
package enrich

import (
	"github.com/abadojack/whatlanggo"
)

const minLanguageDetectLength = 50

// LanguageResult is the identifier's output.
type LanguageResult struct {
	Code       string
	Confidence float64
}

// Unknown is returned for text too short to classify reliably.
var Unknown = LanguageResult{Code: "unknown", Confidence: 0}

// DetectLanguage identifies text's ISO-639-1 language code and a
// [0,1] confidence score. Text shorter than minLanguageDetectLength
// returns Unknown rather than guessing.
func DetectLanguage(text string) LanguageResult {
	if len(text) < minLanguageDetectLength {
		return Unknown
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return Unknown
	}
	return LanguageResult{
		Code:       code,
		Confidence: info.Confidence,
	}
}
