// Package extractor implements the deterministic, pure (no I/O) four-method
// extraction cascade: the first method producing at least MinContentLength
// non-whitespace characters wins.
package extractor

import (
	"fmt"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// ExtractFailure is returned when every cascade method, and the fallback
// heuristic classifier, fail to produce acceptable text.
type ExtractFailure struct {
	URL    string
	Reason model.FailureReason
}

func (e *ExtractFailure) Error() string {
	return fmt.Sprintf("extraction of %s failed: %s", e.URL, e.Reason)
}

// Result is a successful extraction.
type Result struct {
	Text   string
	Method model.ExtractionMethod
	Length int
}

// Cascade runs the fixed-order method sequence against body for pageURL.
type Cascade struct {
	MinContentLength int
}

// NewCascade builds a Cascade with the extractor's acceptance threshold.
func NewCascade(minContentLength int) *Cascade {
	return &Cascade{MinContentLength: minContentLength}
}

type method struct {
	name model.ExtractionMethod
	fn   func(body []byte, pageURL string) (string, error)
}

// Extract tries each method in cascade order and returns the first result
// meeting the minimum content length, or a classified ExtractFailure.
func (c *Cascade) Extract(body []byte, pageURL string) (*Result, error) {
	methods := []method{
		{model.MethodTrafilaturaLike, extractTrafilaturaLike},
		{model.MethodReadabilityLike, extractReadabilityLike},
		{model.MethodJustextLike, extractJustextLike},
		{model.MethodBoilerpyLike, extractBoilerpyLike},
	}

	var best string
	for _, m := range methods {
		text, err := safeRun(m.fn, body, pageURL)
		if err != nil {
			continue
		}
		normalized := normalizeWhitespace(text)
		if nonWhitespaceLen(normalized) >= c.MinContentLength {
			return &Result{Text: normalized, Method: m.name, Length: nonWhitespaceLen(normalized)}, nil
		}
		if len(normalized) > len(best) {
			best = normalized
		}
	}

	reason := classify(body, best)
	return nil, &ExtractFailure{URL: pageURL, Reason: reason}
}

// safeRun isolates a single method's panics (malformed-HTML parser edge
// cases) so one method's failure can never abort the cascade.
func safeRun(fn func([]byte, string) (string, error), body []byte, pageURL string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("method panicked: %v", r)
		}
	}()
	return fn(body, pageURL)
}
