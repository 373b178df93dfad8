package extractor

import (
	"bytes"
	"strings"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

var (
	jsShellMarkers = []string{
		"<noscript>please enable javascript",
		"you need to enable javascript",
		"id=\"root\"></div>",
		"id=\"app\"></div>",
	}
	paywallMarkers = []string{
		"subscribe to continue reading",
		"this content is for subscribers",
		"paywall",
		"metered-content",
	}
	consentMarkers = []string{
		"accept all cookies",
		"we use cookies",
		"cookie consent",
		"gdpr",
	}
)

// classify inspects the raw HTML (and the best candidate text any method
// produced, even if it fell short) for signature markers and returns a
// typed failure reason. Falls back to no_text/too_short when nothing more
// specific is detected.
func classify(body []byte, best string) model.FailureReason {
	lower := bytes.ToLower(body)

	for _, m := range jsShellMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return model.ReasonJSRequired
		}
	}
	for _, m := range paywallMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return model.ReasonPaywall
		}
	}
	for _, m := range consentMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return model.ReasonConsentWall
		}
	}

	scriptBytes := countTagBytes(lower, "script")
	if len(body) > 0 && float64(scriptBytes)/float64(len(body)) > 0.6 {
		return model.ReasonJSRequired
	}

	if strings.TrimSpace(best) == "" {
		return model.ReasonNoText
	}
	return model.ReasonTooShort
}

func countTagBytes(lower []byte, tag string) int {
	open := []byte("<" + tag)
	close := []byte("</" + tag + ">")
	total := 0
	idx := 0
	for {
		start := bytes.Index(lower[idx:], open)
		if start == -1 {
			break
		}
		start += idx
		end := bytes.Index(lower[start:], close)
		if end == -1 {
			break
		}
		end += start + len(close)
		total += end - start
		idx = end
	}
	return total
}
