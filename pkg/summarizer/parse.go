package summarizer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/tidwall/gjson"
)

// oracleResponse is the strict shape the summarizer oracle is prompted to
// return.
type oracleResponse struct {
	Summary string `json:"summary"`
}

var (
	codeFenceRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseOracleResponse extracts the cluster summary from an oracle's raw
// text reply. It tries, in order: a strict JSON decode, a repair pass that
// strips markdown code fences and trailing commas before re-decoding, and a
// relaxed gjson path lookup that tolerates surrounding non-JSON text. Only
// if all three fail does it report ok=false.
func ParseOracleResponse(raw string) (summary string, ok bool) {
	if s, ok := strictParse(raw); ok {
		return s, true
	}
	if s, ok := repairParse(raw); ok {
		return s, true
	}
	if s, ok := relaxedParse(raw); ok {
		return s, true
	}
	return "", false
}

func strictParse(raw string) (string, bool) {
	var resp oracleResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", false
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return "", false
	}
	return resp.Summary, true
}

// repairParse strips markdown code-fence wrapping and trailing commas
// (the two most common ways an otherwise-valid JSON oracle reply fails
// strict decoding) and retries, additionally double-checking the repaired
// document's shape with a gojq query so a structurally-odd-but-parseable
// document (summary nested one level deeper, wrapped in an array) is still
// recovered.
func repairParse(raw string) (string, bool) {
	repaired := raw
	if m := codeFenceRe.FindStringSubmatch(repaired); len(m) == 2 {
		repaired = m[1]
	}
	repaired = trailingComma.ReplaceAllString(repaired, "$1")
	repaired = strings.TrimSpace(repaired)

	if s, ok := strictParse(repaired); ok {
		return s, true
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		return "", false
	}

	query, err := gojq.Parse(".summary // .[0].summary // .result.summary")
	if err != nil {
		return "", false
	}
	iter := query.Run(doc)
	v, hasNext := iter.Next()
	if !hasNext {
		return "", false
	}
	if _, ok := v.(error); ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// relaxedParse uses gjson's tolerant scanner, which does not require the
// surrounding document to be valid JSON, to pull a "summary" field out of
// text the oracle may have wrapped in explanatory prose.
func relaxedParse(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return "", false
	}
	candidate := trimmed[start:]

	result := gjson.Get(candidate, "summary")
	if !result.Exists() {
		result = gjson.Get(candidate, "0.summary")
	}
	if !result.Exists() {
		result = gjson.Get(candidate, "result.summary")
	}
	if !result.Exists() || strings.TrimSpace(result.String()) == "" {
		return "", false
	}
	return result.String(), true
}
