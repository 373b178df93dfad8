package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/antchfx/htmlquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func nonWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			n++
		}
	}
	return n
}

// extractReadabilityLike delegates to go-shiori/go-readability, the
// dominant readability-port library in the retrieved corpus's feed-backend
// manifests.
func extractReadabilityLike(body []byte, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// extractTrafilaturaLike strips script, style and page-chrome elements, then
// picks the article/main/div/section element with the longest normalized
// text (falling back to the whole body's text), approximating trafilatura's
// "main content block" heuristic without its full boilerplate-removal
// machinery.
func extractTrafilaturaLike(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,nav,header,footer,aside,form,noscript").Remove()

	var best string
	candidates := doc.Find("article, main, [role='main'], div, section")
	candidates.Each(func(_ int, sel *goquery.Selection) {
		text := normalizeWhitespace(sel.Text())
		if len(text) > len(best) {
			best = text
		}
	})
	if best == "" {
		best = normalizeWhitespace(doc.Find("body").Text())
	}
	return best, nil
}

// extractJustextLike approximates justext's link-density boilerplate filter:
// keep only paragraph-like blocks whose anchor-text fraction is low.
func extractJustextLike(body []byte, pageURL string) (string, error) {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	nodes := htmlquery.Find(root, "//p|//li|//blockquote")

	var kept []string
	for _, n := range nodes {
		text := normalizeWhitespace(htmlquery.InnerText(n))
		if text == "" {
			continue
		}
		linkText := 0
		for _, a := range htmlquery.Find(n, ".//a") {
			linkText += len(htmlquery.InnerText(a))
		}
		if float64(linkText) > 0.3*float64(len(text)) {
			continue // boilerplate: mostly links (nav, related-articles lists)
		}
		kept = append(kept, text)
	}
	return strings.Join(kept, " "), nil
}

// extractBoilerpyLike is the cheapest fallback: strip all tags and
// whitespace-normalize, the "shallow text density" approach boilerpy uses
// when its block-classifier heuristics find no strong signal.
func extractBoilerpyLike(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("boilerpy-like parse: %w", err)
	}
	doc.Find("script,style,nav,header,footer,aside").Remove()
	return normalizeWhitespace(doc.Text()), nil
}
