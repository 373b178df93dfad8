package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

func TestDetectLanguage_TooShort(t *testing.T) {
	if got := DetectLanguage("short"); got != Unknown {
		t.Errorf("DetectLanguage(short) = %+v, want Unknown", got)
	}
}

func TestDetectLanguage_English(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 5)
	got := DetectLanguage(text)
	if got.Code != "en" {
		t.Errorf("Code = %q, want en", got.Code)
	}
}

func TestDeriveHostname(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/a/b":  "example.com",
		"https://news.example.org/x":   "news.example.org",
		"not a url %%%":                "",
	}
	for in, want := range cases {
		if got := DeriveHostname(in); got != want {
			t.Errorf("DeriveHostname(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeTranslator struct {
	out string
	err error
}

func (f fakeTranslator) TranslateTitle(_ context.Context, title, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func TestTranslateTitleOrFallback_EnglishSkipped(t *testing.T) {
	got := TranslateTitleOrFallback(context.Background(), fakeTranslator{out: "should not be used"}, "Original Title", "en", nil)
	if got != "Original Title" {
		t.Errorf("got %q, want original title unchanged", got)
	}
}

func TestTranslateTitleOrFallback_Success(t *testing.T) {
	got := TranslateTitleOrFallback(context.Background(), fakeTranslator{out: "Translated"}, "Titre", "fr", nil)
	if got != "Translated" {
		t.Errorf("got %q, want Translated", got)
	}
}

func TestTranslateTitleOrFallback_ErrorFallsBack(t *testing.T) {
	got := TranslateTitleOrFallback(context.Background(), fakeTranslator{err: errors.New("boom")}, "Titre", "fr", nil)
	if got != "Titre" {
		t.Errorf("got %q, want fallback to original", got)
	}
}

type fakeTagger struct {
	result model.NEREntities
	err    error
}

func (f fakeTagger) Tag(_ context.Context, _ string) (model.NEREntities, error) {
	return f.result, f.err
}

func TestTag_TooShortSkipsTagger(t *testing.T) {
	got, err := Tag(context.Background(), fakeTagger{err: errors.New("should not be called")}, "short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Classes) != 0 {
		t.Errorf("expected empty classes, got %v", got.Classes)
	}
}

func TestResolveGeo_OrdersAndDedupes(t *testing.T) {
	entities := model.NEREntities{
		Classes: map[string][]string{
			"GPE": {"Kyiv", "Moscow", "Kyiv"},
			"LOC": {"Not A Place"},
		},
	}
	got := ResolveGeo(entities)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Alpha2 != "UA" || got[0].Mentions != 2 {
		t.Errorf("first = %+v, want UA with 2 mentions", got[0])
	}
	if got[1].Alpha2 != "RU" || got[1].Mentions != 1 {
		t.Errorf("second = %+v, want RU with 1 mention", got[1])
	}
}

func TestClassifyIfEnabled_Disabled(t *testing.T) {
	got, err := ClassifyIfEnabled(context.Background(), false, nil, "e1", "text")
	if err != nil || got != nil {
		t.Errorf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestKeywordTopicClassifier_Classify(t *testing.T) {
	c := NewKeywordTopicClassifier()
	cases := map[string]string{
		"Troops launched an offensive near the border overnight":    "military",
		"The two nations signed a ceasefire after the summit":       "diplomacy",
		"Inflation and new tariffs have rattled the currency market": "economy",
		"Thousands of refugees have been displaced by the fighting": "humanitarian",
		"The opposition boycotted the parliament's vote":            "politics",
		"A quiet afternoon in the village market":                   "economy",
	}
	for text, want := range cases {
		got, err := c.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify(%q) error: %v", text, err)
		}
		if got != want {
			t.Errorf("Classify(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestClassifyIfEnabled_UsesClassifier(t *testing.T) {
	got, err := ClassifyIfEnabled(context.Background(), true, NewKeywordTopicClassifier(), "e1", "the missile strike hit the capital")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Topic != "military" {
		t.Errorf("got %+v, want topic military", got)
	}
}
