package storage

import (
	"testing"
	"time"
)

func TestQuoteIdentifier(t *testing.T) {
	got, err := QuoteIdentifier("feed_entries_20260731")
	if err != nil {
		t.Fatalf("QuoteIdentifier() error = %v", err)
	}
	if got != `"feed_entries_20260731"` {
		t.Errorf("got = %q", got)
	}
}

func TestQuoteIdentifier_Rejects(t *testing.T) {
	cases := []string{
		"feed_entries; DROP TABLE users",
		"feed'entries",
		"feed entries",
		"",
	}
	for _, c := range cases {
		if _, err := QuoteIdentifier(c); err == nil {
			t.Errorf("QuoteIdentifier(%q) expected error, got nil", c)
		}
	}
}

func TestResolvePartitionTables(t *testing.T) {
	date := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	tables, err := ResolvePartitionTables(date)
	if err != nil {
		t.Fatalf("ResolvePartitionTables() error = %v", err)
	}
	if tables.FlashPoints != "flash_point_20260731" {
		t.Errorf("FlashPoints = %q", tables.FlashPoints)
	}
	if tables.FeedEntries != "feed_entries_20260731" {
		t.Errorf("FeedEntries = %q", tables.FeedEntries)
	}
	if tables.NewsClusters != "news_clusters_20260731" {
		t.Errorf("NewsClusters = %q", tables.NewsClusters)
	}
}
