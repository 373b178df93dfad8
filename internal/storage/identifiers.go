// Package storage is the persistence layer: date-partitioned input/output
// table access plus the sidecar tables the core owns (processing_runs,
// feed_entry_jobs, feed_entry_vectors, feed_entry_topics, cluster_members).
//
// Dynamic table names cannot be expressed through a static ORM, so every
// identifier that is interpolated into SQL text is first checked against a
// whitelist and quoted; every value, including JSON payloads, is always
// passed as a bind parameter.
package storage

import (
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// QuoteIdentifier validates name against the [A-Za-z0-9_]+ whitelist and
// returns it double-quoted for safe interpolation into SQL text. It refuses
// anything else, since this is the only defense between a date-derived
// table name and a SQL-injection-shaped string.
func QuoteIdentifier(name string) (string, error) {
	if !identifierRe.MatchString(name) {
		return "", fmt.Errorf("invalid SQL identifier %q", name)
	}
	return pq.QuoteIdentifier(name), nil
}

// DatePartition formats a target date into the YYYYMMDD suffix used by
// flash_point_<YYYYMMDD>, feed_entries_<YYYYMMDD>, and news_clusters_<YYYYMMDD>.
func DatePartition(targetDate time.Time) string {
	return targetDate.UTC().Format("20060102")
}

// PartitionTables resolves the three date-partitioned table names for a
// target date.
type PartitionTables struct {
	FlashPoints string
	FeedEntries string
	NewsClusters string
}

// ResolvePartitionTables builds and validates the partition table set for
// targetDate.
func ResolvePartitionTables(targetDate time.Time) (PartitionTables, error) {
	suffix := DatePartition(targetDate)
	names := PartitionTables{
		FlashPoints:  "flash_point_" + suffix,
		FeedEntries:  "feed_entries_" + suffix,
		NewsClusters: "news_clusters_" + suffix,
	}
	for _, n := range []string{names.FlashPoints, names.FeedEntries, names.NewsClusters} {
		if !identifierRe.MatchString(n) {
			return PartitionTables{}, fmt.Errorf("invalid partition table name %q", n)
		}
	}
	return names, nil
}
