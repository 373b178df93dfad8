package storage

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewRunID returns a lexicographically sortable run_id: a UTC-start
// timestamp prefix (so ordering by string equals ordering by start time)
// followed by a short random suffix to disambiguate runs started within the
// same second.
func NewRunID(startedAt time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return startedAt.UTC().Format("20060102T150405Z") + "-" + hex.EncodeToString(suffix)
}
