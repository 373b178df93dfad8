// Package model holds the pipeline's core domain types: the entities
// described by the storage layer's sidecar and date-partitioned tables, and
// the per-(run, entry) job state machine.
package model

import "time"

// Tier mirrors config.Tier to keep pkg/model free of a dependency on
// internal/config.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// RunStatus is the lifecycle state of a ProcessingRun.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// JobStatus is a state in the per-(run, entry) job state machine.
type JobStatus string

const (
	JobQueued          JobStatus = "QUEUED"
	JobFetching        JobStatus = "FETCHING"
	JobExtracted       JobStatus = "EXTRACTED"
	JobDeduped         JobStatus = "DEDUPED"
	JobEmbedded        JobStatus = "EMBEDDED"
	JobClustered       JobStatus = "CLUSTERED"
	JobSummarized      JobStatus = "SUMMARIZED"
	JobScored          JobStatus = "SCORED"
	JobSkippedDuplicate JobStatus = "SKIPPED_DUPLICATE"
	JobFailed          JobStatus = "FAILED"
)

// FailureReason is the taxonomy of per-entry terminal failures persisted on
// the job row.
type FailureReason string

const (
	ReasonFetchError     FailureReason = "fetch_error"
	ReasonTimeout        FailureReason = "timeout"
	ReasonHTTP4xx        FailureReason = "http_4xx"
	ReasonHTTP5xx        FailureReason = "http_5xx"
	ReasonDomainBlocked  FailureReason = "domain_blocked"
	ReasonNoText         FailureReason = "no_text"
	ReasonTooShort       FailureReason = "too_short"
	ReasonPaywall        FailureReason = "paywall"
	ReasonJSRequired     FailureReason = "js_required"
	ReasonConsentWall    FailureReason = "consent_wall"
	ReasonParseError     FailureReason = "parse_error"
	ReasonEmbedError     FailureReason = "embed_error"
	ReasonClusterError   FailureReason = "cluster_error"
	ReasonSummarizeError FailureReason = "summarize_error"
	ReasonCancelled      FailureReason = "cancelled"
	ReasonUnknown        FailureReason = "unknown"
)

// ExtractionMethod identifies which cascade method produced an entry's body.
type ExtractionMethod string

const (
	MethodTrafilaturaLike ExtractionMethod = "trafilatura-like"
	MethodReadabilityLike ExtractionMethod = "readability-like"
	MethodJustextLike     ExtractionMethod = "justext-like"
	MethodBoilerpyLike    ExtractionMethod = "boilerpy-like"
)

// Flashpoint is read-only to the core: it is populated by the upstream
// system and only its identity and domain hints are consumed here.
type Flashpoint struct {
	FlashpointID string   `db:"flashpoint_id" json:"flashpoint_id"`
	Title        string   `db:"title" json:"title"`
	Description  string   `db:"description" json:"description"`
	DomainHints  []string `db:"domain_hints" json:"domain_hints"`
}

// NEREntities is the per-entry entity-class -> surface-form mapping plus the
// tagger's metadata block.
type NEREntities struct {
	Classes map[string][]string `json:"classes"`
	Meta    NERMeta              `json:"meta"`
}

// NERMeta describes the tagger that produced a NEREntities value.
type NERMeta struct {
	Score   float64 `json:"score"`
	ModelID string  `json:"model_id"`
}

// GeoEntity is a resolved country mention.
type GeoEntity struct {
	Name     string `json:"name"`
	Alpha2   string `json:"alpha2"`
	Mentions int    `json:"mentions"`
}

// FeedEntry is the input row, enriched in place by the core.
type FeedEntry struct {
	EntryID          string     `db:"entry_id" json:"entry_id"`
	URL              string     `db:"url" json:"url"`
	Title            string     `db:"title" json:"title"`
	Language         string     `db:"language" json:"language"`
	Domain           string     `db:"domain" json:"domain"`
	FlashpointID     string     `db:"flashpoint_id" json:"flashpoint_id"`
	SeenAt           time.Time  `db:"seen_at" json:"seen_at"`

	TitleEN          *string    `db:"title_en" json:"title_en,omitempty"`
	Hostname         *string    `db:"hostname" json:"hostname,omitempty"`
	Content          *string    `db:"content" json:"content,omitempty"`
	CompressedContent []byte    `db:"compressed_content" json:"-"`
	Summary          *string    `db:"summary" json:"summary,omitempty"`
	Entities         *NEREntities `db:"entities" json:"entities,omitempty"`
	GeoEntities      []GeoEntity  `db:"geo_entities" json:"geo_entities,omitempty"`
	Images           []string   `db:"images" json:"images,omitempty"`
}

// ProcessingRun is one pipeline invocation.
type ProcessingRun struct {
	RunID       string     `db:"run_id" json:"run_id"`
	TargetDate  string     `db:"target_date" json:"target_date"`
	Tier        Tier       `db:"tier" json:"tier"`
	Status      RunStatus  `db:"status" json:"status"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Selected    int        `db:"selected" json:"selected"`
	Processed   int        `db:"processed" json:"processed"`
	Failed      int        `db:"failed" json:"failed"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
}

// FeedEntryJob is the per-(run, entry) state record; UNIQUE(run_id,
// entry_id) is the claim invariant enforced by the storage layer.
type FeedEntryJob struct {
	RunID            string           `db:"run_id" json:"run_id"`
	EntryID          string           `db:"entry_id" json:"entry_id"`
	Status           JobStatus        `db:"status" json:"status"`
	FailureReason    *FailureReason   `db:"failure_reason" json:"failure_reason,omitempty"`
	ExtractionMethod *ExtractionMethod `db:"extraction_method" json:"extraction_method,omitempty"`
	IsDuplicate      bool             `db:"is_duplicate" json:"is_duplicate"`
	DuplicateOfEntryID *string        `db:"duplicate_of_entry_id" json:"duplicate_of_entry_id,omitempty"`
	ContentHash      *string          `db:"content_hash" json:"content_hash,omitempty"`
	MinHashSignature []uint64         `db:"minhash_signature" json:"-"`
	FetchedAt        *time.Time       `db:"fetched_at" json:"fetched_at,omitempty"`
	ExtractedAt      *time.Time       `db:"extracted_at" json:"extracted_at,omitempty"`
	EmbeddedAt       *time.Time       `db:"embedded_at" json:"embedded_at,omitempty"`
	ClusteredAt      *time.Time       `db:"clustered_at" json:"clustered_at,omitempty"`
	SummarizedAt     *time.Time       `db:"summarized_at" json:"summarized_at,omitempty"`
	ScoredAt         *time.Time       `db:"scored_at" json:"scored_at,omitempty"`
}

// EntryVector is the content-addressed embedding for an entry: keyed by
// entry_id (not run_id, entry_id) so it survives across runs.
type EntryVector struct {
	EntryID string    `db:"entry_id" json:"entry_id"`
	Vector  []float32 `db:"vector" json:"vector"`
	Model   string    `db:"model" json:"model"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClusterMember associates an entry with a run-scoped cluster, internal to
// the clustering stage.
type ClusterMember struct {
	RunID        string `db:"run_id" json:"run_id"`
	FlashpointID string `db:"flashpoint_id" json:"flashpoint_id"`
	ClusterUUID  string `db:"cluster_uuid" json:"cluster_uuid"`
	EntryID      string `db:"entry_id" json:"entry_id"`
}

// ClusterOutput is the external, dense-ranked view of a cluster delivered
// downstream in news_clusters_<YYYYMMDD>.
type ClusterOutput struct {
	FlashpointID string    `db:"flashpoint_id" json:"flashpoint_id"`
	ClusterID    int       `db:"cluster_id" json:"cluster_id"`
	Summary      string    `db:"summary" json:"summary"`
	ArticleCount int       `db:"article_count" json:"article_count"`
	TopDomains   []string  `db:"top_domains" json:"top_domains"`
	Languages    []string  `db:"languages" json:"languages"`
	URLs         []string  `db:"urls" json:"urls"`
	Images       []string  `db:"images" json:"images"`
	Score        float64   `db:"score" json:"score"`
	Flagged      bool      `db:"flagged" json:"flagged"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// MemberEntryIDs is the run-internal backing set this output was
	// derived from; not persisted, used to thread state between the
	// clusterer, summarizer, and scorer stages within a single run.
	MemberEntryIDs []string `db:"-" json:"-"`
}

// FeedEntryTopic is the sidecar row written by the optional topic enricher.
type FeedEntryTopic struct {
	EntryID string `db:"entry_id" json:"entry_id"`
	Topic   string `db:"topic" json:"topic"`
}
