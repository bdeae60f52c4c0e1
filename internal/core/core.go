// Package core holds the domain types shared across every stage of the
// ingestion-and-clustering pipeline: sources, entities, raw items, story
// variants, clusters and their join records, submissions and candidate
// sources, and the relevance audit log.
package core

import (
	"regexp"
	"strings"
	"time"
)

// SourceCategory ranks a source's editorial trustworthiness, used both for
// relevance heuristics and for ordering variants within a cluster.
type SourceCategory string

const (
	SourceCategoryOfficial SourceCategory = "official"
	SourceCategoryPress    SourceCategory = "press"
	SourceCategoryOther    SourceCategory = "other"
)

// Signal converts a category into the numeric ordering weight used
// when ranking variants within a cluster (higher is more authoritative).
func (c SourceCategory) Signal() int {
	switch c {
	case SourceCategoryOfficial:
		return 3
	case SourceCategoryPress:
		return 2
	default:
		return 1
	}
}

// IngestMethod selects which fetcher handles a source.
type IngestMethod string

const (
	IngestMethodRSS     IngestMethod = "rss"
	IngestMethodHTML    IngestMethod = "html"
	IngestMethodAPI     IngestMethod = "api"
	IngestMethodReddit  IngestMethod = "reddit"
	IngestMethodTwitter IngestMethod = "twitter"
)

// SourceStatus tracks a source through admin review.
type SourceStatus string

const (
	SourceStatusCandidate       SourceStatus = "candidate"
	SourceStatusQueuedForReview SourceStatus = "queued_for_review"
	SourceStatusApproved        SourceStatus = "approved"
	SourceStatusRejected        SourceStatus = "rejected"
)

// UserSubmittedSourceSlug identifies the reserved Source row that owns raw
// items created directly from user submissions (resolution of the "source
// id for user submissions" question: a real row, never a zero/null id).
const UserSubmittedSourceSlug = "user-submitted"

// Source is an external content origin.
type Source struct {
	ID                  int64
	Name                string
	Slug                string
	Category            SourceCategory
	IngestMethod        IngestMethod
	BaseURL             string
	FeedURL             string
	Status              SourceStatus
	Priority            int
	LastFetchedAt       *time.Time
	FetchErrorCount     int
	Metadata            map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SkipRelevanceCheck reports whether this source's items should bypass the
// relevance filter entirely (e.g. a source that only ever publishes
// on-topic content).
func (s Source) SkipRelevanceCheck() bool {
	v, ok := s.Metadata["skip_relevance_check"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// EntityType distinguishes roster members from other named entities.
type EntityType string

const (
	EntityTypePlayer EntityType = "player"
	EntityTypeCoach  EntityType = "coach"
	EntityTypeStaff  EntityType = "staff"
	EntityTypeTeam   EntityType = "team"
)

// Entity is a player, coach, staff member, or team tracked for matching.
type Entity struct {
	ID        int64
	Name      string
	Slug      string
	Type      EntityType
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag is a lazily-created label attached to clusters.
type Tag struct {
	ID    int64
	Name  string
	Slug  string
	Color string
}

// RawItem is a pre-processing record for one fetched or submitted item.
type RawItem struct {
	ID            int64
	SourceID      int64
	SourceItemID  string
	OriginalURL   string
	CanonicalURL  string
	RawTitle      string
	RawDescription string
	RawContent    string
	PublishedAt   *time.Time
	FetchedAt     time.Time
	IngestHash    string
	Metadata      map[string]any
}

// ContentType distinguishes the shape of the surviving item.
type ContentType string

const (
	ContentTypeArticle    ContentType = "article"
	ContentTypeVideo      ContentType = "video"
	ContentTypePodcast    ContentType = "podcast"
	ContentTypeSocialPost ContentType = "social_post"
	ContentTypeForumPost  ContentType = "forum_post"
)

// EventType classifies the kind of news event a variant/cluster describes.
type EventType string

const (
	EventTypeTrade    EventType = "trade"
	EventTypeInjury   EventType = "injury"
	EventTypeLineup   EventType = "lineup"
	EventTypeRecall   EventType = "recall"
	EventTypeWaiver   EventType = "waiver"
	EventTypeSigning  EventType = "signing"
	EventTypeProspect EventType = "prospect"
	EventTypeGame     EventType = "game"
	EventTypeOpinion  EventType = "opinion"
	EventTypeOther    EventType = "other"
)

// EventTypeOrder is the fixed classifier tie-break order (Open Question b).
var EventTypeOrder = []EventType{
	EventTypeTrade, EventTypeInjury, EventTypeLineup, EventTypeRecall,
	EventTypeWaiver, EventTypeSigning, EventTypeProspect, EventTypeGame,
	EventTypeOpinion,
}

// VariantStatus tracks a story variant's lifecycle.
type VariantStatus string

const (
	VariantStatusActive   VariantStatus = "active"
	VariantStatusArchived VariantStatus = "archived"
)

// StoryVariant is a surviving, enriched raw item.
type StoryVariant struct {
	ID           int64
	RawItemID    int64
	SourceID     int64
	CanonicalURL string
	Title        string
	ContentType  ContentType
	PublishedAt  time.Time
	Tokens       []string
	EntityIDs    []int64
	EventType    EventType
	SourceSignal int
	Status       VariantStatus
	CreatedAt    time.Time
}

// ClusterStatus tracks a cluster's lifecycle.
type ClusterStatus string

const (
	ClusterStatusActive   ClusterStatus = "active"
	ClusterStatusArchived ClusterStatus = "archived"
	ClusterStatusMerged   ClusterStatus = "merged"
)

// Cluster groups StoryVariants that describe the same real-world event.
type Cluster struct {
	ID             int64
	Headline       string
	EventType      EventType
	Status         ClusterStatus
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
	Tokens         []string
	EntityIDs      []int64
	SourceCount    int
	ClickCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ClusterVariant links a Cluster to one of its member StoryVariants.
type ClusterVariant struct {
	ClusterID       int64
	VariantID       int64
	SimilarityScore float64
	AttachedAt      time.Time
}

// ClusterTag links a Cluster to a Tag.
type ClusterTag struct {
	ClusterID int64
	TagID     int64
}

// ClusterEntity links a Cluster to an Entity.
type ClusterEntity struct {
	ClusterID int64
	EntityID  int64
}

// SubmissionStatus tracks a user submission through processing.
type SubmissionStatus string

const (
	SubmissionStatusReceived      SubmissionStatus = "received"
	SubmissionStatusPublished     SubmissionStatus = "published"
	SubmissionStatusPendingReview SubmissionStatus = "pending_review"
	SubmissionStatusRejected      SubmissionStatus = "rejected"
	SubmissionStatusDuplicate     SubmissionStatus = "duplicate"
)

// Submission is a user-supplied URL awaiting processing.
type Submission struct {
	ID               int64
	URL              string
	NormalizedURL    string
	Domain           string
	SubmitterIP      string
	Status           SubmissionStatus
	RejectionReason  string
	RawItemID        *int64
	VariantID        *int64
	ClusterID        *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CandidateSourceStatus tracks a discovered domain through admin review.
type CandidateSourceStatus string

const (
	CandidateSourceStatusCandidate      CandidateSourceStatus = "candidate"
	CandidateSourceStatusQueuedForReview CandidateSourceStatus = "queued_for_review"
	CandidateSourceStatusApproved       CandidateSourceStatus = "approved"
	CandidateSourceStatusRejected       CandidateSourceStatus = "rejected"
)

// CandidateSource is a domain discovered via a user submission.
type CandidateSource struct {
	ID                  int64
	Domain              string
	BaseURL             string
	OriginSubmissionID  int64
	SuggestedCategory   SourceCategory
	SuggestedMethod     IngestMethod
	DiscoveredFeedURL   string
	SubmissionCount     int
	Status              CandidateSourceStatus
	ReviewNotes         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RelevanceMethod identifies which strategy produced a ValidationLog row.
type RelevanceMethod string

const (
	RelevanceMethodLLM     RelevanceMethod = "llm"
	RelevanceMethodKeyword RelevanceMethod = "keyword"
	RelevanceMethodSkip    RelevanceMethod = "skip"
)

// RelevanceResult is the outcome recorded for a relevance decision.
type RelevanceResult string

const (
	RelevanceResultApproved RelevanceResult = "approved"
	RelevanceResultRejected RelevanceResult = "rejected"
	RelevanceResultError    RelevanceResult = "error"
)

// ValidationLog audits one relevance decision for one raw item.
type ValidationLog struct {
	ID            int64
	RawItemID     int64
	Method        RelevanceMethod
	Result        RelevanceResult
	LLMResponse   string
	LLMModel      string
	KeywordMatch  *bool
	EntitiesFound []int64
	Reason        string
	LatencyMS     int64
	ErrorMessage  string
	CreatedAt     time.Time
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify produces a deterministic kebab-case slug from a name. It is
// idempotent: Slugify(Slugify(x)) == Slugify(x).
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}
