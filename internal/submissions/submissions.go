// Package submissions processes user-supplied URLs: normalize, dedup,
// extract metadata, create a raw item against the reserved user-submitted
// source, and propose a candidate source for unknown domains. Grounded on
// the original pipeline's process_submission / discover_rss_feed.
package submissions

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sharkwatch/internal/core"
	"sharkwatch/internal/fetch"
	"sharkwatch/internal/urlnorm"
)

// Store is the persistence dependency this package needs.
type Store interface {
	FindVariantByURL(ctx context.Context, canonicalURL string) (core.StoryVariant, bool, error)
	UserSubmittedSourceID(ctx context.Context) (int64, error)
	CreateRawItem(ctx context.Context, item core.RawItem) (core.RawItem, bool, error) // bool = created (false = duplicate)
	IsKnownDomain(ctx context.Context, domain string) (bool, error)
	UpsertCandidateSource(ctx context.Context, cs core.CandidateSource) error
	CountRecentSubmissions(ctx context.Context, ip string, since time.Time) (int, error)
	SaveSubmission(ctx context.Context, s core.Submission) (core.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id int64, status core.SubmissionStatus, reason string) error
	SetSubmissionRawItem(ctx context.Context, submissionID, rawItemID int64) error
	EnqueueEnrich(ctx context.Context, rawItemID int64) error
}

// Processor handles the submission intake flow.
type Processor struct {
	store       Store
	httpClient  *http.Client
	rateLimit   int
	rateWindow  time.Duration
}

// NewProcessor builds a Processor.
func NewProcessor(store Store, httpClient *http.Client, rateLimitPerHour int) *Processor {
	return &Processor{store: store, httpClient: httpClient, rateLimit: rateLimitPerHour, rateWindow: time.Hour}
}

// Submit runs the full intake flow for one submitted URL from one IP.
func (p *Processor) Submit(ctx context.Context, rawURL, submitterIP string) (core.Submission, error) {
	count, err := p.store.CountRecentSubmissions(ctx, submitterIP, time.Now().Add(-p.rateWindow))
	if err != nil {
		return core.Submission{}, fmt.Errorf("checking submission rate limit: %w", err)
	}
	if count >= p.rateLimit {
		return core.Submission{}, fmt.Errorf("submission rate limit exceeded for %s", submitterIP)
	}

	normalized, err := urlnorm.Normalize(rawURL)
	if err != nil {
		return core.Submission{}, fmt.Errorf("normalizing submitted url: %w", err)
	}
	domain, err := urlnorm.ExtractDomain(normalized)
	if err != nil {
		return core.Submission{}, fmt.Errorf("extracting domain: %w", err)
	}

	sub := core.Submission{
		URL: rawURL, NormalizedURL: normalized, Domain: domain,
		SubmitterIP: submitterIP, Status: core.SubmissionStatusReceived,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	sub, err = p.store.SaveSubmission(ctx, sub)
	if err != nil {
		return core.Submission{}, fmt.Errorf("saving submission: %w", err)
	}

	if _, found, err := p.store.FindVariantByURL(ctx, normalized); err != nil {
		return sub, fmt.Errorf("checking for duplicate variant: %w", err)
	} else if found {
		_ = p.store.UpdateSubmissionStatus(ctx, sub.ID, core.SubmissionStatusDuplicate, "a story variant for this URL already exists")
		sub.Status = core.SubmissionStatusDuplicate
		return sub, nil
	}

	meta, err := p.fetchMetadata(ctx, normalized)
	if err != nil {
		_ = p.store.UpdateSubmissionStatus(ctx, sub.ID, core.SubmissionStatusRejected, err.Error())
		sub.Status = core.SubmissionStatusRejected
		sub.RejectionReason = err.Error()
		return sub, nil
	}

	sourceID, err := p.store.UserSubmittedSourceID(ctx)
	if err != nil {
		return sub, fmt.Errorf("resolving user-submitted source: %w", err)
	}

	rawItem := core.RawItem{
		SourceID:       sourceID,
		OriginalURL:    rawURL,
		CanonicalURL:   normalized,
		RawTitle:       meta.Title,
		RawDescription: meta.Description,
		FetchedAt:      time.Now(),
		IngestHash:     urlnorm.IngestHash(sourceID, normalized, meta.Title),
	}
	created, wasNew, err := p.store.CreateRawItem(ctx, rawItem)
	if err != nil {
		return sub, fmt.Errorf("creating raw item for submission: %w", err)
	}
	if !wasNew {
		_ = p.store.UpdateSubmissionStatus(ctx, sub.ID, core.SubmissionStatusDuplicate, "raw item already exists")
		sub.Status = core.SubmissionStatusDuplicate
		return sub, nil
	}

	if err := p.store.SetSubmissionRawItem(ctx, sub.ID, created.ID); err != nil {
		return sub, fmt.Errorf("linking submission to raw item: %w", err)
	}

	if err := p.store.EnqueueEnrich(ctx, created.ID); err != nil {
		return sub, fmt.Errorf("enqueueing enrichment: %w", err)
	}

	known, err := p.store.IsKnownDomain(ctx, domain)
	if err != nil {
		return sub, fmt.Errorf("checking known domain: %w", err)
	}
	if !known {
		discoveredFeed, _ := fetch.DiscoverFeedURL(ctx, p.httpClient, "https://"+domain)
		cs := core.CandidateSource{
			Domain:             domain,
			BaseURL:            "https://" + domain,
			OriginSubmissionID: sub.ID,
			SuggestedCategory:  core.SourceCategoryOther,
			SuggestedMethod:    core.IngestMethodHTML,
			DiscoveredFeedURL:  discoveredFeed,
			Status:             core.CandidateSourceStatusCandidate,
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		}
		if discoveredFeed != "" {
			cs.SuggestedMethod = core.IngestMethodRSS
		}
		if err := p.store.UpsertCandidateSource(ctx, cs); err != nil {
			return sub, fmt.Errorf("upserting candidate source: %w", err)
		}
	}

	_ = p.store.UpdateSubmissionStatus(ctx, sub.ID, core.SubmissionStatusPublished, "")
	sub.Status = core.SubmissionStatusPublished
	sub.RawItemID = &created.ID
	return sub, nil
}

func (p *Processor) fetchMetadata(ctx context.Context, normalizedURL string) (fetch.HTMLMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizedURL, nil)
	if err != nil {
		return fetch.HTMLMetadata{}, fmt.Errorf("building metadata request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fetch.HTMLMetadata{}, fmt.Errorf("fetching submitted url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fetch.HTMLMetadata{}, fmt.Errorf("submitted url returned status %d", resp.StatusCode)
	}
	return fetch.ExtractHTMLMetadata(resp.Body)
}
