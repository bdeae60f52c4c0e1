// Package fetch pulls items from external sources. The RSS/Atom leg keeps
// the teacher's hand-rolled XML-struct parsing, custom user agent, and
// conditional-GET pattern (no feed-parsing library exists anywhere in the
// example pack); the sanitizer and idempotent raw-item creation are
// grounded on the original ingestion task's ingest_rss/create_raw_item.
package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"sharkwatch/internal/core"
	"sharkwatch/internal/urlnorm"
)

// rssFeed/rssItem model the subset of RSS 2.0 this fetcher needs.
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Link        string `xml:"link"`
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// atomFeed/atomEntry model the subset of Atom this fetcher needs.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string     `xml:"id"`
	Title   string     `xml:"title"`
	Summary string     `xml:"summary"`
	Content string      `xml:"content"`
	Links   []atomLink `xml:"link"`
	Updated string      `xml:"updated"`
	Published string    `xml:"published"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ParsedEntry is a fetcher-agnostic entry ready for dedup/creation.
type ParsedEntry struct {
	SourceItemID string
	Link         string
	Title        string
	Description  string
	Published    *time.Time
}

const userAgent = "aggregator-bot/1.0 (+https://example.invalid/bot)"

var dateLayouts = []string{
	time.RFC1123Z, time.RFC1123, time.RFC3339, time.RFC822Z, time.RFC822,
	"2006-01-02T15:04:05Z", "2006-01-02 15:04:05",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// CacheValidators are the conditional-GET headers carried between fetch
// cycles for one feed URL (see internal/feedcache).
type CacheValidators struct {
	ETag         string
	LastModified string
}

// FetchResult is what one HTTP round trip against a feed produced.
type FetchResult struct {
	NotModified bool
	Entries     []ParsedEntry
	Validators  CacheValidators
}

// FetchRSS performs a conditional GET against feedURL, parses RSS then
// Atom, and falls back to the sanitizer if the initial parse recovers no
// entries.
func FetchRSS(ctx context.Context, client *http.Client, feedURL string, cached CacheValidators) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("building request for %s: %w", feedURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}
	if cached.LastModified != "" {
		req.Header.Set("If-Modified-Since", cached.LastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetching %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("fetching %s: status %d", feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("reading body of %s: %w", feedURL, err)
	}

	entries, parseErr := parseFeedBody(body)
	if parseErr != nil || len(entries) == 0 {
		sanitized := sanitizeFeedXML(body)
		entries, parseErr = parseFeedBody(sanitized)
		if parseErr != nil {
			return FetchResult{}, fmt.Errorf("parsing %s after sanitization: %w", feedURL, parseErr)
		}
	}

	return FetchResult{
		Entries: entries,
		Validators: CacheValidators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}, nil
}

func parseFeedBody(body []byte) ([]ParsedEntry, error) {
	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		out := make([]ParsedEntry, 0, len(rss.Channel.Items))
		for _, it := range rss.Channel.Items {
			id := it.GUID
			if id == "" {
				id = it.Link
			}
			out = append(out, ParsedEntry{
				SourceItemID: id,
				Link:         it.Link,
				Title:        strings.TrimSpace(it.Title),
				Description:  strings.TrimSpace(it.Description),
				Published:    parseDate(it.PubDate),
			})
		}
		return out, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		out := make([]ParsedEntry, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			link := ""
			for _, l := range e.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			desc := e.Summary
			if desc == "" {
				desc = e.Content
			}
			published := parseDate(e.Published)
			if published == nil {
				published = parseDate(e.Updated)
			}
			out = append(out, ParsedEntry{
				SourceItemID: e.ID,
				Link:         link,
				Title:        strings.TrimSpace(e.Title),
				Description:  strings.TrimSpace(desc),
				Published:    published,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("no RSS or Atom entries recovered")
}

// htmlEntityFixups covers undefined named entities feedparser-equivalent
// libraries choke on; each is rewritten to its numeric reference.
var htmlEntityFixups = map[string]string{
	"&nbsp;": "&#160;", "&mdash;": "&#8212;", "&ndash;": "&#8211;",
	"&lsquo;": "&#8216;", "&rsquo;": "&#8217;", "&ldquo;": "&#8220;",
	"&rdquo;": "&#8221;", "&hellip;": "&#8230;", "&amp;amp;": "&amp;",
}

var controlChars = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

// sanitizeFeedXML recovers malformed feed bodies: decode with a UTF-8 ->
// Latin-1 -> Windows-1252 fallback chain, rewrite undefined HTML entities,
// and strip control characters.
func sanitizeFeedXML(body []byte) []byte {
	text := decodeBestEffort(body)
	for bad, good := range htmlEntityFixups {
		text = strings.ReplaceAll(text, bad, good)
	}
	text = controlChars.ReplaceAllString(text, "")
	return []byte(text)
}

// decodeBestEffort tries UTF-8 first (the common case); if the bytes are
// not valid UTF-8 it falls back to a byte-for-rune Latin-1/Windows-1252
// style reinterpretation, which recovers the vast majority of mis-declared
// feeds without pulling in a full encoding-detection dependency.
func decodeBestEffort(body []byte) string {
	if isValidUTF8(body) {
		return string(body)
	}
	runes := make([]rune, len(body))
	for i, b := range body {
		runes[i] = rune(b)
	}
	return string(runes)
}

func isValidUTF8(body []byte) bool {
	return utf8.Valid(body)
}

// DiscoverFeedURL probes a homepage for a declared feed link, then a fixed
// set of well-known paths, validating each candidate actually parses with
// at least one entry. The path list matches the original discovery task's
// exact candidates.
var wellKnownFeedPaths = []string{
	"/feed", "/rss", "/feed.xml", "/rss.xml", "/atom.xml", "/feeds/posts/default",
}

func DiscoverFeedURL(ctx context.Context, client *http.Client, homepageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, homepageURL, nil)
	if err == nil {
		req.Header.Set("User-Agent", userAgent)
		if resp, err := client.Do(req); err == nil {
			defer resp.Body.Close()
			if doc, err := goquery.NewDocumentFromReader(resp.Body); err == nil {
				if href, ok := doc.Find(`link[type="application/rss+xml"]`).First().Attr("href"); ok && href != "" {
					resolved, rerr := resolveAgainst(homepageURL, href)
					if rerr == nil {
						return resolved, nil
					}
				}
			}
		}
	}

	domain, err := urlnorm.ExtractDomain(homepageURL)
	if err != nil {
		return "", fmt.Errorf("extracting domain from %s: %w", homepageURL, err)
	}
	for _, path := range wellKnownFeedPaths {
		candidate := "https://" + domain + path
		result, err := FetchRSS(ctx, client, candidate, CacheValidators{})
		if err == nil && len(result.Entries) > 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no feed discovered for %s", homepageURL)
}

func resolveAgainst(base, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	domain, err := urlnorm.ExtractDomain(base)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(ref, "/") {
		return "https://" + domain + ref, nil
	}
	return "https://" + domain + "/" + ref, nil
}

// RawItemBuilder converts a parsed entry plus its owning source into a
// core.RawItem, computing canonical URL and ingest hash. It does not
// persist; callers dedup/insert via the persistence layer.
func RawItemBuilder(sourceID int64, e ParsedEntry) (core.RawItem, error) {
	canonical, err := urlnorm.Normalize(e.Link)
	if err != nil {
		return core.RawItem{}, fmt.Errorf("normalizing link %q: %w", e.Link, err)
	}
	hash := urlnorm.IngestHash(sourceID, canonical, e.Title)

	sourceItemID := e.SourceItemID
	if sourceItemID == "" {
		sourceItemID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String()
	}

	return core.RawItem{
		SourceID:       sourceID,
		SourceItemID:   sourceItemID,
		OriginalURL:    e.Link,
		CanonicalURL:   canonical,
		RawTitle:       e.Title,
		RawDescription: e.Description,
		PublishedAt:    e.Published,
		FetchedAt:      time.Now(),
		IngestHash:     hash,
	}, nil
}

// HTMLSelectors names the CSS selectors a per-source HTML scrape uses to
// recover a listing page's entries, sourced from Source.Metadata. The href
// found by Link is resolved relative to the page URL when it isn't already absolute.
type HTMLSelectors struct {
	Item    string // selector for one listing entry (e.g. "article.post")
	Title   string // selector, relative to Item, for the entry's title
	Link    string // selector, relative to Item, for the entry's link (reads href)
	Summary string // selector, relative to Item, for a short description
	Date    string // selector, relative to Item, for a published-date string
}

// FetchHTML scrapes a listing page with goquery using per-source selectors,
// for sources that publish no feed at all (spec §4.G). It does not support
// conditional GET since there is no feed-level validator to compare against;
// dedup instead falls fully on the raw item's canonical URL/ingest hash.
func FetchHTML(ctx context.Context, client *http.Client, pageURL string, sel HTMLSelectors) ([]ParsedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing html from %s: %w", pageURL, err)
	}

	var entries []ParsedEntry
	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		link, _ := item.Find(sel.Link).Attr("href")
		resolved, err := resolveAgainst(pageURL, link)
		if err != nil || resolved == "" {
			return
		}
		title := strings.TrimSpace(item.Find(sel.Title).First().Text())
		if title == "" {
			return
		}
		var summary string
		if sel.Summary != "" {
			summary = strings.TrimSpace(item.Find(sel.Summary).First().Text())
		}
		var published *time.Time
		if sel.Date != "" {
			dateText := strings.TrimSpace(item.Find(sel.Date).First().Text())
			published = parseDate(dateText)
		}
		entries = append(entries, ParsedEntry{
			Link:        resolved,
			Title:       title,
			Description: summary,
			Published:   published,
		})
	})
	return entries, nil
}

// HTMLMetadata is article-level metadata scraped from a page's head/body,
// used by the submission processor.
type HTMLMetadata struct {
	Title       string
	Description string
}

// ExtractHTMLMetadata pulls <title>, og:title/og:description, falling back
// to the first non-trivial paragraph for description.
func ExtractHTMLMetadata(body io.Reader) (HTMLMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return HTMLMetadata{}, fmt.Errorf("parsing html: %w", err)
	}

	meta := HTMLMetadata{}
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		meta.Title = v
	} else {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		meta.Description = v
	} else if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		meta.Description = v
	} else {
		doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if len(text) > 40 {
				meta.Description = text
				return false
			}
			return true
		})
	}
	return meta, nil
}
