// Package urlnorm canonicalizes URLs and computes the fingerprints used to
// deduplicate raw items, grounded on the tracking-parameter-stripping logic
// in the original ingestion pipeline's normalize_url.
package urlnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query keys that do not affect a page's identity and
// are stripped so that links shared with different campaign tags collapse
// to the same canonical URL.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_content":  {},
	"utm_term":     {},
	"ref":          {},
	"fbclid":       {},
}

// Normalize canonicalizes a URL: lowercases scheme/host, drops the
// fragment, strips tracking query parameters, and sorts the remaining
// query keys for a stable representation. It is idempotent.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			k := strings.ToLower(key)
			if _, tracked := trackingParams[k]; tracked || strings.HasPrefix(k, "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = encodeSortedQuery(q)
	}

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

func encodeSortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		for j, v := range q[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// ExtractDomain returns the lowercased host (no port) of a URL.
func ExtractDomain(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", raw, err)
	}
	return strings.ToLower(u.Hostname()), nil
}

// IngestHash computes the deterministic dedup fingerprint for a raw item:
// SHA-256 over source id, canonical URL, and title.
func IngestHash(sourceID int64, canonicalURL, title string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s", sourceID, canonicalURL, title)))
	return hex.EncodeToString(h[:])
}
