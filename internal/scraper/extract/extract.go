// Package extract turns raw HTML into a structured article record. There are
// exactly two strategies: a generic CSS-selector extractor driven by the rule,
// and a parser tuned to the iFixit guide structure. Dispatch is a plain URL
// predicate, not a registry.
package extract

import (
	"net/url"
	"strings"

	"article-scraper/internal/scraper/model"
)

// Extractor produces a ScrapedArticle from fetched HTML.
type Extractor interface {
	Extract(html, pageURL string, rule *model.Rule) (*model.ScrapedArticle, error)
}

// IsSpecialized reports whether the URL is handled by the iFixit parser.
func IsSpecialized(rawURL string) bool {
	return strings.Contains(rawURL, "ifixit.com")
}

// ForURL selects the extractor for the target URL.
func ForURL(rawURL string) Extractor {
	if IsSpecialized(rawURL) {
		return ifixitExtractor{}
	}
	return genericExtractor{}
}

// resolveURL makes ref absolute against the origin of pageURL. Already
// absolute refs are returned unchanged.
func resolveURL(ref, pageURL string) string {
	if ref == "" || strings.HasPrefix(ref, "http") {
		return ref
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}
	abs, err := origin.Parse(ref)
	if err != nil {
		return ref
	}
	return abs.String()
}
