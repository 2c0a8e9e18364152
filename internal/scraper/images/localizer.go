// Package images re-hosts remote images referenced by extracted content.
package images

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"article-scraper/internal/scraper/blob"
)

// Image references are rewritten with plain string replacement rather than a
// DOM round-trip, so markup the source site depends on stays byte-identical.
var imgSrcRe = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

// ImageFetcher is the slice of the fetch layer the localizer needs.
type ImageFetcher interface {
	FetchImage(ctx context.Context, rawURL, userAgent, referer string) ([]byte, string, error)
	RandomDelay(minMS, maxMS int)
}

// Result carries the rewritten content and cover image.
type Result struct {
	Content    string
	CoverImage string
	Downloaded int
}

// Localizer downloads each referenced image and re-uploads it to the blob
// store. Downloads are sequential with a randomized pause before each one;
// a burst of parallel image requests would undo the fetch layer's pacing.
type Localizer struct {
	Blobs blob.Store
	Log   *zap.Logger
	Now   func() time.Time
}

func New(blobs blob.Store, log *zap.Logger) *Localizer {
	return &Localizer{Blobs: blobs, Log: log, Now: time.Now}
}

// Localize rewrites every <img src> in content, plus the cover image, to
// point at the blob store. A failed image is logged and left as-is; one
// broken image never fails the run. Downloaded counts successful uploads
// only.
func (l *Localizer) Localize(ctx context.Context, f ImageFetcher, content, coverImage, pageURL, userAgent string) *Result {
	out := &Result{Content: content, CoverImage: coverImage}

	// Dedupe on the reference as written so each distinct src is fetched
	// once and every occurrence is rewritten together.
	seen := make(map[string]bool)
	var refs []string
	for _, m := range imgSrcRe.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}

	for _, ref := range refs {
		imgURL := resolveAgainstOrigin(ref, pageURL)
		newURL, err := l.localizeOne(ctx, f, imgURL, pageURL, userAgent, "")
		if err != nil {
			l.Log.Warn("Failed to localize image",
				zap.String("url", imgURL),
				zap.Error(err),
			)
			continue
		}
		out.Content = strings.ReplaceAll(out.Content, ref, newURL)
		out.Downloaded++
	}

	if coverImage != "" {
		newURL, err := l.localizeOne(ctx, f, coverImage, pageURL, userAgent, "cover_")
		if err != nil {
			l.Log.Warn("Failed to localize cover image",
				zap.String("url", coverImage),
				zap.Error(err),
			)
		} else {
			out.CoverImage = newURL
		}
	}
	return out
}

func (l *Localizer) localizeOne(ctx context.Context, f ImageFetcher, imgURL, pageURL, userAgent, prefix string) (string, error) {
	// Pause like a reader flipping through pictures.
	f.RandomDelay(500, 1500)

	data, contentType, err := f.FetchImage(ctx, imgURL, userAgent, pageURL)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	name := fmt.Sprintf("scraped/%s%d_%s.jpg", prefix, l.Now().UnixMilli(), shortID())
	publicURL, err := l.Blobs.Upload(ctx, name, data, contentType)
	if err != nil {
		return "", err
	}
	return publicURL, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func resolveAgainstOrigin(ref, pageURL string) string {
	if strings.HasPrefix(ref, "http") {
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
