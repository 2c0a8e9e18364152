package images

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFetcher serves canned image bytes and records every requested URL.
type fakeFetcher struct {
	fetched []string
	delays  int
	failFor map[string]bool
}

func (f *fakeFetcher) FetchImage(_ context.Context, rawURL, _, _ string) ([]byte, string, error) {
	f.fetched = append(f.fetched, rawURL)
	if f.failFor[rawURL] {
		return nil, "", errors.New("blocked")
	}
	return []byte{0xFF, 0xD8}, "image/jpeg", nil
}

func (f *fakeFetcher) RandomDelay(minMS, maxMS int) {
	f.delays++
}

// fakeBlobs fabricates public URLs and records uploads.
type fakeBlobs struct {
	uploads []string
	fail    bool
}

func (b *fakeBlobs) Upload(_ context.Context, name string, _ []byte, _ string) (string, error) {
	if b.fail {
		return "", errors.New("storage full")
	}
	b.uploads = append(b.uploads, name)
	return fmt.Sprintf("https://cdn.local/%s", name), nil
}

func newTestLocalizer(blobs *fakeBlobs) *Localizer {
	l := New(blobs, zap.NewNop())
	l.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	return l
}

// TestLocalize_RewritesAndCounts verifies every distinct image is fetched
// once, rewritten in place, and counted.
func TestLocalize_RewritesAndCounts(t *testing.T) {
	content := `<p>intro</p>
<img class="a" src="https://site.com/one.jpg">
<img src="https://site.com/two.jpg" alt="x">
<img src="https://site.com/one.jpg">`
	fetcher := &fakeFetcher{}
	blobs := &fakeBlobs{}
	l := newTestLocalizer(blobs)

	res := l.Localize(context.Background(), fetcher, content, "", "https://site.com/page", "ua")

	assert.Equal(t, 2, res.Downloaded)
	assert.Len(t, fetcher.fetched, 2, "duplicate src fetched once")
	assert.NotContains(t, res.Content, "https://site.com/one.jpg")
	assert.NotContains(t, res.Content, "https://site.com/two.jpg")
	assert.Contains(t, res.Content, "https://cdn.local/scraped/")
	assert.Contains(t, res.Content, "<p>intro</p>", "surrounding markup untouched")
	assert.Equal(t, 2, fetcher.delays, "one pause per download")
}

// TestLocalize_RelativeSrc verifies a relative src is fetched absolute but
// rewritten where it appears.
func TestLocalize_RelativeSrc(t *testing.T) {
	content := `<img src="/media/pic.png">`
	fetcher := &fakeFetcher{}
	blobs := &fakeBlobs{}
	l := newTestLocalizer(blobs)

	res := l.Localize(context.Background(), fetcher, content, "", "https://site.com/deep/page", "ua")

	require.Len(t, fetcher.fetched, 1)
	assert.Equal(t, "https://site.com/media/pic.png", fetcher.fetched[0])
	assert.NotContains(t, res.Content, "/media/pic.png")
	assert.Contains(t, res.Content, "https://cdn.local/scraped/")
}

// TestLocalize_FailedImageKept verifies one broken image is skipped without
// failing the rest.
func TestLocalize_FailedImageKept(t *testing.T) {
	content := `<img src="https://site.com/bad.jpg"><img src="https://site.com/good.jpg">`
	fetcher := &fakeFetcher{failFor: map[string]bool{"https://site.com/bad.jpg": true}}
	blobs := &fakeBlobs{}
	l := newTestLocalizer(blobs)

	res := l.Localize(context.Background(), fetcher, content, "", "https://site.com/page", "ua")

	assert.Equal(t, 1, res.Downloaded)
	assert.Contains(t, res.Content, "https://site.com/bad.jpg", "failed image left as-is")
	assert.NotContains(t, res.Content, "https://site.com/good.jpg")
}

// TestLocalize_CoverImage verifies the cover gets its own prefixed blob name
// and does not count as a content download.
func TestLocalize_CoverImage(t *testing.T) {
	fetcher := &fakeFetcher{}
	blobs := &fakeBlobs{}
	l := newTestLocalizer(blobs)

	res := l.Localize(context.Background(), fetcher, "<p>no images</p>", "https://site.com/cover.jpg", "https://site.com/page", "ua")

	assert.Equal(t, 0, res.Downloaded)
	require.Len(t, blobs.uploads, 1)
	assert.True(t, strings.HasPrefix(blobs.uploads[0], "scraped/cover_"), "got %q", blobs.uploads[0])
	assert.True(t, strings.HasPrefix(res.CoverImage, "https://cdn.local/scraped/cover_"))
}

// TestLocalize_CoverFailureKeepsOriginal verifies the original cover URL
// survives a failed download.
func TestLocalize_CoverFailureKeepsOriginal(t *testing.T) {
	fetcher := &fakeFetcher{failFor: map[string]bool{"https://site.com/cover.jpg": true}}
	blobs := &fakeBlobs{}
	l := newTestLocalizer(blobs)

	res := l.Localize(context.Background(), fetcher, "", "https://site.com/cover.jpg", "https://site.com/page", "ua")

	assert.Equal(t, "https://site.com/cover.jpg", res.CoverImage)
}

// TestLocalize_UploadFailure verifies a storage error is treated like a
// failed download.
func TestLocalize_UploadFailure(t *testing.T) {
	fetcher := &fakeFetcher{}
	blobs := &fakeBlobs{fail: true}
	l := newTestLocalizer(blobs)

	res := l.Localize(context.Background(), fetcher, `<img src="https://site.com/a.jpg">`, "", "https://site.com/page", "ua")

	assert.Equal(t, 0, res.Downloaded)
	assert.Contains(t, res.Content, "https://site.com/a.jpg")
}

// TestBlobNameShape verifies the generated object names.
func TestBlobNameShape(t *testing.T) {
	fetcher := &fakeFetcher{}
	blobs := &fakeBlobs{}
	l := newTestLocalizer(blobs)

	l.Localize(context.Background(), fetcher, `<img src="https://site.com/a.jpg">`, "", "https://site.com/page", "ua")

	require.Len(t, blobs.uploads, 1)
	name := blobs.uploads[0]
	assert.True(t, strings.HasPrefix(name, "scraped/1700000000000_"), "got %q", name)
	assert.True(t, strings.HasSuffix(name, ".jpg"))
}
