package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"article-scraper/internal/scraper/model"
)

type genericExtractor struct{}

// Extract reads each configured field from the first element matching its
// selector. Title and content are mandatory; every other field is optional
// and silently absent when its selector matches nothing.
func (genericExtractor) Extract(html, pageURL string, rule *model.Rule) (*model.ScrapedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	out := &model.ScrapedArticle{
		SourceURL:  pageURL,
		SourceName: rule.SourceName,
	}

	out.Title = strings.TrimSpace(doc.Find(rule.TitleSelector).First().Text())

	contentSel := doc.Find(rule.ContentSelector).First()
	if contentSel.Length() > 0 {
		inner, herr := contentSel.Html()
		if herr != nil {
			return nil, fmt.Errorf("read content HTML: %w", herr)
		}
		out.Content = inner
	}

	if out.Title == "" || strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("missing title or content (title selector %q matched: %t, content selector %q matched: %d bytes)",
			rule.TitleSelector, out.Title != "", rule.ContentSelector, len(out.Content))
	}

	if rule.ExcerptSelector != "" {
		out.Excerpt = strings.TrimSpace(doc.Find(rule.ExcerptSelector).First().Text())
	}
	if rule.CoverImageSelector != "" {
		if src, ok := doc.Find(rule.CoverImageSelector).First().Attr("src"); ok {
			out.CoverImage = resolveURL(src, pageURL)
		}
	}
	if rule.AuthorSelector != "" {
		out.Author = strings.TrimSpace(doc.Find(rule.AuthorSelector).First().Text())
	}
	if rule.PublishDateSelector != "" {
		out.PublishDate = strings.TrimSpace(doc.Find(rule.PublishDateSelector).First().Text())
	}
	return out, nil
}
