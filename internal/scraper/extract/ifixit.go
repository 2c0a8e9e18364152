package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"article-scraper/internal/scraper/model"
)

// The iFixit guide parser works on raw HTML with patterns rather than a DOM
// walk. Guide pages are rendered server-side with a stable class structure,
// and the anti-bot challenge page (which is not a guide) must fall through to
// the salvage chain instead of crashing a parser.

var (
	guideTitleRe   = regexp.MustCompile(`(?is)<h1[^>]*class="[^"]*placeholder-title[^"]*"[^>]*>(.*?)</h1>`)
	anyH1Re        = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	coverImageRe   = regexp.MustCompile(`(?i)<img[^>]*class="[^"]*stepImage[^"]*"[^>]*src="([^"]+)"`)
	stepLinesRe    = regexp.MustCompile(`(?is)<ul[^>]*class="[^"]*step-lines[^"]*"[^>]*>(.*?)</ul>`)
	textParaRe     = regexp.MustCompile(`(?is)<p[^>]*itemprop="text"[^>]*>(.*?)</p>`)
	bodyInnerRe    = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
	tagRe          = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	minLineLength  = 5
	minContentSize = 200
)

// guideStep is one numbered instruction block.
type guideStep struct {
	Number int
	Lines  []string
}

// guide is a parsed iFixit repair guide.
type guide struct {
	Title        string
	Introduction string
	CoverImage   string
	Difficulty   string
	TimeRequired string
	Steps        []guideStep
}

// stripTags flattens an HTML fragment to plain text.
func stripTags(fragment string) string {
	text := tagRe.ReplaceAllString(fragment, "")
	text = html.UnescapeString(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// parseGuide extracts the guide structure, or nil when the page does not
// carry a usable title and at least one step.
func parseGuide(htmlSrc string) *guide {
	g := &guide{
		Difficulty:   "Moderate",
		TimeRequired: "1-2 hours",
	}

	if m := guideTitleRe.FindStringSubmatch(htmlSrc); m != nil {
		g.Title = stripTags(m[1])
	}
	if g.Title == "" {
		if m := anyH1Re.FindStringSubmatch(htmlSrc); m != nil {
			g.Title = stripTags(m[1])
		}
	}

	if m := coverImageRe.FindStringSubmatch(htmlSrc); m != nil {
		g.CoverImage = m[1]
	}

	number := 1
	for _, container := range stepLinesRe.FindAllStringSubmatch(htmlSrc, -1) {
		var lines []string
		for _, line := range textParaRe.FindAllStringSubmatch(container[1], -1) {
			text := stripTags(line[1])
			if len(text) > minLineLength {
				lines = append(lines, text)
			}
		}
		if len(lines) > 0 {
			g.Steps = append(g.Steps, guideStep{Number: number, Lines: lines})
			number++
		}
	}

	if g.Title == "" || len(g.Steps) == 0 {
		return nil
	}
	return g
}

// HTML renders the guide as a single article body with numbered step
// sections.
func (g *guide) HTML() string {
	var b strings.Builder
	if g.Introduction != "" {
		b.WriteString("<div class=\"guide-introduction\">\n" + g.Introduction + "\n</div>\n\n")
	}
	b.WriteString("<div class=\"guide-meta\">\n")
	b.WriteString(fmt.Sprintf("<p><strong>Difficulty:</strong> %s</p>\n", g.Difficulty))
	b.WriteString(fmt.Sprintf("<p><strong>Time Required:</strong> %s</p>\n", g.TimeRequired))
	b.WriteString("</div>\n\n")

	b.WriteString("<div class=\"guide-steps\">\n")
	for _, step := range g.Steps {
		b.WriteString(fmt.Sprintf("<div class=\"step\" id=\"step-%d\">\n", step.Number))
		b.WriteString(fmt.Sprintf("<h2>Step %d</h2>\n", step.Number))
		b.WriteString("<div class=\"step-lines\">\n<ul>\n")
		for _, line := range step.Lines {
			b.WriteString("<li>" + line + "</li>\n")
		}
		b.WriteString("</ul>\n</div>\n</div>\n\n")
	}
	b.WriteString("</div>\n")
	return b.String()
}

// Excerpt takes the first ~200 characters of the introduction text.
func (g *guide) Excerpt() string {
	text := stripTags(g.Introduction)
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}

type ifixitExtractor struct{}

// Extract parses the guide structure and, when the page only partially
// matches, walks a salvage chain: first h1 plus every instruction paragraph,
// then the raw body. Salvaging a low-quality page beats forcing a rule
// authoring roundtrip.
func (ifixitExtractor) Extract(htmlSrc, pageURL string, rule *model.Rule) (*model.ScrapedArticle, error) {
	out := &model.ScrapedArticle{
		SourceURL:  pageURL,
		SourceName: rule.SourceName,
	}

	if g := parseGuide(htmlSrc); g != nil {
		out.Title = g.Title
		out.Content = g.HTML()
		out.Excerpt = g.Excerpt()
		out.CoverImage = resolveURL(g.CoverImage, pageURL)
		return out, nil
	}

	if m := anyH1Re.FindStringSubmatch(htmlSrc); m != nil {
		out.Title = stripTags(m[1])
	}

	if paras := textParaRe.FindAllStringSubmatch(htmlSrc, -1); len(paras) > 0 {
		var b strings.Builder
		b.WriteString("<div class=\"guide-content\">\n")
		for _, p := range paras {
			if text := stripTags(p[1]); text != "" {
				b.WriteString("<p>" + text + "</p>\n")
			}
		}
		b.WriteString("</div>")
		out.Content = b.String()
	}

	if len(out.Content) < minContentSize {
		if m := bodyInnerRe.FindStringSubmatch(htmlSrc); m != nil {
			out.Content = m[1]
		}
	}

	if out.Title == "" || strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("missing title or content after guide fallbacks (tried guide structure, h1 plus instruction paragraphs, raw body)")
	}
	return out, nil
}
