package scrape

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"article-scraper/internal/scraper/extract"
	"article-scraper/internal/scraper/fetch"
	"article-scraper/internal/scraper/images"
	"article-scraper/internal/scraper/model"
)

// Runner wires the run pipeline together. NewFetcher is a hook so tests can
// substitute a fetcher with fake sleep and transport.
type Runner struct {
	Rules      RuleStore
	Articles   ArticleStore
	Recorder   Recorder
	Governor   Governor
	Localizer  *images.Localizer
	Log        *zap.Logger
	NewFetcher func(rule *model.Rule) *fetch.Fetcher
}

// RunResult is returned to the caller on success.
type RunResult struct {
	ArticleID        string
	ImagesDownloaded int
	ResponseTime     time.Duration
	TotalTime        time.Duration
}

// Run processes one target URL for the rule. targetURL, when non-empty,
// overrides the rule's stored source_url without mutating the rule.
//
// Failures before the history row exists (unknown rule, missing selectors,
// rate limiting) surface immediately. Everything after is caught here,
// recorded as a failed run with the fail counter bumped, and re-surfaced.
func (r *Runner) Run(ctx context.Context, ruleID, targetURL string) (*RunResult, error) {
	start := time.Now()

	rule, err := r.Rules.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	urlToScrape := targetURL
	if urlToScrape == "" {
		urlToScrape = rule.SourceURL
	}
	if urlToScrape == "" {
		return nil, fmt.Errorf("rule %s has no source URL and no target URL was given", ruleID)
	}
	if !extract.IsSpecialized(urlToScrape) && (rule.TitleSelector == "" || rule.ContentSelector == "") {
		return nil, fmt.Errorf("rule %s is missing the title or content selector required for generic extraction", ruleID)
	}

	ok, err := r.Governor.CanProceed(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !ok {
		return nil, ErrRateLimited
	}
	if err := r.Governor.RecordRequest(ctx, ruleID); err != nil {
		return nil, fmt.Errorf("record request: %w", err)
	}
	defer r.Governor.Release(ctx, ruleID)

	f := r.NewFetcher(rule)

	// Vary the request cadence before touching the site at all.
	delayMin, delayMax := rule.AntiScraping.DelayBounds()
	r.Log.Info("Starting scrape run",
		zap.String("ruleId", ruleID),
		zap.String("url", urlToScrape),
		zap.Int("delayMinMs", delayMin),
		zap.Int("delayMaxMs", delayMax),
	)
	f.RandomDelay(delayMin, delayMax)

	historyID, err := r.Recorder.Begin(ctx, ruleID, urlToScrape)
	if err != nil {
		return nil, fmt.Errorf("create history record: %w", err)
	}

	result, runErr := r.attempt(ctx, rule, f, urlToScrape, start)
	if runErr != nil {
		if ferr := r.Recorder.Fail(ctx, historyID, runErr.Error()); ferr != nil {
			r.Log.Error("Failed to mark history failed", zap.String("historyId", historyID), zap.Error(ferr))
		}
		if berr := r.Recorder.BumpFail(ctx, ruleID); berr != nil {
			r.Log.Error("Failed to bump fail count", zap.String("ruleId", ruleID), zap.Error(berr))
		}
		r.Log.Warn("Scrape run failed",
			zap.String("ruleId", ruleID),
			zap.String("url", urlToScrape),
			zap.Error(runErr),
		)
		return nil, runErr
	}

	if err := r.Recorder.Complete(ctx, historyID, result.articleID, result.snapshot, result.images); err != nil {
		r.Log.Error("Failed to mark history success", zap.String("historyId", historyID), zap.Error(err))
	}
	if err := r.Recorder.BumpSuccess(ctx, ruleID); err != nil {
		r.Log.Error("Failed to bump success count", zap.String("ruleId", ruleID), zap.Error(err))
	}

	r.Log.Info("Scrape run succeeded",
		zap.String("ruleId", ruleID),
		zap.String("articleId", result.articleID),
		zap.Int("imagesDownloaded", result.images),
		zap.Duration("responseTime", result.responseTime),
	)
	return &RunResult{
		ArticleID:        result.articleID,
		ImagesDownloaded: result.images,
		ResponseTime:     result.responseTime,
		TotalTime:        time.Since(start),
	}, nil
}

type attemptResult struct {
	articleID    string
	snapshot     *model.ScrapedArticle
	images       int
	responseTime time.Duration
}

func (r *Runner) attempt(ctx context.Context, rule *model.Rule, f *fetch.Fetcher, urlToScrape string, start time.Time) (*attemptResult, error) {
	headers := f.BuildHeaders(urlToScrape, rule.AntiScraping)

	res, err := f.FetchWithRetry(ctx, urlToScrape, headers,
		rule.AntiScraping.Retries(), rule.AntiScraping.RetryDelay(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch page: HTTP %d", res.StatusCode)
	}

	article, err := extract.ForURL(urlToScrape).Extract(res.Body, urlToScrape, rule)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}
	if article.Title == "" || strings.TrimSpace(article.Content) == "" {
		return nil, fmt.Errorf("extract article: result has no usable title or content")
	}

	imagesDownloaded := 0
	if rule.DownloadImages {
		localized := r.Localizer.Localize(ctx, f, article.Content, article.CoverImage, urlToScrape, res.UserAgent)
		article.Content = localized.Content
		article.CoverImage = localized.CoverImage
		imagesDownloaded = localized.Downloaded
	}

	if rule.AddSourceLink {
		article.Content += sourceFooter(urlToScrape, rule.SourceName)
	}

	excerpt := article.Excerpt
	if excerpt == "" {
		excerpt = truncate(article.Content, 200)
	}
	status := model.ArticleStatusDraft
	if rule.AutoPublish {
		status = model.ArticleStatusPublished
	}

	articleID, err := r.Articles.Insert(ctx, &model.Article{
		Title:      article.Title,
		Slug:       Slugify(article.Title) + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		Content:    article.Content,
		Excerpt:    excerpt,
		CoverImage: article.CoverImage,
		CategoryID: rule.CategoryID,
		Status:     status,
		AuthorID:   rule.CreatedBy,
		SourceURL:  urlToScrape,
		SourceName: rule.SourceName,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	return &attemptResult{
		articleID:    articleID,
		snapshot:     article,
		images:       imagesDownloaded,
		responseTime: res.Elapsed,
	}, nil
}

func sourceFooter(sourceURL, sourceName string) string {
	return fmt.Sprintf("\n\n<hr>\n<p><strong>Source:</strong> <a href=\"%s\" target=\"_blank\" rel=\"noopener noreferrer\">%s</a></p>",
		sourceURL, sourceName)
}

var (
	slugDropRe  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRe = regexp.MustCompile(`\s+`)
)

// Slugify lowercases the title, drops everything outside [a-z0-9 -], folds
// whitespace to single hyphens and caps the length at 100. The run appends a
// timestamp for uniqueness, so the same title prefix always slugs the same.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugDropRe.ReplaceAllString(slug, "")
	slug = slugSpaceRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 100 {
		slug = slug[:100]
	}
	return slug
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
