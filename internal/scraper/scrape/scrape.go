// Package scrape sequences one scraping run end to end: rate check, fetch,
// extract, image localization, article persistence and run recording. It is
// the single boundary that converts lower-layer failures into a recorded
// failed run.
package scrape

import (
	"context"
	"errors"

	"article-scraper/internal/scraper/model"
)

// Sentinel errors surfaced before any history row exists. Nothing was
// attempted against the remote site when these are returned.
var (
	ErrRuleNotFound = errors.New("scraper rule not found")
	ErrRateLimited  = errors.New("request rate limit exceeded, try again later")
)

// RuleStore reads rule configuration.
type RuleStore interface {
	Get(ctx context.Context, id string) (*model.Rule, error)
}

// ArticleStore creates the destination article.
type ArticleStore interface {
	Insert(ctx context.Context, a *model.Article) (string, error)
}

// Recorder owns history rows and the rule's aggregate counters.
type Recorder interface {
	Begin(ctx context.Context, ruleID, url string) (string, error)
	Complete(ctx context.Context, historyID, articleID string, data *model.ScrapedArticle, images int) error
	Fail(ctx context.Context, historyID, errMsg string) error
	BumpSuccess(ctx context.Context, ruleID string) error
	BumpFail(ctx context.Context, ruleID string) error
}

// Governor gates runs against the rule's persisted rate counters.
type Governor interface {
	CanProceed(ctx context.Context, rule *model.Rule) (bool, error)
	RecordRequest(ctx context.Context, ruleID string) error
	Release(ctx context.Context, ruleID string)
}
