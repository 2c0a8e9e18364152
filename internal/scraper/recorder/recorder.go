// Package recorder persists run history, per-request telemetry and the
// rule's aggregate counters.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"article-scraper/internal/scraper/model"
)

type Recorder struct {
	History *mongo.Collection
	Logs    *mongo.Collection
	Rules   *mongo.Collection
	Log     *zap.Logger
}

func New(history, logs, rules *mongo.Collection, log *zap.Logger) *Recorder {
	return &Recorder{History: history, Logs: logs, Rules: rules, Log: log}
}

// Begin inserts the processing row before any fetch happens, so the attempt
// is on record even if everything afterwards throws.
func (r *Recorder) Begin(ctx context.Context, ruleID, url string) (string, error) {
	h := model.History{
		ID:        uuid.NewString(),
		RuleID:    ruleID,
		SourceURL: url,
		Status:    model.HistoryProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.History.InsertOne(ctx, h); err != nil {
		return "", fmt.Errorf("insert history: %w", err)
	}
	return h.ID, nil
}

// Complete moves the row to its success terminal state. The processing filter
// guarantees a row transitions at most once.
func (r *Recorder) Complete(ctx context.Context, historyID, articleID string, data *model.ScrapedArticle, images int) error {
	now := time.Now().UTC()
	_, err := r.History.UpdateOne(ctx,
		bson.M{"_id": historyID, "status": model.HistoryProcessing},
		bson.M{"$set": bson.M{
			"status":            model.HistorySuccess,
			"article_id":        articleID,
			"scraped_data":      data,
			"images_downloaded": images,
			"completed_at":      now,
		}},
	)
	return err
}

// Fail moves the row to its failed terminal state.
func (r *Recorder) Fail(ctx context.Context, historyID, errMsg string) error {
	now := time.Now().UTC()
	_, err := r.History.UpdateOne(ctx,
		bson.M{"_id": historyID, "status": model.HistoryProcessing},
		bson.M{"$set": bson.M{
			"status":        model.HistoryFailed,
			"error_message": errMsg,
			"completed_at":  now,
		}},
	)
	return err
}

// BumpSuccess atomically increments the rule's success counter and stamps
// last_run_at.
func (r *Recorder) BumpSuccess(ctx context.Context, ruleID string) error {
	return r.bump(ctx, ruleID, "success_count")
}

func (r *Recorder) BumpFail(ctx context.Context, ruleID string) error {
	return r.bump(ctx, ruleID, "fail_count")
}

func (r *Recorder) bump(ctx context.Context, ruleID, field string) error {
	_, err := r.Rules.UpdateOne(ctx,
		bson.M{"_id": ruleID},
		bson.M{
			"$inc": bson.M{field: 1},
			"$set": bson.M{"last_run_at": time.Now().UTC()},
		},
	)
	return err
}

// LogRequest is fire-and-forget telemetry; a write failure must never abort
// the run, so it only logs locally.
func (r *Recorder) LogRequest(ctx context.Context, ruleID, url string, statusCode *int, elapsed time.Duration, userAgent string, success bool, errMsg string) {
	entry := model.RequestLog{
		ID:             uuid.NewString(),
		RuleID:         ruleID,
		URL:            url,
		StatusCode:     statusCode,
		ResponseTimeMS: elapsed.Milliseconds(),
		UserAgent:      userAgent,
		Success:        success,
		ErrorMessage:   errMsg,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := r.Logs.InsertOne(ctx, entry); err != nil {
		r.Log.Warn("Failed to write request log",
			zap.String("ruleId", ruleID),
			zap.String("url", url),
			zap.Error(err),
		)
	}
}
