package model

import "time"

// History statuses. A record is created as processing and transitions exactly
// once to success or failed.
const (
	HistoryProcessing = "processing"
	HistorySuccess    = "success"
	HistoryFailed     = "failed"
)

// History is one audit row per scrape attempt.
type History struct {
	ID               string          `bson:"_id,omitempty" json:"id"`
	RuleID           string          `bson:"rule_id" json:"rule_id"`
	SourceURL        string          `bson:"source_url" json:"source_url"`
	Status           string          `bson:"status" json:"status"`
	ArticleID        string          `bson:"article_id,omitempty" json:"article_id,omitempty"`
	ScrapedData      *ScrapedArticle `bson:"scraped_data,omitempty" json:"scraped_data,omitempty"`
	ImagesDownloaded int             `bson:"images_downloaded" json:"images_downloaded"`
	ErrorMessage     string          `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt        time.Time       `bson:"created_at" json:"created_at"`
	CompletedAt      *time.Time      `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// RequestLog is append-only telemetry, one row per outbound HTTP attempt.
type RequestLog struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	RuleID         string    `bson:"rule_id" json:"rule_id"`
	URL            string    `bson:"url" json:"url"`
	StatusCode     *int      `bson:"status_code,omitempty" json:"status_code,omitempty"` // nil on network failure
	ResponseTimeMS int64     `bson:"response_time" json:"response_time"`
	UserAgent      string    `bson:"user_agent" json:"user_agent"`
	Success        bool      `bson:"success" json:"success"`
	ErrorMessage   string    `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
