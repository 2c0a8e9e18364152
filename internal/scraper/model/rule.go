package model

import "time"

// Rule describes how to scrape one source site. Rules are authored by the
// admin surface; the scraper only mutates the run counters and last_run_at.
type Rule struct {
	ID                  string            `bson:"_id,omitempty" json:"id"`
	SourceURL           string            `bson:"source_url" json:"source_url"`
	SourceName          string            `bson:"source_name" json:"source_name"`
	TitleSelector       string            `bson:"title_selector" json:"title_selector"`
	ContentSelector     string            `bson:"content_selector" json:"content_selector"`
	ExcerptSelector     string            `bson:"excerpt_selector,omitempty" json:"excerpt_selector,omitempty"`
	CoverImageSelector  string            `bson:"cover_image_selector,omitempty" json:"cover_image_selector,omitempty"`
	AuthorSelector      string            `bson:"author_selector,omitempty" json:"author_selector,omitempty"`
	PublishDateSelector string            `bson:"publish_date_selector,omitempty" json:"publish_date_selector,omitempty"`
	CategoryID          string            `bson:"category_id,omitempty" json:"category_id,omitempty"`
	CreatedBy           string            `bson:"created_by,omitempty" json:"created_by,omitempty"`
	AutoPublish         bool              `bson:"auto_publish" json:"auto_publish"`
	DownloadImages      bool              `bson:"download_images" json:"download_images"`
	AddSourceLink       bool              `bson:"add_source_link" json:"add_source_link"`
	AntiScraping        AntiScrapingConfig `bson:"anti_scraping_config" json:"anti_scraping_config"`
	RateLimit           RateLimitConfig   `bson:"rate_limit_config" json:"rate_limit_config"`
	Proxy               ProxyConfig       `bson:"proxy_config" json:"proxy_config"`
	SuccessCount        int               `bson:"success_count" json:"success_count"`
	FailCount           int               `bson:"fail_count" json:"fail_count"`
	LastRunAt           *time.Time        `bson:"last_run_at,omitempty" json:"last_run_at,omitempty"`
}

// AntiScrapingConfig tunes how requests to the source are disguised and
// retried. Zero values fall back to the defaults below.
type AntiScrapingConfig struct {
	UserAgent     string            `bson:"user_agent,omitempty" json:"user_agent,omitempty"` // empty or "random" picks from the pool
	DelayMinMS    int               `bson:"delay_min,omitempty" json:"delay_min,omitempty"`
	DelayMaxMS    int               `bson:"delay_max,omitempty" json:"delay_max,omitempty"`
	UseReferer    bool              `bson:"use_referer" json:"use_referer"`
	UseCookies    bool              `bson:"use_cookies" json:"use_cookies"`
	CustomHeaders map[string]string `bson:"custom_headers,omitempty" json:"custom_headers,omitempty"`
	TimeoutSec    int               `bson:"timeout,omitempty" json:"timeout,omitempty"`
	RetryTimes    int               `bson:"retry_times,omitempty" json:"retry_times,omitempty"`
	RetryDelayMS  int               `bson:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

const (
	DefaultDelayMinMS   = 2000
	DefaultDelayMaxMS   = 5000
	DefaultTimeoutSec   = 30
	DefaultRetryTimes   = 3
	DefaultRetryDelayMS = 5000
)

// DelayBounds returns the pre-request delay window in milliseconds.
func (c AntiScrapingConfig) DelayBounds() (min, max int) {
	min, max = c.DelayMinMS, c.DelayMaxMS
	if min <= 0 {
		min = DefaultDelayMinMS
	}
	if max < min {
		max = DefaultDelayMaxMS
	}
	if max < min {
		max = min
	}
	return min, max
}

func (c AntiScrapingConfig) Retries() int {
	if c.RetryTimes <= 0 {
		return DefaultRetryTimes
	}
	return c.RetryTimes
}

func (c AntiScrapingConfig) RetryDelay() time.Duration {
	if c.RetryDelayMS <= 0 {
		return time.Duration(DefaultRetryDelayMS) * time.Millisecond
	}
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c AntiScrapingConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return time.Duration(DefaultTimeoutSec) * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// RateLimitConfig carries the per-rule ceilings enforced by the governor.
// A zero ceiling means unlimited.
type RateLimitConfig struct {
	MaxRequestsPerMinute int `bson:"max_requests_per_minute,omitempty" json:"max_requests_per_minute,omitempty"`
	MaxRequestsPerHour   int `bson:"max_requests_per_hour,omitempty" json:"max_requests_per_hour,omitempty"`
	ConcurrentRequests   int `bson:"concurrent_requests,omitempty" json:"concurrent_requests,omitempty"`
}

// ProxyConfig routes fetches through a forward proxy when enabled.
type ProxyConfig struct {
	Enabled     bool   `bson:"enabled" json:"enabled"`
	ProxyURL    string `bson:"proxy_url,omitempty" json:"proxy_url,omitempty"`
	RotateProxy bool   `bson:"rotate_proxy" json:"rotate_proxy"`
}
